package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/seriesbot-go/internal/llm"
	"github.com/raphaelgruber/seriesbot-go/internal/memory"
	"github.com/raphaelgruber/seriesbot-go/internal/metrics"
	"github.com/raphaelgruber/seriesbot-go/internal/models"
	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"

	"github.com/tmc/langchaingo/llms"
)

type fakeCatalog struct {
	mu sync.Mutex

	searchResults map[string][]models.SeriesSummary
	searchErr     error
	seriesResults map[int]models.SeriesDetail
	seriesErr     error
	similarBy     map[int][]models.SeriesSummary
	similarErr    error

	searchQueries []string
	similarIDs    []int
}

func (f *fakeCatalog) Search(_ context.Context, query string, _ tvdb.SearchOptions) ([]models.SeriesSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchQueries = append(f.searchQueries, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults[strings.ToLower(query)], nil
}

func (f *fakeCatalog) Series(_ context.Context, id int) (models.SeriesDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seriesErr != nil {
		return models.SeriesDetail{}, f.seriesErr
	}
	d, ok := f.seriesResults[id]
	if !ok {
		return models.SeriesDetail{}, tvdb.ErrNotFound
	}
	return d, nil
}

func (f *fakeCatalog) Similar(_ context.Context, id int) ([]models.SeriesSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.similarIDs = append(f.similarIDs, id)
	if f.similarErr != nil {
		return nil, f.similarErr
	}
	return f.similarBy[id], nil
}

type fakeExtractor struct {
	mu      sync.Mutex
	results []models.IntentResult
	next    int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []models.Turn, _ string) models.IntentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.results) {
		return models.IntentResult{Intent: models.IntentUnknown}
	}
	r := f.results[f.next]
	f.next++
	return r
}

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) GenerateWithSystem(_ context.Context, _, _ string, _ ...llms.CallOption) (string, error) {
	return f.reply, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestBot(t *testing.T, catalog *fakeCatalog, extractor *fakeExtractor, gen llm.Generator) (*Bot, *memory.Store) {
	t.Helper()
	logger := testLogger()
	store := memory.NewStore(time.Hour, 100, logger)
	composer := NewComposer(gen, logger)
	b := New(catalog, extractor, composer, store, metrics.NewCollector(), Options{}, logger)
	return b, store
}

func breakingBadCatalog() *fakeCatalog {
	return &fakeCatalog{
		searchResults: map[string][]models.SeriesSummary{
			"breaking bad": {
				{ID: "series-81189", Name: "Breaking Bad", Year: "2008", Network: "AMC", Status: "Ended"},
			},
		},
		seriesResults: map[int]models.SeriesDetail{
			81189: {
				ID:         81189,
				Name:       "Breaking Bad",
				Status:     "Ended",
				FirstAired: "2008-01-20",
				Network:    models.Network{Name: "AMC"},
				Genres:     []models.Genre{{ID: 1, Name: "Drama"}, {ID: 2, Name: "Crime"}},
				Overview:   "A chemistry teacher turns to manufacturing methamphetamine.",
			},
		},
		similarBy: map[int][]models.SeriesSummary{
			81189: {
				{ID: "series-273181", Name: "Better Call Saul", Year: "2015"},
				{ID: "series-290853", Name: "Ozark", Year: "2017"},
			},
		},
	}
}

func TestDetailsLookupUpdatesSlots(t *testing.T) {
	catalog := breakingBadCatalog()
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGetDetails, Slots: models.SlotSet{Title: "Breaking Bad"}, Confidence: 0.95},
	}}
	b, store := newTestBot(t, catalog, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "Tell me about Breaking Bad", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "Breaking Bad") {
		t.Errorf("reply missing series name: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, "AMC") {
		t.Errorf("reply missing network: %q", resp.Message)
	}

	slots := store.Slots(resp.SessionID)
	if slots.LastSeriesID != 81189 {
		t.Errorf("LastSeriesID = %d, want 81189", slots.LastSeriesID)
	}
	if slots.LastTitle != "Breaking Bad" {
		t.Errorf("LastTitle = %q", slots.LastTitle)
	}
	if slots.LastGenre != "Drama" {
		t.Errorf("LastGenre = %q, want primary genre", slots.LastGenre)
	}
}

func TestSimilarFollowUpUsesCarriedReference(t *testing.T) {
	catalog := breakingBadCatalog()
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGetDetails, Slots: models.SlotSet{Title: "Breaking Bad"}},
		{Intent: models.IntentFindSimilar},
	}}
	b, _ := newTestBot(t, catalog, extractor, &fakeGenerator{})

	first, err := b.HandleMessage(context.Background(), "Tell me about Breaking Bad", "")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}

	resp, err := b.HandleMessage(context.Background(), "What are some similar shows?", first.SessionID)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if resp.SessionID != first.SessionID {
		t.Fatalf("session changed across turns: %q vs %q", resp.SessionID, first.SessionID)
	}
	if !strings.Contains(resp.Message, "Better Call Saul") {
		t.Errorf("reply missing similar show: %q", resp.Message)
	}

	if len(catalog.similarIDs) != 1 || catalog.similarIDs[0] != 81189 {
		t.Errorf("Similar called with %v, want [81189]", catalog.similarIDs)
	}
}

func TestSimilarWithoutReferenceClarifies(t *testing.T) {
	catalog := breakingBadCatalog()
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentFindSimilar},
	}}
	b, _ := newTestBot(t, catalog, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "something like it", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "Similar to what") {
		t.Errorf("expected clarifying question, got %q", resp.Message)
	}
	if len(catalog.similarIDs) != 0 {
		t.Errorf("no catalog call expected, got %v", catalog.similarIDs)
	}
}

func TestSearchNoResults(t *testing.T) {
	catalog := &fakeCatalog{searchResults: map[string][]models.SeriesSummary{}}
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentSearchByTitle, Slots: models.SlotSet{Title: "Zzyzx Chronicles"}},
	}}
	b, store := newTestBot(t, catalog, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "find Zzyzx Chronicles", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "couldn't find") {
		t.Errorf("expected not-found reply, got %q", resp.Message)
	}

	if slots := store.Slots(resp.SessionID); slots.LastSeriesID != 0 || slots.LastTitle != "" {
		t.Errorf("failed lookup must not write reference slots: %+v", slots)
	}
}

func TestCatalogFailureNeverRaises(t *testing.T) {
	catalog := &fakeCatalog{searchErr: errors.New("connection refused")}
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentSearchByTitle, Slots: models.SlotSet{Title: "Dark"}},
	}}
	b, store := newTestBot(t, catalog, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "find Dark", "")
	if err != nil {
		t.Fatalf("catalog failure must not surface as error: %v", err)
	}
	if resp.Message == "" {
		t.Fatal("reply must be non-empty on catalog failure")
	}
	if !strings.Contains(resp.Message, "trouble") {
		t.Errorf("expected transient-failure reply, got %q", resp.Message)
	}

	history := store.History(resp.SessionID, 10)
	if len(history) != 2 {
		t.Fatalf("turn must still be recorded, history has %d entries", len(history))
	}
	if history[1].Role != models.RoleAssistant {
		t.Errorf("second entry role = %q, want assistant", history[1].Role)
	}
}

func TestExactTitleMatchWinsOverFirstResult(t *testing.T) {
	catalog := &fakeCatalog{
		searchResults: map[string][]models.SeriesSummary{
			"dark": {
				{ID: "series-100", Name: "Dark Matter"},
				{ID: "series-348545", Name: "dark"},
			},
		},
		seriesResults: map[int]models.SeriesDetail{
			348545: {ID: 348545, Name: "Dark", Status: "Ended"},
		},
	}
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGetDetails, Slots: models.SlotSet{Title: "Dark"}},
	}}
	b, store := newTestBot(t, catalog, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "tell me about Dark", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if store.Slots(resp.SessionID).LastSeriesID != 348545 {
		t.Errorf("resolved ID = %d, want exact case-insensitive match 348545",
			store.Slots(resp.SessionID).LastSeriesID)
	}
}

func TestRecommendFromAccumulatedPreferences(t *testing.T) {
	catalog := &fakeCatalog{
		searchResults: map[string][]models.SeriesSummary{
			"sci-fi": {
				{ID: "series-1", Name: "The Expanse", Overview: "A sci-fi epic in space."},
				{ID: "series-2", Name: "Generic Cop Show", Overview: "A procedural."},
			},
		},
	}
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentRecommendByPreference, Slots: models.SlotSet{Genre: "sci-fi"}},
		{Intent: models.IntentRecommendByPreference},
	}}
	b, _ := newTestBot(t, catalog, extractor, &fakeGenerator{})

	first, err := b.HandleMessage(context.Background(), "recommend a sci-fi show", "")
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if !strings.Contains(first.Message, "The Expanse") {
		t.Errorf("first reply missing match: %q", first.Message)
	}

	// Second turn carries no genre slot; the accumulated preference
	// still drives the search.
	resp, err := b.HandleMessage(context.Background(), "recommend something else", first.SessionID)
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if !strings.Contains(resp.Message, "sci-fi") {
		t.Errorf("second reply should reference the carried genre: %q", resp.Message)
	}
	last := catalog.searchQueries[len(catalog.searchQueries)-1]
	if !strings.Contains(strings.ToLower(last), "sci-fi") {
		t.Errorf("search query = %q, want carried genre term", last)
	}
}

func TestRecommendWithoutPreferencesClarifies(t *testing.T) {
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentRecommendByPreference},
	}}
	b, _ := newTestBot(t, &fakeCatalog{}, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "recommend me something", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "genre") {
		t.Errorf("expected preference prompt, got %q", resp.Message)
	}
}

func TestGeneralChatUsesLLM(t *testing.T) {
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGeneralChat},
	}}
	gen := &fakeGenerator{reply: "Hey! Always happy to talk TV."}
	b, _ := newTestBot(t, &fakeCatalog{}, extractor, gen)

	resp, err := b.HandleMessage(context.Background(), "hi there", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if resp.Message != "Hey! Always happy to talk TV." {
		t.Errorf("reply = %q", resp.Message)
	}
}

func TestGeneralChatFallsBackOnLLMError(t *testing.T) {
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGeneralChat},
	}}
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	b, _ := newTestBot(t, &fakeCatalog{}, extractor, gen)

	resp, err := b.HandleMessage(context.Background(), "hi there", "")
	if err != nil {
		t.Fatalf("LLM failure must not surface as error: %v", err)
	}
	if !strings.Contains(resp.Message, "TV series") {
		t.Errorf("expected canned fallback, got %q", resp.Message)
	}
}

func TestUnknownIntentGetsHelp(t *testing.T) {
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentUnknown, Confidence: 0.9},
	}}
	b, _ := newTestBot(t, &fakeCatalog{}, extractor, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "purple monkey dishwasher", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "search") {
		t.Errorf("expected help reply, got %q", resp.Message)
	}
}

func TestEmptyMessageClarifies(t *testing.T) {
	b, _ := newTestBot(t, &fakeCatalog{}, &fakeExtractor{}, &fakeGenerator{})

	resp, err := b.HandleMessage(context.Background(), "   ", "")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if !strings.Contains(resp.Message, "didn't catch") {
		t.Errorf("expected clarification, got %q", resp.Message)
	}
}

func TestConcurrentTurnsOnSameSessionSerialize(t *testing.T) {
	const turns = 16

	catalog := breakingBadCatalog()
	results := make([]models.IntentResult, turns)
	for i := range results {
		results[i] = models.IntentResult{Intent: models.IntentGeneralChat}
	}
	extractor := &fakeExtractor{results: results}
	gen := &fakeGenerator{reply: "sure"}
	b, store := newTestBot(t, catalog, extractor, gen)

	id := store.Create()

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := b.HandleMessage(context.Background(), fmt.Sprintf("message %d", n), id); err != nil {
				t.Errorf("HandleMessage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	history := store.History(id, turns*2)
	if len(history) != turns*2 {
		t.Fatalf("history has %d entries, want %d", len(history), turns*2)
	}
	// Each user turn must be immediately followed by its assistant turn.
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != models.RoleUser || history[i+1].Role != models.RoleAssistant {
			t.Fatalf("turns interleaved at index %d: %q then %q", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestUnknownSessionIDGetsFreshSession(t *testing.T) {
	extractor := &fakeExtractor{results: []models.IntentResult{
		{Intent: models.IntentGeneralChat},
	}}
	b, _ := newTestBot(t, &fakeCatalog{}, extractor, &fakeGenerator{reply: "hello"})

	resp, err := b.HandleMessage(context.Background(), "hi", "no-such-session")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if resp.SessionID == "no-such-session" || resp.SessionID == "" {
		t.Errorf("unknown session id must be replaced, got %q", resp.SessionID)
	}
}
