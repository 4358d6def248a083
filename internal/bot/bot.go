// Package bot implements the chatbot orchestrator: the per-turn pipeline
// that classifies a user message, resolves slots against session memory,
// dispatches catalog lookups and composes the reply.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/seriesbot-go/internal/memory"
	"github.com/raphaelgruber/seriesbot-go/internal/metrics"
	"github.com/raphaelgruber/seriesbot-go/internal/models"
	"github.com/raphaelgruber/seriesbot-go/internal/tvdb"
)

// Catalog is the catalog capability consumed by the orchestrator.
// *tvdb.Client implements it; tests substitute fakes.
type Catalog interface {
	Search(ctx context.Context, query string, opts tvdb.SearchOptions) ([]models.SeriesSummary, error)
	Series(ctx context.Context, id int) (models.SeriesDetail, error)
	Similar(ctx context.Context, id int) ([]models.SeriesSummary, error)
}

// IntentExtractor classifies the latest message in conversational context.
type IntentExtractor interface {
	Extract(ctx context.Context, history []models.Turn, message string) models.IntentResult
}

// Options bound the per-turn pipeline.
type Options struct {
	HistoryWindow  int
	SearchLimit    int
	LLMTimeout     time.Duration
	CatalogTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 10
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 5
	}
	if o.LLMTimeout <= 0 {
		o.LLMTimeout = 30 * time.Second
	}
	if o.CatalogTimeout <= 0 {
		o.CatalogTimeout = 10 * time.Second
	}
	return o
}

// Bot orchestrates one conversation turn at a time. There is no
// cross-turn state beyond the slots carried in session memory.
type Bot struct {
	catalog   Catalog
	extractor IntentExtractor
	composer  *Composer
	memory    *memory.Store
	metrics   *metrics.Collector
	logger    *slog.Logger
	opts      Options
}

// New creates the orchestrator. metrics may be nil; a nil logger falls
// back to slog.Default().
func New(catalog Catalog, extractor IntentExtractor, composer *Composer, store *memory.Store, collector *metrics.Collector, opts Options, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		catalog:   catalog,
		extractor: extractor,
		composer:  composer,
		memory:    store,
		metrics:   collector,
		logger:    logger,
		opts:      opts.withDefaults(),
	}
}

// HandleMessage processes one user message and returns the reply with
// the session identifier. Every path yields a reply: catalog and LLM
// failures degrade to apologetic or clarifying text and the turn is
// still recorded, so conversation continuity survives transient faults.
func (b *Bot) HandleMessage(ctx context.Context, message, sessionID string) (models.ChatResponse, error) {
	start := time.Now()
	id := b.memory.GetOrCreate(sessionID)

	// Turns for one session must not interleave; the lock spans the
	// whole pipeline including the assistant-turn append.
	unlock := b.memory.Lock(id)
	defer unlock()

	defer b.record(metrics.OpTurn, start, nil)

	history := b.memory.History(id, b.opts.HistoryWindow)
	b.memory.Append(id, models.Turn{Role: models.RoleUser, Content: message, Timestamp: time.Now()})

	reply := b.runTurn(ctx, id, history, message)

	b.memory.Append(id, models.Turn{Role: models.RoleAssistant, Content: reply, Timestamp: time.Now()})
	return models.ChatResponse{Message: reply, SessionID: id}, nil
}

// runTurn executes extraction, slot resolution and dispatch, returning
// the reply text. Never returns an empty string.
func (b *Bot) runTurn(ctx context.Context, id string, history []models.Turn, message string) string {
	if strings.TrimSpace(message) == "" {
		return b.composer.Clarify(clarifyEmptyMessage)
	}

	result := b.extract(ctx, history, message)
	b.logger.Debug("intent extracted",
		"session", id, "intent", result.Intent, "confidence", result.Confidence)

	// Preferences accumulate from what the user mentions, regardless of
	// whether the lookup below succeeds; lookup references (LastSeriesID
	// and friends) are only written on success.
	b.memory.SetSlots(id, models.CarriedSlots{
		FavoriteGenres:   nonEmpty(result.Slots.Genre),
		FavoriteNetworks: nonEmpty(result.Slots.Network),
		FavoriteActors:   nonEmpty(result.Slots.Actor),
	})

	carried := b.memory.Slots(id)

	switch result.Intent {
	case models.IntentSearchByTitle:
		return b.handleSearch(ctx, id, result.Slots)
	case models.IntentGetDetails:
		return b.handleDetails(ctx, id, result.Slots, carried)
	case models.IntentFindSimilar:
		return b.handleSimilar(ctx, id, result.Slots, carried)
	case models.IntentRecommendByPreference:
		return b.handleRecommend(ctx, id, result.Slots, carried)
	case models.IntentGeneralChat:
		return b.composeGeneralChat(ctx, history, message)
	default:
		return b.composer.Help(result.Confidence)
	}
}

func (b *Bot) handleSearch(ctx context.Context, id string, slots models.SlotSet) string {
	query := slots.Title
	if query == "" {
		// A pure genre request still searches; the catalog's search
		// endpoint matches genre keywords.
		query = slots.Genre
	}
	if query == "" {
		return b.composer.Clarify(clarifyNoTitle)
	}

	results, err := b.search(ctx, query, tvdb.SearchOptions{
		Year:    slots.Year,
		Network: slots.Network,
		Limit:   b.opts.SearchLimit,
	})
	if err != nil {
		return b.catalogFailure(err, query)
	}
	if len(results) == 0 {
		return b.composer.NotFound(query)
	}

	b.updateSlotsFromSummary(id, results[0], slots.Genre)
	return b.composer.SearchResults(query, results)
}

func (b *Bot) handleDetails(ctx context.Context, id string, slots models.SlotSet, carried models.CarriedSlots) string {
	title := slots.Title

	// Follow-up with no explicit title: fall back to the series the
	// conversation is already about.
	if title == "" && carried.LastSeriesID != 0 {
		detail, err := b.series(ctx, carried.LastSeriesID)
		if err != nil {
			return b.catalogFailure(err, carried.LastTitle)
		}
		b.updateSlotsFromDetail(id, detail)
		return b.composer.Detail(detail)
	}
	if title == "" {
		title = carried.LastTitle
	}
	if title == "" {
		return b.composer.Clarify(clarifyNoTitle)
	}

	seriesID, _, err := b.resolveSeriesID(ctx, title)
	if err != nil {
		return b.catalogFailure(err, title)
	}

	detail, err := b.series(ctx, seriesID)
	if err != nil {
		return b.catalogFailure(err, title)
	}

	b.updateSlotsFromDetail(id, detail)
	return b.composer.Detail(detail)
}

func (b *Bot) handleSimilar(ctx context.Context, id string, slots models.SlotSet, carried models.CarriedSlots) string {
	reference := slots.SimilarTo
	if reference == "" {
		reference = slots.Title
	}

	var seriesID int
	var name string

	switch {
	case reference != "":
		var err error
		seriesID, name, err = b.resolveSeriesID(ctx, reference)
		if err != nil {
			return b.catalogFailure(err, reference)
		}
	case carried.LastSeriesID != 0:
		seriesID, name = carried.LastSeriesID, carried.LastTitle
	default:
		return b.composer.Clarify(clarifyNoReference)
	}

	results, err := b.similar(ctx, seriesID)
	if err != nil {
		return b.catalogFailure(err, name)
	}
	if len(results) == 0 {
		return b.composer.NotFound(name)
	}

	b.memory.SetSlots(id, models.CarriedSlots{LastSeriesID: seriesID, LastTitle: name})
	return b.composer.SimilarResults(name, results)
}

func (b *Bot) handleRecommend(ctx context.Context, id string, slots models.SlotSet, carried models.CarriedSlots) string {
	terms := preferenceTerms(slots, carried)
	if len(terms) == 0 {
		return b.composer.Clarify(clarifyNoPreference)
	}

	results, err := b.search(ctx, strings.Join(terms, " "), tvdb.SearchOptions{
		Limit: b.opts.SearchLimit * 2,
	})
	if err != nil {
		return b.catalogFailure(err, strings.Join(terms, ", "))
	}
	if len(results) == 0 {
		return b.composer.NotFound(strings.Join(terms, ", "))
	}

	ranked := rankByOverlap(results, terms)
	if len(ranked) > b.opts.SearchLimit {
		ranked = ranked[:b.opts.SearchLimit]
	}

	if slots.Genre != "" {
		b.memory.SetSlots(id, models.CarriedSlots{LastGenre: slots.Genre})
	}
	return b.composer.Recommendations(terms, ranked)
}

func (b *Bot) composeGeneralChat(ctx context.Context, history []models.Turn, message string) string {
	llmCtx, cancel := context.WithTimeout(ctx, b.opts.LLMTimeout)
	defer cancel()

	var err error
	defer b.record(metrics.OpLLMCompose, time.Now(), &err)

	reply, err := b.composer.GeneralChat(llmCtx, history, message)
	if err != nil {
		b.logger.Warn("general chat composition failed", "error", err)
		return b.composer.Fallback()
	}
	return reply
}

// resolveSeriesID performs the two-step resolution: search by title,
// then pick the exact case-insensitive match, else the first result.
// The tie-break policy is the documented default, not catalog fact.
func (b *Bot) resolveSeriesID(ctx context.Context, title string) (int, string, error) {
	results, err := b.search(ctx, title, tvdb.SearchOptions{Limit: b.opts.SearchLimit})
	if err != nil {
		return 0, "", err
	}
	if len(results) == 0 {
		return 0, "", tvdb.ErrNotFound
	}

	best := results[0]
	for _, r := range results {
		if strings.EqualFold(r.Name, title) {
			best = r
			break
		}
	}

	id, err := best.NumericID()
	if err != nil {
		return 0, "", err
	}
	return id, best.Name, nil
}

// updateSlotsFromDetail records a successful detail lookup in the
// carried slots, including the primary genre for later recommendations.
func (b *Bot) updateSlotsFromDetail(id string, detail models.SeriesDetail) {
	update := models.CarriedSlots{
		LastSeriesID: detail.ID,
		LastTitle:    detail.Name,
	}
	if len(detail.Genres) > 0 {
		update.LastGenre = detail.Genres[0].Name
	}
	b.memory.SetSlots(id, update)
}

func (b *Bot) updateSlotsFromSummary(id string, top models.SeriesSummary, genre string) {
	update := models.CarriedSlots{LastTitle: top.Name, LastGenre: genre}
	if n, err := top.NumericID(); err == nil {
		update.LastSeriesID = n
	}
	b.memory.SetSlots(id, update)
}

// catalogFailure maps a catalog error to user-facing text. Not-found and
// transport failures read differently; neither corrupts session state.
func (b *Bot) catalogFailure(err error, subject string) string {
	if errors.Is(err, tvdb.ErrNotFound) {
		return b.composer.NotFound(subject)
	}
	b.logger.Error("catalog lookup failed", "subject", subject, "error", err)
	return b.composer.TransientFailure()
}

func (b *Bot) extract(ctx context.Context, history []models.Turn, message string) models.IntentResult {
	llmCtx, cancel := context.WithTimeout(ctx, b.opts.LLMTimeout)
	defer cancel()

	defer b.record(metrics.OpLLMIntent, time.Now(), nil)
	return b.extractor.Extract(llmCtx, history, message)
}

func (b *Bot) search(ctx context.Context, query string, opts tvdb.SearchOptions) (results []models.SeriesSummary, err error) {
	catCtx, cancel := context.WithTimeout(ctx, b.opts.CatalogTimeout)
	defer cancel()

	defer b.record(metrics.OpCatalogSearch, time.Now(), &err)
	results, err = b.catalog.Search(catCtx, query, opts)
	return results, err
}

func (b *Bot) series(ctx context.Context, id int) (detail models.SeriesDetail, err error) {
	catCtx, cancel := context.WithTimeout(ctx, b.opts.CatalogTimeout)
	defer cancel()

	defer b.record(metrics.OpCatalogSeries, time.Now(), &err)
	detail, err = b.catalog.Series(catCtx, id)
	return detail, err
}

func (b *Bot) similar(ctx context.Context, id int) (results []models.SeriesSummary, err error) {
	catCtx, cancel := context.WithTimeout(ctx, b.opts.CatalogTimeout)
	defer cancel()

	defer b.record(metrics.OpCatalogSimilar, time.Now(), &err)
	results, err = b.catalog.Similar(catCtx, id)
	return results, err
}

func (b *Bot) record(op string, start time.Time, errPtr *error) {
	if b.metrics == nil {
		return
	}
	b.metrics.Observe(op, start, errPtr)
}

// preferenceTerms merges this turn's slots with accumulated preferences
// into catalog search terms, freshest first.
func preferenceTerms(slots models.SlotSet, carried models.CarriedSlots) []string {
	var terms []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		for _, existing := range terms {
			if strings.EqualFold(existing, t) {
				return
			}
		}
		terms = append(terms, t)
	}

	add(slots.Genre)
	add(slots.Network)
	if slots.Genre == "" {
		add(carried.LastGenre)
		for _, g := range carried.FavoriteGenres {
			add(g)
		}
	}
	return terms
}

// rankByOverlap orders search results by how many preference terms they
// match. No learned ranking: slot overlap only, ties keep catalog order.
func rankByOverlap(results []models.SeriesSummary, terms []string) []models.SeriesSummary {
	type scored struct {
		summary models.SeriesSummary
		score   int
	}

	items := make([]scored, len(results))
	for i, r := range results {
		haystack := strings.ToLower(r.Name + " " + r.Overview + " " + r.Network)
		score := 0
		for _, term := range terms {
			if strings.Contains(haystack, strings.ToLower(term)) {
				score++
			}
		}
		items[i] = scored{r, score}
	}

	// Stable by construction: insertion sort keeps catalog order on ties.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].score > items[j-1].score; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}

	out := make([]models.SeriesSummary, len(items))
	for i, item := range items {
		out[i] = item.summary
	}
	return out
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
