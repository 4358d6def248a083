package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/raphaelgruber/seriesbot-go/internal/models"

	"github.com/tmc/langchaingo/llms"
)

type recordingGenerator struct {
	reply      string
	lastPrompt string
}

func (r *recordingGenerator) GenerateWithSystem(_ context.Context, _, prompt string, _ ...llms.CallOption) (string, error) {
	r.lastPrompt = prompt
	return r.reply, nil
}

func TestDetailRendersCatalogFieldsOnly(t *testing.T) {
	c := NewComposer(&fakeGenerator{}, testLogger())

	out := c.Detail(models.SeriesDetail{
		ID:         81189,
		Name:       "Breaking Bad",
		Status:     "Ended",
		FirstAired: "2008-01-20",
		Network:    models.Network{Name: "AMC"},
		Genres:     []models.Genre{{Name: "Drama"}, {Name: "Crime"}},
		Overview:   "A chemistry teacher turns to crime.",
	})

	for _, want := range []string{"Breaking Bad", "(2008)", "Ended", "AMC", "Drama, Crime", "chemistry teacher"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail card missing %q:\n%s", want, out)
		}
	}
}

func TestDetailOmitsEmptyFields(t *testing.T) {
	c := NewComposer(&fakeGenerator{}, testLogger())

	out := c.Detail(models.SeriesDetail{ID: 1, Name: "Mystery Show"})
	for _, unwanted := range []string{"Status:", "Network:", "Genres:", "First aired:"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("detail card should omit %q when empty:\n%s", unwanted, out)
		}
	}
}

func TestTruncateOverviewCutsAtWordBoundary(t *testing.T) {
	long := strings.Repeat("some words here ", 40)
	got := truncateOverview(long)

	if len(got) > maxOverviewChars+3 {
		t.Errorf("truncated overview too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated overview missing ellipsis: %q", got)
	}
	if strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
		t.Errorf("trailing space before ellipsis: %q", got)
	}

	short := "A short overview."
	if truncateOverview(short) != short {
		t.Errorf("short overview must pass through unchanged")
	}
}

func TestGeneralChatIncludesHistory(t *testing.T) {
	gen := &recordingGenerator{reply: "sure"}
	c := NewComposer(gen, testLogger())

	history := []models.Turn{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi, ask me about shows"},
	}
	_, err := c.GeneralChat(context.Background(), history, "what's up?")
	if err != nil {
		t.Fatalf("GeneralChat: %v", err)
	}

	if !strings.Contains(gen.lastPrompt, "User: hello") {
		t.Errorf("prompt missing user turn: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "Assistant: hi, ask me about shows") {
		t.Errorf("prompt missing assistant turn: %q", gen.lastPrompt)
	}
	if !strings.Contains(gen.lastPrompt, "what's up?") {
		t.Errorf("prompt missing current message: %q", gen.lastPrompt)
	}
}

func TestGeneralChatRejectsEmptyCompletion(t *testing.T) {
	c := NewComposer(&fakeGenerator{reply: "   "}, testLogger())

	if _, err := c.GeneralChat(context.Background(), nil, "hi"); err == nil {
		t.Fatal("expected error for empty completion")
	}
}
