package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/seriesbot-go/internal/llm"
	"github.com/raphaelgruber/seriesbot-go/internal/models"

	"github.com/tmc/langchaingo/llms"
)

// clarifyReason selects which clarifying question to ask when a turn
// cannot be resolved into a lookup.
type clarifyReason int

const (
	clarifyEmptyMessage clarifyReason = iota
	clarifyNoTitle
	clarifyNoReference
	clarifyNoPreference
)

const (
	maxOverviewChars = 300

	chatSystemPrompt = `You are a friendly TV series assistant. Chat naturally about
television, but never invent facts about specific shows: no made-up air dates,
cast members, episode counts or plot points. If the user wants concrete show
information, suggest they ask you to search for or describe a specific series.
Keep replies short, two or three sentences.`
)

// Composer renders structured catalog results into reply text. Replies
// about series are templated from catalog fields only; free-form text
// generation is reserved for small talk, where there is nothing to get
// factually wrong about the catalog.
type Composer struct {
	gen    llm.Generator
	logger *slog.Logger
}

func NewComposer(gen llm.Generator, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{gen: gen, logger: logger}
}

// SearchResults lists matches for a title search.
func (c *Composer) SearchResults(query string, results []models.SeriesSummary) string {
	var sb strings.Builder
	if len(results) == 1 {
		fmt.Fprintf(&sb, "I found one series matching %q:\n\n", query)
	} else {
		fmt.Fprintf(&sb, "Here's what I found for %q:\n\n", query)
	}
	writeSummaryList(&sb, results)
	sb.WriteString("\nAsk me about any of these for more details.")
	return sb.String()
}

// Detail renders a single series card.
func (c *Composer) Detail(d models.SeriesDetail) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**", d.Name)
	if year := airedYear(d.FirstAired); year != "" {
		fmt.Fprintf(&sb, " (%s)", year)
	}
	sb.WriteString("\n")

	if d.Status != "" {
		fmt.Fprintf(&sb, "Status: %s\n", d.Status)
	}
	if d.Network.Name != "" {
		fmt.Fprintf(&sb, "Network: %s\n", d.Network.Name)
	}
	if genres := d.GenreNames(); len(genres) > 0 {
		fmt.Fprintf(&sb, "Genres: %s\n", strings.Join(genres, ", "))
	}
	if d.FirstAired != "" {
		fmt.Fprintf(&sb, "First aired: %s\n", d.FirstAired)
	}
	if d.Overview != "" {
		fmt.Fprintf(&sb, "\n%s\n", truncateOverview(d.Overview))
	}
	sb.WriteString("\nWant me to find similar shows?")
	return sb.String()
}

// SimilarResults lists shows related to a reference series.
func (c *Composer) SimilarResults(name string, results []models.SeriesSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "If you liked %s, you might enjoy:\n\n", name)
	writeSummaryList(&sb, results)
	return sb.String()
}

// Recommendations lists shows matched against the user's tastes.
func (c *Composer) Recommendations(terms []string, results []models.SeriesSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on your interest in %s, here are some picks:\n\n", strings.Join(terms, " and "))
	writeSummaryList(&sb, results)
	sb.WriteString("\nTell me more about what you like and I can refine these.")
	return sb.String()
}

// Clarify asks a follow-up question when slots cannot be resolved.
func (c *Composer) Clarify(reason clarifyReason) string {
	switch reason {
	case clarifyEmptyMessage:
		return "I didn't catch that. What show would you like to talk about?"
	case clarifyNoTitle:
		return "Which series do you mean? Give me a title and I'll look it up."
	case clarifyNoReference:
		return "Similar to what? Name a show and I'll find ones like it."
	case clarifyNoPreference:
		return "Tell me a genre, a network or a show you enjoyed, and I'll recommend something."
	default:
		return "Could you rephrase that? I'm best with questions about TV series."
	}
}

// NotFound reports an empty lookup without inventing alternatives.
func (c *Composer) NotFound(subject string) string {
	if subject == "" {
		return "I couldn't find anything matching that. Try a different title?"
	}
	return fmt.Sprintf("I couldn't find anything for %q. Try a different spelling or another title?", subject)
}

// TransientFailure covers catalog errors that are not the user's fault.
func (c *Composer) TransientFailure() string {
	return "Sorry, I'm having trouble reaching the series catalog right now. Please try again in a moment."
}

// Fallback covers LLM composition errors during small talk.
func (c *Composer) Fallback() string {
	return "I'm here to chat about TV series. Ask me to search for a show, describe one, or recommend something."
}

// Help explains what the bot can do. Low-confidence classifications get
// a gentler nudge than confident ones.
func (c *Composer) Help(confidence float64) string {
	if confidence > 0 && confidence < 0.4 {
		return "I'm not sure what you're after. You can ask me things like \"find Breaking Bad\", \"tell me about it\" or \"what's similar to The Wire?\"."
	}
	return "I can help you explore TV series. Try \"search for Dark\", \"tell me about Severance\", \"shows like True Detective\" or \"recommend me a sci-fi series\"."
}

// GeneralChat composes a free-form reply for small talk. The system
// prompt forbids fabricated catalog facts; callers fall back to
// Fallback() on error.
func (c *Composer) GeneralChat(ctx context.Context, history []models.Turn, message string) (string, error) {
	var sb strings.Builder
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			sb.WriteString("User: ")
		case models.RoleAssistant:
			sb.WriteString("Assistant: ")
		}
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(message)

	reply, err := c.gen.GenerateWithSystem(ctx, chatSystemPrompt, sb.String(),
		llms.WithTemperature(0.7),
		llms.WithMaxTokens(256),
	)
	if err != nil {
		return "", fmt.Errorf("composing chat reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("composing chat reply: empty completion")
	}
	return reply, nil
}

func writeSummaryList(sb *strings.Builder, results []models.SeriesSummary) {
	for i, r := range results {
		fmt.Fprintf(sb, "%d. **%s**", i+1, r.Name)

		var meta []string
		if r.Year != "" {
			meta = append(meta, r.Year)
		}
		if r.Network != "" {
			meta = append(meta, r.Network)
		}
		if r.Status != "" {
			meta = append(meta, r.Status)
		}
		if len(meta) > 0 {
			fmt.Fprintf(sb, " (%s)", strings.Join(meta, ", "))
		}
		sb.WriteString("\n")

		if r.Overview != "" {
			fmt.Fprintf(sb, "   %s\n", truncateOverview(r.Overview))
		}
	}
}

// airedYear extracts the year from a "2008-01-20" style air date.
func airedYear(firstAired string) string {
	if len(firstAired) < 4 {
		return ""
	}
	return firstAired[:4]
}

func truncateOverview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxOverviewChars {
		return s
	}
	cut := s[:maxOverviewChars]
	if idx := strings.LastIndex(cut, " "); idx > maxOverviewChars/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}
