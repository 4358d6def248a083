package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

// extractSystemPrompt enumerates the closed intent set and the slot
// schema. The model is told to answer with a bare JSON object; anything
// else is normalized away by ParseIntentReply.
const extractSystemPrompt = `You classify user messages about TV series into intents and extract slots.

Intents (use exactly one):
- SEARCH_BY_TITLE: the user wants to find series by name or keyword
- GET_DETAILS: the user wants information about one specific series
- FIND_SIMILAR: the user wants shows similar to a specific series
- RECOMMEND_BY_PREFERENCE: the user wants suggestions based on genre, network or taste
- GENERAL_CHAT: greeting, small talk, or anything not about the catalog
- UNKNOWN: the request is unclear

Slots (include only when mentioned in the current message):
- title: name of a TV series
- genre: genre of interest
- similar_to: the series a similarity request refers to
- year: year of release
- network: TV network
- actor: actor name

Follow-up references like "it", "that show" or "something like that" refer to
the series discussed earlier in the conversation; leave the slot empty in that
case rather than guessing a name.

Respond with only a JSON object, no prose:
{"intent": "...", "slots": {"title": "..."}, "confidence": 0.0}

confidence is your certainty in the intent between 0.0 and 1.0.`

// Extractor turns the latest user message, in the context of the
// conversation so far, into a normalized IntentResult.
type Extractor struct {
	gen    Generator
	logger *slog.Logger
}

// NewExtractor creates an intent extractor. A nil logger falls back to
// slog.Default().
func NewExtractor(gen Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{gen: gen, logger: logger}
}

// Extract issues one LLM call and defensively parses the reply. The
// result always carries an intent from the closed set: malformed output
// and transport errors both degrade to UNKNOWN with empty slots, so the
// orchestrator's dispatch domain stays closed.
func (e *Extractor) Extract(ctx context.Context, history []models.Turn, message string) models.IntentResult {
	reply, err := e.gen.GenerateWithSystem(ctx, extractSystemPrompt, extractUserPrompt(history, message),
		llms.WithTemperature(0.2),
		llms.WithMaxTokens(300),
	)
	if err != nil {
		e.logger.Warn("intent extraction call failed", "error", err)
		return models.IntentResult{Intent: models.IntentUnknown}
	}

	result := ParseIntentReply(reply)
	if result.Intent == models.IntentUnknown && result.Slots.IsZero() {
		e.logger.Debug("intent normalized to UNKNOWN", "reply", truncate(reply, 200))
	}
	return result
}

// extractUserPrompt embeds the truncated history so follow-ups can be
// classified in context.
func extractUserPrompt(history []models.Turn, message string) string {
	if len(history) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			b.WriteString("User: ")
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nThe user's current message is: %s", message)
	return b.String()
}

// intentReply is the wire format expected back from the model.
type intentReply struct {
	Intent     string         `json:"intent"`
	Slots      models.SlotSet `json:"slots"`
	Confidence float64        `json:"confidence"`
}

// ParseIntentReply parses the model's structured reply. The model is an
// untrusted, free-text-adjacent source: the JSON object is sliced out of
// whatever surrounds it, and any parse failure or out-of-set intent
// yields UNKNOWN with an empty SlotSet.
func ParseIntentReply(raw string) models.IntentResult {
	unknown := models.IntentResult{Intent: models.IntentUnknown}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return unknown
	}

	var reply intentReply
	if err := json.Unmarshal([]byte(raw[start:end+1]), &reply); err != nil {
		return unknown
	}

	intent, ok := models.ParseIntent(reply.Intent)
	if !ok {
		return unknown
	}

	confidence := reply.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}

	return models.IntentResult{
		Intent:     intent,
		Slots:      trimSlots(reply.Slots),
		Confidence: confidence,
	}
}

func trimSlots(s models.SlotSet) models.SlotSet {
	return models.SlotSet{
		Title:     strings.TrimSpace(s.Title),
		Genre:     strings.TrimSpace(s.Genre),
		SimilarTo: strings.TrimSpace(s.SimilarTo),
		Year:      strings.TrimSpace(s.Year),
		Network:   strings.TrimSpace(s.Network),
		Actor:     strings.TrimSpace(s.Actor),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
