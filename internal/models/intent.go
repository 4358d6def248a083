package models

import "strings"

// Intent is the closed-set classification of what the user wants done this turn.
type Intent string

const (
	IntentSearchByTitle         Intent = "SEARCH_BY_TITLE"
	IntentGetDetails            Intent = "GET_DETAILS"
	IntentFindSimilar           Intent = "FIND_SIMILAR"
	IntentRecommendByPreference Intent = "RECOMMEND_BY_PREFERENCE"
	IntentGeneralChat           Intent = "GENERAL_CHAT"
	IntentUnknown               Intent = "UNKNOWN"
)

// AllIntents lists the closed intent set in prompt order.
var AllIntents = []Intent{
	IntentSearchByTitle,
	IntentGetDetails,
	IntentFindSimilar,
	IntentRecommendByPreference,
	IntentGeneralChat,
	IntentUnknown,
}

// ParseIntent maps a raw string onto the closed intent set.
// Returns false for anything outside the set so the caller can
// normalize to IntentUnknown instead of dispatching on garbage.
func ParseIntent(s string) (Intent, bool) {
	candidate := Intent(strings.ToUpper(strings.TrimSpace(s)))
	for _, intent := range AllIntents {
		if candidate == intent {
			return intent, true
		}
	}
	return IntentUnknown, false
}

// SlotSet holds the slots extracted from a single user message.
// All fields are optional; an empty value means the slot was not
// mentioned this turn and must be resolved from carried session slots.
type SlotSet struct {
	Title     string `json:"title,omitempty"`
	Genre     string `json:"genre,omitempty"`
	SimilarTo string `json:"similar_to,omitempty"`
	Year      string `json:"year,omitempty"`
	Network   string `json:"network,omitempty"`
	Actor     string `json:"actor,omitempty"`
}

// IsZero reports whether no slot was extracted.
func (s SlotSet) IsZero() bool {
	return s == SlotSet{}
}

// IntentResult is the normalized output of the intent extractor.
// Confidence is advisory; low-confidence UNKNOWN results may trigger a
// clarifying question instead of a lookup.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Slots      SlotSet `json:"slots"`
	Confidence float64 `json:"confidence"`
}

// CarriedSlots are the slot values persisted across turns in session
// memory, used to resolve follow-up references ("tell me more about it").
type CarriedSlots struct {
	LastSeriesID int    `json:"last_series_id,omitempty"`
	LastTitle    string `json:"last_title,omitempty"`
	LastGenre    string `json:"last_genre,omitempty"`

	// Accumulated preferences, fed into RECOMMEND_BY_PREFERENCE lookups.
	FavoriteGenres    []string `json:"favorite_genres,omitempty"`
	FavoriteNetworks  []string `json:"favorite_networks,omitempty"`
	FavoriteActors    []string `json:"favorite_actors,omitempty"`
}

// Merge combines carried slots with a partial update. Scalar fields keep
// their existing value unless the update carries a non-zero one; list
// fields are unioned preserving first-seen order.
func (c CarriedSlots) Merge(update CarriedSlots) CarriedSlots {
	out := c
	if update.LastSeriesID != 0 {
		out.LastSeriesID = update.LastSeriesID
	}
	if update.LastTitle != "" {
		out.LastTitle = update.LastTitle
	}
	if update.LastGenre != "" {
		out.LastGenre = update.LastGenre
	}
	out.FavoriteGenres = appendUnique(out.FavoriteGenres, update.FavoriteGenres)
	out.FavoriteNetworks = appendUnique(out.FavoriteNetworks, update.FavoriteNetworks)
	out.FavoriteActors = appendUnique(out.FavoriteActors, update.FavoriteActors)
	return out
}

func appendUnique(existing, extra []string) []string {
	for _, v := range extra {
		if v == "" {
			continue
		}
		found := false
		for _, e := range existing {
			if strings.EqualFold(e, v) {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, v)
		}
	}
	return existing
}
