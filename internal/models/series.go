// Package models defines data structures shared across the seriesbot components.
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Genre is a catalog genre as returned by TVDB.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Network is the broadcasting network of a series.
type Network struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// SeriesSummary is the shallow projection returned by catalog search.
// IDs from the TVDB search endpoint arrive as "series-12345" strings;
// use NumericID to get the numeric form.
type SeriesSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Overview string `json:"overview,omitempty"`
	Year     string `json:"year,omitempty"`
	Country  string `json:"country,omitempty"`
	Network  string `json:"network,omitempty"`
	Status   string `json:"status,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// SeriesDetail is the extended catalog record for a single series.
type SeriesDetail struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug,omitempty"`
	Overview   string  `json:"overview,omitempty"`
	Status     string  `json:"status,omitempty"`
	FirstAired string  `json:"first_aired,omitempty"`
	LastAired  string  `json:"last_aired,omitempty"`
	Score      float64 `json:"score,omitempty"`
	Network    Network `json:"network,omitempty"`
	Genres     []Genre `json:"genres,omitempty"`
}

// GenreNames returns the genre names of a detail record in catalog order.
func (d SeriesDetail) GenreNames() []string {
	names := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		names = append(names, g.Name)
	}
	return names
}

// NumericID extracts the numeric series ID from a search result.
// Accepts both the "series-12345" form and plain numeric strings.
func (s SeriesSummary) NumericID() (int, error) {
	return ParseSeriesID(s.ID)
}

// ParseSeriesID converts a catalog ID string into its numeric form.
func ParseSeriesID(id string) (int, error) {
	trimmed := strings.TrimPrefix(id, "series-")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid series ID %q: %w", id, err)
	}
	return n, nil
}
