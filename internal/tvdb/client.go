package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

// tokenLifetime is how long a login token is reused. TVDB tokens last a
// month; refresh a day early to avoid racing the expiry.
const tokenLifetime = 29 * 24 * time.Hour

// maxSimilar caps the number of similar-series results.
const maxSimilar = 5

// Config holds TVDB API access settings.
type Config struct {
	URL    string
	APIKey string
	Pin    string
}

// Client is a TVDB v4 API client. It handles bearer-token login lazily and
// refreshes the token when it expires or the API returns 401.
// Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	pin        string
	httpClient *http.Client
	logger     *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a TVDB client. No network call is made until the first
// request. A nil logger falls back to slog.Default().
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		pin:        cfg.Pin,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// SearchOptions narrows a series search. All filters are applied client-side
// after the API call, matching the behavior of the /search endpoint which
// only accepts the query term.
type SearchOptions struct {
	Year    string
	Country string
	Network string
	Status  string
	Limit   int
}

// Search finds series by name or keyword, in relevance order.
// An empty result is not an error.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) ([]models.SeriesSummary, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "series")

	var resp struct {
		Data []models.SeriesSummary `json:"data"`
	}
	if err := c.get(ctx, "/search", params, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := resp.Data
	if opts.Year != "" || opts.Country != "" || opts.Network != "" || opts.Status != "" {
		filtered := results[:0]
		for _, s := range results {
			if opts.Year != "" && s.Year != opts.Year {
				continue
			}
			if opts.Country != "" && !strings.Contains(strings.ToLower(s.Country), strings.ToLower(opts.Country)) {
				continue
			}
			if opts.Network != "" && !strings.Contains(strings.ToLower(s.Network), strings.ToLower(opts.Network)) {
				continue
			}
			if opts.Status != "" && !strings.Contains(strings.ToLower(s.Status), strings.ToLower(opts.Status)) {
				continue
			}
			filtered = append(filtered, s)
		}
		results = filtered
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// seriesExtended is the wire format of /series/{id}/extended.
type seriesExtended struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Overview   string  `json:"overview"`
	FirstAired string  `json:"firstAired"`
	LastAired  string  `json:"lastAired"`
	Score      float64 `json:"score"`
	Status     struct {
		Name string `json:"name"`
	} `json:"status"`
	OriginalNetwork struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"originalNetwork"`
	Genres []models.Genre `json:"genres"`
}

// Series fetches the extended record for one series.
// Returns ErrNotFound if the catalog has no such series.
func (c *Client) Series(ctx context.Context, id int) (models.SeriesDetail, error) {
	var resp struct {
		Data seriesExtended `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/series/%d/extended", id), nil, &resp); err != nil {
		return models.SeriesDetail{}, fmt.Errorf("series %d: %w", id, err)
	}

	d := resp.Data
	return models.SeriesDetail{
		ID:         d.ID,
		Name:       d.Name,
		Slug:       d.Slug,
		Overview:   d.Overview,
		Status:     d.Status.Name,
		FirstAired: d.FirstAired,
		LastAired:  d.LastAired,
		Score:      d.Score,
		Network: models.Network{
			ID:      d.OriginalNetwork.ID,
			Name:    d.OriginalNetwork.Name,
			Country: d.OriginalNetwork.Country,
		},
		Genres: d.Genres,
	}, nil
}

// Similar returns series resembling the given one. TVDB has no similarity
// endpoint, so this searches by the series' primary genre and drops the
// original from the results.
func (c *Client) Similar(ctx context.Context, id int) ([]models.SeriesSummary, error) {
	detail, err := c.Series(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(detail.Genres) == 0 {
		return nil, nil
	}

	primary := detail.Genres[0].Name
	results, err := c.Search(ctx, primary, SearchOptions{Limit: maxSimilar * 2})
	if err != nil {
		return nil, fmt.Errorf("similar to %d: %w", id, err)
	}

	similar := make([]models.SeriesSummary, 0, maxSimilar)
	for _, s := range results {
		if n, err := s.NumericID(); err == nil && n == id {
			continue
		}
		similar = append(similar, s)
		if len(similar) == maxSimilar {
			break
		}
	}
	return similar, nil
}

// get performs an authenticated GET, refreshing the token once on 401.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	status, body, err := c.do(ctx, path, params)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.invalidateToken()
		status, body, err = c.do(ctx, path, params)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrUnauthorized
		}
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status != http.StatusOK:
		return fmt.Errorf("unexpected status %d: %s", status, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, params url.Values) (int, []byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return 0, nil, err
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ensureToken returns a valid bearer token, logging in if needed.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	payload := map[string]string{"apikey": c.apiKey}
	if c.pin != "" {
		payload["pin"] = c.pin
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized {
			return "", fmt.Errorf("%w: %s", ErrUnauthorized, truncateBody(body))
		}
		return "", fmt.Errorf("login failed with status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if loginResp.Data.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}

	c.token = loginResp.Data.Token
	c.tokenExpiry = time.Now().Add(tokenLifetime)
	c.logger.Debug("tvdb token refreshed", "expires", c.tokenExpiry)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func truncateBody(body []byte) string {
	const max = 200
	s := string(body)
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
