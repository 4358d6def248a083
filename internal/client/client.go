// Package client provides an HTTP client for the seriesbot server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/seriesbot-go/internal/metrics"
	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

// Client talks to a running seriesbot server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
// If baseURL is empty, uses SERIESBOT_SERVER_URL env var or defaults to localhost:8487.
// Timeout can be configured via SERIESBOT_CLIENT_TIMEOUT env var (default 2m for LLM-backed turns).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("SERIESBOT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8487"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("SERIESBOT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Chat sends one message and returns the bot's reply. Pass an empty
// sessionID on the first turn; the response carries the id to echo on
// subsequent turns.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (models.ChatResponse, error) {
	reqBody, err := json.Marshal(models.ChatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp models.ChatResponse
	if err := c.do(req, &resp); err != nil {
		return models.ChatResponse{}, err
	}
	return resp, nil
}

// Stats returns the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (metrics.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	if err != nil {
		return metrics.Snapshot{}, fmt.Errorf("create request: %w", err)
	}

	var snap metrics.Snapshot
	if err := c.do(req, &snap); err != nil {
		return metrics.Snapshot{}, err
	}
	return snap, nil
}

// Health probes the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server error: %s - %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("server error: %s", resp.Status)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Stream is a persistent WebSocket chat connection. It is not safe for
// concurrent use; interactive clients drive it from a single loop.
type Stream struct {
	conn      *websocket.Conn
	sessionID string
}

// OpenStream connects to the server's WebSocket chat endpoint.
func (c *Client) OpenStream(ctx context.Context) (*Stream, error) {
	wsURL := c.baseURL + "/api/chat/ws"
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Chat sends one message over the stream and waits for the reply. The
// session id is tracked internally so follow-ups stay in context.
func (s *Stream) Chat(message string) (models.ChatResponse, error) {
	req := models.ChatRequest{Message: message, SessionID: s.sessionID}
	if err := s.conn.WriteJSON(req); err != nil {
		return models.ChatResponse{}, fmt.Errorf("send message: %w", err)
	}

	var resp models.ChatResponse
	if err := s.conn.ReadJSON(&resp); err != nil {
		return models.ChatResponse{}, fmt.Errorf("read reply: %w", err)
	}
	s.sessionID = resp.SessionID
	return resp, nil
}

// SessionID returns the session established by the first reply.
func (s *Stream) SessionID() string {
	return s.sessionID
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.conn.Close()
}
