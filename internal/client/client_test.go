package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/seriesbot-go/internal/models"
)

func TestChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)

		var req models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "find Dark", req.Message)
		assert.Equal(t, "abc-123", req.SessionID)

		json.NewEncoder(w).Encode(models.ChatResponse{Message: "Found it.", SessionID: "abc-123"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	resp, err := c.Chat(context.Background(), "find Dark", "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "Found it.", resp.Message)
	assert.Equal(t, "abc-123", resp.SessionID)
}

func TestChatServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "message must not be empty"})
	}))
	defer ts.Close()

	c := New(ts.URL)
	_, err := c.Chat(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message must not be empty")
}

func TestHealth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	require.NoError(t, New(ts.URL).Health(context.Background()))
}

func TestHealthDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	require.Error(t, New(ts.URL).Health(context.Background()))
}

func TestBaseURLTrimsTrailingSlash(t *testing.T) {
	c := New("http://example.test:8487/")
	assert.Equal(t, "http://example.test:8487", c.baseURL)
}
