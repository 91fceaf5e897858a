package bitbucket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRateLimit removes throttling from unit tests.
var testRateLimit = RateLimitConfig{RequestsPerSecond: 10000, BurstSize: 10000}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return NewClient(
		context.Background(),
		Credentials{Username: "robot", Password: "app-password"},
		slog.New(slog.DiscardHandler),
		WithBaseURL(srv.URL),
		WithRateLimit(testRateLimit),
	)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_getJSON(t *testing.T) {
	t.Run("sends basic auth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "robot", user)
			assert.Equal(t, "app-password", pass)
			writeJSON(t, w, map[string]any{})
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(t, srv).getJSON(context.Background(), srv.URL+"/anything", &out)

		require.NoError(t, err)
	})

	t.Run("typed error on failure status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "token expired", http.StatusUnauthorized)
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(t, srv).getJSON(context.Background(), srv.URL+"/members", &out)

		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Contains(t, apiErr.Message, "token expired")
	})

	t.Run("429 is rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		var out map[string]any
		err := testClient(t, srv).getJSON(context.Background(), srv.URL+"/members", &out)

		assert.True(t, IsRateLimited(err))
	})

	t.Run("rejects empty URL", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		var out map[string]any
		err := testClient(t, srv).getJSON(context.Background(), "", &out)

		assert.ErrorIs(t, err, ErrEmptyPageURL)
	})
}

func TestWithPageLen(t *testing.T) {
	t.Run("appends to a bare URL", func(t *testing.T) {
		got := withPageLen("https://api.example.com/commits", 100)

		assert.Equal(t, "https://api.example.com/commits?pagelen=100", got)
	})

	t.Run("preserves an existing query", func(t *testing.T) {
		got := withPageLen("https://api.example.com/commits?foo=bar", 100)

		assert.Contains(t, got, "foo=bar")
		assert.Contains(t, got, "pagelen=100")
	})
}
