package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placesync/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
	}
}

func newTestClient(url string) Client {
	return NewClient("test-key", WithBaseURL(url), WithRateLimit(1000), WithRetry(fastRetry()))
}

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/textsearch/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "gym in Seattle, WA", r.URL.Query().Get("query"))
		assert.Equal(t, "gym", r.URL.Query().Get("type"))
		assert.Empty(t, r.URL.Query().Get("pagetoken"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","next_page_token":"tok-2","results":[{"place_id":"g1","name":"Joe's Gym"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{
		Query: "gym in Seattle, WA",
		Type:  "gym",
	})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.JSONEq(t, `{"place_id":"g1","name":"Joe's Gym"}`, string(resp.Results[0]))
	assert.Equal(t, "tok-2", resp.NextPageToken)
	assert.Equal(t, "OK", resp.Status)
}

func TestTextSearch_PageTokenOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-2", r.URL.Query().Get("pagetoken"))
		assert.Empty(t, r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"status":"OK","results":[]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{
		Query:     "ignored",
		PageToken: "tok-2",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Empty(t, resp.NextPageToken)
}

func TestTextSearch_ZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{Query: "nothing"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestTextSearch_RequestDenied(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{Query: "gym"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
	assert.Equal(t, int32(1), calls.Load())
}

func TestTextSearch_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"g1"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{Query: "gym"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTextSearch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{Query: "gym"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDetails_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "g1", r.URL.Query().Get("place_id"))
		assert.Equal(t, DetailsFields, r.URL.Query().Get("fields"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"result": map[string]any{"place_id": "g1", "website": "http://joes.gym"},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Details(context.Background(), "g1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"place_id":"g1","website":"http://joes.gym"}`, string(result))
}

func TestDetails_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Details(context.Background(), "gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestCheckAPIStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		paging    bool
		wantErr   bool
		transient bool
	}{
		{"ok", "OK", false, false, false},
		{"zero results", "ZERO_RESULTS", false, false, false},
		{"over limit", "OVER_QUERY_LIMIT", false, true, true},
		{"unknown error", "UNKNOWN_ERROR", false, true, true},
		{"invalid request paging", "INVALID_REQUEST", true, true, true},
		{"invalid request", "INVALID_REQUEST", false, true, false},
		{"denied", "REQUEST_DENIED", false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAPIStatus(tt.status, "", tt.paging)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestTextSearch_RetriesOverQueryLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"slow down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"place_id":"g1"}]}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).TextSearch(context.Background(), TextSearchRequest{Query: "gym"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, int32(2), calls.Load())
}
