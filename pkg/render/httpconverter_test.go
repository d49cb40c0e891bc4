package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conversionService is a minimal in-memory stand-in for the converter
// API: it records progress reports and flips ready per job on demand.
type conversionService struct {
	mu      sync.Mutex
	cursors map[string][]string
	ready   map[string]bool
}

func newConversionService() *conversionService {
	return &conversionService{
		cursors: make(map[string][]string),
		ready:   make(map[string]bool),
	}
}

func (s *conversionService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/conversions/{id}/progress", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cursor string `json:"cursor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.cursors[r.PathValue("id")] = append(s.cursors[r.PathValue("id")], body.Cursor)
		s.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /v1/conversions/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ready := s.ready[r.PathValue("id")]
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ready": ready})
	})
	return mux
}

func (s *conversionService) setReady(jobID string) {
	s.mu.Lock()
	s.ready[jobID] = true
	s.mu.Unlock()
}

func (s *conversionService) reported(jobID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cursors[jobID]...)
}

func TestHTTPConverter(t *testing.T) {
	svc := newConversionService()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	c := NewHTTPConverter(srv.URL + "/")
	ctx := context.Background()

	require.NoError(t, c.Report(ctx, "job-1", "alpha"))
	require.NoError(t, c.Report(ctx, "job-1", "beta"))
	assert.Equal(t, []string{"alpha", "beta"}, svc.reported("job-1"))

	ready, err := c.Ready(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ready)

	svc.setReady("job-1")
	ready, err = c.Ready(ctx, "job-1")
	require.NoError(t, err)
	assert.True(t, ready)
}

func TestHTTPConverter_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPConverter(srv.URL)
	ctx := context.Background()

	err := c.Report(ctx, "job-1", "alpha")
	assert.ErrorContains(t, err, "unexpected status 502")

	_, err = c.Ready(ctx, "job-1")
	assert.ErrorContains(t, err, "unexpected status 502")
}

func TestHTTPConverter_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	c := NewHTTPConverter(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ready(ctx, "job-1")
	assert.Error(t, err)
}
