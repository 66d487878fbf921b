package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grant-engine/internal/common/config"
	"grant-engine/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string, maxRetries, maxConcurrent int) *Client {
	cfg := &config.BackendConfig{
		BaseURL:               baseURL,
		APIKey:                "test-key",
		Timeout:               2000,
		MaxRetries:            maxRetries,
		MaxConcurrentRequests: maxConcurrent,
	}
	return NewClient(cfg, logger.NewTestLogger(t))
}

func TestAnnotate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, annotatePath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"annotations":[{"excerpt":"must be registered","label":"mandatory","category":"legal","exactness":0.9}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 2)
	resp, err := c.Annotate(context.Background(), &AnnotateRequest{Text: "Applicants must be registered.", Focus: "requirements"})
	require.NoError(t, err)
	require.Len(t, resp.Annotations, 1)
	assert.Equal(t, "legal", resp.Annotations[0].Category)
}

func TestAnnotate_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"annotations":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3, 2)
	_, err := c.Annotate(context.Background(), &AnnotateRequest{Text: "text", Focus: "requirements"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestAnnotate_UnavailableAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2, 2)
	_, err := c.Annotate(context.Background(), &AnnotateRequest{Text: "text", Focus: "requirements"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_UNAVAILABLE")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestAnnotate_DeadlineMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"annotations":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Annotate(ctx, &AnnotateRequest{Text: "text", Focus: "requirements"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_TIMEOUT")
}

func TestAnnotate_DisabledWithoutBaseURL(t *testing.T) {
	c := newTestClient(t, "", 0, 1)
	assert.False(t, c.Enabled())

	_, err := c.Annotate(context.Background(), &AnnotateRequest{Text: "text", Focus: "requirements"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_UNAVAILABLE")
}

func TestAnnotate_BoundsConcurrentRequests(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.Write([]byte(`{"annotations":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Annotate(context.Background(), &AnnotateRequest{Text: "text", Focus: "requirements"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2), "admission pool must bound in-flight requests")
}
