package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"a1b2.elb.amazonaws.com", "/health", "http://a1b2.elb.amazonaws.com/health"},
		{"http://localhost:5000/", "health", "http://localhost:5000/health"},
		{"https://app.example.com", "", "https://app.example.com/health"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, URL(tt.base, tt.path))
	}
}

func TestWait_BecomesHealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","timestamp":"2025-03-01T12:00:05Z","uptime":"0:00:05","requests_processed":7}`))
	}))
	defer srv.Close()

	c := NewChecker(WithClient(srv.Client()), WithInterval(10*time.Millisecond))
	report, err := c.Wait(context.Background(), srv.URL+"/health", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(7), report.RequestsProcessed)
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestWait_TimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	defer srv.Close()

	c := NewChecker(WithClient(srv.Client()), WithInterval(10*time.Millisecond))
	_, err := c.Wait(context.Background(), srv.URL+"/health", 100*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not become healthy")
	assert.Contains(t, err.Error(), `"starting"`)
}

func TestCheck_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewChecker(WithClient(srv.Client())).Check(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "decoding health response")
}
