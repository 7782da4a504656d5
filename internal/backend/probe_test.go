package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProber_IsReachable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, false},
		{"redirect not followed to success", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewHTTPProber(srv.URL, time.Second)
			if got := p.IsReachable(context.Background()); got != tt.want {
				t.Errorf("IsReachable() = %v, want %v", got, tt.want)
			}
			if gotPath != "/api/v1/models/current" {
				t.Errorf("probe path = %q, want /api/v1/models/current", gotPath)
			}
		})
	}
}

func TestHTTPProber_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewHTTPProber(srv.URL, 200*time.Millisecond)
	if p.IsReachable(context.Background()) {
		t.Error("IsReachable() = true for closed server")
	}
}

func TestHTTPProber_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewHTTPProber(srv.URL, time.Second)
	if p.IsReachable(ctx) {
		t.Error("IsReachable() = true with cancelled context")
	}
}
