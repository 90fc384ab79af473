package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		deps     []Dependency
		wantCode int
		want     map[string]string
	}{
		{
			name:     "all up",
			deps:     []Dependency{{Name: "store", Ping: up, Required: true}, {Name: "redis", Ping: up}},
			wantCode: http.StatusOK,
			want:     map[string]string{"store": "healthy", "redis": "healthy"},
		},
		{
			name:     "redis down degrades",
			deps:     []Dependency{{Name: "store", Ping: up, Required: true}, {Name: "redis", Ping: down}},
			wantCode: http.StatusOK,
			want:     map[string]string{"store": "healthy", "redis": "degraded: connection refused"},
		},
		{
			name:     "store down",
			deps:     []Dependency{{Name: "store", Ping: down, Required: true}, {Name: "redis", Ping: up}},
			wantCode: http.StatusServiceUnavailable,
			want:     map[string]string{"store": "unhealthy: connection refused", "redis": "healthy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("test", tt.deps...)
			r := gin.New()
			r.GET("/readyz", h.Readiness)
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("readyz: got %d, want %d", w.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			for name, want := range tt.want {
				if resp.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, resp.Checks[name], want)
				}
			}

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("health: got %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
