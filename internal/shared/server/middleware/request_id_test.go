package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c))
	})

	tests := []struct {
		name     string
		header   string
		wantEcho bool
	}{
		{name: "echo", header: "abc-123", wantEcho: true},
		{name: "missing", header: "", wantEcho: false},
		{name: "spaces rejected", header: "bad id", wantEcho: false},
		{name: "too long", header: strings.Repeat("a", 200), wantEcho: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/id", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-Id", tt.header)
			}
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			got := resp.Header().Get("X-Request-Id")
			if got == "" {
				t.Fatalf("expected X-Request-Id header")
			}
			if resp.Body.String() != got {
				t.Fatalf("context id %q does not match header %q", resp.Body.String(), got)
			}
			if tt.wantEcho && got != tt.header {
				t.Fatalf("expected echoed id %q, got %q", tt.header, got)
			}
			if !tt.wantEcho && got == tt.header {
				t.Fatalf("expected generated id, got echoed %q", got)
			}
		})
	}
}
