package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
)

type stubResolver map[string]Principal

func (s stubResolver) Resolve(_ context.Context, id string) (Principal, error) {
	p, ok := s[id]
	if !ok {
		return Principal{}, apperr.NotFound("user not found")
	}
	return p, nil
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.NewNop()), Metrics())

	res := stubResolver{
		"u1":  {ID: "u1", Role: "user"},
		"adm": {ID: "adm", Role: "admin"},
		"bad": {ID: "bad", Role: "user", Blocked: true},
	}
	authed := r.Group("/", Identity(res))
	authed.GET("/me", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID})
	})
	authed.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, path, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID_EchoedOrGenerated(t *testing.T) {
	r := newRouter()

	w := do(r, "/me", "u1")
	if w.Header().Get(HeaderRequestID) == "" {
		t.Fatalf("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(HeaderRequestID, "rid-123")
	req.Header.Set(HeaderUserID, "u1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "rid-123" {
		t.Fatalf("request id=%q", got)
	}
}

func TestIdentity(t *testing.T) {
	r := newRouter()
	cases := []struct {
		name, path, user string
		want             int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"unknown user", "/me", "ghost", http.StatusUnauthorized},
		{"blocked user", "/me", "bad", http.StatusForbidden},
		{"known user", "/me", "u1", http.StatusOK},
		{"non admin on admin route", "/admin", "u1", http.StatusForbidden},
		{"admin", "/admin", "adm", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.path, tc.user)
			if w.Code != tc.want {
				t.Fatalf("status=%d body=%s (want %d)", w.Code, w.Body.String(), tc.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		err  error
		want int
		body map[string]any
	}{
		{"not found", apperr.NotFound("Order not found"), http.StatusNotFound, map[string]any{"error": "Order not found"}},
		{"wrapped bad request", fmt.Errorf("place: %w", apperr.BadRequest("Not enough stock")), http.StatusBadRequest, map[string]any{"error": "Not enough stock"}},
		{"forbidden with details", apperr.Forbidden("window expired").With("days_since_order", 3), http.StatusForbidden,
			map[string]any{"error": "window expired", "days_since_order": float64(3)}},
		{"plain error hides cause", errors.New("pq: connection refused"), http.StatusInternalServerError, map[string]any{"error": "internal error"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			WriteError(c, tc.err)

			if w.Code != tc.want {
				t.Fatalf("status=%d want=%d", w.Code, tc.want)
			}
			var got map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("json: %v", err)
			}
			for k, v := range tc.body {
				if got[k] != v {
					t.Fatalf("%s=%v want %v (body=%s)", k, got[k], v, w.Body.String())
				}
			}
		})
	}
}
