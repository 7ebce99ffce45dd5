package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/folio/internal/db"
	"github.com/folio/internal/middleware"
	"github.com/folio/internal/service"
)

type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (middleware.Decision, error) {
	return middleware.Decision{Allowed: false, Limit: 5, RetryAfter: time.Minute}, nil
}

func newContactRouter(t *testing.T, limiter middleware.Limiter) (*gin.Engine, *stubHTMLRender, *API) {
	t.Helper()
	gdb, err := db.Open(fmt.Sprintf("file:contact-handler-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	api := NewAPI(Deps{Contact: service.NewContactService(gdb, nil, "", "salt")})

	gin.SetMode(gin.TestMode)
	renderer := &stubHTMLRender{}
	router := gin.New()
	router.HTMLRender = renderer
	router.Use(sessions.Sessions(SessionName, cookie.NewStore([]byte("test-secret"))))
	router.POST("/contact", middleware.RateLimit(limiter, middleware.RateLimitConfig{
		Message:   "Too many messages, please try again in a minute.",
		OnLimited: api.ContactRateLimited,
	}), api.SubmitContact)
	router.GET("/admin/api/contact-messages", api.ListContactMessages)
	return router, renderer, api
}

func postContact(router *gin.Engine, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSubmitContactHTMX(t *testing.T) {
	router, renderer, _ := newContactRouter(t, nil)

	rr := postContact(router, url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "message": {"Hello"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	name, data := renderer.last()
	if name != "contact_result.html" || data["sent"] != true {
		t.Fatalf("unexpected render %s %+v", name, data)
	}
	if msgs := toastMessages(data); len(msgs) != 1 || msgs[0] != contactSentMessage {
		t.Fatalf("unexpected toasts %v", msgs)
	}

	rr = postContact(router, url.Values{"name": {"Ann"}, "email": {"not-an-address"}, "message": {"Hello"}}, true)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	_, data = renderer.last()
	if data["sent"] != false {
		t.Fatalf("expected unsent result")
	}
}

func TestSubmitContactWithoutHTMXRedirects(t *testing.T) {
	router, _, _ := newContactRouter(t, nil)

	rr := postContact(router, url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "message": {"Hello"}}, false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/#contact" {
		t.Fatalf("expected redirect to contact section, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestSubmitContactRateLimited(t *testing.T) {
	router, renderer, _ := newContactRouter(t, denyLimiter{})

	rr := postContact(router, url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "message": {"Hello"}}, true)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header, got %q", rr.Header().Get("Retry-After"))
	}
	_, data := renderer.last()
	if msgs := toastMessages(data); len(msgs) != 1 || !strings.HasPrefix(msgs[0], "Too many messages") {
		t.Fatalf("unexpected toasts %v", msgs)
	}
}

func TestListContactMessages(t *testing.T) {
	router, _, _ := newContactRouter(t, nil)
	for _, name := range []string{"Ann", "Ben"} {
		postContact(router, url.Values{"name": {name}, "email": {"x@example.com"}, "message": {"hi"}}, true)
	}

	rr, body := doJSON(t, router, http.MethodGet, "/admin/api/contact-messages?per_page=1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["total"].(float64) != 2 || body["total_pages"].(float64) != 2 {
		t.Fatalf("unexpected page %v", body)
	}
}

func TestSubmitContactUnavailable(t *testing.T) {
	api := NewAPI(Deps{})
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.HTMLRender = &stubHTMLRender{}
	router.Use(sessions.Sessions(SessionName, cookie.NewStore([]byte("test-secret"))))
	router.POST("/contact", api.SubmitContact)

	rr := postContact(router, url.Values{"name": {"Ann"}}, true)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
