package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeChecker struct {
	active map[string]bool // key: userID + "/" + creatorID
	err    error
}

func (c *fakeChecker) HasActiveSubscription(_ context.Context, userID, creatorID string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return c.active[userID+"/"+creatorID], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("content"))
	})
}

func TestMiddleware_ActiveSubscriber(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{"user1/c1": true}}
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: CreatorFromQuery("creator"),
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts?creator=c1", nil)
	req.Header.Set("X-User-ID", "user1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "content" {
		t.Errorf("Expected gated content, got %s", rec.Body.String())
	}
}

func TestMiddleware_NoSubscription(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{}}
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: FixedCreator("c1"),
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("X-User-ID", "user1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rec.Code)
	}
}

func TestMiddleware_Unauthenticated(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{"user1/c1": true}}
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: FixedCreator("c1"),
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestMiddleware_CheckerError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("store down")}
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: FixedCreator("c1"),
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("X-User-ID", "user1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
}

func TestMiddleware_CustomCallbacks(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{}}
	deniedCalled := false
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: FixedCreator("c1"),
		OnDenied: func(w http.ResponseWriter, r *http.Request) {
			deniedCalled = true
			w.WriteHeader(http.StatusPaymentRequired)
		},
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("X-User-ID", "user1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !deniedCalled {
		t.Error("Expected OnDenied callback")
	}
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("Expected status 402, got %d", rec.Code)
	}
}

func TestMiddleware_FromContext(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{"user1/c1": true}}
	mw := Middleware(Config{
		Checker:      checker,
		GetUserID:    FromContext(UserIDKey),
		GetCreatorID: FixedCreator("c1"),
	})
	handler := mw(okHandler())

	req := httptest.NewRequest("GET", "/posts", nil)
	req = req.WithContext(WithUserID(req.Context(), "user1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestHandlerFunc(t *testing.T) {
	checker := &fakeChecker{active: map[string]bool{"user1/c1": true}}
	wrap := HandlerFunc(Config{
		Checker:      checker,
		GetUserID:    FromHeader("X-User-ID"),
		GetCreatorID: FixedCreator("c1"),
	})
	handler := wrap(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/posts", nil)
	req.Header.Set("X-User-ID", "user1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}
