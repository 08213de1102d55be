package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sessionCookie(t *testing.T, g *SessionGate) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	g.SetSessionCookie(w)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetSessionCookie")
	}
	return cookies[0]
}

func serve(g *SessionGate, cookie *http.Cookie) (int, bool) {
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	g.Middleware(next).ServeHTTP(w, r)
	return w.Result().StatusCode, nextCalled
}

func TestSessionGate_WithValidCookie(t *testing.T) {
	g := NewSessionGate("admin", "test-secret", time.Minute)

	_, nextCalled := serve(g, sessionCookie(t, g))
	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestSessionGate_WithoutCookie(t *testing.T) {
	g := NewSessionGate("admin", "test-secret", time.Minute)

	status, nextCalled := serve(g, nil)
	if nextCalled {
		t.Fatalf("next handler should not be called")
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", status, http.StatusUnauthorized)
	}
}

func TestSessionGate_ExpiredCookie(t *testing.T) {
	g := NewSessionGate("admin", "test-secret", 30*time.Minute)
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return start }

	cookie := sessionCookie(t, g)

	g.now = func() time.Time { return start.Add(29 * time.Minute) }
	if _, ok := serve(g, cookie); !ok {
		t.Fatalf("session must be valid before ttl")
	}

	g.now = func() time.Time { return start.Add(30 * time.Minute) }
	status, ok := serve(g, cookie)
	if ok || status != http.StatusUnauthorized {
		t.Fatalf("expired session accepted: status %d", status)
	}
}

func TestSessionGate_TamperedCookie(t *testing.T) {
	g := NewSessionGate("admin", "test-secret", time.Minute)
	cookie := sessionCookie(t, g)

	value, sig, _ := strings.Cut(cookie.Value, ".")
	cookie.Value = value + "9." + sig

	if status, ok := serve(g, cookie); ok || status != http.StatusUnauthorized {
		t.Fatalf("tampered session accepted: status %d", status)
	}

	other := NewSessionGate("admin", "other-secret", time.Minute)
	if _, ok := serve(other, sessionCookie(t, g)); ok {
		t.Fatalf("cookie signed with another key accepted")
	}
}

func TestSessionGate_CheckPassphrase(t *testing.T) {
	g := NewSessionGate("admin", "", 0)

	if !g.CheckPassphrase("admin") {
		t.Fatalf("correct passphrase rejected")
	}
	if g.CheckPassphrase("Admin") || g.CheckPassphrase("") {
		t.Fatalf("wrong passphrase accepted")
	}
	if NewSessionGate("", "", 0).CheckPassphrase("") {
		t.Fatalf("empty passphrase must disable login")
	}
	if g.ttl != DefaultSessionTTL {
		t.Fatalf("ttl = %s, want %s", g.ttl, DefaultSessionTTL)
	}
}

func TestSessionGate_ClearSessionCookie(t *testing.T) {
	g := NewSessionGate("admin", "test-secret", time.Minute)

	w := httptest.NewRecorder()
	g.ClearSessionCookie(w)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
}
