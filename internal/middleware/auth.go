// Package middleware содержит HTTP middleware сервиса лаборатории.
package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	sessionCookieName = "lab_session"

	// DefaultSessionTTL задаёт срок жизни сессии после входа.
	DefaultSessionTTL = 30 * time.Minute
)

// SessionGate пускает к API только с подписанным cookie сессии, выданным
// после ввода общей парольной фразы.
type SessionGate struct {
	enabled    bool
	passphrase [sha256.Size]byte
	secretKey  []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewSessionGate создаёт SessionGate. При пустом secret ключ подписи
// генерируется случайно, и сессии не переживают перезапуск. При пустой
// парольной фразе вход невозможен.
func NewSessionGate(passphrase, secret string, ttl time.Duration) *SessionGate {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &SessionGate{
		enabled:    passphrase != "",
		passphrase: sha256.Sum256([]byte(passphrase)),
		secretKey:  key,
		ttl:        ttl,
		now:        time.Now,
	}
}

// CheckPassphrase сравнивает фразу с настроенной за постоянное время.
func (g *SessionGate) CheckPassphrase(p string) bool {
	got := sha256.Sum256([]byte(p))
	return subtle.ConstantTimeCompare(got[:], g.passphrase[:]) == 1 && g.enabled
}

// Middleware отклоняет запросы без действующего cookie сессии.
func (g *SessionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		if !g.valid(cookie.Value) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SetSessionCookie выдаёт cookie сессии, действующий ttl с текущего момента.
func (g *SessionGate) SetSessionCookie(w http.ResponseWriter) {
	expires := g.now().Add(g.ttl)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    g.sign(expires.Unix()),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func (g *SessionGate) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *SessionGate) sign(expires int64) string {
	value := strconv.FormatInt(expires, 10)
	return value + "." + g.signature(value)
}

func (g *SessionGate) signature(value string) string {
	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *SessionGate) valid(cookieValue string) bool {
	value, signature, ok := strings.Cut(cookieValue, ".")
	if !ok {
		return false
	}

	if !hmac.Equal([]byte(signature), []byte(g.signature(value))) {
		return false
	}

	expires, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return false
	}

	return g.now().Unix() < expires
}
