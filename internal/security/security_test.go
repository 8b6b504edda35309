package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHashPassword(t *testing.T) {
	password := "testPassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "" || hash == password {
		t.Fatal("HashPassword() returned an unusable hash")
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"correct password", password, hash, true},
		{"wrong password", "wrongPassword", hash, false},
		{"empty hash", password, "", false},
		{"garbage hash", password, "not-a-bcrypt-hash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCSRFGenerator(t *testing.T) {
	g := NewCSRFGenerator("secret")

	token, err := g.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if !g.ValidateToken("session-1", token) {
		t.Error("token should validate for its own session")
	}
	if g.ValidateToken("session-2", token) {
		t.Error("token must not validate for another session")
	}
	if NewCSRFGenerator("other").ValidateToken("session-1", token) {
		t.Error("token must not validate under another secret")
	}
	if _, err := g.GenerateToken(""); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("fourth request inside the window should be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("another client has its own bucket")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.1:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.1:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateSessionCookieSecureFlag(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if CreateSessionCookie(r, SessionCookieName, "v", time.Now()).Secure {
		t.Error("plain HTTP request should not produce a Secure cookie")
	}

	r.Header.Set("X-Forwarded-Proto", "https")
	cookie := CreateSessionCookie(r, SessionCookieName, "v", time.Now())
	if !cookie.Secure || !cookie.HttpOnly {
		t.Errorf("cookie flags = secure:%v httponly:%v", cookie.Secure, cookie.HttpOnly)
	}
	if del := CreateDeleteCookie(r, SessionCookieName); del.MaxAge != -1 {
		t.Errorf("delete cookie MaxAge = %d, want -1", del.MaxAge)
	}
}
