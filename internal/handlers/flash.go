package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"mathdrill/internal/security"
)

// Flash levels
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a one-shot message carried across a redirect
type Flash struct {
	Level   string
	Message string
}

func setFlash(w http.ResponseWriter, r *http.Request, level, message string) {
	value := base64.RawURLEncoding.EncodeToString([]byte(level + "|" + message))
	http.SetCookie(w, security.CreateSessionCookie(r, FlashCookieName, value, time.Now().Add(5*time.Minute)))
}

// popFlash reads the pending flash and clears it
func popFlash(w http.ResponseWriter, r *http.Request) *Flash {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, FlashCookieName))

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	level, message, ok := strings.Cut(string(raw), "|")
	if !ok {
		return &Flash{Level: FlashInfo, Message: level}
	}
	return &Flash{Level: level, Message: message}
}
