package models

import (
	"strings"
	"time"
)

// User represents a learner account
type User struct {
	ID            int64
	Username      string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string
	OAuthProvider string
	OAuthSubject  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayName returns the full name, falling back to the username
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// Session represents an authenticated login session
type Session struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Grade levels a profile may hold
const (
	MinGradeLevel = 1
	MaxGradeLevel = 3
)

// Profile holds learner details created alongside the account
type Profile struct {
	UserID     int64
	GradeLevel int
	BirthDate  *time.Time
	UpdatedAt  time.Time
}
