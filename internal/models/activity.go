package models

import "time"

// ActivityType identifies an ActivityLog entry kind
type ActivityType string

const (
	ActivityRegistration    ActivityType = "registration"
	ActivityLogin           ActivityType = "login"
	ActivityLogout          ActivityType = "logout"
	ActivityProfileUpdate   ActivityType = "profile_update"
	ActivitySessionStart    ActivityType = "session_start"
	ActivitySessionComplete ActivityType = "session_complete"
)

// Label returns a human readable name for the activity type
func (t ActivityType) Label() string {
	switch t {
	case ActivityRegistration:
		return "Registration"
	case ActivityLogin:
		return "Login"
	case ActivityLogout:
		return "Logout"
	case ActivityProfileUpdate:
		return "Profile update"
	case ActivitySessionStart:
		return "Practice started"
	case ActivitySessionComplete:
		return "Practice completed"
	default:
		return string(t)
	}
}

// ActivityLog is an append-only user event
type ActivityLog struct {
	ID           int64
	UserID       int64
	ActivityType ActivityType
	Description  string
	CreatedAt    time.Time
}
