package domain

import "time"

// Session represents a persisted login session bound to a single (user, device) pair.
// At most one non-deleted session exists per pair; CreatedAt and ExpiresAt mirror the
// issued-at and expiry of the most recently minted token pair.
type Session struct {
	ID           string
	UserID       string
	DeviceID     string
	DeviceName   string
	IP           string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	TokenVersion int64
	DeletedAt    *time.Time
}

// IsActive reports whether the session is live (not soft-deleted and not expired at the supplied moment).
func (s Session) IsActive(at time.Time) bool {
	if s.DeletedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// MatchesRefreshClaims reports whether the decoded refresh token claims still point at
// this exact session incarnation. A mismatch signals a reused or stale refresh token.
func (s Session) MatchesRefreshClaims(userID, deviceID string, expiresAt time.Time) bool {
	return s.UserID == userID && s.DeviceID == deviceID && s.ExpiresAt.Equal(expiresAt)
}

// SessionFilter narrows session lookups. At least one field must be set.
type SessionFilter struct {
	UserID     string
	DeviceID   string
	DeviceName string
}

// IsEmpty reports whether no filter field is populated.
func (f SessionFilter) IsEmpty() bool {
	return f.UserID == "" && f.DeviceID == "" && f.DeviceName == ""
}
