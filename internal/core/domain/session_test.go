package domain

import (
	"testing"
	"time"
)

func TestSessionIsActive(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := now.Add(-time.Hour)

	cases := []struct {
		name    string
		session Session
		want    bool
	}{
		{"live", Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expired", Session{ExpiresAt: now.Add(-time.Second)}, false},
		{"expiring this instant", Session{ExpiresAt: now}, false},
		{"soft-deleted", Session{ExpiresAt: now.Add(time.Hour), DeletedAt: &deleted}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.session.IsActive(now); got != tc.want {
				t.Fatalf("IsActive = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSessionMatchesRefreshClaims(t *testing.T) {
	expiresAt := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	session := Session{UserID: "user-1", DeviceID: "device-1", ExpiresAt: expiresAt}

	if !session.MatchesRefreshClaims("user-1", "device-1", expiresAt) {
		t.Fatal("expected exact claims to match")
	}
	if session.MatchesRefreshClaims("user-2", "device-1", expiresAt) {
		t.Fatal("different user must not match")
	}
	if session.MatchesRefreshClaims("user-1", "device-2", expiresAt) {
		t.Fatal("different device must not match")
	}
	// An earlier expiry means the token belongs to a previous incarnation.
	if session.MatchesRefreshClaims("user-1", "device-1", expiresAt.Add(-time.Minute)) {
		t.Fatal("stale expiry must not match")
	}
}
