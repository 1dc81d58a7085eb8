package domain

import "time"

// User is the account record behind both password and OAuth logins.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OAuthIdentity links an external provider account to a local user.
type OAuthIdentity struct {
	ID         string
	UserID     string
	Provider   string
	ExternalID string
	Email      string
	CreatedAt  time.Time
}

// LinkageAction is the outcome of the OAuth linkage decision table, resolved from the
// (user exists, identity exists) pair before any state is mutated.
type LinkageAction int

const (
	// LinkageCreateBoth creates a new user and a new identity record.
	LinkageCreateBoth LinkageAction = iota
	// LinkageLinkIdentityToExistingUser attaches the external identity to a user found by email.
	LinkageLinkIdentityToExistingUser
	// LinkageCreateIdentityForFoundUser recreates a missing identity for a known user.
	LinkageCreateIdentityForFoundUser
	// LinkageReuseBoth reuses the existing user and identity untouched.
	LinkageReuseBoth
)

// ResolveLinkage maps the 2x2 existence state onto the action to perform.
// userExists reflects the email lookup, identityExists the (provider, externalID)
// lookup. The email lookup can miss while the identity still resolves a user, e.g.
// when the provider-side email changed after the first linkage.
func ResolveLinkage(userExists, identityExists bool) LinkageAction {
	switch {
	case !userExists && !identityExists:
		return LinkageCreateBoth
	case userExists && !identityExists:
		return LinkageCreateIdentityForFoundUser
	case !userExists && identityExists:
		return LinkageLinkIdentityToExistingUser
	default:
		return LinkageReuseBoth
	}
}
