package usecase

import "errors"

var (
	// ErrInvalidCredentials indicates the provided identifier or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists indicates the email or username is already taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound indicates the referenced session does not exist or was revoked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrForbidden indicates the caller may not act on the referenced resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRefreshToken indicates the refresh token is malformed or does not match
	// the stored session.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the refresh token is past its expiry.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrPaymentNotFound indicates no payment row matches the provider reference.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
)

// Guard failure fields. Each names the first link of the validation chain that broke.
const (
	FieldAccessToken  = "accessToken"
	FieldUser         = "user"
	FieldSession      = "session"
	FieldTokenVersion = "tokenVersion"
)

// UnauthorizedError is a 401 tagged with the field that failed so clients can
// distinguish a bad token from a revoked session or a stale token version.
type UnauthorizedError struct {
	Field   string
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// NewUnauthorized builds a field-tagged UnauthorizedError.
func NewUnauthorized(field, message string) *UnauthorizedError {
	return &UnauthorizedError{Field: field, Message: message}
}

// AsUnauthorized extracts an UnauthorizedError from err, if present.
func AsUnauthorized(err error) (*UnauthorizedError, bool) {
	var unauthorized *UnauthorizedError
	if errors.As(err, &unauthorized) {
		return unauthorized, true
	}
	return nil, false
}
