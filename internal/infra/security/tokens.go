package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid indicates the token is malformed or its signature check failed.
	ErrTokenInvalid = errors.New("security: invalid token")
	// ErrTokenExpired indicates the token is past its expiry.
	ErrTokenExpired = errors.New("security: token expired")
)

// AccessClaims binds an access token to a session incarnation. Validity additionally
// requires a live session whose stored version is not ahead of TokenVersion.
type AccessClaims struct {
	UserID       string `json:"uid"`
	DeviceID     string `json:"did"`
	TokenVersion int64  `json:"tv"`
	jwt.RegisteredClaims
}

// RefreshClaims carry enough session context for the exact-match replay check on the
// refresh path.
type RefreshClaims struct {
	UserID     string `json:"uid"`
	DeviceID   string `json:"did"`
	DeviceName string `json:"dn,omitempty"`
	IP         string `json:"ip,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies the access/refresh token pair. The two secrets are
// independent so compromise of one does not affect the other.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(accessSecret, refreshSecret, issuer string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(accessSecret) == "" || strings.TrimSpace(refreshSecret) == "" {
		return nil, fmt.Errorf("security: both token secrets are required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	t := &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
	}
	t.now = func() time.Time { return time.Now().UTC() }
	return t, nil
}

// WithClock overrides the issuer clock for deterministic tests.
func (t *TokenIssuer) WithClock(clock func() time.Time) {
	if clock != nil {
		t.now = clock
	}
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// IssueAccessToken signs a fresh access token. Issuing never touches session state.
func (t *TokenIssuer) IssueAccessToken(userID, deviceID string, tokenVersion int64) (string, error) {
	if userID == "" || deviceID == "" {
		return "", fmt.Errorf("security: user id and device id are required")
	}

	now := t.now()
	claims := AccessClaims{
		UserID:       userID,
		DeviceID:     deviceID,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken signs a refresh token whose expiry defines the session window.
func (t *TokenIssuer) IssueRefreshToken(userID, deviceID, deviceName, ip string, issuedAt, expiresAt time.Time) (string, error) {
	if userID == "" || deviceID == "" {
		return "", fmt.Errorf("security: user id and device id are required")
	}

	claims := RefreshClaims{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		IP:         ip,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies the access token signature and expiry.
func (t *TokenIssuer) ParseAccessToken(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := t.parse(token, claims, t.accessSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.DeviceID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseRefreshToken verifies the refresh token signature and expiry.
func (t *TokenIssuer) ParseRefreshToken(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := t.parse(token, claims, t.refreshSecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.DeviceID) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (t *TokenIssuer) parse(token string, claims jwt.Claims, secret []byte) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{jwt.WithTimeFunc(t.now)}
	if t.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(t.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
