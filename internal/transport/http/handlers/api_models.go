package handlers

import (
	"time"

	"github.com/senorian3/lumio-backend-sub001/internal/core/domain"
)

// ErrorResponse is the generic error body. Field is set on 401s to name the guard
// chain link that failed.
type ErrorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// RegisterRequest carries the registration payload.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// UserResponse is the public account representation.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginRequest carries password login credentials plus the device identity.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	DeviceID   string `json:"deviceId" binding:"required"`
	DeviceName string `json:"deviceName"`
}

// TokenResponse returns the access token; the refresh token travels in a cookie.
type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// SessionResponse is the public session representation.
type SessionResponse struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"deviceId"`
	DeviceName string    `json:"deviceName,omitempty"`
	IP         string    `json:"ip,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

// RevokedResponse reports how many sessions a bulk revocation removed.
type RevokedResponse struct {
	Revoked int `json:"revoked"`
}

// CreatePostRequest carries a new post with optional attachments.
type CreatePostRequest struct {
	Text  string              `json:"text"`
	Files []FileUploadRequest `json:"files"`
}

// FileUploadRequest is a base64-encoded attachment.
type FileUploadRequest struct {
	Filename string `json:"filename" binding:"required"`
	Content  []byte `json:"content" binding:"required"`
}

// PostResponse is the public post representation.
type PostResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	FileIDs   []string  `json:"fileIds,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostFilesResponse resolves attachment ids to download URLs.
type PostFilesResponse struct {
	Files []domain.PostFile `json:"files"`
}

// CheckoutRequest asks for a hosted checkout session.
type CheckoutRequest struct {
	Amount           int64  `json:"amount" binding:"required,gt=0"`
	Currency         string `json:"currency" binding:"required"`
	SubscriptionType string `json:"subscriptionType" binding:"required"`
}

// CheckoutResponse returns the hosted checkout URL and the local payment id.
type CheckoutResponse struct {
	PaymentID int64  `json:"paymentId"`
	URL       string `json:"url"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func toUserResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
}

func toPostResponse(post domain.Post) PostResponse {
	return PostResponse{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Text:      post.Text,
		FileIDs:   post.FileIDs,
		CreatedAt: post.CreatedAt,
	}
}
