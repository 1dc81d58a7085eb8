package domain

import "time"

// Routing keys for the topic exchanges shared with the sibling services.
const (
	EventUserCreated   = "user.created"
	EventUserUpdated   = "user.updated"
	EventUserDeleted   = "user.deleted"
	EventFileUploaded  = "file.uploaded"
	EventFileDeleted   = "file.deleted"
	EventAvatarUpdated = "avatar.updated"
	EventPostCreated   = "post.created"
	EventPostDeleted   = "post.deleted"
)

// RPC patterns served by the files service over the direct exchange pair.
const (
	PatternFilesUpload  = "files.upload"
	PatternFilesDelete  = "files.delete"
	PatternFilesGetURLs = "files.get.urls"
)

// UserEvent is emitted on user.exchange for registration-relevant mutations.
type UserEvent struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	At        time.Time `json:"at"`
}

// PostEvent is emitted on posts_exchange when a post is created or removed.
type PostEvent struct {
	EventID string    `json:"eventId"`
	PostID  string    `json:"postId"`
	UserID  string    `json:"userId"`
	FileIDs []string  `json:"fileIds,omitempty"`
	At      time.Time `json:"at"`
}

// FileEvent arrives from file.exchange when the files service mutates storage.
type FileEvent struct {
	EventID string `json:"eventId"`
	FileID  string `json:"fileId"`
	UserID  string `json:"userId,omitempty"`
	PostID  string `json:"postId,omitempty"`
	URL     string `json:"url,omitempty"`
}
