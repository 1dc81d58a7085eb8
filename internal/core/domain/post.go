package domain

import "time"

// Post is a published entry on the Lumio feed. File contents live in the files
// service; posts only carry the attachment identifiers returned by it.
type Post struct {
	ID        string
	AuthorID  string
	Text      string
	FileIDs   []string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// PostFile is an attachment descriptor resolved through the files service.
type PostFile struct {
	ID  string
	URL string
}
