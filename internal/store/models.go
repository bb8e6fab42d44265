package store

import "time"

const (
	MethodManual   = "manual"
	MethodExternal = "external"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	AuthMethod   string
	CreatedAt    time.Time
}

// Name returns the display name, falling back to the email address.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

type Note struct {
	ID            string
	OwnerID       string
	Title         string
	Content       string
	AttachmentKey string
	CreatedAt     time.Time
}

// NoteWithOwner is a note joined with its owner's email for the global listing.
type NoteWithOwner struct {
	Note
	OwnerEmail string
}
