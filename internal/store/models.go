package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           int64
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

type Project struct {
	ID            int64
	Path          string
	RepositoryDir string
}

type MergeRequest struct {
	ID        int64
	ProjectID int64
	IID       int64
	Title     string
	AuthorID  int64
	BaseSHA   string
	StartSHA  string
	HeadSHA   string
	UpdatedAt time.Time
}

// Note is a notes row with its author and resolver joined in.
type Note struct {
	ID           int64
	ProjectID    int64
	NoteableType string
	NoteableID   int64
	CommitID     string
	DiscussionID string
	Type         string
	System       bool
	LineCode     string
	Position     json.RawMessage
	Body         string
	Author       User
	ResolvedAt   *time.Time
	ResolvedBy   *User
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NoteResolution is the resolution state written back for one note.
type NoteResolution struct {
	NoteID       int64
	ResolvedAt   *time.Time
	ResolvedByID *int64
	UpdatedAt    time.Time
}

type ProjectMember struct {
	ProjectID   int64
	UserID      int64
	AccessLevel int
}
