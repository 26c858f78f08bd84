package discussion

import "time"

type NoteableType string

const (
	NoteableMergeRequest NoteableType = "MergeRequest"
	NoteableIssue        NoteableType = "Issue"
	NoteableCommit       NoteableType = "Commit"
)

type User struct {
	ID       int64
	Username string
	Name     string
}

// Is reports whether u and other reference the same user. Two nil users are not equal.
func (u *User) Is(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	return u.ID == other.ID
}

type Project struct {
	ID   int64
	Path string
}

// Noteable is the subject a discussion hangs off, usually a merge request.
type Noteable struct {
	Type    NoteableType
	ID      int64
	IID     int64
	Author  *User
	Project *Project
}

// Note is the part of a note the aggregate depends on.
type Note interface {
	Resolvable() bool
	Resolved() bool
	ResolvedAt() *time.Time
	ResolvedBy() *User
	Resolve(by *User)
	Unresolve()
}

// Authorizer answers whether user may push to project.
type Authorizer interface {
	CanPush(user *User, project *Project) bool
}

// AuthorizerFunc adapts a plain function to Authorizer.
type AuthorizerFunc func(user *User, project *Project) bool

func (f AuthorizerFunc) CanPush(user *User, project *Project) bool {
	return f(user, project)
}
