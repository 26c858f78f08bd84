// Package note holds the note entity and its resolution state machine.
package note

import (
	"strconv"
	"time"

	"github.com/samruddhi2909/gitlabhq/internal/discussion"
	"github.com/samruddhi2909/gitlabhq/internal/position"
)

type Type string

const (
	TypeNote           Type = "Note"
	TypeDiffNote       Type = "DiffNote"
	TypeLegacyDiffNote Type = "LegacyDiffNote"
)

// now is swapped in tests.
var now = time.Now

type Note struct {
	ID           int64
	Type         Type
	System       bool
	NoteableType discussion.NoteableType
	NoteableID   int64
	CommitID     string
	DiscussionID string
	LineCode     string
	Position     *position.Position
	Author       *discussion.User
	Body         string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	resolvedAt *time.Time
	resolvedBy *discussion.User
	changed    bool
}

// IsDiffNote reports whether the note is anchored to a diff line.
func (n *Note) IsDiffNote() bool {
	return n.Type == TypeDiffNote || n.Type == TypeLegacyDiffNote
}

// Resolvable is fixed by classification: only non-system, position-aware diff
// notes on merge requests take part in resolution.
func (n *Note) Resolvable() bool {
	return n.Type == TypeDiffNote && !n.System && n.NoteableType == discussion.NoteableMergeRequest
}

func (n *Note) Resolved() bool {
	return n.resolvedAt != nil
}

func (n *Note) ResolvedAt() *time.Time {
	return n.resolvedAt
}

func (n *Note) ResolvedBy() *discussion.User {
	return n.resolvedBy
}

// Resolve stamps the note as resolved by user. A resolved note keeps its
// original timestamp and resolver.
func (n *Note) Resolve(by *discussion.User) {
	if !n.Resolvable() || n.Resolved() {
		return
	}
	at := now()
	n.resolvedAt = &at
	n.resolvedBy = by
	n.UpdatedAt = at
	n.changed = true
}

func (n *Note) Unresolve() {
	if n.resolvedAt == nil && n.resolvedBy == nil {
		return
	}
	n.resolvedAt = nil
	n.resolvedBy = nil
	n.UpdatedAt = now()
	n.changed = true
}

// Restore loads persisted resolution state without marking the note changed.
func (n *Note) Restore(resolvedAt *time.Time, resolvedBy *discussion.User) {
	n.resolvedAt = resolvedAt
	n.resolvedBy = resolvedBy
}

// Changed reports whether Resolve or Unresolve altered the note since it was loaded.
func (n *Note) Changed() bool {
	return n.changed
}

// Target is the identifier notes of one thread share: the commit SHA for
// commit notes, the noteable ID otherwise.
func (n *Note) Target() string {
	if n.NoteableType == discussion.NoteableCommit {
		return n.CommitID
	}
	return strconv.FormatInt(n.NoteableID, 10)
}

// ThreadID returns the stored discussion ID, deriving it from the note's
// target and line code for rows written before discussion IDs were stored.
func (n *Note) ThreadID() string {
	if n.DiscussionID != "" {
		return n.DiscussionID
	}
	return discussion.BuildID(n.NoteableType, n.Target(), n.LineCode)
}
