// Package discussion models a thread of notes on a merge request and derives
// its resolution state from the notes it contains.
package discussion

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Discussion is built fresh from loaded notes for every request. It keeps no
// resolution state of its own; everything is folded from Notes on read.
type Discussion struct {
	ID       string
	Noteable Noteable
	Notes    []Note

	// DiffDiscussion is true when the thread is anchored to a diff line.
	DiffDiscussion bool
	// Active is false once the anchored position is gone from the current diff.
	Active bool
}

// BuildID derives the discussion identifier shared by every note of a thread.
// target is the noteable ID, or the commit SHA for commit notes.
func BuildID(noteableType NoteableType, target, lineCode string) string {
	parts := []string{"discussion", underscore(string(noteableType)), target, lineCode}
	sum := sha1.Sum([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

func underscore(value string) string {
	var b strings.Builder
	for i, r := range value {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Discussion) FirstNote() Note {
	if len(d.Notes) == 0 {
		return nil
	}
	return d.Notes[0]
}

func (d *Discussion) LastNote() Note {
	if len(d.Notes) == 0 {
		return nil
	}
	return d.Notes[len(d.Notes)-1]
}

// ResolvableNotes returns the notes that take part in resolution, in order.
func (d *Discussion) ResolvableNotes() []Note {
	notes := make([]Note, 0, len(d.Notes))
	for _, note := range d.Notes {
		if note.Resolvable() {
			notes = append(notes, note)
		}
	}
	return notes
}

func (d *Discussion) Resolvable() bool {
	if !d.DiffDiscussion {
		return false
	}
	for _, note := range d.Notes {
		if note.Resolvable() {
			return true
		}
	}
	return false
}

func (d *Discussion) Resolved() bool {
	if !d.Resolvable() {
		return false
	}
	for _, note := range d.Notes {
		if note.Resolvable() && !note.Resolved() {
			return false
		}
	}
	return true
}

// ToBeResolved reports whether the discussion still needs action.
func (d *Discussion) ToBeResolved() bool {
	if !d.Resolvable() {
		return false
	}
	return !d.Resolved()
}

func (d *Discussion) ResolvedAt() *time.Time {
	note := d.lastResolvedNote()
	if note == nil {
		return nil
	}
	return note.ResolvedAt()
}

func (d *Discussion) ResolvedBy() *User {
	note := d.lastResolvedNote()
	if note == nil {
		return nil
	}
	return note.ResolvedBy()
}

// lastResolvedNote picks the resolvable note resolved most recently. On equal
// timestamps the later note in the thread wins.
func (d *Discussion) lastResolvedNote() Note {
	if !d.Resolved() {
		return nil
	}
	var last Note
	var lastAt time.Time
	for _, note := range d.Notes {
		if !note.Resolvable() {
			continue
		}
		at := note.ResolvedAt()
		if at == nil {
			continue
		}
		if last == nil || !at.Before(lastAt) {
			last = note
			lastAt = *at
		}
	}
	return last
}

func (d *Discussion) Collapsed() bool {
	if !d.DiffDiscussion {
		return false
	}
	if d.Resolvable() {
		return d.Resolved()
	}
	return !d.Active
}

func (d *Discussion) Expanded() bool {
	return !d.Collapsed()
}

// CanResolve reports whether user may resolve or unresolve the discussion.
func (d *Discussion) CanResolve(user *User, authorizer Authorizer) bool {
	if !d.Resolvable() {
		return false
	}
	if user == nil {
		return false
	}
	if user.Is(d.Noteable.Author) {
		return true
	}
	if authorizer == nil {
		return false
	}
	return authorizer.CanPush(user, d.Noteable.Project)
}

// Resolve marks every resolvable note as resolved by user. Notes that were
// already resolved keep their original resolver. The caller is expected to
// have checked CanResolve.
func (d *Discussion) Resolve(user *User) {
	if !d.Resolvable() {
		return
	}
	for _, note := range d.Notes {
		if !note.Resolvable() {
			continue
		}
		note.Resolve(user)
	}
}

func (d *Discussion) Unresolve() {
	if !d.Resolvable() {
		return
	}
	for _, note := range d.Notes {
		if !note.Resolvable() {
			continue
		}
		note.Unresolve()
	}
}

func (d *Discussion) String() string {
	return fmt.Sprintf("discussion %s (%d notes)", d.ID, len(d.Notes))
}
