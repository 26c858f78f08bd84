// Package position describes where a diff note is anchored and whether that
// anchor still exists in the current merge request diff.
package position

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// DiffRefs pins a diff to the three commits a merge request diff is computed from.
type DiffRefs struct {
	BaseSHA  string `json:"base_sha"`
	StartSHA string `json:"start_sha"`
	HeadSHA  string `json:"head_sha"`
}

func (r DiffRefs) Complete() bool {
	return r.BaseSHA != "" && r.HeadSHA != ""
}

type Position struct {
	DiffRefs
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
	// Text is the raw diff line the note was left on, including its +, - or space marker.
	Text string `json:"text,omitempty"`
}

// Path is the file the position points into, preferring the new side.
func (p Position) Path() string {
	if p.NewPath != "" {
		return p.NewPath
	}
	return p.OldPath
}

func (p Position) LineCode() string {
	return LineCode(p.Path(), p.OldLine, p.NewLine)
}

// LineCode identifies a diff line as sha1(path)_old_new.
func LineCode(path string, oldLine, newLine int) string {
	sum := sha1.Sum([]byte(path))
	return fmt.Sprintf("%s_%d_%d", hex.EncodeToString(sum[:]), oldLine, newLine)
}
