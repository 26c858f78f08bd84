package position

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffSource renders the unified diff between two commits of a repository.
type DiffSource interface {
	Diff(repo, baseSHA, headSHA string) (string, error)
}

type Tracker struct {
	source DiffSource
}

func NewTracker(source DiffSource) *Tracker {
	return &Tracker{source: source}
}

// Active reports whether pos is still present in the diff described by current.
// A position taken on the current refs is always active. Otherwise the line the
// note was left on must still appear, unchanged, in the same file of the
// current diff.
func (t *Tracker) Active(repo string, pos *Position, current DiffRefs) (bool, error) {
	if pos == nil {
		return true, nil
	}
	if pos.DiffRefs == current {
		return true, nil
	}
	if pos.Text == "" || !current.Complete() || t.source == nil {
		return false, nil
	}

	patch, err := t.source.Diff(repo, current.BaseSHA, current.HeadSHA)
	if err != nil {
		return false, fmt.Errorf("load current diff: %w", err)
	}
	return ContainsLine(patch, pos.Path(), pos.Text)
}

// ContainsLine parses a unified diff and reports whether the file at path
// carries a hunk line equal to text.
func ContainsLine(patch, path, text string) (bool, error) {
	if strings.TrimSpace(patch) == "" {
		return false, nil
	}
	files, err := diff.ParseMultiFileDiff([]byte(patch))
	if err != nil {
		return false, fmt.Errorf("parse diff: %w", err)
	}
	want := []byte(strings.TrimRight(text, "\n"))
	for _, file := range files {
		if trimPrefix(file.NewName) != path && trimPrefix(file.OrigName) != path {
			continue
		}
		for _, hunk := range file.Hunks {
			for _, line := range bytes.Split(hunk.Body, []byte("\n")) {
				if bytes.Equal(line, want) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

func trimPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}
