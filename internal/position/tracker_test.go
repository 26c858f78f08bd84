package position

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePatch = `diff --git a/app/models/user.rb b/app/models/user.rb
index 1111111..2222222 100644
--- a/app/models/user.rb
+++ b/app/models/user.rb
@@ -1,3 +1,5 @@
 class User
-  def name; end
+  def name
+    "#{first} #{last}"
+  end
 end
`

type fakeDiffSource struct {
	patch string
	err   error
	calls int
}

func (f *fakeDiffSource) Diff(_, _, _ string) (string, error) {
	f.calls++
	return f.patch, f.err
}

func TestActive(t *testing.T) {
	current := DiffRefs{BaseSHA: "base2", StartSHA: "start2", HeadSHA: "head2"}
	stale := DiffRefs{BaseSHA: "base1", StartSHA: "start1", HeadSHA: "head1"}

	cases := []struct {
		name   string
		pos    *Position
		active bool
		calls  int
	}{
		{name: "no position", pos: nil, active: true},
		{name: "same refs", pos: &Position{DiffRefs: current, NewPath: "app/models/user.rb", NewLine: 2}, active: true},
		{name: "line still in diff", pos: &Position{DiffRefs: stale, NewPath: "app/models/user.rb", NewLine: 2, Text: "+  def name"}, active: true, calls: 1},
		{name: "removed line still in diff", pos: &Position{DiffRefs: stale, OldPath: "app/models/user.rb", OldLine: 2, Text: "-  def name; end"}, active: true, calls: 1},
		{name: "line gone", pos: &Position{DiffRefs: stale, NewPath: "app/models/user.rb", NewLine: 2, Text: "+  def name(full)"}, active: false, calls: 1},
		{name: "other file", pos: &Position{DiffRefs: stale, NewPath: "app/models/team.rb", NewLine: 2, Text: "+  def name"}, active: false, calls: 1},
		{name: "no text recorded", pos: &Position{DiffRefs: stale, NewPath: "app/models/user.rb", NewLine: 2}, active: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			source := &fakeDiffSource{patch: samplePatch}
			active, err := NewTracker(source).Active("group/project", tc.pos, current)
			require.NoError(t, err)
			assert.Equal(t, tc.active, active)
			assert.Equal(t, tc.calls, source.calls)
		})
	}
}

func TestActiveIncompleteCurrentRefs(t *testing.T) {
	source := &fakeDiffSource{patch: samplePatch}
	pos := &Position{DiffRefs: DiffRefs{BaseSHA: "a", HeadSHA: "b"}, NewPath: "app/models/user.rb", Text: "+  def name"}

	active, err := NewTracker(source).Active("group/project", pos, DiffRefs{})
	require.NoError(t, err)
	assert.False(t, active)
	assert.Zero(t, source.calls)
}

func TestActivePropagatesDiffErrors(t *testing.T) {
	boom := errors.New("disk gone")
	source := &fakeDiffSource{err: boom}
	pos := &Position{DiffRefs: DiffRefs{BaseSHA: "a", HeadSHA: "b"}, NewPath: "x.go", Text: "+x"}

	_, err := NewTracker(source).Active("group/project", pos, DiffRefs{BaseSHA: "c", HeadSHA: "d"})
	require.ErrorIs(t, err, boom)
}

func TestContainsLineEmptyPatch(t *testing.T) {
	found, err := ContainsLine("", "x.go", "+x")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLineCode(t *testing.T) {
	code := LineCode("app/models/user.rb", 2, 3)
	assert.Regexp(t, `^[0-9a-f]{40}_2_3$`, code)

	pos := Position{OldPath: "old.rb", NewPath: "app/models/user.rb", OldLine: 2, NewLine: 3}
	assert.Equal(t, code, pos.LineCode())
	assert.Equal(t, "old.rb", Position{OldPath: "old.rb"}.Path())
}
