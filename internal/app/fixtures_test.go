package app

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samruddhi2909/gitlabhq/internal/auth"
	"github.com/samruddhi2909/gitlabhq/internal/authpw"
	"github.com/samruddhi2909/gitlabhq/internal/config"
	"github.com/samruddhi2909/gitlabhq/internal/position"
	"github.com/samruddhi2909/gitlabhq/internal/rbac"
	"github.com/samruddhi2909/gitlabhq/internal/store"
)

const testSecret = "test-secret"

const (
	userMaintainer int64 = 1
	userDeveloper  int64 = 2
	userReporter   int64 = 3
	userMRAuthor   int64 = 4
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	users   map[int64]store.User
	notes   []store.Note
	members map[int64]int

	pingFn           func(context.Context) error
	getMRFn          func(context.Context, int64, int64) (store.MergeRequest, error)
	listNotesFn      func(context.Context, string, int64) ([]store.Note, error)
	saveResolutionFn func(context.Context, []store.NoteResolution) error

	memberLoads int
	saved       [][]store.NoteResolution
}

func (f *fakeStore) GetUserByID(_ context.Context, userID int64) (store.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetProject(_ context.Context, projectID int64) (store.Project, error) {
	if projectID != 7 {
		return store.Project{}, sql.ErrNoRows
	}
	return store.Project{ID: 7, Path: "group/app", RepositoryDir: "group/app"}, nil
}

func (f *fakeStore) GetMergeRequest(ctx context.Context, projectID, iid int64) (store.MergeRequest, error) {
	if f.getMRFn != nil {
		return f.getMRFn(ctx, projectID, iid)
	}
	if projectID != 7 || iid != 3 {
		return store.MergeRequest{}, sql.ErrNoRows
	}
	return store.MergeRequest{
		ID: 11, ProjectID: 7, IID: 3, Title: "Fix", AuthorID: userMRAuthor,
		BaseSHA: "base", StartSHA: "start", HeadSHA: "head",
	}, nil
}

func (f *fakeStore) ListNotes(ctx context.Context, noteableType string, noteableID int64) ([]store.Note, error) {
	if f.listNotesFn != nil {
		return f.listNotesFn(ctx, noteableType, noteableID)
	}
	if noteableType != "MergeRequest" || noteableID != 11 {
		return nil, nil
	}
	return f.notes, nil
}

func (f *fakeStore) ProjectMembers(_ context.Context, _ int64) (map[int64]int, error) {
	f.memberLoads++
	return f.members, nil
}

func (f *fakeStore) SaveNoteResolutions(ctx context.Context, resolutions []store.NoteResolution) error {
	if f.saveResolutionFn != nil {
		if err := f.saveResolutionFn(ctx, resolutions); err != nil {
			return err
		}
	}
	f.saved = append(f.saved, resolutions)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeCache struct {
	members map[int64]map[int64]rbac.AccessLevel
	readErr error
	pingErr error
	saves   int
}

func (c *fakeCache) ProjectMembers(_ context.Context, projectID int64) (map[int64]rbac.AccessLevel, bool, error) {
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	members, ok := c.members[projectID]
	return members, ok, nil
}

func (c *fakeCache) SaveProjectMembers(_ context.Context, projectID int64, members map[int64]rbac.AccessLevel) error {
	if c.members == nil {
		c.members = make(map[int64]map[int64]rbac.AccessLevel)
	}
	c.members[projectID] = members
	c.saves++
	return nil
}

func (c *fakeCache) Ping(context.Context) error {
	return c.pingErr
}

type fakeTracker struct {
	active bool
	err    error
	calls  int
}

func (t *fakeTracker) Active(string, *position.Position, position.DiffRefs) (bool, error) {
	t.calls++
	return t.active, t.err
}

// newFakeStore seeds one resolvable diff thread with two notes and one plain
// comment thread.
func newFakeStore() *fakeStore {
	users := map[int64]store.User{
		userMaintainer: {ID: userMaintainer, Username: "maintainer", Name: "Maintainer"},
		userDeveloper:  {ID: userDeveloper, Username: "developer", Name: "Developer"},
		userReporter:   {ID: userReporter, Username: "reporter", Name: "Reporter"},
		userMRAuthor:   {ID: userMRAuthor, Username: "author", Name: "Author"},
	}
	pos := []byte(`{"base_sha":"base","start_sha":"start","head_sha":"head","old_path":"main.go","new_path":"main.go","new_line":4,"text":"+return nil"}`)
	return &fakeStore{
		users: users,
		members: map[int64]int{
			userMaintainer: 40,
			userDeveloper:  30,
			userReporter:   20,
		},
		notes: []store.Note{
			{
				ID: 100, ProjectID: 7, NoteableType: "MergeRequest", NoteableID: 11, DiscussionID: "disc-a",
				Type: "DiffNote", LineCode: "abc_0_4", Position: pos, Body: "Should this return an error?",
				Author: users[userReporter], CreatedAt: fixedNow.Add(-time.Hour),
			},
			{
				ID: 101, ProjectID: 7, NoteableType: "MergeRequest", NoteableID: 11, DiscussionID: "disc-a",
				Type: "DiffNote", LineCode: "abc_0_4", Position: pos, Body: "Good catch",
				Author: users[userDeveloper], CreatedAt: fixedNow.Add(-30 * time.Minute),
			},
			{
				ID: 200, ProjectID: 7, NoteableType: "MergeRequest", NoteableID: 11, DiscussionID: "disc-b",
				Type: "Note", Body: "Looks good overall", Author: users[userMaintainer],
				CreatedAt: fixedNow.Add(-10 * time.Minute),
			},
		},
	}
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg:       config.Config{JWTSecret: testSecret, AccessTTL: 15 * time.Minute},
		store:     fs,
		passwords: authpw.NewService(fs),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       func() time.Time { return fixedNow },
	}
}

func tokenFor(t *testing.T, userID int64) string {
	t.Helper()
	token, err := auth.IssueToken([]byte(testSecret), userID, "user", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func serve(svc *Service, method, path, token string) *httptest.ResponseRecorder {
	return serveBody(svc, method, path, token, "")
}

func serveBody(svc *Service, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	NewHTTPServer(svc, "*").Handler().ServeHTTP(rr, req)
	return rr
}
