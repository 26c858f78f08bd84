package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samruddhi2909/gitlabhq/internal/auth"
	"github.com/samruddhi2909/gitlabhq/internal/authpw"
	"github.com/samruddhi2909/gitlabhq/internal/cache"
	"github.com/samruddhi2909/gitlabhq/internal/config"
	"github.com/samruddhi2909/gitlabhq/internal/discussion"
	"github.com/samruddhi2909/gitlabhq/internal/logger"
	"github.com/samruddhi2909/gitlabhq/internal/note"
	"github.com/samruddhi2909/gitlabhq/internal/position"
	"github.com/samruddhi2909/gitlabhq/internal/rbac"
	"github.com/samruddhi2909/gitlabhq/internal/store"
)

type dataStore interface {
	GetUserByID(context.Context, int64) (store.User, error)
	GetUserByUsername(context.Context, string) (store.User, error)
	GetProject(context.Context, int64) (store.Project, error)
	GetMergeRequest(context.Context, int64, int64) (store.MergeRequest, error)
	ListNotes(context.Context, string, int64) ([]store.Note, error)
	ProjectMembers(context.Context, int64) (map[int64]int, error)
	SaveNoteResolutions(context.Context, []store.NoteResolution) error
	Ping(ctx context.Context) error
}

type accessCache interface {
	ProjectMembers(context.Context, int64) (map[int64]rbac.AccessLevel, bool, error)
	SaveProjectMembers(context.Context, int64, map[int64]rbac.AccessLevel) error
	Ping(ctx context.Context) error
}

type positionTracker interface {
	Active(repo string, pos *position.Position, current position.DiffRefs) (bool, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	passwords *authpw.Service
	access    accessCache
	tracker   positionTracker
	log       *slog.Logger
	now       func() time.Time
}

// New wires the service. access may be nil, in which case member levels are
// read from the store on every permission check.
func New(cfg config.Config, dataStore *store.PostgresStore, access *cache.RedisStore, tracker *position.Tracker, log *slog.Logger) *Service {
	svc := &Service{
		cfg:       cfg,
		store:     dataStore,
		passwords: authpw.NewService(dataStore),
		log:       log,
		now:       time.Now,
	}
	if access != nil {
		svc.access = access
	}
	if tracker != nil {
		svc.tracker = tracker
	}
	if svc.log == nil {
		svc.log = slog.Default()
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports the access cache health. ok is false when no cache is configured.
func (s *Service) PingCache(ctx context.Context) (ok bool, err error) {
	if s.access == nil {
		return false, nil
	}
	return true, s.access.Ping(ctx)
}

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, username, password string) (map[string]any, error) {
	user, err := s.passwords.SignIn(ctx, username, password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return nil, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
		}
		return nil, err
	}
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Username, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(user.ID)}), "user signed in")
	return map[string]any{
		"token":     token,
		"expiresIn": int64(s.cfg.AccessTTL.Seconds()),
		"user":      presentUser(userFromRow(&user)),
	}, nil
}

// CurrentUser resolves the user behind an access token.
func (s *Service) CurrentUser(ctx context.Context, token string) (*discussion.User, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return &discussion.User{ID: user.ID, Username: user.Username, Name: user.Name}, nil
}

func (s *Service) ListDiscussions(ctx context.Context, projectID, iid int64, viewer *discussion.User) (map[string]any, error) {
	threads, err := s.loadThreads(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	authorizer, err := s.viewerAuthorizer(ctx, threads.project.ID, viewer)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(threads.discussions))
	for _, d := range threads.discussions {
		items = append(items, presentDiscussion(d, viewer, authorizer))
	}
	return map[string]any{
		"discussions": items,
		"summary":     presentSummary(discussion.Summarize(threads.discussions)),
	}, nil
}

func (s *Service) GetDiscussion(ctx context.Context, projectID, iid int64, discussionID string, viewer *discussion.User) (map[string]any, error) {
	threads, err := s.loadThreads(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	d, ok := threads.byID[discussionID]
	if !ok {
		return nil, errDiscussionNotFound(discussionID)
	}
	authorizer, err := s.viewerAuthorizer(ctx, threads.project.ID, viewer)
	if err != nil {
		return nil, err
	}
	return map[string]any{"discussion": presentDiscussion(d, viewer, authorizer)}, nil
}

func (s *Service) ResolveDiscussion(ctx context.Context, projectID, iid int64, discussionID string, user *discussion.User) (map[string]any, error) {
	return s.changeDiscussion(ctx, projectID, iid, discussionID, user, true)
}

func (s *Service) UnresolveDiscussion(ctx context.Context, projectID, iid int64, discussionID string, user *discussion.User) (map[string]any, error) {
	return s.changeDiscussion(ctx, projectID, iid, discussionID, user, false)
}

func (s *Service) changeDiscussion(ctx context.Context, projectID, iid int64, discussionID string, user *discussion.User, resolve bool) (map[string]any, error) {
	if user == nil {
		return nil, errUnauthorized
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: logger.Ptr(discussionID)})

	threads, err := s.loadThreads(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	d, ok := threads.byID[discussionID]
	if !ok {
		return nil, errDiscussionNotFound(discussionID)
	}
	if !d.Resolvable() {
		return nil, errNotResolvable
	}
	policy, err := s.teamPolicy(ctx, threads.project.ID)
	if err != nil {
		return nil, err
	}
	if !d.CanResolve(user, policy) {
		s.log.WarnContext(ctx, "discussion resolution denied", "resolve", resolve)
		return nil, errForbidden
	}

	if resolve {
		d.Resolve(user)
	} else {
		d.Unresolve()
	}
	saved, err := s.persist(ctx, threads.notes)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "discussion resolution changed", "resolved", d.Resolved(), "notes_changed", saved)

	return map[string]any{"discussion": presentDiscussion(d, user, policy)}, nil
}

func (s *Service) ResolveNote(ctx context.Context, projectID, iid, noteID int64, user *discussion.User) (map[string]any, error) {
	return s.changeNote(ctx, projectID, iid, noteID, user, true)
}

func (s *Service) UnresolveNote(ctx context.Context, projectID, iid, noteID int64, user *discussion.User) (map[string]any, error) {
	return s.changeNote(ctx, projectID, iid, noteID, user, false)
}

func (s *Service) changeNote(ctx context.Context, projectID, iid, noteID int64, user *discussion.User, resolve bool) (map[string]any, error) {
	if user == nil {
		return nil, errUnauthorized
	}
	threads, err := s.loadThreads(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	n, ok := threads.noteByID[noteID]
	if !ok {
		return nil, errNoteNotFound(noteID)
	}
	if !n.Resolvable() {
		return nil, errNotResolvable
	}
	d := threads.byNote[noteID]
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: logger.Ptr(d.ID)})

	policy, err := s.teamPolicy(ctx, threads.project.ID)
	if err != nil {
		return nil, err
	}
	if !d.CanResolve(user, policy) {
		s.log.WarnContext(ctx, "note resolution denied", "note_id", noteID, "resolve", resolve)
		return nil, errForbidden
	}

	if resolve {
		n.Resolve(user)
	} else {
		n.Unresolve()
	}
	if _, err := s.persist(ctx, threads.notes); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "note resolution changed", "note_id", noteID, "resolved", n.Resolved())

	return map[string]any{
		"note":       presentNote(n),
		"discussion": presentDiscussion(d, user, policy),
	}, nil
}

// persist writes back every note whose resolution changed and returns how many were saved.
func (s *Service) persist(ctx context.Context, notes []*note.Note) (int, error) {
	updatedAt := s.now().UTC()
	resolutions := make([]store.NoteResolution, 0)
	for _, n := range notes {
		if !n.Changed() {
			continue
		}
		item := store.NoteResolution{
			NoteID:     n.ID,
			ResolvedAt: n.ResolvedAt(),
			UpdatedAt:  updatedAt,
		}
		if by := n.ResolvedBy(); by != nil {
			item.ResolvedByID = &by.ID
		}
		resolutions = append(resolutions, item)
	}
	if len(resolutions) == 0 {
		return 0, nil
	}
	if err := s.store.SaveNoteResolutions(ctx, resolutions); err != nil {
		return 0, err
	}
	return len(resolutions), nil
}

func (s *Service) viewerAuthorizer(ctx context.Context, projectID int64, viewer *discussion.User) (discussion.Authorizer, error) {
	if viewer == nil {
		return nil, nil
	}
	policy, err := s.teamPolicy(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return policy, nil
}
