package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samruddhi2909/gitlabhq/internal/discussion"
	"github.com/samruddhi2909/gitlabhq/internal/logger"
	"github.com/samruddhi2909/gitlabhq/internal/note"
	"github.com/samruddhi2909/gitlabhq/internal/position"
	"github.com/samruddhi2909/gitlabhq/internal/store"
)

// threadSet is every discussion of one merge request, rebuilt from its notes.
type threadSet struct {
	project      store.Project
	mergeRequest store.MergeRequest
	discussions  []*discussion.Discussion
	notes        []*note.Note
	byID         map[string]*discussion.Discussion
	byNote       map[int64]*discussion.Discussion
	noteByID     map[int64]*note.Note
}

func (s *Service) loadThreads(ctx context.Context, projectID, iid int64) (*threadSet, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	mr, err := s.store.GetMergeRequest(ctx, projectID, iid)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListNotes(ctx, string(discussion.NoteableMergeRequest), mr.ID)
	if err != nil {
		return nil, err
	}

	noteable := discussion.Noteable{
		Type:    discussion.NoteableMergeRequest,
		ID:      mr.ID,
		IID:     mr.IID,
		Author:  &discussion.User{ID: mr.AuthorID},
		Project: &discussion.Project{ID: project.ID, Path: project.Path},
	}
	current := position.DiffRefs{BaseSHA: mr.BaseSHA, StartSHA: mr.StartSHA, HeadSHA: mr.HeadSHA}

	set := &threadSet{
		project:      project,
		mergeRequest: mr,
		byID:         make(map[string]*discussion.Discussion),
		byNote:       make(map[int64]*discussion.Discussion),
		noteByID:     make(map[int64]*note.Note),
	}
	for _, row := range rows {
		n, err := noteFromRow(row)
		if err != nil {
			return nil, err
		}
		threadID := n.ThreadID()
		d, ok := set.byID[threadID]
		if !ok {
			d = &discussion.Discussion{
				ID:             threadID,
				Noteable:       noteable,
				DiffDiscussion: n.IsDiffNote(),
				Active:         true,
			}
			if d.DiffDiscussion {
				d.Active = s.positionActive(ctx, repositoryPath(project), n, current)
			}
			set.byID[threadID] = d
			set.discussions = append(set.discussions, d)
		}
		d.Notes = append(d.Notes, n)
		set.notes = append(set.notes, n)
		set.byNote[n.ID] = d
		set.noteByID[n.ID] = n
	}
	return set, nil
}

// positionActive treats a diff that cannot be loaded as still active so a
// broken repository never collapses open threads.
func (s *Service) positionActive(ctx context.Context, repo string, first *note.Note, current position.DiffRefs) bool {
	if s.tracker == nil || first.Position == nil {
		return true
	}
	active, err := s.tracker.Active(repo, first.Position, current)
	if err != nil {
		s.log.WarnContext(logger.WithLogFields(ctx, logger.LogFields{DiscussionID: logger.Ptr(first.ThreadID())}),
			"diff position check failed", "note_id", first.ID, "error", err)
		return true
	}
	return active
}

func repositoryPath(project store.Project) string {
	if project.RepositoryDir != "" {
		return project.RepositoryDir
	}
	return project.Path
}

func noteFromRow(row store.Note) (*note.Note, error) {
	n := &note.Note{
		ID:           row.ID,
		Type:         note.Type(row.Type),
		System:       row.System,
		NoteableType: discussion.NoteableType(row.NoteableType),
		NoteableID:   row.NoteableID,
		CommitID:     row.CommitID,
		DiscussionID: row.DiscussionID,
		LineCode:     row.LineCode,
		Author:       userFromRow(&row.Author),
		Body:         row.Body,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if len(row.Position) > 0 {
		var pos position.Position
		if err := json.Unmarshal(row.Position, &pos); err != nil {
			return nil, fmt.Errorf("decode note %d position: %w", row.ID, err)
		}
		n.Position = &pos
	}
	n.Restore(row.ResolvedAt, userFromRow(row.ResolvedBy))
	return n, nil
}

func userFromRow(user *store.User) *discussion.User {
	if user == nil {
		return nil
	}
	return &discussion.User{ID: user.ID, Username: user.Username, Name: user.Name}
}
