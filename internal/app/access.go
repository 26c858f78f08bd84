package app

import (
	"context"
	"fmt"

	"github.com/samruddhi2909/gitlabhq/internal/rbac"
)

// teamPolicy loads the member levels of a project, preferring the access
// cache. Cache failures fall back to the store.
func (s *Service) teamPolicy(ctx context.Context, projectID int64) (rbac.TeamPolicy, error) {
	if s.access != nil {
		members, ok, err := s.access.ProjectMembers(ctx, projectID)
		if err != nil {
			s.log.WarnContext(ctx, "access cache read failed", "error", err)
		} else if ok {
			return rbac.TeamPolicy{ProjectID: projectID, Members: members}, nil
		}
	}

	rows, err := s.store.ProjectMembers(ctx, projectID)
	if err != nil {
		return rbac.TeamPolicy{}, fmt.Errorf("load project members: %w", err)
	}
	members := make(map[int64]rbac.AccessLevel, len(rows))
	for userID, level := range rows {
		members[userID] = rbac.Normalize(level)
	}

	if s.access != nil {
		if err := s.access.SaveProjectMembers(ctx, projectID, members); err != nil {
			s.log.WarnContext(ctx, "access cache write failed", "error", err)
		}
	}
	return rbac.TeamPolicy{ProjectID: projectID, Members: members}, nil
}
