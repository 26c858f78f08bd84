package app

import (
	"github.com/samruddhi2909/gitlabhq/internal/discussion"
	"github.com/samruddhi2909/gitlabhq/internal/note"
)

func presentDiscussion(d *discussion.Discussion, viewer *discussion.User, authorizer discussion.Authorizer) map[string]any {
	notes := make([]map[string]any, 0, len(d.Notes))
	for _, item := range d.Notes {
		if n, ok := item.(*note.Note); ok {
			notes = append(notes, presentNote(n))
		}
	}
	return map[string]any{
		"id":             d.ID,
		"diffDiscussion": d.DiffDiscussion,
		"active":         d.Active,
		"resolvable":     d.Resolvable(),
		"resolved":       d.Resolved(),
		"toBeResolved":   d.ToBeResolved(),
		"collapsed":      d.Collapsed(),
		"expanded":       d.Expanded(),
		"resolvedAt":     d.ResolvedAt(),
		"resolvedBy":     presentUser(d.ResolvedBy()),
		"canResolve":     d.CanResolve(viewer, authorizer),
		"notes":          notes,
	}
}

func presentNote(n *note.Note) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"type":       n.Type,
		"system":     n.System,
		"body":       n.Body,
		"author":     presentUser(n.Author),
		"lineCode":   nilIfEmpty(n.LineCode),
		"position":   n.Position,
		"resolvable": n.Resolvable(),
		"resolved":   n.Resolved(),
		"resolvedAt": n.ResolvedAt(),
		"resolvedBy": presentUser(n.ResolvedBy()),
		"createdAt":  n.CreatedAt,
		"updatedAt":  n.UpdatedAt,
	}
}

func presentUser(user *discussion.User) any {
	if user == nil {
		return nil
	}
	return map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"name":     user.Name,
	}
}

func presentSummary(summary discussion.Summary) map[string]any {
	return map[string]any{
		"resolvable":  summary.Resolvable,
		"resolved":    summary.Resolved,
		"unresolved":  summary.Unresolved(),
		"allResolved": summary.AllResolved(),
	}
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
