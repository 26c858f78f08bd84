package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errDiscussionNotFound(discussionID string) *DomainError {
	return domainError(http.StatusNotFound, "DISCUSSION_NOT_FOUND", "Discussion not found", map[string]any{"discussionId": discussionID})
}

func errNoteNotFound(noteID int64) *DomainError {
	return domainError(http.StatusNotFound, "NOTE_NOT_FOUND", "Note not found", map[string]any{"noteId": noteID})
}

var (
	errNotResolvable = domainError(http.StatusNotFound, "NOT_RESOLVABLE", "Nothing to resolve", nil)
	errForbidden     = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	errUnauthorized  = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
)
