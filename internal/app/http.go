package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/samruddhi2909/gitlabhq/internal/auth"
	"github.com/samruddhi2909/gitlabhq/internal/discussion"
	"github.com/samruddhi2909/gitlabhq/internal/logger"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/api/ready", s.handleReady)
	r.Post("/api/session/login", s.handleLogin)

	r.Route("/api/projects/{projectID}/merge_requests/{iid}", func(r chi.Router) {
		r.Use(withMergeRequest)
		r.Use(s.withViewer)

		r.Get("/discussions", s.handleListDiscussions)
		r.Get("/discussions/{discussionID}", s.handleGetDiscussion)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/discussions/{discussionID}/resolve", s.handleDiscussionResolution(true))
			r.Delete("/discussions/{discussionID}/resolve", s.handleDiscussionResolution(false))
			r.Post("/notes/{noteID}/resolve", s.handleNoteResolution(true))
			r.Delete("/notes/{noteID}/resolve", s.handleNoteResolution(false))
		})
	})
	return r
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	// The cache is optional, a failing cache degrades but does not fail readiness.
	if configured, err := s.service.PingCache(ctx); configured {
		if err != nil {
			checks["cache"] = map[string]any{"status": "error", "error": err.Error()}
		} else {
			checks["cache"] = map[string]any{"status": "ok"}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleListDiscussions(w http.ResponseWriter, r *http.Request) {
	ref := mergeRequestFrom(r.Context())
	payload, err := s.service.ListDiscussions(r.Context(), ref.projectID, ref.iid, viewerFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleGetDiscussion(w http.ResponseWriter, r *http.Request) {
	ref := mergeRequestFrom(r.Context())
	payload, err := s.service.GetDiscussion(r.Context(), ref.projectID, ref.iid, chi.URLParam(r, "discussionID"), viewerFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleDiscussionResolution(resolve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := mergeRequestFrom(r.Context())
		discussionID := chi.URLParam(r, "discussionID")
		user := viewerFrom(r.Context())

		var (
			payload map[string]any
			err     error
		)
		if resolve {
			payload, err = s.service.ResolveDiscussion(r.Context(), ref.projectID, ref.iid, discussionID, user)
		} else {
			payload, err = s.service.UnresolveDiscussion(r.Context(), ref.projectID, ref.iid, discussionID, user)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *HTTPServer) handleNoteResolution(resolve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := mergeRequestFrom(r.Context())
		noteID, err := strconv.ParseInt(chi.URLParam(r, "noteID"), 10, 64)
		if err != nil || noteID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "noteId must be a positive integer", nil)
			return
		}
		user := viewerFrom(r.Context())

		var payload map[string]any
		if resolve {
			payload, err = s.service.ResolveNote(r.Context(), ref.projectID, ref.iid, noteID, user)
		} else {
			payload, err = s.service.UnresolveNote(r.Context(), ref.projectID, ref.iid, noteID, user)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.service.log.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeError(w, status, code, message, details)
}

type mergeRequestRef struct {
	projectID int64
	iid       int64
}

type mergeRequestKey struct{}

// withMergeRequest parses the project and merge request IDs of the route and
// adds them to the log context.
func withMergeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
		if err != nil || projectID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "projectId must be a positive integer", nil)
			return
		}
		iid, err := strconv.ParseInt(chi.URLParam(r, "iid"), 10, 64)
		if err != nil || iid <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "iid must be a positive integer", nil)
			return
		}
		ctx := context.WithValue(r.Context(), mergeRequestKey{}, mergeRequestRef{projectID: projectID, iid: iid})
		ctx = logger.WithLogFields(ctx, logger.LogFields{ProjectID: logger.Ptr(projectID), MergeRequestIID: logger.Ptr(iid)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func mergeRequestFrom(ctx context.Context) mergeRequestRef {
	ref, _ := ctx.Value(mergeRequestKey{}).(mergeRequestRef)
	return ref
}

type viewerKey struct{}

func viewerFrom(ctx context.Context) *discussion.User {
	user, _ := ctx.Value(viewerKey{}).(*discussion.User)
	return user
}

// withViewer attaches the bearer token's user to the request. Requests without
// a token continue anonymously; a bad token is rejected.
func (s *HTTPServer) withViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.service.CurrentUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			s.fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), viewerKey{}, user)
		ctx = logger.WithLogFields(ctx, logger.LogFields{UserID: logger.Ptr(user.ID)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if viewerFrom(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		writer.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))

		next.ServeHTTP(writer, r)

		status := writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.service.log.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

func (s *HTTPServer) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w.Header(), s.corsOrigin)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
