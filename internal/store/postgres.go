package store

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, created_at
		FROM users
		WHERE id=$1
	`, userID).Scan(&user.ID, &user.Username, &user.Name, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByUsername is used for sign-in and is the only lookup returning the password hash.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, name, COALESCE(password_hash, ''), created_at
		FROM users
		WHERE username=$1
	`, username).Scan(&user.ID, &user.Username, &user.Name, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (Project, error) {
	var project Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, repository_dir
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&project.ID, &project.Path, &project.RepositoryDir)
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

func (s *PostgresStore) GetMergeRequest(ctx context.Context, projectID, iid int64) (MergeRequest, error) {
	var mr MergeRequest
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, iid, title, author_id, base_sha, start_sha, head_sha, updated_at
		FROM merge_requests
		WHERE project_id=$1 AND iid=$2
	`, projectID, iid).Scan(&mr.ID, &mr.ProjectID, &mr.IID, &mr.Title, &mr.AuthorID, &mr.BaseSHA, &mr.StartSHA, &mr.HeadSHA, &mr.UpdatedAt)
	if err != nil {
		return MergeRequest{}, err
	}
	return mr, nil
}

// ListNotes returns the notes of a noteable in thread order.
func (s *PostgresStore) ListNotes(ctx context.Context, noteableType string, noteableID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.project_id, n.noteable_type, n.noteable_id, COALESCE(n.commit_id, ''),
			COALESCE(n.discussion_id, ''), n.type, n.system, COALESCE(n.line_code, ''), n.position, n.body,
			a.id, a.username, a.name,
			n.resolved_at, r.id, r.username, r.name,
			n.created_at, n.updated_at
		FROM notes n
		JOIN users a ON a.id = n.author_id
		LEFT JOIN users r ON r.id = n.resolved_by_id
		WHERE n.noteable_type=$1 AND n.noteable_id=$2
		ORDER BY n.created_at, n.id
	`, noteableType, noteableID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var (
			item         Note
			position     []byte
			resolverID   sql.NullInt64
			resolverUser sql.NullString
			resolverName sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.ProjectID, &item.NoteableType, &item.NoteableID, &item.CommitID,
			&item.DiscussionID, &item.Type, &item.System, &item.LineCode, &position, &item.Body,
			&item.Author.ID, &item.Author.Username, &item.Author.Name,
			&item.ResolvedAt, &resolverID, &resolverUser, &resolverName,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		if len(position) > 0 {
			item.Position = position
		}
		if resolverID.Valid {
			item.ResolvedBy = &User{ID: resolverID.Int64, Username: resolverUser.String, Name: resolverName.String}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

// ProjectMembers returns the access level of every member of a project keyed by user ID.
func (s *PostgresStore) ProjectMembers(ctx context.Context, projectID int64) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, access_level
		FROM project_members
		WHERE project_id=$1
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project members: %w", err)
	}
	defer rows.Close()

	members := make(map[int64]int)
	for rows.Next() {
		var userID int64
		var level int
		if err := rows.Scan(&userID, &level); err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members[userID] = level
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project members: %w", err)
	}
	return members, nil
}

// SaveNoteResolutions writes the resolution columns of the given notes in one
// transaction. A missing note aborts the whole batch.
func (s *PostgresStore) SaveNoteResolutions(ctx context.Context, resolutions []NoteResolution) error {
	if len(resolutions) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, item := range resolutions {
			result, err := tx.ExecContext(ctx, `
				UPDATE notes
				SET resolved_at=$2, resolved_by_id=$3, updated_at=$4
				WHERE id=$1
			`, item.NoteID, item.ResolvedAt, item.ResolvedByID, item.UpdatedAt)
			if err != nil {
				return fmt.Errorf("save note %d resolution: %w", item.NoteID, err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("save note %d resolution rows: %w", item.NoteID, err)
			}
			if affected == 0 {
				return fmt.Errorf("save note %d resolution: %w", item.NoteID, sql.ErrNoRows)
			}
		}
		return nil
	})
}
