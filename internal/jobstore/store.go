// Package jobstore is the durable record of every accepted image
// generation request, backed by Postgres.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tribehealth/aigateway/internal/database"
)

// ErrNotFound is returned by Get when no row matches the given id.
var ErrNotFound = errors.New("jobstore: job not found")

// Store persists ImageJob rows.
type Store struct {
	db *database.DB
}

// New creates a new Store.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Insert creates a new row. Callers must mint a fresh id; a collision is
// treated as a programming error and surfaces as a StorageError.
func (s *Store) Insert(ctx context.Context, job *ImageJob) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	query := `
		INSERT INTO image_jobs
			(id, created_at, updated_at, status, prompt, model, size, urls, ipfs_urls, user_id, callback_url, error)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.CreatedAt, job.UpdatedAt, job.Status, job.Prompt, job.Model, job.Size,
		job.URLs, job.IPFSURLs, job.UserID, job.CallbackURL, job.Error,
	)
	if err != nil {
		return fmt.Errorf("insert image job: %w", err)
	}
	return nil
}

// Update applies a partial mutation. Fields left zero-valued in u are
// unchanged, except Status which is always written. updated_at is always
// bumped. A transition out of Completed or Failed is a no-op: terminal
// states are sticky.
func (s *Store) Update(ctx context.Context, id uuid.UUID, u Update) error {
	query := `
		UPDATE image_jobs
		SET status = $2,
		    urls = COALESCE($3, urls),
		    ipfs_urls = COALESCE($4, ipfs_urls),
		    error = COALESCE($5, error),
		    updated_at = $6
		WHERE id = $1
		  AND status NOT IN ($7, $8)
	`
	res, err := s.db.ExecContext(ctx, query,
		id, u.Status, nullableArray(u.URLs), nullableArray(u.IPFSURLs), u.Error, time.Now().UTC(),
		StatusCompleted, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("update image job %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update image job %s: %w", id, err)
	}
	if rows == 0 {
		// Either the job doesn't exist, or it is already terminal — both
		// are acceptable no-ops for this call per the terminal-stickiness rule.
		return nil
	}
	return nil
}

// Get returns the row for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*ImageJob, error) {
	var job ImageJob
	query := `SELECT * FROM image_jobs WHERE id = $1`
	err := s.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image job %s: %w", id, err)
	}
	return &job, nil
}

// ListByUser returns jobs for userID ordered by created_at descending,
// tie-broken by id, paginated by limit/offset.
func (s *Store) ListByUser(ctx context.Context, userID string, limit, offset int) ([]ImageJob, error) {
	var jobs []ImageJob
	query := `
		SELECT * FROM image_jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	if err := s.db.SelectContext(ctx, &jobs, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list image jobs for user %s: %w", userID, err)
	}
	return jobs, nil
}

func nullableArray(ss []string) interface{} {
	if ss == nil {
		return nil
	}
	return pq.Array(ss)
}
