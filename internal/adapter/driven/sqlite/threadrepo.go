package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ThreadStore = (*ThreadRepo)(nil)

// ThreadRepo is the SQLite implementation of the ThreadStore port. Like
// ReviewRepo, every mutation appends its change event in the same
// transaction as the document write.
type ThreadRepo struct {
	db *DB
}

// NewThreadRepo creates a new ThreadRepo backed by the given DB.
func NewThreadRepo(db *DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

func scanThread(path model.ThreadPath, row rowScanner) (*model.Thread, error) {
	var (
		t        model.Thread
		side     string
		resolved int
		draft    int
	)
	err := row.Scan(&t.ID, &t.File, &side, &t.Line, &resolved, &draft)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thread %s: %w", path, driven.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan thread %s: %w", path, err)
	}

	t.Side = model.Side(side)
	t.Resolved = resolved != 0
	t.Draft = draft != 0
	return &t, nil
}

func getThreadTx(ctx context.Context, tx *sql.Tx, path model.ThreadPath) (*model.Thread, error) {
	const query = `
		SELECT thread_id, file, side, line, resolved, draft
		FROM threads
		WHERE org = ? AND repo = ? AND review_id = ? AND thread_id = ?
	`
	return scanThread(path, tx.QueryRowContext(ctx, query, path.Org, path.Repo, path.ReviewID, path.ThreadID))
}

// Create inserts a new thread document under its review and emits its
// creation event. The parent review must exist (enforced by foreign key).
// If thread.ID is empty an identifier is generated; path.ThreadID wins when
// both are set.
func (r *ThreadRepo) Create(ctx context.Context, path model.ThreadPath, thread model.Thread) error {
	if path.ThreadID == "" {
		if thread.ID == "" {
			thread.ID = uuid.NewString()
		}
		path.ThreadID = thread.ID
	}
	thread.ID = path.ThreadID

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create thread %s: %w", path, err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO threads (org, repo, review_id, thread_id, file, side, line, resolved, draft)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		path.Org, path.Repo, path.ReviewID, path.ThreadID,
		thread.File, string(thread.Side), thread.Line,
		boolInt(thread.Resolved), boolInt(thread.Draft),
	)
	if err != nil {
		return fmt.Errorf("create thread %s: %w", path, err)
	}

	if err := appendThreadEvent(ctx, tx, path, nil, &thread); err != nil {
		return err
	}

	return tx.Commit()
}

// Get reads a thread document. Returns ErrNotFound when it does not exist.
func (r *ThreadRepo) Get(ctx context.Context, path model.ThreadPath) (*model.Thread, error) {
	const query = `
		SELECT thread_id, file, side, line, resolved, draft
		FROM threads
		WHERE org = ? AND repo = ? AND review_id = ? AND thread_id = ?
	`
	return scanThread(path, r.db.Reader.QueryRowContext(ctx, query, path.Org, path.Repo, path.ReviewID, path.ThreadID))
}

// SetResolved toggles the resolution state of a thread.
func (r *ThreadRepo) SetResolved(ctx context.Context, path model.ThreadPath, resolved bool) error {
	return r.mutate(ctx, path, fmt.Sprintf("set resolved=%t", resolved), func(tx *sql.Tx) error {
		const query = `UPDATE threads SET resolved = ? WHERE org = ? AND repo = ? AND review_id = ? AND thread_id = ?`
		_, err := tx.ExecContext(ctx, query, boolInt(resolved), path.Org, path.Repo, path.ReviewID, path.ThreadID)
		return err
	})
}

// SetDraft publishes or unpublishes a thread.
func (r *ThreadRepo) SetDraft(ctx context.Context, path model.ThreadPath, draft bool) error {
	return r.mutate(ctx, path, fmt.Sprintf("set draft=%t", draft), func(tx *sql.Tx) error {
		const query = `UPDATE threads SET draft = ? WHERE org = ? AND repo = ? AND review_id = ? AND thread_id = ?`
		_, err := tx.ExecContext(ctx, query, boolInt(draft), path.Org, path.Repo, path.ReviewID, path.ThreadID)
		return err
	})
}

// List returns all threads under a review ordered by id.
func (r *ThreadRepo) List(ctx context.Context, path model.ReviewPath) ([]model.Thread, error) {
	const query = `
		SELECT thread_id, file, side, line, resolved, draft
		FROM threads
		WHERE org = ? AND repo = ? AND review_id = ?
		ORDER BY thread_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, path.Org, path.Repo, path.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("list threads for %s: %w", path, err)
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		var (
			t        model.Thread
			side     string
			resolved int
			draft    int
		)
		if err := rows.Scan(&t.ID, &t.File, &side, &t.Line, &resolved, &draft); err != nil {
			return nil, fmt.Errorf("scan thread for %s: %w", path, err)
		}
		t.Side = model.Side(side)
		t.Resolved = resolved != 0
		t.Draft = draft != 0
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads for %s: %w", path, err)
	}

	return threads, nil
}

// mutate runs a thread write in one transaction bracketed by before/after
// snapshot reads and appends the resulting change event.
func (r *ThreadRepo) mutate(ctx context.Context, path model.ThreadPath, op string, apply func(tx *sql.Tx) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s on %s: %w", op, path, err)
	}
	defer tx.Rollback()

	before, err := getThreadTx(ctx, tx, path)
	if err != nil {
		return err
	}

	if err := apply(tx); err != nil {
		return fmt.Errorf("%s on %s: %w", op, path, err)
	}

	after, err := getThreadTx(ctx, tx, path)
	if err != nil {
		return err
	}

	if err := appendThreadEvent(ctx, tx, path, before, after); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s on %s: %w", op, path, err)
	}
	return nil
}
