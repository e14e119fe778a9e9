package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewStore = (*ReviewRepo)(nil)

// ReviewRepo is the SQLite implementation of the ReviewStore port. Every
// mutation runs in one writer transaction that updates the document row and
// appends the corresponding change event, so the feed never misses a write.
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo creates a new ReviewRepo backed by the given DB.
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

const reviewColumns = "number, closed, status, reviewers, changes_requested, unresolved, last_comment_ms"

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(path model.ReviewPath, row rowScanner) (*model.Review, error) {
	var (
		rv            model.Review
		closed        int
		status        string
		reviewersJSON string
		changesReq    int
		lastCommentMS int64
	)
	err := row.Scan(&rv.Metadata.Number, &closed, &status, &reviewersJSON, &changesReq, &rv.State.Unresolved, &lastCommentMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review %s: %w", path, driven.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan review %s: %w", path, err)
	}

	rv.Metadata.Owner = path.Org
	rv.Metadata.Repo = path.Repo
	rv.State.Closed = closed != 0
	rv.State.Status = model.Status(status)
	rv.State.ChangesRequested = changesReq != 0
	if lastCommentMS > 0 {
		rv.State.LastComment = time.UnixMilli(lastCommentMS).UTC()
	}

	rv.State.Reviewers = map[string]bool{}
	if err := json.Unmarshal([]byte(reviewersJSON), &rv.State.Reviewers); err != nil {
		return nil, fmt.Errorf("decode reviewers for %s: %w", path, err)
	}

	return &rv, nil
}

func getReviewTx(ctx context.Context, tx *sql.Tx, path model.ReviewPath) (*model.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews WHERE org = ? AND repo = ? AND review_id = ?"
	return scanReview(path, tx.QueryRowContext(ctx, query, path.Org, path.Repo, path.ReviewID))
}

// Create inserts a new review document and emits its creation event
// (nil before snapshot).
func (r *ReviewRepo) Create(ctx context.Context, path model.ReviewPath, review model.Review) error {
	review.Metadata.Owner = path.Org
	review.Metadata.Repo = path.Repo
	if review.State.Status == "" {
		review.State.Status = model.StatusPending
	}
	if review.State.Reviewers == nil {
		review.State.Reviewers = map[string]bool{}
	}
	review.State.LastComment = truncMS(review.State.LastComment)

	reviewersJSON, err := json.Marshal(review.State.Reviewers)
	if err != nil {
		return fmt.Errorf("encode reviewers for %s: %w", path, err)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create review %s: %w", path, err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO reviews (org, repo, review_id, number, closed, status, reviewers, changes_requested, unresolved, last_comment_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		path.Org, path.Repo, path.ReviewID,
		review.Metadata.Number, boolInt(review.State.Closed), string(review.State.Status),
		string(reviewersJSON), boolInt(review.State.ChangesRequested),
		review.State.Unresolved, unixMS(review.State.LastComment),
	)
	if err != nil {
		return fmt.Errorf("create review %s: %w", path, err)
	}

	if err := appendReviewEvent(ctx, tx, path, nil, &review); err != nil {
		return err
	}

	return tx.Commit()
}

// Get reads a review document. Returns ErrNotFound when it does not exist.
func (r *ReviewRepo) Get(ctx context.Context, path model.ReviewPath) (*model.Review, error) {
	query := "SELECT " + reviewColumns + " FROM reviews WHERE org = ? AND repo = ? AND review_id = ?"
	return scanReview(path, r.db.Reader.QueryRowContext(ctx, query, path.Org, path.Repo, path.ReviewID))
}

// SetApproval records whether the given reviewer has approved.
func (r *ReviewRepo) SetApproval(ctx context.Context, path model.ReviewPath, login string, approved bool) error {
	return r.mutate(ctx, path, fmt.Sprintf("set approval %s=%t", login, approved), func(tx *sql.Tx, before *model.Review) error {
		reviewers := map[string]bool{}
		for k, v := range before.State.Reviewers {
			reviewers[k] = v
		}
		reviewers[login] = approved

		reviewersJSON, err := json.Marshal(reviewers)
		if err != nil {
			return fmt.Errorf("encode reviewers: %w", err)
		}

		const query = `UPDATE reviews SET reviewers = ? WHERE org = ? AND repo = ? AND review_id = ?`
		_, err = tx.ExecContext(ctx, query, string(reviewersJSON), path.Org, path.Repo, path.ReviewID)
		return err
	})
}

// SetChangesRequested sets or clears the sticky change-request marker.
func (r *ReviewRepo) SetChangesRequested(ctx context.Context, path model.ReviewPath, requested bool) error {
	return r.mutate(ctx, path, fmt.Sprintf("set changes_requested=%t", requested), func(tx *sql.Tx, _ *model.Review) error {
		const query = `UPDATE reviews SET changes_requested = ? WHERE org = ? AND repo = ? AND review_id = ?`
		_, err := tx.ExecContext(ctx, query, boolInt(requested), path.Org, path.Repo, path.ReviewID)
		return err
	})
}

// SetClosed closes or reopens the review.
func (r *ReviewRepo) SetClosed(ctx context.Context, path model.ReviewPath, closed bool) error {
	return r.mutate(ctx, path, fmt.Sprintf("set closed=%t", closed), func(tx *sql.Tx, _ *model.Review) error {
		const query = `UPDATE reviews SET closed = ? WHERE org = ? AND repo = ? AND review_id = ?`
		_, err := tx.ExecContext(ctx, query, boolInt(closed), path.Org, path.Repo, path.ReviewID)
		return err
	})
}

// UpdateStatus re-reads the review inside a transaction, applies compute to
// the current state, and writes the status only when it differs. A
// transaction that computes the stored status performs no write and emits no
// event, so it cannot re-trigger the reconciler.
func (r *ReviewRepo) UpdateStatus(ctx context.Context, path model.ReviewPath, compute func(model.ReviewState) model.Status) (model.Status, bool, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin update status %s: %w", path, err)
	}
	defer tx.Rollback()

	before, err := getReviewTx(ctx, tx, path)
	if err != nil {
		return "", false, err
	}

	newStatus := compute(before.State)
	if newStatus == before.State.Status {
		return newStatus, false, tx.Commit()
	}

	const query = `UPDATE reviews SET status = ? WHERE org = ? AND repo = ? AND review_id = ?`
	if _, err := tx.ExecContext(ctx, query, string(newStatus), path.Org, path.Repo, path.ReviewID); err != nil {
		return "", false, fmt.Errorf("update status %s: %w", path, err)
	}

	after := *before
	after.State.Status = newStatus
	if err := appendReviewEvent(ctx, tx, path, before, &after); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit update status %s: %w", path, err)
	}
	return newStatus, true, nil
}

// IncrementUnresolved adjusts the unresolved counter with an in-place SQL
// increment. The before/after reads exist only to snapshot the change event;
// the written value is computed by the database, so concurrent sibling
// increments cannot race-lose an update.
func (r *ReviewRepo) IncrementUnresolved(ctx context.Context, path model.ReviewPath, delta int) error {
	return r.mutate(ctx, path, fmt.Sprintf("increment unresolved by %d", delta), func(tx *sql.Tx, _ *model.Review) error {
		const query = `UPDATE reviews SET unresolved = unresolved + ? WHERE org = ? AND repo = ? AND review_id = ?`
		_, err := tx.ExecContext(ctx, query, delta, path.Org, path.Repo, path.ReviewID)
		return err
	})
}

// AddComment persists a comment under the review. Non-draft comments advance
// state.last_comment monotonically (MAX keeps out-of-order deliveries from
// moving it backwards) and emit a review change event; draft comments touch
// only the comments table.
func (r *ReviewRepo) AddComment(ctx context.Context, path model.ReviewPath, comment model.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now()
	}
	comment.Timestamp = truncMS(comment.Timestamp)

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add comment %s: %w", path, err)
	}
	defer tx.Rollback()

	var before *model.Review
	if !comment.Draft {
		before, err = getReviewTx(ctx, tx, path)
		if err != nil {
			return err
		}
	}

	const insert = `
		INSERT INTO comments (comment_id, org, repo, review_id, thread_id, username, photo_url, body, draft, created_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insert,
		comment.ID, path.Org, path.Repo, path.ReviewID, comment.ThreadID,
		comment.Username, comment.PhotoURL, comment.Text,
		boolInt(comment.Draft), unixMS(comment.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("add comment %s to %s: %w", comment.ID, path, err)
	}

	if !comment.Draft {
		const bump = `UPDATE reviews SET last_comment_ms = MAX(last_comment_ms, ?) WHERE org = ? AND repo = ? AND review_id = ?`
		if _, err := tx.ExecContext(ctx, bump, unixMS(comment.Timestamp), path.Org, path.Repo, path.ReviewID); err != nil {
			return fmt.Errorf("bump last comment on %s: %w", path, err)
		}

		after, err := getReviewTx(ctx, tx, path)
		if err != nil {
			return err
		}
		if err := appendReviewEvent(ctx, tx, path, before, after); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListComments returns the review's comments ordered by timestamp.
func (r *ReviewRepo) ListComments(ctx context.Context, path model.ReviewPath) ([]model.Comment, error) {
	const query = `
		SELECT comment_id, thread_id, username, photo_url, body, draft, created_ms
		FROM comments
		WHERE org = ? AND repo = ? AND review_id = ?
		ORDER BY created_ms, comment_id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, path.Org, path.Repo, path.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", path, err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		var (
			c         model.Comment
			draft     int
			createdMS int64
		)
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.Username, &c.PhotoURL, &c.Text, &draft, &createdMS); err != nil {
			return nil, fmt.Errorf("scan comment for %s: %w", path, err)
		}
		c.Draft = draft != 0
		c.Timestamp = time.UnixMilli(createdMS).UTC()
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments for %s: %w", path, err)
	}

	return comments, nil
}

// mutate runs a document write in one transaction bracketed by before/after
// snapshot reads and appends the resulting change event.
func (r *ReviewRepo) mutate(ctx context.Context, path model.ReviewPath, op string, apply func(tx *sql.Tx, before *model.Review) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s on %s: %w", op, path, err)
	}
	defer tx.Rollback()

	before, err := getReviewTx(ctx, tx, path)
	if err != nil {
		return err
	}

	if err := apply(tx, before); err != nil {
		return fmt.Errorf("%s on %s: %w", op, path, err)
	}

	after, err := getReviewTx(ctx, tx, path)
	if err != nil {
		return err
	}

	if err := appendReviewEvent(ctx, tx, path, before, after); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s on %s: %w", op, path, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func truncMS(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMilli(t.UnixMilli()).UTC()
}
