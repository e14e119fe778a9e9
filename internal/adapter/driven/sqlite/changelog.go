package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ChangeFeed = (*ChangeLog)(nil)

// Event lifecycle states in the change_events table.
const (
	eventStatePending = "pending"
	eventStateDone    = "done"
	eventStateDead    = "dead"
)

// ChangeLog is the SQLite implementation of the ChangeFeed port. Events are
// appended by the repos inside document-write transactions and drained here
// in id order, which is append order and therefore per-document write order.
type ChangeLog struct {
	db          *DB
	maxAttempts int
	retryDelay  time.Duration
}

// NewChangeLog creates a ChangeLog. maxAttempts bounds redelivery: an event
// Nacked that many times is parked as dead. retryDelay is how long a Nacked
// event stays invisible before it is delivered again.
func NewChangeLog(db *DB, maxAttempts int, retryDelay time.Duration) *ChangeLog {
	return &ChangeLog{db: db, maxAttempts: maxAttempts, retryDelay: retryDelay}
}

// Poll returns up to limit deliverable pending events in append order.
// Rows that cannot be decoded (unparseable path or snapshot JSON) are parked
// as dead so one poison event cannot wedge the feed.
func (l *ChangeLog) Poll(ctx context.Context, limit int) ([]driven.Event, error) {
	const query = `
		SELECT id, kind, doc_path, before_json, after_json, attempts
		FROM change_events
		WHERE state = ? AND visible_after_ms <= ?
		ORDER BY id
		LIMIT ?
	`

	rows, err := l.db.Reader.QueryContext(ctx, query, eventStatePending, nowMS(), limit)
	if err != nil {
		return nil, fmt.Errorf("poll change events: %w", err)
	}
	defer rows.Close()

	var events []driven.Event
	for rows.Next() {
		var (
			ev                    driven.Event
			kind, path            string
			beforeJSON, afterJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &kind, &path, &beforeJSON, &afterJSON, &ev.Attempts); err != nil {
			return nil, fmt.Errorf("scan change event: %w", err)
		}

		ev.Kind = driven.EventKind(kind)
		ev.Path = path

		if err := l.decodeEvent(&ev, beforeJSON, afterJSON); err != nil {
			slog.Error("parking undecodable change event", "event_id", ev.ID, "path", path, "error", err)
			if parkErr := l.park(ctx, ev.ID, err.Error()); parkErr != nil {
				return nil, parkErr
			}
			continue
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change events: %w", err)
	}

	return events, nil
}

// decodeEvent fills in the typed change payload from the stored path and
// snapshot JSON.
func (l *ChangeLog) decodeEvent(ev *driven.Event, beforeJSON, afterJSON sql.NullString) error {
	switch ev.Kind {
	case driven.EventKindReview:
		path, err := model.ParseReviewPath(ev.Path)
		if err != nil {
			return err
		}
		change := &driven.ReviewChange{Path: path}
		if err := unmarshalSnapshot(beforeJSON, &change.Before); err != nil {
			return fmt.Errorf("before snapshot: %w", err)
		}
		if err := unmarshalSnapshot(afterJSON, &change.After); err != nil {
			return fmt.Errorf("after snapshot: %w", err)
		}
		ev.Review = change
		return nil

	case driven.EventKindThread:
		path, err := model.ParseThreadPath(ev.Path)
		if err != nil {
			return err
		}
		change := &driven.ThreadChange{Path: path}
		if err := unmarshalSnapshot(beforeJSON, &change.Before); err != nil {
			return fmt.Errorf("before snapshot: %w", err)
		}
		if err := unmarshalSnapshot(afterJSON, &change.After); err != nil {
			return fmt.Errorf("after snapshot: %w", err)
		}
		ev.Thread = change
		return nil

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// Ack marks an event as processed.
func (l *ChangeLog) Ack(ctx context.Context, id int64) error {
	const query = `UPDATE change_events SET state = ? WHERE id = ?`
	if _, err := l.db.Writer.ExecContext(ctx, query, eventStateDone, id); err != nil {
		return fmt.Errorf("ack change event %d: %w", id, err)
	}
	return nil
}

// Nack records a failed delivery attempt. The event becomes deliverable
// again after the retry delay, or dead once the attempt limit is reached.
func (l *ChangeLog) Nack(ctx context.Context, id int64, reason string) error {
	const query = `
		UPDATE change_events
		SET attempts = attempts + 1,
		    last_error = ?,
		    state = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
		    visible_after_ms = ?
		WHERE id = ?
	`

	visibleAfter := time.Now().Add(l.retryDelay).UnixMilli()
	_, err := l.db.Writer.ExecContext(ctx, query,
		reason, l.maxAttempts, eventStateDead, eventStatePending, visibleAfter, id,
	)
	if err != nil {
		return fmt.Errorf("nack change event %d: %w", id, err)
	}
	return nil
}

// park marks an event dead without counting it against attempts.
func (l *ChangeLog) park(ctx context.Context, id int64, reason string) error {
	const query = `UPDATE change_events SET state = ?, last_error = ? WHERE id = ?`
	if _, err := l.db.Writer.ExecContext(ctx, query, eventStateDead, reason, id); err != nil {
		return fmt.Errorf("park change event %d: %w", id, err)
	}
	return nil
}

// unmarshalSnapshot decodes an optional JSON snapshot column into *T,
// leaving the target nil when the column is NULL (document did not exist).
func unmarshalSnapshot[T any](col sql.NullString, target **T) error {
	if !col.Valid {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(col.String), v); err != nil {
		return err
	}
	*target = v
	return nil
}

// appendReviewEvent appends a review change event within the caller's
// document-write transaction.
func appendReviewEvent(ctx context.Context, tx *sql.Tx, path model.ReviewPath, before, after *model.Review) error {
	return appendEvent(ctx, tx, driven.EventKindReview, path.String(), marshalSnapshot(before), marshalSnapshot(after))
}

// appendThreadEvent appends a thread change event within the caller's
// document-write transaction.
func appendThreadEvent(ctx context.Context, tx *sql.Tx, path model.ThreadPath, before, after *model.Thread) error {
	return appendEvent(ctx, tx, driven.EventKindThread, path.String(), marshalSnapshot(before), marshalSnapshot(after))
}

func appendEvent(ctx context.Context, tx *sql.Tx, kind driven.EventKind, path string, before, after any) error {
	const query = `
		INSERT INTO change_events (kind, doc_path, before_json, after_json, created_ms)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, string(kind), path, before, after, nowMS()); err != nil {
		return fmt.Errorf("append %s event for %s: %w", kind, path, err)
	}
	return nil
}

// marshalSnapshot renders a document pointer as a JSON column value,
// mapping a nil document to SQL NULL.
func marshalSnapshot[T any](v *T) any {
	if v == nil {
		return nil
	}
	// Domain types contain no unmarshalable values; a failure here would be
	// a programming error, so it is surfaced loudly.
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal snapshot: %v", err))
	}
	return string(b)
}

func nowMS() int64 {
	return time.Now().UnixMilli()
}
