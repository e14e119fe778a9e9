package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

var testReviewPath = model.ReviewPath{Org: "acme", Repo: "rocket", ReviewID: "42"}

func makeReview(reviewers map[string]bool) model.Review {
	return model.Review{
		Metadata: model.ReviewMetadata{Number: 42},
		State: model.ReviewState{
			Status:    model.StatusPending,
			Reviewers: reviewers,
		},
	}
}

// pollAll drains every currently deliverable event for assertions.
func pollAll(t *testing.T, db *DB) []driven.Event {
	t.Helper()
	feed := NewChangeLog(db, 5, time.Second)
	events, err := feed.Poll(context.Background(), 100)
	require.NoError(t, err)
	return events
}

// ackAll marks every pending event done so later assertions see only new ones.
func ackAll(t *testing.T, db *DB) {
	t.Helper()
	feed := NewChangeLog(db, 5, time.Second)
	for _, ev := range pollAll(t, db) {
		require.NoError(t, feed.Ack(context.Background(), ev.ID))
	}
}

func TestReviewRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(map[string]bool{"alice": true, "bob": false})))

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Metadata.Owner)
	assert.Equal(t, "rocket", got.Metadata.Repo)
	assert.Equal(t, 42, got.Metadata.Number)
	assert.Equal(t, model.StatusPending, got.State.Status)
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, got.State.Reviewers)
	assert.Zero(t, got.State.Unresolved)
	assert.True(t, got.State.LastComment.IsZero())

	// Creation emitted one review event with no before snapshot.
	events := pollAll(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, driven.EventKindReview, events[0].Kind)
	require.NotNil(t, events[0].Review)
	assert.Nil(t, events[0].Review.Before)
	require.NotNil(t, events[0].Review.After)
	assert.Equal(t, 42, events[0].Review.After.Metadata.Number)
}

func TestReviewRepo_GetMissingIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)

	_, err := repo.Get(context.Background(), testReviewPath)
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestReviewRepo_SetApproval(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(map[string]bool{"alice": false})))
	ackAll(t, db)

	require.NoError(t, repo.SetApproval(ctx, testReviewPath, "alice", true))
	require.NoError(t, repo.SetApproval(ctx, testReviewPath, "bob", false))

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, got.State.Reviewers)

	// Each mutation carried its before/after pair.
	events := pollAll(t, db)
	require.Len(t, events, 2)
	require.NotNil(t, events[0].Review.Before)
	assert.Equal(t, map[string]bool{"alice": false}, events[0].Review.Before.State.Reviewers)
	assert.Equal(t, map[string]bool{"alice": true}, events[0].Review.After.State.Reviewers)
}

func TestReviewRepo_UpdateStatusWritesOnlyDeltas(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(map[string]bool{"alice": true})))
	ackAll(t, db)

	// Compute returns the stored status: no write, no event.
	status, wrote, err := repo.UpdateStatus(ctx, testReviewPath, func(s model.ReviewState) model.Status {
		return s.Status
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, status)
	assert.False(t, wrote)
	assert.Empty(t, pollAll(t, db), "a no-op recompute must not emit an event")

	// Compute returns a different status: one write, one event.
	status, wrote, err = repo.UpdateStatus(ctx, testReviewPath, func(model.ReviewState) model.Status {
		return model.StatusApproved
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, status)
	assert.True(t, wrote)

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.State.Status)

	events := pollAll(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusPending, events[0].Review.Before.State.Status)
	assert.Equal(t, model.StatusApproved, events[0].Review.After.State.Status)
}

func TestReviewRepo_UpdateStatusMissingReview(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)

	_, _, err := repo.UpdateStatus(context.Background(), testReviewPath, func(s model.ReviewState) model.Status {
		return s.Status
	})
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestReviewRepo_IncrementUnresolved(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(nil)))

	require.NoError(t, repo.IncrementUnresolved(ctx, testReviewPath, 1))
	require.NoError(t, repo.IncrementUnresolved(ctx, testReviewPath, 1))
	require.NoError(t, repo.IncrementUnresolved(ctx, testReviewPath, -1))

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.Equal(t, 1, got.State.Unresolved)
}

func TestReviewRepo_AddCommentBumpsLastCommentMonotonically(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(nil)))
	ackAll(t, db)

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	require.NoError(t, repo.AddComment(ctx, testReviewPath, model.Comment{
		ThreadID: "th-1", Username: "alice", Text: "first", Timestamp: t1,
	}))

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.True(t, got.State.LastComment.Equal(t1))

	// An out-of-order older comment must not move last_comment backwards.
	require.NoError(t, repo.AddComment(ctx, testReviewPath, model.Comment{
		ThreadID: "th-1", Username: "bob", Text: "late delivery", Timestamp: t0,
	}))

	got, err = repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.True(t, got.State.LastComment.Equal(t1))

	comments, err := repo.ListComments(ctx, testReviewPath)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "late delivery", comments[0].Text, "ordered by timestamp")
	assert.NotEmpty(t, comments[0].ID, "missing ids are generated")
}

func TestReviewRepo_DraftCommentDoesNotTouchReview(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReviewRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath, makeReview(nil)))
	ackAll(t, db)

	require.NoError(t, repo.AddComment(ctx, testReviewPath, model.Comment{
		ThreadID: "th-1", Username: "alice", Text: "wip", Draft: true,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}))

	got, err := repo.Get(ctx, testReviewPath)
	require.NoError(t, err)
	assert.True(t, got.State.LastComment.IsZero())
	assert.Empty(t, pollAll(t, db), "draft comments emit no review event")

	comments, err := repo.ListComments(ctx, testReviewPath)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.True(t, comments[0].Draft)
}
