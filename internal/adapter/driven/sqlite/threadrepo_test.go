package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeapprove/reviewsync/internal/domain/model"
	"github.com/codeapprove/reviewsync/internal/domain/port/driven"
)

// addTestReview inserts the parent review threads hang off (FK constraint).
func addTestReview(t *testing.T, db *DB) {
	t.Helper()
	repo := NewReviewRepo(db)
	require.NoError(t, repo.Create(context.Background(), testReviewPath, makeReview(nil)))
	ackAll(t, db)
}

func TestThreadRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)
	ctx := context.Background()

	path := testReviewPath.Thread("th-1")
	require.NoError(t, repo.Create(ctx, path, model.Thread{
		File: "main.go", Side: model.SideRight, Line: 10,
	}))

	got, err := repo.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "th-1", got.ID)
	assert.Equal(t, "main.go", got.File)
	assert.Equal(t, model.SideRight, got.Side)
	assert.Equal(t, 10, got.Line)
	assert.False(t, got.Resolved)
	assert.False(t, got.Draft)

	events := pollAll(t, db)
	require.Len(t, events, 1)
	assert.Equal(t, driven.EventKindThread, events[0].Kind)
	require.NotNil(t, events[0].Thread)
	assert.Nil(t, events[0].Thread.Before)
	assert.Equal(t, "th-1", events[0].Thread.After.ID)
	assert.Equal(t, path, events[0].Thread.Path)
}

func TestThreadRepo_CreateGeneratesID(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath.Thread(""), model.Thread{
		File: "main.go", Side: model.SideLeft, Line: 1,
	}))

	threads, err := repo.List(ctx, testReviewPath)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.NotEmpty(t, threads[0].ID)
}

func TestThreadRepo_CreateWithoutParentFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewThreadRepo(db)

	err := repo.Create(context.Background(), testReviewPath.Thread("th-1"), model.Thread{
		File: "main.go", Side: model.SideRight, Line: 1,
	})
	assert.Error(t, err)
}

func TestThreadRepo_GetMissingIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)

	_, err := repo.Get(context.Background(), testReviewPath.Thread("nope"))
	assert.ErrorIs(t, err, driven.ErrNotFound)
}

func TestThreadRepo_SetResolved(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)
	ctx := context.Background()

	path := testReviewPath.Thread("th-1")
	require.NoError(t, repo.Create(ctx, path, model.Thread{
		File: "main.go", Side: model.SideRight, Line: 10,
	}))
	ackAll(t, db)

	require.NoError(t, repo.SetResolved(ctx, path, true))

	got, err := repo.Get(ctx, path)
	require.NoError(t, err)
	assert.True(t, got.Resolved)

	events := pollAll(t, db)
	require.Len(t, events, 1)
	assert.False(t, events[0].Thread.Before.Resolved)
	assert.True(t, events[0].Thread.After.Resolved)
}

func TestThreadRepo_SetDraft(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)
	ctx := context.Background()

	path := testReviewPath.Thread("th-1")
	require.NoError(t, repo.Create(ctx, path, model.Thread{
		File: "main.go", Side: model.SideRight, Line: 10, Draft: true,
	}))

	require.NoError(t, repo.SetDraft(ctx, path, false))

	got, err := repo.Get(ctx, path)
	require.NoError(t, err)
	assert.False(t, got.Draft)
}

func TestThreadRepo_List(t *testing.T) {
	db := setupTestDB(t)
	addTestReview(t, db)
	repo := NewThreadRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testReviewPath.Thread("b"), model.Thread{
		File: "util.go", Side: model.SideLeft, Line: 5, Resolved: true,
	}))
	require.NoError(t, repo.Create(ctx, testReviewPath.Thread("a"), model.Thread{
		File: "main.go", Side: model.SideRight, Line: 10,
	}))

	threads, err := repo.List(ctx, testReviewPath)
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, "a", threads[0].ID)
	assert.Equal(t, "b", threads[1].ID)

	empty, err := repo.List(ctx, model.ReviewPath{Org: "acme", Repo: "rocket", ReviewID: "99"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
