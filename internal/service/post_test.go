package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/flatblog/internal/apperror"
	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/model"
	"github.com/sakif/flatblog/internal/repository"
	"github.com/sakif/flatblog/internal/repository/memory"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

var testDate = time.Date(2023, time.June, 22, 15, 4, 5, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestPostService wires a PostService to an in-memory store and a clock
// frozen at testDate.
func newTestPostService(t *testing.T) (*PostService, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewPostService(store, clock.NewStubClock(testDate), testLogger()), store
}

// createTestPost creates a post and fails the test if it errors.
func createTestPost(t *testing.T, svc *PostService, title, author string) *model.Post {
	t.Helper()
	post, err := svc.Create(context.Background(), title, "content of "+title, author)
	require.NoError(t, err)
	return post
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_FirstPostGetsIDOne(t *testing.T) {
	svc, _ := newTestPostService(t)

	post := createTestPost(t, svc, "Hello", "alice")

	assert.Equal(t, 1, post.ID)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "content of Hello", post.Content)
	assert.Equal(t, "alice", post.Author)
	assert.Equal(t, "June 22, 2023", post.DatePosted)
}

func TestCreate_IDIsMaxPlusOne(t *testing.T) {
	svc, store := newTestPostService(t)
	require.NoError(t, store.SavePosts(context.Background(), []model.Post{
		{ID: 7, Title: "seven"},
		{ID: 3, Title: "three"},
	}))

	post := createTestPost(t, svc, "next", "alice")
	assert.Equal(t, 8, post.ID)
}

func TestCreate_IDsStrictlyIncrease(t *testing.T) {
	svc, _ := newTestPostService(t)
	ctx := context.Background()

	highest := 0
	for i := 0; i < 10; i++ {
		post := createTestPost(t, svc, "post", "alice")
		assert.Greater(t, post.ID, highest)
		highest = post.ID

		// Delete every other post; the next ID must still exceed all
		// surviving IDs.
		if i%2 == 0 && i > 0 {
			require.NoError(t, svc.Delete(ctx, post.ID-1, "alice"))
		}
	}
}

func TestCreate_DeletedLowerIDIsNotReused(t *testing.T) {
	svc, _ := newTestPostService(t)
	ctx := context.Background()

	first := createTestPost(t, svc, "first", "alice")
	createTestPost(t, svc, "second", "alice")
	require.NoError(t, svc.Delete(ctx, first.ID, "alice"))

	third := createTestPost(t, svc, "third", "alice")
	assert.Equal(t, 3, third.ID)
}

func TestCreate_AppendsInOrder(t *testing.T) {
	svc, _ := newTestPostService(t)

	createTestPost(t, svc, "a", "alice")
	createTestPost(t, svc, "b", "bob")

	posts, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].Title)
	assert.Equal(t, "b", posts[1].Title)
}

func TestCreate_DeletedHighestIDIsNotReused(t *testing.T) {
	svc, _ := newTestPostService(t)
	ctx := context.Background()

	first := createTestPost(t, svc, "a", "alice")
	require.Equal(t, 1, first.ID)
	require.NoError(t, svc.Delete(ctx, first.ID, "alice"))

	second := createTestPost(t, svc, "b", "alice")
	assert.Equal(t, 2, second.ID)
}

func TestCreate_SeededHighestIDIsNotReusedAfterDelete(t *testing.T) {
	// Posts written without a meta document, as the first-run seed does.
	svc, store := newTestPostService(t)
	ctx := context.Background()
	require.NoError(t, store.SavePosts(ctx, []model.Post{
		{ID: 1, Title: "one", Author: "alice"},
		{ID: 2, Title: "two", Author: "alice"},
	}))

	require.NoError(t, svc.Delete(ctx, 2, "alice"))

	post := createTestPost(t, svc, "three", "alice")
	assert.Equal(t, 3, post.ID)
}

func TestCreate_HighWaterAboveExistingIDs(t *testing.T) {
	svc, store := newTestPostService(t)
	ctx := context.Background()
	require.NoError(t, store.SavePosts(ctx, []model.Post{{ID: 2, Title: "two"}}))
	require.NoError(t, store.SaveMeta(ctx, repository.PostMeta{LastPostID: 10}))

	post := createTestPost(t, svc, "next", "alice")
	assert.Equal(t, 11, post.ID)

	meta, err := store.LoadMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, meta.LastPostID)
}

func TestCreate_RequiresAuthor(t *testing.T) {
	svc, store := newTestPostService(t)

	_, err := svc.Create(context.Background(), "t", "c", "")
	require.ErrorIs(t, err, apperror.ErrUnauthorized)
	assert.Zero(t, store.Saves(repository.PostsDocument), "nothing should be written")
	assert.Zero(t, store.Saves(repository.MetaDocument))
}

func TestCreate_AcceptsAnyTitleAndContent(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"empty title", "", "c"},
		{"whitespace title", "   ", "c"},
		{"long title", strings.Repeat("x", 5000), "c"},
		{"long content", "t", strings.Repeat("x", 500000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestPostService(t)

			post, err := svc.Create(context.Background(), tt.title, tt.content, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.title, post.Title)
			assert.Equal(t, tt.content, post.Content)
		})
	}
}

func TestCreate_EmptyContentAllowed(t *testing.T) {
	svc, _ := newTestPostService(t)
	post, err := svc.Create(context.Background(), "title only", "", "alice")
	require.NoError(t, err)
	assert.Empty(t, post.Content)
}

func TestCreate_UsesClock(t *testing.T) {
	store := memory.New()
	clk := clock.NewStubClock(time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC))
	svc := NewPostService(store, clk, testLogger())

	post, err := svc.Create(context.Background(), "t", "c", "alice")
	require.NoError(t, err)
	assert.Equal(t, "January 05, 2024", post.DatePosted)
}

func TestCreate_StorageError(t *testing.T) {
	svc, store := newTestPostService(t)
	store.FailWith = errors.New("disk full")

	_, err := svc.Create(context.Background(), "t", "c", "alice")
	assert.Error(t, err)
}

// =========================================================================
// GET / LIST
// =========================================================================

func TestGet_Found(t *testing.T) {
	svc, _ := newTestPostService(t)
	created := createTestPost(t, svc, "findme", "alice")

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *got)
}

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestPostService(t)
	createTestPost(t, svc, "only", "alice")

	_, err := svc.Get(context.Background(), 99)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestList_EmptyStore(t *testing.T) {
	svc, _ := newTestPostService(t)

	posts, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_ByAuthor(t *testing.T) {
	svc, _ := newTestPostService(t)
	ctx := context.Background()
	post := createTestPost(t, svc, "mine", "alice")
	other := createTestPost(t, svc, "theirs", "bob")

	require.NoError(t, svc.Delete(ctx, post.ID, "alice"))

	_, err := svc.Get(ctx, post.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	remaining, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, other.ID, remaining[0].ID)
}

func TestDelete_ByNonAuthor(t *testing.T) {
	svc, store := newTestPostService(t)
	ctx := context.Background()
	post := createTestPost(t, svc, "mine", "alice")
	savesBefore := store.Saves(repository.PostsDocument)

	err := svc.Delete(ctx, post.ID, "bob")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.Get(ctx, post.ID)
	assert.NoError(t, err, "post must survive a refused delete")
	assert.Equal(t, savesBefore, store.Saves(repository.PostsDocument))
}

func TestDelete_AnonymousRequester(t *testing.T) {
	svc, _ := newTestPostService(t)
	post := createTestPost(t, svc, "mine", "alice")

	err := svc.Delete(context.Background(), post.ID, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestPostService(t)

	err := svc.Delete(context.Background(), 42, "alice")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NotErrorIs(t, err, apperror.ErrForbidden)
}

func TestDelete_AuthorMatchIsCaseSensitive(t *testing.T) {
	svc, _ := newTestPostService(t)
	post := createTestPost(t, svc, "mine", "alice")

	err := svc.Delete(context.Background(), post.ID, "Alice")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
