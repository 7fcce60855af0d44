package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

func TestCreateAssignsSequentialIDs(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	a := &domain.Stream{UserID: "user1", Title: "first"}
	b := &domain.Stream{UserID: "user2", Title: "second"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	assert.Equal(t, domain.StreamID(1), a.ID)
	assert.Equal(t, domain.StreamID(2), b.ID)
}

func TestCreateWithExplicitID(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Stream{ID: 10, UserID: "user1"}))

	err := repo.Create(ctx, &domain.Stream{ID: 10, UserID: "user2"})
	assert.Error(t, err)

	// The counter skips past explicit ids so later auto-assignment cannot
	// collide.
	next := &domain.Stream{UserID: "user3"}
	require.NoError(t, repo.Create(ctx, next))
	assert.Equal(t, domain.StreamID(11), next.ID)
}

func TestGetByIDReturnsCopy(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream := &domain.Stream{UserID: "user1", Title: "original"}
	require.NoError(t, repo.Create(ctx, stream))

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestGetByPublicIDAndKey(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream := &domain.Stream{UserID: "user1", PublicID: "abcd1234abcd1234", StreamKey: "user1:123:sig"}
	require.NoError(t, repo.Create(ctx, stream))

	got, err := repo.GetByPublicID(ctx, "abcd1234abcd1234")
	require.NoError(t, err)
	assert.Equal(t, stream.ID, got.ID)

	_, err = repo.GetByPublicID(ctx, "0000000000000000")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)

	got, err = repo.GetByKey(ctx, "user1:123:sig")
	require.NoError(t, err)
	assert.Equal(t, stream.ID, got.ID)

	// An empty stored key never matches an empty lookup.
	require.NoError(t, repo.Create(ctx, &domain.Stream{UserID: "user2"}))
	_, err = repo.GetByKey(ctx, "")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
}

func TestUpdateAndDelete(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	stream := &domain.Stream{UserID: "user1"}
	require.NoError(t, repo.Create(ctx, stream))

	stream.IsLive = true
	require.NoError(t, repo.Update(ctx, stream))

	got, err := repo.GetByID(ctx, stream.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLive)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Stream{ID: 999}), domain.ErrStreamNotFound)

	require.NoError(t, repo.Delete(ctx, stream.ID))
	_, err = repo.GetByID(ctx, stream.ID)
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, stream.ID), domain.ErrStreamNotFound)
}

func TestListActive(t *testing.T) {
	repo := NewMemoryStreamRepository()
	ctx := context.Background()

	live := &domain.Stream{UserID: "user1", IsLive: true}
	idle := &domain.Stream{UserID: "user2"}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, idle))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live.ID, active[0].ID)
}
