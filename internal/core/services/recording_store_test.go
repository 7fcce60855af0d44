package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
	"github.com/toxikmusic/traxx-current-sub001/internal/core/ports"
	"github.com/toxikmusic/traxx-current-sub001/pkg/hls"
)

type storeFixture struct {
	store ports.RecordingStore
	dir   string
	clock *time.Time
}

func newStoreFixture(t *testing.T, ttl time.Duration) *storeFixture {
	t.Helper()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &start
	dir := t.TempDir()

	store := NewRecordingStore(dir, nil, ttl, zap.NewNop().Sugar(), ports.NopMetrics{},
		WithRecordingClock(func() time.Time { return *clock }))

	return &storeFixture{store: store, dir: dir, clock: clock}
}

func (f *storeFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestRecordingStore_StoreSegmentCreatesTemporaryRecording(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	url, err := f.store.StoreSegment(ctx, 7, "owner1", []byte("chunk"), 0)
	require.NoError(t, err)
	assert.Equal(t, "/hls/7/segment_0.ts", url)

	data, err := os.ReadFile(filepath.Join(f.dir, "7", "segment_0.ts"))
	require.NoError(t, err)
	assert.Equal(t, []byte("chunk"), data)

	rec, ok := f.store.Get(7)
	require.True(t, ok)
	assert.True(t, rec.IsTemporary)
	assert.Equal(t, "/recordings/stream-7/playlist.m3u8", rec.PlaylistURL)
	assert.Equal(t, f.clock.Add(24*time.Hour), rec.ExpiresAt)
	assert.Equal(t, int64(5), rec.SizeBytes)
	assert.Equal(t, float64(domain.SegmentDurationSeconds), rec.DurationSeconds)
}

func TestRecordingStore_ServeBeforeAndAfterExpiry(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := f.store.StoreSegment(ctx, 7, "owner1", []byte("chunk"), 0)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdatePlaylist(ctx, 7, []domain.SegmentRef{{Name: "segment_0.ts", Index: 0}}, 0, false))

	served, err := f.store.Serve(ctx, 7, "playlist.m3u8")
	require.NoError(t, err)
	assert.Equal(t, hls.PlaylistContentType, served.ContentType)

	served, err = f.store.Serve(ctx, 7, "segment_0.ts")
	require.NoError(t, err)
	assert.Equal(t, hls.SegmentContentType, served.ContentType)
	assert.Equal(t, []byte("chunk"), served.Data)

	// Still servable at exactly the TTL boundary.
	f.advance(24 * time.Hour)
	_, err = f.store.Serve(ctx, 7, "playlist.m3u8")
	assert.NoError(t, err)

	f.advance(time.Second)
	_, err = f.store.Serve(ctx, 7, "playlist.m3u8")
	assert.ErrorIs(t, err, domain.ErrRecordingExpired)
}

func TestRecordingStore_ServeUnknownRecording(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)

	_, err := f.store.Serve(context.Background(), 99, "playlist.m3u8")
	assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
}

func TestRecordingStore_ServeMissingFile(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := f.store.StoreSegment(ctx, 7, "owner1", []byte("chunk"), 0)
	require.NoError(t, err)

	_, err = f.store.Serve(ctx, 7, "segment_5.ts")
	assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
}

func TestRecordingStore_FinalizePermanentSurvivesExpiry(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := f.store.StoreSegment(ctx, 7, "owner1", []byte("chunk"), 0)
	require.NoError(t, err)

	found, err := f.store.FinalizeRecording(ctx, 7, true)
	require.NoError(t, err)
	assert.True(t, found)

	rec, ok := f.store.Get(7)
	require.True(t, ok)
	assert.False(t, rec.IsTemporary)
	assert.True(t, rec.ExpiresAt.IsZero())

	f.advance(48 * time.Hour)
	assert.Equal(t, 0, f.store.SweepExpired(ctx))

	_, err = f.store.Serve(ctx, 7, "segment_0.ts")
	assert.NoError(t, err)
}

func TestRecordingStore_FinalizeDeleteRemovesFiles(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := f.store.StoreSegment(ctx, 7, "owner1", []byte("chunk"), 0)
	require.NoError(t, err)

	found, err := f.store.FinalizeRecording(ctx, 7, false)
	require.NoError(t, err)
	assert.True(t, found)

	_, ok := f.store.Get(7)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(f.dir, "7"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecordingStore_FinalizeUnknownRecording(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)

	found, err := f.store.FinalizeRecording(context.Background(), 99, true)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordingStore_SweepExpired(t *testing.T) {
	f := newStoreFixture(t, time.Hour)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := f.store.StoreSegment(ctx, domain.StreamID(i), "owner1", []byte("chunk"), 0)
		require.NoError(t, err)
	}
	// The third becomes permanent and must survive.
	_, err := f.store.FinalizeRecording(ctx, 3, true)
	require.NoError(t, err)

	assert.Equal(t, 0, f.store.SweepExpired(ctx), "nothing expired yet")

	f.advance(2 * time.Hour)
	assert.Equal(t, 2, f.store.SweepExpired(ctx))

	for i := 1; i <= 2; i++ {
		_, ok := f.store.Get(domain.StreamID(i))
		assert.False(t, ok)
		_, err := os.Stat(filepath.Join(f.dir, fmt.Sprintf("%d", i)))
		assert.True(t, os.IsNotExist(err))
	}
	_, ok := f.store.Get(3)
	assert.True(t, ok)
}

func TestRecordingStore_ExportImportDeepCopies(t *testing.T) {
	f := newStoreFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := f.store.StoreSegment(ctx, 7, "user1", []byte("chunk"), 0)
	require.NoError(t, err)

	exported := f.store.Export()
	require.Len(t, exported, 1)
	exported[0].Segments[0].Name = "mutated"

	rec, ok := f.store.Get(7)
	require.True(t, ok)
	assert.Equal(t, "segment_0.ts", rec.Segments[0].Name)

	// Import never overwrites a live entry.
	f.store.Import([]*domain.Recording{{StreamID: 7, OwnerID: "someone-else"}})
	rec, ok = f.store.Get(7)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("user1"), rec.OwnerID)
}
