package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage_RoundTrip(t *testing.T) {
	store, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "stream-1/segment_0.ts", bytes.NewReader([]byte("chunk-0"))))
	require.NoError(t, store.Save(ctx, "stream-1/segment_1.ts", bytes.NewReader([]byte("chunk-1"))))
	require.NoError(t, store.Save(ctx, "stream-2/segment_0.ts", bytes.NewReader([]byte("other"))))

	rc, err := store.Load(ctx, "stream-1/segment_0.ts")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "chunk-0", string(data))

	names, err := store.List(ctx, "stream-1/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"stream-1/segment_0.ts", "stream-1/segment_1.ts"}, names)

	require.NoError(t, store.Delete(ctx, "stream-1/segment_0.ts"))
	names, err = store.List(ctx, "stream-1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"stream-1/segment_1.ts"}, names)
}

func TestFileStorage_LoadMissing(t *testing.T) {
	store, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "nope/segment_0.ts")
	assert.Error(t, err)
}
