package content

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	return NewDiskStore(Config{Root: t.TempDir()})
}

func TestDiskStorePutOpen(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, bytes.NewReader([]byte("Hello Webstack!\n")))
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Hello Webstack!\n", string(data))
}

func TestDiskStorePutGeneratesDistinctRefs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	ref1, err := store.Put(ctx, bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	ref2, err := store.Put(ctx, bytes.NewReader([]byte("one")))
	require.NoError(t, err)

	assert.NotEqual(t, ref1, ref2)
}

func TestDiskStorePutRefOverwrites(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutRef(ctx, "image.png_500", bytes.NewReader([]byte("first"))))
	require.NoError(t, store.PutRef(ctx, "image.png_500", bytes.NewReader([]byte("second"))))

	rc, err := store.Open(ctx, "image.png_500")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestDiskStoreOpenMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Open(context.Background(), "no-such-ref")
	require.Error(t, err)
	assert.Equal(t, errx.T_NotFound, errx.GetType(err))
}

func TestDiskStoreExists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	ok, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskStoreRejectsEscapingRefs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, ref := range []string{"", "..", "/"} {
		err := store.PutRef(ctx, ref, bytes.NewReader(nil))
		assert.Error(t, err, "ref %q", ref)
	}

	// Traversal components are normalized away rather than escaping the root.
	require.NoError(t, store.PutRef(ctx, "../inside", bytes.NewReader([]byte("x"))))
	ok, err := store.Exists(ctx, "inside")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVariantRef(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "8d3f1c_500", VariantRef("8d3f1c", 500))
	assert.Equal(t, "8d3f1c_100", VariantRef("8d3f1c", 100))
}

func TestTypeByName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", TypeByName("cat.png"))
	assert.Equal(t, "application/octet-stream", TypeByName("README"))
	assert.Equal(t, "application/octet-stream", TypeByName("archive.unknownext"))
}
