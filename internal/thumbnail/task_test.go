package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func decodeStored(t *testing.T, store content.Store, ref string) image.Image {
	t.Helper()

	rc, err := store.Open(context.Background(), ref)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func setupTask(t *testing.T) (*Task, *metadata.MemoryRepository, *content.DiskStore) {
	t.Helper()

	repo := metadata.NewMemoryRepository()
	store := content.NewDiskStore(content.Config{Root: t.TempDir()})
	return NewTask(repo, store), repo, store
}

func uploadImage(t *testing.T, repo metadata.Repository, store content.Store, name string, data []byte) *model.File {
	t.Helper()
	ctx := context.Background()

	ref, err := store.Put(ctx, bytes.NewReader(data))
	require.NoError(t, err)

	f := &model.File{
		OwnerID:    1,
		Name:       name,
		Kind:       model.KindImage,
		Parent:     model.RootParent(),
		ContentRef: ref,
	}
	require.NoError(t, repo.CreateFile(ctx, f))
	return f
}

func TestProcessRendersAllWidths(t *testing.T) {
	t.Parallel()

	task, repo, store := setupTask(t)
	ctx := context.Background()

	f := uploadImage(t, repo, store, "cat.png", pngBytes(t, 1000, 800))

	err := task.Process(ctx, queue.Job{FileID: f.ID, OwnerID: f.OwnerID})
	require.NoError(t, err)

	for _, width := range Widths {
		img := decodeStored(t, store, content.VariantRef(f.ContentRef, width))
		bounds := img.Bounds()
		assert.Equal(t, width, bounds.Dx(), "width %d", width)
		// Aspect ratio preserved: 1000x800 scales to width*0.8.
		assert.Equal(t, width*800/1000, bounds.Dy(), "width %d", width)
	}
}

func TestProcessOverwritesExistingVariants(t *testing.T) {
	t.Parallel()

	task, repo, store := setupTask(t)
	ctx := context.Background()

	f := uploadImage(t, repo, store, "photo.png", pngBytes(t, 600, 600))

	require.NoError(t, store.PutRef(ctx, content.VariantRef(f.ContentRef, 500), bytes.NewReader([]byte("stale"))))

	require.NoError(t, task.Process(ctx, queue.Job{FileID: f.ID, OwnerID: f.OwnerID}))

	img := decodeStored(t, store, content.VariantRef(f.ContentRef, 500))
	assert.Equal(t, 500, img.Bounds().Dx())
}

func TestProcessMissingFileIsFatal(t *testing.T) {
	t.Parallel()

	task, _, _ := setupTask(t)

	err := task.Process(context.Background(), queue.Job{FileID: 99, OwnerID: 1})
	require.Error(t, err)
	assert.Equal(t, CodeFileNotFound, errx.AsErrorX(err).Code())
	assert.True(t, IsFatal(err))
}

func TestProcessWrongOwnerIsFatal(t *testing.T) {
	t.Parallel()

	task, repo, store := setupTask(t)

	f := uploadImage(t, repo, store, "cat.png", pngBytes(t, 100, 100))

	err := task.Process(context.Background(), queue.Job{FileID: f.ID, OwnerID: f.OwnerID + 1})
	require.Error(t, err)
	assert.Equal(t, CodeFileNotFound, errx.AsErrorX(err).Code())
}

func TestProcessMalformedJobIsFatal(t *testing.T) {
	t.Parallel()

	task, _, _ := setupTask(t)

	err := task.Process(context.Background(), queue.Job{})
	require.Error(t, err)
	assert.Equal(t, queue.CodeInvalidJob, errx.AsErrorX(err).Code())
	assert.True(t, IsFatal(err))
}

func TestProcessNonImageIsFatal(t *testing.T) {
	t.Parallel()

	task, repo, store := setupTask(t)
	ctx := context.Background()

	ref, err := store.Put(ctx, bytes.NewReader([]byte("plain text")))
	require.NoError(t, err)

	f := &model.File{
		OwnerID:    1,
		Name:       "notes.txt",
		Kind:       model.KindFile,
		Parent:     model.RootParent(),
		ContentRef: ref,
	}
	require.NoError(t, repo.CreateFile(ctx, f))

	err = task.Process(ctx, queue.Job{FileID: f.ID, OwnerID: 1})
	require.Error(t, err)
	assert.Equal(t, CodeNotAnImage, errx.AsErrorX(err).Code())
	assert.True(t, IsFatal(err))
}

func TestProcessMissingContentIsFatal(t *testing.T) {
	t.Parallel()

	task, repo, _ := setupTask(t)
	ctx := context.Background()

	f := &model.File{
		OwnerID:    1,
		Name:       "ghost.png",
		Kind:       model.KindImage,
		Parent:     model.RootParent(),
		ContentRef: "vanished-ref",
	}
	require.NoError(t, repo.CreateFile(ctx, f))

	err := task.Process(ctx, queue.Job{FileID: f.ID, OwnerID: 1})
	require.Error(t, err)
	assert.Equal(t, CodeContentMissing, errx.AsErrorX(err).Code())
	assert.True(t, IsFatal(err))
}

func TestProcessUndecodableImageIsFatal(t *testing.T) {
	t.Parallel()

	task, repo, store := setupTask(t)

	f := uploadImage(t, repo, store, "broken.png", []byte("not an image at all"))

	err := task.Process(context.Background(), queue.Job{FileID: f.ID, OwnerID: 1})
	require.Error(t, err)
	assert.Equal(t, CodeBadImage, errx.AsErrorX(err).Code())
	assert.True(t, IsFatal(err))
}

func TestIsFatalTransientError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsFatal(errx.New("disk full")))
}
