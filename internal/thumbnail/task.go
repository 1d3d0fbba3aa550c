package thumbnail

import (
	"bytes"
	"context"
	"image"
	"io"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"golang.org/x/sync/errgroup"
)

// Error codes surfaced by the task.
const (
	CodeFileNotFound   = "FILE_NOT_FOUND"
	CodeContentMissing = "CONTENT_MISSING"
	CodeNotAnImage     = "NOT_AN_IMAGE"
)

const (
	writeAttempts   = 3
	writeRetryDelay = 200 * time.Millisecond
)

// fatalCodes are failures that cannot succeed on redelivery.
var fatalCodes = map[string]struct{}{
	queue.CodeInvalidJob: {},
	CodeFileNotFound:     {},
	CodeContentMissing:   {},
	CodeNotAnImage:       {},
	CodeBadImage:         {},
}

// IsFatal reports whether a processing error is permanent. Fatal failures are
// dead-lettered on first occurrence instead of being retried.
func IsFatal(err error) bool {
	_, ok := fatalCodes[errx.AsErrorX(err).Code()]
	return ok
}

// Task renders all thumbnail variants for one queued job.
type Task struct {
	repo      metadata.Repository
	store     content.Store
	processor Processor
}

// NewTask creates a thumbnail task bound to the metadata and content stores.
func NewTask(repo metadata.Repository, store content.Store) *Task {
	return &Task{repo: repo, store: store, processor: NewProcessor()}
}

// Process renders and stores every variant width for the job's image.
//
// All widths are attempted even when one fails; the first failure is
// reported after the join. Variants written before a failure stay in place,
// and a later redelivery regenerates all widths with overwrite semantics.
func (t *Task) Process(ctx context.Context, job queue.Job) error {
	if job.FileID <= 0 || job.OwnerID <= 0 {
		return errx.New(
			"job payload is malformed",
			errx.WithCode(queue.CodeInvalidJob),
			errx.WithDetails(errx.D{"file_id": job.FileID, "owner_id": job.OwnerID}),
		)
	}

	file, err := t.repo.GetFileOwned(ctx, job.FileID, job.OwnerID)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			return errx.Wrap(err, errx.WithCode(CodeFileNotFound))
		}
		return errx.Wrap(err)
	}

	if file.Kind != model.KindImage {
		return errx.New(
			"file is not an image",
			errx.WithCode(CodeNotAnImage),
			errx.WithDetails(errx.D{"file_id": file.ID, "kind": string(file.Kind)}),
		)
	}

	data, err := t.readContent(ctx, file.ContentRef)
	if err != nil {
		return errx.Wrap(err)
	}

	img, err := t.processor.Decode(data)
	if err != nil {
		return errx.Wrap(err)
	}

	var g errgroup.Group
	for _, width := range Widths {
		g.Go(func() error {
			return t.renderVariant(ctx, file, img, width)
		})
	}
	return errx.Wrap(g.Wait())
}

func (t *Task) readContent(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, errx.New(
			"file has no stored content",
			errx.WithCode(CodeContentMissing),
		)
	}

	rc, err := t.store.Open(ctx, ref)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			return nil, errx.Wrap(err, errx.WithCode(CodeContentMissing))
		}
		return nil, errx.Wrap(err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	return data, errx.Wrap(err)
}

// renderVariant encodes one width and stores it under the deterministic
// variant reference. Storage writes are retried since they can fail
// transiently without invalidating the job.
func (t *Task) renderVariant(ctx context.Context, file *model.File, img image.Image, width int) error {
	data, err := t.processor.Render(img, file.Name, width)
	if err != nil {
		return errx.Wrap(err)
	}

	ref := content.VariantRef(file.ContentRef, width)

	err = retry.Do(
		func() error {
			return t.store.PutRef(ctx, ref, bytes.NewReader(data))
		},
		retry.Context(ctx),
		retry.Attempts(writeAttempts),
		retry.Delay(writeRetryDelay),
		retry.LastErrorOnly(true),
	)
	return errx.Wrap(err, errx.WithDetails(errx.D{"ref": ref}))
}
