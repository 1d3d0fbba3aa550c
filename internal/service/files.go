package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/domain/access"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/pkg/logger"
)

// PageSize is the fixed number of records per listing page.
const PageSize = 20

// FileService implements the file metadata and content use cases.
type FileService struct {
	repo  metadata.Repository
	store content.Store
	queue queue.Queue
	log   logger.Logger
}

// NewFileService creates the file use cases.
func NewFileService(repo metadata.Repository, store content.Store, q queue.Queue, log logger.Logger) *FileService {
	return &FileService{
		repo:  repo,
		store: store,
		queue: q,
		log:   log.Named("service.files"),
	}
}

// CreateFileInput carries a validated upload request.
// Data holds the base64-encoded content; it is ignored for folders.
type CreateFileInput struct {
	Name     string
	Kind     model.Kind
	Parent   model.ParentRef
	IsPublic bool
	Data     string
}

// Create validates and persists a new file, folder or image.
//
// Content bytes are written to the store before the metadata record is
// inserted. Image uploads additionally enqueue a thumbnail job; enqueue
// failure does not fail the upload, the job is simply lost and logged.
func (s *FileService) Create(ctx context.Context, caller access.Caller, in CreateFileInput) (*model.File, error) {
	ownerID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthorized()
	}

	if in.Name == "" {
		return nil, errValidation("Missing name", CodeMissingName)
	}
	if !in.Kind.Valid() {
		return nil, errValidation("Missing type", CodeMissingType)
	}
	if in.Kind.HasContent() && in.Data == "" {
		return nil, errValidation("Missing data", CodeMissingData)
	}

	if err := s.checkParent(ctx, in.Parent); err != nil {
		return nil, errx.Wrap(err)
	}

	file := &model.File{
		OwnerID:  ownerID,
		Name:     in.Name,
		Kind:     in.Kind,
		Parent:   in.Parent,
		IsPublic: in.IsPublic,
	}

	if in.Kind.HasContent() {
		data, err := base64.StdEncoding.DecodeString(in.Data)
		if err != nil {
			return nil, errx.Wrap(err, errx.WithType(errx.T_Validation))
		}

		ref, err := s.store.Put(ctx, bytes.NewReader(data))
		if err != nil {
			return nil, errx.Wrap(err)
		}
		file.ContentRef = ref
	}

	if err := s.repo.CreateFile(ctx, file); err != nil {
		return nil, errx.Wrap(err)
	}

	if file.Kind == model.KindImage {
		err := s.queue.Enqueue(ctx, queue.Job{FileID: file.ID, OwnerID: ownerID})
		if err != nil {
			s.log.WithContext(ctx).With("file_id", file.ID, "error", err).
				Error("failed to enqueue thumbnail job")
		}
	}

	return file, nil
}

// checkParent verifies that a non-root parent exists and is a folder.
// Any user's folder is a valid parent; ownership is not checked here.
func (s *FileService) checkParent(ctx context.Context, parent model.ParentRef) error {
	folderID, ok := parent.FolderID()
	if !ok {
		return nil
	}

	parentFile, err := s.repo.GetFile(ctx, folderID)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			return errValidation("Parent not found", CodeParentNotFound)
		}
		return errx.Wrap(err)
	}

	if parentFile.Kind != model.KindFolder {
		return errValidation("Parent is not a folder", CodeParentNotFolder)
	}
	return nil
}

// Get returns the caller's file by id. Files of other users are reported as
// missing, never as forbidden.
func (s *FileService) Get(ctx context.Context, caller access.Caller, id int64) (*model.File, error) {
	ownerID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthorized()
	}
	return s.repo.GetFileOwned(ctx, id, ownerID)
}

// List returns one page of the caller's files under the given parent.
// A parent that does not exist or belongs to someone else yields an empty
// page rather than an error.
func (s *FileService) List(ctx context.Context, caller access.Caller, parent model.ParentRef, page int) ([]model.File, error) {
	ownerID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthorized()
	}

	if page < 0 {
		page = 0
	}
	return s.repo.ListFiles(ctx, ownerID, parent, page*PageSize, PageSize)
}

// SetPublic publishes or unpublishes the caller's file and returns the
// updated record.
func (s *FileService) SetPublic(ctx context.Context, caller access.Caller, id int64, public bool) (*model.File, error) {
	ownerID, ok := caller.UserID()
	if !ok {
		return nil, ErrUnauthorized()
	}
	return s.repo.SetFilePublic(ctx, id, ownerID, public)
}

// Content is an opened content stream with its media type.
type Content struct {
	Reader      io.ReadCloser
	ContentType string
}

// Retrieve opens the content of a file, or of one of its thumbnail variants
// when width is non-zero.
//
// Public files are readable by anyone including anonymous callers; private
// files only by their owner. A file the caller may not read is reported as
// missing, identical to an id that does not exist.
func (s *FileService) Retrieve(ctx context.Context, caller access.Caller, id int64, width int) (*Content, error) {
	file, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	if !access.CanRead(file, caller) {
		return nil, metadata.ErrNotFound()
	}

	if file.Kind == model.KindFolder {
		return nil, errValidation("A folder doesn't have content", CodeFolderNoContent)
	}

	if file.ContentRef == "" {
		return nil, metadata.ErrNotFound()
	}

	ref := file.ContentRef
	if width != 0 {
		ref = content.VariantRef(file.ContentRef, width)
	}

	rc, err := s.store.Open(ctx, ref)
	if err != nil {
		if errx.GetType(err) == errx.T_NotFound {
			// Content missing on storage is indistinguishable from a
			// missing record.
			return nil, metadata.ErrNotFound()
		}
		return nil, errx.Wrap(err)
	}

	return &Content{
		Reader:      rc,
		ContentType: content.TypeByName(file.Name),
	}, nil
}
