// Package metadata provides the document store for File and User records.
//
// The Repository interface is the only surface the rest of the service sees;
// it is implemented by a Bun/PostgreSQL store for production and an in-memory
// store for tests. Single-record reads and updates are atomic in both.
package metadata

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/domain/model"
)

// Error codes surfaced by repository implementations.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeUserExists = "USER_EXISTS"
)

// Repository is the metadata store for users and file records.
type Repository interface {
	// CreateUser persists a new user and assigns its id.
	// A duplicate email yields a T_Conflict error with code CodeUserExists.
	CreateUser(ctx context.Context, u *model.User) error

	// GetUserByEmail returns the user with the given email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// GetUserByID returns the user with the given id.
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	// CountUsers returns the total number of registered users.
	CountUsers(ctx context.Context) (int64, error)

	// CreateFile persists a new file record and assigns its id.
	CreateFile(ctx context.Context, f *model.File) error

	// GetFile returns the file with the given id regardless of owner.
	GetFile(ctx context.Context, id int64) (*model.File, error)

	// GetFileOwned returns the file with the given id scoped to the owner.
	// An id that exists under a different owner yields the same not-found
	// error as a missing id.
	GetFileOwned(ctx context.Context, id, ownerID int64) (*model.File, error)

	// ListFiles returns the owner's files under the given parent in insertion
	// order, skipping offset records and returning at most limit.
	ListFiles(ctx context.Context, ownerID int64, parent model.ParentRef, offset, limit int) ([]model.File, error)

	// SetFilePublic atomically updates the visibility flag of the owner's file
	// and returns the updated record.
	SetFilePublic(ctx context.Context, id, ownerID int64, public bool) (*model.File, error)

	// CountFiles returns the total number of file records.
	CountFiles(ctx context.Context) (int64, error)
}

// ErrNotFound builds the canonical not-found error shared by implementations.
// Access denial on the retrieve path is deliberately surfaced with this same
// error, so callers cannot distinguish a hidden record from a missing one.
func ErrNotFound() error {
	return errx.New(
		"Not found",
		errx.WithCode(CodeNotFound),
		errx.WithType(errx.T_NotFound),
	)
}
