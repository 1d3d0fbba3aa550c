package metadata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/domain/model"
)

// MemoryRepository is an in-memory Repository used in tests.
// Records are kept in insertion order to match the paging semantics of the
// PostgreSQL implementation.
type MemoryRepository struct {
	mu         sync.Mutex
	users      []model.User
	files      []model.File
	nextUserID int64
	nextFileID int64
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{nextUserID: 1, nextFileID: 1}
}

func (r *MemoryRepository) CreateUser(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if strings.EqualFold(r.users[i].Email, u.Email) {
			return errx.New(
				"Already exist",
				errx.WithCode(CodeUserExists),
				errx.WithType(errx.T_Conflict),
			)
		}
	}

	u.ID = r.nextUserID
	r.nextUserID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	r.users = append(r.users, *u)
	return nil
}

func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if strings.EqualFold(r.users[i].Email, email) {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound()
}

func (r *MemoryRepository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == id {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound()
}

func (r *MemoryRepository) CountUsers(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.users)), nil
}

func (r *MemoryRepository) CreateFile(_ context.Context, f *model.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f.ID = r.nextFileID
	r.nextFileID++
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	r.files = append(r.files, *f)
	return nil
}

func (r *MemoryRepository) GetFile(_ context.Context, id int64) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.files {
		if r.files[i].ID == id {
			f := r.files[i]
			return &f, nil
		}
	}
	return nil, ErrNotFound()
}

func (r *MemoryRepository) GetFileOwned(_ context.Context, id, ownerID int64) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.files {
		if r.files[i].ID == id && r.files[i].OwnerID == ownerID {
			f := r.files[i]
			return &f, nil
		}
	}
	return nil, ErrNotFound()
}

func (r *MemoryRepository) ListFiles(
	_ context.Context,
	ownerID int64,
	parent model.ParentRef,
	offset, limit int,
) ([]model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.File, 0, limit)
	for i := range r.files {
		if r.files[i].OwnerID == ownerID && r.files[i].Parent == parent {
			matched = append(matched, r.files[i])
		}
	}

	if offset >= len(matched) {
		return []model.File{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryRepository) SetFilePublic(_ context.Context, id, ownerID int64, public bool) (*model.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.files {
		if r.files[i].ID == id && r.files[i].OwnerID == ownerID {
			r.files[i].IsPublic = public
			f := r.files[i]
			return &f, nil
		}
	}
	return nil, ErrNotFound()
}

func (r *MemoryRepository) CountFiles(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.files)), nil
}
