package metadata

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/pkg/pg"
	"github.com/uptrace/bun"
)

// PostgresRepository is the production Repository backed by Bun on PostgreSQL.
type PostgresRepository struct {
	db *bun.DB
}

// NewPostgresRepository creates a repository on top of the given Bun database.
func NewPostgresRepository(db *bun.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the users and files tables if they do not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (email);

		CREATE TABLE IF NOT EXISTS files (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users (id),
			name TEXT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			parent_id BIGINT REFERENCES files (id),
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			content_ref TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_files_owner_parent ON files (owner_id, parent_id, id);
	`)
	return errx.Wrap(err)
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.db.NewInsert().Model(u).Exec(ctx)
	if pg.IsConflict(err) {
		return errx.Wrap(err,
			errx.WithCode(CodeUserExists),
			errx.WithType(errx.T_Conflict),
		)
	}
	return errx.Wrap(err)
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := new(model.User)

	err := r.db.NewSelect().Model(u).Where("email = ?", email).Scan(ctx)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return u, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u := new(model.User)

	err := r.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return u, nil
}

func (r *PostgresRepository) CountUsers(ctx context.Context) (int64, error) {
	count, err := r.db.NewSelect().Model((*model.User)(nil)).Count(ctx)
	return int64(count), errx.Wrap(err)
}

func (r *PostgresRepository) CreateFile(ctx context.Context, f *model.File) error {
	_, err := r.db.NewInsert().Model(f).Exec(ctx)
	return errx.Wrap(err)
}

func (r *PostgresRepository) GetFile(ctx context.Context, id int64) (*model.File, error) {
	f := new(model.File)

	err := r.db.NewSelect().Model(f).Where("f.id = ?", id).Scan(ctx)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return f, nil
}

func (r *PostgresRepository) GetFileOwned(ctx context.Context, id, ownerID int64) (*model.File, error) {
	f := new(model.File)

	err := r.db.NewSelect().
		Model(f).
		Where("f.id = ?", id).
		Where("f.owner_id = ?", ownerID).
		Scan(ctx)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return f, nil
}

func (r *PostgresRepository) ListFiles(
	ctx context.Context,
	ownerID int64,
	parent model.ParentRef,
	offset, limit int,
) ([]model.File, error) {
	files := make([]model.File, 0, limit)

	q := r.db.NewSelect().
		Model(&files).
		Where("f.owner_id = ?", ownerID).
		Order("f.id ASC").
		Offset(offset).
		Limit(limit)

	if folderID, ok := parent.FolderID(); ok {
		q = q.Where("f.parent_id = ?", folderID)
	} else {
		q = q.Where("f.parent_id IS NULL")
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return files, nil
}

func (r *PostgresRepository) SetFilePublic(ctx context.Context, id, ownerID int64, public bool) (*model.File, error) {
	f := new(model.File)

	err := r.db.NewUpdate().
		Model(f).
		Set("is_public = ?", public).
		Where("f.id = ?", id).
		Where("f.owner_id = ?", ownerID).
		Returning("*").
		Scan(ctx)
	if pg.IsNotFound(err) {
		return nil, ErrNotFound()
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return f, nil
}

func (r *PostgresRepository) CountFiles(ctx context.Context) (int64, error) {
	count, err := r.db.NewSelect().Model((*model.File)(nil)).Count(ctx)
	return int64(count), errx.Wrap(err)
}
