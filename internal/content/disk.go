package content

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/code19m/errx"
	"github.com/google/uuid"
)

// Codes surfaced by content store implementations.
const (
	CodeContentMissing = "CONTENT_MISSING"
	CodeInvalidRef     = "INVALID_REF"
)

// DiskStore stores content as flat files under a root directory.
// New references are random UUIDs, so logical file names never reach the
// filesystem as paths of their own.
type DiskStore struct {
	root string
}

// Config holds content store settings.
type Config struct {
	// Root is the directory content files are stored under.
	// It is created on first write if missing.
	Root string `yaml:"root" default:"/tmp/filevault"`
}

// NewDiskStore creates a disk-backed content store rooted at cfg.Root.
func NewDiskStore(cfg Config) *DiskStore {
	return &DiskStore{root: cfg.Root}
}

func (s *DiskStore) Put(ctx context.Context, r io.Reader) (string, error) {
	ref := uuid.NewString()
	if err := s.PutRef(ctx, ref, r); err != nil {
		return "", errx.Wrap(err)
	}
	return ref, nil
}

func (s *DiskStore) PutRef(_ context.Context, ref string, r io.Reader) error {
	path, err := s.path(ref)
	if err != nil {
		return errx.Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errx.Wrap(err)
	}

	f, err := os.Create(path)
	if err != nil {
		return errx.Wrap(err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close() //nolint:errcheck
		return errx.Wrap(err)
	}
	return errx.Wrap(f.Close())
}

func (s *DiskStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errx.New(
			"content not found on storage",
			errx.WithCode(CodeContentMissing),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"ref": ref}),
		)
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}
	return f, nil
}

func (s *DiskStore) Exists(_ context.Context, ref string) (bool, error) {
	path, err := s.path(ref)
	if err != nil {
		return false, errx.Wrap(err)
	}

	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errx.Wrap(err)
	}
	return true, nil
}

// path maps a reference to a location under the root. References derived from
// user-supplied names must not escape the root, so anything that resolves
// outside it is rejected.
func (s *DiskStore) path(ref string) (string, error) {
	if ref == "" {
		return "", invalidRefError(ref)
	}

	path := filepath.Join(s.root, filepath.Clean("/"+ref))
	if path == filepath.Clean(s.root) || !strings.HasPrefix(path, filepath.Clean(s.root)+string(filepath.Separator)) {
		return "", invalidRefError(ref)
	}
	return path, nil
}

func invalidRefError(ref string) error {
	return errx.New(
		"invalid content reference",
		errx.WithCode(CodeInvalidRef),
		errx.WithDetails(errx.D{"ref": ref}),
	)
}
