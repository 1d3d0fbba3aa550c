// Package content manages file bytes on a local filesystem.
//
// Bytes are stored under generated opaque references independent of the
// logical file name, which decouples naming collisions, renames and special
// characters from storage. Downsized image variants live next to the
// originals under deterministic references derived from the original's
// reference and the target width, so the retrieval path can locate them
// without a second metadata lookup.
package content

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

// Store manages opaque blobs of file content.
// Implementations must be safe for concurrent use. Writes use
// create-or-overwrite semantics per reference; references are never shared
// between unrelated files, so no cross-writer locking is required.
type Store interface {
	// Put stores the bytes under a newly generated opaque reference.
	Put(ctx context.Context, r io.Reader) (string, error)

	// PutRef stores the bytes under the given reference, overwriting any
	// previous content. Used by the thumbnail pipeline for derived variants.
	PutRef(ctx context.Context, ref string, r io.Reader) error

	// Open returns a reader over the bytes stored under ref.
	// A missing reference yields a T_NotFound error.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Exists reports whether bytes are stored under ref.
	Exists(ctx context.Context, ref string) (bool, error)
}

// VariantRef derives the storage reference of a downsized image variant from
// the original content reference and the target width.
func VariantRef(ref string, width int) string {
	return fmt.Sprintf("%s_%d", ref, width)
}

// ContentTypeOctetStream is the fallback media type for unrecognized extensions.
const ContentTypeOctetStream = "application/octet-stream"

// TypeByName resolves the media type from the logical name's extension.
// Unrecognized extensions fall back to application/octet-stream.
func TypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ContentTypeOctetStream
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return ContentTypeOctetStream
	}
	return ct
}
