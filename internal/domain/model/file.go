// Package model defines the core domain entities of the service.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"
)

// Kind classifies a stored file record.
type Kind string

const (
	// KindFolder is a container for other files. Folders never carry content.
	KindFolder Kind = "folder"
	// KindFile is a regular file with opaque content.
	KindFile Kind = "file"
	// KindImage is a raster image. Image uploads feed the thumbnail pipeline.
	KindImage Kind = "image"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFolder, KindFile, KindImage:
		return true
	}
	return false
}

// HasContent reports whether records of this kind carry bytes in the content store.
func (k Kind) HasContent() bool {
	return k != KindFolder
}

// ParentRef is a tagged reference to a file's parent: either the root of the
// owner's tree or an existing folder. The zero value is the root.
//
// On the wire and in the database the root is represented as 0/NULL
// respectively, but code never compares raw identifiers against a sentinel.
type ParentRef struct {
	folderID int64
}

// RootParent returns a ParentRef pointing at the root of the tree.
func RootParent() ParentRef {
	return ParentRef{}
}

// FolderParent returns a ParentRef pointing at the folder with the given id.
func FolderParent(id int64) ParentRef {
	return ParentRef{folderID: id}
}

// IsRoot reports whether the reference points at the root.
func (p ParentRef) IsRoot() bool {
	return p.folderID == 0
}

// FolderID returns the referenced folder id and true, or 0 and false for the root.
func (p ParentRef) FolderID() (int64, bool) {
	if p.folderID == 0 {
		return 0, false
	}
	return p.folderID, true
}

// Value implements driver.Valuer. The root is stored as NULL.
func (p ParentRef) Value() (driver.Value, error) {
	if p.folderID == 0 {
		return nil, nil
	}
	return p.folderID, nil
}

// Scan implements sql.Scanner.
func (p *ParentRef) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = ParentRef{}
		return nil
	case int64:
		*p = ParentRef{folderID: v}
		return nil
	}
	return errx.New(fmt.Sprintf("cannot scan %T into ParentRef", src))
}

// MarshalJSON implements json.Marshaler. The root marshals as 0.
func (p ParentRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.folderID)
}

// UnmarshalJSON implements json.Unmarshaler. Accepts a numeric id, where 0
// means root. A quoted number is tolerated for compatibility with clients that
// send identifiers as strings.
func (p *ParentRef) UnmarshalJSON(data []byte) error {
	var id int64

	if err := json.Unmarshal(data, &id); err != nil {
		var s string
		if serr := json.Unmarshal(data, &s); serr != nil {
			return errx.Wrap(err)
		}
		if _, ferr := fmt.Sscanf(s, "%d", &id); ferr != nil {
			return errx.Wrap(ferr)
		}
	}

	*p = ParentRef{folderID: id}
	return nil
}

// File is the central entity of the service: a folder, a regular file or an
// image owned by a single user.
//
// Invariants:
//   - a folder never has a ContentRef, any other kind always has one
//   - a non-root Parent resolves to an existing folder at creation time
//   - OwnerID is set once and never changes
type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID         int64     `bun:"id,pk,autoincrement"`
	OwnerID    int64     `bun:"owner_id,notnull"`
	Name       string    `bun:"name,notnull"`
	Kind       Kind      `bun:"kind,notnull"`
	Parent     ParentRef `bun:"parent_id"`
	IsPublic   bool      `bun:"is_public,notnull"`
	ContentRef string    `bun:"content_ref,nullzero"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
