// Package access holds the pure access-control decision logic for file records.
//
// The functions here perform no I/O and touch no shared state, which keeps the
// visibility rules exhaustively testable independent of any storage backend.
package access

import "github.com/rise-and-shine/filevault/internal/domain/model"

// Caller is an optional caller identity: either an authenticated user or anonymous.
type Caller struct {
	userID  int64
	present bool
}

// Anonymous returns a Caller with no identity.
func Anonymous() Caller {
	return Caller{}
}

// User returns a Caller identifying the given user.
func User(id int64) Caller {
	return Caller{userID: id, present: true}
}

// UserID returns the caller's user id and true, or 0 and false for anonymous callers.
func (c Caller) UserID() (int64, bool) {
	return c.userID, c.present
}

// CanRead decides whether the caller may read the file's content.
//
// Public files are readable by anyone, including anonymous callers. Private
// files are readable only by their owner.
func CanRead(f *model.File, c Caller) bool {
	if f.IsPublic {
		return true
	}
	return CanWrite(f, c)
}

// CanWrite decides whether the caller may mutate the file.
// Only the owner may write, regardless of the visibility flag.
func CanWrite(f *model.File, c Caller) bool {
	id, ok := c.UserID()
	return ok && id == f.OwnerID
}
