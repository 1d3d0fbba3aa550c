package api

import (
	"github.com/rise-and-shine/filevault/internal/domain/model"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

type connectResponse struct {
	Token string `json:"token"`
}

// createFileRequest carries the upload body. Data stays base64-encoded here;
// the service decodes it after its field-presence checks.
type createFileRequest struct {
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Parent   model.ParentRef `json:"parentId"`
	IsPublic bool            `json:"isPublic"`
	Data     string          `json:"data"`
}

type listFilesQuery struct {
	ParentID int64 `query:"parentId"`
	Page     int   `query:"page" validate:"gte=0"`
}

type retrieveQuery struct {
	Size int `query:"size" validate:"omitempty,oneof=100 250 500"`
}

// fileResponse is the public JSON shape of a file record. The storage
// reference never appears here.
type fileResponse struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"userId"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	IsPublic bool            `json:"isPublic"`
	ParentID model.ParentRef `json:"parentId"`
}

func newFileResponse(f *model.File) fileResponse {
	return fileResponse{
		ID:       f.ID,
		UserID:   f.OwnerID,
		Name:     f.Name,
		Type:     string(f.Kind),
		IsPublic: f.IsPublic,
		ParentID: f.Parent,
	}
}
