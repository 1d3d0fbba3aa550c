// Package service implements the application use cases on top of the
// metadata, content, session and queue layers.
package service

import "github.com/code19m/errx"

// Error codes surfaced by the use cases. Messages follow the public API
// contract and are part of it.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeMissingEmail    = "MISSING_EMAIL"
	CodeMissingPassword = "MISSING_PASSWORD"
	CodeMissingName     = "MISSING_NAME"
	CodeMissingType     = "MISSING_TYPE"
	CodeMissingData     = "MISSING_DATA"
	CodeParentNotFound  = "PARENT_NOT_FOUND"
	CodeParentNotFolder = "PARENT_NOT_FOLDER"
	CodeFolderNoContent = "FOLDER_HAS_NO_CONTENT"
)

// ErrUnauthorized builds the canonical authentication failure error.
func ErrUnauthorized() error {
	return errx.New(
		"Unauthorized",
		errx.WithCode(CodeUnauthorized),
		errx.WithType(errx.T_Authentication),
	)
}

func errValidation(msg, code string) error {
	return errx.New(
		msg,
		errx.WithCode(code),
		errx.WithType(errx.T_Validation),
	)
}
