// Package api exposes the HTTP surface of the service.
package api

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/filevault/internal/domain/access"
	"github.com/rise-and-shine/filevault/internal/domain/model"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/service"
	"github.com/rise-and-shine/filevault/pkg/val"
	"github.com/samber/lo"
)

// HeaderToken carries the session token on authenticated requests.
const HeaderToken = "X-Token"

// Handler binds the use cases to fiber routes.
type Handler struct {
	auth   *service.AuthService
	files  *service.FileService
	status *service.StatusService
}

// NewHandler creates the HTTP handler set.
func NewHandler(auth *service.AuthService, files *service.FileService, status *service.StatusService) *Handler {
	return &Handler{auth: auth, files: files, status: status}
}

// caller resolves the session token into an authenticated caller.
func (h *Handler) caller(c *fiber.Ctx) (access.Caller, error) {
	return h.auth.CallerFromToken(c.UserContext(), c.Get(HeaderToken))
}

// callerOrAnonymous resolves the token when present; a missing or stale token
// downgrades the request to anonymous instead of rejecting it.
func (h *Handler) callerOrAnonymous(c *fiber.Ctx) access.Caller {
	caller, err := h.caller(c)
	if err != nil {
		return access.Anonymous()
	}
	return caller
}

func (h *Handler) postUsers(c *fiber.Ctx) error {
	req := new(registerRequest)
	if err := c.BodyParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation))
	}

	user, err := h.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.Status(fiber.StatusCreated).JSON(newUserResponse(user))
}

func (h *Handler) getConnect(c *fiber.Ctx) error {
	email, password, err := parseBasicAuth(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return errx.Wrap(err)
	}

	token, err := h.auth.Connect(c.UserContext(), email, password)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.JSON(connectResponse{Token: token})
}

func (h *Handler) getDisconnect(c *fiber.Ctx) error {
	err := h.auth.Disconnect(c.UserContext(), c.Get(HeaderToken))
	if err != nil {
		return errx.Wrap(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) getMe(c *fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return errx.Wrap(err)
	}

	user, err := h.auth.Me(c.UserContext(), caller)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.JSON(newUserResponse(user))
}

func (h *Handler) postFiles(c *fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return errx.Wrap(err)
	}

	req := new(createFileRequest)
	if err := c.BodyParser(req); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation))
	}
	if err := val.ValidateSchema(req); err != nil {
		return errx.Wrap(err)
	}

	file, err := h.files.Create(c.UserContext(), caller, service.CreateFileInput{
		Name:     req.Name,
		Kind:     model.Kind(req.Type),
		Parent:   req.Parent,
		IsPublic: req.IsPublic,
		Data:     req.Data,
	})
	if err != nil {
		return errx.Wrap(err)
	}

	return c.Status(fiber.StatusCreated).JSON(newFileResponse(file))
}

func (h *Handler) getFile(c *fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return errx.Wrap(err)
	}

	id, err := parseID(c.Params("id"))
	if err != nil {
		return errx.Wrap(err)
	}

	file, err := h.files.Get(c.UserContext(), caller, id)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.JSON(newFileResponse(file))
}

func (h *Handler) listFiles(c *fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return errx.Wrap(err)
	}

	q := new(listFilesQuery)
	if err := c.QueryParser(q); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation))
	}
	if err := val.ValidateSchema(q); err != nil {
		return errx.Wrap(err)
	}

	parent := model.RootParent()
	if q.ParentID != 0 {
		parent = model.FolderParent(q.ParentID)
	}

	files, err := h.files.List(c.UserContext(), caller, parent, q.Page)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.JSON(lo.Map(files, func(f model.File, _ int) fileResponse {
		return newFileResponse(&f)
	}))
}

func (h *Handler) publishFile(c *fiber.Ctx) error {
	return h.setPublic(c, true)
}

func (h *Handler) unpublishFile(c *fiber.Ctx) error {
	return h.setPublic(c, false)
}

func (h *Handler) setPublic(c *fiber.Ctx, public bool) error {
	caller, err := h.caller(c)
	if err != nil {
		return errx.Wrap(err)
	}

	id, err := parseID(c.Params("id"))
	if err != nil {
		return errx.Wrap(err)
	}

	file, err := h.files.SetPublic(c.UserContext(), caller, id, public)
	if err != nil {
		return errx.Wrap(err)
	}

	return c.JSON(newFileResponse(file))
}

func (h *Handler) getFileData(c *fiber.Ctx) error {
	id, err := parseID(c.Params("id"))
	if err != nil {
		return errx.Wrap(err)
	}

	q := new(retrieveQuery)
	if err := c.QueryParser(q); err != nil {
		return errx.Wrap(err, errx.WithType(errx.T_Validation))
	}
	if err := val.ValidateSchema(q); err != nil {
		return errx.Wrap(err)
	}

	caller := h.callerOrAnonymous(c)

	cont, err := h.files.Retrieve(c.UserContext(), caller, id, q.Size)
	if err != nil {
		return errx.Wrap(err)
	}

	// The reader is closed by fasthttp once the body has been streamed.
	c.Set(fiber.HeaderContentType, cont.ContentType)
	return errx.Wrap(c.SendStream(cont.Reader))
}

func (h *Handler) getStatus(c *fiber.Ctx) error {
	return errx.Wrap(c.JSON(h.status.Status(c.UserContext())))
}

func (h *Handler) getStats(c *fiber.Ctx) error {
	stats, err := h.status.Stats(c.UserContext())
	if err != nil {
		return errx.Wrap(err)
	}
	return errx.Wrap(c.JSON(stats))
}

// parseID parses a numeric path id. Malformed ids are reported as missing
// records so probing with garbage reveals nothing.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, metadata.ErrNotFound()
	}
	return id, nil
}

// parseBasicAuth splits an Authorization header of the Basic scheme into
// email and password.
func parseBasicAuth(header string) (string, string, error) {
	const prefix = "Basic "

	if !strings.HasPrefix(header, prefix) {
		return "", "", service.ErrUnauthorized()
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", service.ErrUnauthorized()
	}

	email, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", service.ErrUnauthorized()
	}
	return email, password, nil
}
