package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/internal/service"
	"github.com/rise-and-shine/filevault/internal/session"
	"github.com/rise-and-shine/filevault/pkg/httpserver"
	"github.com/rise-and-shine/filevault/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	app   *fiber.App
	queue *queue.MemoryQueue
	store *content.DiskStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log, err := logger.New(logger.Config{Disable: true})
	require.NoError(t, err)

	repo := metadata.NewMemoryRepository()
	store := content.NewDiskStore(content.Config{Root: t.TempDir()})
	q := queue.NewMemoryQueue(queue.Config{MaxAttempts: 3, RetryBaseDelay: time.Second, RetryMaxDelay: time.Minute})
	sessions := session.NewMemoryStore()

	handler := NewHandler(
		service.NewAuthService(repo, sessions, 24*time.Hour, log),
		service.NewFileService(repo, store, q, log),
		service.NewStatusService(repo, nil, nil),
	)

	srv := httpserver.New(httpserver.Config{Host: "127.0.0.1", Port: 0}, nil)
	RegisterRoutes(srv, handler)

	return &testAPI{app: srv.App(), queue: q, store: store}
}

type response struct {
	status int
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(r.body, &m))
	return m
}

func (r response) jsonList(t *testing.T) []map[string]any {
	t.Helper()

	var l []map[string]any
	require.NoError(t, json.Unmarshal(r.body, &l))
	return l
}

func (r response) errorMessage(t *testing.T) string {
	t.Helper()

	body := r.json(t)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "no error object in %s", r.body)
	msg, _ := errObj["message"].(string)
	return msg
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers map[string]string) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return response{status: resp.StatusCode, body: data}
}

func (a *testAPI) register(t *testing.T, email, password string) map[string]any {
	t.Helper()

	resp := a.do(t, http.MethodPost, "/users", map[string]string{"email": email, "password": password}, nil)
	require.Equal(t, http.StatusCreated, resp.status, "body: %s", resp.body)
	return resp.json(t)
}

func (a *testAPI) connect(t *testing.T, email, password string) string {
	t.Helper()

	creds := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
	resp := a.do(t, http.MethodGet, "/connect", nil, map[string]string{
		fiber.HeaderAuthorization: "Basic " + creds,
	})
	require.Equal(t, http.StatusOK, resp.status, "body: %s", resp.body)

	token, _ := resp.json(t)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func withToken(token string) map[string]string {
	return map[string]string{HeaderToken: token}
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	user := a.register(t, "bob@dylan.com", "toto1234!")
	assert.Equal(t, "bob@dylan.com", user["email"])
	assert.NotContains(t, user, "password")

	// Duplicate registration conflicts.
	resp := a.do(t, http.MethodPost, "/users", map[string]string{"email": "bob@dylan.com", "password": "x"}, nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, "Already exist", resp.errorMessage(t))

	token := a.connect(t, "bob@dylan.com", "toto1234!")

	me := a.do(t, http.MethodGet, "/users/me", nil, withToken(token))
	require.Equal(t, http.StatusOK, me.status)
	assert.Equal(t, "bob@dylan.com", me.json(t)["email"])

	disconnect := a.do(t, http.MethodGet, "/disconnect", nil, withToken(token))
	assert.Equal(t, http.StatusNoContent, disconnect.status)

	stale := a.do(t, http.MethodGet, "/users/me", nil, withToken(token))
	assert.Equal(t, http.StatusUnauthorized, stale.status)
	assert.Equal(t, "Unauthorized", stale.errorMessage(t))
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")

	creds := base64.StdEncoding.EncodeToString([]byte("bob@dylan.com:wrong"))
	resp := a.do(t, http.MethodGet, "/connect", nil, map[string]string{
		fiber.HeaderAuthorization: "Basic " + creds,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "Unauthorized", resp.errorMessage(t))

	// No Authorization header at all.
	resp = a.do(t, http.MethodGet, "/connect", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestUploadFileAndFolderScenario(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	token := a.connect(t, "bob@dylan.com", "toto1234!")

	// Folder at the root.
	folderResp := a.do(t, http.MethodPost, "/files", map[string]any{
		"name": "Docs",
		"type": "folder",
	}, withToken(token))
	require.Equal(t, http.StatusCreated, folderResp.status, "body: %s", folderResp.body)

	folder := folderResp.json(t)
	assert.Equal(t, "Docs", folder["name"])
	assert.Equal(t, "folder", folder["type"])
	assert.Equal(t, float64(0), folder["parentId"])
	assert.NotContains(t, folder, "localPath")
	folderID := int64(folder["id"].(float64))

	// File inside the folder.
	data := base64.StdEncoding.EncodeToString([]byte("Hello Webstack!\n"))
	fileResp := a.do(t, http.MethodPost, "/files", map[string]any{
		"name":     "hello.txt",
		"type":     "file",
		"parentId": folderID,
		"data":     data,
	}, withToken(token))
	require.Equal(t, http.StatusCreated, fileResp.status, "body: %s", fileResp.body)

	file := fileResp.json(t)
	assert.Equal(t, float64(folderID), file["parentId"])
	assert.NotContains(t, file, "localPath")
	fileID := int64(file["id"].(float64))

	// Listing under the folder sees the file; the root sees only the folder.
	inFolder := a.do(t, http.MethodGet, fmt.Sprintf("/files?parentId=%d", folderID), nil, withToken(token))
	require.Equal(t, http.StatusOK, inFolder.status)
	list := inFolder.jsonList(t)
	require.Len(t, list, 1)
	assert.Equal(t, "hello.txt", list[0]["name"])

	atRoot := a.do(t, http.MethodGet, "/files", nil, withToken(token))
	require.Equal(t, http.StatusOK, atRoot.status)
	rootList := atRoot.jsonList(t)
	require.Len(t, rootList, 1)
	assert.Equal(t, "Docs", rootList[0]["name"])

	// Reading own private file content.
	content := a.do(t, http.MethodGet, fmt.Sprintf("/files/%d/data", fileID), nil, withToken(token))
	require.Equal(t, http.StatusOK, content.status)
	assert.Equal(t, "Hello Webstack!\n", string(content.body))

	// Folder content is not downloadable.
	folderData := a.do(t, http.MethodGet, fmt.Sprintf("/files/%d/data", folderID), nil, withToken(token))
	assert.Equal(t, http.StatusBadRequest, folderData.status)
	assert.Equal(t, "A folder doesn't have content", folderData.errorMessage(t))
}

func TestUploadValidationErrors(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	token := a.connect(t, "bob@dylan.com", "toto1234!")

	cases := []struct {
		name    string
		payload map[string]any
		message string
	}{
		{"missing name", map[string]any{"type": "file", "data": "eA=="}, "Missing name"},
		{"missing name wins over bad data", map[string]any{"type": "file", "data": "%%%"}, "Missing name"},
		{"missing type", map[string]any{"name": "a.txt", "data": "eA=="}, "Missing type"},
		{"bad type", map[string]any{"name": "a.txt", "type": "movie", "data": "eA=="}, "Missing type"},
		{"missing data", map[string]any{"name": "a.txt", "type": "file"}, "Missing data"},
		{"parent not found", map[string]any{"name": "a.txt", "type": "file", "data": "eA==", "parentId": 777}, "Parent not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := a.do(t, http.MethodPost, "/files", tc.payload, withToken(token))
			assert.Equal(t, http.StatusBadRequest, resp.status, "body: %s", resp.body)
			assert.Equal(t, tc.message, resp.errorMessage(t))
		})
	}
}

func TestFilesRequireAuth(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/files"},
		{http.MethodGet, "/files"},
		{http.MethodGet, "/files/1"},
		{http.MethodPut, "/files/1/publish"},
		{http.MethodPut, "/files/1/unpublish"},
		{http.MethodGet, "/users/me"},
	} {
		resp := a.do(t, tc.method, tc.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.status, "%s %s: %s", tc.method, tc.path, resp.body)
		assert.Equal(t, "Unauthorized", resp.errorMessage(t))
	}
}

func TestImageUploadEnqueuesThumbnailJob(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	token := a.connect(t, "bob@dylan.com", "toto1234!")

	resp := a.do(t, http.MethodPost, "/files", map[string]any{
		"name": "cat.png",
		"type": "image",
		"data": base64.StdEncoding.EncodeToString([]byte("png bytes")),
	}, withToken(token))
	require.Equal(t, http.StatusCreated, resp.status, "body: %s", resp.body)

	assert.Equal(t, 1, a.queue.Len())
}

func TestPublishUnpublishAndPublicAccess(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	token := a.connect(t, "bob@dylan.com", "toto1234!")

	created := a.do(t, http.MethodPost, "/files", map[string]any{
		"name": "notes.txt",
		"type": "file",
		"data": base64.StdEncoding.EncodeToString([]byte("shared notes")),
	}, withToken(token))
	require.Equal(t, http.StatusCreated, created.status)
	id := int64(created.json(t)["id"].(float64))

	dataPath := fmt.Sprintf("/files/%d/data", id)

	// Private file is hidden from anonymous readers, indistinguishable from
	// a missing id.
	anon := a.do(t, http.MethodGet, dataPath, nil, nil)
	assert.Equal(t, http.StatusNotFound, anon.status)
	assert.Equal(t, "Not found", anon.errorMessage(t))

	missing := a.do(t, http.MethodGet, "/files/424242/data", nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.status)
	assert.Equal(t, anon.errorMessage(t), missing.errorMessage(t))

	published := a.do(t, http.MethodPut, fmt.Sprintf("/files/%d/publish", id), nil, withToken(token))
	require.Equal(t, http.StatusOK, published.status)
	assert.Equal(t, true, published.json(t)["isPublic"])

	open := a.do(t, http.MethodGet, dataPath, nil, nil)
	require.Equal(t, http.StatusOK, open.status)
	assert.Equal(t, "shared notes", string(open.body))

	unpublished := a.do(t, http.MethodPut, fmt.Sprintf("/files/%d/unpublish", id), nil, withToken(token))
	require.Equal(t, http.StatusOK, unpublished.status)
	assert.Equal(t, false, unpublished.json(t)["isPublic"])

	closed := a.do(t, http.MethodGet, dataPath, nil, nil)
	assert.Equal(t, http.StatusNotFound, closed.status)
}

func TestGetFileIsOwnerScoped(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	a.register(t, "eve@dylan.com", "hunter2!")
	bobToken := a.connect(t, "bob@dylan.com", "toto1234!")
	eveToken := a.connect(t, "eve@dylan.com", "hunter2!")

	created := a.do(t, http.MethodPost, "/files", map[string]any{
		"name":     "secret.txt",
		"type":     "file",
		"data":     base64.StdEncoding.EncodeToString([]byte("x")),
		"isPublic": true,
	}, withToken(bobToken))
	require.Equal(t, http.StatusCreated, created.status)
	id := int64(created.json(t)["id"].(float64))

	own := a.do(t, http.MethodGet, fmt.Sprintf("/files/%d", id), nil, withToken(bobToken))
	assert.Equal(t, http.StatusOK, own.status)

	// Even though the file is public, the metadata endpoint is owner-only.
	other := a.do(t, http.MethodGet, fmt.Sprintf("/files/%d", id), nil, withToken(eveToken))
	assert.Equal(t, http.StatusNotFound, other.status)
	assert.Equal(t, "Not found", other.errorMessage(t))
}

func TestGetFileDataInvalidSize(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)

	resp := a.do(t, http.MethodGet, "/files/1/data?size=300", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestMalformedIDIsNotFound(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")
	token := a.connect(t, "bob@dylan.com", "toto1234!")

	resp := a.do(t, http.MethodGet, "/files/abc", nil, withToken(token))
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "Not found", resp.errorMessage(t))
}

func TestStatusAndStatsEndpoints(t *testing.T) {
	t.Parallel()

	a := newTestAPI(t)
	a.register(t, "bob@dylan.com", "toto1234!")

	status := a.do(t, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusOK, status.status)
	body := status.json(t)
	assert.Equal(t, true, body["redis"])
	assert.Equal(t, true, body["db"])

	stats := a.do(t, http.MethodGet, "/stats", nil, nil)
	require.Equal(t, http.StatusOK, stats.status)
	counts := stats.json(t)
	assert.Equal(t, float64(1), counts["users"])
	assert.Equal(t, float64(0), counts["files"])
}
