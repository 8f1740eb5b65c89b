package liferay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:    srv.URL,
		SiteID:     20121,
		Username:   "admin",
		Password:   "secret",
		Timeout:    5 * time.Second,
		MaxRetries: 3,
	})
}

func TestCreateDocumentFolderAtSiteRoot(t *testing.T) {
	var gotPath, gotAuthUser string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuthUser, _, _ = r.BasicAuth()
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Semana Cultural", body["name"])
		assert.NotContains(t, body, "parentDocumentFolderId")
		json.NewEncoder(w).Encode(map[string]any{"id": 101, "name": "Semana Cultural"})
	})

	folder, err := client.CreateDocumentFolder(context.Background(), "Semana Cultural", "", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(101), folder.ID)
	assert.Equal(t, "/o/headless-delivery/v1.0/sites/20121/document-folders", gotPath)
	assert.Equal(t, "admin", gotAuthUser)
}

func TestCreateDocumentFolderUnderParent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/o/headless-delivery/v1.0/document-folders/555/document-folders", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 555, body["parentDocumentFolderId"])
		json.NewEncoder(w).Encode(map[string]any{"id": 102, "name": "x", "parentDocumentFolderId": 555})
	})

	folder, err := client.CreateDocumentFolder(context.Background(), "x", "", 555)
	require.NoError(t, err)
	assert.Equal(t, int64(555), folder.ParentID)
}

func TestListContentFolders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/o/headless-delivery/v1.0/sites/20121/structured-content-folders", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{
			{"id": 1, "name": "a"},
			{"id": 2, "name": "b"},
		}})
	})

	folders, err := client.ListContentFolders(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "b", folders[1].Name)
}

func TestUploadDocumentMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "Aula_foto.jpg", header.Filename)

		var meta map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("document")), &meta))
		assert.Equal(t, "Aula_foto.jpg", meta["title"])
		assert.Equal(t, "Anyone", meta["viewableBy"])

		json.NewEncoder(w).Encode(map[string]any{"id": 900, "title": meta["title"], "contentUrl": "/documents/900"})
	})

	doc, err := client.UploadDocument(context.Background(), 101, "Aula_foto.jpg", []byte{0xFF, 0xD8}, "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(900), doc.ID)
	assert.Equal(t, "/documents/900", doc.ContentURL)
}

func TestCreateStructuredContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/o/headless-delivery/v1.0/structured-content-folders/77/structured-contents", r.URL.Path)
		var payload ContentPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, int64(40374), payload.ContentStructureID)
		assert.Equal(t, "Anyone", payload.ViewableBy)
		json.NewEncoder(w).Encode(map[string]any{"id": 3001, "title": payload.Title})
	})

	content, err := client.CreateStructuredContent(context.Background(), 77, ContentPayload{
		Title:              "Notícia",
		ContentStructureID: 40374,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3001), content.ID)
}

func TestRemoteRejectionSurfacesBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"title":"A folder with that name already exists"}`))
	})

	_, err := client.CreateDocumentFolder(context.Background(), "dup", "", 0)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Contains(t, remote.Body, "already exists")
	assert.False(t, remote.Retryable())
}

func TestNotFoundIsSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.ListDocumentFolders(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
	})

	_, err := client.ListDocumentFolders(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
