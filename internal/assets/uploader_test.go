package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
)

type fakeGateway struct {
	mu      sync.Mutex
	nextID  int64
	uploads []string
	fail    bool
}

func (g *fakeGateway) UploadDocument(ctx context.Context, folderID int64, filename string, data []byte, title, description string) (liferay.Document, error) {
	if g.fail {
		return liferay.Document{}, errors.New("upload rejected")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.uploads = append(g.uploads, filename)
	return liferay.Document{ID: g.nextID, Title: title, ContentURL: "/documents/" + filename}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func imageServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadAllCoverFirstAndRoles(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{}
	u := NewUploader(gw, time.Second, discard(), nil)

	rec := model.ContentRecord{
		Title:         "Aula de Campo",
		Success:       true,
		FeaturedImage: srv.URL + "/capa.jpg",
		ContentImages: []model.ImageRef{{Src: srv.URL + "/galeria1.jpg"}},
		Content:       `<p><img src="` + srv.URL + `/inline.png"></p>`,
	}
	mapping := u.UploadAll(context.Background(), model.FolderHandle{ID: 7}, rec)

	require.Len(t, mapping, 3)
	assert.Equal(t, model.RoleCover, mapping[srv.URL+"/capa.jpg"].Role)
	assert.Equal(t, model.RoleGallery, mapping[srv.URL+"/galeria1.jpg"].Role)
	assert.Equal(t, model.RoleBodyInline, mapping[srv.URL+"/inline.png"].Role)
	// Cover is uploaded before everything else.
	assert.Contains(t, gw.uploads[0], "capa.jpg")
	// Filenames carry the sanitized title prefix.
	assert.Contains(t, gw.uploads[0], "Aula_de_Campo")
}

func TestUploadAllDeduplicatesWithinFolder(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{}
	u := NewUploader(gw, time.Second, discard(), nil)

	url := srv.URL + "/foto.jpg"
	rec := model.ContentRecord{
		Title:         "Notícia",
		Success:       true,
		FeaturedImage: url,
		// Same URL listed again as a gallery image.
		ContentImages: []model.ImageRef{{Src: url}},
	}
	folder := model.FolderHandle{ID: 7}

	first := u.UploadAll(context.Background(), folder, rec)
	second := u.UploadAll(context.Background(), folder, rec)

	assert.Equal(t, int64(1), hits.Load())
	require.Len(t, gw.uploads, 1)
	assert.Equal(t, first[url].ID, second[url].ID)
}

func TestConcurrentUploadsToSameFolderUploadOnce(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{}
	var uploaded atomic.Int64
	u := NewUploader(gw, time.Second, discard(), func(model.AssetHandle) { uploaded.Add(1) })

	url := srv.URL + "/foto.jpg"
	rec := model.ContentRecord{Title: "Notícia", Success: true, FeaturedImage: url}
	folder := model.FolderHandle{ID: 7}

	// Pipelines sharing a folder within one window race on the same URL.
	const workers = 16
	mappings := make([]map[string]model.AssetHandle, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mappings[i] = u.UploadAll(context.Background(), folder, rec)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load())
	assert.Equal(t, int64(1), uploaded.Load())
	require.Len(t, gw.uploads, 1)
	for _, m := range mappings {
		require.Len(t, m, 1)
		assert.Equal(t, mappings[0][url].ID, m[url].ID)
	}
}

func TestSameURLDifferentFolderUploadsAgain(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{}
	u := NewUploader(gw, time.Second, discard(), nil)

	url := srv.URL + "/foto.jpg"
	rec := model.ContentRecord{Title: "Notícia", Success: true, FeaturedImage: url}

	u.UploadAll(context.Background(), model.FolderHandle{ID: 7}, rec)
	u.UploadAll(context.Background(), model.FolderHandle{ID: 8}, rec)

	assert.Len(t, gw.uploads, 2)
}

func TestFetchFailureIsSwallowed(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{}
	var uploaded atomic.Int64
	u := NewUploader(gw, time.Second, discard(), func(model.AssetHandle) { uploaded.Add(1) })

	rec := model.ContentRecord{
		Title:         "Parcial",
		Success:       true,
		FeaturedImage: srv.URL + "/missing.jpg",
		ContentImages: []model.ImageRef{{Src: srv.URL + "/ok.jpg"}},
	}
	mapping := u.UploadAll(context.Background(), model.FolderHandle{ID: 7}, rec)

	// The 404 cover is omitted, the remaining asset still went through.
	require.Len(t, mapping, 1)
	assert.Equal(t, int64(1), uploaded.Load())
	assert.NotContains(t, mapping, srv.URL+"/missing.jpg")
}

func TestUploadFailureIsSwallowed(t *testing.T) {
	var hits atomic.Int64
	srv := imageServer(t, &hits)
	gw := &fakeGateway{fail: true}
	u := NewUploader(gw, time.Second, discard(), nil)

	rec := model.ContentRecord{Title: "Rejeitada", Success: true, FeaturedImage: srv.URL + "/a.jpg"}
	mapping := u.UploadAll(context.Background(), model.FolderHandle{ID: 7}, rec)

	assert.Empty(t, mapping)
}

func TestNonHTTPReferencesIgnored(t *testing.T) {
	gw := &fakeGateway{}
	u := NewUploader(gw, time.Second, discard(), nil)

	rec := model.ContentRecord{
		Title:         "Relativa",
		Success:       true,
		FeaturedImage: "/wp-content/uploads/rel.jpg",
		// A lookalike scheme must not slip past the http/https check.
		ContentImages: []model.ImageRef{{Src: "httpx://cdn.example.edu/x.jpg"}},
		Content:       `<img src="data:image/png;base64,x">`,
	}
	mapping := u.UploadAll(context.Background(), model.FolderHandle{ID: 7}, rec)
	assert.Empty(t, mapping)
	assert.Empty(t, gw.uploads)
}
