// Package assets fetches a record's image references and uploads them into
// the record's document folder, de-duplicating per folder for the run.
package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/singleflight"

	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
	"github.com/contentforge/newsmigrate/internal/sanitize"
)

const (
	titlePrefixLength = 30
	maxAssetBytes     = 32 << 20
)

// FetchError reports a failed asset download. StatusCode is zero for
// transport-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Gateway is the slice of the remote gateway the uploader needs.
type Gateway interface {
	UploadDocument(ctx context.Context, folderID int64, filename string, data []byte, title, description string) (liferay.Document, error)
}

// Uploader downloads and uploads assets with a run-scoped per-folder cache:
// a source URL is uploaded at most once per destination folder, while the
// same URL may be uploaded again for a different folder (the platform ties
// documents to their containing folder).
type Uploader struct {
	gw       Gateway
	client   *http.Client
	logger   *slog.Logger
	onUpload func(model.AssetHandle)

	mu        sync.Mutex
	perFolder map[int64]map[string]model.AssetHandle
	group     singleflight.Group
}

// NewUploader builds a run-scoped uploader. onUpload, when non-nil, fires
// once per asset actually uploaded (cache hits do not trigger it).
func NewUploader(gw Gateway, timeout time.Duration, logger *slog.Logger, onUpload func(model.AssetHandle)) *Uploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Uploader{
		gw:        gw,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		onUpload:  onUpload,
		perFolder: make(map[int64]map[string]model.AssetHandle),
	}
}

type reference struct {
	url  string
	role model.AssetRole
}

// collect builds the ordered de-duplicated reference set for a record: cover
// first, then embedded images in document order, then inline body images the
// extractor did not list explicitly.
func collect(rec model.ContentRecord) []reference {
	seen := make(map[string]bool)
	var refs []reference
	add := func(raw string, role model.AssetRole) {
		if seen[raw] || !isRemote(raw) {
			return
		}
		seen[raw] = true
		refs = append(refs, reference{url: raw, role: role})
	}

	add(rec.FeaturedImage, model.RoleCover)
	for _, img := range rec.ContentImages {
		add(img.Src, model.RoleGallery)
	}
	for _, src := range inlineImageSources(rec.Content) {
		add(src, model.RoleBodyInline)
	}
	return refs
}

// isRemote accepts only absolute http/https URLs; relative paths, data URIs
// and malformed references are skipped.
func isRemote(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func inlineImageSources(markup string) []string {
	if markup == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	var srcs []string
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			srcs = append(srcs, src)
		}
	})
	return srcs
}

// UploadAll fetches and uploads every asset reference of the record into the
// given folder and returns the source-URL→handle mapping. A single asset's
// fetch or upload failure is logged and omitted; it never aborts the
// remaining assets or the record.
func (u *Uploader) UploadAll(ctx context.Context, folder model.FolderHandle, rec model.ContentRecord) map[string]model.AssetHandle {
	refs := collect(rec)
	mapping := make(map[string]model.AssetHandle, len(refs))
	prefix := sanitize.FilenamePrefix(rec.Title, titlePrefixLength)

	for _, ref := range refs {
		if cached, ok := u.cached(folder.ID, ref.url); ok {
			u.logger.Debug("asset already uploaded to folder, reusing",
				"url", ref.url, "folderId", folder.ID)
			mapping[ref.url] = cached
			continue
		}

		handle, err := u.uploadOnce(ctx, folder.ID, prefix, rec.Title, ref)
		if err != nil {
			u.logger.Warn("asset upload skipped", "url", ref.url, "folderId", folder.ID, "error", err)
			continue
		}
		mapping[ref.url] = handle
	}
	return mapping
}

// uploadOnce guards the fetch+upload of one (folder, URL) pair behind a
// singleflight key so concurrent pipelines sharing a folder issue a single
// upload, matching the folder resolver's creation guard.
func (u *Uploader) uploadOnce(ctx context.Context, folderID int64, prefix, title string, ref reference) (model.AssetHandle, error) {
	key := fmt.Sprintf("%d|%s", folderID, ref.url)
	v, err, _ := u.group.Do(key, func() (any, error) {
		// A concurrent flight may have populated the cache between the check
		// in UploadAll and entering the group.
		if cached, ok := u.cached(folderID, ref.url); ok {
			return cached, nil
		}
		handle, err := u.uploadOne(ctx, folderID, prefix, title, ref)
		if err != nil {
			return model.AssetHandle{}, err
		}
		u.store(folderID, ref.url, handle)
		if u.onUpload != nil {
			u.onUpload(handle)
		}
		return handle, nil
	})
	if err != nil {
		return model.AssetHandle{}, err
	}
	return v.(model.AssetHandle), nil
}

func (u *Uploader) uploadOne(ctx context.Context, folderID int64, prefix, title string, ref reference) (model.AssetHandle, error) {
	data, err := u.fetch(ctx, ref.url)
	if err != nil {
		return model.AssetHandle{}, err
	}
	filename := fmt.Sprintf("%s_%s", prefix, sanitize.Filename(ref.url))
	description := fmt.Sprintf("Image (%s) for: %s", ref.role, sanitize.Name(title, 100))
	doc, err := u.gw.UploadDocument(ctx, folderID, filename, data, filename, description)
	if err != nil {
		return model.AssetHandle{}, fmt.Errorf("upload %s: %w", ref.url, err)
	}
	u.logger.Info("asset uploaded", "filename", filename, "id", doc.ID, "folderId", folderID)
	return model.AssetHandle{
		ID:         doc.ID,
		SourceURL:  ref.url,
		Role:       ref.role,
		ContentURL: doc.ContentURL,
	}, nil
}

func (u *Uploader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "newsmigrate/1.0")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return data, nil
}

func (u *Uploader) cached(folderID int64, url string) (model.AssetHandle, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	handle, ok := u.perFolder[folderID][url]
	return handle, ok
}

func (u *Uploader) store(folderID int64, url string, handle model.AssetHandle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.perFolder[folderID] == nil {
		u.perFolder[folderID] = make(map[string]model.AssetHandle)
	}
	u.perFolder[folderID][url] = handle
}
