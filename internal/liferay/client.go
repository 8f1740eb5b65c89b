// Package liferay is the transport wrapper around the destination platform's
// headless-delivery REST API. One Client (and its http.Client) is shared by
// every concurrent pipeline of a run; all calls are stateless request/response
// with basic authentication.
package liferay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/contentforge/newsmigrate/internal/model"
)

const (
	initialRetryDelay  = 1 * time.Second
	maxRetryDelay      = 30 * time.Second
	retryBackoffFactor = 2
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	SiteID     int64
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
}

// Client interfaces with the headless-delivery API.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// NewClient creates a Client with its own pooled http.Client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Client{
		opts: opts,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

type folderList struct {
	Items []folderItem `json:"items"`
}

type folderItem struct {
	ID                     int64  `json:"id"`
	Name                   string `json:"name"`
	ParentDocumentFolderID int64  `json:"parentDocumentFolderId,omitempty"`
}

// Document is the platform's representation of an uploaded binary asset.
type Document struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ContentURL string `json:"contentUrl,omitempty"`
}

// ContentField is one named field of a structured-content payload.
type ContentField struct {
	Name              string            `json:"name"`
	ContentFieldValue ContentFieldValue `json:"contentFieldValue"`
}

// ContentFieldValue holds either inline data or an image reference.
type ContentFieldValue struct {
	Data  string        `json:"data,omitempty"`
	Image *ContentImage `json:"image,omitempty"`
}

// ContentImage references an uploaded document by id.
type ContentImage struct {
	ID          int64  `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ContentPayload is the create-structured-content request body.
type ContentPayload struct {
	Title              string         `json:"title"`
	ContentStructureID int64          `json:"contentStructureId"`
	ContentFields      []ContentField `json:"contentFields"`
	ViewableBy         string         `json:"viewableBy"`
}

// StructuredContent is the created entry returned by the platform.
type StructuredContent struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.opts.BaseURL, "/") + "/o/headless-delivery/v1.0" + path
}

// ListDocumentFolders lists document folders under parentID, or the site's
// top-level folders when parentID is zero.
func (c *Client) ListDocumentFolders(ctx context.Context, parentID int64) ([]model.FolderHandle, error) {
	url := c.apiURL(fmt.Sprintf("/sites/%d/document-folders", c.opts.SiteID))
	if parentID != 0 {
		url = c.apiURL(fmt.Sprintf("/document-folders/%d/document-folders", parentID))
	}
	return c.listFolders(ctx, url)
}

// CreateDocumentFolder creates a document folder under parentID (zero means
// the site root).
func (c *Client) CreateDocumentFolder(ctx context.Context, name, description string, parentID int64) (model.FolderHandle, error) {
	url := c.apiURL(fmt.Sprintf("/sites/%d/document-folders", c.opts.SiteID))
	body := map[string]any{
		"name":        name,
		"description": description,
		"viewableBy":  "Anyone",
	}
	if parentID != 0 {
		url = c.apiURL(fmt.Sprintf("/document-folders/%d/document-folders", parentID))
		body["parentDocumentFolderId"] = parentID
	}
	return c.createFolder(ctx, url, body)
}

// ListContentFolders lists structured-content folders under parentID.
func (c *Client) ListContentFolders(ctx context.Context, parentID int64) ([]model.FolderHandle, error) {
	url := c.apiURL(fmt.Sprintf("/sites/%d/structured-content-folders", c.opts.SiteID))
	if parentID != 0 {
		url = c.apiURL(fmt.Sprintf("/structured-content-folders/%d/structured-content-folders", parentID))
	}
	return c.listFolders(ctx, url)
}

// CreateContentFolder creates a structured-content folder under parentID.
func (c *Client) CreateContentFolder(ctx context.Context, name, description string, parentID int64) (model.FolderHandle, error) {
	url := c.apiURL(fmt.Sprintf("/sites/%d/structured-content-folders", c.opts.SiteID))
	if parentID != 0 {
		url = c.apiURL(fmt.Sprintf("/structured-content-folders/%d/structured-content-folders", parentID))
	}
	return c.createFolder(ctx, url, map[string]any{
		"name":        name,
		"description": description,
		"viewableBy":  "Anyone",
	})
}

func (c *Client) listFolders(ctx context.Context, url string) ([]model.FolderHandle, error) {
	data, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	var list folderList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode folder list: %w", err)
	}
	handles := make([]model.FolderHandle, 0, len(list.Items))
	for _, item := range list.Items {
		handles = append(handles, model.FolderHandle{
			ID:       item.ID,
			Name:     item.Name,
			ParentID: item.ParentDocumentFolderID,
		})
	}
	return handles, nil
}

func (c *Client) createFolder(ctx context.Context, url string, body map[string]any) (model.FolderHandle, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return model.FolderHandle{}, fmt.Errorf("marshal folder payload: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, url, payload, "application/json")
	if err != nil {
		return model.FolderHandle{}, err
	}
	var item folderItem
	if err := json.Unmarshal(data, &item); err != nil {
		return model.FolderHandle{}, fmt.Errorf("decode folder: %w", err)
	}
	return model.FolderHandle{ID: item.ID, Name: item.Name, ParentID: item.ParentDocumentFolderID}, nil
}

// UploadDocument uploads asset bytes into a document folder as a multipart
// request with a JSON metadata part, returning the created document.
func (c *Client) UploadDocument(ctx context.Context, folderID int64, filename string, data []byte, title, description string) (Document, error) {
	if title == "" {
		title = filename
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Document{}, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Document{}, fmt.Errorf("write file part: %w", err)
	}
	meta, err := json.Marshal(map[string]string{
		"title":       title,
		"description": description,
		"viewableBy":  "Anyone",
	})
	if err != nil {
		return Document{}, fmt.Errorf("marshal document metadata: %w", err)
	}
	if err := writer.WriteField("document", string(meta)); err != nil {
		return Document{}, fmt.Errorf("write metadata part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Document{}, fmt.Errorf("close multipart: %w", err)
	}

	url := c.apiURL(fmt.Sprintf("/document-folders/%d/documents", folderID))
	respData, err := c.do(ctx, http.MethodPost, url, buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(respData, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// CreateStructuredContent creates a schema-typed entry inside a
// structured-content folder.
func (c *Client) CreateStructuredContent(ctx context.Context, folderID int64, payload ContentPayload) (StructuredContent, error) {
	if payload.ViewableBy == "" {
		payload.ViewableBy = "Anyone"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return StructuredContent{}, fmt.Errorf("marshal content payload: %w", err)
	}
	url := c.apiURL(fmt.Sprintf("/structured-content-folders/%d/structured-contents", folderID))
	data, err := c.do(ctx, http.MethodPost, url, body, "application/json")
	if err != nil {
		return StructuredContent{}, err
	}
	var content StructuredContent
	if err := json.Unmarshal(data, &content); err != nil {
		return StructuredContent{}, fmt.Errorf("decode structured content: %w", err)
	}
	return content, nil
}

// do performs one authenticated call, retrying on rate limits and server
// errors with exponential backoff.
func (c *Client) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		data, err := c.doOnce(ctx, method, url, body, contentType)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.opts.Username, c.opts.Password)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

func retryDelay(attempt int) time.Duration {
	delay := initialRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= retryBackoffFactor
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
