package liferay

import (
	"context"

	"github.com/contentforge/newsmigrate/internal/model"
)

// DocumentFolderAPI exposes the document-folder operations behind the small
// interface the folder resolver consumes.
type DocumentFolderAPI struct {
	c *Client
}

// DocumentFolders returns the document-folder view of the client.
func (c *Client) DocumentFolders() DocumentFolderAPI {
	return DocumentFolderAPI{c: c}
}

func (a DocumentFolderAPI) List(ctx context.Context, parentID int64) ([]model.FolderHandle, error) {
	return a.c.ListDocumentFolders(ctx, parentID)
}

func (a DocumentFolderAPI) Create(ctx context.Context, name, description string, parentID int64) (model.FolderHandle, error) {
	return a.c.CreateDocumentFolder(ctx, name, description, parentID)
}

// ContentFolderAPI is the structured-content-folder counterpart.
type ContentFolderAPI struct {
	c *Client
}

// ContentFolders returns the structured-content-folder view of the client.
func (c *Client) ContentFolders() ContentFolderAPI {
	return ContentFolderAPI{c: c}
}

func (a ContentFolderAPI) List(ctx context.Context, parentID int64) ([]model.FolderHandle, error) {
	return a.c.ListContentFolders(ctx, parentID)
}

func (a ContentFolderAPI) Create(ctx context.Context, name, description string, parentID int64) (model.FolderHandle, error) {
	return a.c.CreateContentFolder(ctx, name, description, parentID)
}
