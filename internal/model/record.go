// Package model contains the struct definitions shared across packages.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// ContentRecord is one scraped news item as produced by the upstream
// extractor. Records are read-only for the engine: the migration pipeline
// never mutates them.
type ContentRecord struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Author        string     `json:"author,omitempty"`
	Date          string     `json:"date,omitempty"`
	FeaturedImage string     `json:"featured_image,omitempty"`
	Content       string     `json:"content,omitempty"`
	ContentImages []ImageRef `json:"content_images,omitempty"`
	Success       bool       `json:"success"`
	Error         string     `json:"error,omitempty"`
}

// Eligible reports whether the record may enter the pipeline at all.
// Ineligible records are counted as failed without any remote call.
func (r ContentRecord) Eligible() bool {
	return r.Success && strings.TrimSpace(r.Title) != ""
}

// ImageRef is an embedded image reference inside a record. Older scraper
// output encodes these as bare URL strings, newer output as objects, so the
// decoder accepts both.
type ImageRef struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
	Type   string `json:"type,omitempty"`
}

func (i *ImageRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var src string
		if err := json.Unmarshal(data, &src); err != nil {
			return err
		}
		*i = ImageRef{Src: src}
		return nil
	}
	type plain ImageRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = ImageRef(p)
	return nil
}

// FolderHandle identifies a destination folder. ParentID zero means the
// folder sits directly under the configured parent root.
type FolderHandle struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parentId,omitempty"`
}

// AssetRole tags why an asset was uploaded for a record.
type AssetRole string

const (
	RoleCover      AssetRole = "cover"
	RoleGallery    AssetRole = "gallery"
	RoleBodyInline AssetRole = "body-inline"
)

// AssetHandle references an uploaded binary asset at the destination.
type AssetHandle struct {
	ID         int64     `json:"id"`
	SourceURL  string    `json:"sourceUrl"`
	Role       AssetRole `json:"role"`
	ContentURL string    `json:"contentUrl,omitempty"`
}

// ItemState describes where an item's pipeline stopped. A failure may occur
// at any step; the terminal states are StateCreated and StateFailed.
type ItemState string

const (
	StatePending         ItemState = "pending"
	StateFolderResolved  ItemState = "folder-resolved"
	StateAssetsUploaded  ItemState = "assets-uploaded"
	StateContentComposed ItemState = "content-composed"
	StateCreated         ItemState = "created"
	StateFailed          ItemState = "failed"
)

// MigrationResult is the single, final outcome record for one input item.
type MigrationResult struct {
	Title     string        `json:"title"`
	SourceURL string        `json:"sourceUrl,omitempty"`
	Success   bool          `json:"success"`
	State     ItemState     `json:"state"`
	Message   string        `json:"message"`
	ContentID int64         `json:"contentId,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsedNs"`
}

// RunStatistics aggregates counters for one run. The orchestrator owns the
// instance and guards increments; once the run loop exits EndTime is set and
// the struct is effectively frozen.
type RunStatistics struct {
	TotalItems      int       `json:"totalItems"`
	ProcessedItems  int       `json:"processedItems"`
	SucceededItems  int       `json:"succeededItems"`
	FailedItems     int       `json:"failedItems"`
	FoldersCreated  int       `json:"foldersCreated"`
	AssetsUploaded  int       `json:"assetsUploaded"`
	ContentsCreated int       `json:"contentsCreated"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}

// SuccessRate returns the share of processed items that succeeded, in percent.
func (s RunStatistics) SuccessRate() float64 {
	if s.ProcessedItems == 0 {
		return 0
	}
	return float64(s.SucceededItems) / float64(s.ProcessedItems) * 100
}

// Duration returns the wall-clock length of the run.
func (s RunStatistics) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}
