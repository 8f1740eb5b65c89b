// Package folder resolves destination folders for records, creating them at
// most once per run. The resolver is instantiated once per folder kind
// (document folders, structured-content folders) over the same implementation.
package folder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/contentforge/newsmigrate/internal/liferay"
	"github.com/contentforge/newsmigrate/internal/model"
	"github.com/contentforge/newsmigrate/internal/sanitize"
)

// API is the slice of the remote gateway the resolver needs.
type API interface {
	List(ctx context.Context, parentID int64) ([]model.FolderHandle, error)
	Create(ctx context.Context, name, description string, parentID int64) (model.FolderHandle, error)
}

// Resolver caches folder handles for one run. The cache key is the joined
// sanitized path, so two records whose titles sanitize identically resolve to
// the same handle with exactly one remote creation call; singleflight
// serializes concurrent resolution of the same key.
type Resolver struct {
	api      API
	rootID   int64
	maxName  int
	logger   *slog.Logger
	onCreate func(model.FolderHandle)

	mu    sync.Mutex
	cache map[string]model.FolderHandle
	group singleflight.Group
}

// NewResolver builds a run-scoped resolver rooted at rootID (zero means the
// site root). onCreate, when non-nil, fires once per folder actually created
// remotely; reused or cached folders do not trigger it.
func NewResolver(api API, rootID int64, logger *slog.Logger, onCreate func(model.FolderHandle)) *Resolver {
	return &Resolver{
		api:      api,
		rootID:   rootID,
		maxName:  sanitize.DefaultMaxNameLength,
		logger:   logger,
		onCreate: onCreate,
		cache:    make(map[string]model.FolderHandle),
	}
}

// Resolve returns the folder for a record: the ordered pathSegments are
// resolved (and created when missing) from the root down, then the leaf named
// after the sanitized title.
func (r *Resolver) Resolve(ctx context.Context, pathSegments []string, title string) (model.FolderHandle, error) {
	parentID := r.rootID
	keyParts := []string{fmt.Sprintf("root:%d", r.rootID)}
	for _, seg := range pathSegments {
		name := sanitize.Name(seg, r.maxName)
		keyParts = append(keyParts, name)
		handle, err := r.resolveOne(ctx, strings.Join(keyParts, "/"), name, seg, parentID)
		if err != nil {
			return model.FolderHandle{}, fmt.Errorf("resolve path segment %q: %w", seg, err)
		}
		parentID = handle.ID
	}

	leaf := sanitize.Name(title, r.maxName)
	keyParts = append(keyParts, leaf)
	return r.resolveOne(ctx, strings.Join(keyParts, "/"), leaf, title, parentID)
}

// resolveOne looks the key up in the run cache, then asks the remote for an
// existing folder of that name under parentID, and only then creates one.
// The cache check happens before any remote call; the singleflight group
// guarantees that two network-concurrent resolutions of the same logical
// folder issue a single create.
func (r *Resolver) resolveOne(ctx context.Context, key, name, title string, parentID int64) (model.FolderHandle, error) {
	r.mu.Lock()
	if handle, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return handle, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(key, func() (any, error) {
		// A concurrent flight may have populated the cache between the check
		// above and entering the group.
		r.mu.Lock()
		if handle, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return handle, nil
		}
		r.mu.Unlock()

		if existing, err := r.api.List(ctx, parentID); err == nil {
			for _, f := range existing {
				if f.Name == name {
					r.store(key, f)
					r.logger.Debug("folder reused", "name", name, "id", f.ID)
					return f, nil
				}
			}
		} else if !errors.Is(err, liferay.ErrNotFound) {
			r.logger.Warn("folder listing failed, creating directly",
				"name", name, "parentId", parentID, "error", err)
		}

		description := fmt.Sprintf("Folder for: %s", sanitize.Name(title, 200))
		handle, err := r.api.Create(ctx, name, description, parentID)
		if err != nil {
			return model.FolderHandle{}, fmt.Errorf("create folder %q: %w", name, err)
		}
		r.store(key, handle)
		r.logger.Info("folder created", "name", name, "id", handle.ID, "parentId", parentID)
		if r.onCreate != nil {
			r.onCreate(handle)
		}
		return handle, nil
	})
	if err != nil {
		return model.FolderHandle{}, err
	}
	return v.(model.FolderHandle), nil
}

func (r *Resolver) store(key string, handle model.FolderHandle) {
	r.mu.Lock()
	r.cache[key] = handle
	r.mu.Unlock()
}
