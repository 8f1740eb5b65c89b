// Package source loads the scraped-record input file the engine migrates from.
package source

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/contentforge/newsmigrate/internal/model"
)

// Load reads a JSON array of scraped records from path. Loading is the only
// fatal input step: a file that cannot be read or parsed aborts the run, while
// defective individual records stay in the slice and are rejected later by the
// eligibility check. limit caps the slice for trial runs; zero means all.
func Load(path string, limit int, logger *slog.Logger) ([]model.ContentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}

	var records []model.ContentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse input file %s: %w", path, err)
	}

	if limit > 0 && limit < len(records) {
		logger.Info("limiting input records", "total", len(records), "limit", limit)
		records = records[:limit]
	}

	eligible := 0
	for _, r := range records {
		if r.Eligible() {
			eligible++
		}
	}
	logger.Info("input loaded", "path", path, "records", len(records), "eligible", eligible)
	return records, nil
}
