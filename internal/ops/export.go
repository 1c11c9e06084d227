package ops

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"time"

	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/store"
)

// ExportSchemaVersion is written in every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path  string // optional, default: <exports>/<label>-<timestamp>.jsonl
	Label string // optional file name prefix, default: "brain"; only used without Path
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of an export file.
type ExportHeader struct {
	BrainExport   bool   `json:"_brain_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// Export writes the normalized list to a JSONL file: a header line, then
// one record per line in stored order. Without a path the file goes to
// exportsDir, named after the label and the time.
func Export(ctx context.Context, st store.Store, cfg *config.Config, exportsDir string, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	path := input.Path
	if path == "" {
		path = filepath.Join(exportsDir, defaultExportName(input.Label, now))
	}
	target, err := resolveExportFile(path, cfg, exportsDir)
	if err != nil {
		return nil, err
	}

	records, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}

	err = target.create(func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)

		header := ExportHeader{
			BrainExport:   true,
			SchemaVersion: ExportSchemaVersion,
			ExportedAt:    now.Unix(),
		}
		if err := enc.Encode(header); err != nil {
			return errors.NewInternal(err)
		}
		for _, r := range records {
			if ctx.Err() != nil {
				return errors.NewCancelled("export")
			}
			if err := enc.Encode(r); err != nil {
				return errors.NewInternal(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       target.Path(),
		Count:      len(records),
		ExportedAt: now.Unix(),
	}, nil
}
