package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hpungsan/brain/internal/bus"
	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
	"github.com/hpungsan/brain/internal/record"
	"github.com/hpungsan/brain/internal/store"
)

// ImportMode controls what happens when an imported id already exists.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // write nothing if any line fails or collides
	ImportModeReplace ImportMode = "replace" // imported record overwrites the existing one in place
	ImportModeRename  ImportMode = "rename"  // imported record gets a new id
)

// maxImportLine bounds a single JSONL line.
const maxImportLine = 4 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required; a bare file name is looked up in the exports dir
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Replaced int           `json:"replaced"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importLine struct {
	line int
	id   string
	raw  json.RawMessage
}

// Import reads an export file and merges its records into the list.
// New records are appended after the existing ones. The whole result is
// saved in one write.
func Import(ctx context.Context, st store.Store, n bus.Notifier, logger *zap.Logger, cfg *config.Config, exportsDir string, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}

	source, err := resolveExportFile(input.Path, cfg, exportsDir)
	if err != nil {
		return nil, err
	}
	file, err := source.open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines, parseErrors := parseExportFile(file)
	out := &ImportOutput{Errors: parseErrors}
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return out, nil
	}
	out.Skipped = len(parseErrors)

	existing, err := loadRecords(ctx, st)
	if err != nil {
		return nil, err
	}

	next := mergeImported(existing, lines, input.Mode, out)
	if input.Mode == ImportModeError && len(out.Errors) > 0 {
		out.Imported, out.Replaced = 0, 0
		return out, nil
	}
	if out.Imported == 0 && out.Replaced == 0 {
		return out, nil
	}

	if err := saveRecords(ctx, st, next); err != nil {
		return nil, err
	}
	bus.NotifyBestEffort(ctx, n, bus.Refresh(), logger)
	return out, nil
}

func mergeImported(existing []record.Record, lines []importLine, mode ImportMode, out *ImportOutput) []record.Record {
	next := make([]record.Record, len(existing), len(existing)+len(lines))
	copy(next, existing)

	for _, l := range lines {
		r := record.Normalize([]json.RawMessage{l.raw})[0]

		i := record.Find(next, r.ID)
		if i < 0 {
			next = append(next, r)
			out.Imported++
			continue
		}

		switch mode {
		case ImportModeError:
			out.Errors = append(out.Errors, ImportError{
				Line:    l.line,
				ID:      l.id,
				Code:    "ID_COLLISION",
				Message: fmt.Sprintf("record with id %q already exists", l.id),
			})
		case ImportModeReplace:
			next[i] = r
			out.Replaced++
		case ImportModeRename:
			r.ID = record.NewID()
			next = append(next, r)
			out.Imported++
		}
	}
	return next
}

// parseExportFile reads one JSON object per line, skipping the header and
// blank lines. Lines without a string id are rejected.
func parseExportFile(r io.Reader) ([]importLine, []ImportError) {
	var lines []importLine
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var peek struct {
			BrainExport bool `json:"_brain_export"`
			ID          any  `json:"id"`
		}
		if err := json.Unmarshal(raw, &peek); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if peek.BrainExport {
			continue
		}

		id, _ := peek.ID.(string)
		if id == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}

		lines = append(lines, importLine{
			line: lineNum,
			id:   id,
			raw:  json.RawMessage(append([]byte(nil), raw...)),
		})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return lines, parseErrors
}
