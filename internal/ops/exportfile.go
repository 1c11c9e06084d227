package ops

import (
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/hpungsan/brain/internal/config"
	"github.com/hpungsan/brain/internal/errors"
)

const (
	exportExt        = ".jsonl"
	exportTimeLayout = "2006-01-02T150405"
	defaultLabel     = "brain"
	maxLabelRunes    = 48
)

// exportFile is an export or import location that passed resolveExportFile:
// a directory export and import may use, and a plain file name in it.
// Files are only opened through an os.Root on Dir, so Name cannot leave it.
type exportFile struct {
	Dir  string
	Name string
}

// Path returns the absolute file path.
func (f exportFile) Path() string {
	return filepath.Join(f.Dir, f.Name)
}

// defaultExportName returns "<label>-<timestamp>.jsonl".
func defaultExportName(label string, at time.Time) string {
	return exportLabel(label) + "-" + at.Format(exportTimeLayout) + exportExt
}

// exportLabel reduces label to lowercase letters and digits separated by
// single dashes, at most maxLabelRunes long. Anything else becomes "brain".
func exportLabel(label string) string {
	var out []rune
	gap := false
	for _, r := range strings.ToLower(label) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if gap && len(out) > 0 {
			out = append(out, '-')
		}
		gap = false
		out = append(out, r)
	}
	if len(out) > maxLabelRunes {
		out = out[:maxLabelRunes]
	}
	s := strings.TrimRight(string(out), "-")
	if s == "" {
		return defaultLabel
	}
	return s
}

// resolveExportFile checks a user-supplied export or import path.
//
// A bare file name refers to exportsDir. Otherwise the file must sit
// directly in exportsDir or in an absolute allowed_paths entry, unless
// allow_unsafe_paths is set. ".." elements and names without the .jsonl
// extension are always refused.
func resolveExportFile(path string, cfg *config.Config, exportsDir string) (exportFile, error) {
	if strings.TrimSpace(path) == "" {
		return exportFile{}, errors.NewInvalidRequest("path is required")
	}
	for _, part := range strings.FieldsFunc(path, isPathSeparator) {
		if part == ".." {
			return exportFile{}, errors.NewInvalidRequest("path must not contain ..")
		}
	}

	name := filepath.Base(path)
	if filepath.Ext(name) != exportExt {
		return exportFile{}, errors.NewInvalidRequest("path must end in " + exportExt)
	}

	if !strings.ContainsFunc(path, isPathSeparator) {
		path = filepath.Join(exportsDir, name)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return exportFile{}, errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		if !isExportDir(dir, cfg, exportsDir) {
			return exportFile{}, errors.NewInvalidRequest(fmt.Sprintf(
				"%s is not an export directory; use %s or add it to allowed_paths", dir, exportsDir))
		}
	}
	return exportFile{Dir: dir, Name: name}, nil
}

func isPathSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// isExportDir reports whether dir is exportsDir or an absolute
// allowed_paths entry, comparing symlink-resolved forms.
func isExportDir(dir string, cfg *config.Config, exportsDir string) bool {
	allowed := []string{exportsDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				allowed = append(allowed, p)
			}
		}
	}

	want := canonicalDir(dir)
	for _, a := range allowed {
		if canonicalDir(a) == want {
			return true
		}
	}
	return false
}

// canonicalDir returns dir absolute and with symlinks resolved, or just
// absolute and cleaned when it does not exist yet.
func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// create writes the file via write into a temporary sibling, then renames
// it over Name, so an existing export survives a failed write. Dir is
// created if missing. A symlink at Name is refused.
func (f exportFile) create(write func(io.Writer) error) error {
	if err := os.MkdirAll(f.Dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}
	root, err := os.OpenRoot(f.Dir)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to open export directory: %w", err))
	}
	defer root.Close()

	if err := refuseSymlink(root, f.Name); err != nil {
		return err
	}

	tmp := f.Name + "." + rand.Text() + ".tmp"
	file, err := root.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}
	done := false
	defer func() {
		if !done {
			file.Close()
			_ = root.Remove(tmp)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	if err := root.Rename(tmp, f.Name); err != nil {
		_ = root.Remove(tmp)
		done = true
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}
	done = true
	return nil
}

// open opens the file for reading. A missing file or directory is
// FILE_NOT_FOUND; a symlink is refused.
func (f exportFile) open() (*os.File, error) {
	root, err := os.OpenRoot(f.Dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFound(f.Path())
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import directory: %w", err))
	}
	defer root.Close()

	if err := refuseSymlink(root, f.Name); err != nil {
		return nil, err
	}
	file, err := root.Open(f.Name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewFileNotFound(f.Path())
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	return file, nil
}

func refuseSymlink(root *os.Root, name string) error {
	info, err := root.Lstat(name)
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return errors.NewInternal(err)
	case info.Mode()&fs.ModeSymlink != 0:
		return errors.NewInvalidRequest(name + " is a symlink")
	}
	return nil
}
