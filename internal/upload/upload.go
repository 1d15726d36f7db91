// Package upload validates the text files users submit for summarization.
package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default limits.
const (
	DefaultMaxFiles     = 5
	DefaultMaxFileBytes = 1 << 20 // 1 MiB
)

// DefaultAllowedExts are the file extensions accepted by default.
var DefaultAllowedExts = []string{".txt", ".md"}

// Sentinel errors. Validation wraps these with the offending file name.
var (
	ErrNoFiles      = errors.New("no files provided")
	ErrTooManyFiles = errors.New("too many files")
	ErrBadExtension = errors.New("unsupported file type")
	ErrFileTooLarge = errors.New("file too large")
	ErrEmptyFile    = errors.New("file is empty")
)

// File is one validated input document.
type File struct {
	Name    string
	Content string
}

// Limits bounds what a single request may submit. Zero values take the
// package defaults.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
	AllowedExts  []string
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:     DefaultMaxFiles,
		MaxFileBytes: DefaultMaxFileBytes,
		AllowedExts:  DefaultAllowedExts,
	}
}

func (l Limits) normalized() Limits {
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultMaxFiles
	}
	if l.MaxFileBytes <= 0 {
		l.MaxFileBytes = DefaultMaxFileBytes
	}
	if len(l.AllowedExts) == 0 {
		l.AllowedExts = DefaultAllowedExts
	}
	return l
}

func (l Limits) extAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range l.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SanitizeName strips any directory components from a file name so user
// input cannot smuggle paths.
func SanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// Validate checks a batch of files against the limits. Files are returned
// in submission order with sanitized names. The first violation fails the
// whole batch.
func Validate(files []File, limits Limits) ([]File, error) {
	limits = limits.normalized()

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(files), limits.MaxFiles)
	}

	out := make([]File, 0, len(files))
	for _, f := range files {
		name := SanitizeName(f.Name)
		if name == "" || !limits.extAllowed(name) {
			return nil, fmt.Errorf("%w: %q (allowed: %s)",
				ErrBadExtension, f.Name, strings.Join(limits.AllowedExts, ", "))
		}
		if int64(len(f.Content)) > limits.MaxFileBytes {
			return nil, fmt.Errorf("%w: %q (%d bytes, limit %d)",
				ErrFileTooLarge, name, len(f.Content), limits.MaxFileBytes)
		}
		if strings.TrimSpace(f.Content) == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyFile, name)
		}
		out = append(out, File{Name: name, Content: f.Content})
	}
	return out, nil
}

// Collect reads files from disk and validates them. Used by the CLI, where
// inputs arrive as paths rather than request bodies.
func Collect(paths []string, limits Limits) ([]File, error) {
	limits = limits.normalized()

	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if len(paths) > limits.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyFiles, len(paths), limits.MaxFiles)
	}

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, File{Name: filepath.Base(path), Content: string(data)})
	}
	return Validate(files, limits)
}
