package platform

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/hwmon/monitor/message"
)

// ErrInvalidFileName is returned for names that are empty or escape the store directory.
var ErrInvalidFileName = errors.New("platform: invalid file name")

// FileStore persists files received from an editor.
type FileStore interface {
	Persist(data []byte, name string, kind message.FileKind) (string, error)
}

// DirStore writes files below a base directory, one sub directory per file kind.
type DirStore struct {
	fs   afero.Fs
	base string
}

var _ FileStore = (*DirStore)(nil)

// NewDirStore creates a DirStore rooted at base.
func NewDirStore(fs afero.Fs, base string) *DirStore {
	return &DirStore{fs: fs, base: base}
}

// Persist writes data and returns the path of the written file.
func (s *DirStore) Persist(data []byte, name string, kind message.FileKind) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.base, kindDir(kind))
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	target := filepath.Join(dir, clean)
	if err := afero.WriteFile(s.fs, target, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}

	return target, nil
}

func kindDir(kind message.FileKind) string {
	switch kind {
	case message.FileImage:
		return "images"
	case message.FileFont:
		return "fonts"
	default:
		return "other"
	}
}

// sanitizeName keeps only the final element of an editor supplied path.
func sanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, name)
	}

	return base, nil
}
