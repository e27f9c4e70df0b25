package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/indexit/core"
)

// Dir is a connector over a directory of plain-text or markdown files.
// The source id of a document is its path relative to the root.
type Dir struct {
	root string
}

var _ Connector = (*Dir)(nil)

// NewDir creates a connector rooted at the given directory.
func NewDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Dir{root: root}, nil
}

// FetchRaw reads one file from the directory.
func (d *Dir) FetchRaw(ctx context.Context, sourceID string) (*RawDocument, error) {
	path := filepath.Join(d.root, filepath.FromSlash(sourceID))

	// Reject ids escaping the root.
	if rel, err := filepath.Rel(d.root, path); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, sourceID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, sourceID)
		}
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	content := string(data)
	return &RawDocument{
		SourceID:    sourceID,
		SourceType:  "file",
		Title:       titleFromPath(sourceID),
		Content:     content,
		Fingerprint: core.Fingerprint(content),
		ModifiedAt:  info.ModTime().UTC(),
	}, nil
}

// List walks the directory and returns the source ids of all regular files
// with a text-like extension.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md", ".markdown", ".rst":
		default:
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		ids = append(ids, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func titleFromPath(sourceID string) string {
	base := filepath.Base(filepath.FromSlash(sourceID))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
