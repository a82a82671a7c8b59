package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// NewDir returns a remote stored in a directory, e.g. a mounted network
// share or a folder synced by another tool.
func NewDir(fs afero.Fs, root string) *Bucket {
	return &Bucket{objects: &dirObjects{fs: fs, root: root}, name: root}
}

type dirObjects struct {
	fs   afero.Fs
	root string
}

func (d *dirObjects) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *dirObjects) get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(d.fs, d.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return data, err
}

func (d *dirObjects) put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := d.path(key)
	if err := d.fs.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
	}

	tmp := p + ".tmp"
	if err := afero.WriteFile(d.fs, tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := d.fs.Rename(tmp, p); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
