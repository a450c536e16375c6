package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Local implements Transfer for a mirror of the archive on a local or mounted filesystem
type Local struct{}

// NewLocal creates a new Local transfer
func NewLocal() *Local {
	return &Local{}
}

// Name implements Transfer
func (l *Local) Name() string {
	return "FileSystem"
}

// Fetch implements Transfer
func (l *Local) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	src := localPath(remote)
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", notFound(remote, nil)
		}
		return "", fmt.Errorf("Local.Fetch.Open: %w", err)
	}
	defer in.Close()

	localFile := filepath.Join(localDir, filepath.Base(src))
	out, err := os.Create(localFile)
	if err != nil {
		return "", fmt.Errorf("Local.Fetch.Create: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(localFile)
		return "", fmt.Errorf("Local.Fetch[%s].Copy: %w", remote, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("Local.Fetch.Close: %w", err)
	}
	return localFile, ctx.Err()
}

// List implements Transfer
func (l *Local) List(ctx context.Context, remote string) ([]string, error) {
	entries, err := os.ReadDir(localPath(remote))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(remote, nil)
		}
		return nil, fmt.Errorf("Local.List: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, ctx.Err()
}
