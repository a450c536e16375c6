package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/airbusgeo/modis-grabber/service"
)

// ErrNotFound is returned (wrapped) when the remote file or directory does not exist
var ErrNotFound = errors.New("not found")

// Transfer is the interface of a remote archive
type Transfer interface {
	// Fetch downloads the remote file into localDir and returns the path of the local file.
	// The local file is named after the last element of remote.
	Fetch(ctx context.Context, remote, localDir string) (string, error)

	// List returns the names (last path element) of the files of the remote directory
	List(ctx context.Context, remote string) ([]string, error)

	// Name of the transfer
	Name() string
}

func notFound(remote string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, remote)
	}
	return fmt.Errorf("%w: %s: %v", ErrNotFound, remote, err)
}

// Join appends the elements to the path of the location
func Join(location string, elem ...string) (string, error) {
	if scheme(location) == "file" && !strings.HasPrefix(location, "file:") {
		return path.Join(append([]string{location}, elem...)...), nil
	}
	return url.JoinPath(location, elem...)
}

// localPath returns the filesystem path of a file:// location or a plain path
func localPath(location string) string {
	if strings.HasPrefix(location, "file:") {
		if u, err := url.Parse(location); err == nil {
			return u.Path
		}
	}
	return location
}

// scheme returns the lowercase scheme of the location, "file" for local paths
func scheme(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 { // len 1: windows drive letter
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

// splitBucket splits a scheme://bucket/key location
func splitBucket(location string) (bucket, key string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", location, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing bucket in %s", location)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// Mux dispatches the calls to a Transfer according to the scheme of the remote location
type Mux struct {
	transfers map[string]Transfer
}

// NewMux creates an empty Mux
func NewMux() *Mux {
	return &Mux{transfers: map[string]Transfer{}}
}

// Handle registers the transfer for the given schemes ("file" for local paths)
func (m *Mux) Handle(t Transfer, schemes ...string) {
	for _, s := range schemes {
		m.transfers[strings.ToLower(s)] = t
	}
}

func (m *Mux) get(remote string) (Transfer, error) {
	s := scheme(remote)
	if t, ok := m.transfers[s]; ok {
		return t, nil
	}
	return nil, service.MakeFatal(fmt.Errorf("no transfer for scheme %q (%s)", s, remote))
}

// Name implements Transfer
func (m *Mux) Name() string {
	var names []string
	for s, t := range m.transfers {
		names = append(names, s+":"+t.Name())
	}
	return "Mux(" + strings.Join(names, ", ") + ")"
}

// Fetch implements Transfer
func (m *Mux) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	t, err := m.get(remote)
	if err != nil {
		return "", err
	}
	return t.Fetch(ctx, remote, localDir)
}

// List implements Transfer
func (m *Mux) List(ctx context.Context, remote string) ([]string, error) {
	t, err := m.get(remote)
	if err != nil {
		return nil, err
	}
	return t.List(ctx, remote)
}

type retrier struct {
	Transfer
	tries   int
	backoff time.Duration
}

// WithRetry retries the temporary failures of t (see service.Temporary), up to tries calls
func WithRetry(t Transfer, tries int, backoff time.Duration) Transfer {
	if tries <= 1 {
		return t
	}
	return &retrier{Transfer: t, tries: tries, backoff: backoff}
}

// Fetch implements Transfer
func (r *retrier) Fetch(ctx context.Context, remote, localDir string) (file string, err error) {
	err = service.Retriable(ctx, func() error {
		file, err = r.Transfer.Fetch(ctx, remote, localDir)
		return err
	}, r.backoff, r.tries)
	return file, err
}

// List implements Transfer
func (r *retrier) List(ctx context.Context, remote string) (names []string, err error) {
	err = service.Retriable(ctx, func() error {
		names, err = r.Transfer.List(ctx, remote)
		return err
	}, r.backoff, r.tries)
	return names, err
}
