package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/modis-grabber/service"
	"google.golang.org/api/iterator"
)

// GS implements Transfer for gs://bucket/prefix mirrors of the archive.
// The client is created with the application default credentials at the first call.
type GS struct {
	once   sync.Once
	client *storage.Client
	err    error
}

// NewGS creates a new Google Storage transfer
func NewGS() *GS {
	return &GS{}
}

// Name implements Transfer
func (t *GS) Name() string {
	return "GoogleStorage"
}

func (t *GS) getClient(ctx context.Context) (*storage.Client, error) {
	t.once.Do(func() {
		if t.client, t.err = storage.NewClient(ctx); t.err != nil {
			t.err = service.MakeTemporary(fmt.Errorf("storage.NewClient: %w", t.err))
		}
	})
	return t.client, t.err
}

// Close releases the client, if any
func (t *GS) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// Fetch implements Transfer
func (t *GS) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	bucket, object, err := splitBucket(remote)
	if err != nil {
		return "", fmt.Errorf("GS.Fetch: %w", err)
	}
	client, err := t.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("GS.Fetch.%w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return "", notFound(remote, err)
		}
		return "", fmt.Errorf("GS.Fetch[%s].NewReader: %w", remote, err)
	}
	defer r.Close()

	localFile := filepath.Join(localDir, path.Base(object))
	dst, err := os.Create(localFile)
	if err != nil {
		return "", fmt.Errorf("GS.Fetch.Create: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.TeeReader(r, newProgressWriter(ctx, "GS:"+path.Base(object), r.Attrs.Size, 0.05))); err != nil {
		os.Remove(localFile)
		return "", service.MakeTemporary(fmt.Errorf("GS.Fetch[%s].Copy: %w", remote, err))
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("GS.Fetch.Close: %w", err)
	}
	return localFile, nil
}

// List implements Transfer
func (t *GS) List(ctx context.Context, remote string) ([]string, error) {
	bucket, prefix, err := splitBucket(remote)
	if err != nil {
		return nil, fmt.Errorf("GS.List: %w", err)
	}
	client, err := t.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("GS.List.%w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	q := &storage.Query{Prefix: prefix, Delimiter: "/"}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("GS.List.SetAttrSelection: %w", err)
	}
	var names []string
	it := client.Bucket(bucket).Objects(ctx, q)
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if errors.Is(err, storage.ErrBucketNotExist) {
				return nil, notFound(remote, err)
			}
			return nil, fmt.Errorf("GS.List[%s]: %w", remote, err)
		}
		if attrs.Prefix != "" { // sub-directory
			continue
		}
		if name := strings.TrimPrefix(attrs.Name, prefix); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
