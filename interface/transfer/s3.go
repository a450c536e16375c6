package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/airbusgeo/modis-grabber/service"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3 implements Transfer for s3://bucket/prefix mirrors of the archive.
// Without static credentials, they are loaded from the default AWS chain at the first call.
type S3 struct {
	region          string
	accessKeyID     string
	secretAccessKey string
	requestPayer    bool

	once   sync.Once
	client *s3.Client
	err    error
}

// NewS3 creates a new S3 transfer
func NewS3(region, accessKeyID, secretAccessKey string, requestPayer bool) *S3 {
	return &S3{region: region, accessKeyID: accessKeyID, secretAccessKey: secretAccessKey, requestPayer: requestPayer}
}

// Name implements Transfer
func (t *S3) Name() string {
	return "S3"
}

func (t *S3) getClient(ctx context.Context) (*s3.Client, error) {
	t.once.Do(func() {
		var opts []func(*config.LoadOptions) error
		if t.region != "" {
			opts = append(opts, config.WithRegion(t.region))
		}
		if t.accessKeyID != "" {
			opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(t.accessKeyID, t.secretAccessKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			t.err = fmt.Errorf("config.LoadDefaultConfig: %w", err)
			return
		}
		t.client = s3.NewFromConfig(cfg)
	})
	return t.client, t.err
}

func (t *S3) payer() s3types.RequestPayer {
	if t.requestPayer {
		return s3types.RequestPayerRequester
	}
	return ""
}

// s3Error classifies the errors of the S3 API
func s3Error(remote string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return notFound(remote, err)
		case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
			return service.MakeTemporary(err)
		}
	}
	return err
}

// Fetch implements Transfer
func (t *S3) Fetch(ctx context.Context, remote, localDir string) (string, error) {
	bucket, key, err := splitBucket(remote)
	if err != nil {
		return "", fmt.Errorf("S3.Fetch: %w", err)
	}
	client, err := t.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("S3.Fetch.%w", err)
	}
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})

	localFile := filepath.Join(localDir, path.Base(key))
	file, err := os.Create(localFile)
	if err != nil {
		return "", fmt.Errorf("S3.Fetch.Create: %w", err)
	}
	defer file.Close()

	_, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(key),
		RequestPayer: t.payer(),
	})
	if err != nil {
		file.Close()
		os.Remove(localFile)
		return "", s3Error(remote, fmt.Errorf("S3.Fetch[%s]: %w", remote, err))
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("S3.Fetch.Close: %w", err)
	}
	return localFile, nil
}

// List implements Transfer
func (t *S3) List(ctx context.Context, remote string) ([]string, error) {
	bucket, prefix, err := splitBucket(remote)
	if err != nil {
		return nil, fmt.Errorf("S3.List: %w", err)
	}
	client, err := t.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("S3.List.%w", err)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:       aws.String(bucket),
		Prefix:       aws.String(prefix),
		Delimiter:    aws.String("/"),
		RequestPayer: t.payer(),
	})
	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Error(remote, fmt.Errorf("S3.List[%s]: %w", remote, err))
		}
		for _, object := range page.Contents {
			if name := strings.TrimPrefix(aws.ToString(object.Key), prefix); name != "" {
				names = append(names, name)
			}
		}
	}
	return names, nil
}
