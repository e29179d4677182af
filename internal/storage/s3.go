package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pairsync/pairsync/internal/utils"
)

const (
	// metaCallTimeout bounds listing and small-blob calls so a stalled
	// remote surfaces as an error instead of hanging the run. Transfers
	// are exempt; large files may legitimately take longer.
	metaCallTimeout = 30 * time.Second
)

// S3Config is the addressing and credential set for an S3 or
// S3-compatible store (MinIO, R2, etc. via Endpoint).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Provider implements Provider on top of the AWS SDK v2 S3 client.
type S3Provider struct {
	client *s3.Client
	bucket string
}

func NewS3Provider(cfg *S3Config) (*S3Provider, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Provider{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// dirKey returns the prefix in the trailing-slash form S3 folder listings
// expect. The empty prefix (bucket root) stays empty.
func dirKey(prefix string) string {
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}

func (s *S3Provider) List(ctx context.Context, prefix string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	dir := dirKey(prefix)
	var entries []Entry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// folder markers list themselves under their own prefix
			if key == dir || strings.HasSuffix(key, "/") {
				continue
			}
			entries = append(entries, Entry{
				Name:         path.Base(key),
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return entries, nil
}

func (s *S3Provider) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	dir := dirKey(prefix)
	var folders []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list folders %q: %w", prefix, err)
		}

		for _, cp := range page.CommonPrefixes {
			sub := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			folders = append(folders, path.Base(sub))
		}
	}

	return folders, nil
}

func (s *S3Provider) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}

	return nil
}

func (s *S3Provider) Download(ctx context.Context, key, localPath string) error {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("get %q: %w", key, err)
	}
	defer resp.Body.Close()

	return WriteFileAtomic(localPath, resp.Body)
}

func (s *S3Provider) CreateFolder(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	// a zero-byte marker object; re-putting it is a no-op, so the call
	// is idempotent
	key := dirKey(prefix)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return fmt.Errorf("create folder %q: %w", prefix, err)
	}

	return nil
}

func (s *S3Provider) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	return nil
}

func (s *S3Provider) ReadText(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read text %q: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read text body %q: %w", key, err)
	}

	return string(data), nil
}

func (s *S3Provider) WriteText(ctx context.Context, key, content string) error {
	ctx, cancel := context.WithTimeout(ctx, metaCallTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          strings.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return fmt.Errorf("write text %q: %w", key, err)
	}

	return nil
}

// WriteFileAtomic streams body into path via a temp file in the same
// directory, so a failed transfer leaves either nothing or the previous
// complete version at path, never a truncated file.
func WriteFileAtomic(path string, body io.Reader) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure parent: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".psync.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := io.Copy(tempFile, body); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file to %q: %w", path, err)
	}

	success = true
	return nil
}

var _ Provider = (*S3Provider)(nil)
