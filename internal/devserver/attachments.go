package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nhle/labordesk/internal/model"
)

// uploadsPrefix is the URL path under which attachments are served.
const uploadsPrefix = "/uploads/"

// ErrAttachmentNotFound is returned by Open for an unknown object.
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentStore persists uploaded files.
type AttachmentStore interface {
	// Save stores r under name. The public path is built from name.
	Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error

	// Open returns the stored object. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// objectName returns a collision-free object name that keeps the
// original file's base name for readability.
func objectName(filename string) string {
	base := filepath.Base(filename)
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "" {
		base = "file"
	}
	return uuid.NewString() + "-" + base
}

// attachmentPath is the server-relative path stored on the notification.
func attachmentPath(name string) string {
	return uploadsPrefix + name
}

// LocalAttachments stores uploads in a directory on disk.
type LocalAttachments struct {
	dir string
}

// NewLocalAttachments creates dir if needed.
func NewLocalAttachments(dir string) (*LocalAttachments, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalAttachments{dir: dir}, nil
}

func (l *LocalAttachments) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == ".." {
		return "", fmt.Errorf("invalid attachment name %q", name)
	}
	return filepath.Join(l.dir, name), nil
}

func (l *LocalAttachments) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	p, err := l.path(name)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("creating attachment file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("writing attachment: %w", err)
	}
	return f.Close()
}

func (l *LocalAttachments) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := l.path(name)
	if err != nil {
		return nil, ErrAttachmentNotFound
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening attachment: %w", err)
	}
	return f, nil
}

// MinIOAttachments stores uploads in an S3-compatible bucket.
type MinIOAttachments struct {
	client *minio.Client
	bucket string
}

// NewMinIOAttachments connects to the configured endpoint and creates the
// bucket when it does not exist yet.
func NewMinIOAttachments(ctx context.Context, cfg model.MinIOConfig) (*MinIOAttachments, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOAttachments{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOAttachments) Save(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return nil
}

func (m *MinIOAttachments) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, name, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting attachment: %w", err)
	}
	return obj, nil
}
