package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/foldsync/foldsync/internal/model"
)

// MinioTransport implements Transport against any S3-compatible storage
// service. One bucket holds the remote side of every sync folder.
type MinioTransport struct {
	endpoint string
	bucket   string
	secure   bool
	client   *minio.Client
}

// MinioConfig holds the connection settings for NewMinio.
type MinioConfig struct {
	// Endpoint is the host:port of the S3-compatible service.
	Endpoint string
	// Bucket is the bucket carrying all remote objects.
	Bucket string
	// UseTLS enables HTTPS.
	UseTLS bool
}

// NewMinio creates an unauthenticated transport. Login must succeed before
// any transfer call.
func NewMinio(cfg MinioConfig) (*MinioTransport, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	return &MinioTransport{
		endpoint: cfg.Endpoint,
		bucket:   cfg.Bucket,
		secure:   cfg.UseTLS,
	}, nil
}

// Login implements Transport.Login.
//
// The username/password pair maps onto the service's access/secret keys.
// The bucket is probed so bad credentials fail here rather than on the
// first transfer. The returned token is an opaque session handle.
func (t *MinioTransport) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("username and password are required")
	}

	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if t.secure {
		tr.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client, err := minio.New(t.endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(username, password, ""),
		Secure:       t.secure,
		Transport:    tr,
		Region:       "auto",
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return "", fmt.Errorf("failed to initialize client: %w", err)
	}

	exists, err := client.BucketExists(ctx, t.bucket)
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("bucket %s does not exist", t.bucket)
	}

	t.client = client
	return uuid.NewString(), nil
}

// Logout implements Transport.Logout.
func (t *MinioTransport) Logout(ctx context.Context) error {
	t.client = nil
	return nil
}

func (t *MinioTransport) authed() (*minio.Client, error) {
	if t.client == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	return t.client, nil
}

// UploadFile implements Transport.UploadFile.
func (t *MinioTransport) UploadFile(ctx context.Context, localPath, remotePath string) error {
	client, err := t.authed()
	if err != nil {
		return err
	}

	_, err = client.FPutObject(ctx, t.bucket, objectKey(remotePath), localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	return nil
}

// DownloadFile implements Transport.DownloadFile.
func (t *MinioTransport) DownloadFile(ctx context.Context, remotePath, localPath string) error {
	client, err := t.authed()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	if err := client.FGetObject(ctx, t.bucket, objectKey(remotePath), localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	return nil
}

// DownloadFileWithProgress implements Transport.DownloadFileWithProgress.
func (t *MinioTransport) DownloadFileWithProgress(ctx context.Context, remotePath, localPath string, fn func(Progress)) error {
	if fn == nil {
		return t.DownloadFile(ctx, remotePath, localPath)
	}

	client, err := t.authed()
	if err != nil {
		return err
	}

	obj, err := client.GetObject(ctx, t.bucket, objectKey(remotePath), minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", remotePath, err)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer out.Close()

	started := time.Now()
	var done int64
	buf := make([]byte, 128*1024)
	for {
		n, readErr := obj.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("failed to write %s: %w", localPath, err)
			}
			done += int64(n)
			fn(progressAt(stat.Size, done, started))
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to download %s: %w", remotePath, readErr)
		}
	}

	return nil
}

// DeleteFile implements Transport.DeleteFile.
func (t *MinioTransport) DeleteFile(ctx context.Context, remotePath string) error {
	client, err := t.authed()
	if err != nil {
		return err
	}

	if err := client.RemoveObject(ctx, t.bucket, objectKey(remotePath), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", remotePath, err)
	}
	return nil
}

// GetChangesSince implements Transport.GetChangesSince by listing the
// bucket and filtering on LastModified. Ordered oldest first so the caller
// can checkpoint as it goes.
func (t *MinioTransport) GetChangesSince(ctx context.Context, since time.Time) ([]model.RemoteChange, error) {
	client, err := t.authed()
	if err != nil {
		return nil, err
	}

	var changes []model.RemoteChange
	for obj := range client.ListObjects(ctx, t.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list remote changes: %w", obj.Err)
		}
		if !obj.LastModified.After(since) {
			continue
		}
		changes = append(changes, model.RemoteChange{
			Path:       obj.Key,
			ModifiedAt: obj.LastModified,
		})
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].ModifiedAt.Before(changes[j].ModifiedAt)
	})

	return changes, nil
}

// progressAt builds one Progress sample.
func progressAt(total, done int64, started time.Time) Progress {
	p := Progress{
		TotalBytes:      total,
		BytesDownloaded: done,
	}
	if total > 0 {
		p.PercentComplete = float64(done) / float64(total) * 100
	}
	if elapsed := time.Since(started).Seconds(); elapsed > 0 {
		p.SpeedBytesPerSec = float64(done) / elapsed
	}
	return p
}

// objectKey normalizes a remote path into an S3 object key.
func objectKey(remotePath string) string {
	return strings.TrimPrefix(filepath.ToSlash(remotePath), "/")
}
