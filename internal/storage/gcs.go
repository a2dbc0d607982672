package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/yoockh/botdesk/internal/utils"
)

// GCSUploader writes private objects; readers get time-limited signed URLs.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	w := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", u.bucket, objectName), nil
}

func (u *GCSUploader) SignedGetURL(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	return u.client.Bucket(u.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func (u *GCSUploader) SignedPutURL(_ context.Context, objectName, contentType string, ttl time.Duration) (string, error) {
	return u.client.Bucket(u.bucket).SignedURL(objectName, &gcs.SignedURLOptions{
		Scheme:      gcs.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(ttl),
	})
}

func (u *GCSUploader) Download(ctx context.Context, objectName string, limit int64) ([]byte, error) {
	r, err := u.client.Bucket(u.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	defer r.Close()

	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("object %s exceeds %d bytes", objectName, limit)
	}
	return b, nil
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

var (
	_ Uploader     = (*GCSUploader)(nil)
	_ Signer       = (*GCSUploader)(nil)
	_ UploadSigner = (*GCSUploader)(nil)
	_ Downloader   = (*GCSUploader)(nil)
)
