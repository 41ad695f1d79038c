package persistent

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	// register decoders for Probe
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/traderhub/account-service/pkg/s3client"
)

// FileStore saves derivative images to the public bucket and reads
// originals back by their public URL.
type FileStore struct {
	*s3client.S3Client
	bucket     string
	publicBase string
	httpClient *http.Client
}

func NewFileStore(s3c *s3client.S3Client, bucket, publicBase string) *FileStore {
	return &FileStore{s3c, bucket, publicBase, http.DefaultClient}
}

func (r *FileStore) Save(ctx context.Context, data []byte, path string) (string, error) {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(http.DetectContentType(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("FileStore - Save - r.Client.PutObject: %w", err)
	}

	return fmt.Sprintf("%s/%s", r.publicBase, path), nil
}

func (r *FileStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("FileStore - Fetch - http.NewRequestWithContext: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FileStore - Fetch - r.httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FileStore - Fetch - unexpected status %d for %s", resp.StatusCode, url)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("FileStore - Fetch - io.ReadAll: %w", err)
	}

	return b, nil
}

// Probe reads pixel dimensions from the image header without downloading
// the full body; the connection is dropped once DecodeConfig has enough.
func (r *FileStore) Probe(ctx context.Context, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("FileStore - Probe - http.NewRequestWithContext: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("FileStore - Probe - r.httpClient.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("FileStore - Probe - unexpected status %d for %s", resp.StatusCode, url)
	}

	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("FileStore - Probe - image.DecodeConfig: %w", err)
	}

	return cfg.Width, cfg.Height, nil
}
