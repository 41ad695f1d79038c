package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/pkg/s3client"
)

const (
	_uploadExpiry  = 15 * time.Minute
	_maxUploadSize = 5_000_000 // 5 MB
)

// S3UploadSigner issues presigned POST authorizations for direct browser
// uploads. The object's metadata ties the upload back to the account
// attribute so the completion event can route it.
type S3UploadSigner struct {
	presigner *s3.PresignClient
	bucket    string
}

func NewS3UploadSigner(s3c *s3client.S3Client, bucket string) *S3UploadSigner {
	return &S3UploadSigner{
		presigner: s3.NewPresignClient(s3c.Client),
		bucket:    bucket,
	}
}

func (s *S3UploadSigner) Sign(ctx context.Context, userID, key string) (*dto.SignedUpload, error) {
	objectKey := fmt.Sprintf("%s-%s", userID, uuid.NewString())

	req, err := s.presigner.PresignPostObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, func(o *s3.PresignPostOptions) {
		o.Expires = _uploadExpiry
		o.Conditions = []interface{}{
			[]interface{}{"starts-with", "$Content-Type", "image/"},
			[]interface{}{"content-length-range", 0, _maxUploadSize},
			map[string]string{"acl": "public-read"},
			map[string]string{"x-amz-meta-userid": userID},
			map[string]string{"x-amz-meta-key": key},
		}
	})
	if err != nil {
		return nil, fmt.Errorf("S3UploadSigner - Sign - s.presigner.PresignPostObject: %w", err)
	}

	fields := make(map[string]string, len(req.Values)+3)
	for k, v := range req.Values {
		fields[k] = v
	}
	fields["acl"] = "public-read"
	fields["x-amz-meta-userid"] = userID
	fields["x-amz-meta-key"] = key

	return &dto.SignedUpload{URL: req.URL, Fields: fields}, nil
}
