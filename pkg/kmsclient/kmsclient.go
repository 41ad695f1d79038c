package kmsclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultRegion       = "us-east-1"
)

type KMSClient struct {
	connAttempts int
	connTimeout  time.Duration

	region    string
	accessKey string
	secretKey string
	keyID     string

	Client *kms.Client
}

func New(ctx context.Context, keyID, accessKey, secretKey string, opts ...Option) (*KMSClient, error) {
	c := &KMSClient{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		region:       _defaultRegion,
		accessKey:    accessKey,
		secretKey:    secretKey,
		keyID:        keyID,
	}

	for _, opt := range opts {
		opt(c)
	}

	var err error
	for c.connAttempts > 0 {
		err = c.connect(ctx)
		if err == nil {
			break
		}

		log.Printf("KMS is trying to connect, attempts left: %d", c.connAttempts)

		time.Sleep(c.connTimeout)

		c.connAttempts--
	}

	if err != nil {
		return nil, fmt.Errorf("KMSClient - New - connAttempts == 0: %w", err)
	}

	return c, nil
}

// KeyID returns the customer master key the client was configured with.
func (c *KMSClient) KeyID() string {
	return c.keyID
}

func (c *KMSClient) connect(ctx context.Context) error {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(c.region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.accessKey, c.secretKey, ""),
		),
	)
	if err != nil {
		return fmt.Errorf("KMSClient - config.LoadDefaultConfig: %w", err)
	}

	c.Client = kms.NewFromConfig(cfg)

	// check key is reachable
	_, err = c.Client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: &c.keyID})
	if err != nil {
		return fmt.Errorf("KMSClient - c.Client.DescribeKey: %w", err)
	}

	return nil
}
