// Package kms adapts AWS KMS to the vault's encrypt/decrypt primitive.
package kms

import (
	"context"
	"fmt"

	awskms "github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/traderhub/account-service/pkg/kmsclient"
)

type Encrypter struct {
	*kmsclient.KMSClient
}

func NewEncrypter(c *kmsclient.KMSClient) *Encrypter {
	return &Encrypter{c}
}

func (e *Encrypter) Encrypt(ctx context.Context, plaintext string) ([]byte, error) {
	keyID := e.KeyID()

	out, err := e.Client.Encrypt(ctx, &awskms.EncryptInput{
		KeyId:     &keyID,
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return nil, fmt.Errorf("Encrypter - Encrypt - e.Client.Encrypt: %w", err)
	}

	return out.CiphertextBlob, nil
}

func (e *Encrypter) Decrypt(ctx context.Context, ciphertext []byte) (string, error) {
	out, err := e.Client.Decrypt(ctx, &awskms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return "", fmt.Errorf("Encrypter - Decrypt - e.Client.Decrypt: %w", err)
	}

	return string(out.Plaintext), nil
}
