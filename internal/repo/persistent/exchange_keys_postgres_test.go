package persistent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderhub/account-service/internal/entity"
)

type fakeEncrypter struct {
	failOn string // ciphertexts equal to this fail to decrypt
}

func (f fakeEncrypter) Encrypt(_ context.Context, plaintext string) ([]byte, error) {
	return []byte("ct:" + plaintext), nil
}

func (f fakeEncrypter) Decrypt(_ context.Context, ciphertext []byte) (string, error) {
	if f.failOn != "" && string(ciphertext) == f.failOn {
		return "", errors.New("key disabled")
	}

	return "pt:" + string(ciphertext), nil
}

type nopLogger struct{}

func (nopLogger) Debug(message interface{}, args ...interface{}) {}
func (nopLogger) Info(message string, args ...interface{})       {}
func (nopLogger) Warn(message string, args ...interface{})       {}
func (nopLogger) Error(message interface{}, args ...interface{}) {}
func (nopLogger) Fatal(message interface{}, args ...interface{}) {}

func TestAttachPlaintext_DecryptsAllRecords(t *testing.T) {
	r := NewExchangeKeysRepo(nil, fakeEncrypter{}, nopLogger{})

	keys := r.attachPlaintext(context.Background(),
		[]entity.ExchangeKey{
			{ExchangeID: "binance", TokenLast4: "1234", SecretLast4: "5678"},
			{ExchangeID: "kraken", TokenLast4: "aaaa", SecretLast4: "bbbb"},
		},
		[][2][]byte{
			{[]byte("t1"), []byte("s1")},
			{[]byte("t2"), []byte("s2")},
		},
	)
	require.Len(t, keys, 2)

	assert.Equal(t, "pt:t1", keys[0].Token)
	assert.Equal(t, "pt:s1", keys[0].Secret)
	assert.Equal(t, "pt:t2", keys[1].Token)
	assert.Equal(t, "pt:s2", keys[1].Secret)
}

func TestAttachPlaintext_FailedDecryptKeepsLast4(t *testing.T) {
	r := NewExchangeKeysRepo(nil, fakeEncrypter{failOn: "t1"}, nopLogger{})

	keys := r.attachPlaintext(context.Background(),
		[]entity.ExchangeKey{
			{ExchangeID: "binance", TokenLast4: "1234", SecretLast4: "5678"},
			{ExchangeID: "kraken", TokenLast4: "aaaa", SecretLast4: "bbbb"},
		},
		[][2][]byte{
			{[]byte("t1"), []byte("s1")},
			{[]byte("t2"), []byte("s2")},
		},
	)
	require.Len(t, keys, 2)

	// the failed field is omitted, everything else survives
	assert.Empty(t, keys[0].Token)
	assert.Equal(t, "pt:s1", keys[0].Secret)
	assert.Equal(t, "1234", keys[0].TokenLast4)
	assert.Equal(t, "5678", keys[0].SecretLast4)

	assert.Equal(t, "pt:t2", keys[1].Token)
	assert.Equal(t, "pt:s2", keys[1].Secret)
}

func TestLast4(t *testing.T) {
	assert.Equal(t, "6789", last4("123456789"))
	assert.Equal(t, "1234", last4("1234"))
	assert.Equal(t, "12", last4("12"))
	assert.Equal(t, "", last4(""))
}
