package signupload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/pkg/types/errs"
)

type fakeSigner struct {
	lastUserID string
	lastKey    string
}

func (f *fakeSigner) Sign(_ context.Context, userID, key string) (*dto.SignedUpload, error) {
	f.lastUserID = userID
	f.lastKey = key

	return &dto.SignedUpload{
		URL:    "https://bucket.test",
		Fields: map[string]string{"key": userID + "-obj", "acl": "public-read"},
	}, nil
}

func TestSign_OwnerGetsSignedForm(t *testing.T) {
	signer := &fakeSigner{}
	uc := New(registry.Default(), signer)

	signed, err := uc.Sign(context.Background(), entity.AuthPrincipal{ID: "u1"}, "u1", "profilePhoto")
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.test", signed.URL)
	assert.Equal(t, "u1", signer.lastUserID)
	assert.Equal(t, "profilePhoto", signer.lastKey)
}

func TestSign_NonOwnerDenied(t *testing.T) {
	uc := New(registry.Default(), &fakeSigner{})

	_, err := uc.Sign(context.Background(), entity.AuthPrincipal{ID: "u2"}, "u1", "profilePhoto")
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestSign_AnonymousDenied(t *testing.T) {
	uc := New(registry.Default(), &fakeSigner{})

	_, err := uc.Sign(context.Background(), entity.AuthPrincipal{}, "u1", "profilePhoto")
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestSign_NonImageKeyRejected(t *testing.T) {
	uc := New(registry.Default(), &fakeSigner{})

	_, err := uc.Sign(context.Background(), entity.AuthPrincipal{ID: "u1"}, "u1", "bio")
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSign_UnknownKeyRejected(t *testing.T) {
	uc := New(registry.Default(), &fakeSigner{})

	_, err := uc.Sign(context.Background(), entity.AuthPrincipal{ID: "u1"}, "u1", "avatar")
	require.Error(t, err)

	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), `"avatar" is not a registered attribute`)
}
