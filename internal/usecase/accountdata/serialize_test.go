package accountdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
)

func TestImageRootKey(t *testing.T) {
	assert.Equal(t, "profilePhoto-orig", imageRootKey("profilePhoto", ""))
	assert.Equal(t, "profilePhoto-thumbnail", imageRootKey("profilePhoto", "thumbnail"))
}

func TestSerializeImage(t *testing.T) {
	rows := serializeImage("profilePhoto", "thumbnail", entity.ImageData{
		URL: "https://cdn.test/a-150x150.png", Width: 150, Height: 150,
	})

	assert.Equal(t, map[string]string{
		"profilePhoto-thumbnail-url":    "https://cdn.test/a-150x150.png",
		"profilePhoto-thumbnail-width":  "150",
		"profilePhoto-thumbnail-height": "150",
	}, rows)
}

func TestDeserializeImage_OriginalOnly(t *testing.T) {
	rows := map[string]string{
		"profilePhoto-orig-url":    "https://cdn.test/a.png",
		"profilePhoto-orig-width":  "700",
		"profilePhoto-orig-height": "500",
	}

	img := deserializeImage(rows, dto.KeyRequest{Key: "profilePhoto"})
	require.NotNil(t, img)

	assert.Equal(t, "https://cdn.test/a.png", img.URL)
	assert.Equal(t, 700, img.Width)
	assert.Equal(t, 500, img.Height)
	assert.Empty(t, img.Size)
	assert.Nil(t, img.Orig)
}

func TestDeserializeImage_SizedWithOriginal(t *testing.T) {
	rows := map[string]string{
		"profilePhoto-orig-url":         "https://cdn.test/a.png",
		"profilePhoto-orig-width":       "700",
		"profilePhoto-orig-height":      "500",
		"profilePhoto-thumbnail-url":    "https://cdn.test/a-150x150.png",
		"profilePhoto-thumbnail-width":  "150",
		"profilePhoto-thumbnail-height": "150",
	}

	img := deserializeImage(rows, dto.KeyRequest{Key: "profilePhoto", Size: "thumbnail"})
	require.NotNil(t, img)

	assert.Equal(t, "https://cdn.test/a-150x150.png", img.URL)
	assert.Equal(t, "thumbnail", img.Size)

	require.NotNil(t, img.Orig)
	assert.Equal(t, "https://cdn.test/a.png", img.Orig.URL)
}

func TestDeserializeImage_MissingDerivativeKeepsOriginal(t *testing.T) {
	rows := map[string]string{
		"profilePhoto-orig-url":    "https://cdn.test/a.png",
		"profilePhoto-orig-width":  "700",
		"profilePhoto-orig-height": "500",
	}

	img := deserializeImage(rows, dto.KeyRequest{Key: "profilePhoto", Size: "thumbnail"})
	require.NotNil(t, img)

	assert.Empty(t, img.URL)
	assert.Equal(t, "thumbnail", img.Size)
	assert.NotNil(t, img.Orig)
}

func TestDeserializeImage_NothingStored(t *testing.T) {
	img := deserializeImage(map[string]string{}, dto.KeyRequest{Key: "profilePhoto", Size: "thumbnail"})

	assert.Nil(t, img)
}

func TestDerivativePath(t *testing.T) {
	path, ext, err := derivativePath("https://cdn.test/avatars/u1.png", 150, 150)
	require.NoError(t, err)

	assert.Equal(t, "avatars/u1-150x150.png", path)
	assert.Equal(t, ".png", ext)
}

func TestDerivativePath_NoExtension(t *testing.T) {
	path, ext, err := derivativePath("https://cdn.test/avatars/u1", 300, 300)
	require.NoError(t, err)

	assert.Equal(t, "avatars/u1-300x300", path)
	assert.Equal(t, "", ext)
}
