package accountdata

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
)

// Image attributes are stored flattened: one row per property, keyed
// "{attribute}-{variant}-{property}" where variant is a size name or "orig".

const _origVariant = "orig"

func imageRootKey(key, size string) string {
	if size == "" {
		size = _origVariant
	}

	return key + "-" + size
}

func imageMetaKeys(rootKey string) []string {
	return []string{rootKey + "-url", rootKey + "-width", rootKey + "-height"}
}

func serializeImage(key, size string, data entity.ImageData) map[string]string {
	rootKey := imageRootKey(key, size)

	return map[string]string{
		rootKey + "-url":    data.URL,
		rootKey + "-width":  strconv.Itoa(data.Width),
		rootKey + "-height": strconv.Itoa(data.Height),
	}
}

// deserializeImage rebuilds an ImageData from flattened rows. Returns nil
// when neither the requested variant nor the original has a URL.
func deserializeImage(rows map[string]string, req dto.KeyRequest) *entity.ImageData {
	variant := readImageVariant(rows, imageRootKey(req.Key, req.Size))

	if req.Size == "" {
		return variant
	}

	orig := readImageVariant(rows, imageRootKey(req.Key, ""))
	if variant == nil && orig == nil {
		return nil
	}

	if variant == nil {
		variant = &entity.ImageData{}
	}
	variant.Size = req.Size
	variant.Orig = orig

	return variant
}

func readImageVariant(rows map[string]string, rootKey string) *entity.ImageData {
	imageURL, ok := rows[rootKey+"-url"]
	if !ok || imageURL == "" {
		return nil
	}

	width, _ := strconv.Atoi(rows[rootKey+"-width"])
	height, _ := strconv.Atoi(rows[rootKey+"-height"])

	return &entity.ImageData{URL: imageURL, Width: width, Height: height}
}

// derivativePath derives the storage path for a resized variant from the
// original's URL: "avatars/u1.png" at 150x150 becomes "avatars/u1-150x150.png".
func derivativePath(origURL string, width, height int) (string, string, error) {
	u, err := url.Parse(origURL)
	if err != nil {
		return "", "", fmt.Errorf("derivativePath - url.Parse: %w", err)
	}

	objectPath := strings.TrimPrefix(u.Path, "/")
	ext := path.Ext(objectPath)
	base := strings.TrimSuffix(objectPath, ext)

	return fmt.Sprintf("%s-%dx%d%s", base, width, height, ext), ext, nil
}
