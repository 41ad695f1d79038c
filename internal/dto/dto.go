package dto

// KeyRequest names one requested attribute. Size is set only for image
// attributes when a specific derivative is wanted.
type KeyRequest struct {
	Key  string
	Size string
}

// UserKeysRequest asks for a set of attributes of one user.
type UserKeysRequest struct {
	UserID string
	Keys   []KeyRequest
}

// UserData holds the merged per-user result. Values are string for scalar
// attributes and *entity.ImageData for image attributes.
type UserData struct {
	UserID string
	Data   map[string]any
}

// UserMetaKeys / UserMetaData are the raw key-value store shapes.
type UserMetaKeys struct {
	UserID string
	Keys   []string
}

type UserMetaData struct {
	UserID string
	Data   map[string]string
}

// ImageUpdate sets a new URL for an image attribute variant. Empty Size
// addresses the original.
type ImageUpdate struct {
	URL  string
	Size string
}

// AddExchangeKeysInput -.
type AddExchangeKeysInput struct {
	UserID     string
	ExchangeID string
	Token      string
	Secret     string
}

// SignedUpload is a time/size/content-type constrained direct-upload
// authorization.
type SignedUpload struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}
