package entity

// ImageData is the logical image derivative composed from the composite
// `{key}-{size}-{url|width|height}` rows. Orig is attached when a sized
// derivative was requested.
type ImageData struct {
	URL    string     `json:"url"`
	Width  int        `json:"width"`
	Height int        `json:"height"`
	Size   string     `json:"size,omitempty"`
	Orig   *ImageData `json:"orig,omitempty"`
}
