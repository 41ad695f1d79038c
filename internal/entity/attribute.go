package entity

// AttributeType is a closed set; every switch over it must handle all three
// variants so adding a type is a compile-time change.
type AttributeType int

const (
	TypeString AttributeType = iota
	TypeURL
	TypeImage
)

func (t AttributeType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeURL:
		return "url"
	case TypeImage:
		return "image"
	}

	return "unknown"
}

// ImageSize is a named derived size of an image attribute. Cropped selects
// cover fit (crop to exactly fill the box) over inside fit.
type ImageSize struct {
	Width   int
	Height  int
	Cropped bool
}

// AttributeDefinition describes one registered account attribute. Static,
// loaded at startup, never mutated.
type AttributeDefinition struct {
	Key   string
	Type  AttributeType
	Sizes map[string]ImageSize // image type only
}
