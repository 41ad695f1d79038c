// Package registry holds the static attribute configuration: which account
// attribute keys exist, their type and, for images, the derived sizes.
package registry

import "github.com/traderhub/account-service/internal/entity"

type Registry struct {
	defs map[string]entity.AttributeDefinition
	keys []string
}

// New builds a registry from definitions. Callers must not mutate defs
// afterwards.
func New(defs ...entity.AttributeDefinition) *Registry {
	r := &Registry{
		defs: make(map[string]entity.AttributeDefinition, len(defs)),
		keys: make([]string, 0, len(defs)),
	}

	for _, def := range defs {
		r.defs[def.Key] = def
		r.keys = append(r.keys, def.Key)
	}

	return r
}

// Default is the production attribute set.
func Default() *Registry {
	return New(
		entity.AttributeDefinition{
			Key:  "bio",
			Type: entity.TypeString,
		},
		entity.AttributeDefinition{
			Key:  "website",
			Type: entity.TypeURL,
		},
		entity.AttributeDefinition{
			Key:  "profilePhoto",
			Type: entity.TypeImage,
			Sizes: map[string]entity.ImageSize{
				"thumbnail": {Width: 150, Height: 150, Cropped: true},
				"medium":    {Width: 300, Height: 300, Cropped: true},
			},
		},
	)
}

// DefinitionOf -.
func (r *Registry) DefinitionOf(key string) (entity.AttributeDefinition, bool) {
	def, ok := r.defs[key]
	return def, ok
}

// Keys returns all registered keys in declaration order.
func (r *Registry) Keys() []string {
	return r.keys
}

// KeysOfType -.
func (r *Registry) KeysOfType(t entity.AttributeType) []string {
	var keys []string
	for _, key := range r.keys {
		if r.defs[key].Type == t {
			keys = append(keys, key)
		}
	}

	return keys
}
