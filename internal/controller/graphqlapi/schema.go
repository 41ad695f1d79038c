package graphqlapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/traderhub/account-service/internal/dto"
	"github.com/traderhub/account-service/internal/entity"
	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/internal/registry"
	"github.com/traderhub/account-service/internal/usecase"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/traderhub/account-service/pkg/types/errs"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// resolver bundles the usecases the schema resolves against.
type resolver struct {
	registry *registry.Registry
	data     usecase.AccountDataUseCase
	keys     usecase.ExchangeKeysUseCase
	sign     usecase.SignUploadUseCase
	ids      infrastructure.IdentityProvider
	logger   logger.Interface
}

// NewSchema builds the GraphQL schema. User attribute fields are generated
// from the registry, so adding an attribute definition extends the API
// without schema edits here.
func NewSchema(
	reg *registry.Registry,
	data usecase.AccountDataUseCase,
	keys usecase.ExchangeKeysUseCase,
	sign usecase.SignUploadUseCase,
	ids infrastructure.IdentityProvider,
	l logger.Interface,
) (graphql.Schema, error) {
	r := &resolver{registry: reg, data: data, keys: keys, sign: sign, ids: ids, logger: l}

	imageType := newImageType()
	userType := r.newUserType(imageType)
	exchangeKeyType := newExchangeKeyType()
	signedUploadType := newSignedUploadType()

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"getUsers": &graphql.Field{
				Type: graphql.NewList(userType),
				Args: graphql.FieldConfigArgument{
					"ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String)))},
				},
				Resolve: r.getUsers,
			},
			"getUserByUsername": &graphql.Field{
				Type: userType,
				Args: graphql.FieldConfigArgument{
					"username": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.getUserByUsername,
			},
			"getExchangeKeys": &graphql.Field{
				Type: graphql.NewList(exchangeKeyType),
				Args: graphql.FieldConfigArgument{
					"userId":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"exchangeIds": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
				},
				Resolve: r.getExchangeKeys,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"updateUser": &graphql.Field{
				Type:    userType,
				Args:    r.updateUserArgs(),
				Resolve: r.updateUser,
			},
			"addExchangeKeys": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"userId":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"exchangeId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"token":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"secret":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.addExchangeKeys,
			},
			"deleteExchangeKeys": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"userId":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"exchangeId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.deleteExchangeKeys,
			},
			"signUpload": &graphql.Field{
				Type: signedUploadType,
				Args: graphql.FieldConfigArgument{
					"userId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"key":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.signUpload,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func newImageType() *graphql.Object {
	imageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Image",
		Fields: graphql.Fields{
			"url":    &graphql.Field{Type: graphql.String},
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
			"size":   &graphql.Field{Type: graphql.String},
		},
	})
	imageType.AddFieldConfig("orig", &graphql.Field{Type: imageType})

	return imageType
}

func (r *resolver) newUserType(imageType *graphql.Object) *graphql.Object {
	userType := graphql.NewObject(graphql.ObjectConfig{
		Name: "User",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String, Resolve: identityField(func(u *entity.UserIdentity) any { return u.ID })},
			"username": &graphql.Field{Type: graphql.String, Resolve: identityField(func(u *entity.UserIdentity) any { return u.Username })},
			"email":    &graphql.Field{Type: graphql.String, Resolve: identityField(func(u *entity.UserIdentity) any { return u.Email })},
			"roles":    &graphql.Field{Type: graphql.NewList(graphql.String), Resolve: identityField(func(u *entity.UserIdentity) any { return u.Roles })},
		},
	})

	for _, key := range r.registry.Keys() {
		def, _ := r.registry.DefinitionOf(key)

		switch def.Type {
		case entity.TypeString, entity.TypeURL:
			userType.AddFieldConfig(key, &graphql.Field{
				Type:    graphql.String,
				Resolve: r.attributeField(key),
			})
		case entity.TypeImage:
			field := &graphql.Field{
				Type:    imageType,
				Resolve: r.attributeField(key),
			}
			if len(def.Sizes) > 0 {
				field.Args = graphql.FieldConfigArgument{
					"size": &graphql.ArgumentConfig{Type: newSizeEnum(key, def)},
				}
			}
			userType.AddFieldConfig(key, field)
		}
	}

	return userType
}

func newSizeEnum(key string, def entity.AttributeDefinition) *graphql.Enum {
	names := make([]string, 0, len(def.Sizes))
	for name := range def.Sizes {
		names = append(names, name)
	}
	sort.Strings(names)

	values := graphql.EnumValueConfigMap{}
	for _, name := range names {
		values[name] = &graphql.EnumValueConfig{Value: name}
	}

	return graphql.NewEnum(graphql.EnumConfig{
		Name:   strings.ToUpper(key[:1]) + key[1:] + "Size",
		Values: values,
	})
}

func newExchangeKeyType() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "ExchangeKey",
		Fields: graphql.Fields{
			"exchangeId": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return p.Source.(entity.ExchangeKey).ExchangeID, nil
				},
			},
			"tokenLast4":  &graphql.Field{Type: graphql.String},
			"secretLast4": &graphql.Field{Type: graphql.String},
			"token":       &graphql.Field{Type: graphql.String},
			"secret":      &graphql.Field{Type: graphql.String},
		},
	})
}

func newSignedUploadType() *graphql.Object {
	uploadFieldType := graphql.NewObject(graphql.ObjectConfig{
		Name: "UploadField",
		Fields: graphql.Fields{
			"name":  &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: graphql.String},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "SignedUpload",
		Fields: graphql.Fields{
			"url": &graphql.Field{Type: graphql.String},
			"fields": &graphql.Field{
				Type: graphql.NewList(uploadFieldType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					signed, ok := p.Source.(*dto.SignedUpload)
					if !ok {
						return nil, nil
					}

					names := make([]string, 0, len(signed.Fields))
					for name := range signed.Fields {
						names = append(names, name)
					}
					sort.Strings(names)

					fields := make([]map[string]string, 0, len(names))
					for _, name := range names {
						fields = append(fields, map[string]string{"name": name, "value": signed.Fields[name]})
					}

					return fields, nil
				},
			},
		},
	})
}

// userNode carries a resolved identity together with the attribute values
// prefetched for the fields the query selected on it.
type userNode struct {
	identity *entity.UserIdentity
	attrs    map[string]any
}

func identityField(pick func(*entity.UserIdentity) any) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		node, ok := p.Source.(*userNode)
		if !ok || node == nil {
			return nil, nil
		}

		return pick(node.identity), nil
	}
}

// attributeField serves one attribute of the source user from the values
// loaded up front for the whole user set.
func (r *resolver) attributeField(key string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		node, ok := p.Source.(*userNode)
		if !ok || node == nil {
			return nil, nil
		}

		size, _ := p.Args["size"].(string)
		if value, ok := node.attrs[attrKey(key, size)]; ok {
			return value, nil
		}

		return nil, nil
	}
}

func attrKey(key, size string) string {
	return key + "\x00" + size
}

func (r *resolver) getUsers(p graphql.ResolveParams) (any, error) {
	rawIDs, _ := p.Args["ids"].([]any)

	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, _ := raw.(string)
		ids = append(ids, id)
	}

	identities, err := r.ids.GetUsers(p.Context, ids)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - getUsers")
	}

	nodes, err := r.loadAttributes(p, identities)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - getUsers")
	}

	return nodes, nil
}

func (r *resolver) getUserByUsername(p graphql.ResolveParams) (any, error) {
	username, _ := p.Args["username"].(string)

	identity, err := r.ids.GetByUsername(p.Context, username)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - getUserByUsername")
	}
	if identity == nil {
		return nil, nil
	}

	nodes, err := r.loadAttributes(p, []*entity.UserIdentity{identity})
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - getUserByUsername")
	}

	return nodes[0], nil
}

// loadAttributes fetches every attribute the query selected on the user
// field in one account-data call per user set, instead of one call per
// field per user. Rounds are only split when the same attribute is
// selected under aliases with different sizes, since a single request
// keys results by attribute.
func (r *resolver) loadAttributes(p graphql.ResolveParams, identities []*entity.UserIdentity) ([]*userNode, error) {
	nodes := make([]*userNode, len(identities))
	for i, identity := range identities {
		if identity == nil {
			continue
		}
		nodes[i] = &userNode{identity: identity, attrs: map[string]any{}}
	}

	selections := r.attributeSelections(p)
	if len(selections) == 0 {
		return nodes, nil
	}

	for _, round := range splitConflictingKeys(selections) {
		reqs := make([]dto.UserKeysRequest, 0, len(nodes))
		for _, node := range nodes {
			if node == nil {
				continue
			}
			reqs = append(reqs, dto.UserKeysRequest{UserID: node.identity.ID, Keys: round})
		}
		if len(reqs) == 0 {
			return nodes, nil
		}

		results, err := r.data.Get(p.Context, reqs)
		if err != nil {
			return nil, err
		}

		byUser := make(map[string]map[string]any, len(results))
		for _, res := range results {
			byUser[res.UserID] = res.Data
		}

		for _, node := range nodes {
			if node == nil {
				continue
			}
			for _, kr := range round {
				if value, ok := byUser[node.identity.ID][kr.Key]; ok {
					node.attrs[attrKey(kr.Key, kr.Size)] = value
				}
			}
		}
	}

	return nodes, nil
}

// attributeSelections walks the selection set under the resolved user field
// and collects the registered attribute fields it names, with their size
// arguments.
func (r *resolver) attributeSelections(p graphql.ResolveParams) []dto.KeyRequest {
	if len(p.Info.FieldASTs) == 0 {
		return nil
	}

	var out []dto.KeyRequest
	seen := map[string]bool{}
	r.collectAttributes(p, p.Info.FieldASTs[0].GetSelectionSet(), seen, &out)

	return out
}

func (r *resolver) collectAttributes(p graphql.ResolveParams, set *ast.SelectionSet, seen map[string]bool, out *[]dto.KeyRequest) {
	if set == nil {
		return
	}

	for _, sel := range set.Selections {
		switch node := sel.(type) {
		case *ast.Field:
			key := node.Name.Value
			if _, ok := r.registry.DefinitionOf(key); !ok {
				continue
			}

			size := sizeArgument(p, node)
			if seen[attrKey(key, size)] {
				continue
			}
			seen[attrKey(key, size)] = true
			*out = append(*out, dto.KeyRequest{Key: key, Size: size})
		case *ast.InlineFragment:
			r.collectAttributes(p, node.SelectionSet, seen, out)
		case *ast.FragmentSpread:
			if frag, ok := p.Info.Fragments[node.Name.Value].(*ast.FragmentDefinition); ok {
				r.collectAttributes(p, frag.GetSelectionSet(), seen, out)
			}
		}
	}
}

func sizeArgument(p graphql.ResolveParams, field *ast.Field) string {
	for _, arg := range field.Arguments {
		if arg.Name.Value != "size" {
			continue
		}

		switch value := arg.Value.(type) {
		case *ast.EnumValue:
			return value.Value
		case *ast.Variable:
			if size, ok := p.Info.VariableValues[value.Name.Value].(string); ok {
				return size
			}
		}
	}

	return ""
}

// splitConflictingKeys partitions selections so that no round repeats an
// attribute key. One round in the common case.
func splitConflictingKeys(selections []dto.KeyRequest) [][]dto.KeyRequest {
	var rounds [][]dto.KeyRequest

next:
	for _, kr := range selections {
		for i := range rounds {
			conflict := false
			for _, placed := range rounds[i] {
				if placed.Key == kr.Key {
					conflict = true
					break
				}
			}
			if !conflict {
				rounds[i] = append(rounds[i], kr)
				continue next
			}
		}
		rounds = append(rounds, []dto.KeyRequest{kr})
	}

	return rounds
}

func (r *resolver) updateUserArgs() graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	for _, key := range r.registry.Keys() {
		def, _ := r.registry.DefinitionOf(key)
		if def.Type == entity.TypeString || def.Type == entity.TypeURL {
			args[key] = &graphql.ArgumentConfig{Type: graphql.String}
		}
	}

	return args
}

func (r *resolver) updateUser(p graphql.ResolveParams) (any, error) {
	userID, _ := p.Args["id"].(string)

	data := map[string]string{}
	for key, raw := range p.Args {
		if key == "id" {
			continue
		}
		if value, ok := raw.(string); ok {
			data[key] = value
		}
	}

	err := r.data.Update(p.Context, principalFrom(p.Context), userID, data)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - updateUser")
	}

	identities, err := r.ids.GetUsers(p.Context, []string{userID})
	if err != nil || len(identities) == 0 {
		return nil, nil
	}

	nodes, err := r.loadAttributes(p, identities)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - updateUser")
	}

	return nodes[0], nil
}

func (r *resolver) getExchangeKeys(p graphql.ResolveParams) (any, error) {
	userID, _ := p.Args["userId"].(string)

	var exchangeIDs []string
	if rawIDs, ok := p.Args["exchangeIds"].([]any); ok {
		for _, raw := range rawIDs {
			if id, ok := raw.(string); ok {
				exchangeIDs = append(exchangeIDs, id)
			}
		}
	}

	keys, err := r.keys.Get(p.Context, principalFrom(p.Context), userID, exchangeIDs)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - getExchangeKeys")
	}

	return keys, nil
}

func (r *resolver) addExchangeKeys(p graphql.ResolveParams) (any, error) {
	input := dto.AddExchangeKeysInput{
		UserID:     p.Args["userId"].(string),
		ExchangeID: p.Args["exchangeId"].(string),
		Token:      p.Args["token"].(string),
		Secret:     p.Args["secret"].(string),
	}

	err := r.keys.Add(p.Context, principalFrom(p.Context), input)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - addExchangeKeys")
	}

	return true, nil
}

func (r *resolver) deleteExchangeKeys(p graphql.ResolveParams) (any, error) {
	userID, _ := p.Args["userId"].(string)
	exchangeID, _ := p.Args["exchangeId"].(string)

	err := r.keys.Delete(p.Context, principalFrom(p.Context), userID, exchangeID)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - deleteExchangeKeys")
	}

	return true, nil
}

func (r *resolver) signUpload(p graphql.ResolveParams) (any, error) {
	userID, _ := p.Args["userId"].(string)
	key, _ := p.Args["key"].(string)

	signed, err := r.sign.Sign(p.Context, principalFrom(p.Context), userID, key)
	if err != nil {
		return nil, r.publicError(err, "graphqlapi - signUpload")
	}

	return signed, nil
}

// publicError maps usecase errors onto messages safe to return to API
// callers. Anything unexpected is logged and replaced with a generic one.
func (r *resolver) publicError(err error, logContext string) error {
	var vErr *errs.ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}

	for _, known := range []error{errs.ErrPermissionDenied, errs.ErrConflict, errs.ErrRecordNotFound} {
		if errors.Is(err, known) {
			return known
		}
	}

	r.logger.Error(err, logContext)

	return fmt.Errorf("internal error")
}
