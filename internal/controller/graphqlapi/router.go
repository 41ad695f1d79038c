package graphqlapi

import (
	"net/http"

	"github.com/traderhub/account-service/internal/infrastructure"
	"github.com/traderhub/account-service/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// NewRouter mounts the GraphQL endpoint. Authentication is resolved up
// front; authorization is enforced per operation inside the usecases.
func NewRouter(app *fiber.App, schema graphql.Schema, verifier infrastructure.AuthVerifier, l logger.Interface) {
	app.Use(newAuthMiddleware(verifier, l))

	app.Post("/graphql", func(c *fiber.Ctx) error {
		var req request
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"errors": []fiber.Map{{"message": "invalid request body"}},
			})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			OperationName:  req.OperationName,
			VariableValues: req.Variables,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	})
}
