package tools

import (
	"context"
	"encoding/json"

	"catmcp/internal/backstage"
	"catmcp/internal/dispatch"
	"catmcp/internal/domain"
)

// ValidateEntityTool asks the catalog to validate an entity document before
// it is registered. Validation is read-only on the catalog side.
type ValidateEntityTool struct{}

func NewValidateEntityTool() *ValidateEntityTool {
	return dispatch.Annotate(&ValidateEntityTool{}, domain.ToolMetadata{
		Name:        "validate_entity",
		Description: "Validate an entity document against the catalog's entity policies.",
		Category:    "catalog",
		Tags:        []string{"catalog", "read", "validation"},
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "required": ["entity"],
  "properties": {
    "entity": {
      "type": "object",
      "description": "The entity document to validate"
    },
    "locationRef": {
      "type": "string",
      "description": "Location reference attributed to the entity, e.g. url:https://example.com/catalog-info.yaml"
    }
  }
}`),
	})
}

type validateEntityArgs struct {
	Entity      json.RawMessage `json:"entity"`
	LocationRef string          `json:"locationRef"`
}

func (t *ValidateEntityTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params validateEntityArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	locationRef := params.LocationRef
	if locationRef == "" {
		locationRef = "url:inline"
	}
	result, err := client.ValidateEntity(ctx, backstage.Entity(params.Entity), locationRef)
	if err != nil {
		return nil, err
	}
	return result, nil
}
