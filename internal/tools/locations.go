package tools

import (
	"context"
	"encoding/json"

	"catmcp/internal/backstage"
	"catmcp/internal/dispatch"
	"catmcp/internal/domain"
)

// AddLocationTool registers a catalog location. Registration mutates the
// catalog, so the call is gated behind confirmation unless dryRun is set.
type AddLocationTool struct{}

func NewAddLocationTool() *AddLocationTool {
	return dispatch.Annotate(&AddLocationTool{}, domain.ToolMetadata{
		Name:                 "add_location",
		Description:          "Register a catalog location (typically a catalog-info.yaml URL).",
		Category:             "catalog",
		Tags:                 []string{"catalog", "write"},
		RequiresConfirmation: true,
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "required": ["target"],
  "properties": {
    "target": {
      "type": "string",
      "description": "Location target, e.g. a catalog-info.yaml URL"
    },
    "type": {
      "type": "string",
      "description": "Location type, defaults to url"
    },
    "dryRun": {
      "type": "boolean",
      "description": "Validate the location without persisting it"
    }
  }
}`),
	})
}

type addLocationArgs struct {
	Target string `json:"target"`
	Type   string `json:"type"`
	DryRun bool   `json:"dryRun"`
}

func (t *AddLocationTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params addLocationArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	result, err := client.AddLocation(ctx, backstage.LocationSpec{
		Type:   params.Type,
		Target: params.Target,
	}, params.DryRun)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetLocationsTool lists the registered catalog locations.
type GetLocationsTool struct{}

func NewGetLocationsTool() *GetLocationsTool {
	return dispatch.Annotate(&GetLocationsTool{}, domain.ToolMetadata{
		Name:        "get_locations",
		Description: "List registered catalog locations.",
		Category:    "catalog",
		Tags:        []string{"catalog", "read"},
		Cacheable:   true,
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "properties": {}
}`),
	})
}

func (t *GetLocationsTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	locations, err := client.GetLocations(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"locations": locations,
		"count":     len(locations),
	}, nil
}
