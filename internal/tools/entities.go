package tools

import (
	"context"
	"encoding/json"

	"catmcp/internal/backstage"
	"catmcp/internal/dispatch"
	"catmcp/internal/domain"
)

// GetEntitiesTool lists catalog entities with optional filters and paging.
type GetEntitiesTool struct{}

func NewGetEntitiesTool() *GetEntitiesTool {
	return dispatch.Annotate(&GetEntitiesTool{}, domain.ToolMetadata{
		Name:        "get_entities",
		Description: "List software catalog entities, optionally narrowed by catalog filters.",
		Category:    "catalog",
		Tags:        []string{"catalog", "read"},
		Cacheable:   true,
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "filters": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Catalog filter expressions, e.g. kind=component"
    },
    "fields": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Entity fields to include in the response"
    },
    "limit": {"type": "integer", "minimum": 1},
    "offset": {"type": "integer", "minimum": 0}
  }
}`),
	})
}

type getEntitiesArgs struct {
	Filters []string `json:"filters"`
	Fields  []string `json:"fields"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

func (t *GetEntitiesTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params getEntitiesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	entities, err := client.GetEntities(ctx, backstage.EntityQuery{
		Filters: params.Filters,
		Fields:  params.Fields,
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"entities": entities,
		"count":    len(entities),
	}, nil
}

// GetEntityByRefTool fetches one entity by reference. Lookups coalesce into
// batches because agents commonly fan out over many refs at once.
type GetEntityByRefTool struct{}

func NewGetEntityByRefTool() *GetEntityByRefTool {
	return dispatch.Annotate(&GetEntityByRefTool{}, domain.ToolMetadata{
		Name:         "get_entity_by_ref",
		Description:  "Fetch a single catalog entity by its kind:namespace/name reference.",
		Category:     "catalog",
		Tags:         []string{"catalog", "read"},
		Cacheable:    true,
		MaxBatchSize: 8,
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "required": ["ref"],
  "properties": {
    "ref": {
      "type": "string",
      "description": "Entity reference, e.g. component:default/payments-service"
    }
  }
}`),
	})
}

type getEntityByRefArgs struct {
	Ref string `json:"ref"`
}

func (t *GetEntityByRefTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params getEntityByRefArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	entity, err := client.GetEntityByRef(ctx, params.Ref)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entity": entity}, nil
}

// SearchEntitiesTool runs a paged full-text search over the catalog.
type SearchEntitiesTool struct{}

func NewSearchEntitiesTool() *SearchEntitiesTool {
	return dispatch.Annotate(&SearchEntitiesTool{}, domain.ToolMetadata{
		Name:        "search_entities",
		Description: "Full-text search over catalog entities with cursor-based paging.",
		Category:    "catalog",
		Tags:        []string{"catalog", "read", "search"},
		Cacheable:   true,
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "required": ["term"],
  "properties": {
    "term": {"type": "string", "description": "Full-text search term"},
    "filters": {"type": "array", "items": {"type": "string"}},
    "limit": {"type": "integer", "minimum": 1},
    "cursor": {"type": "string"}
  }
}`),
	})
}

type searchEntitiesArgs struct {
	Term    string   `json:"term"`
	Filters []string `json:"filters"`
	Limit   int      `json:"limit"`
	Cursor  string   `json:"cursor"`
}

func (t *SearchEntitiesTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params searchEntitiesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if params.Term == "" {
		return nil, domain.E(domain.ErrorTypeValidation, "search_entities", "term is required", nil)
	}
	result, err := client.QueryEntities(ctx, backstage.QueryRequest{
		FullTextTerm: params.Term,
		Filters:      params.Filters,
		Limit:        params.Limit,
		Cursor:       params.Cursor,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveEntityTool deletes an entity by uid. Destructive: scoped and gated
// behind confirmation.
type RemoveEntityTool struct{}

func NewRemoveEntityTool() *RemoveEntityTool {
	return dispatch.Annotate(&RemoveEntityTool{}, domain.ToolMetadata{
		Name:                 "remove_entity",
		Description:          "Permanently remove a catalog entity by its metadata.uid.",
		Category:             "catalog",
		Tags:                 []string{"catalog", "write", "destructive"},
		RequiresConfirmation: true,
		RequiredScopes:       []string{"catalog.entity.delete"},
		ParamSchema: json.RawMessage(`{
  "type": "object",
  "required": ["uid"],
  "properties": {
    "uid": {"type": "string", "description": "The entity's metadata.uid"}
  }
}`),
	})
}

type removeEntityArgs struct {
	UID string `json:"uid"`
}

func (t *RemoveEntityTool) Execute(ctx context.Context, args json.RawMessage, ec *domain.ExecContext) (any, error) {
	client, err := clientFrom(ec)
	if err != nil {
		return nil, err
	}
	var params removeEntityArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if err := client.RemoveEntityByUID(ctx, params.UID); err != nil {
		return nil, err
	}
	return map[string]any{"removed": true, "uid": params.UID}, nil
}

// decodeArgs parses tool arguments strictly so unknown fields surface as
// validation errors instead of being silently dropped.
func decodeArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return domain.E(domain.ErrorTypeValidation, "decode", "invalid arguments", err)
	}
	return nil
}
