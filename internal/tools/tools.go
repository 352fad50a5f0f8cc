// Package tools holds the compiled-in catalog tool set. Each constructor
// annotates its implementation with metadata in the dispatch registry; the
// static provider and the dynamic executor table are both built from here.
package tools

import (
	"catmcp/internal/backstage"
	"catmcp/internal/dispatch"
	"catmcp/internal/domain"
)

// Set bundles every compiled-in tool.
type Set struct {
	GetEntities    *GetEntitiesTool
	GetEntityByRef *GetEntityByRefTool
	SearchEntities *SearchEntitiesTool
	AddLocation    *AddLocationTool
	GetLocations   *GetLocationsTool
	RemoveEntity   *RemoveEntityTool
	ValidateEntity *ValidateEntityTool
}

func NewSet() *Set {
	return &Set{
		GetEntities:    NewGetEntitiesTool(),
		GetEntityByRef: NewGetEntityByRefTool(),
		SearchEntities: NewSearchEntitiesTool(),
		AddLocation:    NewAddLocationTool(),
		GetLocations:   NewGetLocationsTool(),
		RemoveEntity:   NewRemoveEntityTool(),
		ValidateEntity: NewValidateEntityTool(),
	}
}

// Candidates lists the set for static discovery, in registration order.
func (s *Set) Candidates() []dispatch.Candidate {
	return []dispatch.Candidate{
		{Tool: s.GetEntities, SourceLabel: "tools.GetEntities"},
		{Tool: s.GetEntityByRef, SourceLabel: "tools.GetEntityByRef"},
		{Tool: s.SearchEntities, SourceLabel: "tools.SearchEntities"},
		{Tool: s.AddLocation, SourceLabel: "tools.AddLocation"},
		{Tool: s.GetLocations, SourceLabel: "tools.GetLocations"},
		{Tool: s.RemoveEntity, SourceLabel: "tools.RemoveEntity"},
		{Tool: s.ValidateEntity, SourceLabel: "tools.ValidateEntity"},
	}
}

// Executors exposes the set by stable executor name for descriptor-based
// dynamic discovery.
func (s *Set) Executors() map[string]domain.Tool {
	return map[string]domain.Tool{
		"get_entities":      s.GetEntities,
		"get_entity_by_ref": s.GetEntityByRef,
		"search_entities":   s.SearchEntities,
		"add_location":      s.AddLocation,
		"get_locations":     s.GetLocations,
		"remove_entity":     s.RemoveEntity,
		"validate_entity":   s.ValidateEntity,
	}
}

// clientFrom unwraps the opaque catalog handle from the execution context.
func clientFrom(ec *domain.ExecContext) (*backstage.Client, error) {
	if ec != nil {
		if client, ok := ec.Catalog.(*backstage.Client); ok && client != nil {
			return client, nil
		}
	}
	return nil, domain.E(domain.ErrorTypeInternal, "tools",
		"execution context has no catalog client", nil)
}
