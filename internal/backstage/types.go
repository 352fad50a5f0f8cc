package backstage

import "encoding/json"

// Entity is an opaque catalog entity document. The dispatch layer and tools
// pass entities through without modeling the catalog schema.
type Entity = json.RawMessage

// EntityQuery narrows a catalog entity listing.
type EntityQuery struct {
	// Filters use the catalog filter syntax, e.g. "kind=component".
	Filters []string
	// Fields trims the returned entity documents to the named fields.
	Fields []string
	Limit  int
	Offset int
}

// QueryRequest is a full-text entity search.
type QueryRequest struct {
	FullTextTerm string
	Filters      []string
	Limit        int
	Cursor       string
}

// QueryResult pages through matched entities.
type QueryResult struct {
	Items      []Entity `json:"items"`
	TotalItems int      `json:"totalItems"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

// LocationSpec declares a catalog location to register.
type LocationSpec struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// Location is a registered catalog location.
type Location struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target"`
}

// LocationResponse is the add-location result, including the entities the
// location resolved to.
type LocationResponse struct {
	Location Location `json:"location"`
	Entities []Entity `json:"entities"`
}

// ValidationResult reports catalog-side entity validation.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
