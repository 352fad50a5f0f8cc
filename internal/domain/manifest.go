package domain

// ManifestEntry summarizes one registered tool for tooling and export.
// Params holds the top-level parameter names in declared schema order, or
// nil when the schema is absent or not a structural object.
type ManifestEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}
