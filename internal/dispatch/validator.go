package dispatch

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// Validator enforces the metadata contract before registration.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{logger: logger.Named("validator")}
}

// Validate checks metadata against the contract. Failures are logged against
// sourceLabel and returned as a VALIDATION-tagged error; the loader treats
// that as skip, not abort. A parameter schema that parses but is not a
// structural object is accepted; it only degrades the manifest entry.
func (v *Validator) Validate(meta domain.ToolMetadata, sourceLabel string) error {
	var problems []string
	if strings.TrimSpace(meta.Name) == "" {
		problems = append(problems, "name must be a non-empty string")
	}
	if strings.TrimSpace(meta.Description) == "" {
		problems = append(problems, "description must be a non-empty string")
	}
	if meta.MaxBatchSize < 0 {
		problems = append(problems, "maxBatchSize must be > 0 when set")
	}
	if len(meta.ParamSchema) > 0 && !json.Valid(meta.ParamSchema) {
		problems = append(problems, "paramSchema must be valid JSON")
	}

	if len(problems) == 0 {
		return nil
	}

	v.logger.Warn("tool metadata invalid",
		zap.String("source", sourceLabel),
		zap.Strings("problems", problems),
	)
	return domain.E(domain.ErrorTypeValidation, "validate",
		"invalid metadata for "+sourceLabel+": "+strings.Join(problems, "; "), nil)
}
