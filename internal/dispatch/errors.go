package dispatch

import (
	"strings"
	"time"

	"catmcp/internal/domain"
)

// classificationRules are checked in order against the lower-cased message.
// This is explicitly a best-effort heuristic for foreign errors; errors built
// inside this process carry an explicit type tag that wins outright.
var classificationRules = []struct {
	kind     domain.ErrorType
	keywords []string
}{
	{domain.ErrorTypeValidation, []string{"validation", "invalid"}},
	{domain.ErrorTypeAuthentication, []string{"unauthorized", "authentication"}},
	{domain.ErrorTypeAuthorization, []string{"forbidden", "permission"}},
	{domain.ErrorTypeNotFound, []string{"not found", "404"}},
	{domain.ErrorTypeConflict, []string{"conflict", "already exists"}},
	{domain.ErrorTypeRateLimit, []string{"rate limit", "429"}},
	{domain.ErrorTypeNetwork, []string{"network", "timeout", "connection"}},
	{domain.ErrorTypeBackstageAPI, []string{"backstage", "api"}},
}

// Classify maps an error to its taxonomy type. A nil error classifies as
// UNKNOWN, matching the treatment of non-error panic values recovered at the
// dispatch boundary.
func Classify(err error) domain.ErrorType {
	if err == nil {
		return domain.ErrorTypeUnknown
	}
	if kind, ok := domain.TypeFrom(err); ok {
		return kind
	}
	msg := strings.ToLower(err.Error())
	for _, rule := range classificationRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(msg, keyword) {
				return rule.kind
			}
		}
	}
	return domain.ErrorTypeInternal
}

// StandardErrorResponse is the uniform error payload returned to callers.
type StandardErrorResponse struct {
	Error struct {
		Message  string            `json:"message"`
		Code     string            `json:"code"`
		Status   string            `json:"status"`
		Title    string            `json:"title"`
		Metadata ErrorResponseMeta `json:"metadata"`
	} `json:"error"`
}

// ErrorResponseMeta carries operational context alongside the error.
type ErrorResponseMeta struct {
	Tool        string         `json:"tool,omitempty"`
	Operation   string         `json:"operation,omitempty"`
	Timestamp   string         `json:"timestamp"`
	Operational bool           `json:"operational"`
	Details     map[string]any `json:"details,omitempty"`
}

// SimpleErrorResponse is the non-taxonomy variant kept for callers predating
// the structured format.
type SimpleErrorResponse struct {
	Error string `json:"error"`
	Tool  string `json:"tool,omitempty"`
}

var sensitiveDetailKeys = []string{"password", "token", "secret", "key", "authorization", "credential"}

// redactDetails copies a detail map with sensitive values masked. Matching is
// by substring on the lower-cased key.
func redactDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		lower := strings.ToLower(k)
		masked := false
		for _, sensitive := range sensitiveDetailKeys {
			if strings.Contains(lower, sensitive) {
				out[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if !masked {
			out[k] = v
		}
	}
	return out
}

// FormatError builds the standard response for a classified error.
func FormatError(err error, kind domain.ErrorType, tool, operation string, details map[string]any) StandardErrorResponse {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}

	merged := details
	var tagged *domain.Error
	if e, ok := err.(*domain.Error); ok {
		tagged = e
	}
	if tagged != nil && len(tagged.Details) > 0 {
		if merged == nil {
			merged = tagged.Details
		} else {
			combined := make(map[string]any, len(merged)+len(tagged.Details))
			for k, v := range tagged.Details {
				combined[k] = v
			}
			for k, v := range merged {
				combined[k] = v
			}
			merged = combined
		}
	}

	var resp StandardErrorResponse
	resp.Error.Message = message
	resp.Error.Code = string(kind)
	resp.Error.Status = kind.HTTPStatus()
	resp.Error.Title = kind.Title()
	resp.Error.Metadata = ErrorResponseMeta{
		Tool:        tool,
		Operation:   operation,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Operational: kind.Operational(),
		Details:     redactDetails(merged),
	}
	return resp
}

// FormatSimpleError builds the backward-compatible flat variant.
func FormatSimpleError(err error, tool string) SimpleErrorResponse {
	message := "unknown error"
	if err != nil {
		message = err.Error()
	}
	return SimpleErrorResponse{Error: message, Tool: tool}
}
