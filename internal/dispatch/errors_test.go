package dispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"catmcp/internal/domain"
)

func TestClassify_ExplicitTagWins(t *testing.T) {
	// The message alone would classify as NOT_FOUND; the tag must win.
	err := domain.E(domain.ErrorTypeConflict, "add_location", "target not found in catalog", nil)
	require.Equal(t, domain.ErrorTypeConflict, Classify(err))

	wrapped := fmt.Errorf("outer: %w", domain.E(domain.ErrorTypeRateLimit, "op", "slow down", nil))
	require.Equal(t, domain.ErrorTypeRateLimit, Classify(wrapped))
}

func TestClassify_Heuristics(t *testing.T) {
	cases := map[string]domain.ErrorType{
		"validation failed: name is required":  domain.ErrorTypeValidation,
		"invalid entity ref":                   domain.ErrorTypeValidation,
		"request unauthorized":                 domain.ErrorTypeAuthentication,
		"forbidden by policy":                  domain.ErrorTypeAuthorization,
		"entity not found":                     domain.ErrorTypeNotFound,
		"upstream returned 404":                domain.ErrorTypeNotFound,
		"location already exists":              domain.ErrorTypeConflict,
		"rate limit exceeded":                  domain.ErrorTypeRateLimit,
		"connection refused":                   domain.ErrorTypeNetwork,
		"request timeout":                      domain.ErrorTypeNetwork,
		"backstage responded oddly":            domain.ErrorTypeBackstageAPI,
		"something else entirely went sideways": domain.ErrorTypeInternal,
	}
	for msg, want := range cases {
		require.Equal(t, want, Classify(errors.New(msg)), "message: %s", msg)
	}
}

func TestClassify_RuleOrderBreaksTies(t *testing.T) {
	// "invalid" outranks "not found" because validation is checked first.
	require.Equal(t, domain.ErrorTypeValidation, Classify(errors.New("invalid ref: entity not found")))
	require.Equal(t, domain.ErrorTypeUnknown, Classify(nil))
}

func TestFormatError_StructuredResponse(t *testing.T) {
	err := domain.E(domain.ErrorTypeNotFound, "get_entity_by_ref", "no entity for ref", nil)
	resp := FormatError(err, domain.ErrorTypeNotFound, "get_entity_by_ref", "execute", nil)

	require.Equal(t, "NOT_FOUND", resp.Error.Code)
	require.Equal(t, "404", resp.Error.Status)
	require.Equal(t, "Not Found", resp.Error.Title)
	require.Equal(t, "get_entity_by_ref", resp.Error.Metadata.Tool)
	require.Equal(t, "execute", resp.Error.Metadata.Operation)
	require.True(t, resp.Error.Metadata.Operational)
	require.NotEmpty(t, resp.Error.Metadata.Timestamp)
	require.Contains(t, resp.Error.Message, "no entity for ref")
}

func TestFormatError_MergesTaggedDetails(t *testing.T) {
	tagged := &domain.Error{
		Type:    domain.ErrorTypeBackstageAPI,
		Op:      "backstage",
		Message: "bad gateway",
		Details: map[string]any{"status": 502},
	}
	resp := FormatError(tagged, domain.ErrorTypeBackstageAPI, "get_entities", "execute",
		map[string]any{"attempt": 2})

	require.Equal(t, 502, resp.Error.Metadata.Details["status"])
	require.Equal(t, 2, resp.Error.Metadata.Details["attempt"])
}

func TestFormatError_RedactsSensitiveDetails(t *testing.T) {
	resp := FormatError(errors.New("boom"), domain.ErrorTypeInternal, "x", "execute", map[string]any{
		"apiToken":      "abc123",
		"Authorization": "Bearer abc",
		"clientSecret":  "hunter2",
		"password":      "pw",
		"sshKeyPath":    "/home/user/.ssh/id_ed25519",
		"credentialId":  "cred-9",
		"attempt":       3,
	})

	details := resp.Error.Metadata.Details
	require.Equal(t, "[REDACTED]", details["apiToken"])
	require.Equal(t, "[REDACTED]", details["Authorization"])
	require.Equal(t, "[REDACTED]", details["clientSecret"])
	require.Equal(t, "[REDACTED]", details["password"])
	require.Equal(t, "[REDACTED]", details["sshKeyPath"])
	require.Equal(t, "[REDACTED]", details["credentialId"])
	require.Equal(t, 3, details["attempt"])
	require.False(t, resp.Error.Metadata.Operational)
}

func TestFormatSimpleError(t *testing.T) {
	resp := FormatSimpleError(errors.New("boom"), "get_entities")
	require.Equal(t, "boom", resp.Error)
	require.Equal(t, "get_entities", resp.Tool)

	resp = FormatSimpleError(nil, "")
	require.Equal(t, "unknown error", resp.Error)
}
