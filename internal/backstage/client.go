package backstage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"catmcp/internal/domain"
)

// TokenProvider supplies the bearer token for catalog requests. Acquisition
// and refresh mechanics live behind this interface.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider for a fixed token. An empty token means
// anonymous access.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

const defaultRequestTimeout = 30 * time.Second

// Client is a narrow HTTP client for the Backstage catalog API. It is
// injected into the tool execution context as an opaque handle; only tools
// touch it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *zap.Logger
}

type ClientOptions struct {
	BaseURL    string
	Tokens     TokenProvider
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func NewClient(opts ClientOptions) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	tokens := opts.Tokens
	if tokens == nil {
		tokens = StaticToken("")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = domain.DefaultBackstageBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger.Named("backstage"),
	}
}

// GetEntities lists catalog entities matching the query.
func (c *Client) GetEntities(ctx context.Context, query EntityQuery) ([]Entity, error) {
	values := url.Values{}
	for _, filter := range query.Filters {
		values.Add("filter", filter)
	}
	if len(query.Fields) > 0 {
		values.Set("fields", strings.Join(query.Fields, ","))
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}

	var entities []Entity
	if err := c.do(ctx, http.MethodGet, "/api/catalog/entities", values, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// GetEntityByRef fetches one entity by its "kind:namespace/name" reference.
func (c *Client) GetEntityByRef(ctx context.Context, ref string) (Entity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.E(domain.ErrorTypeValidation, "getEntityByRef", "entity ref is required", nil)
	}
	var entity Entity
	path := "/api/catalog/entities/by-ref/" + url.PathEscape(ref)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// QueryEntities runs a paged full-text entity search.
func (c *Client) QueryEntities(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	values := url.Values{}
	if req.FullTextTerm != "" {
		values.Set("fullTextFilter[term]", req.FullTextTerm)
	}
	for _, filter := range req.Filters {
		values.Add("filter", filter)
	}
	if req.Limit > 0 {
		values.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Cursor != "" {
		values.Set("cursor", req.Cursor)
	}

	var result QueryResult
	if err := c.do(ctx, http.MethodGet, "/api/catalog/entities/by-query", values, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddLocation registers a location. With dryRun the catalog validates the
// location without persisting it.
func (c *Client) AddLocation(ctx context.Context, spec LocationSpec, dryRun bool) (*LocationResponse, error) {
	if spec.Target == "" {
		return nil, domain.E(domain.ErrorTypeValidation, "addLocation", "location target is required", nil)
	}
	if spec.Type == "" {
		spec.Type = "url"
	}
	values := url.Values{}
	if dryRun {
		values.Set("dryRun", "true")
	}
	var result LocationResponse
	if err := c.do(ctx, http.MethodPost, "/api/catalog/locations", values, spec, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLocations lists registered locations.
func (c *Client) GetLocations(ctx context.Context) ([]Location, error) {
	// The catalog wraps each location in a {data: ...} envelope.
	var wrapped []struct {
		Data Location `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/catalog/locations", nil, nil, &wrapped); err != nil {
		return nil, err
	}
	locations := make([]Location, 0, len(wrapped))
	for _, item := range wrapped {
		locations = append(locations, item.Data)
	}
	return locations, nil
}

// RemoveEntityByUID deletes an entity by its metadata.uid.
func (c *Client) RemoveEntityByUID(ctx context.Context, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return domain.E(domain.ErrorTypeValidation, "removeEntityByUid", "entity uid is required", nil)
	}
	path := "/api/catalog/entities/by-uid/" + url.PathEscape(uid)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// ValidateEntity asks the catalog to validate an entity document against a
// location reference.
func (c *Client) ValidateEntity(ctx context.Context, entity Entity, locationRef string) (*ValidationResult, error) {
	if len(entity) == 0 {
		return nil, domain.E(domain.ErrorTypeValidation, "validateEntity", "entity document is required", nil)
	}
	body := map[string]any{
		"entity":   json.RawMessage(entity),
		"location": locationRef,
	}
	err := c.do(ctx, http.MethodPost, "/api/catalog/validate-entity", nil, body, nil)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	// A 400 means the entity failed validation; surface the reasons instead
	// of an error so tools can report them.
	var tagged *domain.Error
	if e, ok := err.(*domain.Error); ok {
		tagged = e
	}
	if tagged != nil && tagged.Type == domain.ErrorTypeValidation {
		return &ValidationResult{Valid: false, Errors: []string{tagged.Message}}, nil
	}
	return nil, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return domain.E(domain.ErrorTypeInternal, "backstage", "encode request body", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return domain.E(domain.ErrorTypeInternal, "backstage", "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return domain.E(domain.ErrorTypeAuthentication, "backstage", "acquire token", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.E(domain.ErrorTypeNetwork, "backstage",
			fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return c.statusError(method, path, resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.E(domain.ErrorTypeBackstageAPI, "backstage",
			fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return nil
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	message := strings.TrimSpace(string(payload))
	if message == "" {
		message = resp.Status
	}

	kind := domain.ErrorTypeBackstageAPI
	switch resp.StatusCode {
	case http.StatusBadRequest:
		kind = domain.ErrorTypeValidation
	case http.StatusUnauthorized:
		kind = domain.ErrorTypeAuthentication
	case http.StatusForbidden:
		kind = domain.ErrorTypeAuthorization
	case http.StatusNotFound:
		kind = domain.ErrorTypeNotFound
	case http.StatusConflict:
		kind = domain.ErrorTypeConflict
	case http.StatusTooManyRequests:
		kind = domain.ErrorTypeRateLimit
	}
	return &domain.Error{
		Type:    kind,
		Op:      fmt.Sprintf("%s %s", method, path),
		Message: message,
		Details: map[string]any{"status": resp.StatusCode},
	}
}
