package tebex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/metrics"
)

const (
	DefaultBaseURL = "https://headless.tebex.io/api"
	defaultTimeout = 10 * time.Second

	errorBodyReadLimit   int64 = 16 << 10
	successBodyReadLimit int64 = 4 << 20

	opListCategories = "list_categories"
	opGetPackage     = "get_package"
	opCreateBasket   = "create_basket"
	opGetBasket      = "get_basket"
	opAddPackage     = "add_package"
	opRemovePackage  = "remove_package"
	opAuthLinks      = "auth_links"
)

var errAccountTokenRequired = errors.New("tebex account token is required")

// Client talks to the headless commerce API for one account.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	accountToken string
	logger       *logger.Logger
	metrics      *metrics.CommerceMetrics
	validate     *validator.Validate
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		if logg != nil {
			c.logger = logg
		}
	}
}

func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient builds the commerce client for the given account token.
func NewClient(accountToken string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(accountToken)
	if trimmedToken == "" {
		return nil, errAccountTokenRequired
	}

	client := &Client{
		accountToken: trimmedToken,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       logger.Nop(),
		validate:     newValidator(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if client.baseURL == "" {
		client.baseURL = DefaultBaseURL
	}

	return client, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// ListCategories returns the catalog categories, optionally with their packages.
func (c *Client) ListCategories(ctx context.Context, includePackages bool) ([]Category, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	query := url.Values{}
	query.Set("includePackages", boolFlag(includePackages))

	raw, err := c.do(ctx, opListCategories, http.MethodGet, c.accountPath("categories"), query, nil)
	if err != nil {
		return nil, err
	}
	categories, err := decodeData[[]Category](opListCategories, raw)
	if err != nil {
		return nil, c.schemaFailure(ctx, opListCategories, err)
	}
	if categories == nil {
		categories = []Category{}
	}
	for i := range categories {
		if categories[i].Packages == nil {
			categories[i].Packages = []Package{}
		}
		if err := c.check(opListCategories, fmt.Sprintf("[%d]", i), &categories[i]); err != nil {
			return nil, c.schemaFailure(ctx, opListCategories, err)
		}
	}
	return categories, nil
}

// GetPackage fetches a single catalog package.
func (c *Client) GetPackage(ctx context.Context, id int) (*Package, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "package id must be positive")
	}

	raw, err := c.do(ctx, opGetPackage, http.MethodGet, c.accountPath("packages", strconv.Itoa(id)), nil, nil)
	if err != nil {
		return nil, err
	}
	pkg, err := decodeData[Package](opGetPackage, raw)
	if err != nil {
		return nil, c.schemaFailure(ctx, opGetPackage, err)
	}
	if err := c.check(opGetPackage, "", &pkg); err != nil {
		return nil, c.schemaFailure(ctx, opGetPackage, err)
	}
	return &pkg, nil
}

// CreateBasket opens a new empty basket returning the visitor to the given URLs.
func (c *Client) CreateBasket(ctx context.Context, completeURL, cancelURL string) (*Basket, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	payload := map[string]any{
		"complete_url": completeURL,
		"cancel_url":   cancelURL,
		"custom":       map[string]any{},
	}
	raw, err := c.do(ctx, opCreateBasket, http.MethodPost, c.accountPath("baskets"), nil, payload)
	if err != nil {
		return nil, err
	}
	return c.decodeBasket(ctx, opCreateBasket, raw)
}

// GetBasket fetches the authoritative basket document.
func (c *Client) GetBasket(ctx context.Context, ident string) (*Basket, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket ident is required")
	}
	raw, err := c.do(ctx, opGetBasket, http.MethodGet, c.accountPath("baskets", trimmed), nil, nil)
	if err != nil {
		return nil, err
	}
	return c.decodeBasket(ctx, opGetBasket, raw)
}

// AddPackage adds quantity units of a package to the basket.
func (c *Client) AddPackage(ctx context.Context, ident string, packageID, quantity int) (*Basket, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket ident is required")
	}
	payload := map[string]any{
		"package_id": packageID,
		"quantity":   quantity,
	}
	raw, err := c.do(ctx, opAddPackage, http.MethodPost, c.basketPath(trimmed, "packages"), nil, payload)
	if err != nil {
		return nil, err
	}
	return c.decodeBasket(ctx, opAddPackage, raw)
}

// RemovePackage removes a package line from the basket.
func (c *Client) RemovePackage(ctx context.Context, ident string, packageID int) (*Basket, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tebex client not configured")
	}
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket ident is required")
	}
	payload := map[string]any{"package_id": packageID}
	raw, err := c.do(ctx, opRemovePackage, http.MethodPost, c.basketPath(trimmed, "packages", "remove"), nil, payload)
	if err != nil {
		return nil, err
	}
	return c.decodeBasket(ctx, opRemovePackage, raw)
}

// AuthLinks lists the login links for a basket. Every failure yields an empty list.
func (c *Client) AuthLinks(ctx context.Context, ident, returnURL string) []AuthLink {
	if c == nil {
		return []AuthLink{}
	}
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return []AuthLink{}
	}
	query := url.Values{}
	query.Set("returnUrl", returnURL)

	raw, err := c.do(ctx, opAuthLinks, http.MethodGet, c.accountPath("baskets", trimmed, "auth"), query, nil)
	if err != nil {
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "tebex auth links unavailable")
		return []AuthLink{}
	}
	links, err := decodeAuthLinks(raw)
	if err == nil {
		for i := range links {
			if verr := c.check(opAuthLinks, fmt.Sprintf("[%d]", i), &links[i]); verr != nil {
				err = verr
				break
			}
		}
	}
	if err != nil {
		c.metrics.IncFailure(opAuthLinks, "schema")
		c.logger.Warn(c.logger.WithField(ctx, "error", err.Error()), "tebex auth links malformed")
		return []AuthLink{}
	}
	return links
}

func decodeAuthLinks(raw []byte) ([]AuthLink, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var links []AuthLink
		if err := json.Unmarshal(trimmed, &links); err != nil {
			return nil, &ValidationError{Operation: opAuthLinks, Cause: err}
		}
		return links, nil
	}
	links, err := decodeData[[]AuthLink](opAuthLinks, trimmed)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []AuthLink{}
	}
	return links, nil
}

func (c *Client) decodeBasket(ctx context.Context, op string, raw []byte) (*Basket, error) {
	basket, err := decodeData[Basket](op, raw)
	if err != nil {
		return nil, c.schemaFailure(ctx, op, err)
	}
	if basket.Packages == nil {
		basket.Packages = []BasketPackage{}
	}
	if err := c.check(op, "", &basket); err != nil {
		return nil, c.schemaFailure(ctx, op, err)
	}
	return &basket, nil
}

func decodeData[T any](op string, raw []byte) (T, error) {
	var zero T
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return zero, &ValidationError{Operation: op, Cause: err}
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return zero, &ValidationError{Operation: op, Fields: map[string]string{"data": "is required"}}
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, &ValidationError{Operation: op, Cause: err}
	}
	return out, nil
}

func (c *Client) check(op, prefix string, value any) error {
	err := c.validate.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Operation: op, Cause: err}
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldPath(prefix, fe.Namespace())] = validationMessage(fe)
	}
	return &ValidationError{Operation: op, Fields: fields, Cause: err}
}

func fieldPath(prefix, namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		namespace = namespace[idx+1:]
	}
	if prefix == "" {
		return namespace
	}
	return prefix + "." + namespace
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	}
	return "is invalid"
}

func (c *Client) schemaFailure(ctx context.Context, op string, err error) error {
	c.metrics.IncFailure(op, "schema")
	c.log(ctx, "error", op, map[string]any{"error": err.Error()})
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	endpoint := c.buildURL(path, query)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Message: "marshal request body", cause: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &APIError{Message: "build request", cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logPath := c.redactPath(path)
	c.log(ctx, "request", op, map[string]any{"method": method, "path": logPath})

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(started)
	c.metrics.ObserveDuration(op, elapsed)
	if err != nil {
		c.metrics.IncFailure(op, "transport")
		c.log(ctx, "error", op, map[string]any{"path": logPath, "error": err.Error(), "duration_ms": elapsed.Milliseconds()})
		return nil, &APIError{Message: "request failed", cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		apiErr := newStatusError(resp.StatusCode, raw)
		c.metrics.IncFailure(op, "status")
		c.log(ctx, "error", op, map[string]any{
			"path":        logPath,
			"status":      resp.StatusCode,
			"error":       apiErr.Message,
			"duration_ms": elapsed.Milliseconds(),
		})
		return nil, apiErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, successBodyReadLimit))
	if err != nil {
		c.metrics.IncFailure(op, "transport")
		return nil, &APIError{Message: "read response body", cause: err}
	}
	c.log(ctx, "response", op, map[string]any{"path": logPath, "status": resp.StatusCode, "duration_ms": elapsed.Milliseconds()})
	return raw, nil
}

func newStatusError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return apiErr
	}
	if json.Valid(trimmed) {
		apiErr.Details = json.RawMessage(append([]byte(nil), trimmed...))
	}
	var body struct {
		Message string `json:"message"`
		Title   string `json:"title"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &body); err == nil {
		for _, candidate := range []string{body.Message, body.Title, body.Detail} {
			if strings.TrimSpace(candidate) != "" {
				apiErr.Message = strings.TrimSpace(candidate)
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("status %d", status)
	}
	return apiErr
}

func (c *Client) accountPath(parts ...string) string {
	segments := append([]string{"accounts", url.PathEscape(c.accountToken)}, escapeAll(parts)...)
	return strings.Join(segments, "/")
}

func (c *Client) basketPath(ident string, parts ...string) string {
	segments := append([]string{"baskets", url.PathEscape(ident)}, escapeAll(parts)...)
	return strings.Join(segments, "/")
}

func escapeAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, url.PathEscape(part))
	}
	return out
}

func (c *Client) buildURL(path string, query url.Values) string {
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) redactPath(path string) string {
	return strings.ReplaceAll(path, url.PathEscape(c.accountToken), "[REDACTED]")
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("tebex %s", op), errors.New(fmt.Sprint(fields["error"])))
	case "request":
		c.logger.Debug(ctx, fmt.Sprintf("tebex %s", phase))
	default:
		c.logger.Info(ctx, fmt.Sprintf("tebex %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"token", "secret", "email", "username"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func boolFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
