package tebex

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
)

// APIError is a transport failure (StatusCode 0) or a non-2xx response.
type APIError struct {
	Message    string
	StatusCode int
	Details    json.RawMessage
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode == 0 {
		if e.cause != nil {
			return fmt.Sprintf("tebex: %s: %v", e.Message, e.cause)
		}
		return "tebex: " + e.Message
	}
	return fmt.Sprintf("tebex: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus exposes the upstream status for error dumps.
func (e *APIError) HTTPStatus() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// LoginRequired reports whether the rejection asks the visitor to log in first.
// The detail text must contain a lowercase "login".
func (e *APIError) LoginRequired() bool {
	if e == nil || e.StatusCode != http.StatusUnprocessableEntity || len(e.Details) == 0 {
		return false
	}
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(e.Details, &body); err != nil {
		return false
	}
	return strings.Contains(body.Detail, "login")
}

// IsLoginRequired reports whether err carries a login-required rejection.
func IsLoginRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.LoginRequired()
}

// ValidationError reports a success response whose shape did not match the contract.
type ValidationError struct {
	Operation string
	Fields    map[string]string
	Cause     error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Fields) == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("tebex: %s: invalid response: %v", e.Operation, e.Cause)
		}
		return fmt.Sprintf("tebex: %s: invalid response", e.Operation)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("tebex: %s: invalid response: %s", e.Operation, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ToDomain maps client failures onto pkg/errors codes; other errors pass through unchanged.
func ToDomain(err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return pkgerrors.Wrap(pkgerrors.CodeUpstreamSchema, err, "commerce response failed validation").
			WithDetails(map[string]any{"operation": validationErr.Operation, "fields": validationErr.Fields})
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.StatusCode == 0:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commerce backend unreachable")
	case apiErr.LoginRequired():
		return pkgerrors.Wrap(pkgerrors.CodeAuthRequired, err, apiErr.Message)
	case apiErr.StatusCode == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, apiErr.Message)
	case apiErr.StatusCode == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, apiErr.Message)
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, err, apiErr.Message)
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, apiErr.Message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, apiErr.Message)
	}
}
