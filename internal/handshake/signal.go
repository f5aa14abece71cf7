package handshake

import (
	"fmt"
	"net/url"
	"strings"
)

// Signal is a cross-window message value. SignalAuthSuccess is the only accepted one.
type Signal string

const SignalAuthSuccess Signal = "TEBEX_AUTH_SUCCESS"

// CallbackMarker is the query parameter that marks a login return landing.
const CallbackMarker = "auth_callback"

// ParseSignal accepts exactly the known signal values.
func ParseSignal(raw string) (Signal, error) {
	switch Signal(raw) {
	case SignalAuthSuccess:
		return SignalAuthSuccess, nil
	default:
		return "", fmt.Errorf("unknown signal %q", raw)
	}
}

// Message is one cross-window delivery as observed by the primary context.
type Message struct {
	Origin string `json:"origin" validate:"required"`
	Data   string `json:"data"`
}

// Outcome reports what Deliver did with a message.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeRejectedOrigin Outcome = "rejected_origin"
	OutcomeRejectedSignal Outcome = "rejected_signal"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeUnbound        Outcome = "unbound"
)

// ReturnURL annotates the current page URL with the callback marker.
func ReturnURL(current string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(current))
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("page url %q must be absolute", current)
	}
	query := parsed.Query()
	query.Set(CallbackMarker, "true")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// IsCallback reports whether rawURL carries a non-empty callback marker.
func IsCallback(rawURL string) bool {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return parsed.Query().Get(CallbackMarker) != ""
}

// OriginOf returns scheme://host of an absolute URL.
func OriginOf(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
