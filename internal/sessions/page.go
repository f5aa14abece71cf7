package sessions

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/angelmondragon/tebex-storefront/internal/handshake"
)

type pageKey struct{}

// Page is what the primary browsing context reported about itself on a request.
type Page struct {
	URL    string
	Screen handshake.Screen
}

var errNoPageURL = errors.New("current page url not reported")

// WithPage attaches the reported page to ctx.
func WithPage(ctx context.Context, page Page) context.Context {
	return context.WithValue(ctx, pageKey{}, page)
}

// PageFrom returns the page attached to ctx.
func PageFrom(ctx context.Context) (Page, bool) {
	page, ok := ctx.Value(pageKey{}).(Page)
	return page, ok
}

// ParseScreen reads a "WIDTHxHEIGHT" size. Anything else reports false.
func ParseScreen(raw string) (handshake.Screen, bool) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), "x")
	if !ok {
		return handshake.Screen{}, false
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return handshake.Screen{}, false
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return handshake.Screen{}, false
	}
	return handshake.Screen{Width: width, Height: height}, true
}

func currentURL(ctx context.Context) (string, error) {
	page, ok := PageFrom(ctx)
	if !ok || page.URL == "" {
		return "", errNoPageURL
	}
	return page.URL, nil
}

type pageScreens struct{}

func (pageScreens) Screen(ctx context.Context) (handshake.Screen, bool) {
	page, ok := PageFrom(ctx)
	if !ok || page.Screen.Width <= 0 || page.Screen.Height <= 0 {
		return handshake.Screen{}, false
	}
	return page.Screen, true
}
