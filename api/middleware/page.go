package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tebex-storefront/internal/sessions"
)

const (
	pageURLHeader    = "X-Page-Url"
	screenSizeHeader = "X-Screen-Size"
)

// PageContext records the page URL and screen size the primary context reports, falling
// back to the Referer for the URL.
func PageContext() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			page := sessions.Page{URL: strings.TrimSpace(r.Header.Get(pageURLHeader))}
			if page.URL == "" {
				page.URL = strings.TrimSpace(r.Referer())
			}
			if screen, ok := sessions.ParseScreen(r.Header.Get(screenSizeHeader)); ok {
				page.Screen = screen
			}
			next.ServeHTTP(w, r.WithContext(sessions.WithPage(r.Context(), page)))
		})
	}
}
