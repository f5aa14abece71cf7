package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tebex-storefront/api/responses"
	pkgAuth "github.com/angelmondragon/tebex-storefront/pkg/auth"
	"github.com/angelmondragon/tebex-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

// Session resolves the visitor session from the signed cookie, minting a new one when the
// cookie is missing, expired or forged.
func Session(cfg config.SessionConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(cfg.CookieName); err == nil && cookie.Value != "" {
				if claims, err := pkgAuth.ParseSessionToken(cfg, cookie.Value); err == nil {
					sessionID = claims.SessionID.String()
				} else if logg != nil {
					logg.Debug(logg.WithField(r.Context(), "reason", err.Error()), "session cookie rejected")
				}
			}

			if sessionID == "" {
				id := uuid.New()
				now := time.Now()
				token, err := pkgAuth.MintSessionToken(cfg, now, id)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session"))
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Expires:  now.Add(cfg.TTL),
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: sameSite(cfg.Secure),
				})
				sessionID = id.String()
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SameSite=None is only honored on secure cookies.
func sameSite(secure bool) http.SameSite {
	if secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
