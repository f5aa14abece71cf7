package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tebex-storefront/api/middleware"
	"github.com/angelmondragon/tebex-storefront/api/responses"
	"github.com/angelmondragon/tebex-storefront/api/validators"
	"github.com/angelmondragon/tebex-storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

// SessionProvider resolves the live session of a visitor.
type SessionProvider interface {
	Get(ctx context.Context, sessionID string) (*sessions.Session, error)
}

func resolveSession(w http.ResponseWriter, r *http.Request, provider SessionProvider, logg *logger.Logger) (*sessions.Session, bool) {
	if provider == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session registry unavailable"))
		return nil, false
	}
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing"))
		return nil, false
	}
	sess, err := provider.Get(r.Context(), sessionID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session"))
		return nil, false
	}
	return sess, true
}

// BasketState renders the visitor's basket state.
func BasketState(provider SessionProvider, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newBasketStateView(sess, currency))
	}
}

type addItemRequest struct {
	PackageID int `json:"package_id" validate:"required,gt=0"`
}

// BasketAddItem adds one unit of a package. A login detour answers with the state view and
// the popup to open.
func BasketAddItem(provider SessionProvider, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		if err := sess.Store.AddItem(r.Context(), payload.PackageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketStateView(sess, currency))
	}
}

// BasketRemoveItem removes a package line from the basket.
func BasketRemoveItem(provider SessionProvider, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		packageID, err := validators.ParsePathID(chi.URLParam(r, "packageId"), "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		if err := sess.Store.RemoveItem(r.Context(), packageID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBasketStateView(sess, currency))
	}
}

// BasketToggle opens or closes the cart panel.
func BasketToggle(provider SessionProvider, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		sess.Store.ToggleCart()
		responses.WriteSuccess(w, newBasketStateView(sess, currency))
	}
}
