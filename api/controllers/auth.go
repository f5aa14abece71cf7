package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/tebex-storefront/api/responses"
	"github.com/angelmondragon/tebex-storefront/api/validators"
	"github.com/angelmondragon/tebex-storefront/internal/handshake"
	"github.com/angelmondragon/tebex-storefront/internal/sessions"
	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

const maxMessageField = 2048

type authMessageRequest struct {
	Origin string `json:"origin" validate:"required,max=2048"`
	Data   string `json:"data" validate:"required,max=2048"`
}

type authMessageResponse struct {
	Outcome handshake.Outcome `json:"outcome"`
}

// AuthMessage forwards a cross-window message received by the primary context.
func AuthMessage(provider SessionProvider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload authMessageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		outcome := sess.Coordinator.Deliver(r.Context(), handshake.Message{
			Origin: validators.SanitizeString(payload.Origin, maxMessageField),
			Data:   validators.SanitizeString(payload.Data, maxMessageField),
		})
		status := http.StatusOK
		if outcome == handshake.OutcomeAccepted {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, authMessageResponse{Outcome: outcome})
	}
}

// AuthCancel dismisses the login overlay without retrying the pending item.
func AuthCancel(provider SessionProvider, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := resolveSession(w, r, provider, logg)
		if !ok {
			return
		}
		if err := sess.Coordinator.Cancel(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cancel login"))
			return
		}
		sess.Directives.Clear()
		responses.WriteSuccess(w, newBasketStateView(sess, currency))
	}
}

// AuthCallback tells a landing page whether it is the login return and, if so, which signal
// to post to its opener. The page URL comes from ?url= or the reported page.
func AuthCallback(responder *handshake.Responder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if responder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth responder unavailable"))
			return
		}
		landing := strings.TrimSpace(r.URL.Query().Get("url"))
		if landing == "" {
			if page, ok := sessions.PageFrom(r.Context()); ok {
				landing = page.URL
			}
		}
		if landing == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "page url is required").WithDetails(map[string]string{"url": "is required"}))
			return
		}
		responses.WriteSuccess(w, responder.Instruction(landing))
	}
}
