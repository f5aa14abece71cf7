package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/tebex-storefront/api/responses"
	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

// Recoverer turns handler panics into INTERNAL_ERROR envelopes. Mounted again below
// Session, it logs the visitor session of the panicking basket or auth call.
// http.ErrAbortHandler is re-raised so net/http aborts the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				err := fmt.Errorf("panic: %v", recovered)
				ctx := r.Context()
				if logg != nil {
					fields := map[string]any{
						"panic":        fmt.Sprint(recovered),
						"method":       r.Method,
						"path":         r.URL.Path,
						"headers_sent": rec.status != 0,
					}
					ctx = logg.WithFields(ctx, fields)
					logg.Error(ctx, "panic.recovered", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, nil, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
