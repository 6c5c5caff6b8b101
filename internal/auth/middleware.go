package auth

import (
	"log/slog"
	"net/http"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// PrincipalMiddleware resolves the session and attaches the authenticated
// principal to the request context. Unauthenticated requests pass through
// without a principal; guards downstream fail closed on that.
func PrincipalMiddleware(sessions *shared.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r.Context(), r)
			if err != nil {
				if logger != nil {
					logger.Error("load session", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if sess.Authenticated() {
				principal := &shared.Principal{UserID: sess.UserID, Email: sess.Email, Role: sess.Role}
				r = r.WithContext(shared.ContextWithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}
