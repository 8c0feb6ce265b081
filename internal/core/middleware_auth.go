package core

import (
	"context"
	"net/http"
	"strings"

	"seopilot/internal/types"
)

// Request headers the CMS plugin authenticates with. The site key proves
// the request comes from the installed plugin; the local user header names
// the CMS account acting through it.
const (
	HeaderSiteKey   = "X-Site-Key"
	HeaderLocalUser = "X-Local-User"
)

// authPublicPaths lists URL paths exempt from site authentication. The
// billing webhook carries its own signature and is verified in its handler.
var authPublicPaths = map[string]bool{
	"/health":              true,
	"/v1/webhooks/billing": true,
}

// SiteKeyVerifier checks the plugin's site key. Implemented by
// billing.KeyService.
type SiteKeyVerifier interface {
	Verify(ctx context.Context, presented string) error
}

// SiteAuthMiddleware authenticates the CMS plugin and injects the acting
// user as the request Actor.
//
// A nil verifier disables site-key checking (local development); the local
// user header is still required for actor resolution.
func SiteAuthMiddleware(verifier SiteKeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authPublicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if verifier != nil {
				key := r.Header.Get(HeaderSiteKey)
				if key == "" {
					Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "site key is required", nil))
					return
				}
				if err := verifier.Verify(r.Context(), key); err != nil {
					Error(w, r, err)
					return
				}
			}

			localUserID := strings.TrimSpace(r.Header.Get(HeaderLocalUser))
			if localUserID == "" {
				Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "local user header is required", nil))
				return
			}

			ctx := types.WithActor(r.Context(), types.Actor{
				LocalUserID: localUserID,
				Type:        types.ActorTypeUser,
			})

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor returns the Actor from context or writes a 401 and reports
// false. Handlers call this instead of trusting the middleware blindly.
func RequireActor(w http.ResponseWriter, r *http.Request) (types.Actor, bool) {
	actor, ok := types.GetActor(r.Context())
	if !ok || actor.LocalUserID == "" {
		Error(w, r, types.NewAppError(types.ErrCodeAuthRequired, "authentication required", nil))
		return types.Actor{}, false
	}
	return actor, true
}
