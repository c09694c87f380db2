package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/veridianhq/tenancy/internal/tenancy/domain"
	"github.com/veridianhq/tenancy/internal/tenancy/guard"
	"github.com/veridianhq/tenancy/internal/tenancy/store"
	"github.com/veridianhq/tenancy/pkg/httpx"
	"github.com/veridianhq/tenancy/pkg/jwtx"
	"github.com/veridianhq/tenancy/pkg/slogx"
)

type guardCtxKey struct{}

// guardContext returns the ambient guard context the session middleware
// attached, or an anonymous one.
func guardContext(r *http.Request) guard.Context {
	if gc, ok := r.Context().Value(guardCtxKey{}).(guard.Context); ok {
		return gc
	}
	return guard.Context{Assurance: domain.AssuranceBase, Input: guard.NoInput{}}
}

// sessionMiddleware resolves a Bearer session token into a guard context.
// Missing or invalid tokens leave the request anonymous; enforcement is the
// guards' job, not the middleware's. A valid token for a vanished principal
// is treated as anonymous too.
func sessionMiddleware(sessions *jwtx.Sessions, st store.Store) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gc := guard.Context{
				Assurance:        domain.AssuranceBase,
				Input:            guard.NoInput{},
				ExplicitTenantID: r.Header.Get("X-Tenant-ID"),
			}

			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), guardCtxKey{}, gc)))
				return
			}

			claims, err := sessions.Verify(raw)
			if err != nil || claims.ValidateExpiry() != nil {
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), guardCtxKey{}, gc)))
				return
			}

			principal, err := st.Principals().GetPrincipalByID(r.Context(), claims.Subject)
			if err != nil {
				if !errors.Is(err, store.ErrNotFound) {
					slogx.FromContext(r.Context()).Error("session principal lookup failed",
						"principal_id", claims.Subject, "err", err)
				}
				next.ServeHTTP(w, r.WithContext(
					context.WithValue(r.Context(), guardCtxKey{}, gc)))
				return
			}

			gc.Principal = &principal
			if claims.Elevated() {
				gc.Assurance = domain.AssuranceElevated
			}

			ctx := context.WithValue(r.Context(), guardCtxKey{}, gc)
			ctx = context.WithValue(ctx, httpx.CtxKeyPrincipalID, principal.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
