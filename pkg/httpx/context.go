package httpx

import "context"

type ctxKey string

// CtxKeyPrincipalID carries the authenticated principal id. Set by the
// session middleware; consumed by per-principal rate limiting.
const CtxKeyPrincipalID ctxKey = "principal_id"

func principalIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyPrincipalID).(string); ok {
		return v
	}
	return ""
}
