package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/cemention/internal/auth"
	"github.com/xenking/cemention/internal/domain/user"
)

type callerKey struct{}

// WithCaller stores the authenticated user in ctx.
func WithCaller(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, callerKey{}, u)
}

// CallerFromContext returns the authenticated user, or nil.
func CallerFromContext(ctx context.Context) *user.User {
	u, _ := ctx.Value(callerKey{}).(*user.User)
	return u
}

type authedFunc func(w http.ResponseWriter, r *http.Request, caller *user.User)

// authed resolves the bearer token to the current user before calling next.
// Requests without a valid token get 401.
func (h *Handler) authed(next authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, r, auth.ErrInvalidToken)
			return
		}
		caller, err := h.accounts.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := WithCaller(r.Context(), caller)
		ctx = zctx.With(ctx, zap.String("user_id", caller.ID))
		trace.SpanFromContext(ctx).SetAttributes(
			attribute.String("enduser.id", caller.ID),
			attribute.String("enduser.role", string(caller.Role)),
		)
		next(w, r.WithContext(ctx), caller)
	}
}

// optionalCaller authenticates the request when it carries a token and
// returns nil otherwise. An invalid token is treated as anonymous.
func (h *Handler) optionalCaller(r *http.Request) *user.User {
	token, ok := bearerToken(r)
	if !ok {
		return nil
	}
	caller, err := h.accounts.Authenticate(r.Context(), token)
	if err != nil {
		return nil
	}
	return caller
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	v := r.Header.Get("Authorization")
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(v[len(prefix):])
	return token, token != ""
}
