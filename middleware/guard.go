package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/goForwarder/jwt"
	"github.com/ethereum/go-ethereum/common"
)

// TokenParser verifies a caller token.
type TokenParser interface {
	ParseAccess(token string) (*jwt.CallerClaims, error)
}

type callerContextKey struct{}

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext returns the caller stored by a guard.
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(common.Address)
	return caller, ok
}

func Guard(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := resolveCaller(parser, r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

func resolveCaller(parser TokenParser, r *http.Request) (common.Address, bool) {
	if parser == nil {
		return common.Address{}, false
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return common.Address{}, false
	}
	claims, err := parser.ParseAccess(token)
	if err != nil {
		return common.Address{}, false
	}
	caller, err := claims.Address()
	if err != nil {
		return common.Address{}, false
	}
	return caller, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
