package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// RequireCaller behaves like Guard and then rejects, with 403, any caller
// other than allowed.
func RequireCaller(parser TokenParser, allowed common.Address) func(http.Handler) http.Handler {
	guard := Guard(parser)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, _ := CallerFromContext(r.Context())
			if caller != allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
