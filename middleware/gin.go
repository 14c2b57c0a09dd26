package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// GinCallerKey is the gin context key holding the caller address.
const GinCallerKey = "caller"

// GinGuard is Guard for gin routers. The caller is stored both in the gin
// context under GinCallerKey and in the request context.
func GinGuard(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := resolveCaller(parser, c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(GinCallerKey, caller)
		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// GinCaller returns the caller stored by GinGuard.
func GinCaller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(GinCallerKey)
	if !ok {
		return common.Address{}, false
	}
	caller, ok := v.(common.Address)
	return caller, ok
}
