package httpapi

import (
	"errors"
	"net/http"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/internal/identity"
	"github.com/gin-gonic/gin"
)

var errBadRequest = errors.New("bad request")

// statusFor maps engine and login errors to HTTP status codes. Invariant
// violations are checked first because they are joined with the error that
// triggered them.
func statusFor(err error) int {
	switch {
	case errors.Is(err, goForwarder.ErrStateInvariantViolation):
		return http.StatusInternalServerError
	case errors.Is(err, goForwarder.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, goForwarder.ErrAccountQuarantined):
		return http.StatusLocked
	case errors.Is(err, goForwarder.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, goForwarder.ErrSwapRateLimited), errors.Is(err, identity.ErrLoginLocked):
		return http.StatusTooManyRequests
	case errors.Is(err, goForwarder.ErrInvalidValue), errors.Is(err, goForwarder.ErrUnknownFlag), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, goForwarder.ErrReconcileMismatch):
		return http.StatusConflict
	case errors.Is(err, goForwarder.ErrExternalCallFailed):
		return http.StatusBadGateway
	case errors.Is(err, goForwarder.ErrStoreUnavailable),
		errors.Is(err, goForwarder.ErrEngineNotReady),
		errors.Is(err, identity.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, identity.ErrMalformedSignature),
		errors.Is(err, identity.ErrSignatureMismatch),
		errors.Is(err, identity.ErrLoginExpired),
		errors.Is(err, identity.ErrLoginReplayed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zapRequestFields(c, err)...,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      http.StatusText(status),
		"message":    err.Error(),
		"request_id": goForwarder.RequestIDFromContext(c.Request.Context()),
	})
}
