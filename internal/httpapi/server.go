package httpapi

import (
	"context"
	"math/big"
	"net/http"
	"time"

	goForwarder "github.com/MrEthical07/goForwarder"
	"github.com/MrEthical07/goForwarder/internal/identity"
	"github.com/MrEthical07/goForwarder/middleware"
	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Forwarder is the engine surface served by the API.
type Forwarder interface {
	TokenAddress() common.Address
	VenueAddress() common.Address
	GetPermission(ctx context.Context, account common.Address) (permission.Mask64, error)
	ModifyPermission(ctx context.Context, caller, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error)
	SetPermission(ctx context.Context, caller, account common.Address, desired permission.Mask64) (permission.Mask64, error)
	FlagMask(names ...string) (permission.Mask64, error)
	FlagNames(m permission.Mask64) []string
	Quarantined(ctx context.Context, account common.Address) (string, bool, error)
	IsFeeExempt(ctx context.Context, account common.Address) (bool, error)
	GuardedSwap(ctx context.Context, caller common.Address, value *big.Int) error
	Reconcile(ctx context.Context, caller, account common.Address) (goForwarder.ReconcileResult, error)
	VerifyOwnership(ctx context.Context) (goForwarder.OwnershipStatus, error)
	Ping(ctx context.Context) error
}

// Tokens issues and verifies caller tokens.
type Tokens interface {
	middleware.TokenParser
	CreateAccess(address common.Address) (string, error)
	TTL() time.Duration
}

// LoginVerifier checks signed login requests.
type LoginVerifier interface {
	Verify(ctx context.Context, req identity.Request) (common.Address, error)
}

// Options configures a Server. Forwarder, Tokens and Verifier are required.
type Options struct {
	Forwarder      Forwarder
	Tokens         Tokens
	Verifier       LoginVerifier
	Logger         *zap.Logger
	MetricsHandler http.Handler
	// RequestsPerSecond and Burst configure the per-client token bucket.
	// Zero RequestsPerSecond disables API throttling.
	RequestsPerSecond float64
	Burst             int
}

// Server is the operator API.
type Server struct {
	engine   Forwarder
	tokens   Tokens
	verifier LoginVerifier
	logger   *zap.Logger
	limiter  *clientLimiter
	router   *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:   opts.Forwarder,
		tokens:   opts.Tokens,
		verifier: opts.Verifier,
		logger:   logger.Named("httpapi"),
		limiter:  newClientLimiter(opts.RequestsPerSecond, opts.Burst),
	}
	s.router = s.routes(opts.MetricsHandler)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SweepLimiter drops idle per-client buckets until ctx is done.
func (s *Server) SweepLimiter(ctx context.Context, every time.Duration) {
	if s.limiter == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.limiter.sweep(now)
		}
	}
}

func (s *Server) routes(metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.logger), requestID(), accessLog(s.logger))

	r.GET("/healthz", s.health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := r.Group("/v1")
	v1.POST("/session", s.limiter.middleware(s.logger), s.createSession)

	authed := v1.Group("", middleware.GinGuard(s.tokens), s.limiter.middleware(s.logger))
	authed.GET("/token", s.tokenAddress)
	authed.GET("/venue", s.venueAddress)
	authed.GET("/ownership", s.ownership)
	authed.GET("/permissions/:account", s.getPermission)
	authed.POST("/permissions/:account", s.modifyPermission)
	authed.PUT("/permissions/:account", s.setPermission)
	authed.GET("/exemption/:account", s.feeExemption)
	authed.POST("/swap", s.swap)
	authed.POST("/reconcile/:account", s.reconcile)

	return r
}
