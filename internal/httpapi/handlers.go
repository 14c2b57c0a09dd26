package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MrEthical07/goForwarder/internal/identity"
	"github.com/MrEthical07/goForwarder/middleware"
	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type sessionRequest struct {
	Address   string `json:"address" binding:"required"`
	Timestamp int64  `json:"timestamp" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresIn int64  `json:"expires_in"`
}

// modifyRequest carries grant and revoke either as raw masks or as flag
// names; both forms are OR-ed together.
type modifyRequest struct {
	Grant       uint64   `json:"grant"`
	Revoke      uint64   `json:"revoke"`
	GrantFlags  []string `json:"grant_flags"`
	RevokeFlags []string `json:"revoke_flags"`
}

type setRequest struct {
	Mask  *uint64  `json:"mask"`
	Flags []string `json:"flags"`
}

type swapRequest struct {
	Value string `json:"value" binding:"required"`
}

type permissionResponse struct {
	Account     string   `json:"account"`
	Mask        uint64   `json:"mask"`
	Flags       []string `json:"flags"`
	Quarantined bool     `json:"quarantined,omitempty"`
	Reason      string   `json:"quarantine_reason,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.engine.Ping(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) createSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if !common.IsHexAddress(req.Address) {
		s.fail(c, fmt.Errorf("%w: address", errBadRequest))
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: signature: %v", errBadRequest, err))
		return
	}

	caller, err := s.verifier.Verify(c.Request.Context(), identity.Request{
		Address:   common.HexToAddress(req.Address),
		Timestamp: req.Timestamp,
		Signature: sig,
	})
	if err != nil {
		s.logger.Info("login rejected", zap.String("address", req.Address), zap.Error(err))
		s.fail(c, err)
		return
	}

	token, err := s.tokens.CreateAccess(caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Token:     token,
		Address:   caller.Hex(),
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	})
}

func (s *Server) tokenAddress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": s.engine.TokenAddress().Hex()})
}

func (s *Server) venueAddress(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": s.engine.VenueAddress().Hex()})
}

func (s *Server) ownership(c *gin.Context) {
	status, err := s.engine.VerifyOwnership(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"owner":     status.Owner.Hex(),
		"forwarder": status.Forwarder.Hex(),
		"delegated": status.Delegated,
	})
}

func (s *Server) getPermission(c *gin.Context) {
	account, ok := s.accountParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	mask, err := s.engine.GetPermission(ctx, account)
	if err != nil {
		s.fail(c, err)
		return
	}
	reason, quarantined, err := s.engine.Quarantined(ctx, account)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := s.permissionBody(account, mask)
	resp.Quarantined = quarantined
	resp.Reason = reason
	c.JSON(http.StatusOK, resp)
}

func (s *Server) modifyPermission(c *gin.Context) {
	account, ok := s.accountParam(c)
	if !ok {
		return
	}
	caller, _ := middleware.GinCaller(c)

	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	grant, err := s.resolveMask(req.Grant, req.GrantFlags)
	if err != nil {
		s.fail(c, err)
		return
	}
	revoke, err := s.resolveMask(req.Revoke, req.RevokeFlags)
	if err != nil {
		s.fail(c, err)
		return
	}

	mask, err := s.engine.ModifyPermission(c.Request.Context(), caller, account, grant, revoke)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.permissionBody(account, mask))
}

func (s *Server) setPermission(c *gin.Context) {
	account, ok := s.accountParam(c)
	if !ok {
		return
	}
	caller, _ := middleware.GinCaller(c)

	var req setRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if req.Mask == nil && req.Flags == nil {
		s.fail(c, fmt.Errorf("%w: mask or flags required", errBadRequest))
		return
	}
	var raw uint64
	if req.Mask != nil {
		raw = *req.Mask
	}
	desired, err := s.resolveMask(raw, req.Flags)
	if err != nil {
		s.fail(c, err)
		return
	}

	mask, err := s.engine.SetPermission(c.Request.Context(), caller, account, desired)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.permissionBody(account, mask))
}

func (s *Server) feeExemption(c *gin.Context) {
	account, ok := s.accountParam(c)
	if !ok {
		return
	}
	exempt, err := s.engine.IsFeeExempt(c.Request.Context(), account)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account.Hex(), "exempt": exempt})
}

func (s *Server) swap(c *gin.Context) {
	caller, _ := middleware.GinCaller(c)

	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	value, ok := math.ParseBig256(req.Value)
	if !ok {
		s.fail(c, fmt.Errorf("%w: value must be a decimal or 0x-prefixed integer", errBadRequest))
		return
	}

	if err := s.engine.GuardedSwap(c.Request.Context(), caller, value); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "value": value.String()})
}

func (s *Server) reconcile(c *gin.Context) {
	account, ok := s.accountParam(c)
	if !ok {
		return
	}
	caller, _ := middleware.GinCaller(c)

	result, err := s.engine.Reconcile(c.Request.Context(), caller, account)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account":         result.Account.Hex(),
		"exempt":          result.Exempt,
		"was_quarantined": result.WasQuarantined,
	})
}

func (s *Server) accountParam(c *gin.Context) (common.Address, bool) {
	raw := c.Param("account")
	if !common.IsHexAddress(raw) {
		s.fail(c, fmt.Errorf("%w: account %q is not an address", errBadRequest, raw))
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Server) resolveMask(raw uint64, names []string) (permission.Mask64, error) {
	mask := permission.Mask64(raw)
	if len(names) == 0 {
		return mask, nil
	}
	named, err := s.engine.FlagMask(names...)
	if err != nil {
		return 0, err
	}
	return mask | named, nil
}

func (s *Server) permissionBody(account common.Address, mask permission.Mask64) permissionResponse {
	flags := s.engine.FlagNames(mask)
	if flags == nil {
		flags = []string{}
	}
	return permissionResponse{
		Account: account.Hex(),
		Mask:    uint64(mask),
		Flags:   flags,
	}
}
