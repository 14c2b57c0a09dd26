package security

import "time"

type Report struct {
	SigningAlgorithm    string        `json:"signing_algorithm"`
	TokenTTL            time.Duration `json:"token_ttl"`
	LoginWindow         time.Duration `json:"login_window"`
	LoginLockoutActive  bool          `json:"login_lockout_active"`
	ReplayGuardShared   bool          `json:"replay_guard_shared"`
	SwapRateLimitActive bool          `json:"swap_rate_limit_active"`
	APIThrottleActive   bool          `json:"api_throttle_active"`
	BreakerActive       bool          `json:"breaker_active"`
	StoreBackend        string        `json:"store_backend"`
	StorePersistent     bool          `json:"store_persistent"`
	AuditEnabled        bool          `json:"audit_enabled"`
	RestoreTimeout      time.Duration `json:"restore_timeout"`
	PoolConfigured      bool          `json:"pool_configured"`
	Warnings            []string      `json:"warnings,omitempty"`
}

type ReportInput struct {
	SigningAlgorithm     string
	TokenTTL             time.Duration
	LoginWindow          time.Duration
	FailureThreshold     int
	RedisConfigured      bool
	SwapRateLimitEnabled bool
	APIRequestsPerSecond float64
	BreakerEnabled       bool
	StoreBackend         string
	AuditEnabled         bool
	CallTimeout          time.Duration
	RestoreTimeout       time.Duration
	PoolConfigured       bool
}

func BuildReport(input ReportInput) Report {
	backend := input.StoreBackend
	if backend == "" {
		backend = "memory"
	}

	r := Report{
		SigningAlgorithm:    input.SigningAlgorithm,
		TokenTTL:            input.TokenTTL,
		LoginWindow:         input.LoginWindow,
		LoginLockoutActive:  input.FailureThreshold > 0 && input.RedisConfigured,
		ReplayGuardShared:   input.RedisConfigured,
		SwapRateLimitActive: input.SwapRateLimitEnabled,
		APIThrottleActive:   input.APIRequestsPerSecond > 0,
		BreakerActive:       input.BreakerEnabled,
		StoreBackend:        backend,
		StorePersistent:     backend != "memory",
		AuditEnabled:        input.AuditEnabled,
		RestoreTimeout:      input.RestoreTimeout,
		PoolConfigured:      input.PoolConfigured,
	}

	if !r.StorePersistent {
		r.Warnings = append(r.Warnings, "permission store is in memory; masks and quarantines are lost on restart")
	}
	if input.FailureThreshold > 0 && !input.RedisConfigured {
		r.Warnings = append(r.Warnings, "login lockout configured but inactive without redis")
	}
	if !r.ReplayGuardShared {
		r.Warnings = append(r.Warnings, "login replay guard is per-process")
	}
	if input.SigningAlgorithm == "hs256" {
		r.Warnings = append(r.Warnings, "hs256 tokens can be minted by anyone holding the verification key")
	}
	if input.TokenTTL > time.Hour {
		r.Warnings = append(r.Warnings, "caller tokens live longer than one hour")
	}
	if input.RestoreTimeout < input.CallTimeout {
		r.Warnings = append(r.Warnings, "restore timeout is shorter than the call timeout")
	}
	if !input.PoolConfigured {
		r.Warnings = append(r.Warnings, "no liquidity pool configured; only direct swaps are possible")
	}
	if !input.AuditEnabled {
		r.Warnings = append(r.Warnings, "audit events are disabled")
	}
	return r
}
