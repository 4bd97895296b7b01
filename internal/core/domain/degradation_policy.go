package domain

import "strings"

// DegradationPolicyMode selects how requests are treated when a supporting store is unreachable.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient lets requests through when the check cannot be made.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict rejects requests whenever the check cannot be made.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason names the check that could not be completed.
type DegradationReason string

const (
	// DegradationReasonRateLimitStore denotes the request rate limit store failed.
	DegradationReasonRateLimitStore DegradationReason = "rate_limit_store_unavailable"
	// DegradationReasonLoginThrottle denotes the failed-login counter could not be read.
	DegradationReasonLoginThrottle DegradationReason = "login_throttle_unavailable"
)

// DegradationPolicy centralises fail-open and fail-closed decisions.
type DegradationPolicy struct {
	mode DegradationPolicyMode
}

// NewDegradationPolicy constructs a policy, defaulting to lenient.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	if mode != DegradationPolicyModeStrict {
		mode = DegradationPolicyModeLenient
	}
	return DegradationPolicy{mode: mode}
}

// ParseDegradationPolicyMode normalises textual input into a supported mode.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DegradationPolicyModeStrict):
		return DegradationPolicyModeStrict
	default:
		return DegradationPolicyModeLenient
	}
}

func (p DegradationPolicy) Mode() DegradationPolicyMode {
	return p.mode
}

// IsStrict indicates whether the policy rejects degraded states.
func (p DegradationPolicy) IsStrict() bool {
	return p.mode == DegradationPolicyModeStrict
}

// AllowsFallback reports whether processing may continue after reason occurred.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	return !p.IsStrict()
}
