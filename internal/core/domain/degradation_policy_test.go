package domain

import "testing"

func TestParseDegradationPolicyMode(t *testing.T) {
	cases := map[string]DegradationPolicyMode{
		"strict":   DegradationPolicyModeStrict,
		" STRICT ": DegradationPolicyModeStrict,
		"lenient":  DegradationPolicyModeLenient,
		"":         DegradationPolicyModeLenient,
		"unknown":  DegradationPolicyModeLenient,
	}
	for input, want := range cases {
		if got := ParseDegradationPolicyMode(input); got != want {
			t.Fatalf("ParseDegradationPolicyMode(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestDegradationPolicyFallback(t *testing.T) {
	if !NewDegradationPolicy("").AllowsFallback(DegradationReasonRateLimitStore) {
		t.Fatal("lenient policy should allow fallback")
	}
	strict := NewDegradationPolicy(DegradationPolicyModeStrict)
	if strict.AllowsFallback(DegradationReasonLoginThrottle) {
		t.Fatal("strict policy should reject fallback")
	}
	if strict.Mode() != DegradationPolicyModeStrict {
		t.Fatalf("unexpected mode %s", strict.Mode())
	}
}
