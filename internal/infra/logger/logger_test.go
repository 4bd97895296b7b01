package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arklim/skills-audit/internal/core/domain"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"thandi.mokoena@treasury.gov.za": "tha***@treasury.gov.za",
		"ab@x.org":                       "ab***@x.org",
		"":                               "",
		"not-an-email":                   "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	cases := map[string]string{
		"+27821234567": "+27***4567",
		"0821234567":   "0***4567",
		"123":          "***",
	}
	for in, want := range cases {
		if got := MaskPhone(in); got != want {
			t.Errorf("MaskPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("196.21.4.10"); got != "196.21.*.*" {
		t.Fatalf("unexpected ipv4 mask %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected ipv6 mask %q", got)
	}
}

func TestEnrichAddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey{}, "trace-1")
	ctx = domain.ContextWithIdentity(ctx, domain.Identity{UserID: "u-1", Role: domain.RoleEmployee})

	Enrich(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["trace_id"] != "trace-1" || fields["user_id"] != "u-1" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
