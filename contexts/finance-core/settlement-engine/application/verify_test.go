package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

type stubFacilitator struct {
	valid bool
	err   error
	calls int
}

func (f *stubFacilitator) VerifySignature(_ context.Context, _ entities.PaymentAuthorization) (bool, error) {
	f.calls++
	return f.valid, f.err
}

const (
	platformAddr = "0x00000000000000000000000000000000000000aa"
	payerAddr    = "0x00000000000000000000000000000000000000bb"
	validNonce   = "0x" + "ab" + "cd" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789ab"
)

func verifyConfig() ports.SettlementConfig {
	return ports.SettlementConfig{
		ProtocolVersion:   1,
		Scheme:            "exact",
		AllowedNetworks:   []string{"base"},
		PlatformAddress:   platformAddr,
		MaxValidityWindow: 5 * time.Minute,
	}
}

func validAuthorization(now time.Time) entities.PaymentAuthorization {
	return entities.PaymentAuthorization{
		Version:     1,
		Scheme:      "exact",
		Network:     "base",
		PayTo:       platformAddr,
		From:        payerAddr,
		Value:       "25",
		ValidAfter:  now.Add(-time.Minute),
		ValidBefore: now.Add(2 * time.Minute),
		Nonce:       validNonce,
		Signature:   "0xsigned",
	}
}

func verifyService(facilitator ports.Facilitator) Service {
	return Service{Facilitator: facilitator}
}

func TestVerifyAcceptsValidAuthorization(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fac := &stubFacilitator{valid: true}
	svc := verifyService(fac)

	result, err := svc.verifyAuthorization(context.Background(), validAuthorization(now), 25, verifyConfig(), now)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got %+v", result)
	}
	if fac.calls != 1 {
		t.Fatalf("expected exactly one facilitator call, got %d", fac.calls)
	}
}

func TestVerifyRejectsBeforeFacilitatorOnBusinessRuleFailure(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fac := &stubFacilitator{valid: true}
	svc := verifyService(fac)

	auth := validAuthorization(now)
	auth.Network = "solana"

	result, err := svc.verifyAuthorization(context.Background(), auth, 25, verifyConfig(), now)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Valid || result.Code != ports.RejectNetworkUnsupported {
		t.Fatalf("expected network rejection, got %+v", result)
	}
	if fac.calls != 0 {
		t.Fatalf("facilitator must not be consulted after a business rule failure")
	}
}

func TestVerifyRejectionCodes(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*entities.PaymentAuthorization)
		code   string
	}{
		{"version mismatch", func(a *entities.PaymentAuthorization) { a.Version = 2 }, ports.RejectVersionMismatch},
		{"scheme mismatch", func(a *entities.PaymentAuthorization) { a.Scheme = "stream" }, ports.RejectSchemeMismatch},
		{"wrong recipient", func(a *entities.PaymentAuthorization) {
			a.PayTo = payerAddr
		}, ports.RejectRecipientMismatch},
		{"leading zeros", func(a *entities.PaymentAuthorization) { a.Value = "025" }, ports.RejectAmountMalformed},
		{"hex amount", func(a *entities.PaymentAuthorization) { a.Value = "0x19" }, ports.RejectAmountMalformed},
		{"float amount", func(a *entities.PaymentAuthorization) { a.Value = "25.0" }, ports.RejectAmountMalformed},
		{"scientific amount", func(a *entities.PaymentAuthorization) { a.Value = "2.5e1" }, ports.RejectAmountMalformed},
		{"negative amount", func(a *entities.PaymentAuthorization) { a.Value = "-25" }, ports.RejectAmountMalformed},
		{"wrong amount", func(a *entities.PaymentAuthorization) { a.Value = "26" }, ports.RejectAmountMismatch},
		{"window not started", func(a *entities.PaymentAuthorization) {
			a.ValidAfter = now.Add(time.Minute)
			a.ValidBefore = now.Add(3 * time.Minute)
		}, ports.RejectWindowNotStarted},
		{"window expired", func(a *entities.PaymentAuthorization) {
			a.ValidAfter = now.Add(-3 * time.Minute)
			a.ValidBefore = now.Add(-time.Minute)
		}, ports.RejectWindowExpired},
		{"window too long", func(a *entities.PaymentAuthorization) {
			a.ValidAfter = now.Add(-time.Minute)
			a.ValidBefore = now.Add(10 * time.Minute)
		}, ports.RejectWindowTooLong},
		{"malformed payer", func(a *entities.PaymentAuthorization) { a.From = "not-an-address" }, ports.RejectAddressMalformed},
		{"short payer", func(a *entities.PaymentAuthorization) { a.From = "0xabc" }, ports.RejectAddressMalformed},
		{"malformed nonce", func(a *entities.PaymentAuthorization) { a.Nonce = "0x1234" }, ports.RejectNonceMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fac := &stubFacilitator{valid: true}
			svc := verifyService(fac)
			auth := validAuthorization(now)
			tc.mutate(&auth)

			result, err := svc.verifyAuthorization(context.Background(), auth, 25, verifyConfig(), now)
			if err != nil {
				t.Fatalf("verify failed: %v", err)
			}
			if result.Valid {
				t.Fatalf("expected rejection")
			}
			if result.Code != tc.code {
				t.Fatalf("expected code %s, got %s (%s)", tc.code, result.Code, result.Reason)
			}
		})
	}
}

func TestVerifyExpiredWindowBeatsWindowTooLong(t *testing.T) {
	// An already-expired authorization reports expiry even when its total
	// window also exceeds the maximum.
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := verifyService(&stubFacilitator{valid: true})

	auth := validAuthorization(now)
	auth.ValidAfter = now.Add(-time.Hour)
	auth.ValidBefore = now.Add(-time.Minute)

	result, err := svc.verifyAuthorization(context.Background(), auth, 25, verifyConfig(), now)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Code != ports.RejectWindowExpired {
		t.Fatalf("expected window_expired, got %s", result.Code)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := verifyService(&stubFacilitator{valid: false})

	result, err := svc.verifyAuthorization(context.Background(), validAuthorization(now), 25, verifyConfig(), now)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if result.Valid || result.Code != ports.RejectSignatureInvalid {
		t.Fatalf("expected signature rejection, got %+v", result)
	}
}

func TestVerifyReasonNeverEchoesSignature(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := verifyService(&stubFacilitator{valid: false})

	auth := validAuthorization(now)
	auth.Signature = "0xdeadbeefsecret"

	result, err := svc.verifyAuthorization(context.Background(), auth, 25, verifyConfig(), now)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if strings.Contains(result.Reason, "deadbeef") {
		t.Fatalf("rejection reason echoes signature material: %q", result.Reason)
	}
}
