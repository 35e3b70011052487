package application

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

var (
	hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	noncePattern      = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	amountPattern     = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)
)

func reject(code string, reason string) ports.VerificationResult {
	return ports.VerificationResult{Valid: false, Code: code, Reason: reason}
}

// verifyAuthorization runs every business check in order and fails closed on
// the first violation. The facilitator is consulted last, and only for
// signature recovery; all other rules are decided here.
func (s Service) verifyAuthorization(ctx context.Context, auth entities.PaymentAuthorization, expectedCents int64, cfg ports.SettlementConfig, now time.Time) (ports.VerificationResult, error) {
	if auth.Version != cfg.ProtocolVersion {
		return reject(ports.RejectVersionMismatch, fmt.Sprintf("unsupported protocol version %d", auth.Version)), nil
	}
	if auth.Scheme != cfg.Scheme {
		return reject(ports.RejectSchemeMismatch, fmt.Sprintf("unsupported scheme %q", auth.Scheme)), nil
	}
	if !networkAllowed(auth.Network, cfg.AllowedNetworks) {
		return reject(ports.RejectNetworkUnsupported, fmt.Sprintf("network %q is not accepted", auth.Network)), nil
	}
	if !strings.EqualFold(auth.PayTo, cfg.PlatformAddress) {
		return reject(ports.RejectRecipientMismatch, "authorization is not addressed to the platform"), nil
	}

	// The value travels as a canonical integer string of cents. Anything
	// else, including leading zeros, hex, or scientific notation, is
	// malformed rather than coerced.
	if !amountPattern.MatchString(auth.Value) {
		return reject(ports.RejectAmountMalformed, "value must be a canonical integer string of cents"), nil
	}
	cents, err := strconv.ParseInt(auth.Value, 10, 64)
	if err != nil {
		return reject(ports.RejectAmountMalformed, "value does not fit in 64 bits"), nil
	}
	if cents != expectedCents {
		return reject(ports.RejectAmountMismatch, fmt.Sprintf("expected %d cents, authorization carries %d", expectedCents, cents)), nil
	}

	if now.Before(auth.ValidAfter) {
		return reject(ports.RejectWindowNotStarted, "authorization validity window has not started"), nil
	}
	if !now.Before(auth.ValidBefore) {
		return reject(ports.RejectWindowExpired, "authorization validity window has expired"), nil
	}
	if auth.ValidBefore.Sub(auth.ValidAfter) > cfg.MaxValidityWindow {
		return reject(ports.RejectWindowTooLong, fmt.Sprintf("validity window exceeds %s", cfg.MaxValidityWindow)), nil
	}

	if !hexAddressPattern.MatchString(auth.From) {
		return reject(ports.RejectAddressMalformed, "payer address is not a valid hex address"), nil
	}
	if !hexAddressPattern.MatchString(auth.PayTo) {
		return reject(ports.RejectAddressMalformed, "recipient address is not a valid hex address"), nil
	}
	if !noncePattern.MatchString(auth.Nonce) {
		return reject(ports.RejectNonceMalformed, "nonce is not a 32-byte hex string"), nil
	}

	ok, err := s.Facilitator.VerifySignature(ctx, auth)
	if err != nil {
		return ports.VerificationResult{}, fmt.Errorf("facilitator signature verification: %w", err)
	}
	if !ok {
		return reject(ports.RejectSignatureInvalid, "signature does not recover to the payer address"), nil
	}

	return ports.VerificationResult{Valid: true}, nil
}

func networkAllowed(network string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == network {
			return true
		}
	}
	return false
}
