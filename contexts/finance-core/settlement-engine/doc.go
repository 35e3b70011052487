// Package settlementengine verifies externally-signed payment authorizations
// and settles them into clip votes and series tips with a deterministic
// three-way revenue split.
//
// The nonce is the idempotency key for the whole payment: it is consumed in
// the same transaction that persists the vote or tip and its payout legs, so
// a replayed authorization either fully settles once or not at all. Refunds
// are likewise keyed on the nonce, one per exhausted payment.
package settlementengine
