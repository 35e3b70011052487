package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("settlement input is invalid")
	ErrNonceReplayed       = errors.New("payment nonce has already been consumed")
	ErrWalletNotConfigured = errors.New("required recipient wallet is not configured")
	ErrInvalidSplit        = errors.New("revenue split percentages are invalid")
	ErrPaymentRejected     = errors.New("payment authorization rejected")
	ErrVoteNotFound        = errors.New("clip vote not found")
	ErrTipNotFound         = errors.New("series tip not found")
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrRefundExists        = errors.New("an open refund already exists for this payment")
)
