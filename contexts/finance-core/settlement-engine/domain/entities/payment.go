package entities

import "time"

// PaymentAuthorization is the decoded, externally-signed single-use intent to
// transfer value to the platform address. The nonce makes it single-use; the
// validity window bounds when it may settle.
type PaymentAuthorization struct {
	Version     int
	Scheme      string
	Network     string
	PayTo       string
	From        string
	Value       string // integer string in cents, never parsed as float
	ValidAfter  time.Time
	ValidBefore time.Time
	Nonce       string
	Signature   string
}

type PaymentStatus string

const (
	PaymentStatusSettled       PaymentStatus = "settled"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusRefunded      PaymentStatus = "refunded"
)

// ClipVote is a paid human vote on one produced clip variant.
type ClipVote struct {
	VoteID        string
	WorkID        string
	SeriesID      string
	VoterAddress  string
	AmountCents   int64
	Nonce         string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SeriesTip is a paid human tip on a whole series.
type SeriesTip struct {
	TipID         string
	SeriesID      string
	TipperAddress string
	AmountCents   int64
	Nonce         string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
