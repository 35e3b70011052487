package entities

import "time"

type PayoutRecipient string

const (
	PayoutRecipientCreator  PayoutRecipient = "creator"
	PayoutRecipientPlatform PayoutRecipient = "platform"
	PayoutRecipientAgent    PayoutRecipient = "agent"
)

type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

type SourceKind string

const (
	SourceKindClipVote  SourceKind = "clip_vote"
	SourceKindSeriesTip SourceKind = "series_tip"
)

// Payout is one leg of a settled payment's three-way split. The three payouts
// derived from one payment always sum exactly to the original amount.
type Payout struct {
	PayoutID      string
	SourceKind    SourceKind
	SourceID      string
	Nonce         string
	Recipient     PayoutRecipient
	WalletAddress string
	AmountCents   int64
	Status        PayoutStatus
	RetryCount    int
	LastError     string
	TransferHash  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "pending"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusCompleted  RefundStatus = "completed"
	RefundStatusFailed     RefundStatus = "failed"
)

// Refund exists only after a payout exhausted its retries. It references
// exactly one of a clip vote or a series tip, never both and never neither.
type Refund struct {
	RefundID     string
	ClipVoteID   *string
	SeriesTipID  *string
	PayerAddress string
	AmountCents  int64
	Nonce        string
	Status       RefundStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r Refund) Open() bool {
	return r.Status == RefundStatusPending || r.Status == RefundStatusProcessing
}
