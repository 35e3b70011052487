package ports

import (
	"context"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"

	contractsv1 "backlot/contracts/gen/events/v1"
)

// SettlementConfig is the runtime configuration snapshot read fresh on every
// verify/settle call.
type SettlementConfig struct {
	ProtocolVersion   int
	Scheme            string
	AllowedNetworks   []string
	PlatformAddress   string
	PlatformWallet    string
	CreatorPct        int
	PlatformPct       int
	AgentPct          int
	MaxValidityWindow time.Duration
	PayoutMaxRetries  int
	ClipVoteCents     int64
}

type ConfigProvider interface {
	SettlementConfig(ctx context.Context) (SettlementConfig, error)
}

// VerificationResult is returned instead of an error so the request path can
// surface a precise rejection reason without crashing. Reason never echoes
// signature material.
type VerificationResult struct {
	Valid  bool
	Code   string
	Reason string
}

// Rejection codes for VerificationResult.Code.
const (
	RejectVersionMismatch    = "version_mismatch"
	RejectSchemeMismatch     = "scheme_mismatch"
	RejectNetworkUnsupported = "network_unsupported"
	RejectRecipientMismatch  = "recipient_mismatch"
	RejectAmountMalformed    = "amount_malformed"
	RejectAmountMismatch     = "amount_mismatch"
	RejectWindowNotStarted   = "window_not_started"
	RejectWindowExpired      = "window_expired"
	RejectWindowTooLong      = "window_too_long"
	RejectAddressMalformed   = "address_malformed"
	RejectNonceMalformed     = "nonce_malformed"
	RejectSignatureInvalid   = "signature_invalid"
	RejectNonceReplayed      = "nonce_replayed"
)

// SplitResult is the deterministic three-way division of a payment. Creator
// absorbs the rounding remainder, never platform or agent.
type SplitResult struct {
	CreatorCents  int64
	PlatformCents int64
	AgentCents    int64
}

type ClipVoteInput struct {
	WorkID        string
	SeriesID      string
	CreatorWallet string
	AgentWallet   string
}

type SeriesTipInput struct {
	SeriesID      string
	CreatorWallet string
	AgentWallet   string
	AmountCents   int64
}

// Facilitator performs cryptographic signature recovery for a payment
// authorization. It is authoritative for signature math only; every business
// rule stays in this context.
type Facilitator interface {
	VerifySignature(ctx context.Context, authorization entities.PaymentAuthorization) (bool, error)
}

// TransferClient moves settled value to a recipient wallet.
type TransferClient interface {
	Transfer(ctx context.Context, wallet string, amountCents int64, reference string) (string, error)
}

type Repository interface {
	// RecordClipVote consumes the nonce and writes the vote plus its three
	// payouts in one transaction. A consumed nonce returns ErrNonceReplayed
	// and leaves nothing persisted.
	RecordClipVote(ctx context.Context, vote entities.ClipVote, payouts []entities.Payout) error
	RecordSeriesTip(ctx context.Context, tip entities.SeriesTip, payouts []entities.Payout) error
	GetClipVote(ctx context.Context, voteID string) (entities.ClipVote, error)
	GetSeriesTip(ctx context.Context, tipID string) (entities.SeriesTip, error)
	// ListDuePayouts returns pending payouts plus failed payouts still under
	// the retry ceiling.
	ListDuePayouts(ctx context.Context, maxRetries int, limit int) ([]entities.Payout, error)
	// ClaimPayout is a compare-and-set from the given status to processing.
	ClaimPayout(ctx context.Context, payoutID string, from entities.PayoutStatus, now time.Time) (bool, error)
	MarkPayoutCompleted(ctx context.Context, payoutID string, transferHash string, now time.Time) error
	MarkPayoutFailed(ctx context.Context, payoutID string, message string, now time.Time) (entities.Payout, error)
	GetOpenRefundByNonce(ctx context.Context, nonce string) (entities.Refund, bool, error)
	// CreateRefund writes the refund and flips the source vote/tip to
	// refund_pending in one transaction. A second call for the same nonce
	// returns ErrRefundExists.
	CreateRefund(ctx context.Context, refund entities.Refund) error
	CountVotesByWork(ctx context.Context, workID string) (int, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
