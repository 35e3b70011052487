package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backlot/contexts/finance-core/settlement-engine/application"
	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

// PayoutProcessor drains due payouts through the transfer client. A payout
// that fails past the retry ceiling triggers a single refund for its source
// payment; concurrent processors racing on the same payout are serialized by
// the claim compare-and-set.
type PayoutProcessor struct {
	Repo      ports.Repository
	Transfers ports.TransferClient
	Config    ports.ConfigProvider
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce processes a bounded batch of due payouts. Individual payout
// failures are absorbed and retried on later cycles; only infrastructure
// errors propagate.
func (p PayoutProcessor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(p.Logger)

	if p.Transfers == nil {
		logger.Warn("transfer client not configured, skipping payout cycle",
			"event", "payout_transfers_unconfigured",
			"module", "finance-core/settlement-engine",
			"layer", "worker",
		)
		return nil
	}

	cfg, err := p.Config.SettlementConfig(ctx)
	if err != nil {
		logger.Error("settlement config snapshot failed",
			"event", "settlement_config_failed",
			"module", "finance-core/settlement-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	limit := p.BatchSize
	if limit <= 0 {
		limit = 50
	}

	due, err := p.Repo.ListDuePayouts(ctx, cfg.PayoutMaxRetries, limit)
	if err != nil {
		logger.Error("due payout list failed",
			"event", "payout_list_failed",
			"module", "finance-core/settlement-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(due) == 0 {
		return nil
	}

	completed := 0
	failed := 0
	refunded := 0
	for _, payout := range due {
		outcome, err := p.processPayout(ctx, logger, cfg, payout)
		if err != nil {
			logger.Error("payout processing failed",
				"event", "payout_processing_failed",
				"module", "finance-core/settlement-engine",
				"layer", "worker",
				"payout_id", payout.PayoutID,
				"error", err.Error(),
			)
			continue
		}
		switch outcome {
		case payoutOutcomeCompleted:
			completed++
		case payoutOutcomeFailed:
			failed++
		case payoutOutcomeRefunded:
			failed++
			refunded++
		}
	}

	logger.Info("payout cycle completed",
		"event", "payout_cycle_completed",
		"module", "finance-core/settlement-engine",
		"layer", "worker",
		"due_count", len(due),
		"completed_count", completed,
		"failed_count", failed,
		"refunds_created", refunded,
	)
	return nil
}

type payoutOutcome int

const (
	payoutOutcomeSkipped payoutOutcome = iota
	payoutOutcomeCompleted
	payoutOutcomeFailed
	payoutOutcomeRefunded
)

func (p PayoutProcessor) processPayout(ctx context.Context, logger *slog.Logger, cfg ports.SettlementConfig, payout entities.Payout) (payoutOutcome, error) {
	now := p.now()

	claimed, err := p.Repo.ClaimPayout(ctx, payout.PayoutID, payout.Status, now)
	if err != nil {
		return payoutOutcomeSkipped, fmt.Errorf("claim payout: %w", err)
	}
	if !claimed {
		return payoutOutcomeSkipped, nil
	}

	hash, transferErr := p.Transfers.Transfer(ctx, payout.WalletAddress, payout.AmountCents, payout.PayoutID)
	if transferErr == nil {
		if err := p.Repo.MarkPayoutCompleted(ctx, payout.PayoutID, hash, p.now()); err != nil {
			return payoutOutcomeSkipped, fmt.Errorf("mark payout completed: %w", err)
		}
		return payoutOutcomeCompleted, nil
	}

	updated, err := p.Repo.MarkPayoutFailed(ctx, payout.PayoutID, transferErr.Error(), p.now())
	if err != nil {
		return payoutOutcomeSkipped, fmt.Errorf("mark payout failed: %w", err)
	}
	logger.Warn("payout transfer failed",
		"event", "payout_transfer_failed",
		"module", "finance-core/settlement-engine",
		"layer", "worker",
		"payout_id", payout.PayoutID,
		"recipient", string(payout.Recipient),
		"retry_count", updated.RetryCount,
		"error", transferErr.Error(),
	)

	if updated.RetryCount <= cfg.PayoutMaxRetries {
		return payoutOutcomeFailed, nil
	}

	created, err := p.ensureRefund(ctx, logger, updated)
	if err != nil {
		return payoutOutcomeFailed, err
	}
	if created {
		return payoutOutcomeRefunded, nil
	}
	return payoutOutcomeFailed, nil
}

// ensureRefund opens at most one refund per payment nonce, no matter how many
// of the payment's payout legs exhaust their retries.
func (p PayoutProcessor) ensureRefund(ctx context.Context, logger *slog.Logger, payout entities.Payout) (bool, error) {
	_, exists, err := p.Repo.GetOpenRefundByNonce(ctx, payout.Nonce)
	if err != nil {
		return false, fmt.Errorf("look up refund by nonce: %w", err)
	}
	if exists {
		return false, nil
	}

	payer, amount, voteID, tipID, err := p.refundSource(ctx, payout)
	if err != nil {
		return false, err
	}

	refundID, err := p.IDGen.NewID(ctx)
	if err != nil {
		return false, fmt.Errorf("generate refund id: %w", err)
	}
	now := p.now()
	refund := entities.Refund{
		RefundID:     refundID,
		ClipVoteID:   voteID,
		SeriesTipID:  tipID,
		PayerAddress: payer,
		AmountCents:  amount,
		Nonce:        payout.Nonce,
		Status:       entities.RefundStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := p.Repo.CreateRefund(ctx, refund); err != nil {
		if errors.Is(err, domainerrors.ErrRefundExists) {
			return false, nil
		}
		return false, fmt.Errorf("create refund: %w", err)
	}

	p.emitRefundCreated(ctx, logger, refund, payout)

	logger.Info("refund opened for exhausted payout",
		"event", "payout_refund_created",
		"module", "finance-core/settlement-engine",
		"layer", "worker",
		"refund_id", refundID,
		"payout_id", payout.PayoutID,
		"amount_cents", amount,
	)
	return true, nil
}

// refundSource resolves the original payment so the refund covers the full
// amount back to the payer, not just the failed leg.
func (p PayoutProcessor) refundSource(ctx context.Context, payout entities.Payout) (string, int64, *string, *string, error) {
	switch payout.SourceKind {
	case entities.SourceKindClipVote:
		vote, err := p.Repo.GetClipVote(ctx, payout.SourceID)
		if err != nil {
			return "", 0, nil, nil, fmt.Errorf("load clip vote %s: %w", payout.SourceID, err)
		}
		voteID := vote.VoteID
		return vote.VoterAddress, vote.AmountCents, &voteID, nil, nil
	case entities.SourceKindSeriesTip:
		tip, err := p.Repo.GetSeriesTip(ctx, payout.SourceID)
		if err != nil {
			return "", 0, nil, nil, fmt.Errorf("load series tip %s: %w", payout.SourceID, err)
		}
		tipID := tip.TipID
		return tip.TipperAddress, tip.AmountCents, nil, &tipID, nil
	default:
		return "", 0, nil, nil, fmt.Errorf("%w: unknown payout source kind %q", domainerrors.ErrInvalidInput, payout.SourceKind)
	}
}

func (p PayoutProcessor) emitRefundCreated(ctx context.Context, logger *slog.Logger, refund entities.Refund, payout entities.Payout) {
	if p.Outbox == nil {
		return
	}
	eventID, err := p.IDGen.NewID(ctx)
	if err == nil {
		payload := map[string]any{
			"refund_id":    refund.RefundID,
			"source_kind":  string(payout.SourceKind),
			"source_id":    payout.SourceID,
			"amount_cents": refund.AmountCents,
		}
		var envelope ports.EventEnvelope
		envelope, err = application.NewRefundEnvelope(eventID, refund.RefundID, refund.CreatedAt, payload)
		if err == nil {
			err = p.Outbox.AppendOutbox(ctx, envelope)
		}
	}
	if err != nil {
		logger.Error("refund event append failed",
			"event", "settlement_outbox_append_failed",
			"module", "finance-core/settlement-engine",
			"layer", "worker",
			"refund_id", refund.RefundID,
			"error", err.Error(),
		)
	}
}

func (p PayoutProcessor) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}
