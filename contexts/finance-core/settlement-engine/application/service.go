package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

// Service settles paid clip votes and series tips. Every settlement verifies
// the authorization, checks that all three recipient wallets are known before
// anything is persisted, and writes the vote/tip plus its split payouts in a
// single transaction keyed on the payment nonce.
type Service struct {
	Repo        ports.Repository
	Facilitator ports.Facilitator
	Config      ports.ConfigProvider
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

// RecordClipVote settles one paid vote on a produced clip. A non-nil error
// means infrastructure failed; a rejected payment comes back as an invalid
// VerificationResult with a nil error.
func (s Service) RecordClipVote(ctx context.Context, auth entities.PaymentAuthorization, input ports.ClipVoteInput) (entities.ClipVote, ports.VerificationResult, error) {
	logger := ResolveLogger(s.Logger)
	now := s.now()

	if input.WorkID == "" || input.SeriesID == "" {
		return entities.ClipVote{}, ports.VerificationResult{}, fmt.Errorf("%w: work id and series id are required", domainerrors.ErrInvalidInput)
	}

	cfg, err := s.Config.SettlementConfig(ctx)
	if err != nil {
		return entities.ClipVote{}, ports.VerificationResult{}, fmt.Errorf("settlement config snapshot: %w", err)
	}

	result, err := s.verifyAuthorization(ctx, auth, cfg.ClipVoteCents, cfg, now)
	if err != nil {
		return entities.ClipVote{}, ports.VerificationResult{}, err
	}
	if !result.Valid {
		s.logRejection(logger, "clip_vote", auth, result)
		return entities.ClipVote{}, result, nil
	}

	split, err := s.splitForWallets(cfg, cfg.ClipVoteCents, input.CreatorWallet, input.AgentWallet)
	if err != nil {
		return entities.ClipVote{}, ports.VerificationResult{}, err
	}

	voteID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.ClipVote{}, ports.VerificationResult{}, fmt.Errorf("generate vote id: %w", err)
	}
	vote := entities.ClipVote{
		VoteID:        voteID,
		WorkID:        input.WorkID,
		SeriesID:      input.SeriesID,
		VoterAddress:  auth.From,
		AmountCents:   cfg.ClipVoteCents,
		Nonce:         auth.Nonce,
		PaymentStatus: entities.PaymentStatusSettled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	payouts, err := s.buildPayouts(ctx, entities.SourceKindClipVote, voteID, auth.Nonce, split, cfg, input.CreatorWallet, input.AgentWallet, now)
	if err != nil {
		return entities.ClipVote{}, ports.VerificationResult{}, err
	}

	if err := s.Repo.RecordClipVote(ctx, vote, payouts); err != nil {
		if errors.Is(err, domainerrors.ErrNonceReplayed) {
			s.logRejection(logger, "clip_vote", auth, ports.VerificationResult{Code: ports.RejectNonceReplayed})
			return entities.ClipVote{}, reject(ports.RejectNonceReplayed, "payment nonce has already been consumed"), nil
		}
		return entities.ClipVote{}, ports.VerificationResult{}, fmt.Errorf("record clip vote: %w", err)
	}

	s.emitSettled(ctx, logger, "settlement.payment.settled", voteID, map[string]any{
		"source_kind":    string(entities.SourceKindClipVote),
		"source_id":      voteID,
		"work_id":        input.WorkID,
		"series_id":      input.SeriesID,
		"amount_cents":   cfg.ClipVoteCents,
		"creator_cents":  split.CreatorCents,
		"platform_cents": split.PlatformCents,
		"agent_cents":    split.AgentCents,
	}, now)

	logger.Info("clip vote settled",
		"event", "clip_vote_settled",
		"module", "finance-core/settlement-engine",
		"layer", "application",
		"vote_id", voteID,
		"work_id", input.WorkID,
		"amount_cents", cfg.ClipVoteCents,
	)
	return vote, ports.VerificationResult{Valid: true}, nil
}

// RecordSeriesTip settles one paid tip on a series. Unlike votes, the tip
// amount is caller-chosen and the authorization must match it exactly.
func (s Service) RecordSeriesTip(ctx context.Context, auth entities.PaymentAuthorization, input ports.SeriesTipInput) (entities.SeriesTip, ports.VerificationResult, error) {
	logger := ResolveLogger(s.Logger)
	now := s.now()

	if input.SeriesID == "" {
		return entities.SeriesTip{}, ports.VerificationResult{}, fmt.Errorf("%w: series id is required", domainerrors.ErrInvalidInput)
	}
	if input.AmountCents <= 0 {
		return entities.SeriesTip{}, ports.VerificationResult{}, fmt.Errorf("%w: tip amount must be positive", domainerrors.ErrInvalidInput)
	}

	cfg, err := s.Config.SettlementConfig(ctx)
	if err != nil {
		return entities.SeriesTip{}, ports.VerificationResult{}, fmt.Errorf("settlement config snapshot: %w", err)
	}

	result, err := s.verifyAuthorization(ctx, auth, input.AmountCents, cfg, now)
	if err != nil {
		return entities.SeriesTip{}, ports.VerificationResult{}, err
	}
	if !result.Valid {
		s.logRejection(logger, "series_tip", auth, result)
		return entities.SeriesTip{}, result, nil
	}

	split, err := s.splitForWallets(cfg, input.AmountCents, input.CreatorWallet, input.AgentWallet)
	if err != nil {
		return entities.SeriesTip{}, ports.VerificationResult{}, err
	}

	tipID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.SeriesTip{}, ports.VerificationResult{}, fmt.Errorf("generate tip id: %w", err)
	}
	tip := entities.SeriesTip{
		TipID:         tipID,
		SeriesID:      input.SeriesID,
		TipperAddress: auth.From,
		AmountCents:   input.AmountCents,
		Nonce:         auth.Nonce,
		PaymentStatus: entities.PaymentStatusSettled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	payouts, err := s.buildPayouts(ctx, entities.SourceKindSeriesTip, tipID, auth.Nonce, split, cfg, input.CreatorWallet, input.AgentWallet, now)
	if err != nil {
		return entities.SeriesTip{}, ports.VerificationResult{}, err
	}

	if err := s.Repo.RecordSeriesTip(ctx, tip, payouts); err != nil {
		if errors.Is(err, domainerrors.ErrNonceReplayed) {
			s.logRejection(logger, "series_tip", auth, ports.VerificationResult{Code: ports.RejectNonceReplayed})
			return entities.SeriesTip{}, reject(ports.RejectNonceReplayed, "payment nonce has already been consumed"), nil
		}
		return entities.SeriesTip{}, ports.VerificationResult{}, fmt.Errorf("record series tip: %w", err)
	}

	s.emitSettled(ctx, logger, "settlement.payment.settled", tipID, map[string]any{
		"source_kind":    string(entities.SourceKindSeriesTip),
		"source_id":      tipID,
		"series_id":      input.SeriesID,
		"amount_cents":   input.AmountCents,
		"creator_cents":  split.CreatorCents,
		"platform_cents": split.PlatformCents,
		"agent_cents":    split.AgentCents,
	}, now)

	logger.Info("series tip settled",
		"event", "series_tip_settled",
		"module", "finance-core/settlement-engine",
		"layer", "application",
		"tip_id", tipID,
		"series_id", input.SeriesID,
		"amount_cents", input.AmountCents,
	)
	return tip, ports.VerificationResult{Valid: true}, nil
}

// VoteCount reports how many settled votes one produced work has.
func (s Service) VoteCount(ctx context.Context, workID string) (int, error) {
	if workID == "" {
		return 0, fmt.Errorf("%w: work id is required", domainerrors.ErrInvalidInput)
	}
	return s.Repo.CountVotesByWork(ctx, workID)
}

// splitForWallets fails closed: if any of the three destination wallets is
// missing the payment is not persisted at all, so nothing needs refunding.
func (s Service) splitForWallets(cfg ports.SettlementConfig, totalCents int64, creatorWallet string, agentWallet string) (ports.SplitResult, error) {
	if cfg.PlatformWallet == "" {
		return ports.SplitResult{}, fmt.Errorf("%w: platform wallet", domainerrors.ErrWalletNotConfigured)
	}
	if creatorWallet == "" {
		return ports.SplitResult{}, fmt.Errorf("%w: creator wallet", domainerrors.ErrWalletNotConfigured)
	}
	if agentWallet == "" {
		return ports.SplitResult{}, fmt.Errorf("%w: agent wallet", domainerrors.ErrWalletNotConfigured)
	}
	return Split(totalCents, cfg.CreatorPct, cfg.PlatformPct, cfg.AgentPct)
}

func (s Service) buildPayouts(
	ctx context.Context,
	kind entities.SourceKind,
	sourceID string,
	nonce string,
	split ports.SplitResult,
	cfg ports.SettlementConfig,
	creatorWallet string,
	agentWallet string,
	now time.Time,
) ([]entities.Payout, error) {
	legs := []struct {
		recipient entities.PayoutRecipient
		wallet    string
		cents     int64
	}{
		{entities.PayoutRecipientCreator, creatorWallet, split.CreatorCents},
		{entities.PayoutRecipientPlatform, cfg.PlatformWallet, split.PlatformCents},
		{entities.PayoutRecipientAgent, agentWallet, split.AgentCents},
	}

	payouts := make([]entities.Payout, 0, len(legs))
	for _, leg := range legs {
		payoutID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate payout id: %w", err)
		}
		payouts = append(payouts, entities.Payout{
			PayoutID:      payoutID,
			SourceKind:    kind,
			SourceID:      sourceID,
			Nonce:         nonce,
			Recipient:     leg.recipient,
			WalletAddress: leg.wallet,
			AmountCents:   leg.cents,
			Status:        entities.PayoutStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return payouts, nil
}

func (s Service) emitSettled(ctx context.Context, logger *slog.Logger, eventType string, entityID string, payload map[string]any, now time.Time) {
	if s.Outbox == nil {
		return
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err == nil {
		var envelope ports.EventEnvelope
		envelope, err = newSettlementEnvelope(eventID, eventType, entityID, now, payload)
		if err == nil {
			err = s.Outbox.AppendOutbox(ctx, envelope)
		}
	}
	if err != nil {
		logger.Error("settlement event append failed",
			"event", "settlement_outbox_append_failed",
			"module", "finance-core/settlement-engine",
			"layer", "application",
			"event_type", eventType,
			"entity_id", entityID,
			"error", err.Error(),
		)
	}
}

func (s Service) logRejection(logger *slog.Logger, surface string, auth entities.PaymentAuthorization, result ports.VerificationResult) {
	logger.Warn("payment authorization rejected",
		"event", "payment_rejected",
		"module", "finance-core/settlement-engine",
		"layer", "application",
		"surface", surface,
		"code", result.Code,
		"network", auth.Network,
		"payer", auth.From,
	)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
