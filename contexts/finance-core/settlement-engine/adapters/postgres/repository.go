package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"backlot/contexts/finance-core/settlement-engine/domain/entities"
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// RecordClipVote consumes the payment nonce and writes the vote plus its
// payouts in one transaction. The unique index on the nonce ledger is the
// replay guard: a second settlement attempt with the same nonce rolls the
// whole transaction back.
func (r *Repository) RecordClipVote(ctx context.Context, vote entities.ClipVote, payouts []entities.Payout) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := nonceModel{
			Nonce:      vote.Nonce,
			SourceKind: string(entities.SourceKindClipVote),
			SourceID:   vote.VoteID,
			ConsumedAt: vote.CreatedAt.UTC(),
		}
		if err := tx.Create(&ledger).Error; err != nil {
			return err
		}
		row := clipVoteModelFromEntity(vote)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, payout := range payouts {
			payoutRow := payoutModelFromEntity(payout)
			if err := tx.Create(&payoutRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrNonceReplayed
		}
		return r.logError("settlement_repo_record_vote_failed", err, "vote_id", vote.VoteID)
	}
	return nil
}

func (r *Repository) RecordSeriesTip(ctx context.Context, tip entities.SeriesTip, payouts []entities.Payout) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := nonceModel{
			Nonce:      tip.Nonce,
			SourceKind: string(entities.SourceKindSeriesTip),
			SourceID:   tip.TipID,
			ConsumedAt: tip.CreatedAt.UTC(),
		}
		if err := tx.Create(&ledger).Error; err != nil {
			return err
		}
		row := seriesTipModelFromEntity(tip)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for _, payout := range payouts {
			payoutRow := payoutModelFromEntity(payout)
			if err := tx.Create(&payoutRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrNonceReplayed
		}
		return r.logError("settlement_repo_record_tip_failed", err, "tip_id", tip.TipID)
	}
	return nil
}

func (r *Repository) GetClipVote(ctx context.Context, voteID string) (entities.ClipVote, error) {
	var row clipVoteModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ClipVote{}, domainerrors.ErrVoteNotFound
		}
		return entities.ClipVote{}, r.logError("settlement_repo_get_vote_failed", err, "vote_id", voteID)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetSeriesTip(ctx context.Context, tipID string) (entities.SeriesTip, error) {
	var row seriesTipModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(tipID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.SeriesTip{}, domainerrors.ErrTipNotFound
		}
		return entities.SeriesTip{}, r.logError("settlement_repo_get_tip_failed", err, "tip_id", tipID)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListDuePayouts(ctx context.Context, maxRetries int, limit int) ([]entities.Payout, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []payoutModel
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND retry_count <= ?)",
			string(entities.PayoutStatusPending), string(entities.PayoutStatusFailed), maxRetries).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("settlement_repo_list_due_payouts_failed", err)
	}
	payouts := make([]entities.Payout, 0, len(rows))
	for _, row := range rows {
		payouts = append(payouts, row.toEntity())
	}
	return payouts, nil
}

func (r *Repository) ClaimPayout(ctx context.Context, payoutID string, from entities.PayoutStatus, now time.Time) (bool, error) {
	update := r.db.WithContext(ctx).Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(from)).
		Updates(map[string]any{
			"status":     string(entities.PayoutStatusProcessing),
			"updated_at": now.UTC(),
		})
	if update.Error != nil {
		return false, r.logError("settlement_repo_claim_payout_failed", update.Error, "payout_id", payoutID)
	}
	return update.RowsAffected > 0, nil
}

func (r *Repository) MarkPayoutCompleted(ctx context.Context, payoutID string, transferHash string, now time.Time) error {
	update := r.db.WithContext(ctx).Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Where("status = ?", string(entities.PayoutStatusProcessing)).
		Updates(map[string]any{
			"status":        string(entities.PayoutStatusCompleted),
			"transfer_hash": transferHash,
			"last_error":    "",
			"updated_at":    now.UTC(),
		})
	if update.Error != nil {
		return r.logError("settlement_repo_complete_payout_failed", update.Error, "payout_id", payoutID)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrPayoutNotFound
	}
	return nil
}

func (r *Repository) MarkPayoutFailed(ctx context.Context, payoutID string, message string, now time.Time) (entities.Payout, error) {
	update := r.db.WithContext(ctx).Model(&payoutModel{}).
		Where("id = ?", strings.TrimSpace(payoutID)).
		Updates(map[string]any{
			"status":      string(entities.PayoutStatusFailed),
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  message,
			"updated_at":  now.UTC(),
		})
	if update.Error != nil {
		return entities.Payout{}, r.logError("settlement_repo_fail_payout_failed", update.Error, "payout_id", payoutID)
	}
	if update.RowsAffected == 0 {
		return entities.Payout{}, domainerrors.ErrPayoutNotFound
	}

	var row payoutModel
	if err := r.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(payoutID)).First(&row).Error; err != nil {
		return entities.Payout{}, r.logError("settlement_repo_reload_payout_failed", err, "payout_id", payoutID)
	}
	return row.toEntity(), nil
}

func (r *Repository) GetOpenRefundByNonce(ctx context.Context, nonce string) (entities.Refund, bool, error) {
	var row refundModel
	err := r.db.WithContext(ctx).
		Where("nonce = ?", strings.TrimSpace(nonce)).
		Where("status IN ?", []string{string(entities.RefundStatusPending), string(entities.RefundStatusProcessing)}).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Refund{}, false, nil
		}
		return entities.Refund{}, false, r.logError("settlement_repo_get_refund_failed", err)
	}
	return row.toEntity(), true, nil
}

// CreateRefund writes the refund and flips the source payment to
// refund_pending in one transaction. The unique index on nonce keeps a
// payment with several exhausted payout legs down to a single refund.
func (r *Repository) CreateRefund(ctx context.Context, refund entities.Refund) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := refundModelFromEntity(refund)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		now := refund.CreatedAt.UTC()
		if refund.ClipVoteID != nil {
			return tx.Model(&clipVoteModel{}).
				Where("id = ?", *refund.ClipVoteID).
				Updates(map[string]any{
					"payment_status": string(entities.PaymentStatusRefundPending),
					"updated_at":     now,
				}).Error
		}
		if refund.SeriesTipID != nil {
			return tx.Model(&seriesTipModel{}).
				Where("id = ?", *refund.SeriesTipID).
				Updates(map[string]any{
					"payment_status": string(entities.PaymentStatusRefundPending),
					"updated_at":     now,
				}).Error
		}
		return domainerrors.ErrInvalidInput
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrRefundExists
		}
		return r.logError("settlement_repo_create_refund_failed", err, "refund_id", refund.RefundID)
	}
	return nil
}

func (r *Repository) CountVotesByWork(ctx context.Context, workID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&clipVoteModel{}).
		Where("work_id = ?", strings.TrimSpace(workID)).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("settlement_repo_count_votes_failed", err, "work_id", workID)
	}
	return int(count), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	row := outboxModel{
		ID:           uuid.NewString(),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("settlement_repo_append_outbox_failed", err, "event_type", envelope.EventType)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("settlement_repo_list_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	update := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Where("status = ?", outboxStatusPending).
		Updates(map[string]any{"status": outboxStatusPublished, "published_at": publishedAt.UTC()})
	if update.Error != nil {
		return r.logError("settlement_repo_mark_outbox_failed", update.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "finance-core/settlement-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("settlement repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type nonceModel struct {
	Nonce      string    `gorm:"column:nonce;primaryKey"`
	SourceKind string    `gorm:"column:source_kind"`
	SourceID   string    `gorm:"column:source_id"`
	ConsumedAt time.Time `gorm:"column:consumed_at"`
}

func (nonceModel) TableName() string {
	return "payment_nonces"
}

type clipVoteModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	WorkID        string    `gorm:"column:work_id;index"`
	SeriesID      string    `gorm:"column:series_id"`
	VoterAddress  string    `gorm:"column:voter_address"`
	AmountCents   int64     `gorm:"column:amount_cents"`
	Nonce         string    `gorm:"column:nonce;uniqueIndex"`
	PaymentStatus string    `gorm:"column:payment_status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (clipVoteModel) TableName() string {
	return "clip_votes"
}

func clipVoteModelFromEntity(vote entities.ClipVote) clipVoteModel {
	return clipVoteModel{
		ID:            strings.TrimSpace(vote.VoteID),
		WorkID:        vote.WorkID,
		SeriesID:      vote.SeriesID,
		VoterAddress:  vote.VoterAddress,
		AmountCents:   vote.AmountCents,
		Nonce:         vote.Nonce,
		PaymentStatus: string(vote.PaymentStatus),
		CreatedAt:     vote.CreatedAt.UTC(),
		UpdatedAt:     vote.UpdatedAt.UTC(),
	}
}

func (m clipVoteModel) toEntity() entities.ClipVote {
	return entities.ClipVote{
		VoteID:        m.ID,
		WorkID:        m.WorkID,
		SeriesID:      m.SeriesID,
		VoterAddress:  m.VoterAddress,
		AmountCents:   m.AmountCents,
		Nonce:         m.Nonce,
		PaymentStatus: entities.PaymentStatus(m.PaymentStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type seriesTipModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	SeriesID      string    `gorm:"column:series_id;index"`
	TipperAddress string    `gorm:"column:tipper_address"`
	AmountCents   int64     `gorm:"column:amount_cents"`
	Nonce         string    `gorm:"column:nonce;uniqueIndex"`
	PaymentStatus string    `gorm:"column:payment_status"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (seriesTipModel) TableName() string {
	return "series_tips"
}

func seriesTipModelFromEntity(tip entities.SeriesTip) seriesTipModel {
	return seriesTipModel{
		ID:            strings.TrimSpace(tip.TipID),
		SeriesID:      tip.SeriesID,
		TipperAddress: tip.TipperAddress,
		AmountCents:   tip.AmountCents,
		Nonce:         tip.Nonce,
		PaymentStatus: string(tip.PaymentStatus),
		CreatedAt:     tip.CreatedAt.UTC(),
		UpdatedAt:     tip.UpdatedAt.UTC(),
	}
}

func (m seriesTipModel) toEntity() entities.SeriesTip {
	return entities.SeriesTip{
		TipID:         m.ID,
		SeriesID:      m.SeriesID,
		TipperAddress: m.TipperAddress,
		AmountCents:   m.AmountCents,
		Nonce:         m.Nonce,
		PaymentStatus: entities.PaymentStatus(m.PaymentStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type payoutModel struct {
	ID            string    `gorm:"column:id;primaryKey"`
	SourceKind    string    `gorm:"column:source_kind"`
	SourceID      string    `gorm:"column:source_id;index"`
	Nonce         string    `gorm:"column:nonce;index"`
	Recipient     string    `gorm:"column:recipient"`
	WalletAddress string    `gorm:"column:wallet_address"`
	AmountCents   int64     `gorm:"column:amount_cents"`
	Status        string    `gorm:"column:status;index"`
	RetryCount    int       `gorm:"column:retry_count"`
	LastError     string    `gorm:"column:last_error"`
	TransferHash  string    `gorm:"column:transfer_hash"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (payoutModel) TableName() string {
	return "payouts"
}

func payoutModelFromEntity(payout entities.Payout) payoutModel {
	return payoutModel{
		ID:            strings.TrimSpace(payout.PayoutID),
		SourceKind:    string(payout.SourceKind),
		SourceID:      payout.SourceID,
		Nonce:         payout.Nonce,
		Recipient:     string(payout.Recipient),
		WalletAddress: payout.WalletAddress,
		AmountCents:   payout.AmountCents,
		Status:        string(payout.Status),
		RetryCount:    payout.RetryCount,
		LastError:     payout.LastError,
		TransferHash:  payout.TransferHash,
		CreatedAt:     payout.CreatedAt.UTC(),
		UpdatedAt:     payout.UpdatedAt.UTC(),
	}
}

func (m payoutModel) toEntity() entities.Payout {
	return entities.Payout{
		PayoutID:      m.ID,
		SourceKind:    entities.SourceKind(m.SourceKind),
		SourceID:      m.SourceID,
		Nonce:         m.Nonce,
		Recipient:     entities.PayoutRecipient(m.Recipient),
		WalletAddress: m.WalletAddress,
		AmountCents:   m.AmountCents,
		Status:        entities.PayoutStatus(m.Status),
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
		TransferHash:  m.TransferHash,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type refundModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	ClipVoteID   *string   `gorm:"column:clip_vote_id"`
	SeriesTipID  *string   `gorm:"column:series_tip_id"`
	PayerAddress string    `gorm:"column:payer_address"`
	AmountCents  int64     `gorm:"column:amount_cents"`
	Nonce        string    `gorm:"column:nonce;uniqueIndex"`
	Status       string    `gorm:"column:status"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (refundModel) TableName() string {
	return "refunds"
}

func refundModelFromEntity(refund entities.Refund) refundModel {
	return refundModel{
		ID:           strings.TrimSpace(refund.RefundID),
		ClipVoteID:   refund.ClipVoteID,
		SeriesTipID:  refund.SeriesTipID,
		PayerAddress: refund.PayerAddress,
		AmountCents:  refund.AmountCents,
		Nonce:        refund.Nonce,
		Status:       string(refund.Status),
		CreatedAt:    refund.CreatedAt.UTC(),
		UpdatedAt:    refund.UpdatedAt.UTC(),
	}
}

func (m refundModel) toEntity() entities.Refund {
	return entities.Refund{
		RefundID:     m.ID,
		ClipVoteID:   m.ClipVoteID,
		SeriesTipID:  m.SeriesTipID,
		PayerAddress: m.PayerAddress,
		AmountCents:  m.AmountCents,
		Nonce:        m.Nonce,
		Status:       entities.RefundStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "settlement_outbox"
}
