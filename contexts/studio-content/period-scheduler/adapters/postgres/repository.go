package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	domainerrors "backlot/contexts/studio-content/period-scheduler/domain/errors"
	"backlot/contexts/studio-content/period-scheduler/ports"

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

func (r *Repository) CreatePeriod(ctx context.Context, period entities.VotingPeriod) error {
	row := periodModelFromEntity(period)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("scheduler_repo_create_period_failed", err, "period_id", period.PeriodID)
	}
	return nil
}

func (r *Repository) GetActivePeriod(ctx context.Context, periodType entities.PeriodType) (entities.VotingPeriod, bool, error) {
	var row periodModel
	err := r.db.WithContext(ctx).
		Where("type = ?", string(periodType)).
		Where("is_active = TRUE").
		Where("is_processed = FALSE").
		Order("starts_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotingPeriod{}, false, nil
		}
		return entities.VotingPeriod{}, false, r.logError("scheduler_repo_get_active_period_failed", err, "period_type", string(periodType))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetUpcomingPeriod(ctx context.Context, periodType entities.PeriodType, now time.Time) (entities.VotingPeriod, bool, error) {
	var row periodModel
	err := r.db.WithContext(ctx).
		Where("type = ?", string(periodType)).
		Where("is_active = FALSE").
		Where("is_processed = FALSE").
		Where("starts_at > ?", now.UTC()).
		Order("starts_at ASC").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotingPeriod{}, false, nil
		}
		return entities.VotingPeriod{}, false, r.logError("scheduler_repo_get_upcoming_period_failed", err, "period_type", string(periodType))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ActivateDuePeriods(ctx context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []periodModel
	if err := r.db.WithContext(ctx).
		Where("is_active = FALSE").
		Where("is_processed = FALSE").
		Where("starts_at <= ?", now.UTC()).
		Order("starts_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("scheduler_repo_list_due_periods_failed", err)
	}

	activated := make([]entities.VotingPeriod, 0, len(rows))
	for _, row := range rows {
		// Conditional update so a concurrent tick cannot activate twice.
		update := r.db.WithContext(ctx).Model(&periodModel{}).
			Where("id = ?", row.ID).
			Where("is_active = FALSE").
			Where("is_processed = FALSE").
			Updates(map[string]any{"is_active": true, "updated_at": now.UTC()})
		if update.Error != nil {
			return activated, r.logError("scheduler_repo_activate_period_failed", update.Error, "period_id", row.ID)
		}
		if update.RowsAffected == 0 {
			continue
		}
		row.IsActive = true
		activated = append(activated, row.toEntity())
	}
	return activated, nil
}

func (r *Repository) ListExpiredUnprocessed(ctx context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []periodModel
	if err := r.db.WithContext(ctx).
		Where("is_processed = FALSE").
		Where("ends_at < ?", now.UTC()).
		Order("ends_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("scheduler_repo_list_expired_failed", err)
	}
	items := make([]entities.VotingPeriod, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ClaimPeriodProcessed(ctx context.Context, periodID string) (bool, error) {
	update := r.db.WithContext(ctx).Model(&periodModel{}).
		Where("id = ?", strings.TrimSpace(periodID)).
		Where("is_processed = FALSE").
		Updates(map[string]any{"is_processed": true, "is_active": false, "updated_at": time.Now().UTC()})
	if update.Error != nil {
		return false, r.logError("scheduler_repo_claim_period_failed", update.Error, "period_id", periodID)
	}
	return update.RowsAffected > 0, nil
}

func (r *Repository) OpenVoting(ctx context.Context, period entities.VotingPeriod) (int, error) {
	update := r.db.WithContext(ctx).Model(&submissionModel{}).
		Where("status = ?", string(entities.SubmissionStatusSubmitted)).
		Updates(map[string]any{
			"status":           string(entities.SubmissionStatusVoting),
			"period_id":        strings.TrimSpace(period.PeriodID),
			"voting_starts_at": period.StartsAt.UTC(),
			"voting_ends_at":   period.EndsAt.UTC(),
			"updated_at":       time.Now().UTC(),
		})
	if update.Error != nil {
		return 0, r.logError("scheduler_repo_open_voting_failed", update.Error, "period_id", period.PeriodID)
	}
	return int(update.RowsAffected), nil
}

func (r *Repository) ListVotingSubmissions(ctx context.Context, periodID string) ([]entities.Submission, error) {
	var rows []submissionModel
	if err := r.db.WithContext(ctx).
		Where("period_id = ?", strings.TrimSpace(periodID)).
		Where("status = ?", string(entities.SubmissionStatusVoting)).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("scheduler_repo_list_voting_failed", err, "period_id", periodID)
	}
	items := make([]entities.Submission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) TransitionStatus(ctx context.Context, submissionID string, from entities.SubmissionStatus, to entities.SubmissionStatus) (bool, error) {
	if !entities.CanTransition(from, to) {
		return false, domainerrors.ErrInvalidTransition
	}
	update := r.db.WithContext(ctx).Model(&submissionModel{}).
		Where("id = ?", strings.TrimSpace(submissionID)).
		Where("status = ?", string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": time.Now().UTC()})
	if update.Error != nil {
		return false, r.logError("scheduler_repo_transition_failed", update.Error, "submission_id", submissionID)
	}
	return update.RowsAffected > 0, nil
}

// ListWonWithSeries reads the pipeline-owned series table without mutating it
// to find won submissions whose series has been created.
func (r *Repository) ListWonWithSeries(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Table("submissions").
		Select("submissions.id").
		Joins("JOIN series ON series.submission_id = submissions.id").
		Where("submissions.status = ?", string(entities.SubmissionStatusWon)).
		Order("submissions.submitted_at ASC").
		Limit(limit).
		Scan(&ids).Error
	if err != nil {
		return nil, r.logError("scheduler_repo_list_won_with_series_failed", err)
	}
	return ids, nil
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
		return r.logError("scheduler_repo_append_outbox_failed", err, "event_type", envelope.EventType)
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
		return nil, r.logError("scheduler_repo_list_outbox_failed", err)
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
		return r.logError("scheduler_repo_mark_outbox_failed", update.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "studio-content/period-scheduler",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("scheduler repository operation failed", fields...)
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

type periodModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Type        string    `gorm:"column:type"`
	StartsAt    time.Time `gorm:"column:starts_at"`
	EndsAt      time.Time `gorm:"column:ends_at"`
	IsActive    bool      `gorm:"column:is_active"`
	IsProcessed bool      `gorm:"column:is_processed"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (periodModel) TableName() string {
	return "voting_periods"
}

func periodModelFromEntity(period entities.VotingPeriod) periodModel {
	row := periodModel{
		ID:          strings.TrimSpace(period.PeriodID),
		Type:        string(period.Type),
		StartsAt:    period.StartsAt.UTC(),
		EndsAt:      period.EndsAt.UTC(),
		IsActive:    period.IsActive,
		IsProcessed: period.IsProcessed,
		CreatedAt:   period.CreatedAt.UTC(),
		UpdatedAt:   period.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m periodModel) toEntity() entities.VotingPeriod {
	return entities.VotingPeriod{
		PeriodID:    m.ID,
		Type:        entities.PeriodType(m.Type),
		StartsAt:    m.StartsAt,
		EndsAt:      m.EndsAt,
		IsActive:    m.IsActive,
		IsProcessed: m.IsProcessed,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

type submissionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	StudioID       string     `gorm:"column:studio_id"`
	Category       string     `gorm:"column:category"`
	Title          string     `gorm:"column:title"`
	Content        []byte     `gorm:"column:content"`
	Status         string     `gorm:"column:status"`
	VoteCount      int        `gorm:"column:vote_count"`
	PeriodID       *string    `gorm:"column:period_id"`
	SubmittedAt    time.Time  `gorm:"column:submitted_at"`
	VotingStartsAt *time.Time `gorm:"column:voting_starts_at"`
	VotingEndsAt   *time.Time `gorm:"column:voting_ends_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (submissionModel) TableName() string {
	return "submissions"
}

func (m submissionModel) toEntity() entities.Submission {
	submission := entities.Submission{
		SubmissionID:   m.ID,
		StudioID:       m.StudioID,
		Category:       m.Category,
		Title:          m.Title,
		Content:        m.Content,
		Status:         entities.SubmissionStatus(m.Status),
		VoteCount:      m.VoteCount,
		SubmittedAt:    m.SubmittedAt,
		VotingStartsAt: m.VotingStartsAt,
		VotingEndsAt:   m.VotingEndsAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.PeriodID != nil {
		submission.PeriodID = *m.PeriodID
	}
	return submission
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
	return "scheduler_outbox"
}
