package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	domainerrors "backlot/contexts/studio-content/production-pipeline/domain/errors"
	"backlot/contexts/studio-content/production-pipeline/ports"

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

// ListWonSubmissionsWithoutSeries reads the scheduler-owned submissions table
// without mutating it; the pipeline only ever creates its own rows.
func (r *Repository) ListWonSubmissionsWithoutSeries(ctx context.Context, limit int) ([]ports.WonSubmission, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []wonSubmissionRow
	err := r.db.WithContext(ctx).
		Table("submissions").
		Select("submissions.id, submissions.studio_id, submissions.category, submissions.title, submissions.content").
		Joins("LEFT JOIN series ON series.submission_id = submissions.id").
		Where("submissions.status = ?", "won").
		Where("series.id IS NULL").
		Order("submissions.submitted_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, r.logError("pipeline_repo_list_won_failed", err)
	}
	items := make([]ports.WonSubmission, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.WonSubmission{
			SubmissionID: row.ID,
			StudioID:     row.StudioID,
			Category:     row.Category,
			Title:        row.Title,
			Content:      row.Content,
		})
	}
	return items, nil
}

func (r *Repository) CreateSeriesWithWorks(ctx context.Context, series entities.Series, works []entities.ProducedWork) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seriesRow := seriesModelFromEntity(series)
		if err := tx.Create(&seriesRow).Error; err != nil {
			return err
		}
		for _, work := range works {
			workRow := workModelFromEntity(work)
			if err := tx.Create(&workRow).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("pipeline_repo_create_series_failed", err, "series_id", series.SeriesID)
	}
	return nil
}

func (r *Repository) GetSeries(ctx context.Context, seriesID string) (entities.Series, error) {
	var row seriesModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(seriesID)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Series{}, domainerrors.ErrSeriesNotFound
		}
		return entities.Series{}, r.logError("pipeline_repo_get_series_failed", err, "series_id", seriesID)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListWorksBySeries(ctx context.Context, seriesID string) ([]entities.ProducedWork, error) {
	var rows []workModel
	if err := r.db.WithContext(ctx).
		Where("series_id = ?", strings.TrimSpace(seriesID)).
		Order("kind ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("pipeline_repo_list_works_failed", err, "series_id", seriesID)
	}
	return toWorkEntities(rows), nil
}

func (r *Repository) ListPendingWorks(ctx context.Context, kind entities.WorkKind, staleBefore time.Time, limit int) ([]entities.ProducedWork, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []workModel
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Where(
			r.db.Where("status = ?", string(entities.WorkStatusPending)).
				Or("status = ? AND last_attempt_at < ?", string(entities.WorkStatusGenerating), staleBefore.UTC()),
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("pipeline_repo_list_pending_failed", err, "kind", string(kind))
	}
	return toWorkEntities(rows), nil
}

func (r *Repository) ListFailedWorks(ctx context.Context, kind entities.WorkKind, limit int) ([]entities.ProducedWork, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []workModel
	if err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Where("status = ?", string(entities.WorkStatusFailed)).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("pipeline_repo_list_failed_failed", err, "kind", string(kind))
	}
	return toWorkEntities(rows), nil
}

func (r *Repository) ClaimWork(ctx context.Context, workID string, from entities.WorkStatus, now time.Time) (bool, error) {
	update := r.db.WithContext(ctx).Model(&workModel{}).
		Where("id = ?", strings.TrimSpace(workID)).
		Where("status = ?", string(from)).
		Updates(map[string]any{
			"status":          string(entities.WorkStatusGenerating),
			"last_attempt_at": now.UTC(),
			"updated_at":      now.UTC(),
		})
	if update.Error != nil {
		return false, r.logError("pipeline_repo_claim_work_failed", update.Error, "work_id", workID)
	}
	return update.RowsAffected > 0, nil
}

func (r *Repository) MarkWorkCompleted(ctx context.Context, workID string, result ports.CompletedWork, now time.Time) error {
	update := r.db.WithContext(ctx).Model(&workModel{}).
		Where("id = ?", strings.TrimSpace(workID)).
		Where("status = ?", string(entities.WorkStatusGenerating)).
		Updates(map[string]any{
			"status":           string(entities.WorkStatusCompleted),
			"asset_url":        result.AssetURL,
			"content_type":     result.ContentType,
			"duration_seconds": result.DurationSeconds,
			"width":            result.Width,
			"height":           result.Height,
			"generated_at":     now.UTC(),
			"last_error":       "",
			"updated_at":       now.UTC(),
		})
	if update.Error != nil {
		return r.logError("pipeline_repo_mark_completed_failed", update.Error, "work_id", workID)
	}
	return nil
}

func (r *Repository) MarkWorkFailed(ctx context.Context, workID string, message string, now time.Time) error {
	update := r.db.WithContext(ctx).Model(&workModel{}).
		Where("id = ?", strings.TrimSpace(workID)).
		Updates(map[string]any{
			"status":          string(entities.WorkStatusFailed),
			"retry_count":     gorm.Expr("retry_count + 1"),
			"last_error":      message,
			"last_attempt_at": now.UTC(),
			"updated_at":      now.UTC(),
		})
	if update.Error != nil {
		return r.logError("pipeline_repo_mark_failed_failed", update.Error, "work_id", workID)
	}
	return nil
}

func (r *Repository) MarkWorkAbandoned(ctx context.Context, workID string, reason string, now time.Time) error {
	update := r.db.WithContext(ctx).Model(&workModel{}).
		Where("id = ?", strings.TrimSpace(workID)).
		Where("status = ?", string(entities.WorkStatusFailed)).
		Updates(map[string]any{
			"status":     string(entities.WorkStatusAbandoned),
			"last_error": "abandoned: " + reason,
			"updated_at": now.UTC(),
		})
	if update.Error != nil {
		return r.logError("pipeline_repo_mark_abandoned_failed", update.Error, "work_id", workID)
	}
	return nil
}

func (r *Repository) CountUnfinishedWorks(ctx context.Context, seriesID string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&workModel{}).
		Where("series_id = ?", strings.TrimSpace(seriesID)).
		Where("status <> ?", string(entities.WorkStatusCompleted)).
		Count(&count).Error
	if err != nil {
		return 0, r.logError("pipeline_repo_count_unfinished_failed", err, "series_id", seriesID)
	}
	return int(count), nil
}

func (r *Repository) OpenPaidVoting(ctx context.Context, seriesID string, now time.Time) (bool, error) {
	update := r.db.WithContext(ctx).Model(&seriesModel{}).
		Where("id = ?", strings.TrimSpace(seriesID)).
		Where("paid_voting_open = FALSE").
		Updates(map[string]any{
			"paid_voting_open": true,
			"status":           string(entities.SeriesStatusReady),
			"updated_at":       now.UTC(),
		})
	if update.Error != nil {
		return false, r.logError("pipeline_repo_open_paid_voting_failed", update.Error, "series_id", seriesID)
	}
	return update.RowsAffected > 0, nil
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
		return r.logError("pipeline_repo_append_outbox_failed", err, "event_type", envelope.EventType)
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
		return nil, r.logError("pipeline_repo_list_outbox_failed", err)
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
		return r.logError("pipeline_repo_mark_outbox_failed", update.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "studio-content/production-pipeline",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("pipeline repository operation failed", fields...)
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

type wonSubmissionRow struct {
	ID       string `gorm:"column:id"`
	StudioID string `gorm:"column:studio_id"`
	Category string `gorm:"column:category"`
	Title    string `gorm:"column:title"`
	Content  []byte `gorm:"column:content"`
}

type seriesModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	SubmissionID   string    `gorm:"column:submission_id;uniqueIndex"`
	StudioID       string    `gorm:"column:studio_id"`
	Category       string    `gorm:"column:category"`
	Title          string    `gorm:"column:title"`
	ContentSpec    []byte    `gorm:"column:content_spec"`
	EpisodeCount   int       `gorm:"column:episode_count"`
	Status         string    `gorm:"column:status"`
	PaidVotingOpen bool      `gorm:"column:paid_voting_open"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (seriesModel) TableName() string {
	return "series"
}

func seriesModelFromEntity(series entities.Series) seriesModel {
	return seriesModel{
		ID:             strings.TrimSpace(series.SeriesID),
		SubmissionID:   strings.TrimSpace(series.SubmissionID),
		StudioID:       strings.TrimSpace(series.StudioID),
		Category:       series.Category,
		Title:          series.Title,
		ContentSpec:    series.ContentSpec,
		EpisodeCount:   series.EpisodeCount,
		Status:         string(series.Status),
		PaidVotingOpen: series.PaidVotingOpen,
		CreatedAt:      series.CreatedAt.UTC(),
		UpdatedAt:      series.UpdatedAt.UTC(),
	}
}

func (m seriesModel) toEntity() entities.Series {
	return entities.Series{
		SeriesID:       m.ID,
		SubmissionID:   m.SubmissionID,
		StudioID:       m.StudioID,
		Category:       m.Category,
		Title:          m.Title,
		ContentSpec:    m.ContentSpec,
		EpisodeCount:   m.EpisodeCount,
		Status:         entities.SeriesStatus(m.Status),
		PaidVotingOpen: m.PaidVotingOpen,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type workModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	SeriesID        string     `gorm:"column:series_id"`
	Kind            string     `gorm:"column:kind"`
	Sequence        int        `gorm:"column:sequence"`
	Status          string     `gorm:"column:status"`
	RetryCount      int        `gorm:"column:retry_count"`
	LastError       string     `gorm:"column:last_error"`
	LastAttemptAt   *time.Time `gorm:"column:last_attempt_at"`
	GeneratedAt     *time.Time `gorm:"column:generated_at"`
	AssetURL        string     `gorm:"column:asset_url"`
	ContentType     string     `gorm:"column:content_type"`
	DurationSeconds float64    `gorm:"column:duration_seconds"`
	Width           int        `gorm:"column:width"`
	Height          int        `gorm:"column:height"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (workModel) TableName() string {
	return "produced_works"
}

func workModelFromEntity(work entities.ProducedWork) workModel {
	return workModel{
		ID:              strings.TrimSpace(work.WorkID),
		SeriesID:        strings.TrimSpace(work.SeriesID),
		Kind:            string(work.Kind),
		Sequence:        work.Sequence,
		Status:          string(work.Status),
		RetryCount:      work.RetryCount,
		LastError:       work.LastError,
		LastAttemptAt:   work.LastAttemptAt,
		GeneratedAt:     work.GeneratedAt,
		AssetURL:        work.AssetURL,
		ContentType:     work.ContentType,
		DurationSeconds: work.DurationSeconds,
		Width:           work.Width,
		Height:          work.Height,
		CreatedAt:       work.CreatedAt.UTC(),
		UpdatedAt:       work.UpdatedAt.UTC(),
	}
}

func (m workModel) toEntity() entities.ProducedWork {
	return entities.ProducedWork{
		WorkID:          m.ID,
		SeriesID:        m.SeriesID,
		Kind:            entities.WorkKind(m.Kind),
		Sequence:        m.Sequence,
		Status:          entities.WorkStatus(m.Status),
		RetryCount:      m.RetryCount,
		LastError:       m.LastError,
		LastAttemptAt:   m.LastAttemptAt,
		GeneratedAt:     m.GeneratedAt,
		AssetURL:        m.AssetURL,
		ContentType:     m.ContentType,
		DurationSeconds: m.DurationSeconds,
		Width:           m.Width,
		Height:          m.Height,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toWorkEntities(rows []workModel) []entities.ProducedWork {
	items := make([]entities.ProducedWork, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
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
	return "pipeline_outbox"
}
