package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	domainerrors "backlot/contexts/studio-content/production-pipeline/domain/errors"
	"backlot/contexts/studio-content/production-pipeline/ports"

	"github.com/google/uuid"
)

// Store implements every pipeline port in memory for tests and the in-memory
// module.
type Store struct {
	mu sync.RWMutex

	won    map[string]ports.WonSubmission
	series map[string]entities.Series
	works  map[string]entities.ProducedWork
	outbox []outboxRecord

	config ports.PipelineConfig
	now    time.Time
}

type outboxRecord struct {
	Message   ports.OutboxMessage
	Published bool
}

func NewStore() *Store {
	return &Store{
		won:    make(map[string]ports.WonSubmission),
		series: make(map[string]entities.Series),
		works:  make(map[string]entities.ProducedWork),
		config: ports.PipelineConfig{
			MaxRetries:             4,
			RetryBaseDelay:         24 * time.Hour,
			RetryBackoffMultiplier: 1.5,
			MaxWorkAge:             14 * 24 * time.Hour,
			GeneratingGrace:        2 * time.Hour,
			ProviderTimeout:        time.Minute,
			Parallelism:            2,
			EpisodesPerSeries:      2,
			AudioTracksPerSeries:   2,
			AudioMinSeconds:        30,
			AudioMaxSeconds:        300,
			VideoMinSeconds:        4,
			VideoMaxSeconds:        12,
			PosterWidth:            1024,
			PosterHeight:           1536,
		},
	}
}

func (s *Store) ListWonSubmissionsWithoutSeries(_ context.Context, limit int) ([]ports.WonSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	seeded := make(map[string]bool, len(s.series))
	for _, series := range s.series {
		seeded[series.SubmissionID] = true
	}
	items := make([]ports.WonSubmission, 0)
	for _, submission := range s.won {
		if seeded[submission.SubmissionID] {
			continue
		}
		items = append(items, submission)
		if len(items) >= limit {
			break
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmissionID < items[j].SubmissionID
	})
	return items, nil
}

func (s *Store) CreateSeriesWithWorks(_ context.Context, series entities.Series, works []entities.ProducedWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.series {
		if existing.SubmissionID == series.SubmissionID {
			return domainerrors.ErrConflict
		}
	}
	s.series[series.SeriesID] = series
	for _, work := range works {
		s.works[work.WorkID] = work
	}
	return nil
}

func (s *Store) GetSeries(_ context.Context, seriesID string) (entities.Series, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series, ok := s.series[strings.TrimSpace(seriesID)]
	if !ok {
		return entities.Series{}, domainerrors.ErrSeriesNotFound
	}
	return series, nil
}

func (s *Store) ListWorksBySeries(_ context.Context, seriesID string) ([]entities.ProducedWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.ProducedWork, 0)
	for _, work := range s.works {
		if work.SeriesID == strings.TrimSpace(seriesID) {
			items = append(items, work)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Sequence < items[j].Sequence
	})
	return items, nil
}

func (s *Store) ListPendingWorks(_ context.Context, kind entities.WorkKind, staleBefore time.Time, limit int) ([]entities.ProducedWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	items := make([]entities.ProducedWork, 0)
	for _, work := range s.works {
		if work.Kind != kind {
			continue
		}
		pending := work.Status == entities.WorkStatusPending
		stale := work.Status == entities.WorkStatusGenerating &&
			work.LastAttemptAt != nil && work.LastAttemptAt.Before(staleBefore)
		if pending || stale {
			items = append(items, work)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListFailedWorks(_ context.Context, kind entities.WorkKind, limit int) ([]entities.ProducedWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	items := make([]entities.ProducedWork, 0)
	for _, work := range s.works {
		if work.Kind == kind && work.Status == entities.WorkStatusFailed {
			items = append(items, work)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ClaimWork(_ context.Context, workID string, from entities.WorkStatus, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, ok := s.works[strings.TrimSpace(workID)]
	if !ok {
		return false, domainerrors.ErrWorkNotFound
	}
	if work.Status != from {
		return false, nil
	}
	attemptAt := now.UTC()
	work.Status = entities.WorkStatusGenerating
	work.LastAttemptAt = &attemptAt
	work.UpdatedAt = attemptAt
	s.works[work.WorkID] = work
	return true, nil
}

func (s *Store) MarkWorkCompleted(_ context.Context, workID string, result ports.CompletedWork, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, ok := s.works[strings.TrimSpace(workID)]
	if !ok {
		return domainerrors.ErrWorkNotFound
	}
	if work.Status != entities.WorkStatusGenerating {
		return nil
	}
	generatedAt := now.UTC()
	work.Status = entities.WorkStatusCompleted
	work.AssetURL = result.AssetURL
	work.ContentType = result.ContentType
	work.DurationSeconds = result.DurationSeconds
	work.Width = result.Width
	work.Height = result.Height
	work.GeneratedAt = &generatedAt
	work.LastError = ""
	work.UpdatedAt = generatedAt
	s.works[work.WorkID] = work
	return nil
}

func (s *Store) MarkWorkFailed(_ context.Context, workID string, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, ok := s.works[strings.TrimSpace(workID)]
	if !ok {
		return domainerrors.ErrWorkNotFound
	}
	attemptAt := now.UTC()
	work.Status = entities.WorkStatusFailed
	work.RetryCount++
	work.LastError = message
	work.LastAttemptAt = &attemptAt
	work.UpdatedAt = attemptAt
	s.works[work.WorkID] = work
	return nil
}

func (s *Store) MarkWorkAbandoned(_ context.Context, workID string, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work, ok := s.works[strings.TrimSpace(workID)]
	if !ok {
		return domainerrors.ErrWorkNotFound
	}
	if work.Status != entities.WorkStatusFailed {
		return nil
	}
	work.Status = entities.WorkStatusAbandoned
	work.LastError = "abandoned: " + reason
	work.UpdatedAt = now.UTC()
	s.works[work.WorkID] = work
	return nil
}

func (s *Store) CountUnfinishedWorks(_ context.Context, seriesID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, work := range s.works {
		if work.SeriesID == strings.TrimSpace(seriesID) && work.Status != entities.WorkStatusCompleted {
			count++
		}
	}
	return count, nil
}

func (s *Store) OpenPaidVoting(_ context.Context, seriesID string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.series[strings.TrimSpace(seriesID)]
	if !ok {
		return false, domainerrors.ErrSeriesNotFound
	}
	if series.PaidVotingOpen {
		return false, nil
	}
	series.PaidVotingOpen = true
	series.Status = entities.SeriesStatusReady
	series.UpdatedAt = now.UTC()
	s.series[series.SeriesID] = series
	return true, nil
}

func (s *Store) PipelineConfig(_ context.Context) (ports.PipelineConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     uuid.NewString(),
			EventType:    envelope.EventType,
			PartitionKey: envelope.PartitionKey,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAt,
		},
	})
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, record := range s.outbox {
		if record.Published {
			continue
		}
		items = append(items, record.Message)
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.outbox {
		if record.Message.OutboxID == outboxID {
			s.outbox[i].Published = true
			return nil
		}
	}
	return domainerrors.ErrInvalidInput
}

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.now.IsZero() {
		return time.Now().UTC()
	}
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

// Test helpers.

func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) SetConfig(cfg ports.PipelineConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Store) SeedWonSubmission(submission ports.WonSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.won[submission.SubmissionID] = submission
}

func (s *Store) SeedSeries(series entities.Series) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[series.SeriesID] = series
}

func (s *Store) SeedWork(work entities.ProducedWork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.works[work.WorkID] = work
}

func (s *Store) GetWork(workID string) (entities.ProducedWork, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	work, ok := s.works[workID]
	return work, ok
}

func (s *Store) SeriesBySubmission(submissionID string) (entities.Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, series := range s.series {
		if series.SubmissionID == submissionID {
			return series, true
		}
	}
	return entities.Series{}, false
}

func (s *Store) WorkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.works)
}
