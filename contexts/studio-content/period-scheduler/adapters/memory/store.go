package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	domainerrors "backlot/contexts/studio-content/period-scheduler/domain/errors"
	"backlot/contexts/studio-content/period-scheduler/ports"

	"github.com/google/uuid"
)

// Store is the in-memory adapter backing tests and the in-memory module.
// It implements every scheduler port on one struct.
type Store struct {
	mu sync.RWMutex

	periods      map[string]entities.VotingPeriod
	submissions  map[string]entities.Submission
	seededSeries map[string]struct{}
	outbox       []outboxRecord

	config ports.SchedulerConfig
	now    time.Time
}

type outboxRecord struct {
	Message   ports.OutboxMessage
	Published bool
}

func NewStore() *Store {
	return &Store{
		periods:      make(map[string]entities.VotingPeriod),
		submissions:  make(map[string]entities.Submission),
		seededSeries: make(map[string]struct{}),
		config: ports.SchedulerConfig{
			Cadence:           ports.CadenceImmediate,
			AgentVotingWindow: time.Hour,
			HumanVotingWindow: 24 * time.Hour,
			PassLimit:         10,
			RetryLimit:        5,
			ClosuresPerTick:   20,
		},
	}
}

func (s *Store) CreatePeriod(_ context.Context, period entities.VotingPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(period.PeriodID)
	if id == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, exists := s.periods[id]; exists {
		return domainerrors.ErrConflict
	}
	for _, existing := range s.periods {
		if existing.Type == period.Type && !existing.IsProcessed && existing.EndsAt.After(period.StartsAt) {
			return domainerrors.ErrConflict
		}
	}
	s.periods[id] = period
	return nil
}

func (s *Store) GetActivePeriod(_ context.Context, periodType entities.PeriodType) (entities.VotingPeriod, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, period := range s.periods {
		if period.Type == periodType && period.IsActive && !period.IsProcessed {
			return period, true, nil
		}
	}
	return entities.VotingPeriod{}, false, nil
}

func (s *Store) GetUpcomingPeriod(_ context.Context, periodType entities.PeriodType, now time.Time) (entities.VotingPeriod, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, period := range s.periods {
		if period.Type == periodType && !period.IsActive && !period.IsProcessed && period.StartsAt.After(now) {
			return period, true, nil
		}
	}
	return entities.VotingPeriod{}, false, nil
}

func (s *Store) ActivateDuePeriods(_ context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	activated := make([]entities.VotingPeriod, 0)
	for id, period := range s.periods {
		if len(activated) >= limit {
			break
		}
		if period.IsActive || period.IsProcessed || period.StartsAt.After(now) {
			continue
		}
		period.IsActive = true
		period.UpdatedAt = now
		s.periods[id] = period
		activated = append(activated, period)
	}
	sort.Slice(activated, func(i, j int) bool {
		return activated[i].StartsAt.Before(activated[j].StartsAt)
	})
	return activated, nil
}

func (s *Store) ListExpiredUnprocessed(_ context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	expired := make([]entities.VotingPeriod, 0)
	for _, period := range s.periods {
		if period.IsProcessed || !now.After(period.EndsAt) {
			continue
		}
		expired = append(expired, period)
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].EndsAt.Before(expired[j].EndsAt)
	})
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) ClaimPeriodProcessed(_ context.Context, periodID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[strings.TrimSpace(periodID)]
	if !ok {
		return false, domainerrors.ErrPeriodNotFound
	}
	if period.IsProcessed {
		return false, nil
	}
	period.IsProcessed = true
	period.IsActive = false
	s.periods[period.PeriodID] = period
	return true, nil
}

func (s *Store) OpenVoting(_ context.Context, period entities.VotingPeriod) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for id, submission := range s.submissions {
		if submission.Status != entities.SubmissionStatusSubmitted {
			continue
		}
		startsAt := period.StartsAt
		endsAt := period.EndsAt
		submission.Status = entities.SubmissionStatusVoting
		submission.PeriodID = period.PeriodID
		submission.VotingStartsAt = &startsAt
		submission.VotingEndsAt = &endsAt
		s.submissions[id] = submission
		moved++
	}
	return moved, nil
}

func (s *Store) ListVotingSubmissions(_ context.Context, periodID string) ([]entities.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Submission, 0)
	for _, submission := range s.submissions {
		if submission.PeriodID == strings.TrimSpace(periodID) && submission.Status == entities.SubmissionStatusVoting {
			items = append(items, submission)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmittedAt.Before(items[j].SubmittedAt)
	})
	return items, nil
}

func (s *Store) TransitionStatus(_ context.Context, submissionID string, from entities.SubmissionStatus, to entities.SubmissionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	submission, ok := s.submissions[strings.TrimSpace(submissionID)]
	if !ok {
		return false, domainerrors.ErrSubmissionNotFound
	}
	if submission.Status != from {
		return false, nil
	}
	if !entities.CanTransition(from, to) {
		return false, domainerrors.ErrInvalidTransition
	}
	submission.Status = to
	s.submissions[submission.SubmissionID] = submission
	return true, nil
}

func (s *Store) ListWonWithSeries(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var won []entities.Submission
	for _, submission := range s.submissions {
		if submission.Status != entities.SubmissionStatusWon {
			continue
		}
		if _, ok := s.seededSeries[submission.SubmissionID]; !ok {
			continue
		}
		won = append(won, submission)
	}
	sort.Slice(won, func(i, j int) bool {
		return won[i].SubmittedAt.Before(won[j].SubmittedAt)
	})
	if limit > 0 && len(won) > limit {
		won = won[:limit]
	}
	ids := make([]string, 0, len(won))
	for _, submission := range won {
		ids = append(ids, submission.SubmissionID)
	}
	return ids, nil
}

func (s *Store) SchedulerConfig(_ context.Context) (ports.SchedulerConfig, error) {
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

func (s *Store) SetConfig(cfg ports.SchedulerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Store) SeedPeriod(period entities.VotingPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods[period.PeriodID] = period
}

func (s *Store) SeedSubmission(submission entities.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submission.SubmissionID] = submission
}

// SeedSeries records that the production pipeline has created a series for
// the submission, mirroring the series table the postgres adapter joins on.
func (s *Store) SeedSeries(submissionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seededSeries[submissionID] = struct{}{}
}

func (s *Store) GetPeriod(periodID string) (entities.VotingPeriod, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	period, ok := s.periods[periodID]
	return period, ok
}

func (s *Store) GetSubmission(submissionID string) (entities.Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	submission, ok := s.submissions[submissionID]
	return submission, ok
}

func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, record := range s.outbox {
		if !record.Published {
			count++
		}
	}
	return count
}
