package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	domainerrors "backlot/contexts/studio-content/period-scheduler/domain/errors"
	"backlot/contexts/studio-content/period-scheduler/ports"
)

// Work kinds understood by the production pipeline. Kept as plain strings on
// the scheduler side so the contexts stay decoupled.
const (
	PassKindEpisodeVideo = "episode_video"
	PassKindAudioTrack   = "audio_track"
	PassKindPoster       = "poster"
)

const (
	defaultPassLimit       = 10
	defaultRetryLimit      = 5
	defaultClosuresPerTick = 20
)

// Service drives the voting-period lifecycle. Tick is safe to call
// concurrently and redundantly; the processed-claim on each period is the
// idempotency boundary for closure side effects.
type Service struct {
	Periods     ports.PeriodRepository
	Submissions ports.SubmissionRepository
	Production  ports.ProductionRunner
	Config      ports.ConfigProvider
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Logger      *slog.Logger
}

func (s Service) Tick(ctx context.Context) (ports.TickReport, error) {
	logger := ResolveLogger(s.Logger)
	now := s.now()

	cfg, err := s.Config.SchedulerConfig(ctx)
	if err != nil {
		logger.Error("scheduler config snapshot failed",
			"event", "scheduler_config_failed",
			"module", "studio-content/period-scheduler",
			"layer", "application",
			"error", err.Error(),
		)
		return ports.TickReport{}, err
	}

	report := ports.TickReport{TickedAt: now}

	created, err := s.ensurePeriods(ctx, cfg, now)
	if err != nil {
		return report, err
	}
	report.PeriodsCreated = created

	activated, err := s.activateDuePeriods(ctx, now)
	if err != nil {
		return report, err
	}
	report.PeriodsActivated = activated

	if err := s.closeExpiredPeriods(ctx, cfg, now, &report); err != nil {
		return report, err
	}

	produced, err := s.markProducedSubmissions(ctx, cfg)
	if err != nil {
		return report, err
	}
	report.SubmissionsProduced = produced

	s.runProductionPasses(ctx, cfg, &report)

	logger.Info("scheduler tick completed",
		"event", "scheduler_tick_completed",
		"module", "studio-content/period-scheduler",
		"layer", "application",
		"periods_created", report.PeriodsCreated,
		"periods_activated", report.PeriodsActivated,
		"periods_closed", report.PeriodsClosed,
		"winners_selected", report.WinnersSelected,
		"submissions_produced", report.SubmissionsProduced,
		"pass_errors", len(report.PassErrors),
	)
	return report, nil
}

// ensurePeriods guarantees that for each period type there is either an
// active period or one scheduled in the future.
func (s Service) ensurePeriods(ctx context.Context, cfg ports.SchedulerConfig, now time.Time) (int, error) {
	created := 0
	for _, periodType := range []entities.PeriodType{entities.PeriodTypeAgentVoting, entities.PeriodTypeHumanVoting} {
		_, active, err := s.Periods.GetActivePeriod(ctx, periodType)
		if err != nil {
			return created, err
		}
		if active {
			continue
		}
		_, upcoming, err := s.Periods.GetUpcomingPeriod(ctx, periodType, now)
		if err != nil {
			return created, err
		}
		if upcoming {
			continue
		}

		periodID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return created, err
		}
		startsAt := nextPeriodStart(cfg, now)
		period := entities.VotingPeriod{
			PeriodID:  periodID,
			Type:      periodType,
			StartsAt:  startsAt,
			EndsAt:    startsAt.Add(votingWindow(cfg, periodType)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Periods.CreatePeriod(ctx, period); err != nil {
			// A concurrent tick created the period first. Not an error.
			if errors.Is(err, domainerrors.ErrConflict) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}

func (s Service) activateDuePeriods(ctx context.Context, now time.Time) (int, error) {
	activated, err := s.Periods.ActivateDuePeriods(ctx, now, defaultClosuresPerTick)
	if err != nil {
		return 0, err
	}
	for _, period := range activated {
		if period.Type != entities.PeriodTypeAgentVoting {
			continue
		}
		if _, err := s.Submissions.OpenVoting(ctx, period); err != nil {
			return len(activated), err
		}
	}
	return len(activated), nil
}

// markProducedSubmissions moves won submissions to produced once the
// production pipeline has created their series. The series table is read
// without mutation; the flip is a compare-and-set owned by this context.
func (s Service) markProducedSubmissions(ctx context.Context, cfg ports.SchedulerConfig) (int, error) {
	limit := cfg.PassLimit
	if limit <= 0 {
		limit = defaultPassLimit
	}
	submissionIDs, err := s.Submissions.ListWonWithSeries(ctx, limit)
	if err != nil {
		return 0, err
	}

	produced := 0
	for _, submissionID := range submissionIDs {
		moved, err := s.Submissions.TransitionStatus(ctx, submissionID, entities.SubmissionStatusWon, entities.SubmissionStatusProduced)
		if err != nil {
			return produced, err
		}
		if moved {
			produced++
		}
	}
	return produced, nil
}

// closeExpiredPeriods claims each expired period exactly once and, on a won
// claim, tallies votes and transitions winners and losers.
func (s Service) closeExpiredPeriods(ctx context.Context, cfg ports.SchedulerConfig, now time.Time, report *ports.TickReport) error {
	logger := ResolveLogger(s.Logger)

	limit := cfg.ClosuresPerTick
	if limit <= 0 {
		limit = defaultClosuresPerTick
	}
	expired, err := s.Periods.ListExpiredUnprocessed(ctx, now, limit)
	if err != nil {
		return err
	}

	for _, period := range expired {
		claimed, err := s.Periods.ClaimPeriodProcessed(ctx, period.PeriodID)
		if err != nil {
			return err
		}
		if !claimed {
			// A concurrent tick owns this closure.
			continue
		}
		report.PeriodsClosed++

		if period.Type == entities.PeriodTypeAgentVoting {
			if err := s.tallyPeriod(ctx, period, now, report); err != nil {
				return err
			}
		}

		if s.Outbox != nil {
			eventID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			envelope, err := newSchedulerEnvelope(eventID, "period.closed", period.PeriodID, now, map[string]any{
				"period_id":   period.PeriodID,
				"period_type": string(period.Type),
				"ends_at":     period.EndsAt.UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			if err := s.Outbox.AppendOutbox(ctx, envelope); err != nil {
				return err
			}
		}

		logger.Info("voting period closed",
			"event", "scheduler_period_closed",
			"module", "studio-content/period-scheduler",
			"layer", "application",
			"period_id", period.PeriodID,
			"period_type", string(period.Type),
		)
	}
	return nil
}

func (s Service) tallyPeriod(ctx context.Context, period entities.VotingPeriod, now time.Time, report *ports.TickReport) error {
	submissions, err := s.Submissions.ListVotingSubmissions(ctx, period.PeriodID)
	if err != nil {
		return err
	}
	if len(submissions) == 0 {
		return nil
	}

	winners := selectWinners(submissions)
	winnerIDs := make(map[string]bool, len(winners))
	for _, winner := range winners {
		winnerIDs[winner.SubmissionID] = true
	}

	for _, submission := range submissions {
		target := entities.SubmissionStatusLost
		if winnerIDs[submission.SubmissionID] {
			target = entities.SubmissionStatusWon
		}
		moved, err := s.Submissions.TransitionStatus(ctx, submission.SubmissionID, entities.SubmissionStatusVoting, target)
		if err != nil {
			return err
		}
		if !moved {
			continue
		}
		if target == entities.SubmissionStatusWon {
			report.WinnersSelected++
			if err := s.emitSubmissionWon(ctx, submission, period, now); err != nil {
				return err
			}
		} else {
			report.LosersMarked++
		}
	}
	return nil
}

func (s Service) emitSubmissionWon(ctx context.Context, submission entities.Submission, period entities.VotingPeriod, now time.Time) error {
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newSchedulerEnvelope(eventID, "submission.won", submission.SubmissionID, now, map[string]any{
		"submission_id": submission.SubmissionID,
		"studio_id":     submission.StudioID,
		"category":      submission.Category,
		"period_id":     period.PeriodID,
		"vote_count":    submission.VoteCount,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

// runProductionPasses invokes the pipeline's passes and retry sweeps. Each
// pass is isolated; a failing pass is recorded on the report and the rest
// still run.
func (s Service) runProductionPasses(ctx context.Context, cfg ports.SchedulerConfig, report *ports.TickReport) {
	if s.Production == nil {
		return
	}
	logger := ResolveLogger(s.Logger)

	passLimit := cfg.PassLimit
	if passLimit <= 0 {
		passLimit = defaultPassLimit
	}
	retryLimit := cfg.RetryLimit
	if retryLimit <= 0 {
		retryLimit = defaultRetryLimit
	}

	passes := []struct {
		name   string
		target *ports.PassReport
		run    func(context.Context) (ports.PassReport, error)
	}{
		{"episode_pass", &report.EpisodePass, func(ctx context.Context) (ports.PassReport, error) {
			return s.Production.RunPass(ctx, PassKindEpisodeVideo, passLimit)
		}},
		{"audio_pass", &report.AudioPass, func(ctx context.Context) (ports.PassReport, error) {
			return s.Production.RunPass(ctx, PassKindAudioTrack, passLimit)
		}},
		{"poster_pass", &report.PosterPass, func(ctx context.Context) (ports.PassReport, error) {
			return s.Production.RunPass(ctx, PassKindPoster, passLimit)
		}},
		{"episode_retry_pass", &report.EpisodeRetryPass, func(ctx context.Context) (ports.PassReport, error) {
			return s.Production.RunRetrySweep(ctx, PassKindEpisodeVideo, retryLimit)
		}},
		{"audio_retry_pass", &report.AudioRetryPass, func(ctx context.Context) (ports.PassReport, error) {
			return s.Production.RunRetrySweep(ctx, PassKindAudioTrack, retryLimit)
		}},
	}

	for _, pass := range passes {
		result, err := pass.run(ctx)
		if err != nil {
			report.PassErrors = append(report.PassErrors, fmt.Sprintf("%s: %s", pass.name, err.Error()))
			logger.Error("production pass failed",
				"event", "scheduler_production_pass_failed",
				"module", "studio-content/period-scheduler",
				"layer", "application",
				"pass", pass.name,
				"error", err.Error(),
			)
			continue
		}
		*pass.target = result
	}
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
