package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	domainerrors "backlot/contexts/studio-content/production-pipeline/domain/errors"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

const (
	defaultProviderTimeout = 5 * time.Minute
	defaultParallelism     = 3
	defaultEpisodesCount   = 3
	defaultAudioTracks     = 3
)

// Service owns every ProducedWork mutation. Each pass claims units through
// compare-and-set transitions, so overlapping ticks and concurrent workers
// never double-generate a unit, and no lock is held across a provider call.
type Service struct {
	Repo     ports.Repository
	Video    ports.VideoGenerator
	Audio    ports.AudioGenerator
	Image    ports.ImageGenerator
	Uploader ports.StorageUploader
	Config   ports.ConfigProvider
	Outbox   ports.OutboxWriter
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

// Process runs one production pass for a work kind: seeds series for newly
// won submissions, claims up to limit pending units, and attempts generation
// on each. Per-unit failures are counted, never propagated.
func (s Service) Process(ctx context.Context, kind entities.WorkKind, limit int) (ports.PassReport, error) {
	if !entities.ValidKind(kind) {
		return ports.PassReport{}, domainerrors.ErrUnknownKind
	}
	logger := ResolveLogger(s.Logger)
	now := s.now()

	cfg, err := s.Config.PipelineConfig(ctx)
	if err != nil {
		return ports.PassReport{}, err
	}
	if limit <= 0 {
		limit = 10
	}

	if err := s.seedSeries(ctx, cfg, now, limit); err != nil {
		return ports.PassReport{}, err
	}

	grace := cfg.GeneratingGrace
	if grace <= 0 {
		grace = defaultGeneratingGrace
	}
	units, err := s.Repo.ListPendingWorks(ctx, kind, now.Add(-grace), limit)
	if err != nil {
		return ports.PassReport{}, err
	}

	report := ports.PassReport{Selected: len(units)}
	if len(units) == 0 {
		return report, nil
	}

	// A missing collaborator is a configuration gap, not a unit failure:
	// leave the units untouched so retry counters stay clean.
	if s.generatorFor(kind) == nil || s.Uploader == nil {
		report.Skipped = len(units)
		logger.Warn("production pass skipped, collaborator not configured",
			"event", "pipeline_pass_skipped",
			"module", "studio-content/production-pipeline",
			"layer", "application",
			"kind", string(kind),
			"unit_count", len(units),
		)
		return report, nil
	}

	s.runUnits(ctx, cfg, units, entities.WorkStatusPending, &report)

	logger.Info("production pass completed",
		"event", "pipeline_pass_completed",
		"module", "studio-content/production-pipeline",
		"layer", "application",
		"kind", string(kind),
		"selected", report.Selected,
		"completed", report.Completed,
		"failed", report.Failed,
	)
	return report, nil
}

// RetrySweep re-attempts failed units whose backoff window has elapsed and
// abandons units past the retry ceiling or the max age.
func (s Service) RetrySweep(ctx context.Context, kind entities.WorkKind, limit int) (ports.PassReport, error) {
	if !entities.ValidKind(kind) {
		return ports.PassReport{}, domainerrors.ErrUnknownKind
	}
	logger := ResolveLogger(s.Logger)
	now := s.now()

	cfg, err := s.Config.PipelineConfig(ctx)
	if err != nil {
		return ports.PassReport{}, err
	}
	if limit <= 0 {
		limit = 5
	}

	// Over-select so abandoned units do not starve eligible ones.
	failed, err := s.Repo.ListFailedWorks(ctx, kind, limit*4)
	if err != nil {
		return ports.PassReport{}, err
	}

	report := ports.PassReport{}
	eligible := make([]entities.ProducedWork, 0, limit)
	for _, work := range failed {
		ok, abandon, reason := retryEligible(cfg, work, now)
		if abandon {
			if err := s.Repo.MarkWorkAbandoned(ctx, work.WorkID, reason, now); err != nil {
				return report, err
			}
			logger.Info("produced work abandoned",
				"event", "pipeline_work_abandoned",
				"module", "studio-content/production-pipeline",
				"layer", "application",
				"work_id", work.WorkID,
				"kind", string(work.Kind),
				"retry_count", work.RetryCount,
				"reason", reason,
			)
			continue
		}
		if !ok {
			continue
		}
		eligible = append(eligible, work)
		if len(eligible) >= limit {
			break
		}
	}

	report.Selected = len(eligible)
	if len(eligible) == 0 {
		return report, nil
	}
	if s.generatorFor(kind) == nil || s.Uploader == nil {
		report.Skipped = len(eligible)
		return report, nil
	}

	s.runUnits(ctx, cfg, eligible, entities.WorkStatusFailed, &report)
	return report, nil
}

// ListSeriesWorks is the read path behind the series works endpoint.
func (s Service) ListSeriesWorks(ctx context.Context, seriesID string) (entities.Series, []entities.ProducedWork, error) {
	series, err := s.Repo.GetSeries(ctx, seriesID)
	if err != nil {
		return entities.Series{}, nil, err
	}
	works, err := s.Repo.ListWorksBySeries(ctx, seriesID)
	if err != nil {
		return entities.Series{}, nil, err
	}
	return series, works, nil
}

// seedSeries creates a series plus its pending units for each won submission
// that has none yet. The create is transactional and conflict-tolerant so
// overlapping ticks cannot seed a submission twice.
func (s Service) seedSeries(ctx context.Context, cfg ports.PipelineConfig, now time.Time, limit int) error {
	won, err := s.Repo.ListWonSubmissionsWithoutSeries(ctx, limit)
	if err != nil {
		return err
	}
	logger := ResolveLogger(s.Logger)

	episodes := cfg.EpisodesPerSeries
	if episodes <= 0 {
		episodes = defaultEpisodesCount
	}
	audioTracks := cfg.AudioTracksPerSeries
	if audioTracks <= 0 {
		audioTracks = defaultAudioTracks
	}

	for _, submission := range won {
		seriesID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return err
		}
		series := entities.Series{
			SeriesID:     seriesID,
			SubmissionID: submission.SubmissionID,
			StudioID:     submission.StudioID,
			Category:     submission.Category,
			Title:        submission.Title,
			ContentSpec:  submission.Content,
			EpisodeCount: episodes,
			Status:       entities.SeriesStatusProducing,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		works := make([]entities.ProducedWork, 0, episodes+audioTracks+1)
		appendWork := func(kind entities.WorkKind, sequence int) error {
			workID, err := s.IDGen.NewID(ctx)
			if err != nil {
				return err
			}
			works = append(works, entities.ProducedWork{
				WorkID:    workID,
				SeriesID:  seriesID,
				Kind:      kind,
				Sequence:  sequence,
				Status:    entities.WorkStatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			})
			return nil
		}
		for i := 1; i <= episodes; i++ {
			if err := appendWork(entities.WorkKindEpisodeVideo, i); err != nil {
				return err
			}
		}
		for i := 1; i <= audioTracks; i++ {
			if err := appendWork(entities.WorkKindAudioTrack, i); err != nil {
				return err
			}
		}
		if err := appendWork(entities.WorkKindPoster, 1); err != nil {
			return err
		}

		if err := s.Repo.CreateSeriesWithWorks(ctx, series, works); err != nil {
			if errors.Is(err, domainerrors.ErrConflict) {
				continue
			}
			return err
		}
		logger.Info("series seeded for winning submission",
			"event", "pipeline_series_seeded",
			"module", "studio-content/production-pipeline",
			"layer", "application",
			"series_id", seriesID,
			"submission_id", submission.SubmissionID,
			"unit_count", len(works),
		)
	}
	return nil
}

// runUnits attempts a batch of units under a bounded worker pool; no lock is
// held across provider or storage calls.
func (s Service) runUnits(
	ctx context.Context,
	cfg ports.PipelineConfig,
	units []entities.ProducedWork,
	claimFrom entities.WorkStatus,
	report *ports.PassReport,
) {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, parallelism)
	)
	for _, unit := range units {
		unit := unit
		wg.Add(1)
		semaphore <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-semaphore }()

			completed, attempted := s.attemptUnit(ctx, cfg, unit, claimFrom)
			mu.Lock()
			defer mu.Unlock()
			if !attempted {
				report.Selected--
				return
			}
			if completed {
				report.Completed++
			} else {
				report.Failed++
			}
		}()
	}
	wg.Wait()
}

// attemptUnit claims, generates, gates, uploads, and persists one unit's
// outcome. Returns (completed, attempted); attempted is false when the claim
// was lost to a concurrent worker.
func (s Service) attemptUnit(
	ctx context.Context,
	cfg ports.PipelineConfig,
	unit entities.ProducedWork,
	claimFrom entities.WorkStatus,
) (bool, bool) {
	logger := ResolveLogger(s.Logger)
	now := s.now()

	from := claimFrom
	if unit.Status == entities.WorkStatusGenerating {
		// Stale claim from a crashed worker; re-claim from generating.
		from = entities.WorkStatusGenerating
	}
	claimed, err := s.Repo.ClaimWork(ctx, unit.WorkID, from, now)
	if err != nil || !claimed {
		return false, false
	}

	series, err := s.Repo.GetSeries(ctx, unit.SeriesID)
	if err != nil {
		_ = s.Repo.MarkWorkFailed(ctx, unit.WorkID, classifyAttemptError(err), s.now())
		return false, true
	}

	result, err := s.generate(ctx, cfg, series, unit)
	if err == nil {
		err = applyQualityGates(cfg, unit.Kind, result)
	}
	if err != nil {
		message := classifyAttemptError(err)
		if markErr := s.Repo.MarkWorkFailed(ctx, unit.WorkID, message, s.now()); markErr != nil {
			logger.Error("produced work failure persist failed",
				"event", "pipeline_mark_failed_error",
				"module", "studio-content/production-pipeline",
				"layer", "application",
				"work_id", unit.WorkID,
				"error", markErr.Error(),
			)
		}
		logger.Warn("produced work attempt failed",
			"event", "pipeline_work_attempt_failed",
			"module", "studio-content/production-pipeline",
			"layer", "application",
			"work_id", unit.WorkID,
			"kind", string(unit.Kind),
			"retry_count", unit.RetryCount,
			"error", message,
		)
		return false, true
	}

	assetURL := result.AssetURL
	if len(result.AssetBytes) > 0 {
		uploaded, err := s.Uploader.Upload(ctx, assetKey(series, unit, result.ContentType), result.ContentType, result.AssetBytes)
		if err != nil {
			_ = s.Repo.MarkWorkFailed(ctx, unit.WorkID, classifyAttemptError(err), s.now())
			return false, true
		}
		assetURL = uploaded.URL
	}

	completedAt := s.now()
	if err := s.Repo.MarkWorkCompleted(ctx, unit.WorkID, ports.CompletedWork{
		AssetURL:        assetURL,
		ContentType:     result.ContentType,
		DurationSeconds: result.DurationSeconds,
		Width:           result.Width,
		Height:          result.Height,
	}, completedAt); err != nil {
		logger.Error("produced work completion persist failed",
			"event", "pipeline_mark_completed_error",
			"module", "studio-content/production-pipeline",
			"layer", "application",
			"work_id", unit.WorkID,
			"error", err.Error(),
		)
		return false, true
	}

	if err := s.maybeOpenPaidVoting(ctx, series, completedAt); err != nil {
		logger.Error("paid voting open check failed",
			"event", "pipeline_paid_voting_check_failed",
			"module", "studio-content/production-pipeline",
			"layer", "application",
			"series_id", series.SeriesID,
			"error", err.Error(),
		)
	}
	return true, true
}

func (s Service) generate(
	ctx context.Context,
	cfg ports.PipelineConfig,
	series entities.Series,
	unit entities.ProducedWork,
) (ports.GenerationResult, error) {
	timeout := cfg.ProviderTimeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request := buildGenerationRequest(cfg, series, unit)
	switch unit.Kind {
	case entities.WorkKindEpisodeVideo:
		return s.Video.GenerateVideo(ctx, request)
	case entities.WorkKindAudioTrack:
		return s.Audio.GenerateAudio(ctx, request)
	case entities.WorkKindPoster:
		return s.Image.GenerateImage(ctx, request)
	}
	return ports.GenerationResult{}, domainerrors.ErrUnknownKind
}

// maybeOpenPaidVoting flips the series to paid voting when its final unit
// completes. The flip is a conditional update, so concurrent completions of
// the last two units race safely and the ready event fires once.
func (s Service) maybeOpenPaidVoting(ctx context.Context, series entities.Series, now time.Time) error {
	unfinished, err := s.Repo.CountUnfinishedWorks(ctx, series.SeriesID)
	if err != nil {
		return err
	}
	if unfinished > 0 {
		return nil
	}
	flipped, err := s.Repo.OpenPaidVoting(ctx, series.SeriesID, now)
	if err != nil || !flipped {
		return err
	}

	ResolveLogger(s.Logger).Info("series ready for paid voting",
		"event", "pipeline_series_ready",
		"module", "studio-content/production-pipeline",
		"layer", "application",
		"series_id", series.SeriesID,
	)
	if s.Outbox == nil {
		return nil
	}
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newPipelineEnvelope(eventID, "series.ready", series.SeriesID, now, map[string]any{
		"series_id":     series.SeriesID,
		"submission_id": series.SubmissionID,
		"category":      series.Category,
	})
	if err != nil {
		return err
	}
	return s.Outbox.AppendOutbox(ctx, envelope)
}

func (s Service) generatorFor(kind entities.WorkKind) any {
	switch kind {
	case entities.WorkKindEpisodeVideo:
		if s.Video == nil {
			return nil
		}
		return s.Video
	case entities.WorkKindAudioTrack:
		if s.Audio == nil {
			return nil
		}
		return s.Audio
	case entities.WorkKindPoster:
		if s.Image == nil {
			return nil
		}
		return s.Image
	}
	return nil
}

func assetKey(series entities.Series, unit entities.ProducedWork, contentType string) string {
	return fmt.Sprintf("series/%s/%s-%03d%s", series.SeriesID, unit.Kind, unit.Sequence, extensionFor(contentType))
}

func extensionFor(contentType string) string {
	switch contentType {
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav":
		return ".wav"
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	default:
		return ""
	}
}

func (s Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
