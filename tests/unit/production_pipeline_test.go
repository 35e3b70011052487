package unit

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	productionpipeline "backlot/contexts/studio-content/production-pipeline"
	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

type stubVideoGenerator struct {
	durationSeconds float64
	err             error
}

func (g stubVideoGenerator) GenerateVideo(_ context.Context, _ ports.GenerationRequest) (ports.GenerationResult, error) {
	if g.err != nil {
		return ports.GenerationResult{}, g.err
	}
	duration := g.durationSeconds
	if duration == 0 {
		duration = 8
	}
	return ports.GenerationResult{
		AssetBytes:      []byte("video-bytes"),
		ContentType:     "video/mp4",
		DurationSeconds: duration,
		Width:           1216,
		Height:          704,
		Provider:        "stub",
	}, nil
}

type stubAudioGenerator struct{}

func (g stubAudioGenerator) GenerateAudio(_ context.Context, _ ports.GenerationRequest) (ports.GenerationResult, error) {
	return ports.GenerationResult{
		AssetBytes:      []byte("audio-bytes"),
		ContentType:     "audio/mpeg",
		DurationSeconds: 120,
		Provider:        "stub",
	}, nil
}

type stubImageGenerator struct{}

func (g stubImageGenerator) GenerateImage(_ context.Context, _ ports.GenerationRequest) (ports.GenerationResult, error) {
	return ports.GenerationResult{
		AssetBytes:  []byte("poster-bytes"),
		ContentType: "image/png",
		Width:       1024,
		Height:      1536,
		Provider:    "stub",
	}, nil
}

type stubUploader struct{}

func (u stubUploader) Upload(_ context.Context, key string, _ string, body []byte) (ports.UploadResult, error) {
	return ports.UploadResult{URL: "https://cdn.test/" + key, Size: int64(len(body))}, nil
}

func seedWonDramaSubmission(module productionpipeline.Module) {
	module.Store.SeedWonSubmission(ports.WonSubmission{
		SubmissionID: "sub-1",
		StudioID:     "studio-1",
		Category:     "drama",
		Title:        "Night Shift",
		Content:      json.RawMessage(`{"logline":"a courier finds a door","style":"neo-noir"}`),
	})
}

func TestProcessSkipsUnitsWhenProvidersUnconfigured(t *testing.T) {
	module := productionpipeline.NewInMemoryModule(nil, nil, nil, nil, nil)
	ctx := context.Background()
	seedWonDramaSubmission(module)

	report, err := module.Service.Process(ctx, entities.WorkKindEpisodeVideo, 10)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Selected != 2 || report.Skipped != 2 {
		t.Fatalf("expected both episode units selected and skipped, got selected=%d skipped=%d",
			report.Selected, report.Skipped)
	}
	if report.Completed != 0 || report.Failed != 0 {
		t.Fatalf("skipped pass must not touch units, got completed=%d failed=%d",
			report.Completed, report.Failed)
	}

	series, ok := module.Store.SeriesBySubmission("sub-1")
	if !ok {
		t.Fatal("expected series seeded for won submission")
	}
	works, err := module.Store.ListWorksBySeries(ctx, series.SeriesID)
	if err != nil {
		t.Fatalf("listing works failed: %v", err)
	}
	if len(works) != 5 {
		t.Fatalf("expected 2 episodes, 2 audio tracks, and a poster, got %d units", len(works))
	}
	for _, work := range works {
		if work.Status != entities.WorkStatusPending || work.RetryCount != 0 {
			t.Fatalf("unit %s must stay pristine, got status=%q retries=%d",
				work.WorkID, work.Status, work.RetryCount)
		}
	}
}

func TestProcessCompletesSeriesAndOpensPaidVoting(t *testing.T) {
	module := productionpipeline.NewInMemoryModule(
		stubVideoGenerator{}, stubAudioGenerator{}, stubImageGenerator{}, stubUploader{}, nil)
	ctx := context.Background()
	seedWonDramaSubmission(module)

	for _, kind := range []entities.WorkKind{
		entities.WorkKindEpisodeVideo,
		entities.WorkKindAudioTrack,
		entities.WorkKindPoster,
	} {
		report, err := module.Service.Process(ctx, kind, 10)
		if err != nil {
			t.Fatalf("process %s failed: %v", kind, err)
		}
		if report.Failed != 0 || report.Completed != report.Selected {
			t.Fatalf("expected clean %s pass, got %+v", kind, report)
		}
	}

	series, ok := module.Store.SeriesBySubmission("sub-1")
	if !ok {
		t.Fatal("expected series for won submission")
	}
	if !series.PaidVotingOpen || series.Status != entities.SeriesStatusReady {
		t.Fatalf("series must open paid voting after final unit, got open=%v status=%q",
			series.PaidVotingOpen, series.Status)
	}
	works, err := module.Store.ListWorksBySeries(ctx, series.SeriesID)
	if err != nil {
		t.Fatalf("listing works failed: %v", err)
	}
	for _, work := range works {
		if work.Status != entities.WorkStatusCompleted {
			t.Fatalf("unit %s not completed: %q", work.WorkID, work.Status)
		}
		if !strings.HasPrefix(work.AssetURL, "https://cdn.test/") {
			t.Fatalf("unit %s missing uploaded asset URL: %q", work.WorkID, work.AssetURL)
		}
	}

	ready := 0
	messages, err := module.Store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("listing outbox failed: %v", err)
	}
	for _, message := range messages {
		if message.EventType == "series.ready" {
			ready++
		}
	}
	if ready != 1 {
		t.Fatalf("expected exactly one series.ready event, got %d", ready)
	}
}

func TestProcessReclaimsStaleGeneratingUnit(t *testing.T) {
	module := productionpipeline.NewInMemoryModule(
		stubVideoGenerator{}, stubAudioGenerator{}, stubImageGenerator{}, stubUploader{}, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	module.Store.SeedSeries(entities.Series{
		SeriesID:     "series-1",
		SubmissionID: "sub-1",
		Category:     "drama",
		Title:        "Night Shift",
		EpisodeCount: 2,
		Status:       entities.SeriesStatusProducing,
		CreatedAt:    now.Add(-4 * time.Hour),
	})
	staleAttempt := now.Add(-3 * time.Hour)
	module.Store.SeedWork(entities.ProducedWork{
		WorkID:        "work-stale",
		SeriesID:      "series-1",
		Kind:          entities.WorkKindEpisodeVideo,
		Sequence:      1,
		Status:        entities.WorkStatusGenerating,
		LastAttemptAt: &staleAttempt,
		CreatedAt:     now.Add(-4 * time.Hour),
	})

	report, err := module.Service.Process(ctx, entities.WorkKindEpisodeVideo, 10)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Selected != 1 || report.Completed != 1 {
		t.Fatalf("expected stale unit reclaimed and completed, got %+v", report)
	}
	work, _ := module.Store.GetWork("work-stale")
	if work.Status != entities.WorkStatusCompleted {
		t.Fatalf("expected completed status, got %q", work.Status)
	}
}

func TestProcessClassifiesQualityGateFailure(t *testing.T) {
	module := productionpipeline.NewInMemoryModule(
		stubVideoGenerator{durationSeconds: 2}, stubAudioGenerator{}, stubImageGenerator{}, stubUploader{}, nil)
	ctx := context.Background()
	seedWonDramaSubmission(module)

	report, err := module.Service.Process(ctx, entities.WorkKindEpisodeVideo, 10)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if report.Failed != 2 || report.Completed != 0 {
		t.Fatalf("expected both episode units to fail the gate, got %+v", report)
	}

	series, _ := module.Store.SeriesBySubmission("sub-1")
	works, err := module.Store.ListWorksBySeries(ctx, series.SeriesID)
	if err != nil {
		t.Fatalf("listing works failed: %v", err)
	}
	for _, work := range works {
		if work.Kind != entities.WorkKindEpisodeVideo {
			continue
		}
		if work.Status != entities.WorkStatusFailed {
			t.Fatalf("unit %s expected failed, got %q", work.WorkID, work.Status)
		}
		if !strings.HasPrefix(work.LastError, "quality_gate: ") {
			t.Fatalf("unit %s expected quality_gate error class, got %q", work.WorkID, work.LastError)
		}
		if work.RetryCount != 1 {
			t.Fatalf("unit %s expected one recorded attempt, got %d", work.WorkID, work.RetryCount)
		}
	}
}
