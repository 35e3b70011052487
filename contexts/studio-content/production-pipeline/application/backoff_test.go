package application

import (
	"testing"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

func TestRetryDelayGrowsStrictly(t *testing.T) {
	cfg := ports.PipelineConfig{
		RetryBaseDelay:         24 * time.Hour,
		RetryBackoffMultiplier: 1.5,
	}

	previous := time.Duration(0)
	for retry := 0; retry < 5; retry++ {
		delay := RetryDelay(cfg, retry)
		if delay <= previous {
			t.Fatalf("delay at retry %d (%v) not greater than previous (%v)", retry, delay, previous)
		}
		previous = delay
	}
}

func TestRetryDelayFinalAttemptFitsInsideMaxAge(t *testing.T) {
	// The default schedule must leave the last retry reachable before the
	// unit ages out, otherwise the ceiling is never exercised.
	cfg := ports.PipelineConfig{
		MaxRetries:             4,
		RetryBaseDelay:         24 * time.Hour,
		RetryBackoffMultiplier: 1.5,
		MaxWorkAge:             14 * 24 * time.Hour,
	}

	total := time.Duration(0)
	for retry := 0; retry < cfg.MaxRetries; retry++ {
		total += RetryDelay(cfg, retry)
	}
	if total >= cfg.MaxWorkAge {
		t.Fatalf("cumulative retry schedule %v exceeds max age %v", total, cfg.MaxWorkAge)
	}
}

func TestRetryDelayDefaultsWhenUnconfigured(t *testing.T) {
	delay := RetryDelay(ports.PipelineConfig{}, 0)
	if delay != 24*time.Hour {
		t.Fatalf("expected default base delay of 24h, got %v", delay)
	}
}

func TestRetryEligibleAbandonsAtCeiling(t *testing.T) {
	cfg := ports.PipelineConfig{MaxRetries: 4, MaxWorkAge: 14 * 24 * time.Hour}
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	work := entities.ProducedWork{RetryCount: 4, CreatedAt: now.Add(-time.Hour)}

	eligible, abandon, reason := retryEligible(cfg, work, now)
	if eligible || !abandon {
		t.Fatalf("expected abandon at retry ceiling, got eligible=%v abandon=%v", eligible, abandon)
	}
	if reason == "" {
		t.Fatalf("expected abandon reason")
	}
}

func TestRetryEligibleAbandonsPastMaxAge(t *testing.T) {
	cfg := ports.PipelineConfig{MaxRetries: 4, MaxWorkAge: 14 * 24 * time.Hour}
	now := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	work := entities.ProducedWork{RetryCount: 1, CreatedAt: now.Add(-15 * 24 * time.Hour)}

	eligible, abandon, _ := retryEligible(cfg, work, now)
	if eligible || !abandon {
		t.Fatalf("expected abandon past max age, got eligible=%v abandon=%v", eligible, abandon)
	}
}

func TestRetryEligibleWaitsOutBackoffWindow(t *testing.T) {
	cfg := ports.PipelineConfig{
		MaxRetries:             4,
		RetryBaseDelay:         24 * time.Hour,
		RetryBackoffMultiplier: 1.5,
		MaxWorkAge:             14 * 24 * time.Hour,
	}
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	lastAttempt := now.Add(-time.Hour)
	work := entities.ProducedWork{
		RetryCount:    1,
		CreatedAt:     now.Add(-2 * 24 * time.Hour),
		LastAttemptAt: &lastAttempt,
	}

	eligible, abandon, _ := retryEligible(cfg, work, now)
	if eligible || abandon {
		t.Fatalf("expected unit still inside backoff window, got eligible=%v abandon=%v", eligible, abandon)
	}

	staleAttempt := now.Add(-40 * time.Hour)
	work.LastAttemptAt = &staleAttempt
	eligible, abandon, _ = retryEligible(cfg, work, now)
	if !eligible || abandon {
		t.Fatalf("expected unit eligible after backoff elapsed, got eligible=%v abandon=%v", eligible, abandon)
	}
}
