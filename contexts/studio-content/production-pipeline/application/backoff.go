package application

import (
	"math"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

const (
	defaultRetryBaseDelay  = 24 * time.Hour
	defaultRetryMultiplier = 1.5
	defaultMaxRetries      = 4
	defaultMaxWorkAge      = 14 * 24 * time.Hour
	defaultGeneratingGrace = 2 * time.Hour
)

// RetryDelay computes the wait before the next attempt of a failed unit:
// base * multiplier^retryCount. The schedule is strictly increasing for any
// multiplier > 1.
func RetryDelay(cfg ports.PipelineConfig, retryCount int) time.Duration {
	base := cfg.RetryBaseDelay
	if base <= 0 {
		base = defaultRetryBaseDelay
	}
	multiplier := cfg.RetryBackoffMultiplier
	if multiplier <= 1 {
		multiplier = defaultRetryMultiplier
	}
	if retryCount < 0 {
		retryCount = 0
	}
	scaled := float64(base) * math.Pow(multiplier, float64(retryCount))
	if scaled > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

// retryEligible reports whether a failed unit may be re-attempted now, or
// should instead be abandoned (retries exhausted or too old).
func retryEligible(cfg ports.PipelineConfig, work entities.ProducedWork, now time.Time) (eligible bool, abandon bool, reason string) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxAge := cfg.MaxWorkAge
	if maxAge <= 0 {
		maxAge = defaultMaxWorkAge
	}

	if work.RetryCount >= maxRetries {
		return false, true, "retry ceiling reached"
	}
	if now.Sub(work.CreatedAt) >= maxAge {
		return false, true, "max age exceeded"
	}
	if work.LastAttemptAt != nil && now.Sub(*work.LastAttemptAt) < RetryDelay(cfg, work.RetryCount) {
		return false, false, ""
	}
	return true, false, ""
}
