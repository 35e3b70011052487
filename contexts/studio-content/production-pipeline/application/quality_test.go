package application

import (
	"errors"
	"strings"
	"testing"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

func gateConfig() ports.PipelineConfig {
	return ports.PipelineConfig{
		AudioMinSeconds: 30,
		AudioMaxSeconds: 300,
		VideoMinSeconds: 4,
		VideoMaxSeconds: 12,
		PosterWidth:     1024,
		PosterHeight:    1536,
	}
}

func TestQualityGateAudioBoundsAreInclusive(t *testing.T) {
	cfg := gateConfig()

	for _, duration := range []float64{30, 300} {
		result := ports.GenerationResult{DurationSeconds: duration}
		if err := applyQualityGates(cfg, entities.WorkKindAudioTrack, result); err != nil {
			t.Fatalf("boundary duration %.0fs should pass: %v", duration, err)
		}
	}
	for _, duration := range []float64{29.9, 300.1} {
		result := ports.GenerationResult{DurationSeconds: duration}
		if err := applyQualityGates(cfg, entities.WorkKindAudioTrack, result); err == nil {
			t.Fatalf("duration %.1fs should fail the gate", duration)
		}
	}
}

func TestQualityGateVideoBoundsAreInclusive(t *testing.T) {
	cfg := gateConfig()

	for _, duration := range []float64{4, 12} {
		result := ports.GenerationResult{DurationSeconds: duration}
		if err := applyQualityGates(cfg, entities.WorkKindEpisodeVideo, result); err != nil {
			t.Fatalf("boundary duration %.0fs should pass: %v", duration, err)
		}
	}
	if err := applyQualityGates(cfg, entities.WorkKindEpisodeVideo, ports.GenerationResult{DurationSeconds: 12.5}); err == nil {
		t.Fatalf("over-length video should fail the gate")
	}
}

func TestQualityGatePosterDimensionsExact(t *testing.T) {
	cfg := gateConfig()

	good := ports.GenerationResult{Width: 1024, Height: 1536, ContentType: "image/png"}
	if err := applyQualityGates(cfg, entities.WorkKindPoster, good); err != nil {
		t.Fatalf("exact poster dimensions should pass: %v", err)
	}

	wrong := ports.GenerationResult{Width: 512, Height: 1536, ContentType: "image/png"}
	if err := applyQualityGates(cfg, entities.WorkKindPoster, wrong); err == nil {
		t.Fatalf("wrong poster width should fail the gate")
	}

	notImage := ports.GenerationResult{Width: 1024, Height: 1536, ContentType: "video/mp4"}
	if err := applyQualityGates(cfg, entities.WorkKindPoster, notImage); err == nil {
		t.Fatalf("non-image poster content type should fail the gate")
	}
}

func TestQualityGateDisabledWhenUnconfigured(t *testing.T) {
	result := ports.GenerationResult{DurationSeconds: 9999}
	if err := applyQualityGates(ports.PipelineConfig{}, entities.WorkKindAudioTrack, result); err != nil {
		t.Fatalf("unconfigured gate should accept anything: %v", err)
	}
}

func TestClassifyAttemptErrorPrefixes(t *testing.T) {
	gateErr := applyQualityGates(gateConfig(), entities.WorkKindAudioTrack, ports.GenerationResult{DurationSeconds: 1})
	if gateErr == nil {
		t.Fatalf("expected gate failure")
	}
	if msg := classifyAttemptError(gateErr); !strings.HasPrefix(msg, "quality_gate: ") {
		t.Fatalf("expected quality_gate prefix, got %q", msg)
	}

	providerErr := &ports.ProviderError{Kind: ports.ProviderErrorRateLimited, Message: "too many requests"}
	if msg := classifyAttemptError(providerErr); !strings.HasPrefix(msg, "provider: ") {
		t.Fatalf("expected provider prefix, got %q", msg)
	}
}

func TestClassifyAttemptErrorTruncates(t *testing.T) {
	noisy := errors.New(strings.Repeat("x", 2000))
	msg := classifyAttemptError(noisy)
	if len(msg) != 500 {
		t.Fatalf("expected persisted error truncated to 500 chars, got %d", len(msg))
	}
}
