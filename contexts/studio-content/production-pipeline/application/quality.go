package application

import (
	"fmt"
	"strings"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

// Error message prefixes keep operator triage queries cheap: quality-gate
// rejections and provider failures share a retry ceiling but must stay
// distinguishable in the persisted last_error column.
const (
	errPrefixQualityGate = "quality_gate: "
	errPrefixProvider    = "provider: "
)

const maxPersistedErrorLen = 500

// applyQualityGates validates a generation result before it is accepted.
// Bounds are inclusive on both ends.
func applyQualityGates(cfg ports.PipelineConfig, kind entities.WorkKind, result ports.GenerationResult) error {
	switch kind {
	case entities.WorkKindAudioTrack:
		min, max := cfg.AudioMinSeconds, cfg.AudioMaxSeconds
		if max <= 0 {
			return nil
		}
		if result.DurationSeconds < min || result.DurationSeconds > max {
			return fmt.Errorf("%saudio duration %.1fs outside [%.1fs, %.1fs]",
				errPrefixQualityGate, result.DurationSeconds, min, max)
		}
	case entities.WorkKindEpisodeVideo:
		min, max := cfg.VideoMinSeconds, cfg.VideoMaxSeconds
		if max <= 0 {
			return nil
		}
		if result.DurationSeconds < min || result.DurationSeconds > max {
			return fmt.Errorf("%svideo duration %.1fs outside [%.1fs, %.1fs]",
				errPrefixQualityGate, result.DurationSeconds, min, max)
		}
	case entities.WorkKindPoster:
		if cfg.PosterWidth > 0 && result.Width != cfg.PosterWidth {
			return fmt.Errorf("%sposter width %d, want %d", errPrefixQualityGate, result.Width, cfg.PosterWidth)
		}
		if cfg.PosterHeight > 0 && result.Height != cfg.PosterHeight {
			return fmt.Errorf("%sposter height %d, want %d", errPrefixQualityGate, result.Height, cfg.PosterHeight)
		}
		if result.ContentType != "" && !strings.HasPrefix(result.ContentType, "image/") {
			return fmt.Errorf("%sposter content type %q is not an image", errPrefixQualityGate, result.ContentType)
		}
	}
	return nil
}

// classifyAttemptError renders a failure into the persisted error message.
// Never include secrets or signature material; truncate provider noise.
func classifyAttemptError(err error) string {
	message := err.Error()
	if !strings.HasPrefix(message, errPrefixQualityGate) {
		message = errPrefixProvider + message
	}
	if len(message) > maxPersistedErrorLen {
		message = message[:maxPersistedErrorLen]
	}
	return message
}
