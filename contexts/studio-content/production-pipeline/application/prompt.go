package application

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"
	"backlot/contexts/studio-content/production-pipeline/ports"
)

// contentSpec is the structured payload a studio submits with its pitch.
// Unknown fields are ignored so older submissions keep producing.
type contentSpec struct {
	Logline        string   `json:"logline"`
	Style          string   `json:"style"`
	Setting        string   `json:"setting"`
	Characters     []string `json:"characters"`
	Scenes         []string `json:"scenes"`
	NegativePrompt string   `json:"negative_prompt"`
}

const defaultNegativePrompt = "blurry, low quality, watermark, distorted faces"

// buildGenerationRequest derives the provider request deterministically from
// the series content. The same series, kind, and sequence always produce the
// same request, which keeps re-attempts reproducible.
func buildGenerationRequest(
	cfg ports.PipelineConfig,
	series entities.Series,
	work entities.ProducedWork,
) ports.GenerationRequest {
	var spec contentSpec
	_ = json.Unmarshal(series.ContentSpec, &spec)

	var prompt strings.Builder
	if spec.Style != "" {
		prompt.WriteString(spec.Style)
		prompt.WriteString(". ")
	}
	prompt.WriteString(series.Title)
	if spec.Logline != "" {
		prompt.WriteString(": ")
		prompt.WriteString(spec.Logline)
	}
	if spec.Setting != "" {
		prompt.WriteString(". Set in ")
		prompt.WriteString(spec.Setting)
	}
	if len(spec.Characters) > 0 {
		prompt.WriteString(". Featuring ")
		prompt.WriteString(strings.Join(spec.Characters, ", "))
	}

	request := ports.GenerationRequest{
		NegativePrompt: spec.NegativePrompt,
		Seed:           deterministicSeed(series.SeriesID, work.Kind, work.Sequence),
	}
	if request.NegativePrompt == "" {
		request.NegativePrompt = defaultNegativePrompt
	}

	switch work.Kind {
	case entities.WorkKindEpisodeVideo:
		if scene := sceneForSequence(spec.Scenes, work.Sequence); scene != "" {
			prompt.WriteString(". Episode ")
			fmt.Fprintf(&prompt, "%d", work.Sequence)
			prompt.WriteString(": ")
			prompt.WriteString(scene)
		}
		request.DurationSeconds = midpoint(cfg.VideoMinSeconds, cfg.VideoMaxSeconds, 8)
		request.Width = 1216
		request.Height = 704
		request.FPS = 24
	case entities.WorkKindAudioTrack:
		prompt.WriteString(". Narrated audio episode ")
		fmt.Fprintf(&prompt, "%d", work.Sequence)
		request.DurationSeconds = midpoint(cfg.AudioMinSeconds, cfg.AudioMaxSeconds, 90)
	case entities.WorkKindPoster:
		prompt.WriteString(". Theatrical poster, title text clearly legible")
		request.Width = cfg.PosterWidth
		request.Height = cfg.PosterHeight
		if request.Width <= 0 {
			request.Width = 1024
		}
		if request.Height <= 0 {
			request.Height = 1536
		}
	}

	request.Prompt = prompt.String()
	return request
}

func sceneForSequence(scenes []string, sequence int) string {
	if sequence < 1 || sequence > len(scenes) {
		return ""
	}
	return scenes[sequence-1]
}

func midpoint(min float64, max float64, fallback float64) float64 {
	if max <= 0 || max < min {
		return fallback
	}
	return (min + max) / 2
}

func deterministicSeed(seriesID string, kind entities.WorkKind, sequence int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%s/%d", seriesID, kind, sequence)
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
