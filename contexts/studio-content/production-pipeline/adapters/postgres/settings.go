package postgresadapter

import (
	"context"
	"strconv"
	"time"

	"backlot/contexts/studio-content/production-pipeline/ports"

	"gorm.io/gorm"
)

// SettingsProvider reads pipeline runtime settings from the shared
// runtime_settings table on every pass, so retry ceilings and quality-gate
// bounds are adjustable without a redeploy.
type SettingsProvider struct {
	DB *gorm.DB
}

type settingModel struct {
	Key   string `gorm:"column:key;primaryKey"`
	Value string `gorm:"column:value"`
}

func (settingModel) TableName() string {
	return "runtime_settings"
}

func (p SettingsProvider) PipelineConfig(ctx context.Context) (ports.PipelineConfig, error) {
	var rows []settingModel
	if err := p.DB.WithContext(ctx).
		Where("key LIKE ?", "pipeline.%").
		Find(&rows).Error; err != nil {
		return ports.PipelineConfig{}, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	cfg := ports.PipelineConfig{
		MaxRetries:             4,
		RetryBaseDelay:         24 * time.Hour,
		RetryBackoffMultiplier: 1.5,
		MaxWorkAge:             14 * 24 * time.Hour,
		GeneratingGrace:        2 * time.Hour,
		ProviderTimeout:        5 * time.Minute,
		Parallelism:            3,
		EpisodesPerSeries:      3,
		AudioTracksPerSeries:   3,
		AudioMinSeconds:        30,
		AudioMaxSeconds:        600,
		VideoMinSeconds:        4,
		VideoMaxSeconds:        12,
		PosterWidth:            1024,
		PosterHeight:           1536,
	}
	cfg.MaxRetries = intSetting(values, "pipeline.max_retries", cfg.MaxRetries)
	cfg.RetryBaseDelay = durationSetting(values, "pipeline.retry_base_delay", cfg.RetryBaseDelay)
	cfg.RetryBackoffMultiplier = floatSetting(values, "pipeline.retry_backoff_multiplier", cfg.RetryBackoffMultiplier)
	cfg.MaxWorkAge = durationSetting(values, "pipeline.max_work_age", cfg.MaxWorkAge)
	cfg.GeneratingGrace = durationSetting(values, "pipeline.generating_grace", cfg.GeneratingGrace)
	cfg.ProviderTimeout = durationSetting(values, "pipeline.provider_timeout", cfg.ProviderTimeout)
	cfg.Parallelism = intSetting(values, "pipeline.parallelism", cfg.Parallelism)
	cfg.EpisodesPerSeries = intSetting(values, "pipeline.episodes_per_series", cfg.EpisodesPerSeries)
	cfg.AudioTracksPerSeries = intSetting(values, "pipeline.audio_tracks_per_series", cfg.AudioTracksPerSeries)
	cfg.AudioMinSeconds = floatSetting(values, "pipeline.audio_min_seconds", cfg.AudioMinSeconds)
	cfg.AudioMaxSeconds = floatSetting(values, "pipeline.audio_max_seconds", cfg.AudioMaxSeconds)
	cfg.VideoMinSeconds = floatSetting(values, "pipeline.video_min_seconds", cfg.VideoMinSeconds)
	cfg.VideoMaxSeconds = floatSetting(values, "pipeline.video_max_seconds", cfg.VideoMaxSeconds)
	cfg.PosterWidth = intSetting(values, "pipeline.poster_width", cfg.PosterWidth)
	cfg.PosterHeight = intSetting(values, "pipeline.poster_height", cfg.PosterHeight)
	return cfg, nil
}

func durationSetting(values map[string]string, key string, fallback time.Duration) time.Duration {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intSetting(values map[string]string, key string, fallback int) int {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func floatSetting(values map[string]string, key string, fallback float64) float64 {
	raw, ok := values[key]
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
