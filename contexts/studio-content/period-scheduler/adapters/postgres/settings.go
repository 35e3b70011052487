package postgresadapter

import (
	"context"
	"strconv"
	"time"

	"backlot/contexts/studio-content/period-scheduler/ports"

	"gorm.io/gorm"
)

// SettingsProvider reads scheduler runtime settings from the shared
// runtime_settings table on every call, so operators can retune cadence and
// limits without a redeploy. Missing keys fall back to defaults.
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

func (p SettingsProvider) SchedulerConfig(ctx context.Context) (ports.SchedulerConfig, error) {
	var rows []settingModel
	if err := p.DB.WithContext(ctx).
		Where("key LIKE ?", "scheduler.%").
		Find(&rows).Error; err != nil {
		return ports.SchedulerConfig{}, err
	}

	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	cfg := ports.SchedulerConfig{
		Cadence:             ports.CadenceDaily,
		ImmediateStartDelay: 2 * time.Minute,
		DailyStartHour:      0,
		WeeklyStartWeekday:  time.Monday,
		WeeklyStartHour:     0,
		AgentVotingWindow:   24 * time.Hour,
		HumanVotingWindow:   7 * 24 * time.Hour,
		PassLimit:           10,
		RetryLimit:          5,
		ClosuresPerTick:     20,
	}
	if raw, ok := values["scheduler.cadence"]; ok {
		switch ports.Cadence(raw) {
		case ports.CadenceImmediate, ports.CadenceDaily, ports.CadenceWeekly:
			cfg.Cadence = ports.Cadence(raw)
		}
	}
	cfg.ImmediateStartDelay = durationSetting(values, "scheduler.immediate_start_delay", cfg.ImmediateStartDelay)
	cfg.DailyStartHour = intSetting(values, "scheduler.daily_start_hour", cfg.DailyStartHour)
	cfg.WeeklyStartHour = intSetting(values, "scheduler.weekly_start_hour", cfg.WeeklyStartHour)
	if raw, ok := values["scheduler.weekly_start_weekday"]; ok {
		if day, err := strconv.Atoi(raw); err == nil && day >= 0 && day <= 6 {
			cfg.WeeklyStartWeekday = time.Weekday(day)
		}
	}
	cfg.AgentVotingWindow = durationSetting(values, "scheduler.agent_voting_window", cfg.AgentVotingWindow)
	cfg.HumanVotingWindow = durationSetting(values, "scheduler.human_voting_window", cfg.HumanVotingWindow)
	cfg.PassLimit = intSetting(values, "scheduler.pass_limit", cfg.PassLimit)
	cfg.RetryLimit = intSetting(values, "scheduler.retry_limit", cfg.RetryLimit)
	cfg.ClosuresPerTick = intSetting(values, "scheduler.closures_per_tick", cfg.ClosuresPerTick)
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
