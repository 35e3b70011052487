package application

import (
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	"backlot/contexts/studio-content/period-scheduler/ports"
)

// minVotingWindow is the floor applied to configured window durations so a
// misconfigured snapshot can never produce a zero-length voting window.
const minVotingWindow = time.Minute

const defaultImmediateDelay = 2 * time.Minute

// nextPeriodStart computes when the next period of a type should begin under
// the snapshot's cadence policy.
func nextPeriodStart(cfg ports.SchedulerConfig, now time.Time) time.Time {
	now = now.UTC()
	switch cfg.Cadence {
	case ports.CadenceDaily:
		start := time.Date(now.Year(), now.Month(), now.Day(), clampHour(cfg.DailyStartHour), 0, 0, 0, time.UTC)
		if !start.After(now) {
			start = start.Add(24 * time.Hour)
		}
		return start
	case ports.CadenceWeekly:
		start := time.Date(now.Year(), now.Month(), now.Day(), clampHour(cfg.WeeklyStartHour), 0, 0, 0, time.UTC)
		for start.Weekday() != cfg.WeeklyStartWeekday || !start.After(now) {
			start = start.Add(24 * time.Hour)
		}
		return start
	default:
		delay := cfg.ImmediateStartDelay
		if delay <= 0 {
			delay = defaultImmediateDelay
		}
		return now.Add(delay)
	}
}

// votingWindow returns the configured window for a period type, clamped to
// the minimum.
func votingWindow(cfg ports.SchedulerConfig, periodType entities.PeriodType) time.Duration {
	window := cfg.AgentVotingWindow
	if periodType == entities.PeriodTypeHumanVoting {
		window = cfg.HumanVotingWindow
	}
	if window < minVotingWindow {
		window = minVotingWindow
	}
	return window
}

func clampHour(hour int) int {
	if hour < 0 {
		return 0
	}
	if hour > 23 {
		return 23
	}
	return hour
}
