package application

import (
	"testing"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	"backlot/contexts/studio-content/period-scheduler/ports"
)

func TestNextPeriodStartImmediateUsesConfiguredDelay(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{Cadence: ports.CadenceImmediate, ImmediateStartDelay: 10 * time.Minute}

	start := nextPeriodStart(cfg, now)
	if want := now.Add(10 * time.Minute); !start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, start)
	}
}

func TestNextPeriodStartImmediateDefaultsToTwoMinutes(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{Cadence: ports.CadenceImmediate}

	start := nextPeriodStart(cfg, now)
	if want := now.Add(2 * time.Minute); !start.Equal(want) {
		t.Fatalf("expected default two minute delay, got %v", start)
	}
}

func TestNextPeriodStartDailyRollsToTomorrowWhenHourPassed(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{Cadence: ports.CadenceDaily, DailyStartHour: 9}

	start := nextPeriodStart(cfg, now)
	want := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}
}

func TestNextPeriodStartDailySameDayWhenHourAhead(t *testing.T) {
	now := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{Cadence: ports.CadenceDaily, DailyStartHour: 9}

	start := nextPeriodStart(cfg, now)
	want := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}
}

func TestNextPeriodStartWeeklyLandsOnConfiguredWeekday(t *testing.T) {
	// 2025-03-10 is a Monday.
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{
		Cadence:            ports.CadenceWeekly,
		WeeklyStartWeekday: time.Friday,
		WeeklyStartHour:    8,
	}

	start := nextPeriodStart(cfg, now)
	want := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}
	if start.Weekday() != time.Friday {
		t.Fatalf("expected Friday, got %v", start.Weekday())
	}
}

func TestNextPeriodStartWeeklySkipsToNextWeekWhenPassed(t *testing.T) {
	// Friday afternoon, past the 8:00 start.
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	cfg := ports.SchedulerConfig{
		Cadence:            ports.CadenceWeekly,
		WeeklyStartWeekday: time.Friday,
		WeeklyStartHour:    8,
	}

	start := nextPeriodStart(cfg, now)
	want := time.Date(2025, 3, 21, 8, 0, 0, 0, time.UTC)
	if !start.Equal(want) {
		t.Fatalf("expected %v, got %v", want, start)
	}
}

func TestVotingWindowClampsToMinimum(t *testing.T) {
	cfg := ports.SchedulerConfig{AgentVotingWindow: time.Second, HumanVotingWindow: 0}

	if window := votingWindow(cfg, entities.PeriodTypeAgentVoting); window != time.Minute {
		t.Fatalf("expected agent window clamped to one minute, got %v", window)
	}
	if window := votingWindow(cfg, entities.PeriodTypeHumanVoting); window != time.Minute {
		t.Fatalf("expected human window clamped to one minute, got %v", window)
	}
}

func TestVotingWindowUsesTypeSpecificDuration(t *testing.T) {
	cfg := ports.SchedulerConfig{
		AgentVotingWindow: 2 * time.Hour,
		HumanVotingWindow: 48 * time.Hour,
	}

	if window := votingWindow(cfg, entities.PeriodTypeAgentVoting); window != 2*time.Hour {
		t.Fatalf("unexpected agent window %v", window)
	}
	if window := votingWindow(cfg, entities.PeriodTypeHumanVoting); window != 48*time.Hour {
		t.Fatalf("unexpected human window %v", window)
	}
}
