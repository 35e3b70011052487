package unit

import (
	"context"
	"testing"
	"time"

	periodscheduler "backlot/contexts/studio-content/period-scheduler"
	"backlot/contexts/studio-content/period-scheduler/domain/entities"
)

func seedExpiredAgentPeriod(module periodscheduler.Module, now time.Time) entities.VotingPeriod {
	period := entities.VotingPeriod{
		PeriodID:  "period-agent-1",
		Type:      entities.PeriodTypeAgentVoting,
		StartsAt:  now.Add(-2 * time.Hour),
		EndsAt:    now.Add(-time.Hour),
		IsActive:  true,
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	module.Store.SeedPeriod(period)
	return period
}

func TestTickClosesExpiredPeriodExactlyOnce(t *testing.T) {
	module := periodscheduler.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	period := seedExpiredAgentPeriod(module, now)
	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-leader",
		StudioID:     "studio-1",
		Category:     "drama",
		Title:        "Leader",
		Status:       entities.SubmissionStatusVoting,
		VoteCount:    5,
		PeriodID:     period.PeriodID,
		SubmittedAt:  now.Add(-3 * time.Hour),
	})
	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-trailer",
		StudioID:     "studio-2",
		Category:     "drama",
		Title:        "Trailer",
		Status:       entities.SubmissionStatusVoting,
		VoteCount:    3,
		PeriodID:     period.PeriodID,
		SubmittedAt:  now.Add(-3 * time.Hour),
	})

	first, err := module.Service.Tick(ctx)
	if err != nil {
		t.Fatalf("first tick failed: %v", err)
	}
	if first.PeriodsClosed != 1 {
		t.Fatalf("expected one closed period, got %d", first.PeriodsClosed)
	}
	if first.WinnersSelected != 1 || first.LosersMarked != 1 {
		t.Fatalf("expected 1 winner and 1 loser, got %d/%d", first.WinnersSelected, first.LosersMarked)
	}

	second, err := module.Service.Tick(ctx)
	if err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if second.PeriodsClosed != 0 || second.WinnersSelected != 0 {
		t.Fatalf("second tick must be a no-op for the closed period, got closed=%d winners=%d",
			second.PeriodsClosed, second.WinnersSelected)
	}

	winner, _ := module.Store.GetSubmission("sub-leader")
	if winner.Status != entities.SubmissionStatusWon {
		t.Fatalf("expected leader to win, got status %q", winner.Status)
	}
	loser, _ := module.Store.GetSubmission("sub-trailer")
	if loser.Status != entities.SubmissionStatusLost {
		t.Fatalf("expected trailer to lose, got status %q", loser.Status)
	}

	closed, won := 0, 0
	messages, err := module.Store.ListPendingOutbox(ctx, 100)
	if err != nil {
		t.Fatalf("listing outbox failed: %v", err)
	}
	for _, message := range messages {
		switch message.EventType {
		case "period.closed":
			closed++
		case "submission.won":
			won++
		}
	}
	if closed != 1 || won != 1 {
		t.Fatalf("expected exactly one period.closed and one submission.won, got %d/%d", closed, won)
	}
}

func TestTickTallyBreaksTiesBySubmissionTime(t *testing.T) {
	module := periodscheduler.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	period := seedExpiredAgentPeriod(module, now)
	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-late",
		Category:     "comedy",
		Status:       entities.SubmissionStatusVoting,
		VoteCount:    4,
		PeriodID:     period.PeriodID,
		SubmittedAt:  now.Add(-time.Hour),
	})
	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-early",
		Category:     "comedy",
		Status:       entities.SubmissionStatusVoting,
		VoteCount:    4,
		PeriodID:     period.PeriodID,
		SubmittedAt:  now.Add(-2 * time.Hour),
	})

	if _, err := module.Service.Tick(ctx); err != nil {
		t.Fatalf("tick failed: %v", err)
	}

	early, _ := module.Store.GetSubmission("sub-early")
	if early.Status != entities.SubmissionStatusWon {
		t.Fatalf("expected earliest submission to win the tie, got status %q", early.Status)
	}
	late, _ := module.Store.GetSubmission("sub-late")
	if late.Status != entities.SubmissionStatusLost {
		t.Fatalf("expected later submission to lose the tie, got status %q", late.Status)
	}
}

func TestTickMarksWonSubmissionProducedOnceSeriesExists(t *testing.T) {
	module := periodscheduler.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-won",
		StudioID:     "studio-1",
		Category:     "drama",
		Status:       entities.SubmissionStatusWon,
		PeriodID:     "period-agent-0",
		SubmittedAt:  now.Add(-24 * time.Hour),
	})
	module.Store.SeedSubmission(entities.Submission{
		SubmissionID: "sub-won-no-series",
		StudioID:     "studio-2",
		Category:     "comedy",
		Status:       entities.SubmissionStatusWon,
		PeriodID:     "period-agent-0",
		SubmittedAt:  now.Add(-24 * time.Hour),
	})
	module.Store.SeedSeries("sub-won")

	report, err := module.Service.Tick(ctx)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if report.SubmissionsProduced != 1 {
		t.Fatalf("expected one submission moved to produced, got %d", report.SubmissionsProduced)
	}

	produced, _ := module.Store.GetSubmission("sub-won")
	if produced.Status != entities.SubmissionStatusProduced {
		t.Fatalf("expected produced status once the series exists, got %q", produced.Status)
	}
	waiting, _ := module.Store.GetSubmission("sub-won-no-series")
	if waiting.Status != entities.SubmissionStatusWon {
		t.Fatalf("submission without a series must stay won, got %q", waiting.Status)
	}

	second, err := module.Service.Tick(ctx)
	if err != nil {
		t.Fatalf("second tick failed: %v", err)
	}
	if second.SubmissionsProduced != 0 {
		t.Fatalf("second tick must not re-flip the submission, got %d", second.SubmissionsProduced)
	}
}

func TestTickSelectsOneWinnerPerCategory(t *testing.T) {
	module := periodscheduler.NewInMemoryModule(nil, nil)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	module.Store.SetNow(now)

	period := seedExpiredAgentPeriod(module, now)
	for _, seed := range []struct {
		id       string
		category string
		votes    int
	}{
		{"sub-drama-a", "drama", 7},
		{"sub-drama-b", "drama", 2},
		{"sub-comedy-a", "comedy", 1},
	} {
		module.Store.SeedSubmission(entities.Submission{
			SubmissionID: seed.id,
			Category:     seed.category,
			Status:       entities.SubmissionStatusVoting,
			VoteCount:    seed.votes,
			PeriodID:     period.PeriodID,
			SubmittedAt:  now.Add(-3 * time.Hour),
		})
	}

	report, err := module.Service.Tick(ctx)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if report.WinnersSelected != 2 {
		t.Fatalf("expected one winner per category, got %d", report.WinnersSelected)
	}
	comedy, _ := module.Store.GetSubmission("sub-comedy-a")
	if comedy.Status != entities.SubmissionStatusWon {
		t.Fatalf("sole comedy submission should win, got status %q", comedy.Status)
	}
}
