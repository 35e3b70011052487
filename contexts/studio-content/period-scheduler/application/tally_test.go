package application

import (
	"testing"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
)

func TestSelectWinnersHighestVoteCountWins(t *testing.T) {
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	winners := selectWinners([]entities.Submission{
		{SubmissionID: "sub-1", Category: "drama", VoteCount: 3, SubmittedAt: base},
		{SubmissionID: "sub-2", Category: "drama", VoteCount: 9, SubmittedAt: base.Add(time.Hour)},
		{SubmissionID: "sub-3", Category: "drama", VoteCount: 5, SubmittedAt: base.Add(2 * time.Hour)},
	})

	if winners["drama"].SubmissionID != "sub-2" {
		t.Fatalf("expected sub-2 to win, got %s", winners["drama"].SubmissionID)
	}
}

func TestSelectWinnersTieBreaksOnEarliestSubmission(t *testing.T) {
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	winners := selectWinners([]entities.Submission{
		{SubmissionID: "sub-late", Category: "comedy", VoteCount: 7, SubmittedAt: base.Add(time.Minute)},
		{SubmissionID: "sub-early", Category: "comedy", VoteCount: 7, SubmittedAt: base},
	})

	if winners["comedy"].SubmissionID != "sub-early" {
		t.Fatalf("expected earliest submission to break the tie, got %s", winners["comedy"].SubmissionID)
	}
}

func TestSelectWinnersOnePerCategory(t *testing.T) {
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	winners := selectWinners([]entities.Submission{
		{SubmissionID: "sub-1", Category: "drama", VoteCount: 2, SubmittedAt: base},
		{SubmissionID: "sub-2", Category: "comedy", VoteCount: 1, SubmittedAt: base},
		{SubmissionID: "sub-3", Category: "drama", VoteCount: 1, SubmittedAt: base},
	})

	if len(winners) != 2 {
		t.Fatalf("expected one winner per category, got %d", len(winners))
	}
	if winners["drama"].SubmissionID != "sub-1" || winners["comedy"].SubmissionID != "sub-2" {
		t.Fatalf("unexpected winners: %v", winners)
	}
}
