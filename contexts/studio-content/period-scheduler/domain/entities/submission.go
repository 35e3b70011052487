package entities

import (
	"encoding/json"
	"time"
)

type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "draft"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusVoting    SubmissionStatus = "voting"
	SubmissionStatusWon       SubmissionStatus = "won"
	SubmissionStatusLost      SubmissionStatus = "lost"
	SubmissionStatusProduced  SubmissionStatus = "produced"
)

// Submission is a scripted pitch competing inside one voting period.
// Status transitions are monotonic; a submission never re-enters draft
// after it has been submitted.
type Submission struct {
	SubmissionID   string
	StudioID       string
	Category       string
	Title          string
	Content        json.RawMessage
	Status         SubmissionStatus
	VoteCount      int
	PeriodID       string
	SubmittedAt    time.Time
	VotingStartsAt *time.Time
	VotingEndsAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// forward lists the permitted next statuses per status.
var forward = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusDraft:     {SubmissionStatusSubmitted},
	SubmissionStatusSubmitted: {SubmissionStatusVoting},
	SubmissionStatusVoting:    {SubmissionStatusWon, SubmissionStatusLost},
	SubmissionStatusWon:       {SubmissionStatusProduced},
}

func CanTransition(from SubmissionStatus, to SubmissionStatus) bool {
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}
