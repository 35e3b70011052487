package entities

import "time"

type PeriodType string

const (
	PeriodTypeAgentVoting PeriodType = "agent_voting"
	PeriodTypeHumanVoting PeriodType = "human_voting"
)

// VotingPeriod is a time-boxed window during which votes are accepted.
// At most one active period exists per type; IsProcessed flips exactly once
// when the period is closed and acts as the idempotency claim for closure.
type VotingPeriod struct {
	PeriodID    string
	Type        PeriodType
	StartsAt    time.Time
	EndsAt      time.Time
	IsActive    bool
	IsProcessed bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p VotingPeriod) Expired(now time.Time) bool {
	return now.After(p.EndsAt)
}

func (p VotingPeriod) Window() time.Duration {
	return p.EndsAt.Sub(p.StartsAt)
}
