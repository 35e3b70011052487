package ports

import (
	"context"
	"time"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"

	contractsv1 "backlot/contracts/gen/events/v1"
)

// Cadence controls how the next voting period is scheduled.
type Cadence string

const (
	CadenceImmediate Cadence = "immediate"
	CadenceDaily     Cadence = "daily"
	CadenceWeekly    Cadence = "weekly"
)

// SchedulerConfig is the runtime configuration snapshot read fresh at the
// start of every tick. Never cache it across ticks.
type SchedulerConfig struct {
	Cadence             Cadence
	ImmediateStartDelay time.Duration
	DailyStartHour      int
	WeeklyStartWeekday  time.Weekday
	WeeklyStartHour     int
	AgentVotingWindow   time.Duration
	HumanVotingWindow   time.Duration
	PassLimit           int
	RetryLimit          int
	ClosuresPerTick     int
}

type ConfigProvider interface {
	SchedulerConfig(ctx context.Context) (SchedulerConfig, error)
}

type PeriodRepository interface {
	CreatePeriod(ctx context.Context, period entities.VotingPeriod) error
	GetActivePeriod(ctx context.Context, periodType entities.PeriodType) (entities.VotingPeriod, bool, error)
	GetUpcomingPeriod(ctx context.Context, periodType entities.PeriodType, now time.Time) (entities.VotingPeriod, bool, error)
	// ActivateDuePeriods flips inactive unprocessed periods whose starts_at has
	// passed to active and returns the rows it transitioned.
	ActivateDuePeriods(ctx context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error)
	ListExpiredUnprocessed(ctx context.Context, now time.Time, limit int) ([]entities.VotingPeriod, error)
	// ClaimPeriodProcessed performs the single conditional update
	// is_processed false -> true and reports whether this caller won the claim.
	ClaimPeriodProcessed(ctx context.Context, periodID string) (bool, error)
}

type SubmissionRepository interface {
	// OpenVoting moves submitted submissions into the period's voting window
	// and stamps the window bounds. Returns the number of rows moved.
	OpenVoting(ctx context.Context, period entities.VotingPeriod) (int, error)
	ListVotingSubmissions(ctx context.Context, periodID string) ([]entities.Submission, error)
	// TransitionStatus is a compare-and-set on the status column.
	TransitionStatus(ctx context.Context, submissionID string, from entities.SubmissionStatus, to entities.SubmissionStatus) (bool, error)
	// ListWonWithSeries returns won submissions whose series already exists.
	// The series table belongs to the production pipeline and is read here
	// without mutation; the status flip itself stays with the scheduler.
	ListWonWithSeries(ctx context.Context, limit int) ([]string, error)
}

// PassReport mirrors the production pipeline's per-pass outcome counts without
// importing that context.
type PassReport struct {
	Selected  int
	Completed int
	Failed    int
	Skipped   int
}

// TickReport aggregates one tick's outcomes for observability. Pass failures
// are recorded here, never propagated to the trigger source.
type TickReport struct {
	TickedAt            time.Time
	PeriodsCreated      int
	PeriodsActivated    int
	PeriodsClosed       int
	WinnersSelected     int
	LosersMarked        int
	SubmissionsProduced int
	EpisodePass         PassReport
	AudioPass           PassReport
	PosterPass          PassReport
	EpisodeRetryPass    PassReport
	AudioRetryPass      PassReport
	PassErrors          []string
}

// ProductionRunner is the scheduler's view of the production pipeline.
// Wired in the composition root; pass kinds are the pipeline's work kinds.
type ProductionRunner interface {
	RunPass(ctx context.Context, kind string, limit int) (PassReport, error)
	RunRetrySweep(ctx context.Context, kind string, limit int) (PassReport, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = contractsv1.Envelope

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}
