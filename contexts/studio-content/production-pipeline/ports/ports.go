package ports

import (
	"context"
	"encoding/json"
	"time"

	"backlot/contexts/studio-content/production-pipeline/domain/entities"

	contractsv1 "backlot/contracts/gen/events/v1"
)

// PipelineConfig is the runtime configuration snapshot read fresh on every
// pass. Quality-gate bounds are inclusive.
type PipelineConfig struct {
	MaxRetries             int
	RetryBaseDelay         time.Duration
	RetryBackoffMultiplier float64
	MaxWorkAge             time.Duration
	GeneratingGrace        time.Duration
	ProviderTimeout        time.Duration
	Parallelism            int
	EpisodesPerSeries      int
	AudioTracksPerSeries   int
	AudioMinSeconds        float64
	AudioMaxSeconds        float64
	VideoMinSeconds        float64
	VideoMaxSeconds        float64
	PosterWidth            int
	PosterHeight           int
}

type ConfigProvider interface {
	PipelineConfig(ctx context.Context) (PipelineConfig, error)
}

// WonSubmission is the pipeline's read-only view of a scheduler-owned
// submission that won its period and has no series yet.
type WonSubmission struct {
	SubmissionID string
	StudioID     string
	Category     string
	Title        string
	Content      json.RawMessage
}

type Repository interface {
	ListWonSubmissionsWithoutSeries(ctx context.Context, limit int) ([]WonSubmission, error)
	// CreateSeriesWithWorks persists the series and all of its pending units
	// in one transaction and marks the source submission produced.
	CreateSeriesWithWorks(ctx context.Context, series entities.Series, works []entities.ProducedWork) error
	GetSeries(ctx context.Context, seriesID string) (entities.Series, error)
	ListWorksBySeries(ctx context.Context, seriesID string) ([]entities.ProducedWork, error)
	// ListPendingWorks returns pending units plus generating units whose last
	// attempt is older than staleBefore (crashed or timed-out claims).
	ListPendingWorks(ctx context.Context, kind entities.WorkKind, staleBefore time.Time, limit int) ([]entities.ProducedWork, error)
	ListFailedWorks(ctx context.Context, kind entities.WorkKind, limit int) ([]entities.ProducedWork, error)
	// ClaimWork is a compare-and-set from the given status to generating.
	ClaimWork(ctx context.Context, workID string, from entities.WorkStatus, now time.Time) (bool, error)
	MarkWorkCompleted(ctx context.Context, workID string, result CompletedWork, now time.Time) error
	// MarkWorkFailed increments the retry counter and records the classified
	// error message.
	MarkWorkFailed(ctx context.Context, workID string, message string, now time.Time) error
	MarkWorkAbandoned(ctx context.Context, workID string, reason string, now time.Time) error
	CountUnfinishedWorks(ctx context.Context, seriesID string) (int, error)
	// OpenPaidVoting flips paid_voting_open once; reports whether this call
	// performed the flip.
	OpenPaidVoting(ctx context.Context, seriesID string, now time.Time) (bool, error)
}

type CompletedWork struct {
	AssetURL        string
	ContentType     string
	DurationSeconds float64
	Width           int
	Height          int
}

// GenerationRequest is the deterministic spec handed to a provider, derived
// from the unit's stored content.
type GenerationRequest struct {
	Prompt          string
	NegativePrompt  string
	DurationSeconds float64
	Width           int
	Height          int
	FPS             int
	Seed            int64
}

type GenerationResult struct {
	AssetBytes      []byte
	AssetURL        string
	ContentType     string
	DurationSeconds float64
	Width           int
	Height          int
	Provider        string
}

type ProviderErrorKind string

const (
	ProviderErrorRateLimited  ProviderErrorKind = "rate_limited"
	ProviderErrorInvalidInput ProviderErrorKind = "invalid_input"
	ProviderErrorServerError  ProviderErrorKind = "server_error"
)

// ProviderError is the classified failure contract expected from generation
// providers.
type ProviderError struct {
	Kind    ProviderErrorKind
	Message string
}

func (e *ProviderError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

type VideoGenerator interface {
	GenerateVideo(ctx context.Context, request GenerationRequest) (GenerationResult, error)
}

type AudioGenerator interface {
	GenerateAudio(ctx context.Context, request GenerationRequest) (GenerationResult, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, request GenerationRequest) (GenerationResult, error)
}

type UploadResult struct {
	URL  string
	Size int64
}

type StorageUploader interface {
	Upload(ctx context.Context, key string, contentType string, body []byte) (UploadResult, error)
}

// PassReport counts one pass's outcomes. Skipped marks units left untouched
// because a required collaborator is not configured.
type PassReport struct {
	Selected  int
	Completed int
	Failed    int
	Skipped   int
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
