package entities

import "time"

type WorkKind string

const (
	WorkKindEpisodeVideo WorkKind = "episode_video"
	WorkKindAudioTrack   WorkKind = "audio_track"
	WorkKindPoster       WorkKind = "poster"
)

type WorkStatus string

const (
	WorkStatusPending    WorkStatus = "pending"
	WorkStatusGenerating WorkStatus = "generating"
	WorkStatusCompleted  WorkStatus = "completed"
	WorkStatusFailed     WorkStatus = "failed"
	WorkStatusAbandoned  WorkStatus = "abandoned"
)

// ProducedWork is one generation unit of a series. Completed and abandoned
// are terminal; a completed unit is never regenerated.
type ProducedWork struct {
	WorkID          string
	SeriesID        string
	Kind            WorkKind
	Sequence        int
	Status          WorkStatus
	RetryCount      int
	LastError       string
	LastAttemptAt   *time.Time
	GeneratedAt     *time.Time
	AssetURL        string
	ContentType     string
	DurationSeconds float64
	Width           int
	Height          int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (w ProducedWork) Terminal() bool {
	return w.Status == WorkStatusCompleted || w.Status == WorkStatusAbandoned
}

func ValidKind(kind WorkKind) bool {
	switch kind {
	case WorkKindEpisodeVideo, WorkKindAudioTrack, WorkKindPoster:
		return true
	}
	return false
}
