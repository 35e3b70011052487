package entities

import (
	"encoding/json"
	"time"
)

type SeriesStatus string

const (
	SeriesStatusProducing SeriesStatus = "producing"
	SeriesStatusReady     SeriesStatus = "ready"
)

// Series is the multi-part output owned by a winning submission. Paid voting
// opens only once every unit of the series has completed generation.
type Series struct {
	SeriesID       string
	SubmissionID   string
	StudioID       string
	Category       string
	Title          string
	ContentSpec    json.RawMessage
	EpisodeCount   int
	Status         SeriesStatus
	PaidVotingOpen bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
