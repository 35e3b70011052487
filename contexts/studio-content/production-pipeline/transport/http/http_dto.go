package httptransport

import "time"

type ProducedWorkDTO struct {
	WorkID          string     `json:"work_id"`
	Kind            string     `json:"kind"`
	Sequence        int        `json:"sequence"`
	Status          string     `json:"status"`
	RetryCount      int        `json:"retry_count"`
	LastError       string     `json:"last_error,omitempty"`
	AssetURL        string     `json:"asset_url,omitempty"`
	ContentType     string     `json:"content_type,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	GeneratedAt     *time.Time `json:"generated_at,omitempty"`
}

type SeriesDTO struct {
	SeriesID       string `json:"series_id"`
	SubmissionID   string `json:"submission_id"`
	Category       string `json:"category"`
	Title          string `json:"title"`
	EpisodeCount   int    `json:"episode_count"`
	Status         string `json:"status"`
	PaidVotingOpen bool   `json:"paid_voting_open"`
}

type SeriesWorksResponse struct {
	Status string            `json:"status"`
	Series SeriesDTO         `json:"series"`
	Works  []ProducedWorkDTO `json:"works"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
