package httptransport

import "time"

type PassReportDTO struct {
	Selected  int `json:"selected"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type TickReportDTO struct {
	TickedAt            time.Time     `json:"ticked_at"`
	PeriodsCreated      int           `json:"periods_created"`
	PeriodsActivated    int           `json:"periods_activated"`
	PeriodsClosed       int           `json:"periods_closed"`
	WinnersSelected     int           `json:"winners_selected"`
	LosersMarked        int           `json:"losers_marked"`
	SubmissionsProduced int           `json:"submissions_produced"`
	EpisodePass         PassReportDTO `json:"episode_pass"`
	AudioPass           PassReportDTO `json:"audio_pass"`
	PosterPass          PassReportDTO `json:"poster_pass"`
	EpisodeRetryPass    PassReportDTO `json:"episode_retry_pass"`
	AudioRetryPass      PassReportDTO `json:"audio_retry_pass"`
	PassErrors          []string      `json:"pass_errors,omitempty"`
}

type TickResponse struct {
	Status string        `json:"status"`
	Data   TickReportDTO `json:"data"`
}

type PeriodDTO struct {
	PeriodID    string    `json:"period_id"`
	Type        string    `json:"type"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	IsActive    bool      `json:"is_active"`
	IsProcessed bool      `json:"is_processed"`
}

type PeriodResponse struct {
	Status string    `json:"status"`
	Data   PeriodDTO `json:"data"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
