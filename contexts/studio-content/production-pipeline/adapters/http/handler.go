package httpadapter

import (
	"context"
	"log/slog"

	"backlot/contexts/studio-content/production-pipeline/application"
	httptransport "backlot/contexts/studio-content/production-pipeline/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) GetSeriesWorksHandler(ctx context.Context, seriesID string) (httptransport.SeriesWorksResponse, error) {
	series, works, err := h.Service.ListSeriesWorks(ctx, seriesID)
	if err != nil {
		return httptransport.SeriesWorksResponse{}, err
	}

	dtos := make([]httptransport.ProducedWorkDTO, 0, len(works))
	for _, work := range works {
		dtos = append(dtos, httptransport.ProducedWorkDTO{
			WorkID:          work.WorkID,
			Kind:            string(work.Kind),
			Sequence:        work.Sequence,
			Status:          string(work.Status),
			RetryCount:      work.RetryCount,
			LastError:       work.LastError,
			AssetURL:        work.AssetURL,
			ContentType:     work.ContentType,
			DurationSeconds: work.DurationSeconds,
			GeneratedAt:     work.GeneratedAt,
		})
	}
	return httptransport.SeriesWorksResponse{
		Status: "success",
		Series: httptransport.SeriesDTO{
			SeriesID:       series.SeriesID,
			SubmissionID:   series.SubmissionID,
			Category:       series.Category,
			Title:          series.Title,
			EpisodeCount:   series.EpisodeCount,
			Status:         string(series.Status),
			PaidVotingOpen: series.PaidVotingOpen,
		},
		Works: dtos,
	}, nil
}
