package httpadapter

import (
	"context"
	"log/slog"

	"backlot/contexts/studio-content/period-scheduler/application"
	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	"backlot/contexts/studio-content/period-scheduler/ports"
	httptransport "backlot/contexts/studio-content/period-scheduler/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// TickHandler runs one scheduler tick on behalf of the external trigger.
// Delivery is at-least-once; the tick itself is idempotent.
func (h Handler) TickHandler(ctx context.Context) (httptransport.TickResponse, error) {
	report, err := h.Service.Tick(ctx)
	if err != nil {
		return httptransport.TickResponse{}, err
	}
	return httptransport.TickResponse{
		Status: "success",
		Data:   toTickDTO(report),
	}, nil
}

func (h Handler) GetActivePeriodHandler(ctx context.Context, periodType string) (httptransport.PeriodResponse, error) {
	period, err := h.Service.ActivePeriod(ctx, entities.PeriodType(periodType))
	if err != nil {
		return httptransport.PeriodResponse{}, err
	}
	return httptransport.PeriodResponse{
		Status: "success",
		Data: httptransport.PeriodDTO{
			PeriodID:    period.PeriodID,
			Type:        string(period.Type),
			StartsAt:    period.StartsAt,
			EndsAt:      period.EndsAt,
			IsActive:    period.IsActive,
			IsProcessed: period.IsProcessed,
		},
	}, nil
}

func toTickDTO(report ports.TickReport) httptransport.TickReportDTO {
	return httptransport.TickReportDTO{
		TickedAt:            report.TickedAt,
		PeriodsCreated:      report.PeriodsCreated,
		PeriodsActivated:    report.PeriodsActivated,
		PeriodsClosed:       report.PeriodsClosed,
		WinnersSelected:     report.WinnersSelected,
		LosersMarked:        report.LosersMarked,
		SubmissionsProduced: report.SubmissionsProduced,
		EpisodePass:         toPassDTO(report.EpisodePass),
		AudioPass:           toPassDTO(report.AudioPass),
		PosterPass:          toPassDTO(report.PosterPass),
		EpisodeRetryPass:    toPassDTO(report.EpisodeRetryPass),
		AudioRetryPass:      toPassDTO(report.AudioRetryPass),
		PassErrors:          report.PassErrors,
	}
}

func toPassDTO(pass ports.PassReport) httptransport.PassReportDTO {
	return httptransport.PassReportDTO{
		Selected:  pass.Selected,
		Completed: pass.Completed,
		Failed:    pass.Failed,
		Skipped:   pass.Skipped,
	}
}
