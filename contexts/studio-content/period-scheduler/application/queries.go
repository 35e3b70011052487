package application

import (
	"context"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
	domainerrors "backlot/contexts/studio-content/period-scheduler/domain/errors"
)

func (s Service) ActivePeriod(ctx context.Context, periodType entities.PeriodType) (entities.VotingPeriod, error) {
	if periodType != entities.PeriodTypeAgentVoting && periodType != entities.PeriodTypeHumanVoting {
		return entities.VotingPeriod{}, domainerrors.ErrInvalidInput
	}
	period, found, err := s.Periods.GetActivePeriod(ctx, periodType)
	if err != nil {
		return entities.VotingPeriod{}, err
	}
	if !found {
		return entities.VotingPeriod{}, domainerrors.ErrPeriodNotFound
	}
	return period, nil
}
