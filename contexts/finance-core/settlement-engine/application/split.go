package application

import (
	domainerrors "backlot/contexts/finance-core/settlement-engine/domain/errors"
	"backlot/contexts/finance-core/settlement-engine/ports"
)

// Split divides a settled amount into agent, platform and creator shares.
// The agent and platform shares are rounded down; the creator absorbs the
// remainder so the three shares always sum exactly to the total.
func Split(totalCents int64, creatorPct int, platformPct int, agentPct int) (ports.SplitResult, error) {
	if totalCents < 0 {
		return ports.SplitResult{}, domainerrors.ErrInvalidInput
	}
	if creatorPct < 0 || platformPct < 0 || agentPct < 0 {
		return ports.SplitResult{}, domainerrors.ErrInvalidSplit
	}
	if creatorPct+platformPct+agentPct != 100 {
		return ports.SplitResult{}, domainerrors.ErrInvalidSplit
	}

	agent := totalCents * int64(agentPct) / 100
	platform := totalCents * int64(platformPct) / 100
	creator := totalCents - agent - platform

	return ports.SplitResult{
		CreatorCents:  creator,
		PlatformCents: platform,
		AgentCents:    agent,
	}, nil
}
