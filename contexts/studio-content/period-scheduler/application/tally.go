package application

import (
	"sort"

	"backlot/contexts/studio-content/period-scheduler/domain/entities"
)

// selectWinners picks one winner per category from a period's voting
// submissions. Highest vote count wins; the earlier submitted_at breaks ties.
func selectWinners(submissions []entities.Submission) map[string]entities.Submission {
	byCategory := make(map[string][]entities.Submission)
	for _, submission := range submissions {
		byCategory[submission.Category] = append(byCategory[submission.Category], submission)
	}

	winners := make(map[string]entities.Submission, len(byCategory))
	for category, group := range byCategory {
		sort.Slice(group, func(i, j int) bool {
			if group[i].VoteCount != group[j].VoteCount {
				return group[i].VoteCount > group[j].VoteCount
			}
			return group[i].SubmittedAt.Before(group[j].SubmittedAt)
		})
		winners[category] = group[0]
	}
	return winners
}
