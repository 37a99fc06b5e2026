package tally

import (
	"math"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	"ballotbox/contexts/governance/election-engine/ports"
)

// QuorumRequired computes the minimum present count. Percentage thresholds
// round up so that 33% of 10 members requires 4 present, never 3.
func QuorumRequired(quorumType entities.QuorumType, threshold float64, activeMembers int) int {
	switch quorumType {
	case entities.QuorumCount:
		return int(threshold)
	case entities.QuorumPercentage:
		return int(math.Ceil(threshold / 100.0 * float64(activeMembers)))
	default:
		return 0
	}
}

func QuorumMet(required int, present int) bool {
	return present >= required
}

// PresentFromAttendees counts attendees flagged present.
func PresentFromAttendees(attendees []ports.Attendee) int {
	present := 0
	for _, attendee := range attendees {
		if attendee.Present {
			present++
		}
	}
	return present
}

// PresentFromVotes counts distinct voter keys with at least one active vote,
// the participation measure for elections without a linked meeting.
func PresentFromVotes(votes []ports.BallotVote) int {
	voters := make(map[string]struct{})
	for _, vote := range votes {
		voters[vote.VoterKey] = struct{}{}
	}
	return len(voters)
}
