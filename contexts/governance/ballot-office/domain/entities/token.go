package entities

import "time"

// VotingToken is the bearer credential for one voter in one election. A single
// token covers every position the voter is eligible for; positions are
// consumed one at a time so a voter can complete a multi-position ballot over
// several visits.
type VotingToken struct {
	TokenID         string
	Token           string
	ElectionID      string
	VoterHash       string
	ExpiresAt       time.Time
	Used            bool
	PositionsVoted  []string
	AccessCount     int
	FirstAccessedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (t VotingToken) HasVotedPosition(positionID string) bool {
	for _, voted := range t.PositionsVoted {
		if voted == positionID {
			return true
		}
	}
	return false
}

func (t VotingToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
