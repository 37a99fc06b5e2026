package entities

import "time"

// CandidateTotal is one candidate's final standing for a position, ordered
// best-first in PositionResult.Totals.
type CandidateTotal struct {
	CandidateID string
	Name        string
	Votes       int
	Share       float64
}

// TallyRound captures one instant-runoff elimination round for ranked
// tallies.
type TallyRound struct {
	Round      int
	Counts     []CandidateTotal
	Eliminated string
}

// PositionResult is the committed outcome for one ballot item at finalize
// time. Exactly one of WinnerID set, Tied, or Vacant describes a terminal
// outcome; an unresolved position with RunoffElectionID set continues in the
// child election.
type PositionResult struct {
	PositionID       string
	Method           VotingMethod
	Condition        VictoryCondition
	WinnerID         string
	Tied             bool
	Vacant           bool
	RunoffElectionID string
	BallotsCounted   int
	ProxyBallots     int
	Totals           []CandidateTotal
	Rounds           []TallyRound
	DecidedAt        time.Time
}

func (r PositionResult) HasWinner() bool {
	return r.WinnerID != ""
}

// Unresolved reports whether the position still needs a runoff or manual
// officer action.
func (r PositionResult) Unresolved() bool {
	return !r.HasWinner() && !r.Vacant
}
