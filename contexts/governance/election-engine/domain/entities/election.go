package entities

import "time"

type ElectionStatus string

const (
	StatusDraft     ElectionStatus = "draft"
	StatusOpen      ElectionStatus = "open"
	StatusClosed    ElectionStatus = "closed"
	StatusFinalized ElectionStatus = "finalized"
	StatusCancelled ElectionStatus = "cancelled"
)

type VotingMethod string

const (
	MethodSimpleMajority VotingMethod = "simple_majority"
	MethodRankedChoice   VotingMethod = "ranked_choice"
	MethodSupermajority  VotingMethod = "supermajority"
)

type VictoryCondition string

const (
	ConditionMostVotes           VictoryCondition = "most_votes"
	ConditionThresholdCount      VictoryCondition = "threshold_count"
	ConditionThresholdPercentage VictoryCondition = "threshold_percentage"
)

type RunoffType string

const (
	RunoffTopTwo            RunoffType = "top_two"
	RunoffRankedElimination RunoffType = "ranked_elimination"
)

type QuorumType string

const (
	QuorumNone       QuorumType = ""
	QuorumCount      QuorumType = "count"
	QuorumPercentage QuorumType = "percentage"
)

type CandidateStatus string

const (
	CandidateNominated CandidateStatus = "nominated"
	CandidateAccepted  CandidateStatus = "accepted"
	CandidateDeclined  CandidateStatus = "declined"
	CandidateWithdrawn CandidateStatus = "withdrawn"
)

// Candidate is one electable option on a ballot item. Write-in candidates
// skip the nomination/acceptance flow.
type Candidate struct {
	CandidateID string
	Name        string
	Statement   string
	Status      CandidateStatus
	WriteIn     bool
	CreatedAt   time.Time
}

func (c Candidate) Accepted() bool {
	return c.Status == CandidateAccepted
}

// OnBallot reports whether the candidate appears on the open ballot.
func (c Candidate) OnBallot() bool {
	return c.Accepted() || c.WriteIn
}

// BallotItem is one electable position (or question) with its own
// eligibility rule and candidate slate. Order on the ballot is significant:
// it is the deterministic tie-break order for tallies.
type BallotItem struct {
	PositionID      string
	Title           string
	EligibilityRule string
	Ranked          bool
	DisplayOrder    int
	Candidates      []Candidate
}

// RollbackRecord is one entry of the append-only state reversal log. Entries
// are never edited or removed.
type RollbackRecord struct {
	RecordID   string
	FromState  ElectionStatus
	ToState    ElectionStatus
	Reason     string
	Actor      string
	OccurredAt time.Time
}

// Election is the aggregate root: configuration, lifecycle state, ballot
// items, the runoff chain link and the rollback log.
type Election struct {
	ElectionID  string
	OrgID       string
	Title       string
	Description string
	Status      ElectionStatus
	Anonymous   bool
	MeetingID   string

	VotingMethod      VotingMethod
	VictoryCondition  VictoryCondition
	VictoryThreshold  int
	VictoryPercentage float64

	EnableRunoffs   bool
	RunoffType      RunoffType
	MaxRunoffRounds int

	// Runoff chain: parent pointer plus a strictly increasing round number.
	IsRunoff         bool
	ParentElectionID string
	RunoffRound      int
	// CancelledByRollbackID links a cancelled runoff child to the parent
	// rollback record that invalidated it.
	CancelledByRollbackID string

	QuorumType      QuorumType
	QuorumThreshold float64

	BallotItems     []BallotItem
	RollbackHistory []RollbackRecord

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// lifecycleOrder positions the forward chain draft → open → closed →
// finalized. Cancelled sits outside the chain.
func lifecycleOrder(status ElectionStatus) (int, bool) {
	switch status {
	case StatusDraft:
		return 0, true
	case StatusOpen:
		return 1, true
	case StatusClosed:
		return 2, true
	case StatusFinalized:
		return 3, true
	default:
		return 0, false
	}
}

// CanTransition reports whether the forward lifecycle allows moving to the
// target status. Rollbacks travel backwards through RollbackTargetValid.
func (e Election) CanTransition(to ElectionStatus) bool {
	switch to {
	case StatusOpen:
		return e.Status == StatusDraft
	case StatusClosed:
		return e.Status == StatusOpen
	case StatusFinalized:
		return e.Status == StatusClosed
	case StatusCancelled:
		return e.Status == StatusDraft || e.Status == StatusOpen || e.Status == StatusClosed
	default:
		return false
	}
}

// RollbackTargetValid reports whether target is a strictly prior state on the
// forward chain relative to the current status.
func (e Election) RollbackTargetValid(target ElectionStatus) bool {
	current, ok := lifecycleOrder(e.Status)
	if !ok {
		return false
	}
	wanted, ok := lifecycleOrder(target)
	if !ok {
		return false
	}
	return wanted < current
}

func (e Election) FindBallotItem(positionID string) (BallotItem, bool) {
	for _, item := range e.BallotItems {
		if item.PositionID == positionID {
			return item, true
		}
	}
	return BallotItem{}, false
}
