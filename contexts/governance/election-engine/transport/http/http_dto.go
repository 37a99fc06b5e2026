package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CandidateInputItem struct {
	Name      string `json:"name"`
	Statement string `json:"statement,omitempty"`
	Status    string `json:"status,omitempty"`
	WriteIn   bool   `json:"write_in,omitempty"`
}

type BallotItemInput struct {
	Title           string               `json:"title"`
	EligibilityRule string               `json:"eligibility_rule"`
	Candidates      []CandidateInputItem `json:"candidates"`
}

type CreateElectionRequest struct {
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Anonymous   bool   `json:"anonymous,omitempty"`
	MeetingID   string `json:"meeting_id,omitempty"`

	VotingMethod      string  `json:"voting_method"`
	VictoryCondition  string  `json:"victory_condition"`
	VictoryThreshold  int     `json:"victory_threshold,omitempty"`
	VictoryPercentage float64 `json:"victory_percentage,omitempty"`

	EnableRunoffs   bool   `json:"enable_runoffs,omitempty"`
	RunoffType      string `json:"runoff_type,omitempty"`
	MaxRunoffRounds int    `json:"max_runoff_rounds,omitempty"`

	QuorumType      string  `json:"quorum_type,omitempty"`
	QuorumThreshold float64 `json:"quorum_threshold,omitempty"`

	BallotItems []BallotItemInput `json:"ballot_items"`
}

type UpdateElectionRequest struct {
	Title             string            `json:"title,omitempty"`
	Description       string            `json:"description,omitempty"`
	MeetingID         string            `json:"meeting_id,omitempty"`
	VictoryThreshold  int               `json:"victory_threshold,omitempty"`
	VictoryPercentage float64           `json:"victory_percentage,omitempty"`
	QuorumType        string            `json:"quorum_type,omitempty"`
	QuorumThreshold   float64           `json:"quorum_threshold,omitempty"`
	BallotItems       []BallotItemInput `json:"ballot_items,omitempty"`
}

type CandidateItem struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	Statement   string `json:"statement,omitempty"`
	Status      string `json:"status"`
	WriteIn     bool   `json:"write_in"`
}

type BallotItemDetail struct {
	PositionID      string          `json:"position_id"`
	Title           string          `json:"title"`
	EligibilityRule string          `json:"eligibility_rule"`
	Ranked          bool            `json:"ranked"`
	DisplayOrder    int             `json:"display_order"`
	Candidates      []CandidateItem `json:"candidates"`
}

type ElectionResponse struct {
	ElectionID  string `json:"election_id"`
	OrgID       string `json:"org_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
	Anonymous   bool   `json:"anonymous"`
	MeetingID   string `json:"meeting_id,omitempty"`

	VotingMethod      string  `json:"voting_method"`
	VictoryCondition  string  `json:"victory_condition"`
	VictoryThreshold  int     `json:"victory_threshold,omitempty"`
	VictoryPercentage float64 `json:"victory_percentage,omitempty"`

	EnableRunoffs   bool   `json:"enable_runoffs"`
	RunoffType      string `json:"runoff_type,omitempty"`
	MaxRunoffRounds int    `json:"max_runoff_rounds,omitempty"`

	IsRunoff              bool   `json:"is_runoff"`
	ParentElectionID      string `json:"parent_election_id,omitempty"`
	RunoffRound           int    `json:"runoff_round,omitempty"`
	CancelledByRollbackID string `json:"cancelled_by_rollback_id,omitempty"`

	QuorumType      string  `json:"quorum_type,omitempty"`
	QuorumThreshold float64 `json:"quorum_threshold,omitempty"`

	BallotItems []BallotItemDetail `json:"ballot_items"`
	CreatedBy   string             `json:"created_by,omitempty"`
	CreatedAt   string             `json:"created_at"`
	UpdatedAt   string             `json:"updated_at"`
}

type ElectionListResponse struct {
	OrgID string             `json:"org_id"`
	Items []ElectionResponse `json:"items"`
}

type FinalizeElectionRequest struct {
	OverrideQuorum bool   `json:"override_quorum,omitempty"`
	Justification  string `json:"justification,omitempty"`
}

type FinalizeElectionResponse struct {
	ElectionID       string               `json:"election_id"`
	Status           string               `json:"status"`
	Results          []PositionResultItem `json:"results"`
	RunoffElectionID string               `json:"runoff_election_id,omitempty"`
	QuorumRequired   int                  `json:"quorum_required"`
	QuorumPresent    int                  `json:"quorum_present"`
	QuorumOverridden bool                 `json:"quorum_overridden"`
}

type RollbackRequest struct {
	TargetState string `json:"target_state"`
	Reason      string `json:"reason"`
}

type CandidateTotalItem struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Votes       int     `json:"votes"`
	Share       float64 `json:"share"`
}

type TallyRoundItem struct {
	Round      int                  `json:"round"`
	Counts     []CandidateTotalItem `json:"counts"`
	Eliminated string               `json:"eliminated,omitempty"`
}

type PositionResultItem struct {
	PositionID       string               `json:"position_id"`
	Method           string               `json:"method"`
	Condition        string               `json:"victory_condition"`
	WinnerID         string               `json:"winner_id,omitempty"`
	Tied             bool                 `json:"tied"`
	Vacant           bool                 `json:"vacant"`
	RunoffElectionID string               `json:"runoff_election_id,omitempty"`
	BallotsCounted   int                  `json:"ballots_counted"`
	ProxyBallots     int                  `json:"proxy_ballots"`
	Totals           []CandidateTotalItem `json:"totals"`
	Rounds           []TallyRoundItem     `json:"rounds,omitempty"`
	DecidedAt        string               `json:"decided_at"`
}

type ResultsResponse struct {
	ElectionID string               `json:"election_id"`
	Results    []PositionResultItem `json:"results"`
}

type RollbackRecordItem struct {
	RecordID   string `json:"record_id"`
	FromState  string `json:"from_state"`
	ToState    string `json:"to_state"`
	Reason     string `json:"reason"`
	Actor      string `json:"actor"`
	OccurredAt string `json:"occurred_at"`
}

type RollbackHistoryResponse struct {
	ElectionID string               `json:"election_id"`
	Items      []RollbackRecordItem `json:"items"`
}

type RunoffChainResponse struct {
	ElectionID string             `json:"election_id"`
	Chain      []ElectionResponse `json:"chain"`
}
