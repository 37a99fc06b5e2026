package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CastVoteRequest struct {
	PositionID           string   `json:"position_id"`
	CandidateID          string   `json:"candidate_id,omitempty"`
	RankedChoices        []string `json:"ranked_choices,omitempty"`
	ProxyAuthorizationID string   `json:"proxy_authorization_id,omitempty"`
}

type CastVoteResponse struct {
	VoteIDs        []string `json:"vote_ids"`
	Anonymous      bool     `json:"anonymous"`
	PositionsVoted []string `json:"positions_voted,omitempty"`
	TokenUsed      bool     `json:"token_used"`
}

type RetractVoteRequest struct {
	Reason string `json:"reason"`
}

type OverrideRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

type OverrideResponse struct {
	OverrideID string `json:"override_id"`
	ElectionID string `json:"election_id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	GrantedBy  string `json:"granted_by,omitempty"`
}

type RegisterProxyRequest struct {
	DelegatorID   string `json:"delegator_id"`
	ProxyHolderID string `json:"proxy_holder_id"`
	PositionScope string `json:"position_scope,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

type RegisterProxyResponse struct {
	AuthorizationID string `json:"authorization_id"`
	ElectionID      string `json:"election_id"`
	DelegatorID     string `json:"delegator_id"`
	ProxyHolderID   string `json:"proxy_holder_id"`
	PositionScope   string `json:"position_scope"`
}

type IssueTokensResponse struct {
	ElectionID string `json:"election_id"`
	Issued     int    `json:"issued"`
	Existing   int    `json:"existing"`
}

type BallotCandidateItem struct {
	CandidateID string `json:"candidate_id"`
	Name        string `json:"name"`
	WriteIn     bool   `json:"write_in"`
}

type BallotPositionItem struct {
	PositionID string                `json:"position_id"`
	Title      string                `json:"title"`
	Ranked     bool                  `json:"ranked"`
	Voted      bool                  `json:"voted"`
	Candidates []BallotCandidateItem `json:"candidates"`
}

type BallotViewResponse struct {
	ElectionID string               `json:"election_id"`
	ExpiresAt  string               `json:"expires_at"`
	Completed  bool                 `json:"completed"`
	Positions  []BallotPositionItem `json:"positions"`
}

type AuditEntryItem struct {
	EntryID    string `json:"entry_id"`
	ElectionID string `json:"election_id"`
	PositionID string `json:"position_id,omitempty"`
	VoterKey   string `json:"voter_key,omitempty"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

type AuditTrailResponse struct {
	ElectionID string           `json:"election_id"`
	Items      []AuditEntryItem `json:"items"`
}
