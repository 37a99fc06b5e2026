package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/governance/ballot-office/application"
	"ballotbox/contexts/governance/ballot-office/application/eligibility"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"
)

// CastVoteCommand records a ballot for one position. Exactly one of Token
// (anonymous bearer credential) or UserID (attributable cast) is set. Ranked
// positions take the full ordered preference list in RankedChoices; single
// choice positions take CandidateID.
type CastVoteCommand struct {
	ElectionID           string
	PositionID           string
	Token                string
	UserID               string
	CandidateID          string
	RankedChoices        []string
	ProxyAuthorizationID string
}

// CastVoteResult reports the recorded vote ids and remaining token state.
type CastVoteResult struct {
	VoteIDs        []string
	VoterKey       string
	Anonymous      bool
	PositionsVoted []string
	TokenUsed      bool
}

// VoteUseCase enforces the ballot-integrity invariant: at most one active
// vote per voter key per position (per rank for ranked ballots). The storage
// layer's unique indexes are the authoritative serialization point; checks
// here are fast-path validation only.
type VoteUseCase struct {
	Elections     ports.ElectionDirectory
	Votes         ports.VoteRepository
	Tokens        ports.TokenRepository
	Members       ports.MemberDirectory
	Meetings      ports.MeetingDirectory
	Overrides     ports.OverrideRepository
	Proxies       ports.ProxyRepository
	Audit         ports.AuditLog
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	OrgSalt       string
	SigningSecret string
	Logger        *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("vote cast processing started",
		"event", "ballot_vote_cast_started",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", strings.TrimSpace(cmd.ElectionID),
		"position_id", strings.TrimSpace(cmd.PositionID),
		"token_based", strings.TrimSpace(cmd.Token) != "",
	)

	tokenBased := strings.TrimSpace(cmd.Token) != ""
	if strings.TrimSpace(cmd.PositionID) == "" ||
		tokenBased == (strings.TrimSpace(cmd.UserID) != "") {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if !tokenBased && strings.TrimSpace(cmd.ElectionID) == "" {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}
	if strings.TrimSpace(cmd.CandidateID) == "" && len(cmd.RankedChoices) == 0 {
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	// Token-based casts derive the election from the token itself; a token
	// never crosses election boundaries.
	var token entities.VotingToken
	electionID := strings.TrimSpace(cmd.ElectionID)
	if tokenBased {
		var err error
		token, err = uc.Tokens.GetTokenByValue(ctx, strings.TrimSpace(cmd.Token))
		if err != nil {
			return CastVoteResult{}, err
		}
		if electionID != "" && token.ElectionID != electionID {
			return CastVoteResult{}, domainerrors.ErrTokenNotFound
		}
		electionID = token.ElectionID
	}

	election, err := uc.Elections.GetElection(ctx, electionID)
	if err != nil {
		return CastVoteResult{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(election.Status), "open") {
		return CastVoteResult{}, domainerrors.ErrElectionNotOpen
	}

	position, ok := findPosition(election, cmd.PositionID)
	if !ok {
		return CastVoteResult{}, domainerrors.ErrPositionNotFound
	}

	now := uc.now()

	// Anonymous elections take token ballots only; attributable elections
	// take direct ballots only. Vote rows key on voter_hash for one mode and
	// voter_id for the other, so a mixed-mode cast would give the same human
	// a second slot outside the unique indexes.
	if election.Anonymous != tokenBased {
		uc.appendAudit(ctx, election.ElectionID, position.PositionID, "", entities.AuditOutcomeRejected, domainerrors.ErrBallotModeMismatch.Error(), now)
		return CastVoteResult{}, domainerrors.ErrBallotModeMismatch
	}

	var voter entities.VoterRef
	if tokenBased {
		if err := uc.redeemToken(token, position.PositionID, now); err != nil {
			uc.appendAudit(ctx, election.ElectionID, position.PositionID, "", entities.AuditOutcomeRejected, err.Error(), now)
			return CastVoteResult{}, err
		}
		voter = entities.AnonymousVoter(token.VoterHash)
	} else {
		voter = entities.DirectVoter(strings.TrimSpace(cmd.UserID))
	}

	resolved, err := uc.resolver().Resolve(ctx, election, position.PositionID, now)
	if err != nil {
		return CastVoteResult{}, err
	}

	var authorization entities.ProxyAuthorization
	isProxy := strings.TrimSpace(cmd.ProxyAuthorizationID) != ""
	if isProxy {
		// Anonymous ballots carry no caller identity to bind a proxy to.
		if tokenBased {
			return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
		}
		authorization, err = uc.validateProxy(ctx, cmd, election, position.PositionID, resolved, now)
		if err != nil {
			uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeRejected, err.Error(), now)
			return CastVoteResult{}, err
		}
		// The vote consumes the delegator's slot, keyed by the delegator so
		// the uniqueness invariant covers direct-vs-proxy races too.
		voter = entities.DirectVoter(authorization.DelegatorID)
	}

	if err := uc.checkEligibility(ctx, election, resolved, voter, isProxy, authorization); err != nil {
		uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeRejected, err.Error(), now)
		return CastVoteResult{}, err
	}

	if err := uc.checkRevoteGuard(ctx, election, position.PositionID, voter, resolved); err != nil {
		uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeRejected, err.Error(), now)
		return CastVoteResult{}, err
	}

	choices, err := validateChoices(position, cmd)
	if err != nil {
		uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeRejected, err.Error(), now)
		return CastVoteResult{}, err
	}

	votes := make([]entities.Vote, 0, len(choices))
	for _, choice := range choices {
		voteID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return CastVoteResult{}, err
		}
		vote := entities.Vote{
			VoteID:      voteID,
			ElectionID:  election.ElectionID,
			PositionID:  position.PositionID,
			CandidateID: choice.candidateID,
			Voter:       voter,
			Rank:        choice.rank,
			CreatedAt:   now,
		}
		if isProxy {
			vote.IsProxy = true
			vote.ProxyVoterID = authorization.ProxyHolderID
			vote.DelegatorID = authorization.DelegatorID
			vote.AuthorizationID = authorization.AuthorizationID
		}
		vote.Signature = voteSignature(
			uc.SigningSecret,
			vote.ElectionID,
			vote.PositionID,
			vote.CandidateID,
			voter.Key(),
			vote.Rank,
			vote.CreatedAt,
		)
		votes = append(votes, vote)
	}

	var tokenUpdate *entities.VotingToken
	if tokenBased {
		token.PositionsVoted = append(token.PositionsVoted, position.PositionID)
		token.AccessCount++
		if token.FirstAccessedAt == nil {
			first := now
			token.FirstAccessedAt = &first
		}
		token.Used = len(token.PositionsVoted) >= len(election.Positions)
		token.UpdatedAt = now
		tokenUpdate = &token
	}

	// Single transactional unit: vote insert(s) + token redemption. A
	// uniqueness violation aborts everything, so the token stays unredeemed
	// for this position and the voter is not disenfranchised.
	if err := uc.Votes.RecordBallot(ctx, votes, tokenUpdate); err != nil {
		if errors.Is(err, domainerrors.ErrDuplicateVote) {
			logger.Warn("duplicate vote rejected",
				"event", "ballot_vote_duplicate_rejected",
				"module", "governance/ballot-office",
				"layer", "application",
				"election_id", election.ElectionID,
				"position_id", position.PositionID,
				"anonymous", voter.IsAnonymous(),
			)
			uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeDuplicate, "storage uniqueness violation", now)
		}
		return CastVoteResult{}, err
	}

	uc.appendAudit(ctx, election.ElectionID, position.PositionID, voter.Key(), entities.AuditOutcomeRecorded, "", now)

	voteIDs := make([]string, 0, len(votes))
	for _, vote := range votes {
		voteIDs = append(voteIDs, vote.VoteID)
	}
	if err := uc.appendVoteEvent(ctx, "vote.recorded", election.ElectionID, position.PositionID, voter, len(votes), isProxy, now); err != nil {
		return CastVoteResult{}, err
	}

	logger.Info("vote recorded",
		"event", "ballot_vote_recorded",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", election.ElectionID,
		"position_id", position.PositionID,
		"vote_count", len(votes),
		"anonymous", voter.IsAnonymous(),
		"proxy", isProxy,
	)

	result := CastVoteResult{
		VoteIDs:   voteIDs,
		VoterKey:  voter.Key(),
		Anonymous: voter.IsAnonymous(),
	}
	if tokenUpdate != nil {
		result.PositionsVoted = tokenUpdate.PositionsVoted
		result.TokenUsed = tokenUpdate.Used
	}
	return result, nil
}

// redeemToken validates the bearer credential for this position. The caller
// persists the redemption inside the same transaction as the vote rows.
func (uc VoteUseCase) redeemToken(token entities.VotingToken, positionID string, now time.Time) error {
	if token.Expired(now) {
		return domainerrors.ErrTokenExpired
	}
	if token.HasVotedPosition(positionID) {
		return domainerrors.ErrTokenPositionUsed
	}
	return nil
}

func (uc VoteUseCase) validateProxy(
	ctx context.Context,
	cmd CastVoteCommand,
	election ports.ElectionProjection,
	positionID string,
	resolved eligibility.Result,
	now time.Time,
) (entities.ProxyAuthorization, error) {
	authorization, err := uc.Proxies.GetAuthorization(ctx, strings.TrimSpace(cmd.ProxyAuthorizationID))
	if err != nil {
		return entities.ProxyAuthorization{}, err
	}
	if authorization.ElectionID != election.ElectionID ||
		!strings.EqualFold(authorization.ProxyHolderID, strings.TrimSpace(cmd.UserID)) ||
		!authorization.Usable(now) ||
		!authorization.CoversPosition(positionID) {
		return entities.ProxyAuthorization{}, domainerrors.ErrProxyNotAuthorized
	}
	if strings.EqualFold(authorization.DelegatorID, authorization.ProxyHolderID) {
		return entities.ProxyAuthorization{}, domainerrors.ErrProxySelfDelegation
	}
	if !resolved.Eligible(authorization.DelegatorID) {
		return entities.ProxyAuthorization{}, domainerrors.ErrNotEligible
	}
	directVoted, err := uc.Votes.HasActiveVote(ctx, election.ElectionID, positionID, authorization.DelegatorID)
	if err != nil {
		return entities.ProxyAuthorization{}, err
	}
	if directVoted {
		return entities.ProxyAuthorization{}, domainerrors.ErrDelegatorAlreadyVoted
	}
	proxied, err := uc.Votes.HasProxyVoteForDelegator(ctx, election.ElectionID, positionID, authorization.DelegatorID)
	if err != nil {
		return entities.ProxyAuthorization{}, err
	}
	if proxied {
		return entities.ProxyAuthorization{}, domainerrors.ErrProxyAlreadyExercised
	}
	return authorization, nil
}

// checkEligibility is defense in depth beyond token issuance: overrides can
// change between issue and cast in long-running elections.
func (uc VoteUseCase) checkEligibility(
	ctx context.Context,
	election ports.ElectionProjection,
	resolved eligibility.Result,
	voter entities.VoterRef,
	isProxy bool,
	authorization entities.ProxyAuthorization,
) error {
	if isProxy {
		if !resolved.Eligible(authorization.DelegatorID) {
			return domainerrors.ErrNotEligible
		}
		return nil
	}
	if voter.IsAnonymous() {
		for userID := range resolved.Voters {
			if VoterHash(uc.OrgSalt, election.ElectionID, userID) == voter.VoterHash() {
				return nil
			}
		}
		return domainerrors.ErrNotEligible
	}
	if !resolved.Eligible(voter.UserID()) {
		return domainerrors.ErrNotEligible
	}
	return nil
}

// checkRevoteGuard blocks a new cast after retraction unless an officer
// re-opened the slot with a grant override. Retracted rows are excluded from
// the unique indexes, so this guard is the only thing standing between a
// retraction and a silent second vote.
func (uc VoteUseCase) checkRevoteGuard(
	ctx context.Context,
	election ports.ElectionProjection,
	positionID string,
	voter entities.VoterRef,
	resolved eligibility.Result,
) error {
	retracted, err := uc.Votes.HasRetractedVote(ctx, election.ElectionID, positionID, voter.Key())
	if err != nil {
		return err
	}
	if !retracted {
		return nil
	}
	overrides, err := uc.Overrides.ListOverrides(ctx, election.ElectionID)
	if err != nil {
		return err
	}
	for _, override := range overrides {
		if override.Action != entities.OverrideGrant {
			continue
		}
		if voter.IsAnonymous() {
			if VoterHash(uc.OrgSalt, election.ElectionID, override.UserID) == voter.VoterHash() {
				return nil
			}
			continue
		}
		if strings.EqualFold(override.UserID, voter.UserID()) {
			return nil
		}
	}
	return domainerrors.ErrRevoteBlocked
}

type ballotChoice struct {
	candidateID string
	rank        int
}

func validateChoices(position ports.PositionProjection, cmd CastVoteCommand) ([]ballotChoice, error) {
	onBallot := make(map[string]struct{}, len(position.Candidates))
	for _, candidate := range position.Candidates {
		// Nominees appear only once accepted; write-ins skip acceptance.
		if candidate.Accepted || candidate.WriteIn {
			onBallot[candidate.CandidateID] = struct{}{}
		}
	}

	if len(cmd.RankedChoices) > 0 {
		if !position.Ranked {
			return nil, domainerrors.ErrInvalidRank
		}
		if len(cmd.RankedChoices) > len(onBallot) {
			return nil, domainerrors.ErrInvalidRank
		}
		seen := make(map[string]struct{}, len(cmd.RankedChoices))
		choices := make([]ballotChoice, 0, len(cmd.RankedChoices))
		for i, candidateID := range cmd.RankedChoices {
			candidateID = strings.TrimSpace(candidateID)
			if _, ok := onBallot[candidateID]; !ok {
				return nil, domainerrors.ErrInvalidCandidate
			}
			if _, dup := seen[candidateID]; dup {
				return nil, domainerrors.ErrInvalidRank
			}
			seen[candidateID] = struct{}{}
			choices = append(choices, ballotChoice{candidateID: candidateID, rank: i + 1})
		}
		return choices, nil
	}

	if position.Ranked {
		return nil, domainerrors.ErrInvalidRank
	}
	candidateID := strings.TrimSpace(cmd.CandidateID)
	if _, ok := onBallot[candidateID]; !ok {
		return nil, domainerrors.ErrInvalidCandidate
	}
	return []ballotChoice{{candidateID: candidateID, rank: 0}}, nil
}

func (uc VoteUseCase) resolver() eligibility.Resolver {
	return eligibility.Resolver{
		Members:   uc.Members,
		Meetings:  uc.Meetings,
		Overrides: uc.Overrides,
		Proxies:   uc.Proxies,
		Logger:    uc.Logger,
	}
}

// appendAudit is best effort: audit failures are logged, never fatal to the
// cast itself.
func (uc VoteUseCase) appendAudit(
	ctx context.Context,
	electionID string,
	positionID string,
	voterKey string,
	outcome string,
	detail string,
	occurredAt time.Time,
) {
	if uc.Audit == nil {
		return
	}
	entryID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return
	}
	entry := entities.AuditEntry{
		EntryID:    entryID,
		ElectionID: electionID,
		PositionID: positionID,
		VoterKey:   voterKey,
		Outcome:    outcome,
		Detail:     detail,
		OccurredAt: occurredAt,
	}
	if err := uc.Audit.Append(ctx, entry); err != nil {
		application.ResolveLogger(uc.Logger).Error("audit append failed",
			"event", "ballot_audit_append_failed",
			"module", "governance/ballot-office",
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
	}
}

func (uc VoteUseCase) appendVoteEvent(
	ctx context.Context,
	eventType string,
	electionID string,
	positionID string,
	voter entities.VoterRef,
	voteCount int,
	isProxy bool,
	occurredAt time.Time,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"election_id": electionID,
		"position_id": positionID,
		"voter_key":   voter.Key(),
		"anonymous":   voter.IsAnonymous(),
		"vote_count":  voteCount,
		"proxy":       isProxy,
		"occurred_at": occurredAt.UTC().Format(time.RFC3339),
	}
	envelope, err := newBallotEnvelope(eventID, eventType, electionID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func findPosition(election ports.ElectionProjection, positionID string) (ports.PositionProjection, bool) {
	for _, position := range election.Positions {
		if position.PositionID == strings.TrimSpace(positionID) {
			return position, true
		}
	}
	return ports.PositionProjection{}, false
}
