package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/governance/ballot-office/application/commands"
	"ballotbox/contexts/governance/ballot-office/application/queries"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	httptransport "ballotbox/contexts/governance/ballot-office/transport/http"
)

type Handler struct {
	Votes     commands.VoteUseCase
	Tokens    commands.TokenUseCase
	Overrides commands.OverrideUseCase
	Ballots   queries.BallotUseCase
	Audit     queries.AuditUseCase
	Logger    *slog.Logger
}

// CastAnonymousVoteHandler records a token-authenticated cast for one
// position on the ballot.
func (h Handler) CastAnonymousVoteHandler(
	ctx context.Context,
	token string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		PositionID:    req.PositionID,
		Token:         token,
		CandidateID:   req.CandidateID,
		RankedChoices: req.RankedChoices,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return mapCastResult(result), nil
}

// CastVoteHandler records an attributable cast for the authenticated member,
// directly or through a proxy authorization.
func (h Handler) CastVoteHandler(
	ctx context.Context,
	electionID string,
	userID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		ElectionID:           electionID,
		PositionID:           req.PositionID,
		UserID:               userID,
		CandidateID:          req.CandidateID,
		RankedChoices:        req.RankedChoices,
		ProxyAuthorizationID: req.ProxyAuthorizationID,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return mapCastResult(result), nil
}

func (h Handler) RetractVoteHandler(
	ctx context.Context,
	voteID string,
	officerID string,
	req httptransport.RetractVoteRequest,
) error {
	return h.Votes.RetractVote(ctx, commands.RetractVoteCommand{
		VoteID:    voteID,
		OfficerID: officerID,
		Reason:    req.Reason,
	})
}

func (h Handler) IssueTokensHandler(ctx context.Context, electionID string) (httptransport.IssueTokensResponse, error) {
	result, err := h.Tokens.IssueTokens(ctx, commands.IssueTokensCommand{ElectionID: electionID})
	if err != nil {
		return httptransport.IssueTokensResponse{}, err
	}
	return httptransport.IssueTokensResponse{
		ElectionID: strings.TrimSpace(electionID),
		Issued:     result.Issued,
		Existing:   result.Existing,
	}, nil
}

func (h Handler) ApplyOverrideHandler(
	ctx context.Context,
	electionID string,
	officerID string,
	req httptransport.OverrideRequest,
) (httptransport.OverrideResponse, error) {
	override, err := h.Overrides.ApplyOverride(ctx, commands.OverrideCommand{
		ElectionID: electionID,
		UserID:     req.UserID,
		Action:     entities.OverrideAction(strings.ToLower(strings.TrimSpace(req.Action))),
		Reason:     req.Reason,
		OfficerID:  officerID,
	})
	if err != nil {
		return httptransport.OverrideResponse{}, err
	}
	return httptransport.OverrideResponse{
		OverrideID: override.OverrideID,
		ElectionID: override.ElectionID,
		UserID:     override.UserID,
		Action:     string(override.Action),
		Reason:     override.Reason,
		GrantedBy:  override.GrantedBy,
	}, nil
}

func (h Handler) RegisterProxyHandler(
	ctx context.Context,
	electionID string,
	req httptransport.RegisterProxyRequest,
) (httptransport.RegisterProxyResponse, error) {
	cmd := commands.RegisterProxyCommand{
		ElectionID:    electionID,
		DelegatorID:   req.DelegatorID,
		ProxyHolderID: req.ProxyHolderID,
		PositionScope: req.PositionScope,
	}
	if strings.TrimSpace(req.ExpiresAt) != "" {
		expiresAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.ExpiresAt))
		if err != nil {
			return httptransport.RegisterProxyResponse{}, domainerrors.ErrInvalidVoteInput
		}
		cmd.ExpiresAt = &expiresAt
	}
	authorization, err := h.Overrides.RegisterProxy(ctx, cmd)
	if err != nil {
		return httptransport.RegisterProxyResponse{}, err
	}
	return httptransport.RegisterProxyResponse{
		AuthorizationID: authorization.AuthorizationID,
		ElectionID:      authorization.ElectionID,
		DelegatorID:     authorization.DelegatorID,
		ProxyHolderID:   authorization.ProxyHolderID,
		PositionScope:   authorization.PositionScope,
	}, nil
}

func (h Handler) BallotViewHandler(ctx context.Context, token string) (httptransport.BallotViewResponse, error) {
	view, err := h.Ballots.View(ctx, token)
	if err != nil {
		return httptransport.BallotViewResponse{}, err
	}
	resp := httptransport.BallotViewResponse{
		ElectionID: view.ElectionID,
		ExpiresAt:  view.ExpiresAt.UTC().Format(time.RFC3339),
		Completed:  view.Completed,
	}
	for _, position := range view.Positions {
		item := httptransport.BallotPositionItem{
			PositionID: position.PositionID,
			Title:      position.Title,
			Ranked:     position.Ranked,
			Voted:      position.Voted,
		}
		for _, candidate := range position.Candidates {
			item.Candidates = append(item.Candidates, httptransport.BallotCandidateItem{
				CandidateID: candidate.CandidateID,
				Name:        candidate.Name,
				WriteIn:     candidate.WriteIn,
			})
		}
		resp.Positions = append(resp.Positions, item)
	}
	return resp, nil
}

func (h Handler) AuditTrailHandler(ctx context.Context, electionID string) (httptransport.AuditTrailResponse, error) {
	entries, err := h.Audit.Trail(ctx, electionID)
	if err != nil {
		return httptransport.AuditTrailResponse{}, err
	}
	resp := httptransport.AuditTrailResponse{
		ElectionID: strings.TrimSpace(electionID),
		Items:      make([]httptransport.AuditEntryItem, 0, len(entries)),
	}
	for _, entry := range entries {
		resp.Items = append(resp.Items, httptransport.AuditEntryItem{
			EntryID:    entry.EntryID,
			ElectionID: entry.ElectionID,
			PositionID: entry.PositionID,
			VoterKey:   entry.VoterKey,
			Outcome:    entry.Outcome,
			Detail:     entry.Detail,
			OccurredAt: entry.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func mapCastResult(result commands.CastVoteResult) httptransport.CastVoteResponse {
	return httptransport.CastVoteResponse{
		VoteIDs:        result.VoteIDs,
		Anonymous:      result.Anonymous,
		PositionsVoted: result.PositionsVoted,
		TokenUsed:      result.TokenUsed,
	}
}