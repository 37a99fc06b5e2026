package commands

import (
	"context"
	"strings"

	application "ballotbox/contexts/governance/ballot-office/application"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
)

// RetractVoteCommand is an officer-mediated soft delete. The row stays in the
// audit trail and the voter's slot stays consumed until a grant override
// explicitly re-opens it.
type RetractVoteCommand struct {
	VoteID    string
	OfficerID string
	Reason    string
}

func (uc VoteUseCase) RetractVote(ctx context.Context, cmd RetractVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.VoteID) == "" || strings.TrimSpace(cmd.OfficerID) == "" {
		return domainerrors.ErrInvalidVoteInput
	}

	vote, err := uc.Votes.GetVote(ctx, strings.TrimSpace(cmd.VoteID))
	if err != nil {
		return err
	}
	if !vote.Active() {
		return domainerrors.ErrAlreadyRetracted
	}

	now := uc.now()
	vote.DeletedAt = &now
	vote.DeletedBy = strings.TrimSpace(cmd.OfficerID)
	vote.DeletionReason = strings.TrimSpace(cmd.Reason)
	if err := uc.Votes.SaveVote(ctx, vote); err != nil {
		return err
	}

	uc.appendAudit(ctx, vote.ElectionID, vote.PositionID, vote.Voter.Key(), entities.AuditOutcomeRetracted, vote.DeletionReason, now)
	if err := uc.appendVoteEvent(ctx, "vote.retracted", vote.ElectionID, vote.PositionID, vote.Voter, 1, vote.IsProxy, now); err != nil {
		return err
	}

	logger.Info("vote retracted",
		"event", "ballot_vote_retracted",
		"module", "governance/ballot-office",
		"layer", "application",
		"vote_id", vote.VoteID,
		"election_id", vote.ElectionID,
		"position_id", vote.PositionID,
		"officer_id", strings.TrimSpace(cmd.OfficerID),
	)
	return nil
}
