package commands

import (
	"context"
	"strings"

	application "ballotbox/contexts/governance/election-engine/application"
	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
)

type RollbackCommand struct {
	ElectionID  string
	TargetState string
	Reason      string
	Actor       string
}

// Rollback reverts the lifecycle to a strictly prior state and appends to the
// immutable rollback log. Leaving the finalized state withdraws reported
// results and cancels any runoff children already spawned, each linked back
// to the rollback record that invalidated it.
func (uc ElectionUseCase) Rollback(ctx context.Context, cmd RollbackCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.Reason) == "" || strings.TrimSpace(cmd.Actor) == "" {
		return entities.Election{}, domainerrors.ErrInvalidInput
	}

	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}
	target := entities.ElectionStatus(strings.TrimSpace(cmd.TargetState))
	if !election.RollbackTargetValid(target) {
		return entities.Election{}, domainerrors.ErrInvalidRollback
	}

	now := uc.now()
	recordID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	record := entities.RollbackRecord{
		RecordID:   recordID,
		FromState:  election.Status,
		ToState:    target,
		Reason:     strings.TrimSpace(cmd.Reason),
		Actor:      strings.TrimSpace(cmd.Actor),
		OccurredAt: now,
	}

	cancelledChildren := 0
	if election.Status == entities.StatusFinalized {
		if err := uc.Elections.DeleteResults(ctx, election.ElectionID); err != nil {
			return entities.Election{}, err
		}
		children, err := uc.Elections.ListChildElections(ctx, election.ElectionID)
		if err != nil {
			return entities.Election{}, err
		}
		for _, child := range children {
			if child.Status == entities.StatusCancelled {
				continue
			}
			child.Status = entities.StatusCancelled
			child.CancelledByRollbackID = record.RecordID
			child.UpdatedAt = now
			if err := uc.Elections.SaveElection(ctx, child); err != nil {
				return entities.Election{}, err
			}
			cancelledChildren++
		}
	}

	election.Status = target
	election.RollbackHistory = append(election.RollbackHistory, record)
	election.UpdatedAt = now
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, "election.rolled_back", election, map[string]any{
		"rollback_id": record.RecordID,
		"from_state":  string(record.FromState),
		"to_state":    string(record.ToState),
	}); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election rolled back",
		"event", "election_rolled_back",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"from_state", string(record.FromState),
		"to_state", string(record.ToState),
		"cancelled_children", cancelledChildren,
		"actor", record.Actor,
	)
	return election, nil
}
