package commands

import (
	"context"
	"strings"

	application "ballotbox/contexts/governance/election-engine/application"
	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
)

// OpenElection moves draft → open and emits election.opened, which drives
// token issuance in the ballot office. Every non-write-in candidate must be
// accepted, declined or withdrawn first.
func (uc ElectionUseCase) OpenElection(ctx context.Context, electionID string) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.Election{}, err
	}
	if !election.CanTransition(entities.StatusOpen) {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}
	if err := validateConfig(election); err != nil {
		return entities.Election{}, err
	}
	for _, item := range election.BallotItems {
		onBallot := 0
		for _, candidate := range item.Candidates {
			if !candidate.WriteIn && candidate.Status == entities.CandidateNominated {
				return entities.Election{}, domainerrors.ErrCandidatesPending
			}
			if candidate.OnBallot() {
				onBallot++
			}
		}
		if onBallot == 0 {
			return entities.Election{}, domainerrors.ErrInvalidConfig
		}
	}

	now := uc.now()
	election.Status = entities.StatusOpen
	election.UpdatedAt = now
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, "election.opened", election, nil); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election opened",
		"event", "election_opened",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"anonymous", election.Anonymous,
	)
	return election, nil
}

// CloseElection moves open → closed, ending vote acceptance.
func (uc ElectionUseCase) CloseElection(ctx context.Context, electionID string) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.Election{}, err
	}
	if !election.CanTransition(entities.StatusClosed) {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	election.Status = entities.StatusClosed
	election.UpdatedAt = uc.now()
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, "election.closed", election, nil); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election closed",
		"event", "election_closed",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
	)
	return election, nil
}

// CancelElection is reachable from draft, open and closed.
func (uc ElectionUseCase) CancelElection(ctx context.Context, electionID string) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return entities.Election{}, err
	}
	if !election.CanTransition(entities.StatusCancelled) {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	election.Status = entities.StatusCancelled
	election.UpdatedAt = uc.now()
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, "election.cancelled", election, nil); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election cancelled",
		"event", "election_cancelled",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
	)
	return election, nil
}

func (uc ElectionUseCase) appendLifecycleEvent(
	ctx context.Context,
	eventType string,
	election entities.Election,
	extra map[string]any,
) error {
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"election_id": election.ElectionID,
		"org_id":      election.OrgID,
		"status":      string(election.Status),
		"anonymous":   election.Anonymous,
	}
	for key, value := range extra {
		data[key] = value
	}
	envelope, err := newElectionEnvelope(eventID, eventType, election.ElectionID, uc.now(), data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
