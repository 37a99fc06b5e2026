package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	application "ballotbox/contexts/governance/election-engine/application"
	"ballotbox/contexts/governance/election-engine/application/tally"
	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	"ballotbox/contexts/governance/election-engine/ports"
)

type FinalizeElectionCommand struct {
	ElectionID string
	// OverrideQuorum lets an officer finalize past a failed quorum gate; the
	// justification is mandatory and recorded.
	OverrideQuorum bool
	Justification  string
	OfficerID      string
}

type FinalizeResult struct {
	Election         entities.Election
	Results          []entities.PositionResult
	RunoffElectionID string
	QuorumRequired   int
	QuorumPresent    int
	QuorumOverridden bool
}

// FinalizeElection is the commit point: it snapshots active votes, evaluates
// every position, persists the results and spawns a runoff child for
// unresolved positions. Votes cast after finalize never change reported
// results.
func (uc ElectionUseCase) FinalizeElection(ctx context.Context, cmd FinalizeElectionCommand) (FinalizeResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return FinalizeResult{}, err
	}
	if !election.CanTransition(entities.StatusFinalized) {
		return FinalizeResult{}, domainerrors.ErrInvalidTransition
	}

	votes, err := uc.Ballots.ListActiveVotes(ctx, election.ElectionID)
	if err != nil {
		return FinalizeResult{}, err
	}

	outcome := FinalizeResult{}
	if election.QuorumType != entities.QuorumNone {
		required, present, err := uc.quorumState(ctx, election, votes)
		if err != nil {
			return FinalizeResult{}, err
		}
		outcome.QuorumRequired = required
		outcome.QuorumPresent = present
		if !tally.QuorumMet(required, present) {
			if !cmd.OverrideQuorum {
				return FinalizeResult{}, domainerrors.ErrQuorumNotMet
			}
			if strings.TrimSpace(cmd.Justification) == "" || strings.TrimSpace(cmd.OfficerID) == "" {
				return FinalizeResult{}, domainerrors.ErrInvalidInput
			}
			outcome.QuorumOverridden = true
			logger.Warn("quorum gate overridden",
				"event", "election_quorum_overridden",
				"module", "governance/election-engine",
				"layer", "application",
				"election_id", election.ElectionID,
				"required", required,
				"present", present,
				"officer_id", strings.TrimSpace(cmd.OfficerID),
				"justification", strings.TrimSpace(cmd.Justification),
			)
		}
	}

	now := uc.now()
	results := make([]entities.PositionResult, 0, len(election.BallotItems))
	unresolved := make([]int, 0)
	for _, item := range election.BallotItems {
		positionVotes := make([]ports.BallotVote, 0)
		for _, vote := range votes {
			if vote.PositionID == item.PositionID {
				positionVotes = append(positionVotes, vote)
			}
		}
		result := tally.Run(tally.Input{
			Item:       item,
			Method:     election.VotingMethod,
			Condition:  election.VictoryCondition,
			Threshold:  election.VictoryThreshold,
			Percentage: election.VictoryPercentage,
			Votes:      positionVotes,
		}, now)
		if result.Unresolved() {
			unresolved = append(unresolved, len(results))
		}
		results = append(results, result)
	}

	var runoff *entities.Election
	if len(unresolved) > 0 && election.EnableRunoffs {
		if election.RunoffRound+1 > election.MaxRunoffRounds {
			// No further rounds: the positions stay vacant pending manual
			// officer resolution.
			for _, index := range unresolved {
				results[index].Vacant = true
			}
			logger.Warn("runoff limit reached, positions left vacant",
				"event", "election_runoff_limit_reached",
				"module", "governance/election-engine",
				"layer", "application",
				"election_id", election.ElectionID,
				"vacant_positions", len(unresolved),
			)
		} else {
			child, err := uc.spawnRunoff(ctx, election, results, unresolved, now)
			if err != nil {
				return FinalizeResult{}, err
			}
			runoff = &child
			for _, index := range unresolved {
				results[index].RunoffElectionID = child.ElectionID
			}
		}
	}

	if err := uc.Elections.SaveResults(ctx, election.ElectionID, results); err != nil {
		return FinalizeResult{}, err
	}
	election.Status = entities.StatusFinalized
	election.UpdatedAt = now
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return FinalizeResult{}, err
	}

	extra := map[string]any{
		"positions":         len(results),
		"unresolved":        len(unresolved),
		"quorum_overridden": outcome.QuorumOverridden,
	}
	if runoff != nil {
		extra["runoff_election_id"] = runoff.ElectionID
		outcome.RunoffElectionID = runoff.ElectionID
	}
	if err := uc.appendLifecycleEvent(ctx, "election.finalized", election, extra); err != nil {
		return FinalizeResult{}, err
	}

	logger.Info("election finalized",
		"event", "election_finalized",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"positions", len(results),
		"unresolved", len(unresolved),
		"runoff_spawned", runoff != nil,
	)

	outcome.Election = election
	outcome.Results = results
	return outcome, nil
}

// quorumState computes required and present counts. Meeting-linked elections
// count attendees flagged present; others count distinct voters who cast at
// least one active vote.
func (uc ElectionUseCase) quorumState(
	ctx context.Context,
	election entities.Election,
	votes []ports.BallotVote,
) (int, int, error) {
	members, err := uc.Members.ActiveMemberCount(ctx, election.OrgID)
	if err != nil {
		return 0, 0, err
	}
	required := tally.QuorumRequired(election.QuorumType, election.QuorumThreshold, members)

	if election.MeetingID != "" && uc.Meetings != nil {
		attendees, err := uc.Meetings.GetAttendees(ctx, election.MeetingID)
		if err != nil {
			return 0, 0, err
		}
		return required, tally.PresentFromAttendees(attendees), nil
	}
	return required, tally.PresentFromVotes(votes), nil
}

// spawnRunoff creates the draft child election: unresolved positions only,
// candidates narrowed per the runoff type, round number incremented.
// Eligibility is re-resolved when the child opens.
func (uc ElectionUseCase) spawnRunoff(
	ctx context.Context,
	parent entities.Election,
	results []entities.PositionResult,
	unresolved []int,
	now time.Time,
) (entities.Election, error) {
	childID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	nextRound := parent.RunoffRound + 1
	child := entities.Election{
		ElectionID:        childID,
		OrgID:             parent.OrgID,
		Title:             fmt.Sprintf("%s (runoff round %d)", parent.Title, nextRound),
		Description:       parent.Description,
		Status:            entities.StatusDraft,
		Anonymous:         parent.Anonymous,
		MeetingID:         parent.MeetingID,
		VotingMethod:      parent.VotingMethod,
		VictoryCondition:  parent.VictoryCondition,
		VictoryThreshold:  parent.VictoryThreshold,
		VictoryPercentage: parent.VictoryPercentage,
		EnableRunoffs:     parent.EnableRunoffs,
		RunoffType:        parent.RunoffType,
		MaxRunoffRounds:   parent.MaxRunoffRounds,
		IsRunoff:          true,
		ParentElectionID:  parent.ElectionID,
		RunoffRound:       nextRound,
		QuorumType:        parent.QuorumType,
		QuorumThreshold:   parent.QuorumThreshold,
		CreatedBy:         parent.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	for order, index := range unresolved {
		result := results[index]
		parentItem, ok := parent.FindBallotItem(result.PositionID)
		if !ok {
			return entities.Election{}, domainerrors.ErrPositionNotFound
		}
		advancing := tally.RunoffCandidates(parent.RunoffType, result)
		keep := make(map[string]struct{}, len(advancing))
		for _, candidateID := range advancing {
			keep[candidateID] = struct{}{}
		}

		positionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.Election{}, err
		}
		childItem := entities.BallotItem{
			PositionID:      positionID,
			Title:           parentItem.Title,
			EligibilityRule: parentItem.EligibilityRule,
			Ranked:          parentItem.Ranked,
			DisplayOrder:    order,
		}
		for _, candidate := range parentItem.Candidates {
			if _, advance := keep[candidate.CandidateID]; !advance {
				continue
			}
			candidateID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return entities.Election{}, err
			}
			childItem.Candidates = append(childItem.Candidates, entities.Candidate{
				CandidateID: candidateID,
				Name:        candidate.Name,
				Statement:   candidate.Statement,
				Status:      entities.CandidateAccepted,
				WriteIn:     candidate.WriteIn,
				CreatedAt:   now,
			})
		}
		child.BallotItems = append(child.BallotItems, childItem)
	}

	if err := uc.Elections.SaveElection(ctx, child); err != nil {
		return entities.Election{}, err
	}
	return child, nil
}
