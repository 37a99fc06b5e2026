package unit

import (
	"context"
	"errors"
	"testing"

	electionengine "ballotbox/contexts/governance/election-engine"
	electionerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	electionports "ballotbox/contexts/governance/election-engine/ports"
	electiontransport "ballotbox/contexts/governance/election-engine/transport/http"
)

func presidentElectionRequest() electiontransport.CreateElectionRequest {
	return electiontransport.CreateElectionRequest{
		OrgID:            "org-1",
		Title:            "Annual Board Election",
		VotingMethod:     "simple_majority",
		VictoryCondition: "most_votes",
		BallotItems: []electiontransport.BallotItemInput{
			{
				Title:           "President",
				EligibilityRule: "all_active_members",
				Candidates: []electiontransport.CandidateInputItem{
					{Name: "Ada"},
					{Name: "Grace"},
				},
			},
		},
	}
}

func TestElectionLifecycleProducesWinner(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", presidentElectionRequest())
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if created.Status != "draft" {
		t.Fatalf("expected draft status, got %q", created.Status)
	}

	if _, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{}); !errors.Is(err, electionerrors.ErrInvalidTransition) {
		t.Fatalf("finalize from draft should fail with ErrInvalidTransition, got %v", err)
	}

	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("open election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); !errors.Is(err, electionerrors.ErrInvalidTransition) {
		t.Fatalf("double open should fail with ErrInvalidTransition, got %v", err)
	}

	if _, err := module.Handler.ResultsHandler(ctx, created.ElectionID); !errors.Is(err, electionerrors.ErrResultsNotAvailable) {
		t.Fatalf("results before finalize should be withheld, got %v", err)
	}

	position := created.BallotItems[0]
	ada := position.Candidates[0].CandidateID
	grace := position.Candidates[1].CandidateID
	module.Store.SetVotes(created.ElectionID, []electionports.BallotVote{
		{VoterKey: "member-1", PositionID: position.PositionID, CandidateID: ada},
		{VoterKey: "member-2", PositionID: position.PositionID, CandidateID: ada},
		{VoterKey: "member-3", PositionID: position.PositionID, CandidateID: grace},
	})

	if _, err := module.Handler.CloseElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("close election: %v", err)
	}
	finalized, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{})
	if err != nil {
		t.Fatalf("finalize election: %v", err)
	}
	if finalized.Status != "finalized" {
		t.Fatalf("expected finalized status, got %q", finalized.Status)
	}
	if len(finalized.Results) != 1 || finalized.Results[0].WinnerID != ada {
		t.Fatalf("expected Ada to win, got %+v", finalized.Results)
	}

	results, err := module.Handler.ResultsHandler(ctx, created.ElectionID)
	if err != nil {
		t.Fatalf("results after finalize: %v", err)
	}
	if results.Results[0].BallotsCounted != 3 {
		t.Fatalf("expected 3 ballots counted, got %d", results.Results[0].BallotsCounted)
	}
}

func TestCreateElectionRejectsInvalidConfig(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	ranked := presidentElectionRequest()
	ranked.VotingMethod = "ranked_choice"
	ranked.VictoryCondition = "threshold_count"
	ranked.VictoryThreshold = 3
	if _, err := module.Handler.CreateElectionHandler(ctx, "officer-1", ranked); !errors.Is(err, electionerrors.ErrInvalidConfig) {
		t.Fatalf("ranked choice with a count condition should be rejected, got %v", err)
	}

	meetingRule := presidentElectionRequest()
	meetingRule.BallotItems[0].EligibilityRule = "meeting_attendees"
	if _, err := module.Handler.CreateElectionHandler(ctx, "officer-1", meetingRule); !errors.Is(err, electionerrors.ErrInvalidConfig) {
		t.Fatalf("meeting_attendees without a meeting should be rejected, got %v", err)
	}
}

func TestOpenBlocksPendingNominations(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	req := presidentElectionRequest()
	req.BallotItems[0].Candidates[0].Status = "nominated"
	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", req)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); !errors.Is(err, electionerrors.ErrCandidatesPending) {
		t.Fatalf("open with pending nominations should fail, got %v", err)
	}
}

func TestFinalizeQuorumGateAndOverride(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)
	module.Store.SetActiveMembers("org-1", []string{"member-1", "member-2", "member-3", "member-4"})

	req := presidentElectionRequest()
	req.QuorumType = "percentage"
	req.QuorumThreshold = 50
	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", req)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("open election: %v", err)
	}

	position := created.BallotItems[0]
	module.Store.SetVotes(created.ElectionID, []electionports.BallotVote{
		{VoterKey: "member-1", PositionID: position.PositionID, CandidateID: position.Candidates[0].CandidateID},
	})
	if _, err := module.Handler.CloseElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("close election: %v", err)
	}

	if _, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{}); !errors.Is(err, electionerrors.ErrQuorumNotMet) {
		t.Fatalf("one voter of four must miss a 50%% quorum, got %v", err)
	}

	if _, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{
		OverrideQuorum: true,
	}); !errors.Is(err, electionerrors.ErrInvalidInput) {
		t.Fatalf("override without justification should be rejected, got %v", err)
	}

	finalized, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{
		OverrideQuorum: true,
		Justification:  "board approved proceeding with reduced turnout",
	})
	if err != nil {
		t.Fatalf("finalize with override: %v", err)
	}
	if !finalized.QuorumOverridden {
		t.Fatalf("expected quorum override recorded, got %+v", finalized)
	}
	if finalized.QuorumRequired != 2 || finalized.QuorumPresent != 1 {
		t.Fatalf("expected quorum 2 required / 1 present, got %d/%d", finalized.QuorumRequired, finalized.QuorumPresent)
	}
}

func TestTieSpawnsRunoffAndRollbackCancelsIt(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	req := presidentElectionRequest()
	req.EnableRunoffs = true
	req.RunoffType = "top_two"
	req.MaxRunoffRounds = 2
	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", req)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("open election: %v", err)
	}

	position := created.BallotItems[0]
	module.Store.SetVotes(created.ElectionID, []electionports.BallotVote{
		{VoterKey: "member-1", PositionID: position.PositionID, CandidateID: position.Candidates[0].CandidateID},
		{VoterKey: "member-2", PositionID: position.PositionID, CandidateID: position.Candidates[1].CandidateID},
	})
	if _, err := module.Handler.CloseElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("close election: %v", err)
	}

	finalized, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{})
	if err != nil {
		t.Fatalf("finalize election: %v", err)
	}
	if !finalized.Results[0].Tied {
		t.Fatalf("expected tied position, got %+v", finalized.Results[0])
	}
	if finalized.RunoffElectionID == "" {
		t.Fatalf("expected a runoff election to spawn")
	}

	runoff, err := module.Handler.ElectionDetailHandler(ctx, finalized.RunoffElectionID)
	if err != nil {
		t.Fatalf("runoff detail: %v", err)
	}
	if !runoff.IsRunoff || runoff.RunoffRound != 1 || runoff.ParentElectionID != created.ElectionID {
		t.Fatalf("unexpected runoff election: %+v", runoff)
	}

	chain, err := module.Handler.RunoffChainHandler(ctx, created.ElectionID)
	if err != nil {
		t.Fatalf("runoff chain: %v", err)
	}
	if len(chain.Chain) != 2 {
		t.Fatalf("expected a 2-election chain, got %d", len(chain.Chain))
	}

	rolledBack, err := module.Handler.RollbackElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.RollbackRequest{
		TargetState: "closed",
		Reason:      "ballot irregularity reported",
	})
	if err != nil {
		t.Fatalf("rollback election: %v", err)
	}
	if rolledBack.Status != "closed" {
		t.Fatalf("expected closed after rollback, got %q", rolledBack.Status)
	}

	if _, err := module.Handler.ResultsHandler(ctx, created.ElectionID); !errors.Is(err, electionerrors.ErrResultsNotAvailable) {
		t.Fatalf("results must be purged after rollback, got %v", err)
	}

	cancelled, err := module.Handler.ElectionDetailHandler(ctx, finalized.RunoffElectionID)
	if err != nil {
		t.Fatalf("runoff detail after rollback: %v", err)
	}
	if cancelled.Status != "cancelled" || cancelled.CancelledByRollbackID == "" {
		t.Fatalf("runoff should be cancelled by the rollback, got %+v", cancelled)
	}

	history, err := module.Handler.RollbackHistoryHandler(ctx, created.ElectionID)
	if err != nil {
		t.Fatalf("rollback history: %v", err)
	}
	if len(history.Items) != 1 || history.Items[0].FromState != "finalized" || history.Items[0].ToState != "closed" {
		t.Fatalf("unexpected rollback history: %+v", history.Items)
	}
}

func TestRunoffLimitLeavesPositionVacant(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	req := presidentElectionRequest()
	req.EnableRunoffs = true
	req.RunoffType = "top_two"
	req.MaxRunoffRounds = 1
	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", req)
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("open election: %v", err)
	}
	position := created.BallotItems[0]
	module.Store.SetVotes(created.ElectionID, []electionports.BallotVote{
		{VoterKey: "member-1", PositionID: position.PositionID, CandidateID: position.Candidates[0].CandidateID},
		{VoterKey: "member-2", PositionID: position.PositionID, CandidateID: position.Candidates[1].CandidateID},
	})
	if _, err := module.Handler.CloseElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("close election: %v", err)
	}
	finalized, err := module.Handler.FinalizeElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.FinalizeElectionRequest{})
	if err != nil {
		t.Fatalf("finalize election: %v", err)
	}
	if finalized.RunoffElectionID == "" {
		t.Fatalf("first tie should still spawn round 1")
	}

	if _, err := module.Handler.OpenElectionHandler(ctx, finalized.RunoffElectionID); err != nil {
		t.Fatalf("open runoff: %v", err)
	}
	if _, err := module.Handler.CloseElectionHandler(ctx, finalized.RunoffElectionID); err != nil {
		t.Fatalf("close runoff: %v", err)
	}
	runoffFinal, err := module.Handler.FinalizeElectionHandler(ctx, finalized.RunoffElectionID, "officer-1", electiontransport.FinalizeElectionRequest{})
	if err != nil {
		t.Fatalf("finalize runoff: %v", err)
	}
	if !runoffFinal.Results[0].Vacant {
		t.Fatalf("unresolved final round should leave the position vacant, got %+v", runoffFinal.Results[0])
	}
	if runoffFinal.RunoffElectionID != "" {
		t.Fatalf("no further rounds may spawn past the limit, got %q", runoffFinal.RunoffElectionID)
	}
}

func TestRollbackValidation(t *testing.T) {
	ctx := context.Background()
	module := electionengine.NewInMemoryModule(nil)

	created, err := module.Handler.CreateElectionHandler(ctx, "officer-1", presidentElectionRequest())
	if err != nil {
		t.Fatalf("create election: %v", err)
	}
	if _, err := module.Handler.OpenElectionHandler(ctx, created.ElectionID); err != nil {
		t.Fatalf("open election: %v", err)
	}

	if _, err := module.Handler.RollbackElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.RollbackRequest{
		TargetState: "draft",
	}); !errors.Is(err, electionerrors.ErrInvalidInput) {
		t.Fatalf("rollback without a reason should be rejected, got %v", err)
	}

	if _, err := module.Handler.RollbackElectionHandler(ctx, created.ElectionID, "officer-1", electiontransport.RollbackRequest{
		TargetState: "closed",
		Reason:      "wrong direction",
	}); !errors.Is(err, electionerrors.ErrInvalidRollback) {
		t.Fatalf("rollback must target a strictly prior state, got %v", err)
	}
}
