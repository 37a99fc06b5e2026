package tally

import (
	"testing"
	"time"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	"ballotbox/contexts/governance/election-engine/ports"
)

func threeCandidateItem() entities.BallotItem {
	return entities.BallotItem{
		PositionID: "pos-1",
		Title:      "President",
		Candidates: []entities.Candidate{
			{CandidateID: "cand-a", Name: "Ada", Status: entities.CandidateAccepted},
			{CandidateID: "cand-b", Name: "Grace", Status: entities.CandidateAccepted},
			{CandidateID: "cand-c", Name: "Joan", Status: entities.CandidateAccepted},
		},
	}
}

func singleVote(voter string, candidate string) ports.BallotVote {
	return ports.BallotVote{VoterKey: voter, PositionID: "pos-1", CandidateID: candidate}
}

func rankedBallot(voter string, preferences ...string) []ports.BallotVote {
	votes := make([]ports.BallotVote, 0, len(preferences))
	for i, candidate := range preferences {
		votes = append(votes, ports.BallotVote{
			VoterKey:    voter,
			PositionID:  "pos-1",
			CandidateID: candidate,
			Rank:        i + 1,
		})
	}
	return votes
}

func TestSingleChoicePluralityWinner(t *testing.T) {
	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodSimpleMajority,
		Condition: entities.ConditionMostVotes,
		Votes: []ports.BallotVote{
			singleVote("v1", "cand-a"),
			singleVote("v2", "cand-a"),
			singleVote("v3", "cand-a"),
			singleVote("v4", "cand-b"),
			singleVote("v5", "cand-b"),
			singleVote("v6", "cand-c"),
		},
	}, time.Now())

	if result.WinnerID != "cand-a" {
		t.Fatalf("expected cand-a to win, got %q", result.WinnerID)
	}
	if result.BallotsCounted != 6 {
		t.Fatalf("expected 6 ballots counted, got %d", result.BallotsCounted)
	}
	if result.Totals[0].Votes != 3 || result.Totals[0].Share != 0.5 {
		t.Fatalf("unexpected top total: %+v", result.Totals[0])
	}
}

func TestSingleChoiceTieAtTop(t *testing.T) {
	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodSimpleMajority,
		Condition: entities.ConditionMostVotes,
		Votes: []ports.BallotVote{
			singleVote("v1", "cand-a"),
			singleVote("v2", "cand-a"),
			singleVote("v3", "cand-b"),
			singleVote("v4", "cand-b"),
			singleVote("v5", "cand-c"),
		},
	}, time.Now())

	if !result.Tied {
		t.Fatalf("expected tie, got %+v", result)
	}
	if result.WinnerID != "" {
		t.Fatalf("tie must not produce a winner, got %q", result.WinnerID)
	}
	if !result.Unresolved() {
		t.Fatalf("tied position should be unresolved")
	}
}

func TestThresholdCountNotReached(t *testing.T) {
	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodSimpleMajority,
		Condition: entities.ConditionThresholdCount,
		Threshold: 4,
		Votes: []ports.BallotVote{
			singleVote("v1", "cand-a"),
			singleVote("v2", "cand-a"),
			singleVote("v3", "cand-a"),
			singleVote("v4", "cand-b"),
		},
	}, time.Now())

	if result.WinnerID != "" || result.Tied {
		t.Fatalf("threshold miss must leave the position open, got %+v", result)
	}
	if !result.Unresolved() {
		t.Fatalf("expected unresolved result")
	}
}

func TestThresholdPercentageBoundary(t *testing.T) {
	votes := []ports.BallotVote{
		singleVote("v1", "cand-a"),
		singleVote("v2", "cand-a"),
		singleVote("v3", "cand-a"),
		singleVote("v4", "cand-b"),
	}

	met := Run(Input{
		Item:       threeCandidateItem(),
		Method:     entities.MethodSupermajority,
		Condition:  entities.ConditionThresholdPercentage,
		Percentage: 75,
		Votes:      votes,
	}, time.Now())
	if met.WinnerID != "cand-a" {
		t.Fatalf("75%% of 4 ballots meets a 75%% bar, got %+v", met)
	}

	missed := Run(Input{
		Item:       threeCandidateItem(),
		Method:     entities.MethodSupermajority,
		Condition:  entities.ConditionThresholdPercentage,
		Percentage: 80,
		Votes:      votes,
	}, time.Now())
	if missed.WinnerID != "" {
		t.Fatalf("75%% support must not clear an 80%% bar, got %q", missed.WinnerID)
	}
}

func TestRankedChoiceEliminationAndTransfer(t *testing.T) {
	var votes []ports.BallotVote
	for i := 0; i < 4; i++ {
		votes = append(votes, rankedBallot(voterName("a", i), "cand-a", "cand-b", "cand-c")...)
	}
	for i := 0; i < 3; i++ {
		votes = append(votes, rankedBallot(voterName("b", i), "cand-b", "cand-a", "cand-c")...)
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, rankedBallot(voterName("c", i), "cand-c", "cand-a", "cand-b")...)
	}

	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodRankedChoice,
		Condition: entities.ConditionMostVotes,
		Votes:     votes,
	}, time.Now())

	if result.BallotsCounted != 9 {
		t.Fatalf("expected 9 ballots, got %d", result.BallotsCounted)
	}
	if len(result.Rounds) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(result.Rounds))
	}
	if result.Rounds[0].Eliminated != "cand-c" {
		t.Fatalf("expected cand-c eliminated first, got %q", result.Rounds[0].Eliminated)
	}
	if result.WinnerID != "cand-a" {
		t.Fatalf("expected cand-a to win after transfer, got %q", result.WinnerID)
	}
	if result.Totals[0].CandidateID != "cand-a" || result.Totals[0].Votes != 6 {
		t.Fatalf("expected cand-a at 6 after transfer, got %+v", result.Totals[0])
	}
}

func TestRankedEliminationTieBreaksTowardLaterBallotOrder(t *testing.T) {
	var votes []ports.BallotVote
	for i := 0; i < 2; i++ {
		votes = append(votes, rankedBallot(voterName("a", i), "cand-a")...)
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, rankedBallot(voterName("b", i), "cand-b")...)
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, rankedBallot(voterName("c", i), "cand-c", "cand-b")...)
	}

	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodRankedChoice,
		Condition: entities.ConditionMostVotes,
		Votes:     votes,
	}, time.Now())

	if result.Rounds[0].Eliminated != "cand-c" {
		t.Fatalf("three-way first-round tie must drop the later ballot entry, got %q", result.Rounds[0].Eliminated)
	}
	if result.WinnerID != "cand-b" {
		t.Fatalf("expected cand-b after transfer, got %q", result.WinnerID)
	}
}

func TestRankedExhaustedBallotsShrinkDenominator(t *testing.T) {
	var votes []ports.BallotVote
	for i := 0; i < 3; i++ {
		votes = append(votes, rankedBallot(voterName("a", i), "cand-a", "cand-b")...)
	}
	for i := 0; i < 3; i++ {
		votes = append(votes, rankedBallot(voterName("c", i), "cand-c")...)
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, rankedBallot(voterName("b", i), "cand-b")...)
	}

	result := Run(Input{
		Item:      threeCandidateItem(),
		Method:    entities.MethodRankedChoice,
		Condition: entities.ConditionMostVotes,
		Votes:     votes,
	}, time.Now())

	if len(result.Rounds) != 3 {
		t.Fatalf("expected 3 rounds, got %d", len(result.Rounds))
	}
	if result.WinnerID != "cand-a" {
		t.Fatalf("expected cand-a as sole survivor majority, got %q", result.WinnerID)
	}
	// The cand-c ballots list no further preferences; by the last round only
	// the cand-a ballots still count toward the majority denominator.
	last := result.Rounds[2].Counts
	if len(last) != 1 || last[0].Votes != 3 {
		t.Fatalf("unexpected last round counts: %+v", last)
	}
}

func TestRunoffCandidatesTopTwo(t *testing.T) {
	result := entities.PositionResult{
		Totals: []entities.CandidateTotal{
			{CandidateID: "cand-a", Votes: 4},
			{CandidateID: "cand-b", Votes: 4},
			{CandidateID: "cand-c", Votes: 1},
		},
	}
	advancing := RunoffCandidates(entities.RunoffTopTwo, result)
	if len(advancing) != 2 || advancing[0] != "cand-a" || advancing[1] != "cand-b" {
		t.Fatalf("expected exactly cand-a and cand-b to advance, got %v", advancing)
	}
}

func TestRunoffCandidatesRankedEliminationKeepsSurvivors(t *testing.T) {
	result := entities.PositionResult{
		Totals: []entities.CandidateTotal{
			{CandidateID: "cand-a", Votes: 4},
			{CandidateID: "cand-b", Votes: 4},
			{CandidateID: "cand-c", Votes: 1},
		},
		Rounds: []entities.TallyRound{
			{Round: 1, Eliminated: "cand-c"},
		},
	}
	advancing := RunoffCandidates(entities.RunoffRankedElimination, result)
	if len(advancing) != 2 || advancing[0] != "cand-a" || advancing[1] != "cand-b" {
		t.Fatalf("expected eliminated candidates dropped, got %v", advancing)
	}
}

func voterName(group string, index int) string {
	return "voter-" + group + "-" + string(rune('0'+index))
}
