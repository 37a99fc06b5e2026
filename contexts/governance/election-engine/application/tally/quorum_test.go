package tally

import (
	"testing"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	"ballotbox/contexts/governance/election-engine/ports"
)

func TestQuorumRequiredRoundsUp(t *testing.T) {
	cases := []struct {
		name      string
		threshold float64
		members   int
		want      int
	}{
		{"thirty three percent of ten", 33, 10, 4},
		{"fifty percent of ten", 50, 10, 5},
		{"fifty percent of odd count", 50, 7, 4},
		{"full turnout", 100, 12, 12},
	}
	for _, tc := range cases {
		got := QuorumRequired(entities.QuorumPercentage, tc.threshold, tc.members)
		if got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestQuorumRequiredCountAndNone(t *testing.T) {
	if got := QuorumRequired(entities.QuorumCount, 5, 100); got != 5 {
		t.Fatalf("count quorum should pass the threshold through, got %d", got)
	}
	if got := QuorumRequired(entities.QuorumNone, 50, 100); got != 0 {
		t.Fatalf("no quorum type should require 0, got %d", got)
	}
}

func TestQuorumMetBoundary(t *testing.T) {
	if QuorumMet(4, 3) {
		t.Fatalf("3 present must not meet a quorum of 4")
	}
	if !QuorumMet(4, 4) {
		t.Fatalf("exact count meets quorum")
	}
}

func TestPresentFromAttendees(t *testing.T) {
	present := PresentFromAttendees([]ports.Attendee{
		{UserID: "u1", Present: true},
		{UserID: "u2", Present: false},
		{UserID: "u3", Present: true},
	})
	if present != 2 {
		t.Fatalf("expected 2 present, got %d", present)
	}
}

func TestPresentFromVotesCountsDistinctVoters(t *testing.T) {
	present := PresentFromVotes([]ports.BallotVote{
		{VoterKey: "v1", PositionID: "pos-1"},
		{VoterKey: "v1", PositionID: "pos-2"},
		{VoterKey: "v2", PositionID: "pos-1"},
	})
	if present != 2 {
		t.Fatalf("expected 2 distinct voters, got %d", present)
	}
}
