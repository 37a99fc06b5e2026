package unit

import (
	"context"
	"errors"
	"testing"
	"time"

	ballotoffice "ballotbox/contexts/governance/ballot-office"
	"ballotbox/contexts/governance/ballot-office/application/commands"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	ballotterrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	ballotports "ballotbox/contexts/governance/ballot-office/ports"
	ballottransport "ballotbox/contexts/governance/ballot-office/transport/http"
)

const (
	testOrgSalt       = "org-salt"
	testSigningSecret = "signing-secret"
)

func newBallotModule() ballotoffice.Module {
	return ballotoffice.NewInMemoryModule(testOrgSalt, testSigningSecret, nil)
}

func boardProjection(anonymous bool) ballotports.ElectionProjection {
	return ballotports.ElectionProjection{
		ElectionID: "election-1",
		OrgID:      "org-1",
		Status:     "open",
		Anonymous:  anonymous,
		Positions: []ballotports.PositionProjection{
			{
				PositionID:      "pos-president",
				Title:           "President",
				EligibilityRule: "all_active_members",
				Candidates: []ballotports.CandidateProjection{
					{CandidateID: "cand-ada", Name: "Ada", Accepted: true},
					{CandidateID: "cand-grace", Name: "Grace", Accepted: true},
				},
			},
			{
				PositionID:      "pos-treasurer",
				Title:           "Treasurer",
				EligibilityRule: "all_active_members",
				Candidates: []ballotports.CandidateProjection{
					{CandidateID: "cand-joan", Name: "Joan", Accepted: true},
					{CandidateID: "cand-mary", Name: "Mary", Accepted: true},
				},
			},
		},
	}
}

func seedBoardElection(module ballotoffice.Module, anonymous bool) {
	module.Store.SetElection(boardProjection(anonymous))
	module.Store.SetMember("org-1", "member-1", "active")
	module.Store.SetMember("org-1", "member-2", "active")
	module.Store.SetMember("org-1", "member-3", "active")
}

func TestDirectVoteDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, false)

	first, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	})
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if len(first.VoteIDs) != 1 || first.Anonymous {
		t.Fatalf("unexpected cast result: %+v", first)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrDuplicateVote) {
		t.Fatalf("second cast for the same position should be rejected, got %v", err)
	}

	trail, err := module.Handler.AuditTrailHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	outcomes := map[string]int{}
	for _, entry := range trail.Items {
		outcomes[entry.Outcome]++
	}
	if outcomes["recorded"] != 1 || outcomes["duplicate"] != 1 {
		t.Fatalf("expected one recorded and one duplicate entry, got %v", outcomes)
	}
}

func TestRetractedVoteBlocksRevoteUntilGrant(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, false)

	cast, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	})
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	if err := module.Handler.RetractVoteHandler(ctx, cast.VoteIDs[0], "officer-1", ballottransport.RetractVoteRequest{
		Reason: "voter reported a miscast ballot",
	}); err != nil {
		t.Fatalf("retract vote: %v", err)
	}
	if err := module.Handler.RetractVoteHandler(ctx, cast.VoteIDs[0], "officer-1", ballottransport.RetractVoteRequest{
		Reason: "already gone",
	}); !errors.Is(err, ballotterrors.ErrAlreadyRetracted) {
		t.Fatalf("double retraction should be rejected, got %v", err)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrRevoteBlocked) {
		t.Fatalf("revote after retraction needs an officer grant, got %v", err)
	}

	if _, err := module.Handler.ApplyOverrideHandler(ctx, "election-1", "officer-1", ballottransport.OverrideRequest{
		UserID: "member-1",
		Action: "grant",
		Reason: "recast approved after review",
	}); err != nil {
		t.Fatalf("apply grant override: %v", err)
	}

	revote, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	})
	if err != nil {
		t.Fatalf("revote after grant: %v", err)
	}
	if len(revote.VoteIDs) != 1 {
		t.Fatalf("unexpected revote result: %+v", revote)
	}
}

func TestAnonymousTokenFlow(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, true)

	issued, err := module.Handler.IssueTokensHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	if issued.Issued != 3 || issued.Existing != 0 {
		t.Fatalf("expected 3 fresh tokens, got %+v", issued)
	}

	again, err := module.Handler.IssueTokensHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("reissue tokens: %v", err)
	}
	if again.Issued != 0 || again.Existing != 3 {
		t.Fatalf("reissue must be idempotent, got %+v", again)
	}

	tokens, err := module.Store.ListTokensByElection(ctx, "election-1")
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	token := tokens[0].Token

	first, err := module.Handler.CastAnonymousVoteHandler(ctx, token, ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	})
	if err != nil {
		t.Fatalf("anonymous cast: %v", err)
	}
	if !first.Anonymous || first.TokenUsed {
		t.Fatalf("one of two positions voted must not exhaust the token, got %+v", first)
	}
	if len(first.PositionsVoted) != 1 || first.PositionsVoted[0] != "pos-president" {
		t.Fatalf("unexpected positions voted: %v", first.PositionsVoted)
	}

	if _, err := module.Handler.CastAnonymousVoteHandler(ctx, token, ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrTokenPositionUsed) {
		t.Fatalf("token position must redeem once, got %v", err)
	}

	second, err := module.Handler.CastAnonymousVoteHandler(ctx, token, ballottransport.CastVoteRequest{
		PositionID:  "pos-treasurer",
		CandidateID: "cand-joan",
	})
	if err != nil {
		t.Fatalf("anonymous cast second position: %v", err)
	}
	if !second.TokenUsed {
		t.Fatalf("token should be exhausted after the full ballot, got %+v", second)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, true)

	expired := entities.VotingToken{
		TokenID:    "token-expired",
		Token:      "expired-token-value",
		ElectionID: "election-1",
		VoterHash:  commands.VoterHash(testOrgSalt, "election-1", "member-2"),
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
		CreatedAt:  time.Now().UTC().Add(-48 * time.Hour),
	}
	if err := module.Store.SaveToken(ctx, expired); err != nil {
		t.Fatalf("seed token: %v", err)
	}

	if _, err := module.Handler.CastAnonymousVoteHandler(ctx, expired.Token, ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); !errors.Is(err, ballotterrors.ErrTokenExpired) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestProxyVotingFlow(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, false)

	if _, err := module.Handler.RegisterProxyHandler(ctx, "election-1", ballottransport.RegisterProxyRequest{
		DelegatorID:   "member-2",
		ProxyHolderID: "member-2",
		PositionScope: "*",
	}); !errors.Is(err, ballotterrors.ErrProxySelfDelegation) {
		t.Fatalf("self delegation should be rejected, got %v", err)
	}

	proxy, err := module.Handler.RegisterProxyHandler(ctx, "election-1", ballottransport.RegisterProxyRequest{
		DelegatorID:   "member-2",
		ProxyHolderID: "member-1",
		PositionScope: "*",
	})
	if err != nil {
		t.Fatalf("register proxy: %v", err)
	}

	proxied, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:           "pos-president",
		CandidateID:          "cand-ada",
		ProxyAuthorizationID: proxy.AuthorizationID,
	})
	if err != nil {
		t.Fatalf("proxy cast: %v", err)
	}
	if len(proxied.VoteIDs) != 1 {
		t.Fatalf("unexpected proxy cast result: %+v", proxied)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:           "pos-president",
		CandidateID:          "cand-grace",
		ProxyAuthorizationID: proxy.AuthorizationID,
	}); !errors.Is(err, ballotterrors.ErrProxyAlreadyExercised) {
		t.Fatalf("a proxy slot redeems once per position, got %v", err)
	}

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-2", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrDuplicateVote) {
		t.Fatalf("the delegator slot is consumed by the proxy ballot, got %v", err)
	}

	own, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	})
	if err != nil {
		t.Fatalf("holder's own ballot: %v", err)
	}
	if len(own.VoteIDs) != 1 {
		t.Fatalf("unexpected own cast result: %+v", own)
	}
}

func TestNonMemberNotEligible(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()
	seedBoardElection(module, false)

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "outsider-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); !errors.Is(err, ballotterrors.ErrNotEligible) {
		t.Fatalf("non-members must not vote, got %v", err)
	}

	trail, err := module.Handler.AuditTrailHandler(ctx, "election-1")
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(trail.Items) != 1 || trail.Items[0].Outcome != "rejected" {
		t.Fatalf("expected a single rejected audit entry, got %+v", trail.Items)
	}
}

func TestRankedBallotValidation(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()

	projection := boardProjection(false)
	projection.Positions[0].Ranked = true
	module.Store.SetElection(projection)
	module.Store.SetMember("org-1", "member-1", "active")

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:    "pos-president",
		RankedChoices: []string{"cand-ada", "cand-nobody"},
	}); !errors.Is(err, ballotterrors.ErrInvalidCandidate) {
		t.Fatalf("off-ballot ranked choice should be rejected, got %v", err)
	}

	cast, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:    "pos-president",
		RankedChoices: []string{"cand-ada", "cand-grace"},
	})
	if err != nil {
		t.Fatalf("ranked cast: %v", err)
	}
	if len(cast.VoteIDs) != 2 {
		t.Fatalf("expected one vote row per rank, got %+v", cast)
	}
}

func tokenFor(t *testing.T, module ballotoffice.Module, electionID string, userID string) entities.VotingToken {
	t.Helper()
	hash := commands.VoterHash(testOrgSalt, electionID, userID)
	tokens, err := module.Store.ListTokensByElection(context.Background(), electionID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	for _, token := range tokens {
		if token.VoterHash == hash {
			return token
		}
	}
	t.Fatalf("no token issued for %s", userID)
	return entities.VotingToken{}
}

func TestBallotModeGate(t *testing.T) {
	ctx := context.Background()

	anonymous := newBallotModule()
	seedBoardElection(anonymous, true)
	if _, err := anonymous.Handler.IssueTokensHandler(ctx, "election-1"); err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	token := tokenFor(t, anonymous, "election-1", "member-1")
	if _, err := anonymous.Handler.CastAnonymousVoteHandler(ctx, token.Token, ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); err != nil {
		t.Fatalf("token cast: %v", err)
	}
	if _, err := anonymous.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrBallotModeMismatch) {
		t.Fatalf("attributable cast into an anonymous election must be rejected, got %v", err)
	}

	attributable := newBallotModule()
	seedBoardElection(attributable, false)
	if _, err := attributable.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); err != nil {
		t.Fatalf("direct cast: %v", err)
	}
	stray := entities.VotingToken{
		TokenID:    "token-stray",
		Token:      "stray-token-value",
		ElectionID: "election-1",
		VoterHash:  commands.VoterHash(testOrgSalt, "election-1", "member-1"),
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
		CreatedAt:  time.Now().UTC(),
	}
	if err := attributable.Store.SaveToken(ctx, stray); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	if _, err := attributable.Handler.CastAnonymousVoteHandler(ctx, stray.Token, ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-grace",
	}); !errors.Is(err, ballotterrors.ErrBallotModeMismatch) {
		t.Fatalf("token cast into an attributable election must be rejected, got %v", err)
	}
	if _, err := attributable.Handler.IssueTokensHandler(ctx, "election-1"); !errors.Is(err, ballotterrors.ErrBallotModeMismatch) {
		t.Fatalf("token issuance for an attributable election must be rejected, got %v", err)
	}
}

func TestCastRequiresOpenElection(t *testing.T) {
	ctx := context.Background()
	module := newBallotModule()

	projection := boardProjection(false)
	projection.Status = "closed"
	module.Store.SetElection(projection)
	module.Store.SetMember("org-1", "member-1", "active")

	if _, err := module.Handler.CastVoteHandler(ctx, "election-1", "member-1", ballottransport.CastVoteRequest{
		PositionID:  "pos-president",
		CandidateID: "cand-ada",
	}); !errors.Is(err, ballotterrors.ErrElectionNotOpen) {
		t.Fatalf("casting into a closed election should fail, got %v", err)
	}

	if _, err := module.Handler.IssueTokensHandler(ctx, "election-1"); !errors.Is(err, ballotterrors.ErrElectionNotOpen) {
		t.Fatalf("issuing tokens for a closed election should fail, got %v", err)
	}
}
