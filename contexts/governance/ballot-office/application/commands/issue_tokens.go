package commands

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	application "ballotbox/contexts/governance/ballot-office/application"
	"ballotbox/contexts/governance/ballot-office/application/eligibility"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"
)

// IssueTokensCommand mints one anonymous-access token per eligible voter for
// the whole election. Issuance is idempotent: voters who already hold a token
// keep it.
type IssueTokensCommand struct {
	ElectionID string
}

type IssueTokensResult struct {
	Issued   int
	Existing int
}

// TokenUseCase owns the voting token lifecycle. The token string is the sole
// authentication mechanism for anonymous voting, so minting goes through a
// crypto/rand-backed TokenMinter.
type TokenUseCase struct {
	Elections ports.ElectionDirectory
	Tokens    ports.TokenRepository
	Members   ports.MemberDirectory
	Meetings  ports.MeetingDirectory
	Overrides ports.OverrideRepository
	Proxies   ports.ProxyRepository
	Notifier  ports.Notifier
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Minter    ports.TokenMinter
	OrgSalt   string
	TokenTTL  time.Duration
	Logger    *slog.Logger
}

func (uc TokenUseCase) IssueTokens(ctx context.Context, cmd IssueTokensCommand) (IssueTokensResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" {
		return IssueTokensResult{}, domainerrors.ErrInvalidVoteInput
	}

	election, err := uc.Elections.GetElection(ctx, cmd.ElectionID)
	if err != nil {
		return IssueTokensResult{}, err
	}
	if !strings.EqualFold(strings.TrimSpace(election.Status), "open") {
		return IssueTokensResult{}, domainerrors.ErrElectionNotOpen
	}
	// Tokens exist for anonymous elections only; attributable elections
	// authenticate voters directly.
	if !election.Anonymous {
		return IssueTokensResult{}, domainerrors.ErrBallotModeMismatch
	}

	now := uc.now()
	resolver := eligibility.Resolver{
		Members:   uc.Members,
		Meetings:  uc.Meetings,
		Overrides: uc.Overrides,
		Proxies:   uc.Proxies,
		Logger:    uc.Logger,
	}

	// Tokens are per-election: the union of every position's voter set gets
	// exactly one token each.
	voters := make(map[string]struct{})
	for _, position := range election.Positions {
		resolved, err := resolver.Resolve(ctx, election, position.PositionID, now)
		if err != nil {
			return IssueTokensResult{}, err
		}
		for userID := range resolved.Voters {
			voters[userID] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(voters))
	for userID := range voters {
		ordered = append(ordered, userID)
	}
	sort.Strings(ordered)

	result := IssueTokensResult{}
	recipients := make([]string, 0, len(ordered))
	for _, userID := range ordered {
		voterHash := VoterHash(uc.OrgSalt, election.ElectionID, userID)
		if _, found, err := uc.Tokens.GetTokenByVoterHash(ctx, election.ElectionID, voterHash); err != nil {
			return result, err
		} else if found {
			result.Existing++
			continue
		}

		tokenValue, err := uc.Minter.NewToken()
		if err != nil {
			return result, err
		}
		tokenID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return result, err
		}
		token := entities.VotingToken{
			TokenID:    tokenID,
			Token:      tokenValue,
			ElectionID: election.ElectionID,
			VoterHash:  voterHash,
			ExpiresAt:  now.Add(uc.resolveTokenTTL()),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := uc.Tokens.SaveToken(ctx, token); err != nil {
			return result, err
		}
		result.Issued++
		recipients = append(recipients, userID)
	}

	if uc.Notifier != nil && len(recipients) > 0 {
		// Notification failures never block issuance.
		if err := uc.Notifier.Send(ctx, "ballot_ready", recipients, map[string]any{
			"election_id": election.ElectionID,
		}); err != nil {
			logger.Warn("ballot ready notification failed",
				"event", "ballot_token_notify_failed",
				"module", "governance/ballot-office",
				"layer", "application",
				"election_id", election.ElectionID,
				"error", err.Error(),
			)
		}
	}

	if uc.Outbox != nil && result.Issued > 0 {
		eventID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return result, err
		}
		envelope, err := newBallotEnvelope(eventID, "tokens.issued", election.ElectionID, now, map[string]any{
			"election_id":  election.ElectionID,
			"issued_count": result.Issued,
		})
		if err != nil {
			return result, err
		}
		if err := uc.Outbox.AppendOutbox(ctx, envelope); err != nil {
			return result, err
		}
	}

	logger.Info("voting tokens issued",
		"event", "ballot_tokens_issued",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", election.ElectionID,
		"issued", result.Issued,
		"existing", result.Existing,
	)
	return result, nil
}

func (uc TokenUseCase) resolveTokenTTL() time.Duration {
	if uc.TokenTTL <= 0 {
		return 14 * 24 * time.Hour
	}
	return uc.TokenTTL
}

func (uc TokenUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
