package queries

import (
	"context"
	"strings"
	"time"

	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"
)

// BallotCandidate is one selectable option on the voter-facing ballot.
type BallotCandidate struct {
	CandidateID string
	Name        string
	WriteIn     bool
}

// BallotPosition is one ballot item with its remaining/voted state for the
// presenting token.
type BallotPosition struct {
	PositionID string
	Title      string
	Ranked     bool
	Voted      bool
	Candidates []BallotCandidate
}

// BallotView is everything an anonymous voter sees when presenting a token.
type BallotView struct {
	ElectionID string
	ExpiresAt  time.Time
	Completed  bool
	Positions  []BallotPosition
}

// BallotUseCase serves voter-facing reads keyed by the bearer token.
type BallotUseCase struct {
	Elections ports.ElectionDirectory
	Tokens    ports.TokenRepository
	Clock     ports.Clock
}

func (uc BallotUseCase) View(ctx context.Context, tokenValue string) (BallotView, error) {
	token, err := uc.Tokens.GetTokenByValue(ctx, strings.TrimSpace(tokenValue))
	if err != nil {
		return BallotView{}, err
	}
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	if token.Expired(now) {
		return BallotView{}, domainerrors.ErrTokenExpired
	}

	election, err := uc.Elections.GetElection(ctx, token.ElectionID)
	if err != nil {
		return BallotView{}, err
	}

	view := BallotView{
		ElectionID: election.ElectionID,
		ExpiresAt:  token.ExpiresAt,
		Completed:  token.Used,
	}
	for _, position := range election.Positions {
		item := BallotPosition{
			PositionID: position.PositionID,
			Title:      position.Title,
			Ranked:     position.Ranked,
			Voted:      token.HasVotedPosition(position.PositionID),
		}
		for _, candidate := range position.Candidates {
			if !candidate.Accepted && !candidate.WriteIn {
				continue
			}
			item.Candidates = append(item.Candidates, BallotCandidate{
				CandidateID: candidate.CandidateID,
				Name:        candidate.Name,
				WriteIn:     candidate.WriteIn,
			})
		}
		view.Positions = append(view.Positions, item)
	}
	return view, nil
}

// AuditUseCase serves the officer-facing vote audit trail.
type AuditUseCase struct {
	Audit ports.AuditLog
}

func (uc AuditUseCase) Trail(ctx context.Context, electionID string) ([]entities.AuditEntry, error) {
	if strings.TrimSpace(electionID) == "" {
		return nil, domainerrors.ErrInvalidVoteInput
	}
	return uc.Audit.ListByElection(ctx, strings.TrimSpace(electionID))
}
