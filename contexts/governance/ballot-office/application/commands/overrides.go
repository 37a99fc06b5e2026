package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/governance/ballot-office/application"
	"ballotbox/contexts/governance/ballot-office/domain/entities"
	domainerrors "ballotbox/contexts/governance/ballot-office/domain/errors"
	"ballotbox/contexts/governance/ballot-office/ports"
)

// OverrideCommand adds (grant) or removes (deny) a voter relative to the
// position base rule. Officer-only.
type OverrideCommand struct {
	ElectionID string
	UserID     string
	Action     entities.OverrideAction
	Reason     string
	OfficerID  string
}

// RegisterProxyCommand authorizes ProxyHolderID to vote on behalf of
// DelegatorID. PositionScope is a position id or "*" for the whole ballot.
type RegisterProxyCommand struct {
	ElectionID    string
	DelegatorID   string
	ProxyHolderID string
	PositionScope string
	ExpiresAt     *time.Time
}

// OverrideUseCase owns officer eligibility actions: overrides and proxy
// registration.
type OverrideUseCase struct {
	Elections ports.ElectionDirectory
	Members   ports.MemberDirectory
	Overrides ports.OverrideRepository
	Proxies   ports.ProxyRepository
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc OverrideUseCase) ApplyOverride(ctx context.Context, cmd OverrideCommand) (entities.VoterOverride, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" || strings.TrimSpace(cmd.UserID) == "" {
		return entities.VoterOverride{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.Action != entities.OverrideGrant && cmd.Action != entities.OverrideDeny {
		return entities.VoterOverride{}, domainerrors.ErrInvalidVoteInput
	}
	// Deny entries must carry a reason and granting officer for audit.
	if cmd.Action == entities.OverrideDeny &&
		(strings.TrimSpace(cmd.Reason) == "" || strings.TrimSpace(cmd.OfficerID) == "") {
		return entities.VoterOverride{}, domainerrors.ErrOverrideReasonMissing
	}

	election, err := uc.Elections.GetElection(ctx, cmd.ElectionID)
	if err != nil {
		return entities.VoterOverride{}, err
	}
	member, err := uc.Members.IsMember(ctx, election.OrgID, strings.TrimSpace(cmd.UserID))
	if err != nil {
		return entities.VoterOverride{}, err
	}
	if !member {
		return entities.VoterOverride{}, domainerrors.ErrUnknownOverrideTarget
	}

	overrideID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.VoterOverride{}, err
	}
	override := entities.VoterOverride{
		OverrideID: overrideID,
		ElectionID: election.ElectionID,
		UserID:     strings.TrimSpace(cmd.UserID),
		Action:     cmd.Action,
		Reason:     strings.TrimSpace(cmd.Reason),
		GrantedBy:  strings.TrimSpace(cmd.OfficerID),
		CreatedAt:  uc.now(),
	}
	if err := uc.Overrides.SaveOverride(ctx, override); err != nil {
		return entities.VoterOverride{}, err
	}

	logger.Info("voter override applied",
		"event", "ballot_override_applied",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", election.ElectionID,
		"override_id", override.OverrideID,
		"action", string(override.Action),
		"officer_id", override.GrantedBy,
	)
	return override, nil
}

func (uc OverrideUseCase) RegisterProxy(ctx context.Context, cmd RegisterProxyCommand) (entities.ProxyAuthorization, error) {
	logger := application.ResolveLogger(uc.Logger)
	if strings.TrimSpace(cmd.ElectionID) == "" ||
		strings.TrimSpace(cmd.DelegatorID) == "" ||
		strings.TrimSpace(cmd.ProxyHolderID) == "" {
		return entities.ProxyAuthorization{}, domainerrors.ErrInvalidVoteInput
	}
	if strings.EqualFold(strings.TrimSpace(cmd.DelegatorID), strings.TrimSpace(cmd.ProxyHolderID)) {
		return entities.ProxyAuthorization{}, domainerrors.ErrProxySelfDelegation
	}

	election, err := uc.Elections.GetElection(ctx, cmd.ElectionID)
	if err != nil {
		return entities.ProxyAuthorization{}, err
	}
	for _, userID := range []string{cmd.DelegatorID, cmd.ProxyHolderID} {
		member, err := uc.Members.IsMember(ctx, election.OrgID, strings.TrimSpace(userID))
		if err != nil {
			return entities.ProxyAuthorization{}, err
		}
		if !member {
			return entities.ProxyAuthorization{}, domainerrors.ErrUnknownOverrideTarget
		}
	}

	scope := strings.TrimSpace(cmd.PositionScope)
	if scope == "" {
		scope = entities.ProxyScopeAll
	}
	if scope != entities.ProxyScopeAll {
		if _, ok := findPosition(election, scope); !ok {
			return entities.ProxyAuthorization{}, domainerrors.ErrPositionNotFound
		}
	}

	authorizationID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ProxyAuthorization{}, err
	}
	authorization := entities.ProxyAuthorization{
		AuthorizationID: authorizationID,
		ElectionID:      election.ElectionID,
		DelegatorID:     strings.TrimSpace(cmd.DelegatorID),
		ProxyHolderID:   strings.TrimSpace(cmd.ProxyHolderID),
		PositionScope:   scope,
		ExpiresAt:       cmd.ExpiresAt,
		CreatedAt:       uc.now(),
	}
	if err := uc.Proxies.SaveAuthorization(ctx, authorization); err != nil {
		return entities.ProxyAuthorization{}, err
	}

	logger.Info("proxy authorization registered",
		"event", "ballot_proxy_registered",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", election.ElectionID,
		"authorization_id", authorization.AuthorizationID,
		"position_scope", authorization.PositionScope,
	)
	return authorization, nil
}

func (uc OverrideUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
