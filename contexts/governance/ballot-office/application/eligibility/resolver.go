package eligibility

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

// Eligibility rules understood by the resolver. Role rules use the
// "role:<name>" form.
const (
	RuleAllActiveMembers = "all_active_members"
	RuleMeetingAttendees = "meeting_attendees"
	rolePrefix           = "role:"
)

// Result is the resolved voter set for one (election, position) pair plus the
// proxy capacity map. Proxy capacity is advisory at resolution time; the vote
// recorder enforces delegator-slot consumption when a proxy is exercised.
type Result struct {
	// Voters is the set of user ids allowed to vote directly.
	Voters map[string]struct{}
	// ProxyFor maps a proxy holder's user id to the usable authorizations
	// whose delegator is in Voters.
	ProxyFor map[string][]entities.ProxyAuthorization
}

func (r Result) Eligible(userID string) bool {
	_, ok := r.Voters[strings.TrimSpace(userID)]
	return ok
}

// Resolver computes per-position voter sets from the position's base rule,
// meeting attendance, officer overrides and proxy authorizations.
type Resolver struct {
	Members   ports.MemberDirectory
	Meetings  ports.MeetingDirectory
	Overrides ports.OverrideRepository
	Proxies   ports.ProxyRepository
	Logger    *slog.Logger
}

func (r Resolver) Resolve(
	ctx context.Context,
	election ports.ElectionProjection,
	positionID string,
	now time.Time,
) (Result, error) {
	logger := application.ResolveLogger(r.Logger)

	var position *ports.PositionProjection
	for i := range election.Positions {
		if election.Positions[i].PositionID == strings.TrimSpace(positionID) {
			position = &election.Positions[i]
			break
		}
	}
	if position == nil {
		return Result{}, domainerrors.ErrPositionNotFound
	}

	base, err := r.resolveBaseRule(ctx, election, *position)
	if err != nil {
		return Result{}, err
	}

	// A meeting-linked election admits only present attendees, regardless of
	// the base rule, unless a grant override waives attendance below.
	if strings.TrimSpace(election.MeetingID) != "" &&
		position.EligibilityRule != RuleMeetingAttendees {
		present, err := r.presentAttendees(ctx, election.MeetingID)
		if err != nil {
			return Result{}, err
		}
		for userID := range base {
			if _, ok := present[userID]; !ok {
				delete(base, userID)
			}
		}
	}

	overrides, err := r.Overrides.ListOverrides(ctx, election.ElectionID)
	if err != nil {
		return Result{}, err
	}
	for _, override := range overrides {
		target := strings.TrimSpace(override.UserID)
		member, err := r.Members.IsMember(ctx, election.OrgID, target)
		if err != nil {
			return Result{}, err
		}
		if !member {
			logger.Warn("eligibility override targets non-member",
				"event", "ballot_eligibility_override_unknown_target",
				"module", "governance/ballot-office",
				"layer", "application",
				"election_id", election.ElectionID,
				"override_id", override.OverrideID,
			)
			return Result{}, domainerrors.ErrUnknownOverrideTarget
		}
		switch override.Action {
		case entities.OverrideGrant:
			base[target] = struct{}{}
		case entities.OverrideDeny:
			delete(base, target)
		}
	}

	proxyFor := make(map[string][]entities.ProxyAuthorization)
	authorizations, err := r.Proxies.ListAuthorizationsByElection(ctx, election.ElectionID)
	if err != nil {
		return Result{}, err
	}
	for _, authorization := range authorizations {
		if !authorization.Usable(now) || !authorization.CoversPosition(position.PositionID) {
			continue
		}
		if _, ok := base[authorization.DelegatorID]; !ok {
			continue
		}
		holder := strings.TrimSpace(authorization.ProxyHolderID)
		proxyFor[holder] = append(proxyFor[holder], authorization)
	}

	logger.Debug("eligibility resolved",
		"event", "ballot_eligibility_resolved",
		"module", "governance/ballot-office",
		"layer", "application",
		"election_id", election.ElectionID,
		"position_id", position.PositionID,
		"voter_count", len(base),
		"proxy_holder_count", len(proxyFor),
	)
	return Result{Voters: base, ProxyFor: proxyFor}, nil
}

func (r Resolver) resolveBaseRule(
	ctx context.Context,
	election ports.ElectionProjection,
	position ports.PositionProjection,
) (map[string]struct{}, error) {
	rule := strings.TrimSpace(position.EligibilityRule)
	switch {
	case rule == RuleAllActiveMembers:
		members, err := r.Members.ListActiveMembers(ctx, election.OrgID)
		if err != nil {
			return nil, err
		}
		return toSet(members), nil

	case strings.HasPrefix(rule, rolePrefix):
		role := strings.TrimSpace(strings.TrimPrefix(rule, rolePrefix))
		if role == "" {
			return nil, domainerrors.ErrUnresolvableRule
		}
		members, err := r.Members.ListActiveMembers(ctx, election.OrgID)
		if err != nil {
			return nil, err
		}
		voters := make(map[string]struct{})
		for _, userID := range members {
			roles, err := r.Members.ResolveRoles(ctx, userID)
			if err != nil {
				return nil, err
			}
			for _, held := range roles {
				if strings.EqualFold(held, role) {
					voters[userID] = struct{}{}
					break
				}
			}
		}
		return voters, nil

	case rule == RuleMeetingAttendees:
		if strings.TrimSpace(election.MeetingID) == "" {
			return nil, domainerrors.ErrUnresolvableRule
		}
		return r.presentAttendees(ctx, election.MeetingID)

	default:
		return nil, domainerrors.ErrUnresolvableRule
	}
}

func (r Resolver) presentAttendees(ctx context.Context, meetingID string) (map[string]struct{}, error) {
	attendees, err := r.Meetings.GetAttendees(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(attendees))
	for _, attendee := range attendees {
		if attendee.Present {
			present[strings.TrimSpace(attendee.UserID)] = struct{}{}
		}
	}
	return present, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			set[value] = struct{}{}
		}
	}
	return set
}
