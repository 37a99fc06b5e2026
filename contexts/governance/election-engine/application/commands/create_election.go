package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "ballotbox/contexts/governance/election-engine/application"
	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	"ballotbox/contexts/governance/election-engine/ports"
)

// Eligibility rules the resolver downstream understands. "role:<name>" is
// accepted with any non-empty role name.
const (
	ruleAllActiveMembers = "all_active_members"
	ruleMeetingAttendees = "meeting_attendees"
	rolePrefix           = "role:"
)

type CandidateInput struct {
	Name      string
	Statement string
	// Status defaults to accepted; a nomination import can carry pending
	// candidates, which block opening until resolved.
	Status  string
	WriteIn bool
}

type BallotItemInput struct {
	Title           string
	EligibilityRule string
	Candidates      []CandidateInput
}

type CreateElectionCommand struct {
	OrgID       string
	Title       string
	Description string
	Anonymous   bool
	MeetingID   string

	VotingMethod      string
	VictoryCondition  string
	VictoryThreshold  int
	VictoryPercentage float64

	EnableRunoffs   bool
	RunoffType      string
	MaxRunoffRounds int

	QuorumType      string
	QuorumThreshold float64

	BallotItems []BallotItemInput
	CreatedBy   string
}

// UpdateElectionCommand replaces the draft's configuration. Zero-value fields
// keep their current value except BallotItems, which replace wholesale when
// provided.
type UpdateElectionCommand struct {
	ElectionID        string
	Title             string
	Description       string
	MeetingID         string
	VictoryThreshold  int
	VictoryPercentage float64
	QuorumType        string
	QuorumThreshold   float64
	BallotItems       []BallotItemInput
}

// ElectionUseCase owns the election aggregate lifecycle: configuration,
// state transitions, finalize (quorum gate + tally + runoff spawn) and
// rollback.
type ElectionUseCase struct {
	Elections ports.ElectionRepository
	Ballots   ports.BallotReader
	Members   ports.MemberDirectory
	Meetings  ports.MeetingDirectory
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

func (uc ElectionUseCase) CreateElection(ctx context.Context, cmd CreateElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	now := uc.now()

	electionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Election{}, err
	}
	election := entities.Election{
		ElectionID:        electionID,
		OrgID:             strings.TrimSpace(cmd.OrgID),
		Title:             strings.TrimSpace(cmd.Title),
		Description:       strings.TrimSpace(cmd.Description),
		Status:            entities.StatusDraft,
		Anonymous:         cmd.Anonymous,
		MeetingID:         strings.TrimSpace(cmd.MeetingID),
		VotingMethod:      entities.VotingMethod(strings.TrimSpace(cmd.VotingMethod)),
		VictoryCondition:  entities.VictoryCondition(strings.TrimSpace(cmd.VictoryCondition)),
		VictoryThreshold:  cmd.VictoryThreshold,
		VictoryPercentage: cmd.VictoryPercentage,
		EnableRunoffs:     cmd.EnableRunoffs,
		RunoffType:        entities.RunoffType(strings.TrimSpace(cmd.RunoffType)),
		MaxRunoffRounds:   cmd.MaxRunoffRounds,
		QuorumType:        entities.QuorumType(strings.TrimSpace(cmd.QuorumType)),
		QuorumThreshold:   cmd.QuorumThreshold,
		CreatedBy:         strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	items, err := uc.buildBallotItems(ctx, cmd.BallotItems, election.VotingMethod, now)
	if err != nil {
		return entities.Election{}, err
	}
	election.BallotItems = items

	if err := validateConfig(election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election created",
		"event", "election_created",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
		"org_id", election.OrgID,
		"method", string(election.VotingMethod),
		"items", len(election.BallotItems),
	)
	return election, nil
}

func (uc ElectionUseCase) UpdateElection(ctx context.Context, cmd UpdateElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(cmd.ElectionID))
	if err != nil {
		return entities.Election{}, err
	}
	// Configuration is mutable in draft only; an open ballot never changes
	// under voters.
	if election.Status != entities.StatusDraft {
		return entities.Election{}, domainerrors.ErrInvalidTransition
	}

	now := uc.now()
	if strings.TrimSpace(cmd.Title) != "" {
		election.Title = strings.TrimSpace(cmd.Title)
	}
	if strings.TrimSpace(cmd.Description) != "" {
		election.Description = strings.TrimSpace(cmd.Description)
	}
	if strings.TrimSpace(cmd.MeetingID) != "" {
		election.MeetingID = strings.TrimSpace(cmd.MeetingID)
	}
	if cmd.VictoryThreshold > 0 {
		election.VictoryThreshold = cmd.VictoryThreshold
	}
	if cmd.VictoryPercentage > 0 {
		election.VictoryPercentage = cmd.VictoryPercentage
	}
	if strings.TrimSpace(cmd.QuorumType) != "" {
		election.QuorumType = entities.QuorumType(strings.TrimSpace(cmd.QuorumType))
	}
	if cmd.QuorumThreshold > 0 {
		election.QuorumThreshold = cmd.QuorumThreshold
	}
	if len(cmd.BallotItems) > 0 {
		items, err := uc.buildBallotItems(ctx, cmd.BallotItems, election.VotingMethod, now)
		if err != nil {
			return entities.Election{}, err
		}
		election.BallotItems = items
	}
	election.UpdatedAt = now

	if err := validateConfig(election); err != nil {
		return entities.Election{}, err
	}
	if err := uc.Elections.SaveElection(ctx, election); err != nil {
		return entities.Election{}, err
	}

	logger.Info("election updated",
		"event", "election_updated",
		"module", "governance/election-engine",
		"layer", "application",
		"election_id", election.ElectionID,
	)
	return election, nil
}

func (uc ElectionUseCase) buildBallotItems(
	ctx context.Context,
	inputs []BallotItemInput,
	method entities.VotingMethod,
	now time.Time,
) ([]entities.BallotItem, error) {
	items := make([]entities.BallotItem, 0, len(inputs))
	for order, input := range inputs {
		positionID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		item := entities.BallotItem{
			PositionID:      positionID,
			Title:           strings.TrimSpace(input.Title),
			EligibilityRule: strings.TrimSpace(input.EligibilityRule),
			Ranked:          method == entities.MethodRankedChoice,
			DisplayOrder:    order,
		}
		for _, candidateInput := range input.Candidates {
			candidateID, err := uc.IDGen.NewID(ctx)
			if err != nil {
				return nil, err
			}
			status := entities.CandidateStatus(strings.TrimSpace(candidateInput.Status))
			if status == "" {
				status = entities.CandidateAccepted
			}
			item.Candidates = append(item.Candidates, entities.Candidate{
				CandidateID: candidateID,
				Name:        strings.TrimSpace(candidateInput.Name),
				Statement:   strings.TrimSpace(candidateInput.Statement),
				Status:      status,
				WriteIn:     candidateInput.WriteIn,
				CreatedAt:   now,
			})
		}
		items = append(items, item)
	}
	return items, nil
}

// validateConfig is the ErrInvalidConfig gate: anything that fails here must
// be fixed before the election can open.
func validateConfig(election entities.Election) error {
	if election.OrgID == "" || election.Title == "" {
		return domainerrors.ErrInvalidInput
	}

	switch election.VotingMethod {
	case entities.MethodSimpleMajority, entities.MethodSupermajority:
	case entities.MethodRankedChoice:
		if election.VictoryCondition != entities.ConditionMostVotes {
			return domainerrors.ErrInvalidConfig
		}
	default:
		return domainerrors.ErrInvalidConfig
	}

	switch election.VictoryCondition {
	case entities.ConditionMostVotes:
	case entities.ConditionThresholdCount:
		if election.VictoryThreshold < 1 {
			return domainerrors.ErrInvalidConfig
		}
	case entities.ConditionThresholdPercentage:
		if election.VictoryPercentage <= 0 || election.VictoryPercentage > 100 {
			return domainerrors.ErrInvalidConfig
		}
	default:
		return domainerrors.ErrInvalidConfig
	}
	// Supermajority is a percentage bar by definition.
	if election.VotingMethod == entities.MethodSupermajority &&
		election.VictoryCondition != entities.ConditionThresholdPercentage {
		return domainerrors.ErrInvalidConfig
	}

	if election.EnableRunoffs {
		if election.RunoffType != entities.RunoffTopTwo && election.RunoffType != entities.RunoffRankedElimination {
			return domainerrors.ErrInvalidConfig
		}
		if election.MaxRunoffRounds < 1 {
			return domainerrors.ErrInvalidConfig
		}
	}

	switch election.QuorumType {
	case entities.QuorumNone:
	case entities.QuorumCount:
		if election.QuorumThreshold < 1 {
			return domainerrors.ErrInvalidConfig
		}
	case entities.QuorumPercentage:
		if election.QuorumThreshold <= 0 || election.QuorumThreshold > 100 {
			return domainerrors.ErrInvalidConfig
		}
	default:
		return domainerrors.ErrInvalidConfig
	}

	if len(election.BallotItems) == 0 {
		return domainerrors.ErrInvalidConfig
	}
	for _, item := range election.BallotItems {
		if item.Title == "" || len(item.Candidates) == 0 {
			return domainerrors.ErrInvalidConfig
		}
		if err := validateEligibilityRule(item.EligibilityRule, election.MeetingID); err != nil {
			return err
		}
	}
	return nil
}

func validateEligibilityRule(rule string, meetingID string) error {
	switch {
	case rule == ruleAllActiveMembers:
		return nil
	case rule == ruleMeetingAttendees:
		if meetingID == "" {
			return domainerrors.ErrInvalidConfig
		}
		return nil
	case strings.HasPrefix(rule, rolePrefix):
		if strings.TrimSpace(strings.TrimPrefix(rule, rolePrefix)) == "" {
			return domainerrors.ErrInvalidConfig
		}
		return nil
	default:
		return domainerrors.ErrInvalidConfig
	}
}

func (uc ElectionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
