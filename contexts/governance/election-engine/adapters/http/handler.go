package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ballotbox/contexts/governance/election-engine/application/commands"
	"ballotbox/contexts/governance/election-engine/application/queries"
	"ballotbox/contexts/governance/election-engine/domain/entities"
	httptransport "ballotbox/contexts/governance/election-engine/transport/http"
)

type Handler struct {
	Elections commands.ElectionUseCase
	Queries   queries.ElectionQueryUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateElectionHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateElectionRequest,
) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.CreateElection(ctx, commands.CreateElectionCommand{
		OrgID:             req.OrgID,
		Title:             req.Title,
		Description:       req.Description,
		Anonymous:         req.Anonymous,
		MeetingID:         req.MeetingID,
		VotingMethod:      req.VotingMethod,
		VictoryCondition:  req.VictoryCondition,
		VictoryThreshold:  req.VictoryThreshold,
		VictoryPercentage: req.VictoryPercentage,
		EnableRunoffs:     req.EnableRunoffs,
		RunoffType:        req.RunoffType,
		MaxRunoffRounds:   req.MaxRunoffRounds,
		QuorumType:        req.QuorumType,
		QuorumThreshold:   req.QuorumThreshold,
		BallotItems:       mapBallotItemInputs(req.BallotItems),
		CreatedBy:         userID,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) UpdateElectionHandler(
	ctx context.Context,
	electionID string,
	req httptransport.UpdateElectionRequest,
) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.UpdateElection(ctx, commands.UpdateElectionCommand{
		ElectionID:        electionID,
		Title:             req.Title,
		Description:       req.Description,
		MeetingID:         req.MeetingID,
		VictoryThreshold:  req.VictoryThreshold,
		VictoryPercentage: req.VictoryPercentage,
		QuorumType:        req.QuorumType,
		QuorumThreshold:   req.QuorumThreshold,
		BallotItems:       mapBallotItemInputs(req.BallotItems),
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) OpenElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.OpenElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) CloseElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.CloseElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) CancelElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.CancelElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) FinalizeElectionHandler(
	ctx context.Context,
	electionID string,
	officerID string,
	req httptransport.FinalizeElectionRequest,
) (httptransport.FinalizeElectionResponse, error) {
	result, err := h.Elections.FinalizeElection(ctx, commands.FinalizeElectionCommand{
		ElectionID:     electionID,
		OverrideQuorum: req.OverrideQuorum,
		Justification:  req.Justification,
		OfficerID:      officerID,
	})
	if err != nil {
		return httptransport.FinalizeElectionResponse{}, err
	}
	return httptransport.FinalizeElectionResponse{
		ElectionID:       result.Election.ElectionID,
		Status:           string(result.Election.Status),
		Results:          mapResults(result.Results),
		RunoffElectionID: result.RunoffElectionID,
		QuorumRequired:   result.QuorumRequired,
		QuorumPresent:    result.QuorumPresent,
		QuorumOverridden: result.QuorumOverridden,
	}, nil
}

func (h Handler) RollbackElectionHandler(
	ctx context.Context,
	electionID string,
	officerID string,
	req httptransport.RollbackRequest,
) (httptransport.ElectionResponse, error) {
	election, err := h.Elections.Rollback(ctx, commands.RollbackCommand{
		ElectionID:  electionID,
		TargetState: req.TargetState,
		Reason:      req.Reason,
		Actor:       officerID,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) ElectionDetailHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	election, err := h.Queries.Detail(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election), nil
}

func (h Handler) ElectionListHandler(ctx context.Context, orgID string) (httptransport.ElectionListResponse, error) {
	elections, err := h.Queries.List(ctx, orgID)
	if err != nil {
		return httptransport.ElectionListResponse{}, err
	}
	resp := httptransport.ElectionListResponse{
		OrgID: strings.TrimSpace(orgID),
		Items: make([]httptransport.ElectionResponse, 0, len(elections)),
	}
	for _, election := range elections {
		resp.Items = append(resp.Items, mapElection(election))
	}
	return resp, nil
}

func (h Handler) ResultsHandler(ctx context.Context, electionID string) (httptransport.ResultsResponse, error) {
	results, err := h.Queries.Results(ctx, electionID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	return httptransport.ResultsResponse{
		ElectionID: strings.TrimSpace(electionID),
		Results:    mapResults(results),
	}, nil
}

func (h Handler) RollbackHistoryHandler(
	ctx context.Context,
	electionID string,
) (httptransport.RollbackHistoryResponse, error) {
	records, err := h.Queries.RollbackHistory(ctx, electionID)
	if err != nil {
		return httptransport.RollbackHistoryResponse{}, err
	}
	resp := httptransport.RollbackHistoryResponse{
		ElectionID: strings.TrimSpace(electionID),
		Items:      make([]httptransport.RollbackRecordItem, 0, len(records)),
	}
	for _, record := range records {
		resp.Items = append(resp.Items, httptransport.RollbackRecordItem{
			RecordID:   record.RecordID,
			FromState:  string(record.FromState),
			ToState:    string(record.ToState),
			Reason:     record.Reason,
			Actor:      record.Actor,
			OccurredAt: record.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return resp, nil
}

func (h Handler) RunoffChainHandler(ctx context.Context, electionID string) (httptransport.RunoffChainResponse, error) {
	chain, err := h.Queries.RunoffChain(ctx, electionID)
	if err != nil {
		return httptransport.RunoffChainResponse{}, err
	}
	resp := httptransport.RunoffChainResponse{
		ElectionID: strings.TrimSpace(electionID),
		Chain:      make([]httptransport.ElectionResponse, 0, len(chain)),
	}
	for _, election := range chain {
		resp.Chain = append(resp.Chain, mapElection(election))
	}
	return resp, nil
}

func mapBallotItemInputs(inputs []httptransport.BallotItemInput) []commands.BallotItemInput {
	items := make([]commands.BallotItemInput, 0, len(inputs))
	for _, input := range inputs {
		item := commands.BallotItemInput{
			Title:           input.Title,
			EligibilityRule: input.EligibilityRule,
		}
		for _, candidate := range input.Candidates {
			item.Candidates = append(item.Candidates, commands.CandidateInput{
				Name:      candidate.Name,
				Statement: candidate.Statement,
				Status:    candidate.Status,
				WriteIn:   candidate.WriteIn,
			})
		}
		items = append(items, item)
	}
	return items
}

func mapElection(election entities.Election) httptransport.ElectionResponse {
	resp := httptransport.ElectionResponse{
		ElectionID:            election.ElectionID,
		OrgID:                 election.OrgID,
		Title:                 election.Title,
		Description:           election.Description,
		Status:                string(election.Status),
		Anonymous:             election.Anonymous,
		MeetingID:             election.MeetingID,
		VotingMethod:          string(election.VotingMethod),
		VictoryCondition:      string(election.VictoryCondition),
		VictoryThreshold:      election.VictoryThreshold,
		VictoryPercentage:     election.VictoryPercentage,
		EnableRunoffs:         election.EnableRunoffs,
		RunoffType:            string(election.RunoffType),
		MaxRunoffRounds:       election.MaxRunoffRounds,
		IsRunoff:              election.IsRunoff,
		ParentElectionID:      election.ParentElectionID,
		RunoffRound:           election.RunoffRound,
		CancelledByRollbackID: election.CancelledByRollbackID,
		QuorumType:            string(election.QuorumType),
		QuorumThreshold:       election.QuorumThreshold,
		CreatedBy:             election.CreatedBy,
		CreatedAt:             election.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:             election.UpdatedAt.UTC().Format(time.RFC3339),
	}
	resp.BallotItems = make([]httptransport.BallotItemDetail, 0, len(election.BallotItems))
	for _, item := range election.BallotItems {
		detail := httptransport.BallotItemDetail{
			PositionID:      item.PositionID,
			Title:           item.Title,
			EligibilityRule: item.EligibilityRule,
			Ranked:          item.Ranked,
			DisplayOrder:    item.DisplayOrder,
		}
		for _, candidate := range item.Candidates {
			detail.Candidates = append(detail.Candidates, httptransport.CandidateItem{
				CandidateID: candidate.CandidateID,
				Name:        candidate.Name,
				Statement:   candidate.Statement,
				Status:      string(candidate.Status),
				WriteIn:     candidate.WriteIn,
			})
		}
		resp.BallotItems = append(resp.BallotItems, detail)
	}
	return resp
}

func mapResults(results []entities.PositionResult) []httptransport.PositionResultItem {
	items := make([]httptransport.PositionResultItem, 0, len(results))
	for _, result := range results {
		item := httptransport.PositionResultItem{
			PositionID:       result.PositionID,
			Method:           string(result.Method),
			Condition:        string(result.Condition),
			WinnerID:         result.WinnerID,
			Tied:             result.Tied,
			Vacant:           result.Vacant,
			RunoffElectionID: result.RunoffElectionID,
			BallotsCounted:   result.BallotsCounted,
			ProxyBallots:     result.ProxyBallots,
			Totals:           mapTotals(result.Totals),
			DecidedAt:        result.DecidedAt.UTC().Format(time.RFC3339),
		}
		for _, round := range result.Rounds {
			item.Rounds = append(item.Rounds, httptransport.TallyRoundItem{
				Round:      round.Round,
				Counts:     mapTotals(round.Counts),
				Eliminated: round.Eliminated,
			})
		}
		items = append(items, item)
	}
	return items
}

func mapTotals(totals []entities.CandidateTotal) []httptransport.CandidateTotalItem {
	items := make([]httptransport.CandidateTotalItem, 0, len(totals))
	for _, total := range totals {
		items = append(items, httptransport.CandidateTotalItem{
			CandidateID: total.CandidateID,
			Name:        total.Name,
			Votes:       total.Votes,
			Share:       total.Share,
		})
	}
	return items
}
