package queries

import (
	"context"
	"sort"
	"strings"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	domainerrors "ballotbox/contexts/governance/election-engine/domain/errors"
	"ballotbox/contexts/governance/election-engine/ports"
)

// maxChainDepth bounds runoff chain traversal against malformed parent
// pointers.
const maxChainDepth = 64

// ElectionQueryUseCase serves the read side: detail, committed results,
// rollback history and the runoff chain.
type ElectionQueryUseCase struct {
	Elections ports.ElectionRepository
}

func (uc ElectionQueryUseCase) Detail(ctx context.Context, electionID string) (entities.Election, error) {
	return uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
}

func (uc ElectionQueryUseCase) List(ctx context.Context, orgID string) ([]entities.Election, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	return uc.Elections.ListElectionsByOrg(ctx, strings.TrimSpace(orgID))
}

// Results returns committed results only. Before finalize the tally is
// withheld entirely to prevent strategic late voting.
func (uc ElectionQueryUseCase) Results(ctx context.Context, electionID string) ([]entities.PositionResult, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}
	if election.Status != entities.StatusFinalized {
		return nil, domainerrors.ErrResultsNotAvailable
	}
	results, found, err := uc.Elections.GetResults(ctx, election.ElectionID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.ErrResultsNotAvailable
	}
	return results, nil
}

func (uc ElectionQueryUseCase) RollbackHistory(ctx context.Context, electionID string) ([]entities.RollbackRecord, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}
	return election.RollbackHistory, nil
}

// RunoffChain returns the full parent-to-leaf chain containing the given
// election, root first, cancelled children included.
func (uc ElectionQueryUseCase) RunoffChain(ctx context.Context, electionID string) ([]entities.Election, error) {
	election, err := uc.Elections.GetElection(ctx, strings.TrimSpace(electionID))
	if err != nil {
		return nil, err
	}

	root := election
	for depth := 0; root.IsRunoff && root.ParentElectionID != "" && depth < maxChainDepth; depth++ {
		parent, err := uc.Elections.GetElection(ctx, root.ParentElectionID)
		if err != nil {
			return nil, err
		}
		root = parent
	}

	chain := make([]entities.Election, 0, 4)
	queue := []entities.Election{root}
	for len(queue) > 0 && len(chain) < maxChainDepth {
		current := queue[0]
		queue = queue[1:]
		chain = append(chain, current)

		children, err := uc.Elections.ListChildElections(ctx, current.ElectionID)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].CreatedAt.Before(children[j].CreatedAt)
		})
		queue = append(queue, children...)
	}
	return chain, nil
}
