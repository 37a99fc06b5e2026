package tally

import (
	"sort"
	"time"

	"ballotbox/contexts/governance/election-engine/domain/entities"
	"ballotbox/contexts/governance/election-engine/ports"
)

// Input groups everything a single-position tally needs. Votes must already
// be filtered to the position and to active rows only.
type Input struct {
	Item       entities.BallotItem
	Method     entities.VotingMethod
	Condition  entities.VictoryCondition
	Threshold  int
	Percentage float64
	Votes      []ports.BallotVote
}

// Run evaluates one position. It is a pure function of its input: repeated
// runs over the same vote set always produce the same totals, elimination
// order and winner.
func Run(in Input, decidedAt time.Time) entities.PositionResult {
	result := entities.PositionResult{
		PositionID: in.Item.PositionID,
		Method:     in.Method,
		Condition:  in.Condition,
		DecidedAt:  decidedAt,
	}

	order, names := ballotOrder(in.Item)
	if in.Method == entities.MethodRankedChoice {
		runRanked(&result, order, names, in.Votes)
		return result
	}
	runSingleChoice(&result, in, order, names)
	return result
}

// ballotOrder returns the on-ballot candidate ids in display order. The order
// is the deterministic tie-break everywhere a tally has to choose between
// equal counts.
func ballotOrder(item entities.BallotItem) ([]string, map[string]string) {
	order := make([]string, 0, len(item.Candidates))
	names := make(map[string]string, len(item.Candidates))
	for _, candidate := range item.Candidates {
		if !candidate.OnBallot() {
			continue
		}
		order = append(order, candidate.CandidateID)
		names[candidate.CandidateID] = candidate.Name
	}
	return order, names
}

func runSingleChoice(result *entities.PositionResult, in Input, order []string, names map[string]string) {
	counts := make(map[string]int, len(order))
	ballots := 0
	for _, vote := range in.Votes {
		if vote.Rank != 0 {
			continue
		}
		if _, ok := names[vote.CandidateID]; !ok {
			continue
		}
		counts[vote.CandidateID]++
		ballots++
		if vote.IsProxy {
			result.ProxyBallots++
		}
	}
	result.BallotsCounted = ballots
	result.Totals = orderedTotals(order, names, counts, ballots)

	if ballots == 0 || len(result.Totals) == 0 {
		return
	}

	top := result.Totals[0]
	tiedAtTop := len(result.Totals) > 1 && result.Totals[1].Votes == top.Votes

	switch in.Condition {
	case entities.ConditionThresholdCount:
		if top.Votes < in.Threshold {
			return
		}
	case entities.ConditionThresholdPercentage:
		if top.Share*100 < in.Percentage {
			return
		}
	}

	if tiedAtTop {
		result.Tied = true
		return
	}
	result.WinnerID = top.CandidateID
}

// runRanked is instant-runoff: eliminate the fewest-first-preference
// candidate, redistribute each of their ballots to its next surviving
// preference, and stop at a strict majority of non-exhausted ballots or a
// sole survivor. Elimination ties break toward the candidate listed later on
// the ballot.
func runRanked(result *entities.PositionResult, order []string, names map[string]string, votes []ports.BallotVote) {
	ballots, proxyBallots := rankedBallots(order, votes)
	result.BallotsCounted = len(ballots)
	result.ProxyBallots = proxyBallots

	remaining := make(map[string]struct{}, len(order))
	for _, candidateID := range order {
		remaining[candidateID] = struct{}{}
	}
	eliminated := make([]string, 0, len(order))

	for round := 1; len(remaining) > 0; round++ {
		counts := make(map[string]int, len(remaining))
		denominator := 0
		for _, preferences := range ballots {
			for _, candidateID := range preferences {
				if _, alive := remaining[candidateID]; alive {
					counts[candidateID]++
					denominator++
					break
				}
			}
		}

		roundTotals := orderedTotalsFiltered(order, names, counts, denominator, remaining)
		roundEntry := entities.TallyRound{Round: round, Counts: roundTotals}

		if denominator == 0 {
			result.Rounds = append(result.Rounds, roundEntry)
			break
		}
		if top := roundTotals[0]; top.Votes*2 > denominator || len(remaining) == 1 {
			result.Rounds = append(result.Rounds, roundEntry)
			result.WinnerID = top.CandidateID
			break
		}

		loser := eliminationPick(order, remaining, counts)
		roundEntry.Eliminated = loser
		result.Rounds = append(result.Rounds, roundEntry)
		delete(remaining, loser)
		eliminated = append(eliminated, loser)
	}

	result.Totals = finalRankedStanding(result.Rounds, order, names, eliminated)
}

// rankedBallots groups one ordered preference list per voter key. Rank order
// comes from the stored rank values; ballots referencing off-ballot
// candidates skip those entries.
func rankedBallots(order []string, votes []ports.BallotVote) ([][]string, int) {
	onBallot := make(map[string]struct{}, len(order))
	for _, candidateID := range order {
		onBallot[candidateID] = struct{}{}
	}

	type rankedEntry struct {
		candidateID string
		rank        int
	}
	byVoter := make(map[string][]rankedEntry)
	voterOrder := make([]string, 0)
	proxyVoters := make(map[string]struct{})
	for _, vote := range votes {
		if vote.Rank <= 0 {
			continue
		}
		if _, ok := onBallot[vote.CandidateID]; !ok {
			continue
		}
		if _, seen := byVoter[vote.VoterKey]; !seen {
			voterOrder = append(voterOrder, vote.VoterKey)
		}
		byVoter[vote.VoterKey] = append(byVoter[vote.VoterKey], rankedEntry{vote.CandidateID, vote.Rank})
		if vote.IsProxy {
			proxyVoters[vote.VoterKey] = struct{}{}
		}
	}
	sort.Strings(voterOrder)

	ballots := make([][]string, 0, len(byVoter))
	for _, voterKey := range voterOrder {
		entries := byVoter[voterKey]
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].rank < entries[j].rank })
		preferences := make([]string, 0, len(entries))
		for _, entry := range entries {
			preferences = append(preferences, entry.candidateID)
		}
		ballots = append(ballots, preferences)
	}
	return ballots, len(proxyVoters)
}

// eliminationPick chooses the candidate to drop: fewest current votes, ties
// broken toward the later ballot position.
func eliminationPick(order []string, remaining map[string]struct{}, counts map[string]int) string {
	loser := ""
	loserVotes := 0
	for _, candidateID := range order {
		if _, alive := remaining[candidateID]; !alive {
			continue
		}
		if loser == "" || counts[candidateID] <= loserVotes {
			loser = candidateID
			loserVotes = counts[candidateID]
		}
	}
	return loser
}

func orderedTotals(order []string, names map[string]string, counts map[string]int, ballots int) []entities.CandidateTotal {
	totals := make([]entities.CandidateTotal, 0, len(order))
	for _, candidateID := range order {
		total := entities.CandidateTotal{
			CandidateID: candidateID,
			Name:        names[candidateID],
			Votes:       counts[candidateID],
		}
		if ballots > 0 {
			total.Share = float64(total.Votes) / float64(ballots)
		}
		totals = append(totals, total)
	}
	sort.SliceStable(totals, func(i, j int) bool { return totals[i].Votes > totals[j].Votes })
	return totals
}

func orderedTotalsFiltered(
	order []string,
	names map[string]string,
	counts map[string]int,
	ballots int,
	remaining map[string]struct{},
) []entities.CandidateTotal {
	aliveOrder := make([]string, 0, len(remaining))
	for _, candidateID := range order {
		if _, alive := remaining[candidateID]; alive {
			aliveOrder = append(aliveOrder, candidateID)
		}
	}
	return orderedTotals(aliveOrder, names, counts, ballots)
}

// finalRankedStanding orders survivors by their last-round count, then the
// eliminated candidates in reverse elimination order.
func finalRankedStanding(
	rounds []entities.TallyRound,
	order []string,
	names map[string]string,
	eliminated []string,
) []entities.CandidateTotal {
	if len(rounds) == 0 {
		return orderedTotals(order, names, nil, 0)
	}
	last := rounds[len(rounds)-1]
	standing := append([]entities.CandidateTotal(nil), last.Counts...)
	seen := make(map[string]struct{}, len(standing))
	for _, total := range standing {
		seen[total.CandidateID] = struct{}{}
	}
	for i := len(eliminated) - 1; i >= 0; i-- {
		candidateID := eliminated[i]
		if _, dup := seen[candidateID]; dup {
			continue
		}
		standing = append(standing, entities.CandidateTotal{
			CandidateID: candidateID,
			Name:        names[candidateID],
		})
	}
	return standing
}

// RunoffCandidates returns the candidate ids that advance when a position
// stays unresolved: top_two keeps exactly the two best by the stable final
// standing; ranked_elimination keeps every survivor.
func RunoffCandidates(runoffType entities.RunoffType, result entities.PositionResult) []string {
	switch runoffType {
	case entities.RunoffTopTwo:
		advancing := make([]string, 0, 2)
		for _, total := range result.Totals {
			advancing = append(advancing, total.CandidateID)
			if len(advancing) == 2 {
				break
			}
		}
		return advancing
	case entities.RunoffRankedElimination:
		dropped := make(map[string]struct{})
		for _, round := range result.Rounds {
			if round.Eliminated != "" {
				dropped[round.Eliminated] = struct{}{}
			}
		}
		advancing := make([]string, 0, len(result.Totals))
		for _, total := range result.Totals {
			if _, out := dropped[total.CandidateID]; out {
				continue
			}
			advancing = append(advancing, total.CandidateID)
		}
		return advancing
	default:
		return nil
	}
}
