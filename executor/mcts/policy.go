package mcts

import (
	"math/rand"

	"github.com/brensch/othello0/game"
)

// Visit is the search statistic of one root edge.
type Visit struct {
	Move   game.Move
	Visits int
}

// Policy is the visit distribution over the root edges, in edge order.
type Policy []Visit

// Total is the sum of all edge visits.
func (p Policy) Total() int {
	total := 0
	for _, v := range p {
		total += v.Visits
	}
	return total
}

// Target lays the policy out on the canonical move index, normalized by
// the total visit count. It is all zeros for an empty or unvisited policy.
func (p Policy) Target() [game.PolicySize]float32 {
	var out [game.PolicySize]float32
	total := p.Total()
	if total == 0 {
		return out
	}
	for _, v := range p {
		out[v.Move.Index()] = float32(v.Visits) / float32(total)
	}
	return out
}

// rootPolicy collects the visit counts of the root edges.
func rootPolicy(a *Arena, root int32) Policy {
	edges := a.At(root).Edges
	policy := make(Policy, len(edges))
	for i, e := range edges {
		policy[i] = Visit{Move: e.Move}
		if e.Child != Unexpanded {
			policy[i].Visits = a.At(e.Child).Visits
		}
	}
	return policy
}

// sampleVisits samples an index with probability proportional to its visit
// count. Falls back to the most visited index when nothing was visited.
func sampleVisits(rng *rand.Rand, policy Policy) int {
	total := policy.Total()
	if total == 0 {
		return argmaxVisits(policy)
	}
	r := rng.Intn(total)
	cumulative := 0
	for i, v := range policy {
		cumulative += v.Visits
		if r < cumulative {
			return i
		}
	}
	return len(policy) - 1
}

// argmaxVisits returns the first index with the highest visit count.
func argmaxVisits(policy Policy) int {
	bestIdx := 0
	bestVal := 0
	for i, v := range policy {
		if v.Visits > bestVal {
			bestVal = v.Visits
			bestIdx = i
		}
	}
	return bestIdx
}
