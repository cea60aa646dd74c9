package privacy

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrUnsupportedChain  = errors.New("chain is not supported by the router")
	ErrRouteUnavailable  = errors.New("no route connects source to target within the hop limit")
)

// MaxHops bounds how many edges (hops) a route may take, so a route passes
// through at most MaxHops-1 intermediate chains.
const MaxHops = 3

// Router finds paths through a weighted graph of chain-to-chain edges,
// scoring candidates by one of three cost functions: fastest (lowest
// cumulative delay), cheapest (lowest cumulative fee), or most-private
// (highest cumulative privacy bonus).
type Router struct {
	mu    sync.RWMutex
	edges map[types.ChainID][]types.RouteEdge
}

// NewRouter creates a router with no edges configured.
func NewRouter() *Router {
	return &Router{edges: make(map[types.ChainID][]types.RouteEdge)}
}

// AddEdge registers a directed hop from -> edge.To with the given cost
// parameters. Call twice (swapping from/to) to model a bidirectional link.
func (r *Router) AddEdge(from types.ChainID, edge types.RouteEdge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges[from] = append(r.edges[from], edge)
}

type routeState struct {
	path         []types.ChainID
	delay        uint64
	fee          uint64
	privacy      int
}

// FindRoute searches for the best path from source to target under mode,
// bounded to MaxHops edges.
func (r *Router) FindRoute(ctx context.Context, source, target types.ChainID, mode types.RouteMode) (*types.Route, error) {
	if !types.IsSupportedChain(source) || !types.IsSupportedChain(target) {
		return nil, ErrUnsupportedChain
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *routeState
	visited := map[types.ChainID]bool{source: true}

	var dfs func(current types.ChainID, state routeState)
	dfs = func(current types.ChainID, state routeState) {
		if current == target && len(state.path) > 0 {
			if best == nil || betterRoute(state, *best, mode) {
				s := state
				best = &s
			}
		}
		if len(state.path) >= MaxHops {
			return
		}
		for _, edge := range r.edges[current] {
			if visited[edge.To] {
				continue
			}
			visited[edge.To] = true
			next := routeState{
				path:    append(append([]types.ChainID{}, state.path...), edge.To),
				delay:   state.delay + edge.DelaySeconds,
				fee:     state.fee + uint64(edge.FeeBP),
				privacy: state.privacy + edge.PrivacyBonus,
			}
			dfs(edge.To, next)
			visited[edge.To] = false
		}
	}

	dfs(source, routeState{})

	if best == nil {
		return nil, ErrRouteUnavailable
	}

	return &types.Route{
		Hops:           best.path,
		EstimatedDelay: best.delay,
		EstimatedFee:   best.fee,
		PrivacyScore:   best.privacy,
	}, nil
}

func betterRoute(candidate, current routeState, mode types.RouteMode) bool {
	switch mode {
	case types.RouteFastest:
		return candidate.delay < current.delay
	case types.RouteCheapest:
		return candidate.fee < current.fee
	case types.RouteMostPrivate:
		return candidate.privacy > current.privacy
	default:
		return false
	}
}
