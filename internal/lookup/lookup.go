// Package lookup implements the iterative FIND_NODE / FIND_VALUE
// procedure (C5): bounded-parallel waves of α=3 queries against a
// shrinking shortlist, terminating either on a found value or on
// convergence of the K closest candidates. It is grounded on the
// simplified iterative lookup in mod-clearnet's cmd/kad/main.go
// (FindNode/Get) — same shortlist/queried state machine — generalized
// to the spec's exact termination rule and run under real per-peer
// timeouts instead of an in-process simulation.
package lookup

import (
	"context"
	"sort"
	"sync"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/routing"
)

// Alpha is the Kademlia lookup parallelism parameter.
const Alpha = 3

// maxWaves bounds the loop as a defensive backstop; a well-behaved
// network converges in O(log N) waves long before this is reached.
const maxWaves = 64

// Peer is the subset of outbound RPCs an iterative lookup needs.
// node.Node satisfies this interface; tests can supply a fake.
type Peer interface {
	FindNodeAt(ctx context.Context, addr string, target digest.ID) ([]routing.PeerRecord, error)
	FindValueAt(ctx context.Context, addr string, key digest.ID) (value *string, peers []routing.PeerRecord, err error)
}

// sortByDistance orders recs ascending by XOR distance to target, with
// a raw-NodeID tiebreaker, matching Table.FindClosest's ordering.
func sortByDistance(recs []routing.PeerRecord, target digest.ID) {
	sort.Slice(recs, func(i, j int) bool {
		di := digest.XOR(recs[i].NodeID, target)
		dj := digest.XOR(recs[j].NodeID, target)
		if di != dj {
			return digest.Less(di, dj)
		}
		return digest.Less(recs[i].NodeID, recs[j].NodeID)
	})
}

// Run drives one iterative lookup for target, starting from seed (the
// local routing table's closest-K snapshot). If findValue is true, a
// discovered value short-circuits the whole lookup; otherwise it always
// runs to convergence and returns the closest K records known.
func Run(ctx context.Context, selfID digest.ID, seed []routing.PeerRecord, peer Peer, target digest.ID, findValue bool) (value *string, closest []routing.PeerRecord, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	shortlist := make(map[digest.ID]routing.PeerRecord)
	queried := make(map[digest.ID]bool)

	for _, p := range seed {
		if p.NodeID != selfID {
			shortlist[p.NodeID] = p
		}
	}

	var foundValue *string

	for wave := 0; wave < maxWaves; wave++ {
		mu.Lock()
		unqueried := make([]routing.PeerRecord, 0, len(shortlist))
		for id, p := range shortlist {
			if !queried[id] {
				unqueried = append(unqueried, p)
			}
		}
		sortByDistance(unqueried, target)
		if len(unqueried) > Alpha {
			unqueried = unqueried[:Alpha]
		}
		for _, p := range unqueried {
			queried[p.NodeID] = true
		}
		mu.Unlock()

		if len(unqueried) == 0 {
			break
		}

		var wg sync.WaitGroup
		for _, p := range unqueried {
			p := p
			wg.Add(1)
			go func() {
				defer wg.Done()

				if findValue {
					v, peers, callErr := peer.FindValueAt(ctx, p.Address, target)
					if callErr != nil {
						return // timeout/error: treated as an empty reply
					}
					if v != nil {
						mu.Lock()
						if foundValue == nil {
							foundValue = v
							cancel()
						}
						mu.Unlock()
						return
					}
					mergeShortlist(&mu, shortlist, selfID, peers)
					return
				}

				peers, callErr := peer.FindNodeAt(ctx, p.Address, target)
				if callErr != nil {
					return
				}
				mergeShortlist(&mu, shortlist, selfID, peers)
			}()
		}
		wg.Wait()

		mu.Lock()
		found := foundValue
		mu.Unlock()
		if found != nil {
			return found, nil, nil
		}

		if converged(shortlist, queried, target) {
			break
		}
	}

	mu.Lock()
	defer mu.Unlock()
	all := make([]routing.PeerRecord, 0, len(shortlist))
	for _, p := range shortlist {
		all = append(all, p)
	}
	sortByDistance(all, target)
	if len(all) > routing.K {
		all = all[:routing.K]
	}
	return nil, all, nil
}

func mergeShortlist(mu *sync.Mutex, shortlist map[digest.ID]routing.PeerRecord, selfID digest.ID, peers []routing.PeerRecord) {
	mu.Lock()
	defer mu.Unlock()
	for _, p := range peers {
		if p.NodeID == selfID {
			continue
		}
		if _, ok := shortlist[p.NodeID]; !ok {
			shortlist[p.NodeID] = p
		}
	}
}

// converged reports whether the K closest entries of shortlist (to
// target) have all already been queried — the spec's termination
// condition for a FIND_NODE/FIND_VALUE wave.
func converged(shortlist map[digest.ID]routing.PeerRecord, queried map[digest.ID]bool, target digest.ID) bool {
	all := make([]routing.PeerRecord, 0, len(shortlist))
	for _, p := range shortlist {
		all = append(all, p)
	}
	sortByDistance(all, target)
	if len(all) > routing.K {
		all = all[:routing.K]
	}
	if len(all) == 0 {
		return true
	}
	for _, p := range all {
		if !queried[p.NodeID] {
			return false
		}
	}
	return true
}
