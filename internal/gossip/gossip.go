// Package gossip implements a supplementary peer-discovery path:
// periodically ask a known peer for its LIST_PEERS view and fold the
// result into the local routing table. This is grounded on
// original_source/src/gossip.rs's periodic "share known peers with a
// random peer" loop and server.rs's SharePeers RPC — neither of which
// the original ever finished wiring up (gossip.rs's tick body was a
// TODO). It supplements Kademlia lookup, it does not replace it: the
// Non-goal that rules out replication/consensus is about file data, not
// about discovering more addresses to route through.
package gossip

import (
	"context"
	"math/rand"
	"time"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/node"
	"github.com/rajiknows/ufs/internal/routing"
)

// Gossip periodically refreshes n's routing table from a random known
// peer's own peer list.
type Gossip struct {
	n        *node.Node
	interval time.Duration
}

// New returns a Gossip loop over n, ticking every interval.
func New(n *node.Node, interval time.Duration) *Gossip {
	return &Gossip{n: n, interval: interval}
}

// Run blocks, exchanging peer lists every interval, until ctx is done.
func (g *Gossip) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *Gossip) tick(ctx context.Context) {
	known := g.n.ListLocalPeers()
	if len(known) == 0 {
		return
	}
	target := known[rand.Intn(len(known))]

	addrs, err := g.n.ListPeersAt(ctx, target)
	if err != nil {
		return
	}
	for _, addr := range addrs {
		if addr == g.n.Addr {
			continue
		}
		// Addresses are the only thing LIST_PEERS returns; NodeID is
		// always recoverable since it is defined as SHA-256(address).
		g.n.Table.Insert(ctx, routing.PeerRecord{NodeID: digest.FromAddress(addr), Address: addr})
	}
}
