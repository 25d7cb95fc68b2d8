// Package bootstrap implements C8: joining an existing overlay via a
// single known peer. Grounded on the teacher's host.Builder assembly
// step and the bootstrap/self-lookup sequence sketched (but never
// completed — node.rs's bootstrap was a TODO stub) in
// original_source/src/node.rs.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rajiknows/ufs/internal/lookup"
	"github.com/rajiknows/ufs/internal/node"
	"github.com/rajiknows/ufs/internal/routing"
)

// Join performs the spec §4.7 bootstrap sequence: PING the known
// address, insert the responder into the routing table, then run a
// self-directed FIND_NODE to seed nearby buckets. An empty addr is a
// no-op — the node simply starts empty and waits for incoming pings.
func Join(ctx context.Context, n *node.Node, addr string) error {
	if addr == "" {
		return nil
	}

	responderID, err := n.Ping(ctx, addr)
	if err != nil {
		return fmt.Errorf("bootstrap: ping %s: %w", addr, err)
	}
	n.Table.Insert(ctx, routing.PeerRecord{NodeID: responderID, Address: addr})

	seed := n.Table.FindClosest(n.ID, routing.K)
	_, closest, err := lookup.Run(ctx, n.ID, seed, n, n.ID, false)
	if err != nil {
		return fmt.Errorf("bootstrap: self FIND_NODE: %w", err)
	}
	// Populate buckets near self directly from the lookup's result
	// (spec §4.7), rather than relying only on the transitive insert
	// handleIncoming performs for each responder along the way.
	for _, p := range closest {
		n.Table.Insert(ctx, p)
	}
	return nil
}
