// Package routing implements the Kademlia routing table: 256
// XOR-distance buckets of at most K=20 peers each, with recency-ordered
// insertion and ping-gated eviction. It is grounded on the teacher's
// KademliaTable (router/Kademlia.go) — same bucket-array layout and
// move-to-front update rule — generalized to the spec's eviction
// contract (ping the incumbent before discarding it) and full 256-bit
// XOR distance.
package routing

import (
	"context"
	"sort"
	"sync"

	"github.com/rajiknows/ufs/internal/digest"
)

// K is the Kademlia replication parameter: the maximum number of peers
// held per bucket.
const K = 20

// PeerRecord identifies a peer and the address an RPC client can dial
// to reach it. Two records are equal iff NodeID matches.
type PeerRecord struct {
	NodeID  digest.ID
	Address string
}

// Pinger checks whether a peer is still alive, used to decide whether
// an incumbent bucket entry should be evicted in favor of a newcomer.
// Implementations should apply their own timeout.
type Pinger func(ctx context.Context, addr string) bool

type bucket struct {
	// peers is ordered most-recent-first (front = most recently seen).
	peers []PeerRecord
}

// Table is a node's routing table: its own id plus 256 buckets.
type Table struct {
	mu      sync.Mutex
	localID digest.ID
	buckets [256]*bucket

	// ping is consulted before evicting the least-recently-seen peer
	// in a full bucket. If nil, the least-recently-seen peer is evicted
	// in favor of the newcomer (equivalent to every ping failing
	// instantly).
	ping Pinger
}

// New returns an empty table owned by localID. Set Table.SetPinger
// before the first Insert that can trigger an eviction decision if
// liveness checks should gate evictions (the spec's default behavior).
func New(localID digest.ID) *Table {
	t := &Table{localID: localID}
	for i := range t.buckets {
		t.buckets[i] = &bucket{}
	}
	return t
}

// SetPinger installs the liveness check used by Insert's eviction path.
func (t *Table) SetPinger(p Pinger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ping = p
}

// LocalID returns the owning node's id.
func (t *Table) LocalID() digest.ID {
	return t.localID
}

// BucketIndexFor returns the bucket a remote id falls into relative to
// the table's local id.
func (t *Table) BucketIndexFor(id digest.ID) int {
	if id == t.localID {
		return 0
	}
	return digest.BucketIndex(digest.XOR(t.localID, id))
}

// Insert applies the spec's five-step insertion rule:
//  1. ignore self;
//  2. locate p's bucket;
//  3. move an existing entry to the front;
//  4. push to front if the bucket has room;
//  5. otherwise ping the least-recently-seen entry — if it answers,
//     the incumbent wins and p is discarded; if not, evict it and
//     insert p at the front.
//
// Insert may block on a network round trip (the ping) when the target
// bucket is full; callers on a hot path should run it in its own
// goroutine if that latency is unacceptable.
func (t *Table) Insert(ctx context.Context, p PeerRecord) {
	if p.NodeID == t.localID {
		return
	}
	idx := t.BucketIndexFor(p.NodeID)

	t.mu.Lock()
	b := t.buckets[idx]

	for i, existing := range b.peers {
		if existing.NodeID == p.NodeID {
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			b.peers = append([]PeerRecord{p}, b.peers...)
			t.mu.Unlock()
			return
		}
	}

	if len(b.peers) < K {
		b.peers = append([]PeerRecord{p}, b.peers...)
		t.mu.Unlock()
		return
	}

	incumbent := b.peers[len(b.peers)-1]
	pinger := t.ping
	t.mu.Unlock()

	alive := false
	if pinger != nil {
		alive = pinger(ctx, incumbent.Address)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if alive {
		// Incumbent answered: it keeps its place, newcomer is dropped.
		return
	}
	// Evict the incumbent (it may no longer be last if concurrent
	// activity reshuffled the bucket; remove by NodeID to be safe).
	for i, existing := range b.peers {
		if existing.NodeID == incumbent.NodeID {
			b.peers = append(b.peers[:i], b.peers[i+1:]...)
			break
		}
	}
	b.peers = append([]PeerRecord{p}, b.peers...)
	if len(b.peers) > K {
		b.peers = b.peers[:K]
	}
}

// FindClosest returns up to count PeerRecords ordered by ascending XOR
// distance to target, ties broken by raw NodeID comparison.
func (t *Table) FindClosest(target digest.ID, count int) []PeerRecord {
	t.mu.Lock()
	all := make([]PeerRecord, 0, K*4)
	for _, b := range t.buckets {
		all = append(all, b.peers...)
	}
	t.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		di := digest.XOR(all[i].NodeID, target)
		dj := digest.XOR(all[j].NodeID, target)
		if di != dj {
			return digest.Less(di, dj)
		}
		return digest.Less(all[i].NodeID, all[j].NodeID)
	})

	if count < len(all) {
		all = all[:count]
	}
	return all
}

// AllAddresses returns the address of every peer currently known to the
// table, for LIST_PEERS.
func (t *Table) AllAddresses() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, b := range t.buckets {
		for _, p := range b.peers {
			out = append(out, p.Address)
		}
	}
	return out
}

// BucketLen reports how many peers occupy the bucket idx, for tests and
// diagnostics.
func (t *Table) BucketLen(idx int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets[idx].peers)
}

// BucketPeers returns a copy of the peers in bucket idx, front-first.
func (t *Table) BucketPeers(idx int) []PeerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerRecord, len(t.buckets[idx].peers))
	copy(out, t.buckets[idx].peers)
	return out
}
