package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/rajiknows/ufs/internal/digest"
)

func idFor(s string) digest.ID {
	return digest.Sum([]byte(s))
}

func TestInsertSelfIsNoOp(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	tbl.Insert(context.Background(), PeerRecord{NodeID: self, Address: "self:9000"})

	for i := 0; i < 256; i++ {
		if tbl.BucketLen(i) != 0 {
			t.Fatalf("self-insertion populated bucket %d", i)
		}
	}
}

func TestInsertMoveToFront(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	a := PeerRecord{NodeID: idFor("a"), Address: "a:9000"}
	b := PeerRecord{NodeID: idFor("b"), Address: "b:9000"}

	ctx := context.Background()
	tbl.Insert(ctx, a)
	tbl.Insert(ctx, b)
	tbl.Insert(ctx, a) // re-seen: should move back to front

	idx := tbl.BucketIndexFor(a.NodeID)
	peers := tbl.BucketPeers(idx)
	if len(peers) == 0 || peers[0].NodeID != a.NodeID {
		t.Fatalf("expected re-inserted peer at front, got %+v", peers)
	}
}

func TestBucketCapacityWithLivingIncumbents(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	tbl.SetPinger(func(ctx context.Context, addr string) bool { return true }) // incumbents always answer

	var bucketIdx = -1
	ctx := context.Background()
	inserted := 0
	for i := 0; inserted < 25 && i < 100000; i++ {
		p := PeerRecord{NodeID: idFor(fmt.Sprintf("peer-%d", i)), Address: fmt.Sprintf("peer-%d:9000", i)}
		idx := tbl.BucketIndexFor(p.NodeID)
		if bucketIdx == -1 {
			bucketIdx = idx
		}
		if idx != bucketIdx {
			continue // only count peers that land in the same bucket
		}
		tbl.Insert(ctx, p)
		inserted++
	}

	if got := tbl.BucketLen(bucketIdx); got != K {
		t.Fatalf("bucket has %d peers, want exactly %d (incumbents alive, newcomers dropped)", got, K)
	}
}

func TestBucketOverflowEvictsDeadIncumbent(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	tbl.SetPinger(func(ctx context.Context, addr string) bool { return false }) // incumbents never answer

	ctx := context.Background()
	var bucketIdx = -1
	var last PeerRecord
	inserted := 0
	for i := 0; inserted <= K && i < 100000; i++ {
		p := PeerRecord{NodeID: idFor(fmt.Sprintf("dead-%d", i)), Address: fmt.Sprintf("dead-%d:9000", i)}
		idx := tbl.BucketIndexFor(p.NodeID)
		if bucketIdx == -1 {
			bucketIdx = idx
		}
		if idx != bucketIdx {
			continue
		}
		tbl.Insert(ctx, p)
		last = p
		inserted++
	}

	peers := tbl.BucketPeers(bucketIdx)
	if len(peers) != K {
		t.Fatalf("bucket has %d peers, want %d", len(peers), K)
	}
	if peers[0].NodeID != last.NodeID {
		t.Fatalf("expected newcomer at front after evicting dead incumbent")
	}
}

func TestFindClosestOrdering(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		tbl.Insert(ctx, PeerRecord{NodeID: idFor(fmt.Sprintf("n%d", i)), Address: fmt.Sprintf("n%d:9000", i)})
	}

	target := idFor("target")
	closest := tbl.FindClosest(target, 5)
	if len(closest) != 5 {
		t.Fatalf("expected 5 results, got %d", len(closest))
	}
	for i := 1; i < len(closest); i++ {
		prev := digest.XOR(closest[i-1].NodeID, target)
		cur := digest.XOR(closest[i].NodeID, target)
		if digest.Less(cur, prev) {
			t.Fatalf("FindClosest not sorted ascending at index %d", i)
		}
	}
}

func TestBucketIndexInvariant(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		tbl.Insert(ctx, PeerRecord{NodeID: idFor(fmt.Sprintf("m%d", i)), Address: fmt.Sprintf("m%d:9000", i)})
	}
	for idx := 0; idx < 256; idx++ {
		for _, p := range tbl.BucketPeers(idx) {
			if got := tbl.BucketIndexFor(p.NodeID); got != idx {
				t.Fatalf("peer %v stored in bucket %d but BucketIndexFor says %d", p.NodeID, idx, got)
			}
		}
	}
}

func TestNoDuplicateNodeIDsInBucket(t *testing.T) {
	self := idFor("self")
	tbl := New(self)
	ctx := context.Background()
	p := PeerRecord{NodeID: idFor("dup"), Address: "dup:9000"}
	for i := 0; i < 5; i++ {
		tbl.Insert(ctx, p)
	}
	idx := tbl.BucketIndexFor(p.NodeID)
	if got := tbl.BucketLen(idx); got != 1 {
		t.Fatalf("expected exactly one entry for repeated insert, got %d", got)
	}
}
