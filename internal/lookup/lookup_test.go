package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/routing"
)

// fakeNetwork simulates a small, fully-known Kademlia network for
// testing the lookup state machine without any real transport.
type fakeNetwork struct {
	byAddr map[string]routing.PeerRecord // addr -> self record
	tables map[string]*routing.Table     // addr -> that peer's table
	values map[string]map[digest.ID]string
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{
		byAddr: make(map[string]routing.PeerRecord),
		tables: make(map[string]*routing.Table),
		values: make(map[string]map[digest.ID]string),
	}
}

func (fn *fakeNetwork) addNode(addr string) routing.PeerRecord {
	id := digest.FromAddress(addr)
	rec := routing.PeerRecord{NodeID: id, Address: addr}
	fn.byAddr[addr] = rec
	fn.tables[addr] = routing.New(id)
	fn.values[addr] = make(map[digest.ID]string)
	return rec
}

func (fn *fakeNetwork) link(a, b string) {
	ctx := context.Background()
	fn.tables[a].Insert(ctx, fn.byAddr[b])
	fn.tables[b].Insert(ctx, fn.byAddr[a])
}

func (fn *fakeNetwork) FindNodeAt(ctx context.Context, addr string, target digest.ID) ([]routing.PeerRecord, error) {
	tbl, ok := fn.tables[addr]
	if !ok {
		return nil, errors.New("no such peer")
	}
	return tbl.FindClosest(target, routing.K), nil
}

func (fn *fakeNetwork) FindValueAt(ctx context.Context, addr string, key digest.ID) (*string, []routing.PeerRecord, error) {
	tbl, ok := fn.tables[addr]
	if !ok {
		return nil, nil, errors.New("no such peer")
	}
	if v, ok := fn.values[addr][key]; ok {
		return &v, nil, nil
	}
	return nil, tbl.FindClosest(key, routing.K), nil
}

// mesh links the given nodes into a fully-connected mesh so lookups have
// somewhere to go regardless of which node seeds them.
func (fn *fakeNetwork) mesh(addrs []string) {
	for i := range addrs {
		for j := range addrs {
			if i != j {
				fn.link(addrs[i], addrs[j])
			}
		}
	}
}

func TestFindNodeConverges(t *testing.T) {
	fn := newFakeNetwork()
	addrs := []string{"n0:9000", "n1:9000", "n2:9000", "n3:9000", "n4:9000"}
	for _, a := range addrs {
		fn.addNode(a)
	}
	fn.mesh(addrs)

	self := digest.FromAddress("seeker:9000")
	seed := []routing.PeerRecord{fn.byAddr["n0:9000"]}
	target := digest.FromAddress("some-file-id")

	_, closest, err := Run(context.Background(), self, seed, fn, target, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(closest) == 0 {
		t.Fatalf("expected at least one peer in result")
	}
	for i := 1; i < len(closest); i++ {
		prev := digest.XOR(closest[i-1].NodeID, target)
		cur := digest.XOR(closest[i].NodeID, target)
		if digest.Less(cur, prev) {
			t.Fatalf("result not sorted ascending by distance")
		}
	}
}

func TestFindValueShortCircuits(t *testing.T) {
	fn := newFakeNetwork()
	addrs := []string{"n0:9000", "n1:9000", "n2:9000"}
	for _, a := range addrs {
		fn.addNode(a)
	}
	fn.mesh(addrs)

	fileKey := digest.FromAddress("file-key")
	fn.values["n2:9000"][fileKey] = "provider-addr:9000"

	self := digest.FromAddress("seeker:9000")
	seed := []routing.PeerRecord{fn.byAddr["n0:9000"]}

	value, closest, err := Run(context.Background(), self, seed, fn, fileKey, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value == nil || *value != "provider-addr:9000" {
		t.Fatalf("expected to find the stored value, got %v (closest=%v)", value, closest)
	}
}

func TestFindValueNotFoundReturnsClosest(t *testing.T) {
	fn := newFakeNetwork()
	addrs := []string{"n0:9000", "n1:9000"}
	for _, a := range addrs {
		fn.addNode(a)
	}
	fn.mesh(addrs)

	self := digest.FromAddress("seeker:9000")
	seed := []routing.PeerRecord{fn.byAddr["n0:9000"]}
	key := digest.FromAddress("missing-key")

	value, closest, err := Run(context.Background(), self, seed, fn, key, true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != nil {
		t.Fatalf("expected no value, got %v", *value)
	}
	if len(closest) == 0 {
		t.Fatalf("expected closest peers when value absent")
	}
}

func TestEmptySeedTerminatesImmediately(t *testing.T) {
	fn := newFakeNetwork()
	self := digest.FromAddress("lonely-seeker")
	target := digest.FromAddress("target")

	value, closest, err := Run(context.Background(), self, nil, fn, target, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != nil || len(closest) != 0 {
		t.Fatalf("expected empty result with no seed peers, got value=%v closest=%v", value, closest)
	}
}
