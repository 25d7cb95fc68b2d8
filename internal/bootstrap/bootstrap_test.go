package bootstrap

import (
	"context"
	"testing"

	"github.com/rajiknows/ufs/internal/node"
)

func TestJoinWithoutAddressIsNoOp(t *testing.T) {
	n := node.New("127.0.0.1:21000")
	if err := Join(context.Background(), n, ""); err != nil {
		t.Fatalf("Join with empty addr returned an error: %v", err)
	}
	if got := n.ListLocalPeers(); len(got) != 0 {
		t.Fatalf("expected empty routing table, got %v", got)
	}
}
