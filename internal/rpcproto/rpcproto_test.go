package rpcproto

import (
	"context"
	"testing"
	"time"
)

func TestEnvelopeMarshalRoundTrip(t *testing.T) {
	e := Envelope{Kind: KindRequest, ID: 7, Method: "PING", Data: []byte("abc")}
	raw, err := Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != e.ID || got.Method != e.Method || string(got.Data) != string(e.Data) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, e)
	}
}

func TestServerDispatchesToHandler(t *testing.T) {
	s := NewServer()
	s.Register("PING", func(senderAddr string, data []byte) ([]byte, error) {
		return []byte("pong from " + senderAddr), nil
	})

	resp := s.Handle("peer-a:9000", Envelope{Kind: KindRequest, ID: 1, Method: "PING"})
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if string(resp.Data) != "pong from peer-a:9000" {
		t.Fatalf("got %q", resp.Data)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	s := NewServer()
	resp := s.Handle("peer-a:9000", Envelope{ID: 1, Method: "NOPE"})
	if resp.Error == "" {
		t.Fatalf("expected error for unknown method")
	}
}

func TestClientCallRoundTrip(t *testing.T) {
	c := NewClient()
	send := func(req Envelope) error {
		go c.Deliver(Envelope{Kind: KindResponse, ID: req.ID, Method: req.Method, Data: []byte("ok")})
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := c.Call(ctx, "PING", nil, send)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if string(resp.Data) != "ok" {
		t.Fatalf("got %q", resp.Data)
	}
}

func TestClientCallTimesOut(t *testing.T) {
	c := NewClient()
	send := func(req Envelope) error { return nil } // never delivers a response

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "PING", nil, send)
	if err != ErrTimeout {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestClientDeliverIgnoresUnknownID(t *testing.T) {
	c := NewClient()
	// Should not panic or block.
	c.Deliver(Envelope{ID: 9999})
}
