// Package rpcproto implements the request/response message layer
// carried inside a wire.Message payload: method dispatch on the server
// side, and request/response correlation with timeouts on the client
// side. It is adapted from the teacher's rpc.Server/rpc.Client
// (rpc/rpc.go) — same JSON-encoded Message shape and pending-channel
// correlation pattern — generalized to the ten RPCs the routing table,
// store and lookup components expose.
package rpcproto

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
)

// Kind distinguishes a request from a response.
type Kind uint8

const (
	KindRequest Kind = iota + 1
	KindResponse
)

// Envelope is one RPC message: either a call (Method+Data set) or its
// reply (Data and/or Error set, Method echoed for logging).
type Envelope struct {
	Kind   Kind   `json:"kind"`
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Data   []byte `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Marshal encodes e as JSON, matching the teacher's own RPC framing
// choice (no third-party serialization library appears anywhere in the
// source pack for this concern).
func Marshal(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal decodes the bytes produced by Marshal.
func Unmarshal(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// Handler executes one RPC method against local node state.
type Handler func(senderAddr string, data []byte) ([]byte, error)

// Server dispatches incoming request Envelopes to registered Handlers.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewServer returns an empty dispatch table.
func NewServer() *Server {
	return &Server{handlers: make(map[string]Handler)}
}

// Register installs the handler for method.
func (s *Server) Register(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Handle dispatches req and returns the response Envelope. Unknown
// methods and handler errors are reported in the response's Error
// field rather than returned as a Go error, matching the RPC's
// "protocol error, don't panic" contract.
func (s *Server) Handle(senderAddr string, req Envelope) Envelope {
	s.mu.RLock()
	h, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	resp := Envelope{Kind: KindResponse, ID: req.ID, Method: req.Method}
	if !ok {
		resp.Error = "unknown method: " + req.Method
		return resp
	}
	data, err := h(senderAddr, req.Data)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Data = data
	return resp
}

// ErrTimeout is returned by Client.Call when no response arrives
// before the deadline.
var ErrTimeout = errors.New("rpcproto: call timed out")

// Client tracks outstanding requests and wakes callers when their
// response Envelope arrives via Deliver.
type Client struct {
	nextID  uint64
	mu      sync.Mutex
	pending map[uint64]chan Envelope
}

// NewClient returns a ready-to-use Client.
func NewClient() *Client {
	return &Client{pending: make(map[uint64]chan Envelope)}
}

// Send transmits one request Envelope; implementations hand it to the
// transport layer (e.g. dial the peer, frame it, write it).
type Send func(Envelope) error

// Call issues method with data, blocking until a response arrives,
// ctx is done, or the surrounding deadline elapses — whichever is
// first. Per the spec, a timeout is treated as an empty/absent reply,
// not a fatal error, so callers doing iterative lookups should treat
// ErrTimeout the same as "peer returned nothing".
func (c *Client) Call(ctx context.Context, method string, data []byte, send Send) (Envelope, error) {
	id := atomic.AddUint64(&c.nextID, 1)
	ch := make(chan Envelope, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := Envelope{Kind: KindRequest, ID: id, Method: method, Data: data}
	if err := send(req); err != nil {
		return Envelope{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, errors.New(resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return Envelope{}, ErrTimeout
	}
}

// Deliver routes an incoming response Envelope to its waiting caller,
// if any. Responses for unknown/expired IDs (late timeouts) are
// dropped silently.
func (c *Client) Deliver(e Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[e.ID]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- e:
	default:
	}
}
