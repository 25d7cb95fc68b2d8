// Package node implements the peer node (C4): the aggregate owning a
// node's identity, local store and routing table, wired to the
// transport and RPC layers. Construction follows the teacher's
// host.Builder pattern (host/host.go) — a single constructor, New,
// assembling the pieces in order — generalized from an onion-routing
// host to a Kademlia peer.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/routing"
	"github.com/rajiknows/ufs/internal/rpcproto"
	"github.com/rajiknows/ufs/internal/store"
	"github.com/rajiknows/ufs/internal/transport"
	"github.com/rajiknows/ufs/internal/wire"
)

// Default per-peer RPC timeouts (spec §5: "suggested 5s for PING, 10s
// for data").
const (
	PingTimeout = 5 * time.Second
	DataTimeout = 10 * time.Second
)

// ErrNotFound is returned by client-facing lookups that hit neither a
// local nor a remote value.
var ErrNotFound = errors.New("node: not found")

// ErrIntegrity is returned when received chunk bytes do not hash to
// their claimed digest.
var ErrIntegrity = errors.New("node: integrity check failed")

// Node is one peer: identity + store + routing table + transport.
type Node struct {
	ID   digest.ID
	Addr string

	Store *store.Store
	Table *routing.Table

	transport *transport.Transport
	rpcServer *rpcproto.Server
	rpcClient *rpcproto.Client
}

// New constructs a Node listening (once Start is called) on addr. The
// NodeID is derived deterministically from addr, per the data model.
func New(addr string) *Node {
	n := &Node{
		ID:    digest.FromAddress(addr),
		Addr:  addr,
		Store: store.New(),
	}
	n.Table = routing.New(n.ID)
	n.Table.SetPinger(n.pingAlive)

	n.rpcServer = rpcproto.NewServer()
	n.rpcClient = rpcproto.NewClient()
	n.registerHandlers()

	n.transport = transport.New(n.ID.String()[:8], n.handleIncoming)
	return n
}

// Start begins serving incoming connections; it blocks until ctx is
// cancelled.
func (n *Node) Start(ctx context.Context) error {
	return n.transport.ListenAndServe(ctx, n.Addr)
}

// handleIncoming is the transport's single entry point for every
// received wire.Message, whether it is a request or a response.
// Every RPC that carries a sender identity causes an opportunistic
// routing-table refresh (spec §4.5), implemented here once rather than
// duplicated per handler.
func (n *Node) handleIncoming(msg wire.Message) {
	env, err := rpcproto.Unmarshal(msg.Payload)
	if err != nil {
		log.Printf("[%s] malformed rpc envelope from %s: %v", n.ID, msg.SenderAddr, err)
		return
	}

	if !msg.SenderID.IsZero() && msg.SenderID != n.ID {
		go n.Table.Insert(context.Background(), routing.PeerRecord{NodeID: msg.SenderID, Address: msg.SenderAddr})
	}

	switch env.Kind {
	case rpcproto.KindRequest:
		resp := n.rpcServer.Handle(msg.SenderAddr, env)
		n.reply(msg.SenderAddr, resp)
	case rpcproto.KindResponse:
		n.rpcClient.Deliver(env)
	default:
		log.Printf("[%s] unknown envelope kind %d from %s", n.ID, env.Kind, msg.SenderAddr)
	}
}

func (n *Node) reply(addr string, env rpcproto.Envelope) {
	payload, err := rpcproto.Marshal(env)
	if err != nil {
		log.Printf("[%s] marshal response: %v", n.ID, err)
		return
	}
	out := wire.Message{SenderID: n.ID, SenderAddr: n.Addr, Payload: payload}
	if err := n.transport.Send(addr, out); err != nil {
		log.Printf("[%s] send response to %s: %v", n.ID, addr, err)
	}
}

// call issues one RPC to addr and decodes the JSON response data into
// out (if non-nil). A timeout is reported as rpcproto.ErrTimeout.
func (n *Node) call(ctx context.Context, addr, method string, req any, out any) error {
	var data []byte
	if req != nil {
		b, err := json.Marshal(req)
		if err != nil {
			return err
		}
		data = b
	}

	send := func(e rpcproto.Envelope) error {
		payload, err := rpcproto.Marshal(e)
		if err != nil {
			return err
		}
		return n.transport.Send(addr, wire.Message{SenderID: n.ID, SenderAddr: n.Addr, Payload: payload})
	}

	resp, err := n.rpcClient.Call(ctx, method, data, send)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Data, out)
}

// pingAlive is the routing table's liveness check for eviction
// decisions: does addr answer a PING within the standard timeout?
func (n *Node) pingAlive(ctx context.Context, addr string) bool {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	var resp pingResponse
	return n.call(ctx, addr, MethodPing, nil, &resp) == nil
}

func (n *Node) registerHandlers() {
	n.rpcServer.Register(MethodPing, n.handlePing)
	n.rpcServer.Register(MethodStore, n.handleStore)
	n.rpcServer.Register(MethodFindNode, n.handleFindNode)
	n.rpcServer.Register(MethodFindValue, n.handleFindValue)
	n.rpcServer.Register(MethodInitiateUpload, n.handleInitiateUpload)
	n.rpcServer.Register(MethodUploadChunk, n.handleUploadChunk)
	n.rpcServer.Register(MethodGetChunk, n.handleGetChunk)
	n.rpcServer.Register(MethodGetFileMetadata, n.handleGetFileMetadata)
	n.rpcServer.Register(MethodListPeers, n.handleListPeers)
	n.rpcServer.Register(MethodListFiles, n.handleListFiles)
}

func (n *Node) handlePing(senderAddr string, data []byte) ([]byte, error) {
	// Sender's routing-table insertion already happened in
	// handleIncoming; PING has no further side effect than that.
	return json.Marshal(pingResponse{NodeID: n.ID})
}

func (n *Node) handleStore(senderAddr string, data []byte) ([]byte, error) {
	var req storeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	n.Store.PutValue(req.Key, req.Value)
	return json.Marshal(storeResponse{OK: true})
}

func (n *Node) handleFindNode(senderAddr string, data []byte) ([]byte, error) {
	var req findNodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	peers := n.Table.FindClosest(req.Target, routing.K)
	return json.Marshal(findNodeResponse{Peers: toWirePeers(peers)})
}

func (n *Node) handleFindValue(senderAddr string, data []byte) ([]byte, error) {
	var req findValueRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if v, ok := n.Store.GetValue(req.Key); ok {
		return json.Marshal(findValueResponse{Value: &v})
	}
	peers := n.Table.FindClosest(req.Key, routing.K)
	return json.Marshal(findValueResponse{Peers: toWirePeers(peers)})
}

func (n *Node) handleInitiateUpload(senderAddr string, data []byte) ([]byte, error) {
	var req initiateUploadRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	m := store.FileMetadata{Name: req.Name, Size: req.Size, ChunkHashes: req.ChunkIDs}
	if m.FileID() != req.FileID {
		return nil, fmt.Errorf("%w: file_id does not match canonical metadata hash", ErrIntegrity)
	}
	n.Store.PutMetadata(req.FileID, m)
	return json.Marshal(initiateUploadResponse{OK: true})
}

func (n *Node) handleUploadChunk(senderAddr string, data []byte) ([]byte, error) {
	var req uploadChunkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	if digest.Sum(req.Bytes) != req.Hash {
		return nil, fmt.Errorf("%w: chunk bytes do not hash to claimed digest", ErrIntegrity)
	}
	n.Store.PutChunk(req.Hash, req.Bytes)
	return json.Marshal(uploadChunkResponse{OK: true})
}

func (n *Node) handleGetChunk(senderAddr string, data []byte) ([]byte, error) {
	var req getChunkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	b, ok := n.Store.GetChunk(req.Hash)
	if !ok {
		return json.Marshal(getChunkResponse{Found: false})
	}
	return json.Marshal(getChunkResponse{Found: true, Bytes: b})
}

func (n *Node) handleGetFileMetadata(senderAddr string, data []byte) ([]byte, error) {
	var req getFileMetadataRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	m, ok := n.Store.GetMetadata(req.FileID)
	return json.Marshal(metadataToResponse(ok, m))
}

func (n *Node) handleListPeers(senderAddr string, data []byte) ([]byte, error) {
	return json.Marshal(listPeersResponse{Addresses: n.Table.AllAddresses()})
}

func (n *Node) handleListFiles(senderAddr string, data []byte) ([]byte, error) {
	all := n.Store.ListMetadata()
	files := make([]fileSummary, 0, len(all))
	for id, m := range all {
		files = append(files, fileSummary{FileID: id, Name: m.Name, Size: m.Size})
	}
	return json.Marshal(listFilesResponse{Files: files})
}
