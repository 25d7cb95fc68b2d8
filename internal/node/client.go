package node

import (
	"context"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/routing"
	"github.com/rajiknows/ufs/internal/store"
)

// FileSummary is the client-facing view of one entry from LIST_FILES.
type FileSummary struct {
	FileID digest.ID
	Name   string
	Size   uint64
}

// Ping issues PING to addr and returns the responder's NodeID.
func (n *Node) Ping(ctx context.Context, addr string) (digest.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	var resp pingResponse
	if err := n.call(ctx, addr, MethodPing, nil, &resp); err != nil {
		return digest.ID{}, err
	}
	return resp.NodeID, nil
}

// StoreAt issues STORE(key, value) to addr.
func (n *Node) StoreAt(ctx context.Context, addr string, key digest.ID, value string) error {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp storeResponse
	return n.call(ctx, addr, MethodStore, storeRequest{Key: key, Value: value}, &resp)
}

// FindNodeAt issues FIND_NODE(target) to addr.
func (n *Node) FindNodeAt(ctx context.Context, addr string, target digest.ID) ([]routing.PeerRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp findNodeResponse
	if err := n.call(ctx, addr, MethodFindNode, findNodeRequest{Target: target}, &resp); err != nil {
		return nil, err
	}
	return fromWirePeers(resp.Peers), nil
}

// FindValueAt issues FIND_VALUE(key) to addr. Exactly one of the
// returned value or peer list is populated, matching the RPC's
// either/or response shape.
func (n *Node) FindValueAt(ctx context.Context, addr string, key digest.ID) (value *string, peers []routing.PeerRecord, err error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp findValueResponse
	if err := n.call(ctx, addr, MethodFindValue, findValueRequest{Key: key}, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Value != nil {
		return resp.Value, nil, nil
	}
	return nil, fromWirePeers(resp.Peers), nil
}

// InitiateUploadAt issues INITIATE_UPLOAD(fileID, m) to addr.
func (n *Node) InitiateUploadAt(ctx context.Context, addr string, fileID digest.ID, m store.FileMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp initiateUploadResponse
	req := initiateUploadRequest{FileID: fileID, Name: m.Name, Size: m.Size, ChunkIDs: m.ChunkHashes}
	return n.call(ctx, addr, MethodInitiateUpload, req, &resp)
}

// UploadChunkAt issues UPLOAD_CHUNK(hash, bytes) to addr.
func (n *Node) UploadChunkAt(ctx context.Context, addr string, hash digest.ID, bytes []byte) error {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp uploadChunkResponse
	return n.call(ctx, addr, MethodUploadChunk, uploadChunkRequest{Hash: hash, Bytes: bytes}, &resp)
}

// GetChunkAt issues GET_CHUNK(hash) to addr.
func (n *Node) GetChunkAt(ctx context.Context, addr string, hash digest.ID) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp getChunkResponse
	if err := n.call(ctx, addr, MethodGetChunk, getChunkRequest{Hash: hash}, &resp); err != nil {
		return nil, false, err
	}
	return resp.Bytes, resp.Found, nil
}

// GetFileMetadataAt issues GET_FILE_METADATA(fileID) to addr.
func (n *Node) GetFileMetadataAt(ctx context.Context, addr string, fileID digest.ID) (store.FileMetadata, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp getFileMetadataResponse
	if err := n.call(ctx, addr, MethodGetFileMetadata, getFileMetadataRequest{FileID: fileID}, &resp); err != nil {
		return store.FileMetadata{}, false, err
	}
	if !resp.Found {
		return store.FileMetadata{}, false, nil
	}
	return store.FileMetadata{Name: resp.Name, Size: resp.Size, ChunkHashes: resp.ChunkIDs}, true, nil
}

// ListPeersAt issues LIST_PEERS to addr.
func (n *Node) ListPeersAt(ctx context.Context, addr string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp listPeersResponse
	if err := n.call(ctx, addr, MethodListPeers, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

// ListFilesAt issues LIST_FILES to addr.
func (n *Node) ListFilesAt(ctx context.Context, addr string) ([]FileSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, DataTimeout)
	defer cancel()
	var resp listFilesResponse
	if err := n.call(ctx, addr, MethodListFiles, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]FileSummary, len(resp.Files))
	for i, f := range resp.Files {
		out[i] = FileSummary{FileID: f.FileID, Name: f.Name, Size: f.Size}
	}
	return out, nil
}

// ListLocalPeers returns the addresses this node currently knows about
// without any network call (LIST_PEERS served locally).
func (n *Node) ListLocalPeers() []string {
	return n.Table.AllAddresses()
}

// ListLocalFiles returns this node's own metadata records without any
// network call (LIST_FILES served locally).
func (n *Node) ListLocalFiles() []FileSummary {
	all := n.Store.ListMetadata()
	out := make([]FileSummary, 0, len(all))
	for id, m := range all {
		out = append(out, FileSummary{FileID: id, Name: m.Name, Size: m.Size})
	}
	return out
}
