package node

import (
	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/routing"
	"github.com/rajiknows/ufs/internal/store"
)

// Method names for the ten RPCs in the peer surface (spec §4.5).
const (
	MethodPing             = "PING"
	MethodStore            = "STORE"
	MethodFindNode         = "FIND_NODE"
	MethodFindValue        = "FIND_VALUE"
	MethodInitiateUpload   = "INITIATE_UPLOAD"
	MethodUploadChunk      = "UPLOAD_CHUNK"
	MethodGetChunk         = "GET_CHUNK"
	MethodGetFileMetadata  = "GET_FILE_METADATA"
	MethodListPeers        = "LIST_PEERS"
	MethodListFiles        = "LIST_FILES"
)

// pingResponse carries the responder's NodeID.
type pingResponse struct {
	NodeID digest.ID `json:"node_id"`
}

type storeRequest struct {
	Key   digest.ID `json:"key"`
	Value string    `json:"value"`
}

type storeResponse struct {
	OK bool `json:"ok"`
}

type findNodeRequest struct {
	Target digest.ID `json:"target"`
}

type findNodeResponse struct {
	Peers []wirePeer `json:"peers"`
}

type findValueRequest struct {
	Key digest.ID `json:"key"`
}

type findValueResponse struct {
	Value *string    `json:"value,omitempty"`
	Peers []wirePeer `json:"peers,omitempty"`
}

// wirePeer is the JSON shape of a routing.PeerRecord on the wire.
type wirePeer struct {
	NodeID  digest.ID `json:"node_id"`
	Address string    `json:"address"`
}

func toWirePeers(peers []routing.PeerRecord) []wirePeer {
	out := make([]wirePeer, len(peers))
	for i, p := range peers {
		out[i] = wirePeer{NodeID: p.NodeID, Address: p.Address}
	}
	return out
}

func fromWirePeers(peers []wirePeer) []routing.PeerRecord {
	out := make([]routing.PeerRecord, len(peers))
	for i, p := range peers {
		out[i] = routing.PeerRecord{NodeID: p.NodeID, Address: p.Address}
	}
	return out
}

type initiateUploadRequest struct {
	FileID   digest.ID          `json:"file_id"`
	Name     string             `json:"name"`
	Size     uint64             `json:"size"`
	ChunkIDs []digest.ID        `json:"chunk_ids"`
}

type initiateUploadResponse struct {
	OK bool `json:"ok"`
}

type uploadChunkRequest struct {
	Hash  digest.ID `json:"hash"`
	Bytes []byte    `json:"bytes"`
}

type uploadChunkResponse struct {
	OK bool `json:"ok"`
}

type getChunkRequest struct {
	Hash digest.ID `json:"hash"`
}

type getChunkResponse struct {
	Found bool   `json:"found"`
	Bytes []byte `json:"bytes,omitempty"`
}

type getFileMetadataRequest struct {
	FileID digest.ID `json:"file_id"`
}

type getFileMetadataResponse struct {
	Found    bool        `json:"found"`
	Name     string      `json:"name,omitempty"`
	Size     uint64      `json:"size,omitempty"`
	ChunkIDs []digest.ID `json:"chunk_ids,omitempty"`
}

func metadataToResponse(found bool, m store.FileMetadata) getFileMetadataResponse {
	if !found {
		return getFileMetadataResponse{Found: false}
	}
	return getFileMetadataResponse{Found: true, Name: m.Name, Size: m.Size, ChunkIDs: m.ChunkHashes}
}

type listPeersResponse struct {
	Addresses []string `json:"addresses"`
}

type fileSummary struct {
	FileID digest.ID `json:"file_id"`
	Name   string    `json:"name"`
	Size   uint64    `json:"size"`
}

type listFilesResponse struct {
	Files []fileSummary `json:"files"`
}
