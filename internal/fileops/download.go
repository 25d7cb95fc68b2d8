package fileops

import (
	"context"
	"fmt"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/lookup"
	"github.com/rajiknows/ufs/internal/node"
	"github.com/rajiknows/ufs/internal/routing"
)

// Download resolves fileID via FIND_VALUE, fetches metadata and every
// chunk from the returned provider, verifies each chunk's digest, and
// returns the reassembled bytes in order (spec §4.6 Download).
func Download(ctx context.Context, n *node.Node, fileID digest.ID) ([]byte, error) {
	// A FIND_VALUE hit in the local store resolves without touching
	// the network at all, the same short-circuit handleFindValue
	// applies to an incoming request (spec §4.4).
	providerAddr, ok := n.Store.GetValue(fileID)
	if !ok {
		seed := n.Table.FindClosest(fileID, routing.K)
		value, _, err := lookup.Run(ctx, n.ID, seed, n, fileID, true)
		if err != nil {
			return nil, err
		}
		if value == nil {
			return nil, node.ErrNotFound
		}
		providerAddr = *value
	}

	meta, ok, err := fetchMetadata(ctx, n, providerAddr, fileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, node.ErrNotFound
	}

	out := make([]byte, 0, meta.Size)
	for _, h := range meta.ChunkHashes {
		chunk, ok, err := fetchChunk(ctx, n, providerAddr, h)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: chunk %s missing at provider %s", node.ErrNotFound, h, providerAddr)
		}
		if digest.Sum(chunk) != h {
			return nil, fmt.Errorf("%w: chunk %s from %s", node.ErrIntegrity, h, providerAddr)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// fetchMetadata reads from the local store directly when the provider
// is this same node, avoiding a pointless self-dial over the network.
func fetchMetadata(ctx context.Context, n *node.Node, addr string, fileID digest.ID) (metaOut, bool, error) {
	if addr == n.Addr {
		m, ok := n.Store.GetMetadata(fileID)
		return metaOut{Name: m.Name, Size: m.Size, ChunkHashes: m.ChunkHashes}, ok, nil
	}
	m, ok, err := n.GetFileMetadataAt(ctx, addr, fileID)
	if err != nil {
		return metaOut{}, false, err
	}
	return metaOut{Name: m.Name, Size: m.Size, ChunkHashes: m.ChunkHashes}, ok, nil
}

type metaOut struct {
	Name        string
	Size        uint64
	ChunkHashes []digest.ID
}

func fetchChunk(ctx context.Context, n *node.Node, addr string, hash digest.ID) ([]byte, bool, error) {
	if addr == n.Addr {
		return n.Store.GetChunk(hash)
	}
	return n.GetChunkAt(ctx, addr, hash)
}
