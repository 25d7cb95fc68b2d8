// Package fileops implements the client-facing Upload and Download
// workflows (C7). It is grounded on the original_source upload path
// (src/fs.rs add_file, src/cli.rs's chunk-then-hash loop) generalized
// onto the Go node/store/lookup components, with per-chunk hashing
// happening client-side before anything is persisted or announced —
// the integrity-on-upload behavior original_source's CLI intended but
// never wired up.
package fileops

import (
	"context"
	"log"

	"github.com/rajiknows/ufs/internal/digest"
	"github.com/rajiknows/ufs/internal/lookup"
	"github.com/rajiknows/ufs/internal/node"
	"github.com/rajiknows/ufs/internal/routing"
	"github.com/rajiknows/ufs/internal/store"
)

// Upload splits data into chunks, persists metadata and chunks on n's
// local store, then announces n as a provider to the K peers closest
// to the resulting FileID. Announce failures are logged and do not
// fail the upload (best-effort, per spec §4.6 step 7).
func Upload(ctx context.Context, n *node.Node, name string, data []byte) (digest.ID, error) {
	chunks := store.Chunks(data)
	hashes := make([]digest.ID, len(chunks))
	for i, c := range chunks {
		hashes[i] = digest.Sum(c)
	}

	meta := store.FileMetadata{Name: name, Size: uint64(len(data)), ChunkHashes: hashes}
	fileID := meta.FileID()

	// Metadata first, then chunks in any order (spec §4.6 step 6).
	n.Store.PutMetadata(fileID, meta)
	for i, c := range chunks {
		n.Store.PutChunk(hashes[i], c)
	}

	// The uploader is always a provider of its own upload, whether or
	// not any other peer acknowledges the announce below — this is
	// what lets FIND_VALUE resolve a file on the very node that holds
	// it, including the single-node case where announce has no peers
	// to reach.
	n.Store.PutValue(fileID, n.Addr)

	announce(ctx, n, fileID)
	return fileID, nil
}

func announce(ctx context.Context, n *node.Node, fileID digest.ID) {
	seed := n.Table.FindClosest(fileID, routing.K)
	_, closest, err := lookup.Run(ctx, n.ID, seed, n, fileID, false)
	if err != nil {
		log.Printf("announce: FIND_NODE(%s) failed: %v", fileID, err)
		return
	}

	for _, p := range closest {
		if p.NodeID == n.ID {
			continue
		}
		if err := n.StoreAt(ctx, p.Address, fileID, n.Addr); err != nil {
			log.Printf("announce: STORE to %s failed: %v", p.Address, err)
		}
	}
}
