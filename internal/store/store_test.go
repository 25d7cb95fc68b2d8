package store

import (
	"crypto/sha256"
	"testing"

	"github.com/rajiknows/ufs/internal/digest"
)

func TestChunkRoundTrip(t *testing.T) {
	s := New()
	data := []byte("hello world")
	h := digest.Sum(data)
	s.PutChunk(h, data)

	got, ok := s.GetChunk(h)
	if !ok {
		t.Fatalf("chunk not found after PutChunk")
	}
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
	if digest.Sum(got) != h {
		t.Fatalf("SHA-256(got) != h, store/digest invariant broken")
	}
}

func TestGetChunkAbsentIsNotError(t *testing.T) {
	s := New()
	_, ok := s.GetChunk(digest.Sum([]byte("nope")))
	if ok {
		t.Fatalf("expected absent key to report ok=false")
	}
}

func TestPutChunkIdempotent(t *testing.T) {
	s := New()
	data := []byte("idempotent")
	h := digest.Sum(data)
	s.PutChunk(h, data)
	s.PutChunk(h, data)
	got, ok := s.GetChunk(h)
	if !ok || string(got) != string(data) {
		t.Fatalf("repeated PutChunk changed stored value")
	}
}

func TestMetadataEncodeDecodeRoundTrip(t *testing.T) {
	m := FileMetadata{
		Name: "h.txt",
		Size: 5,
		ChunkHashes: []digest.ID{
			digest.Sum([]byte("hello")),
		},
	}
	encoded := m.Encode()
	decoded, err := DecodeFileMetadata(encoded)
	if err != nil {
		t.Fatalf("DecodeFileMetadata: %v", err)
	}
	if decoded.Name != m.Name || decoded.Size != m.Size {
		t.Fatalf("decoded metadata mismatch: %+v vs %+v", decoded, m)
	}
	if len(decoded.ChunkHashes) != 1 || decoded.ChunkHashes[0] != m.ChunkHashes[0] {
		t.Fatalf("decoded chunk hashes mismatch")
	}
}

func TestFileIDMatchesSpecExample(t *testing.T) {
	chunkHash := digest.ID(sha256.Sum256([]byte("hello")))
	m := FileMetadata{Name: "h.txt", Size: 5, ChunkHashes: []digest.ID{chunkHash}}
	want := digest.Sum(m.Encode())
	if got := m.FileID(); got != want {
		t.Fatalf("FileID() = %v, want %v", got, want)
	}
}

func TestMetadataStoreRoundTrip(t *testing.T) {
	s := New()
	m := FileMetadata{Name: "a.bin", Size: 3, ChunkHashes: []digest.ID{digest.Sum([]byte("abc"))}}
	id := m.FileID()
	s.PutMetadata(id, m)

	got, ok := s.GetMetadata(id)
	if !ok {
		t.Fatalf("metadata not found after PutMetadata")
	}
	if got.FileID() != id {
		t.Fatalf("SHA-256(canonical(m)) != f, metadata invariant broken")
	}
}

func TestValueLastWriterWins(t *testing.T) {
	s := New()
	key := digest.Sum([]byte("file-key"))
	s.PutValue(key, "peer-a:9000")
	s.PutValue(key, "peer-b:9000")

	got, ok := s.GetValue(key)
	if !ok || got != "peer-b:9000" {
		t.Fatalf("expected last writer to win, got %q", got)
	}
}

func TestChunksEmptyInput(t *testing.T) {
	if chunks := Chunks(nil); chunks != nil {
		t.Fatalf("expected nil chunk list for empty input, got %v", chunks)
	}
}

func TestChunksExactBoundary(t *testing.T) {
	data := make([]byte, ChunkSize)
	chunks := Chunks(data)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk at boundary, got %d", len(chunks))
	}
}

func TestChunksOneByteOverBoundary(t *testing.T) {
	data := make([]byte, ChunkSize+1)
	chunks := Chunks(data)
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != ChunkSize || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunk sizes: %d, %d", len(chunks[0]), len(chunks[1]))
	}
}

func TestListMetadataReturnsCopy(t *testing.T) {
	s := New()
	m := FileMetadata{Name: "x", Size: 0}
	id := m.FileID()
	s.PutMetadata(id, m)

	all := s.ListMetadata()
	delete(all, id)

	if _, ok := s.GetMetadata(id); !ok {
		t.Fatalf("ListMetadata leaked a reference that let callers mutate the store")
	}
}
