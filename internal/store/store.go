// Package store implements the three keyspaces a node persists locally:
// chunk bytes, file metadata, and DHT provider values. It mirrors the
// shape of the original Storage type (chunks / metadata / dht_values
// maps, each behind its own lock) while fixing the canonical FileMetadata
// encoding the rest of the system hashes against.
package store

import (
	"encoding/binary"
	"sync"

	"github.com/rajiknows/ufs/internal/digest"
)

// FileMetadata is the canonical description of an uploaded file.
// Field order is significant: it determines the canonical encoding and
// therefore the FileID.
type FileMetadata struct {
	Name        string
	Size        uint64
	ChunkHashes []digest.ID
}

// Encode produces the canonical, deterministic byte encoding of m:
// length-prefixed name, little-endian size, little-endian chunk count,
// then the raw chunk digests in order. This is the one encoding every
// peer must agree on, since FileID = SHA-256(Encode(m)).
func (m FileMetadata) Encode() []byte {
	nameBytes := []byte(m.Name)
	buf := make([]byte, 0, 4+len(nameBytes)+8+4+len(m.ChunkHashes)*digest.Size)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(nameBytes)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, nameBytes...)

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], m.Size)
	buf = append(buf, sizeBuf[:]...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.ChunkHashes)))
	buf = append(buf, countBuf[:]...)

	for _, h := range m.ChunkHashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

// FileID returns the canonical identifier for m.
func (m FileMetadata) FileID() digest.ID {
	return digest.Sum(m.Encode())
}

// DecodeFileMetadata parses the encoding produced by Encode.
func DecodeFileMetadata(b []byte) (FileMetadata, error) {
	var m FileMetadata
	if len(b) < 4 {
		return m, errShortMetadata
	}
	nameLen := binary.LittleEndian.Uint32(b[0:4])
	off := uint32(4)
	if uint64(off)+uint64(nameLen) > uint64(len(b)) {
		return m, errShortMetadata
	}
	m.Name = string(b[off : off+nameLen])
	off += nameLen

	if off+8 > uint32(len(b)) {
		return m, errShortMetadata
	}
	m.Size = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8

	if off+4 > uint32(len(b)) {
		return m, errShortMetadata
	}
	count := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4

	m.ChunkHashes = make([]digest.ID, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+uint32(digest.Size) > uint32(len(b)) {
			return m, errShortMetadata
		}
		var h digest.ID
		copy(h[:], b[off:off+uint32(digest.Size)])
		m.ChunkHashes = append(m.ChunkHashes, h)
		off += uint32(digest.Size)
	}
	return m, nil
}

// ChunkSize is the fixed chunk boundary; only the final chunk of a file
// may be shorter.
const ChunkSize = 262144

// Store holds the three logical keyspaces for one node. No key ever
// collides across keyspaces because each is a separate map.
type Store struct {
	chunksMu sync.RWMutex
	chunks   map[digest.ID][]byte

	metaMu sync.RWMutex
	meta   map[digest.ID]FileMetadata

	valuesMu sync.RWMutex
	values   map[digest.ID]string
}

// New returns an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		chunks: make(map[digest.ID][]byte),
		meta:   make(map[digest.ID]FileMetadata),
		values: make(map[digest.ID]string),
	}
}

// PutChunk stores bytes under hash. The caller is responsible for
// verifying SHA-256(bytes) == hash before calling (the RPC layer does
// this at the boundary); PutChunk itself just persists.
func (s *Store) PutChunk(hash digest.ID, bytes []byte) {
	cp := make([]byte, len(bytes))
	copy(cp, bytes)

	s.chunksMu.Lock()
	defer s.chunksMu.Unlock()
	s.chunks[hash] = cp
}

// GetChunk returns the bytes for hash, or ok=false if absent.
func (s *Store) GetChunk(hash digest.ID) (data []byte, ok bool) {
	s.chunksMu.RLock()
	defer s.chunksMu.RUnlock()
	b, ok := s.chunks[hash]
	if !ok {
		return nil, false
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true
}

// PutMetadata stores m under fileID.
func (s *Store) PutMetadata(fileID digest.ID, m FileMetadata) {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	s.meta[fileID] = m
}

// GetMetadata returns the metadata for fileID, or ok=false if absent.
func (s *Store) GetMetadata(fileID digest.ID) (m FileMetadata, ok bool) {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	m, ok = s.meta[fileID]
	return m, ok
}

// ListMetadata returns every (FileID, FileMetadata) pair held locally.
func (s *Store) ListMetadata() map[digest.ID]FileMetadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	out := make(map[digest.ID]FileMetadata, len(s.meta))
	for k, v := range s.meta {
		out[k] = v
	}
	return out
}

// PutValue stores a provider address under key. Last writer wins, per
// the spec's provider-record lifecycle.
func (s *Store) PutValue(key digest.ID, value string) {
	s.valuesMu.Lock()
	defer s.valuesMu.Unlock()
	s.values[key] = value
}

// GetValue returns the provider address stored under key, or ok=false.
func (s *Store) GetValue(key digest.ID) (value string, ok bool) {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	value, ok = s.values[key]
	return value, ok
}

// Chunks splits data into ChunkSize-byte pieces; the final piece may be
// shorter. An empty input yields zero chunks.
func Chunks(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var out [][]byte
	for off := 0; off < len(data); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[off:end])
	}
	return out
}
