// Package wire defines the envelope every RPC travels in: a fixed
// header carrying the sender's identity and address, followed by the
// RPC payload. It is adapted from the teacher's envelop.Envelope
// (envelop/envelop.go) — same manual-offset binary.BigEndian layout —
// stripped of the onion-routing fields (Dest/TTL/Flags hop-forwarding)
// this overlay has no use for: every RPC here is a single point-to-point
// call, not a multi-hop relayed envelope.
package wire

import (
	"encoding/binary"
	"errors"

	"github.com/rajiknows/ufs/internal/digest"
)

// fixedHeaderSize is the fixed part of the envelope header: 1 byte
// version, 32 byte sender NodeID, 2 byte address length. The address
// bytes (variable) and then the payload follow it.
const fixedHeaderSize = 1 + digest.Size + 2

// Version is the current wire format version.
const Version = 1

// Message is one RPC request or response travelling between two peers.
type Message struct {
	SenderID   digest.ID
	SenderAddr string
	Payload    []byte
}

// Marshal serializes m.
func Marshal(m Message) ([]byte, error) {
	if len(m.SenderAddr) > 0xFFFF {
		return nil, errors.New("wire: sender address too long")
	}
	out := make([]byte, 0, fixedHeaderSize+len(m.SenderAddr)+len(m.Payload))
	out = append(out, Version)
	out = append(out, m.SenderID[:]...)

	var addrLen [2]byte
	binary.BigEndian.PutUint16(addrLen[:], uint16(len(m.SenderAddr)))
	out = append(out, addrLen[:]...)
	out = append(out, []byte(m.SenderAddr)...)
	out = append(out, m.Payload...)
	return out, nil
}

// Unmarshal parses the bytes produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if len(data) < fixedHeaderSize {
		return m, errors.New("wire: message too short")
	}
	if data[0] != Version {
		return m, errors.New("wire: unsupported version")
	}
	off := 1
	copy(m.SenderID[:], data[off:off+digest.Size])
	off += digest.Size

	addrLen := int(binary.BigEndian.Uint16(data[off : off+2]))
	off += 2
	if off+addrLen > len(data) {
		return m, errors.New("wire: truncated sender address")
	}
	m.SenderAddr = string(data[off : off+addrLen])
	off += addrLen

	m.Payload = data[off:]
	return m, nil
}
