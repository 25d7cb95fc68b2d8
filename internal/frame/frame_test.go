package frame

import (
	"bytes"
	"testing"
)

func TestBuildDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello wire")
	f := &Frame{}
	f.Build(TypeMessage, payload)

	gotType, gotPayload, err := Decode(f.Raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotType != TypeMessage {
		t.Fatalf("type = %d, want %d", gotType, TypeMessage)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %q, want %q", gotPayload, payload)
	}
}

func TestDecodeLargePayload(t *testing.T) {
	// A 256 KiB chunk plus some header overhead must not overflow a
	// 16-bit length field; this is exactly the bug being fixed versus
	// the uint16-length predecessor.
	payload := make([]byte, 300*1024)
	f := &Frame{}
	f.Build(TypeMessage, payload)

	_, got, err := Decode(f.Raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(payload) {
		t.Fatalf("decoded length %d, want %d", len(got), len(payload))
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, _, err := Decode([]byte{0x01, 0x00}); err == nil {
		t.Fatalf("expected error decoding truncated frame")
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	f := &Frame{}
	f.Build(TypeMessage, []byte("abc"))
	truncated := f.Raw[:len(f.Raw)-1]
	if _, _, err := Decode(truncated); err == nil {
		t.Fatalf("expected error decoding frame with missing payload bytes")
	}
}
