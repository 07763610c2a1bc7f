package flv

import (
	"bytes"
	"testing"
)

func TestMuxerWriteHeaderOnce(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf)
	if err := m.WriteHeader(true, true); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := m.WriteHeader(true, true); err != nil {
		t.Fatalf("second write header: %v", err)
	}
	if got := buf.Bytes()[:3]; !bytes.Equal(got, []byte("FLV")) {
		t.Fatalf("missing FLV signature: %x", got)
	}
	if got := buf.Len(); got != headerSize+4 {
		t.Fatalf("header written twice: len=%d", got)
	}
}

func TestMuxerWriteTag(t *testing.T) {
	var buf bytes.Buffer
	m := NewMuxer(&buf)
	payload := []byte{1, 2, 3, 4}
	if err := m.WriteTag(TagTypeVideo, 42, payload); err != nil {
		t.Fatalf("write tag: %v", err)
	}
	raw := buf.Bytes()
	tagStart := headerSize + 4
	if TagType(raw[tagStart]) != TagTypeVideo {
		t.Fatalf("expected video tag type, got %d", raw[tagStart])
	}
	dataSize := int(raw[tagStart+1])<<16 | int(raw[tagStart+2])<<8 | int(raw[tagStart+3])
	if dataSize != len(payload) {
		t.Fatalf("expected data size %d, got %d", len(payload), dataSize)
	}
	trailer := raw[len(raw)-4:]
	prevSize := uint32(trailer[0])<<24 | uint32(trailer[1])<<16 | uint32(trailer[2])<<8 | uint32(trailer[3])
	if prevSize != uint32(11+len(payload)) {
		t.Fatalf("unexpected PreviousTagSize: %d", prevSize)
	}
	if got := m.BytesWritten(); got != uint64(len(raw)) {
		t.Fatalf("BytesWritten mismatch: got %d want %d", got, len(raw))
	}
}

func TestTagTypeString(t *testing.T) {
	cases := map[TagType]string{
		TagTypeAudio:      "Audio",
		TagTypeVideo:      "Video",
		TagTypeScriptData: "ScriptData",
		TagType(99):       "Unknown(99)",
	}
	for in, want := range cases {
		if got := in.String(); got != want {
			t.Fatalf("TagType(%d).String() = %q, want %q", in, got, want)
		}
	}
}
