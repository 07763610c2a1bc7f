package flv

import (
	"bytes"
	"testing"

	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
)

func TestOnMetaDataRoundTrip(t *testing.T) {
	m := &Metadata{
		Duration:        12.5,
		Width:           1920,
		Height:          1080,
		VideoCodecID:    7,
		FrameRate:       30,
		AudioCodecID:    10,
		AudioSampleRate: 44100,
		Stereo:          true,
		Encoder:         "go-rtmp",
		Extra:           amf.EcmaArray{"custom": "value"},
	}
	encoded, err := EncodeOnMetaData(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ParseOnMetaData(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Width != m.Width || got.Height != m.Height {
		t.Fatalf("dimensions mismatch: %+v", got)
	}
	if got.Encoder != m.Encoder {
		t.Fatalf("encoder mismatch: got %q want %q", got.Encoder, m.Encoder)
	}
	if !got.Stereo {
		t.Fatalf("expected stereo=true")
	}
	if got.Extra["custom"] != "value" {
		t.Fatalf("expected extra property to survive round trip, got %+v", got.Extra)
	}
}

func TestParseOnMetaDataRejectsWrongName(t *testing.T) {
	var buf bytes.Buffer
	if err := amf.EncodeString(&buf, "onOtherEvent"); err != nil {
		t.Fatalf("encode name: %v", err)
	}
	if err := amf.EncodeEcmaArray(&buf, amf.EcmaArray{}); err != nil {
		t.Fatalf("encode array: %v", err)
	}
	if _, err := ParseOnMetaData(buf.Bytes()); err == nil {
		t.Fatalf("expected error for mismatched script tag name")
	}
}

func TestWriteOnMetaData(t *testing.T) {
	var buf bytes.Buffer
	mx := NewMuxer(&buf)
	if err := mx.WriteOnMetaData(&Metadata{Width: 640, Height: 480}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected bytes written")
	}
}
