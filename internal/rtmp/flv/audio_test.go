package flv

import "testing"

func TestParseAudioTagAAC(t *testing.T) {
	raw := EncodeAACTag(AACPacketTypeRaw, []byte{0x11, 0x22, 0x33})
	tag, err := ParseAudioTag(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tag.Format != SoundFormatAAC {
		t.Fatalf("expected AAC format, got %d", tag.Format)
	}
	if tag.AACPacket != AACPacketTypeRaw {
		t.Fatalf("expected raw packet type, got %v", tag.AACPacket)
	}
	if len(tag.Payload) != 3 {
		t.Fatalf("payload length mismatch: %d", len(tag.Payload))
	}
}

func TestParseAudioTagNonAAC(t *testing.T) {
	raw := []byte{byte(SoundFormatMP3) << 4, 0xAA, 0xBB}
	tag, err := ParseAudioTag(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tag.Format != SoundFormatMP3 {
		t.Fatalf("expected MP3, got %d", tag.Format)
	}
	if len(tag.Payload) != 2 {
		t.Fatalf("expected 2 payload bytes, got %d", len(tag.Payload))
	}
}

func TestAudioSpecificConfigRoundTrip(t *testing.T) {
	cfg := AudioSpecificConfig{ObjectType: 2, SampleRateIndex: 4, ChannelConfig: 2}
	encoded := cfg.Encode()
	got, err := ParseAudioSpecificConfig(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *got != cfg {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, cfg)
	}
	if got.SampleRateHz() != 44100 {
		t.Fatalf("expected 44100 Hz, got %d", got.SampleRateHz())
	}
}

func TestADTSHeaderParseAndStrip(t *testing.T) {
	// A minimal synthetic ADTS header: frame length 10 (7 header + 3 payload).
	frame := []byte{
		0xFF, 0xF1, // syncword, MPEG-4, no CRC
		0x50, // profile=1(AAC LC)->objtype 2, sample rate idx 4 (44100), private=0
		0x80 | 0x00, // channel config bit + frame length high bits
		0x00, // frame length mid
		0xA0, // frame length low bits + buffer fullness high
		0x00, // buffer fullness low + frame count
		0x11, 0x22, 0x33,
	}
	// Patch the frame length bits precisely: frameLen = 10.
	frame[3] = (frame[3] &^ 0x03) | byte((10>>11)&0x03)
	frame[4] = byte((10 >> 3) & 0xFF)
	frame[5] = (frame[5] &^ 0xE0) | byte((10&0x07)<<5)

	h, err := ParseADTSHeader(frame)
	if err != nil {
		t.Fatalf("parse adts: %v", err)
	}
	if h.FrameLength != 10 {
		t.Fatalf("expected frame length 10, got %d", h.FrameLength)
	}
	payload, err := StripADTSHeader(frame)
	if err != nil {
		t.Fatalf("strip: %v", err)
	}
	if len(payload) != 3 {
		t.Fatalf("expected 3 raw payload bytes, got %d", len(payload))
	}
}
