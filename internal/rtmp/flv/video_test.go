package flv

import "testing"

func TestParseVideoTagLegacyAVC(t *testing.T) {
	nalu := []byte{0xAA, 0xBB}
	raw := EncodeLegacyAVCTag(FrameTypeKey, AVCPacketTypeNALU, -5, nalu)
	tag, err := ParseVideoTag(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tag.Extended {
		t.Fatalf("expected legacy tag")
	}
	if tag.FrameType != FrameTypeKey || tag.LegacyCodec != LegacyCodecAVC {
		t.Fatalf("unexpected header fields: %+v", tag)
	}
	if tag.AVCPacketType != AVCPacketTypeNALU {
		t.Fatalf("unexpected packet type: %v", tag.AVCPacketType)
	}
	if tag.CompositionTime != -5 {
		t.Fatalf("composition time roundtrip failed: got %d", tag.CompositionTime)
	}
	if string(tag.Payload) != string(nalu) {
		t.Fatalf("payload mismatch: %x", tag.Payload)
	}
}

func TestParseVideoTagExtended(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	raw := EncodeExtendedVideoTag(FrameTypeKey, PacketTypeCodedFrames, FourCCHEVC, payload)
	tag, err := ParseVideoTag(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tag.Extended {
		t.Fatalf("expected extended tag")
	}
	if tag.FourCC != FourCCHEVC {
		t.Fatalf("fourcc mismatch: %s", tag.FourCC)
	}
	if tag.PacketType != PacketTypeCodedFrames {
		t.Fatalf("packet type mismatch: %v", tag.PacketType)
	}
	if string(tag.Payload) != string(payload) {
		t.Fatalf("payload mismatch: %x", tag.Payload)
	}
}

func TestAVCDecoderConfigurationRecordEncode(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1F, 0xAA}
	pps := []byte{0x68, 0xCE}
	rec := BuildAVCDecoderConfigurationRecord(sps, pps)
	encoded := rec.Encode()
	if encoded[0] != 0x01 {
		t.Fatalf("expected configurationVersion=1, got %d", encoded[0])
	}
	if encoded[1] != sps[1] || encoded[2] != sps[2] || encoded[3] != sps[3] {
		t.Fatalf("profile/compat/level not copied from sps")
	}
	numSPS := encoded[5] & 0x1F
	if numSPS != 1 {
		t.Fatalf("expected 1 sps, got %d", numSPS)
	}
}

func TestHEVCDecoderConfigurationRecordClassifiesNALUs(t *testing.T) {
	vps := []byte{hevcNALTypeVPS << 1, 0x01}
	sps := []byte{hevcNALTypeSPS << 1, 0x01}
	pps := []byte{hevcNALTypePPS << 1, 0x01}
	rec := BuildHEVCDecoderConfigurationRecord([][]byte{vps, sps, pps})
	if len(rec.SPS) != 1 || len(rec.PPS) != 1 {
		t.Fatalf("expected one sps and one pps, got %+v", rec)
	}
	encoded := rec.Encode()
	if encoded[0] != 0x01 {
		t.Fatalf("expected configurationVersion=1, got %d", encoded[0])
	}
}
