package flv

import (
	"encoding/binary"
	"fmt"
)

// FrameType is the 4-bit frame type field shared by both the legacy and
// E-RTMP video tag shapes.
type FrameType uint8

const (
	FrameTypeKey            FrameType = 1
	FrameTypeInter          FrameType = 2
	FrameTypeDisposableInter FrameType = 3
	FrameTypeGeneratedKey   FrameType = 4
	FrameTypeCommand        FrameType = 5
)

// Legacy (pre E-RTMP) video codec IDs, carried in the low nibble of the
// first video tag byte.
type LegacyCodecID uint8

const (
	LegacyCodecSorensonH263 LegacyCodecID = 2
	LegacyCodecScreenVideo  LegacyCodecID = 3
	LegacyCodecVP6          LegacyCodecID = 4
	LegacyCodecVP6Alpha     LegacyCodecID = 5
	LegacyCodecScreenVideo2 LegacyCodecID = 6
	LegacyCodecAVC          LegacyCodecID = 7
)

// AVCPacketType is the second byte of a legacy AVC (codec id 7) video tag.
type AVCPacketType uint8

const (
	AVCPacketTypeSequenceHeader AVCPacketType = 0
	AVCPacketTypeNALU           AVCPacketType = 1
	AVCPacketTypeEndOfSequence  AVCPacketType = 2
)

// exHeaderFlag marks the E-RTMP ("enhanced RTMP") extended video tag shape:
// when set, the top bit of the first tag byte replaces the legacy codec-id
// nibble with a FourCC + PacketType scheme that can describe HEVC, AV1, and
// VP9 without the legacy CodecID enum ever being extended for them.
const exHeaderFlag = 0x80

// PacketType is the low nibble of an E-RTMP extended video tag's first byte.
type PacketType uint8

const (
	PacketTypeSequenceStart       PacketType = 0
	PacketTypeCodedFrames         PacketType = 1
	PacketTypeSequenceEnd         PacketType = 2
	PacketTypeCodedFramesX        PacketType = 3 // CompositionTime omitted, implicitly 0
	PacketTypeMetadata            PacketType = 4
	PacketTypeMPEG2TSSequenceStart PacketType = 5
)

// FourCC identifies an E-RTMP video codec (4 ASCII bytes, e.g. "hvc1" for
// HEVC, "av01" for AV1, "vp09" for VP9).
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

var (
	FourCCHEVC FourCC = [4]byte{'h', 'v', 'c', '1'}
	FourCCAV1  FourCC = [4]byte{'a', 'v', '0', '1'}
	FourCCVP9  FourCC = [4]byte{'v', 'p', '0', '9'}
)

// VideoTag is the parsed shape of a video tag's leading bytes, legacy or
// E-RTMP, normalized into one structure so downstream code (recorder,
// relay) doesn't need two code paths for the common fields.
type VideoTag struct {
	Extended        bool
	FrameType       FrameType
	LegacyCodec     LegacyCodecID // valid when !Extended
	AVCPacketType   AVCPacketType // valid when !Extended && LegacyCodec == LegacyCodecAVC
	CompositionTime int32         // valid when !Extended && LegacyCodec == LegacyCodecAVC, 24-bit signed
	FourCC          FourCC        // valid when Extended
	PacketType      PacketType    // valid when Extended
	Payload         []byte
}

// ParseVideoTag decodes a video tag's header (legacy or E-RTMP extended)
// and returns the remaining payload bytes.
func ParseVideoTag(data []byte) (*VideoTag, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("flv.video: empty tag")
	}
	b0 := data[0]
	tag := &VideoTag{}
	if b0&exHeaderFlag != 0 {
		tag.Extended = true
		tag.FrameType = FrameType((b0 >> 4) & 0x07)
		tag.PacketType = PacketType(b0 & 0x0F)
		if len(data) < 5 {
			return nil, fmt.Errorf("flv.video: extended tag truncated (need FourCC)")
		}
		copy(tag.FourCC[:], data[1:5])
		tag.Payload = data[5:]
		return tag, nil
	}
	tag.FrameType = FrameType((b0 >> 4) & 0x0F)
	tag.LegacyCodec = LegacyCodecID(b0 & 0x0F)
	if tag.LegacyCodec != LegacyCodecAVC {
		tag.Payload = data[1:]
		return tag, nil
	}
	if len(data) < 5 {
		return nil, fmt.Errorf("flv.video: avc tag truncated (need packet type + composition time)")
	}
	tag.AVCPacketType = AVCPacketType(data[1])
	ct := int32(data[2])<<16 | int32(data[3])<<8 | int32(data[4])
	if ct&0x800000 != 0 { // sign-extend 24-bit value
		ct |= ^int32(0xFFFFFF)
	}
	tag.CompositionTime = ct
	tag.Payload = data[5:]
	return tag, nil
}

// EncodeLegacyAVCTag builds a legacy (codec id 7) video tag: header byte,
// AVCPacketType, 24-bit composition time, then payload.
func EncodeLegacyAVCTag(frameType FrameType, pt AVCPacketType, compositionTime int32, payload []byte) []byte {
	out := make([]byte, 5+len(payload))
	out[0] = byte(frameType)<<4 | byte(LegacyCodecAVC)
	out[1] = byte(pt)
	out[2] = byte(compositionTime >> 16)
	out[3] = byte(compositionTime >> 8)
	out[4] = byte(compositionTime)
	copy(out[5:], payload)
	return out
}

// EncodeExtendedVideoTag builds an E-RTMP video tag (HEVC/AV1/VP9 etc.):
// header byte with the extended-header flag set, FourCC, then payload.
func EncodeExtendedVideoTag(frameType FrameType, pt PacketType, fourCC FourCC, payload []byte) []byte {
	out := make([]byte, 5+len(payload))
	out[0] = exHeaderFlag | byte(frameType)<<4 | byte(pt)
	copy(out[1:5], fourCC[:])
	copy(out[5:], payload)
	return out
}

// AVCDecoderConfigurationRecord is the structure carried in an AVC sequence
// header tag (ISO/IEC 14496-15 §5.2.4.1): profile/level, NALU length size,
// and the SPS/PPS parameter sets a decoder needs before any NALU arrives.
type AVCDecoderConfigurationRecord struct {
	ProfileIndication    uint8
	ProfileCompatibility uint8
	LevelIndication      uint8
	SPS                  [][]byte
	PPS                  [][]byte
}

// Encode serializes the record to its wire form.
func (r *AVCDecoderConfigurationRecord) Encode() []byte {
	var buf []byte
	buf = append(buf, 0x01, r.ProfileIndication, r.ProfileCompatibility, r.LevelIndication, 0xFF /* lengthSizeMinusOne=3 | reserved */)
	buf = append(buf, 0xE0|uint8(len(r.SPS))) // reserved bits | numOfSequenceParameterSets
	for _, sps := range r.SPS {
		buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
		buf = append(buf, sps...)
	}
	buf = append(buf, uint8(len(r.PPS)))
	for _, pps := range r.PPS {
		buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
		buf = append(buf, pps...)
	}
	return buf
}

// BuildAVCDecoderConfigurationRecord derives a configuration record from the
// first SPS/PPS pair seen on a stream (the common case; B/multi-SPS streams
// can append further parameter sets to the returned record before encoding).
func BuildAVCDecoderConfigurationRecord(sps, pps []byte) *AVCDecoderConfigurationRecord {
	rec := &AVCDecoderConfigurationRecord{SPS: [][]byte{sps}, PPS: [][]byte{pps}}
	if len(sps) >= 4 {
		rec.ProfileIndication = sps[1]
		rec.ProfileCompatibility = sps[2]
		rec.LevelIndication = sps[3]
	}
	return rec
}

// HEVCDecoderConfigurationRecord is a minimal HEVCDecoderConfigurationRecord
// (ISO/IEC 14496-15 §8.3.3.1) carrying only VPS/SPS/PPS as opaque NAL unit
// arrays; the fixed-size profile/tier/level fields this module doesn't
// negotiate are zeroed, which real HEVC decoders tolerate by re-deriving
// them from the SPS itself.
type HEVCDecoderConfigurationRecord struct {
	VPS [][]byte
	SPS [][]byte
	PPS [][]byte
}

// hevcNALUnitType extracts the NAL unit type from an HEVC NAL header (bits 6-1
// of the first byte).
func hevcNALUnitType(nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	return (nal[0] >> 1) & 0x3F
}

const (
	hevcNALTypeVPS = 32
	hevcNALTypeSPS = 33
	hevcNALTypePPS = 34
)

// Encode serializes the record to its wire form: a fixed 22-byte header
// (zeroed apart from version=1 in byte 0 and 0xF3, i.e. lengthSizeMinusOne=3,
// in byte 21), the array count, then one NAL-unit array per parameter set
// type present.
func (r *HEVCDecoderConfigurationRecord) Encode() []byte {
	buf := make([]byte, 22)
	buf[0] = 0x01 // configurationVersion
	buf[21] = 0xF3 | (3 << 0) // reserved bits | lengthSizeMinusOne=3, numOfArrays filled below via append count byte
	numArrays := 0
	arrays := [][2]interface{}{}
	if len(r.VPS) > 0 {
		numArrays++
		arrays = append(arrays, [2]interface{}{uint8(hevcNALTypeVPS), r.VPS})
	}
	if len(r.SPS) > 0 {
		numArrays++
		arrays = append(arrays, [2]interface{}{uint8(hevcNALTypeSPS), r.SPS})
	}
	if len(r.PPS) > 0 {
		numArrays++
		arrays = append(arrays, [2]interface{}{uint8(hevcNALTypePPS), r.PPS})
	}
	out := append(buf, uint8(numArrays))
	for _, a := range arrays {
		nalType := a[0].(uint8)
		nals := a[1].([][]byte)
		out = append(out, 0x80|nalType) // array_completeness=1 | NAL_unit_type
		out = append(out, byte(len(nals)>>8), byte(len(nals)))
		for _, nal := range nals {
			out = append(out, byte(len(nal)>>8), byte(len(nal)))
			out = append(out, nal...)
		}
	}
	return out
}

// BuildHEVCDecoderConfigurationRecord classifies a set of parameter-set NAL
// units (as they arrive interleaved in an HEVC sequence header) into VPS,
// SPS, and PPS arrays.
func BuildHEVCDecoderConfigurationRecord(nalUnits [][]byte) *HEVCDecoderConfigurationRecord {
	rec := &HEVCDecoderConfigurationRecord{}
	for _, nal := range nalUnits {
		switch hevcNALUnitType(nal) {
		case hevcNALTypeVPS:
			rec.VPS = append(rec.VPS, nal)
		case hevcNALTypeSPS:
			rec.SPS = append(rec.SPS, nal)
		case hevcNALTypePPS:
			rec.PPS = append(rec.PPS, nal)
		}
	}
	return rec
}

// sizePrefixed reads a uint16 big-endian length followed by that many
// bytes, returning the slice and the number of bytes consumed.
func sizePrefixed(b []byte) ([]byte, int, error) {
	if len(b) < 2 {
		return nil, 0, fmt.Errorf("flv.video: truncated length-prefixed field")
	}
	n := int(binary.BigEndian.Uint16(b))
	if len(b) < 2+n {
		return nil, 0, fmt.Errorf("flv.video: truncated length-prefixed field body")
	}
	return b[2 : 2+n], 2 + n, nil
}
