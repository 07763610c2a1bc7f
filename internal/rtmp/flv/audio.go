package flv

import "fmt"

// SoundFormat is the 4-bit audio codec id carried in the high nibble of an
// FLV audio tag's first byte.
type SoundFormat uint8

const (
	SoundFormatPCM        SoundFormat = 0
	SoundFormatADPCM      SoundFormat = 1
	SoundFormatMP3        SoundFormat = 2
	SoundFormatNellymoser SoundFormat = 5
	SoundFormatG711A      SoundFormat = 7
	SoundFormatG711Mu     SoundFormat = 8
	SoundFormatAAC        SoundFormat = 10
	SoundFormatSpeex      SoundFormat = 11
	SoundFormatMP38k      SoundFormat = 14
)

// SoundRate is the sampling rate field (bits 3-2 of the audio tag header).
// It is meaningless for AAC, whose actual rate lives in the AudioSpecificConfig.
type SoundRate uint8

const (
	SoundRate5512  SoundRate = 0
	SoundRate11025 SoundRate = 1
	SoundRate22050 SoundRate = 2
	SoundRate44100 SoundRate = 3
)

// ToHz returns the nominal sample rate in Hz for the legacy SoundRate field.
func (r SoundRate) ToHz() int {
	switch r {
	case SoundRate5512:
		return 5512
	case SoundRate11025:
		return 11025
	case SoundRate22050:
		return 22050
	case SoundRate44100:
		return 44100
	default:
		return 0
	}
}

// AACPacketType is the second byte of an AAC (SoundFormatAAC) audio tag.
type AACPacketType uint8

const (
	AACPacketTypeSequenceHeader AACPacketType = 0
	AACPacketTypeRaw            AACPacketType = 1
)

// AudioTag is the parsed shape of an FLV/RTMP audio tag.
type AudioTag struct {
	Format     SoundFormat
	Rate       SoundRate
	Is16Bit    bool
	Stereo     bool
	AACPacket  AACPacketType // valid when Format == SoundFormatAAC
	Payload    []byte
}

// ParseAudioTag decodes an FLV audio tag header and returns the remaining
// payload (for AAC, the bytes after the AACPacketType byte; for anything
// else, the bytes after the single header byte).
func ParseAudioTag(data []byte) (*AudioTag, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("flv.audio: empty tag")
	}
	b0 := data[0]
	tag := &AudioTag{
		Format:  SoundFormat((b0 >> 4) & 0x0F),
		Rate:    SoundRate((b0 >> 2) & 0x03),
		Is16Bit: b0&0x02 != 0,
		Stereo:  b0&0x01 != 0,
	}
	if tag.Format != SoundFormatAAC {
		tag.Payload = data[1:]
		return tag, nil
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("flv.audio: aac tag truncated (need packet type)")
	}
	tag.AACPacket = AACPacketType(data[1])
	tag.Payload = data[2:]
	return tag, nil
}

// EncodeAACTag builds an AAC audio tag: header byte (fixed at 44.1kHz/16-bit/
// stereo, the conventional flags for AAC since the real parameters live in
// the AudioSpecificConfig) + AACPacketType + payload.
func EncodeAACTag(pt AACPacketType, payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	out[0] = byte(SoundFormatAAC)<<4 | byte(SoundRate44100)<<2 | 0x02 | 0x01
	out[1] = byte(pt)
	copy(out[2:], payload)
	return out
}

// aacSampleRates is the MPEG-4 sampling_frequency_index table (ISO/IEC
// 14496-3 Table 1.16), index 13/14 reserved and 15 meaning "explicit".
var aacSampleRates = [16]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350, 0, 0, 0,
}

// AudioSpecificConfig is the minimal MPEG-4 AudioSpecificConfig (ISO/IEC
// 14496-3 §1.6.2.1) needed to build an AAC sequence header: object type,
// sampling rate index, and channel configuration.
type AudioSpecificConfig struct {
	ObjectType        uint8
	SampleRateIndex   uint8
	ChannelConfig     uint8
}

// SampleRateHz resolves the sampling_frequency_index to Hz, or 0 if the
// index is reserved/explicit.
func (c AudioSpecificConfig) SampleRateHz() int {
	if int(c.SampleRateIndex) >= len(aacSampleRates) {
		return 0
	}
	return aacSampleRates[c.SampleRateIndex]
}

// Encode serializes the two-byte AudioSpecificConfig used as the payload of
// an AAC sequence header tag: 5 bits object type, 4 bits sample rate index,
// 4 bits channel config, 3 bits reserved/padding.
func (c AudioSpecificConfig) Encode() []byte {
	b0 := (c.ObjectType << 3) | (c.SampleRateIndex >> 1)
	b1 := (c.SampleRateIndex&0x01)<<7 | (c.ChannelConfig << 3)
	return []byte{b0, b1}
}

// ParseAudioSpecificConfig decodes the payload of an AAC sequence header tag.
func ParseAudioSpecificConfig(data []byte) (*AudioSpecificConfig, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("flv.audio: AudioSpecificConfig truncated")
	}
	return &AudioSpecificConfig{
		ObjectType:      data[0] >> 3,
		SampleRateIndex: (data[0]&0x07)<<1 | data[1]>>7,
		ChannelConfig:   (data[1] >> 3) & 0x0F,
	}, nil
}

// ADTSHeader is a parsed 7-byte ADTS frame header (ISO/IEC 13818-7 Annex B),
// the framing AAC streams use outside of RTMP/FLV (e.g. demuxing an AAC
// elementary stream pulled from an HLS segment before republishing over
// RTMP).
type ADTSHeader struct {
	ObjectType      uint8
	SampleRateIndex uint8
	ChannelConfig   uint8
	FrameLength     int // includes the header (7 bytes, or 9 with CRC)
}

// ParseADTSHeader decodes the fixed + variable ADTS header fields needed to
// derive an AudioSpecificConfig and locate the next frame.
func ParseADTSHeader(data []byte) (*ADTSHeader, error) {
	if len(data) < 7 {
		return nil, fmt.Errorf("flv.audio: adts header truncated")
	}
	if data[0] != 0xFF || data[1]&0xF0 != 0xF0 {
		return nil, fmt.Errorf("flv.audio: missing adts syncword")
	}
	protectionAbsent := data[1]&0x01 != 0
	h := &ADTSHeader{
		ObjectType:      ((data[2] >> 6) & 0x03) + 1, // ADTS profile -> AudioObjectType
		SampleRateIndex: (data[2] >> 2) & 0x0F,
		ChannelConfig:   (data[2]&0x01)<<2 | (data[3]>>6)&0x03,
	}
	frameLen := (int(data[3]&0x03) << 11) | (int(data[4]) << 3) | (int(data[5]>>5)&0x07)
	h.FrameLength = frameLen
	_ = protectionAbsent
	return h, nil
}

// ToAudioSpecificConfig converts the ADTS header fields into the
// AudioSpecificConfig shape carried by an AAC sequence header tag.
func (h *ADTSHeader) ToAudioSpecificConfig() *AudioSpecificConfig {
	return &AudioSpecificConfig{
		ObjectType:      h.ObjectType,
		SampleRateIndex: h.SampleRateIndex,
		ChannelConfig:   h.ChannelConfig,
	}
}

// SplitADTSFrames walks a buffer of concatenated ADTS frames (as produced by
// many AAC encoders/muxers) and returns each frame's raw bytes including its
// header.
func SplitADTSFrames(data []byte) ([][]byte, error) {
	var frames [][]byte
	for len(data) > 0 {
		h, err := ParseADTSHeader(data)
		if err != nil {
			return nil, err
		}
		if h.FrameLength < 7 || h.FrameLength > len(data) {
			return nil, fmt.Errorf("flv.audio: adts frame length out of range: %d", h.FrameLength)
		}
		frames = append(frames, data[:h.FrameLength])
		data = data[h.FrameLength:]
	}
	return frames, nil
}

// StripADTSHeader returns the raw AAC payload of an ADTS frame, i.e. the
// bytes RTMP/FLV wants after the AudioSpecificConfig has already been sent
// once as a sequence header (RTMP AAC "raw" packets carry no per-frame ADTS
// framing, unlike a standalone .aac file). The 2-byte CRC that follows the
// header when protection_absent is 0 is skipped as well.
func StripADTSHeader(frame []byte) ([]byte, error) {
	h, err := ParseADTSHeader(frame)
	if err != nil {
		return nil, err
	}
	hdrLen := 7
	if frame[1]&0x01 == 0 { // protection_absent=0: CRC present
		hdrLen = 9
	}
	if h.FrameLength > len(frame) {
		return nil, fmt.Errorf("flv.audio: adts frame length exceeds buffer")
	}
	if h.FrameLength < hdrLen {
		return nil, fmt.Errorf("flv.audio: adts frame length %d shorter than header", h.FrameLength)
	}
	return frame[hdrLen:h.FrameLength], nil
}
