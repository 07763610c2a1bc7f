// Package flv implements the FLV container: the tag envelope shared by RTMP
// media messages and on-disk FLV files, legacy and E-RTMP (enhanced) video
// tag shapes, AVC/HEVC decoder configuration records, AAC ADTS parsing, and
// onMetaData construction.
package flv

import (
	"encoding/binary"
	"fmt"
	"io"
)

// TagType identifies the kind of FLV tag, per the FLV file format spec
// (audio/video/script data).
type TagType uint8

const (
	TagTypeAudio      TagType = 8
	TagTypeVideo      TagType = 9
	TagTypeScriptData TagType = 18
)

func (t TagType) String() string {
	switch t {
	case TagTypeAudio:
		return "Audio"
	case TagTypeVideo:
		return "Video"
	case TagTypeScriptData:
		return "ScriptData"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// headerSize is the fixed FLV file header length in bytes.
const headerSize = 9

// Muxer writes an FLV byte stream (file or HTTP-FLV response body) to an
// underlying io.Writer: one 9-byte header, a 4-byte zero PreviousTagSize,
// then a PreviousTagSize-prefixed tag per WriteTag call.
type Muxer struct {
	w            io.Writer
	wroteHeader  bool
	bytesWritten uint64
}

// NewMuxer wraps w as an FLV muxer. The header is written lazily on the
// first WriteHeader/WriteTag call so construction itself cannot fail.
func NewMuxer(w io.Writer) *Muxer {
	return &Muxer{w: w}
}

// WriteHeader writes the FLV signature, version, and audio/video present
// flags. Calling it more than once is a no-op.
func (m *Muxer) WriteHeader(hasVideo, hasAudio bool) error {
	if m.wroteHeader {
		return nil
	}
	var flags byte
	if hasVideo {
		flags |= 0x01
	}
	if hasAudio {
		flags |= 0x04
	}
	header := []byte{
		'F', 'L', 'V', 0x01, flags,
		0x00, 0x00, 0x00, headerSize,
		0x00, 0x00, 0x00, 0x00, // PreviousTagSize0
	}
	if _, err := m.w.Write(header); err != nil {
		return fmt.Errorf("flv.write_header: %w", err)
	}
	m.wroteHeader = true
	m.bytesWritten += uint64(len(header))
	return nil
}

// WriteTag writes a single FLV tag (11-byte header + payload + trailing
// PreviousTagSize). It lazily writes the file header first if needed,
// assuming both audio and video are present (the common streaming case);
// callers that know their stream is audio- or video-only should call
// WriteHeader explicitly beforehand.
func (m *Muxer) WriteTag(tagType TagType, timestamp uint32, payload []byte) error {
	if !m.wroteHeader {
		if err := m.WriteHeader(true, true); err != nil {
			return err
		}
	}
	dataSize := len(payload)
	if dataSize > 0xFFFFFF {
		return fmt.Errorf("flv.write_tag: payload too large: %d", dataSize)
	}
	var hdr [11]byte
	hdr[0] = byte(tagType)
	hdr[1] = byte(dataSize >> 16)
	hdr[2] = byte(dataSize >> 8)
	hdr[3] = byte(dataSize)
	hdr[4] = byte(timestamp >> 16)
	hdr[5] = byte(timestamp >> 8)
	hdr[6] = byte(timestamp)
	hdr[7] = byte(timestamp >> 24)
	// bytes 8-10 (StreamID) are always zero.
	if _, err := m.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("flv.write_tag.header: %w", err)
	}
	if dataSize > 0 {
		if _, err := m.w.Write(payload); err != nil {
			return fmt.Errorf("flv.write_tag.payload: %w", err)
		}
	}
	prevSize := uint32(11 + dataSize)
	var szBuf [4]byte
	binary.BigEndian.PutUint32(szBuf[:], prevSize)
	if _, err := m.w.Write(szBuf[:]); err != nil {
		return fmt.Errorf("flv.write_tag.prev_size: %w", err)
	}
	m.bytesWritten += uint64(11 + dataSize + 4)
	return nil
}

// BytesWritten returns the cumulative number of bytes emitted so far,
// including the file header.
func (m *Muxer) BytesWritten() uint64 { return m.bytesWritten }
