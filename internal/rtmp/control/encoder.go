package control

// Control Message Encoding
// Provides constructors for RTMP protocol control messages (types 1-6) per contracts/control.md.
// All control messages use CSID=2, MSID=0.
//
// Type IDs are the canonical set from chunk.TypeSetChunkSize..TypeSetPeerBandwidth
// (chunk/stub.go) rather than a locally duplicated enum, so the message
// layer has one source of truth for wire type numbers.

import (
	"encoding/binary"

	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
)

// Re-exported aliases kept for existing call sites in this package and its
// tests; prefer chunk.TypeSetChunkSize etc. directly in new code.
const (
	TypeSetChunkSize          = chunk.TypeSetChunkSize
	TypeAbortMessage          = chunk.TypeAbort
	TypeAcknowledgement       = chunk.TypeAcknowledgement
	TypeUserControl           = chunk.TypeUserControl
	TypeWindowAcknowledgement = chunk.TypeWindowAckSize
	TypeSetPeerBandwidth      = chunk.TypeSetPeerBandwidth
)

// User Control (Type 4) event type IDs, per the RTMP spec's full event set
// (only StreamBegin/PingRequest/PingResponse were previously modeled; the
// rest are needed once the FLV/transport layers start tracking buffer
// length and recorded-stream notifications).
const (
	UCStreamBegin      uint16 = 0
	UCStreamEOF        uint16 = 1
	UCStreamDry        uint16 = 2
	UCSetBufferLength  uint16 = 3
	UCStreamIsRecorded uint16 = 4
	UCPingRequest      uint16 = 6
	UCPingResponse     uint16 = 7
)

// newControlMessage builds a *chunk.Message with standard control channel fields.
func newControlMessage(typeID uint8, payload []byte) *chunk.Message {
	return &chunk.Message{
		CSID:            2, // protocol control channel
		Timestamp:       0, // control messages here use timestamp=0
		MessageLength:   uint32(len(payload)),
		TypeID:          typeID,
		MessageStreamID: 0, // always 0 for control
		Payload:         payload,
	}
}

// EncodeSetChunkSize creates a Type 1 Set Chunk Size control message.
func EncodeSetChunkSize(size uint32) *chunk.Message {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], size)
	return newControlMessage(TypeSetChunkSize, p[:])
}

// EncodeAbortMessage creates a Type 2 Abort Message control message (payload = CSID to abort).
func EncodeAbortMessage(csid uint32) *chunk.Message {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], csid)
	return newControlMessage(TypeAbortMessage, p[:])
}

// EncodeAcknowledgement creates a Type 3 Acknowledgement control message.
func EncodeAcknowledgement(seq uint32) *chunk.Message {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], seq)
	return newControlMessage(TypeAcknowledgement, p[:])
}

// encodeUserControl helper for User Control (Type 4) events.
func encodeUserControl(event uint16, data4 uint32, includeData bool) *chunk.Message {
	// Event types we emit here have exactly 4 bytes of data except those we purposely omit.
	if includeData {
		var payload [6]byte
		binary.BigEndian.PutUint16(payload[0:2], event)
		binary.BigEndian.PutUint32(payload[2:6], data4)
		return newControlMessage(TypeUserControl, payload[:])
	}
	var payload2 [2]byte
	binary.BigEndian.PutUint16(payload2[0:2], event)
	return newControlMessage(TypeUserControl, payload2[:])
}

// EncodeUserControlStreamBegin creates a User Control Stream Begin (event 0) message.
func EncodeUserControlStreamBegin(streamID uint32) *chunk.Message {
	return encodeUserControl(UCStreamBegin, streamID, true)
}

// EncodeUserControlPingRequest creates a Ping Request (event 6) user control message.
func EncodeUserControlPingRequest(ts uint32) *chunk.Message {
	return encodeUserControl(UCPingRequest, ts, true)
}

// EncodeUserControlPingResponse creates a Ping Response (event 7) user control message.
func EncodeUserControlPingResponse(ts uint32) *chunk.Message {
	return encodeUserControl(UCPingResponse, ts, true)
}

// EncodeUserControlStreamEOF creates a Stream EOF (event 1) user control
// message, sent when a play session runs out of data (e.g. a VOD stream
// reaching its end, or a live source going away without an explicit
// deleteStream).
func EncodeUserControlStreamEOF(streamID uint32) *chunk.Message {
	return encodeUserControl(UCStreamEOF, streamID, true)
}

// EncodeUserControlStreamDry creates a StreamDry (event 2) user control
// message, sent when the server has no
// more buffered data for a stream at the moment (distinct from EOF: more
// may arrive later).
func EncodeUserControlStreamDry(streamID uint32) *chunk.Message {
	return encodeUserControl(UCStreamDry, streamID, true)
}

// EncodeUserControlSetBufferLength creates a Set Buffer Length (event 3)
// user control message; data4 here is the client-requested buffer length in
// milliseconds echoed back, not a stream id, so it's encoded with the raw
// helper rather than reusing the stream-id-shaped constructors.
func EncodeUserControlSetBufferLength(streamID uint32, bufferMillis uint32) *chunk.Message {
	var payload [10]byte
	binary.BigEndian.PutUint16(payload[0:2], UCSetBufferLength)
	binary.BigEndian.PutUint32(payload[2:6], streamID)
	binary.BigEndian.PutUint32(payload[6:10], bufferMillis)
	return newControlMessage(TypeUserControl, payload[:])
}

// EncodeUserControlStreamIsRecorded creates a Stream Is Recorded (event 4)
// user control message, announced immediately after Stream Begin when the
// requested stream resolves to a recorded (as opposed to live) source.
func EncodeUserControlStreamIsRecorded(streamID uint32) *chunk.Message {
	return encodeUserControl(UCStreamIsRecorded, streamID, true)
}

// EncodeWindowAcknowledgementSize creates a Type 5 Window Acknowledgement Size control message.
func EncodeWindowAcknowledgementSize(size uint32) *chunk.Message {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], size)
	return newControlMessage(TypeWindowAcknowledgement, p[:])
}

// EncodeSetPeerBandwidth creates a Type 6 Set Peer Bandwidth control message.
func EncodeSetPeerBandwidth(bandwidth uint32, limitType uint8) *chunk.Message {
	var p [5]byte
	binary.BigEndian.PutUint32(p[0:4], bandwidth)
	p[4] = limitType
	return newControlMessage(TypeSetPeerBandwidth, p[:])
}
