package amf

import (
	"encoding/binary"
	"fmt"
	"io"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// markerLongString is the AMF0 type marker for Long String (0x0C).
const markerLongString = 0x0C

// EncodeLongString writes an AMF0 Long String to w.
// Wire format: 0x0C | 4-byte big-endian length | UTF-8 bytes. Unlike String,
// there is no 65535-byte ceiling.
func EncodeLongString(w io.Writer, s LongString) error {
	b := []byte(s)
	var hdr [1 + 4]byte
	hdr[0] = markerLongString
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return amferrors.NewAMFError("encode.longstring.write.header", err)
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return amferrors.NewAMFError("encode.longstring.write.body", err)
	}
	return nil
}

// DecodeLongString reads an AMF0 Long String from r.
func DecodeLongString(r io.Reader) (LongString, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return "", amferrors.NewAMFError("decode.longstring.marker.read", err)
	}
	if m[0] != markerLongString {
		return "", amferrors.NewAMFError("decode.longstring.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerLongString, m[0]))
	}
	var ln [4]byte
	if _, err := io.ReadFull(r, ln[:]); err != nil {
		return "", amferrors.NewAMFError("decode.longstring.length.read", err)
	}
	l := binary.BigEndian.Uint32(ln[:])
	if l == 0 {
		return "", nil
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", amferrors.NewAMFError("decode.longstring.read", err)
	}
	return LongString(buf), nil
}
