package amf

import (
	"encoding/binary"
	"fmt"
	"io"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// markerReference is the AMF0 type marker for Reference (0x07).
const markerReference = 0x07

// EncodeReference writes an AMF0 Reference value (an index into a peer's
// complex-object table) to w. This package always encodes objects by value,
// so EncodeReference exists only for peers/tests that need to emit one
// explicitly.
func EncodeReference(w io.Writer, ref Reference) error {
	var buf [1 + 2]byte
	buf[0] = markerReference
	binary.BigEndian.PutUint16(buf[1:], ref.Index)
	if _, err := w.Write(buf[:]); err != nil {
		return amferrors.NewAMFError("encode.reference.write", err)
	}
	return nil
}

// DecodeReference reads an AMF0 Reference value from r.
func DecodeReference(r io.Reader) (Reference, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return Reference{}, amferrors.NewAMFError("decode.reference.marker.read", err)
	}
	if m[0] != markerReference {
		return Reference{}, amferrors.NewAMFError("decode.reference.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerReference, m[0]))
	}
	var idx [2]byte
	if _, err := io.ReadFull(r, idx[:]); err != nil {
		return Reference{}, amferrors.NewAMFError("decode.reference.read", err)
	}
	return Reference{Index: binary.BigEndian.Uint16(idx[:])}, nil
}
