package amf

import (
	"fmt"
	"io"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// markerUndefined is the AMF0 type marker for Undefined (0x06).
const markerUndefined = 0x06

// EncodeUndefined writes an AMF0 Undefined value (single marker byte 0x06, no payload) to w.
func EncodeUndefined(w io.Writer) error {
	if _, err := w.Write([]byte{markerUndefined}); err != nil {
		return amferrors.NewAMFError("encode.undefined.write", err)
	}
	return nil
}

// DecodeUndefined reads an AMF0 Undefined value from r and returns Undefined{}.
func DecodeUndefined(r io.Reader) (Undefined, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Undefined{}, amferrors.NewAMFError("decode.undefined.marker.read", err)
	}
	if b[0] != markerUndefined {
		return Undefined{}, amferrors.NewAMFError("decode.undefined.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerUndefined, b[0]))
	}
	return Undefined{}, nil
}
