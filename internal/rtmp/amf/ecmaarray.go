package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
	"github.com/alxayo/go-rtmp/internal/logger"
)

// markerEcmaArray is the AMF0 type marker for ECMA Array (0x08). Framing is
// identical to Object save for the leading 4-byte "approximate count" hint.
const markerEcmaArray = 0x08

// EncodeEcmaArray writes an AMF0 ECMA Array to w. Keys are emitted in
// lexicographic order for deterministic output (matches EncodeObject).
func EncodeEcmaArray(w io.Writer, m EcmaArray) error {
	var hdr [1 + 4]byte
	hdr[0] = markerEcmaArray
	binary.BigEndian.PutUint32(hdr[1:], uint32(len(m)))
	if _, err := w.Write(hdr[:]); err != nil {
		return amferrors.NewAMFError("encode.ecmaarray.header.write", err)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var klen [2]byte
	for _, k := range keys {
		kb := []byte(k)
		if len(kb) > 0xFFFF {
			return amferrors.NewAMFError("encode.ecmaarray.key.length", fmt.Errorf("key '%s' length %d exceeds 65535", k, len(kb)))
		}
		binary.BigEndian.PutUint16(klen[:], uint16(len(kb)))
		if _, err := w.Write(klen[:]); err != nil {
			return amferrors.NewAMFError("encode.ecmaarray.key.length.write", err)
		}
		if len(kb) > 0 {
			if _, err := w.Write(kb); err != nil {
				return amferrors.NewAMFError("encode.ecmaarray.key.write", err)
			}
		}
		if err := encodeAny(w, m[k]); err != nil {
			return amferrors.NewAMFError("encode.ecmaarray.value", fmt.Errorf("key '%s': %w", k, err))
		}
	}
	if _, err := w.Write([]byte{0x00, 0x00, markerObjectEnd}); err != nil {
		return amferrors.NewAMFError("encode.ecmaarray.end.write", err)
	}
	return nil
}

// DecodeEcmaArray decodes an AMF0 ECMA Array from r. A count hint that
// disagrees with the number of pairs actually read is logged as a warning,
// never treated as an error: several common encoders get the hint wrong.
func DecodeEcmaArray(r io.Reader) (EcmaArray, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecmaarray.marker.read", err)
	}
	if m[0] != markerEcmaArray {
		return nil, amferrors.NewAMFError("decode.ecmaarray.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerEcmaArray, m[0]))
	}
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.ecmaarray.count.read", err)
	}
	hint := binary.BigEndian.Uint32(countBuf[:])

	out := make(EcmaArray)
	for {
		var klenBuf [2]byte
		if _, err := io.ReadFull(r, klenBuf[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ecmaarray.key.length.read", err)
		}
		klen := binary.BigEndian.Uint16(klenBuf[:])
		if klen == 0 {
			var end [1]byte
			if _, err := io.ReadFull(r, end[:]); err != nil {
				return nil, amferrors.NewAMFError("decode.ecmaarray.end.read", err)
			}
			if end[0] != markerObjectEnd {
				return nil, amferrors.NewAMFError("decode.ecmaarray.end.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerObjectEnd, end[0]))
			}
			break
		}
		keyBytes := make([]byte, klen)
		if _, err := io.ReadFull(r, keyBytes); err != nil {
			return nil, amferrors.NewAMFError("decode.ecmaarray.key.read", err)
		}
		key := string(keyBytes)

		var valMarker [1]byte
		if _, err := io.ReadFull(r, valMarker[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.ecmaarray.value.marker.read", err)
		}
		val, err := decodeValueWithMarker(valMarker[0], r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.ecmaarray.value", fmt.Errorf("key '%s': %w", key, err))
		}
		out[key] = val
	}

	if uint32(len(out)) != hint {
		logger.Warn("amf0 ecma array count hint mismatch", "hint", hint, "actual", len(out))
	}
	return out, nil
}
