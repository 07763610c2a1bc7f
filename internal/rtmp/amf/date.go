package amf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// markerDate is the AMF0 type marker for Date (0x0B).
const markerDate = 0x0B

// EncodeDate writes an AMF0 Date value to w.
// Wire format: 0x0B | 8-byte IEEE754 double (millis since epoch, big-endian) | 2-byte timezone (big-endian, conventionally 0).
func EncodeDate(w io.Writer, d Date) error {
	var buf [1 + 8 + 2]byte
	buf[0] = markerDate
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(d.Millis))
	binary.BigEndian.PutUint16(buf[9:11], uint16(d.TimeZone))
	if _, err := w.Write(buf[:]); err != nil {
		return amferrors.NewAMFError("encode.date.write", err)
	}
	return nil
}

// DecodeDate reads an AMF0 Date value from r.
func DecodeDate(r io.Reader) (Date, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return Date{}, amferrors.NewAMFError("decode.date.marker.read", err)
	}
	if m[0] != markerDate {
		return Date{}, amferrors.NewAMFError("decode.date.marker", fmt.Errorf("expected 0x%02x got 0x%02x", markerDate, m[0]))
	}
	var body [10]byte
	if _, err := io.ReadFull(r, body[:]); err != nil {
		return Date{}, amferrors.NewAMFError("decode.date.read", err)
	}
	millis := math.Float64frombits(binary.BigEndian.Uint64(body[0:8]))
	tz := int16(binary.BigEndian.Uint16(body[8:10]))
	return Date{Millis: millis, TimeZone: tz}, nil
}
