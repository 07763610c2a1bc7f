package amf

// Additional AMF0 value representations that don't map onto a plain Go
// primitive. Number/Boolean/String/Null/Object/StrictArray round-trip through
// float64/bool/string/nil/map[string]interface{}/[]interface{} directly; the
// types below exist only so a decoded value can be told apart from its
// nearest plain-Go neighbour and re-encoded with the same marker.

// Undefined represents the AMF0 Undefined value (marker 0x06). It is distinct
// from Null: some peers (e.g. command arguments omitted by the caller) send
// Undefined where others send Null, and callers may need to distinguish them.
type Undefined struct{}

// Date represents the AMF0 Date value (marker 0x0B): milliseconds since the
// Unix epoch as a float64, plus a timezone offset in minutes that senders are
// expected to leave at zero (the offset is part of the wire format but has no
// agreed-upon meaning across implementations).
type Date struct {
	Millis   float64
	TimeZone int16
}

// LongString represents the AMF0 Long String value (marker 0x0C): same
// content as String but framed with a 4-byte length, used by some peers for
// strings whose UTF-8 byte length exceeds 65535. EncodeValue/DecodeValue
// preserve the LongString/String distinction on round trip.
type LongString string

// EcmaArray represents the AMF0 ECMA Array value (marker 0x08): an
// associative array with a 4-byte "approximate count" hint that some
// encoders get wrong. DecodeEcmaArray logs a warning (never an error) when
// the hint disagrees with the number of key/value pairs actually present.
type EcmaArray map[string]interface{}

// Reference represents the AMF0 Reference value (marker 0x07): a 2-byte
// index into the encoder's complex-object table, used by encoders that
// dedupe repeated Object/EcmaArray/StrictArray values within one encode
// session. This package does not maintain that table itself (AMF0 objects
// are encoded by value here); Reference exists so a peer's reference can be
// decoded into a concrete value instead of failing the whole payload.
type Reference struct {
	Index uint16
}
