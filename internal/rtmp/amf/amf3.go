package amf

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	amferrors "github.com/alxayo/go-rtmp/internal/errors"
)

// markerAvmPlus (0x11) is the AMF0 marker that switches the remainder of a
// value stream to AMF3 encoding. It is the only AMF0 marker whose payload is
// not itself an AMF0 value.
const markerAvmPlus = 0x11

// AMF3 type markers (ECMA-376 AMF3, Adobe spec appendix).
const (
	amf3Undefined   = 0x00
	amf3Null        = 0x01
	amf3False       = 0x02
	amf3True        = 0x03
	amf3Integer     = 0x04
	amf3Double      = 0x05
	amf3String      = 0x06
	amf3XMLDoc      = 0x07
	amf3Date        = 0x08
	amf3Array       = 0x09
	amf3Object      = 0x0A
	amf3XML         = 0x0B
	amf3ByteArray   = 0x0C
	amf3VectorInt   = 0x0D
	amf3VectorUInt  = 0x0E
	amf3VectorDoub  = 0x0F
	amf3VectorObj   = 0x10
	amf3Dictionary  = 0x11
)

// Integer29 is an AMF3 U29-range signed integer (-2^28 .. 2^28-1), kept
// distinct from Double so a round trip through this package preserves which
// wire marker the peer used.
type Integer29 int32

// ByteArray is an AMF3 ByteArray value: an opaque byte blob (used for binary
// command arguments and RTMPT-adjacent payloads).
type ByteArray []byte

// VectorInt, VectorUInt and VectorDouble are AMF3 typed-vector values. Fixed
// reports whether the vector's length is sealed on the wire (informational
// only; this package always decodes the vector's actual element count).
type VectorInt struct {
	Fixed bool
	Value []int32
}
type VectorUInt struct {
	Fixed bool
	Value []uint32
}
type VectorDouble struct {
	Fixed bool
	Value []float64
}

// AMF3Object is a general AMF3 object (dynamic and/or sealed members), used
// for anonymous objects and externalizable classes this package does not
// have a native Go type for. ClassName is "" for anonymous objects.
type AMF3Object struct {
	ClassName string
	Dynamic   bool
	Members   map[string]interface{}
}

// Decoder reads a sequence of AMF3 values sharing one set of
// string/object/trait reference tables, as required for correctly decoding
// multiple values inside a single command's argument list.
type Decoder struct {
	strings []string
	objects []interface{}
	traits  []amf3Trait
}

type amf3Trait struct {
	className   string
	dynamic     bool
	externalize bool
	members     []string
}

// NewDecoder returns an AMF3 decoder with empty reference tables, scoped to
// one encode/decode session (e.g. one command message).
func NewDecoder() *Decoder { return &Decoder{} }

// Encoder mirrors Decoder for the write side.
type Encoder struct {
	strings map[string]int
	objects map[interface{}]int
	traits  map[string]int
}

// NewEncoder returns an AMF3 encoder with empty reference tables.
func NewEncoder() *Encoder {
	return &Encoder{strings: make(map[string]int), objects: make(map[interface{}]int), traits: make(map[string]int)}
}

// readU29 decodes an AMF3 U29: 1-4 bytes, continuation bit 0x80 on bytes 1-3,
// the 4th byte (if reached) contributing all 8 bits.
func readU29(r io.Reader) (uint32, error) {
	var result uint32
	for i := 0; i < 4; i++ {
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		if i == 3 {
			result = (result << 8) | uint32(b[0])
			break
		}
		result = (result << 7) | uint32(b[0]&0x7F)
		if b[0]&0x80 == 0 {
			break
		}
	}
	return result, nil
}

func writeU29(w io.Writer, v uint32) error {
	v &= 0x3FFFFFFF
	switch {
	case v < 0x80:
		_, err := w.Write([]byte{byte(v)})
		return err
	case v < 0x4000:
		return writeBytes(w, byte(v>>7)|0x80, byte(v&0x7F))
	case v < 0x200000:
		return writeBytes(w, byte(v>>14)|0x80, byte((v>>7)&0x7F)|0x80, byte(v&0x7F))
	default:
		return writeBytes(w, byte(v>>22)|0x80, byte((v>>15)&0x7F)|0x80, byte((v>>8)&0x7F)|0x80, byte(v))
	}
}

func writeBytes(w io.Writer, bs ...byte) error {
	_, err := w.Write(bs)
	return err
}

// readU29Ref reads a U29 and splits it into (index, isReference): the low
// bit is the inline/reference discriminator shared by strings, objects and
// traits; isReference==false means the remaining bits are a byte/member
// count (for strings/ByteArray length, trait member count, etc), not a
// table index.
func readU29Ref(r io.Reader) (value uint32, isReference bool, err error) {
	u, err := readU29(r)
	if err != nil {
		return 0, false, err
	}
	if u&1 == 0 {
		return u >> 1, true, nil
	}
	return u >> 1, false, nil
}

// DecodeValue reads one AMF3 value from r, resolving references against d's
// tables and recording new inline values into them.
func (d *Decoder) DecodeValue(r io.Reader) (interface{}, error) {
	var m [1]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.marker.read", err)
	}
	switch m[0] {
	case amf3Undefined:
		return Undefined{}, nil
	case amf3Null:
		return nil, nil
	case amf3False:
		return false, nil
	case amf3True:
		return true, nil
	case amf3Integer:
		u, err := readU29(r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.integer", err)
		}
		return Integer29(int32(u<<3) >> 3), nil // sign-extend from 29 bits
	case amf3Double:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.double", err)
		}
		bits := uint64(0)
		for _, c := range b {
			bits = bits<<8 | uint64(c)
		}
		return math.Float64frombits(bits), nil
	case amf3String:
		return d.decodeString(r)
	case amf3Date:
		return d.decodeDate(r)
	case amf3Array:
		return d.decodeArray(r)
	case amf3Object:
		return d.decodeObject(r)
	case amf3ByteArray:
		return d.decodeByteArray(r)
	case amf3VectorInt:
		return d.decodeVectorInt(r)
	case amf3VectorUInt:
		return d.decodeVectorUInt(r)
	case amf3VectorDoub:
		return d.decodeVectorDouble(r)
	default:
		return nil, amferrors.NewAMFError("decode.amf3.unsupported", fmt.Errorf("unsupported AMF3 marker 0x%02x", m[0]))
	}
}

func (d *Decoder) decodeString(r io.Reader) (string, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return "", amferrors.NewAMFError("decode.amf3.string.header", err)
	}
	if isRef {
		if int(idx) >= len(d.strings) {
			return "", amferrors.NewAMFError("decode.amf3.string.reference", fmt.Errorf("index %d out of range", idx))
		}
		return d.strings[idx], nil
	}
	buf := make([]byte, idx)
	if idx > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", amferrors.NewAMFError("decode.amf3.string.read", err)
		}
	}
	s := string(buf)
	if s != "" { // empty string is never referenced/stored per spec
		d.strings = append(d.strings, s)
	}
	return s, nil
}

func (d *Decoder) decodeDate(r io.Reader) (Date, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return Date{}, amferrors.NewAMFError("decode.amf3.date.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(Date)
		if !ok {
			return Date{}, amferrors.NewAMFError("decode.amf3.date.reference", fmt.Errorf("index %d not a date", idx))
		}
		return v, nil
	}
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return Date{}, amferrors.NewAMFError("decode.amf3.date.read", err)
	}
	bits := uint64(0)
	for _, c := range b {
		bits = bits<<8 | uint64(c)
	}
	date := Date{Millis: math.Float64frombits(bits)}
	d.objects = append(d.objects, date)
	return date, nil
}

func (d *Decoder) decodeArray(r io.Reader) ([]interface{}, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.array.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].([]interface{})
		if !ok {
			return nil, amferrors.NewAMFError("decode.amf3.array.reference", fmt.Errorf("index %d not an array", idx))
		}
		return v, nil
	}
	// Dense count. Associative (string-keyed) portion, if any, precedes the
	// dense portion on the wire; read key/value pairs until the empty-key
	// sentinel, then the dense elements.
	out := make([]interface{}, 0, idx)
	d.objects = append(d.objects, out) // placeholder for self-referential arrays
	selfIdx := len(d.objects) - 1
	for {
		key, err := d.decodeString(r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.array.key", err)
		}
		if key == "" {
			break
		}
		// Associative entries are rare in RTMP command usage; decode and drop
		// the value so the dense portion still parses correctly.
		if _, err := d.DecodeValue(r); err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.array.assoc.value", err)
		}
	}
	for i := uint32(0); i < idx; i++ {
		v, err := d.DecodeValue(r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.array.element", fmt.Errorf("index %d: %w", i, err))
		}
		out = append(out, v)
	}
	d.objects[selfIdx] = out
	return out, nil
}

func (d *Decoder) decodeObject(r io.Reader) (*AMF3Object, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.object.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(*AMF3Object)
		if !ok {
			return nil, amferrors.NewAMFError("decode.amf3.object.reference", fmt.Errorf("index %d not an object", idx))
		}
		return v, nil
	}

	traitIdx, traitIsRef, err := readU29Ref(r)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.object.trait.header", err)
	}
	var tr amf3Trait
	if traitIsRef {
		if int(traitIdx) >= len(d.traits) {
			return nil, amferrors.NewAMFError("decode.amf3.object.trait.reference", fmt.Errorf("index %d out of range", traitIdx))
		}
		tr = d.traits[traitIdx]
	} else {
		externalize := traitIdx&1 != 0
		dynamic := traitIdx&2 != 0
		memberCount := traitIdx >> 2
		className, err := d.decodeString(r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.object.trait.classname", err)
		}
		members := make([]string, 0, memberCount)
		for i := uint32(0); i < memberCount; i++ {
			m, err := d.decodeString(r)
			if err != nil {
				return nil, amferrors.NewAMFError("decode.amf3.object.trait.member", err)
			}
			members = append(members, m)
		}
		tr = amf3Trait{className: className, dynamic: dynamic, externalize: externalize, members: members}
		d.traits = append(d.traits, tr)
	}

	obj := &AMF3Object{ClassName: tr.className, Dynamic: tr.dynamic, Members: make(map[string]interface{})}
	d.objects = append(d.objects, obj)

	if tr.externalize {
		return nil, amferrors.NewAMFError("decode.amf3.object.externalizable", fmt.Errorf("externalizable class %q not supported", tr.className))
	}

	for _, name := range tr.members {
		v, err := d.DecodeValue(r)
		if err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.object.sealed.value", fmt.Errorf("member %q: %w", name, err))
		}
		obj.Members[name] = v
	}
	if tr.dynamic {
		for {
			key, err := d.decodeString(r)
			if err != nil {
				return nil, amferrors.NewAMFError("decode.amf3.object.dynamic.key", err)
			}
			if key == "" {
				break
			}
			v, err := d.DecodeValue(r)
			if err != nil {
				return nil, amferrors.NewAMFError("decode.amf3.object.dynamic.value", fmt.Errorf("member %q: %w", key, err))
			}
			obj.Members[key] = v
		}
	}
	return obj, nil
}

func (d *Decoder) decodeByteArray(r io.Reader) (ByteArray, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return nil, amferrors.NewAMFError("decode.amf3.bytearray.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(ByteArray)
		if !ok {
			return nil, amferrors.NewAMFError("decode.amf3.bytearray.reference", fmt.Errorf("index %d not a byte array", idx))
		}
		return v, nil
	}
	buf := make([]byte, idx)
	if idx > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, amferrors.NewAMFError("decode.amf3.bytearray.read", err)
		}
	}
	ba := ByteArray(buf)
	d.objects = append(d.objects, ba)
	return ba, nil
}

func (d *Decoder) decodeVectorInt(r io.Reader) (VectorInt, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return VectorInt{}, amferrors.NewAMFError("decode.amf3.vectorint.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(VectorInt)
		if !ok {
			return VectorInt{}, amferrors.NewAMFError("decode.amf3.vectorint.reference", fmt.Errorf("index %d not a vector", idx))
		}
		return v, nil
	}
	var fixedByte [1]byte
	if _, err := io.ReadFull(r, fixedByte[:]); err != nil {
		return VectorInt{}, amferrors.NewAMFError("decode.amf3.vectorint.fixed", err)
	}
	out := VectorInt{Fixed: fixedByte[0] != 0, Value: make([]int32, idx)}
	for i := range out.Value {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return VectorInt{}, amferrors.NewAMFError("decode.amf3.vectorint.element", err)
		}
		out.Value[i] = int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	}
	d.objects = append(d.objects, out)
	return out, nil
}

func (d *Decoder) decodeVectorUInt(r io.Reader) (VectorUInt, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return VectorUInt{}, amferrors.NewAMFError("decode.amf3.vectoruint.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(VectorUInt)
		if !ok {
			return VectorUInt{}, amferrors.NewAMFError("decode.amf3.vectoruint.reference", fmt.Errorf("index %d not a vector", idx))
		}
		return v, nil
	}
	var fixedByte [1]byte
	if _, err := io.ReadFull(r, fixedByte[:]); err != nil {
		return VectorUInt{}, amferrors.NewAMFError("decode.amf3.vectoruint.fixed", err)
	}
	out := VectorUInt{Fixed: fixedByte[0] != 0, Value: make([]uint32, idx)}
	for i := range out.Value {
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return VectorUInt{}, amferrors.NewAMFError("decode.amf3.vectoruint.element", err)
		}
		out.Value[i] = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	}
	d.objects = append(d.objects, out)
	return out, nil
}

func (d *Decoder) decodeVectorDouble(r io.Reader) (VectorDouble, error) {
	idx, isRef, err := readU29Ref(r)
	if err != nil {
		return VectorDouble{}, amferrors.NewAMFError("decode.amf3.vectordouble.header", err)
	}
	if isRef {
		v, ok := d.objects[idx].(VectorDouble)
		if !ok {
			return VectorDouble{}, amferrors.NewAMFError("decode.amf3.vectordouble.reference", fmt.Errorf("index %d not a vector", idx))
		}
		return v, nil
	}
	var fixedByte [1]byte
	if _, err := io.ReadFull(r, fixedByte[:]); err != nil {
		return VectorDouble{}, amferrors.NewAMFError("decode.amf3.vectordouble.fixed", err)
	}
	out := VectorDouble{Fixed: fixedByte[0] != 0, Value: make([]float64, idx)}
	for i := range out.Value {
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return VectorDouble{}, amferrors.NewAMFError("decode.amf3.vectordouble.element", err)
		}
		var bits uint64
		for _, c := range b {
			bits = bits<<8 | uint64(c)
		}
		out.Value[i] = math.Float64frombits(bits)
	}
	d.objects = append(d.objects, out)
	return out, nil
}

// EncodeValue writes one AMF3 value to w, recording strings and *AMF3Object
// values into e's reference tables so repeats within the same Encoder are
// emitted as references. Traits are always written inline.
func (e *Encoder) EncodeValue(w io.Writer, v interface{}) error {
	switch vv := v.(type) {
	case nil:
		_, err := w.Write([]byte{amf3Null})
		return err
	case Undefined:
		_, err := w.Write([]byte{amf3Undefined})
		return err
	case bool:
		if vv {
			_, err := w.Write([]byte{amf3True})
			return err
		}
		_, err := w.Write([]byte{amf3False})
		return err
	case Integer29:
		if _, err := w.Write([]byte{amf3Integer}); err != nil {
			return err
		}
		return writeU29(w, uint32(vv)&0x1FFFFFFF)
	case float64:
		if _, err := w.Write([]byte{amf3Double}); err != nil {
			return err
		}
		var buf [8]byte
		bits := math.Float64bits(vv)
		for i := 7; i >= 0; i-- {
			buf[i] = byte(bits)
			bits >>= 8
		}
		_, err := w.Write(buf[:])
		return err
	case string:
		if _, err := w.Write([]byte{amf3String}); err != nil {
			return err
		}
		return e.encodeString(w, vv)
	case ByteArray:
		if _, err := w.Write([]byte{amf3ByteArray}); err != nil {
			return err
		}
		if err := writeU29(w, uint32(len(vv))<<1|1); err != nil {
			return err
		}
		_, err := w.Write(vv)
		return err
	case []interface{}:
		return e.encodeArray(w, vv)
	case *AMF3Object:
		return e.encodeObject(w, vv)
	default:
		return fmt.Errorf("unsupported AMF3 value type %T", v)
	}
}

func (e *Encoder) encodeString(w io.Writer, s string) error {
	if s == "" {
		return writeU29(w, 1)
	}
	if idx, ok := e.strings[s]; ok {
		return writeU29(w, uint32(idx)<<1)
	}
	e.strings[s] = len(e.strings)
	if err := writeU29(w, uint32(len(s))<<1|1); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func (e *Encoder) encodeArray(w io.Writer, arr []interface{}) error {
	if _, err := w.Write([]byte{amf3Array}); err != nil {
		return err
	}
	if err := writeU29(w, uint32(len(arr))<<1|1); err != nil {
		return err
	}
	if _, err := w.Write([]byte{0x01}); err != nil { // empty-key sentinel: no associative portion
		return err
	}
	for i, v := range arr {
		if err := e.EncodeValue(w, v); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	return nil
}

func (e *Encoder) encodeObject(w io.Writer, obj *AMF3Object) error {
	if _, err := w.Write([]byte{amf3Object}); err != nil {
		return err
	}
	if idx, ok := e.objects[obj]; ok {
		return writeU29(w, uint32(idx)<<1)
	}
	e.objects[obj] = len(e.objects)
	if err := writeU29(w, 1); err != nil { // inline object marker (bit0=1); trait U29 follows separately
		return err
	}

	keys := make([]string, 0, len(obj.Members))
	for k := range obj.Members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Inline trait, never externalizable: traitIdx bit0 is the
	// externalizable flag (always 0 here), bit1 the dynamic flag, and bits 2+
	// the sealed member count (0 for dynamic objects, whose members all ride
	// the dynamic portion; len(keys) otherwise, with the member names listed
	// after the class name). u29 = (traitIdx << 1) | 1 marks the trait as inline.
	var traitIdx uint32
	if obj.Dynamic {
		traitIdx |= 1 << 1
	} else {
		traitIdx |= uint32(len(keys)) << 2
	}
	if err := writeU29(w, traitIdx<<1|1); err != nil {
		return err
	}
	if err := e.encodeString(w, obj.ClassName); err != nil {
		return err
	}
	if obj.Dynamic {
		for _, k := range keys {
			if err := e.encodeString(w, k); err != nil {
				return err
			}
			if err := e.EncodeValue(w, obj.Members[k]); err != nil {
				return fmt.Errorf("member %q: %w", k, err)
			}
		}
		_, err := w.Write([]byte{0x01}) // empty-key sentinel
		return err
	}
	for _, k := range keys {
		if err := e.encodeString(w, k); err != nil {
			return err
		}
	}
	for _, k := range keys {
		if err := e.EncodeValue(w, obj.Members[k]); err != nil {
			return fmt.Errorf("member %q: %w", k, err)
		}
	}
	return nil
}

// DecodeAMF3Value decodes a single standalone AMF3 value using a fresh
// (empty-table) Decoder. Use Decoder directly when multiple values share one
// reference scope (e.g. a CommandAmf3 argument list).
func DecodeAMF3Value(r io.Reader) (interface{}, error) {
	return NewDecoder().DecodeValue(r)
}

// decodeAMF3Switched is called after an AMF0 stream emits the 0x11 AVM+
// switch marker: the remainder of that single value is AMF3-encoded.
func decodeAMF3Switched(r io.Reader) (interface{}, error) {
	return DecodeAMF3Value(r)
}

// DecodeAMF3Sequence decodes a concatenation of AMF3 values (e.g. a
// CommandAmf3 payload with the leading 0x00 AMF0-compat byte already
// stripped by the caller) sharing one reference-table scope.
func DecodeAMF3Sequence(data []byte) ([]interface{}, error) {
	r := bytes.NewReader(data)
	dec := NewDecoder()
	var out []interface{}
	for r.Len() > 0 {
		v, err := dec.DecodeValue(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// EncodeAMF3Sequence encodes a sequence of AMF3 values sharing one
// reference-table scope and returns the concatenated bytes.
func EncodeAMF3Sequence(values ...interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := NewEncoder()
	for i, v := range values {
		if err := enc.EncodeValue(&buf, v); err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
