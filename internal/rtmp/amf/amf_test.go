package amf

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip_Primitives(t *testing.T) {
	cases := []interface{}{
		float64(0),
		float64(1.5),
		true,
		false,
		"test",
		"",  // empty string
		nil, // null
		map[string]interface{}{"a": float64(1), "b": "x"},
		[]interface{}{float64(1), "x", false, nil},
		map[string]interface{}{"nested": map[string]interface{}{"n": float64(42)}},
		[]interface{}{[]interface{}{float64(1), float64(2)}, map[string]interface{}{"k": "v"}},
		Undefined{},
		Date{Millis: 1600000000000, TimeZone: 0},
		LongString(""),
		LongString("long"),
		EcmaArray{"a": float64(1), "b": "x"},
		Reference{Index: 3},
	}
	for i, v := range cases {
		b, err := Marshal(v)
		if err != nil {
			t.Fatalf("case %d marshal error: %v", i, err)
		}
		rv, err := Unmarshal(b)
		if err != nil {
			t.Fatalf("case %d unmarshal error: %v", i, err)
		}
		if !deepEqual(v, rv) {
			t.Fatalf("case %d mismatch\norig=%#v\nrtnd=%#v", i, v, rv)
		}
	}
}

func TestEncodeAllDecodeAll_Sequence(t *testing.T) {
	seq := []interface{}{
		"connect",
		float64(1),
		map[string]interface{}{"app": "live", "tcUrl": "rtmp://example/live"},
		nil,
	}
	b, err := EncodeAll(seq...)
	if err != nil {
		t.Fatalf("encode all: %v", err)
	}
	out, err := DecodeAll(b)
	if err != nil {
		t.Fatalf("decode all: %v", err)
	}
	if len(out) != len(seq) {
		t.Fatalf("length mismatch expected %d got %d", len(seq), len(out))
	}
	for i := range seq {
		if !deepEqual(seq[i], out[i]) {
			t.Fatalf("index %d mismatch\nexp=%#v\ngot=%#v", i, seq[i], out[i])
		}
	}
}

func TestDecodeValue_UnsupportedMarkers(t *testing.T) {
	// Reserved/XML markers this package does not implement.
	markers := []byte{0x04, 0x0D, 0x0E, 0x0F, 0x10}
	for _, m := range markers {
		_, err := DecodeValue(bytes.NewReader([]byte{m, 0, 0, 0, 0}))
		if err == nil {
			t.Fatalf("marker 0x%02x expected error", m)
		}
	}
}

func TestDecodeValue_AMF3Switch(t *testing.T) {
	// 0x11 switches the remainder of the value to AMF3; 0x04 0x2A is the AMF3
	// Integer marker followed by U29-encoded 42.
	v, err := DecodeValue(bytes.NewReader([]byte{markerAvmPlus, amf3Integer, 0x2A}))
	if err != nil {
		t.Fatalf("decode amf3-switched value: %v", err)
	}
	i, ok := v.(Integer29)
	if !ok || i != 42 {
		t.Fatalf("expected Integer29(42), got %#v", v)
	}
}

func TestEcmaArray_CountHintMismatchDoesNotError(t *testing.T) {
	var buf bytes.Buffer
	// Hand-craft a payload whose count hint (5) disagrees with the single
	// pair actually present, mirroring encoders that get the hint wrong.
	buf.WriteByte(markerEcmaArray)
	buf.Write([]byte{0x00, 0x00, 0x00, 0x05})
	buf.Write([]byte{0x00, 0x01, 'a'})
	if err := EncodeNumber(&buf, 1); err != nil {
		t.Fatalf("encode value: %v", err)
	}
	buf.Write([]byte{0x00, 0x00, markerObjectEnd})

	arr, err := DecodeEcmaArray(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode ecma array: %v", err)
	}
	if len(arr) != 1 || arr["a"] != float64(1) {
		t.Fatalf("unexpected decoded array: %#v", arr)
	}
}

// deepEqual tailored for the supported AMF0 subset â€“ we could use reflect.DeepEqual
// but implement a minimal version to keep dependencies explicit and allow custom logic later.
func deepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return false
		}
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok {
			return false
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Date:
		bv, ok := b.(Date)
		return ok && av == bv
	case LongString:
		bv, ok := b.(LongString)
		return ok && av == bv
	case Reference:
		bv, ok := b.(Reference)
		return ok && av == bv
	case EcmaArray:
		bv, ok := b.(EcmaArray)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if !deepEqual(v, bv[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
