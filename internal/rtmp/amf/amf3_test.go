package amf

import "testing"

func TestAMF3_RoundTripPrimitives(t *testing.T) {
	values := []interface{}{
		nil,
		Undefined{},
		true,
		false,
		Integer29(0),
		Integer29(-268435456), // min 29-bit signed value
		Integer29(268435455),  // max 29-bit signed value
		float64(3.5),
		"hello",
		"",
		ByteArray{0x01, 0x02, 0x03},
		[]interface{}{Integer29(1), "x", true},
	}
	b, err := EncodeAMF3Sequence(values...)
	if err != nil {
		t.Fatalf("encode sequence: %v", err)
	}
	out, err := DecodeAMF3Sequence(b)
	if err != nil {
		t.Fatalf("decode sequence: %v", err)
	}
	if len(out) != len(values) {
		t.Fatalf("length mismatch: expected %d got %d", len(values), len(out))
	}
	for i, v := range values {
		switch want := v.(type) {
		case []interface{}:
			got, ok := out[i].([]interface{})
			if !ok || len(got) != len(want) {
				t.Fatalf("index %d: expected array %#v got %#v", i, want, out[i])
			}
		case ByteArray:
			got, ok := out[i].(ByteArray)
			if !ok || string(got) != string(want) {
				t.Fatalf("index %d: expected %#v got %#v", i, want, out[i])
			}
		default:
			if out[i] != v {
				t.Fatalf("index %d: expected %#v got %#v", i, v, out[i])
			}
		}
	}
}

func TestAMF3_StringReferenceReuse(t *testing.T) {
	// Encoding the same string twice in one Encoder session should reuse the
	// string table rather than repeating the bytes on the wire.
	enc := NewEncoder()
	var buf countingWriter
	if err := enc.EncodeValue(&buf, "repeatme"); err != nil {
		t.Fatalf("encode first: %v", err)
	}
	firstLen := buf.n
	if err := enc.EncodeValue(&buf, "repeatme"); err != nil {
		t.Fatalf("encode second: %v", err)
	}
	secondLen := buf.n - firstLen
	if secondLen >= firstLen {
		t.Fatalf("expected referenced string encoding to be shorter: first=%d second=%d", firstLen, secondLen)
	}
}

func TestAMF3_ObjectRoundTrip(t *testing.T) {
	obj := &AMF3Object{
		ClassName: "",
		Dynamic:   true,
		Members:   map[string]interface{}{"level": Integer29(3), "role": "nb"},
	}
	b, err := EncodeAMF3Sequence(obj)
	if err != nil {
		t.Fatalf("encode object: %v", err)
	}
	out, err := DecodeAMF3Sequence(b)
	if err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 value got %d", len(out))
	}
	got, ok := out[0].(*AMF3Object)
	if !ok {
		t.Fatalf("expected *AMF3Object got %#v", out[0])
	}
	if got.Members["level"] != Integer29(3) || got.Members["role"] != "nb" {
		t.Fatalf("unexpected members: %#v", got.Members)
	}
}

// countingWriter records total bytes written so tests can compare encoded
// sizes without caring about exact wire bytes.
type countingWriter struct{ n int }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}
