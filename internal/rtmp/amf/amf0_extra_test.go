package amf

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeUndefined(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeUndefined(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := buf.Bytes(); len(got) != 1 || got[0] != markerUndefined {
		t.Fatalf("unexpected wire bytes: %x", got)
	}
	if _, err := DecodeUndefined(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestEncodeDecodeDate(t *testing.T) {
	d := Date{Millis: 1577836800000, TimeZone: 0}
	var buf bytes.Buffer
	if err := EncodeDate(&buf, d); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := buf.Len(); got != 11 {
		t.Fatalf("expected 11 bytes, got %d", got)
	}
	got, err := DecodeDate(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != d {
		t.Fatalf("round trip mismatch: expected %#v got %#v", d, got)
	}
}

func TestEncodeDecodeLongString(t *testing.T) {
	cases := []LongString{"", "short", LongString(bytes.Repeat([]byte("x"), 70000))}
	for _, c := range cases {
		var buf bytes.Buffer
		if err := EncodeLongString(&buf, c); err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeLongString(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got != c {
			t.Fatalf("round trip mismatch: expected len %d got len %d", len(c), len(got))
		}
	}
}

func TestEncodeDecodeReference(t *testing.T) {
	ref := Reference{Index: 7}
	var buf bytes.Buffer
	if err := EncodeReference(&buf, ref); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeReference(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != ref {
		t.Fatalf("round trip mismatch: expected %#v got %#v", ref, got)
	}
}

func TestEncodeDecodeEcmaArray(t *testing.T) {
	arr := EcmaArray{"width": float64(1920), "height": float64(1080), "name": "cam0"}
	var buf bytes.Buffer
	if err := EncodeEcmaArray(&buf, arr); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeEcmaArray(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(arr) {
		t.Fatalf("length mismatch: expected %d got %d", len(arr), len(got))
	}
	for k, v := range arr {
		if got[k] != v {
			t.Fatalf("key %q: expected %#v got %#v", k, v, got[k])
		}
	}
}
