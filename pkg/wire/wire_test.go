package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		m    Map
	}{
		{"empty", Map{}},
		{"scalars", Map{
			"height": Int(42),
			"sender": String("0xabc"),
			"active": Bool(true),
			"raw":    Bytes([]byte{0x01, 0x02, 0xff}),
		}},
		{"nested", Map{
			"outer": MapValue(Map{
				"inner": Int(-7),
			}),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.m)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !decoded.Equal(tt.m) {
				t.Fatalf("round trip mismatch: got %#v, want %#v", decoded, tt.m)
			}
		})
	}
}

func TestEncodeIsCanonical(t *testing.T) {
	a := Map{"a": Int(1), "b": Int(2)}
	b := Map{"b": Int(2), "a": Int(1)}

	encodedA, err := Encode(a)
	if err != nil {
		t.Fatalf("Encode(a): %v", err)
	}
	encodedB, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode(b): %v", err)
	}
	if string(encodedA) != string(encodedB) {
		t.Fatalf("construction order changed encoded bytes:\na=%s\nb=%s", encodedA, encodedB)
	}
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{"x": {"bogus": 1}}`))
	if err == nil {
		t.Fatal("expected error decoding a value object with no recognised type key")
	}
}

func TestDecodeAmbiguousValue(t *testing.T) {
	_, err := Decode([]byte(`{"x": {"i": 1, "s": "two"}}`))
	if err == nil {
		t.Fatal("expected error decoding a value object with more than one type key")
	}
}
