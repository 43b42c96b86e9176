package level2

import "testing"

func TestByteReaderBounds(t *testing.T) {
	r := newByteReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	if v, ok := r.u8(0); !ok || v != 0x01 {
		t.Fatalf("u8(0) = %d, %v", v, ok)
	}
	if v, ok := r.beU16(0); !ok || v != 0x0102 {
		t.Fatalf("beU16(0) = %x, %v", v, ok)
	}
	if v, ok := r.beU32(0); !ok || v != 0x01020304 {
		t.Fatalf("beU32(0) = %x, %v", v, ok)
	}
	if _, ok := r.u8(8); ok {
		t.Fatalf("u8(8) should be out of bounds")
	}
	if _, ok := r.beU16(7); ok {
		t.Fatalf("beU16(7) should be out of bounds")
	}
	if _, ok := r.beU32(5); ok {
		t.Fatalf("beU32(5) should be out of bounds")
	}
	if _, ok := r.slice(6, 3); ok {
		t.Fatalf("slice(6,3) should be out of bounds")
	}
	if s, ok := r.slice(6, 2); !ok || len(s) != 2 {
		t.Fatalf("slice(6,2) = %v, %v", s, ok)
	}
	if _, ok := r.u8(-1); ok {
		t.Fatalf("negative offset must fail")
	}

	neg := newByteReader([]byte{0xFF, 0xF6}) // -10 as a signed big-endian int16
	if v, ok := neg.beI16(0); !ok || v != -10 {
		t.Fatalf("beI16(0) = %d, %v, want -10", v, ok)
	}
}

func TestSafePointerDereference(t *testing.T) {
	cases := []struct {
		offset, size, payloadSize int
		want                      bool
	}{
		{0, 4, 100, false},   // offset 0 always rejected
		{-1, 4, 100, false},  // negative offset rejected
		{96, 4, 100, true},   // exactly fits
		{97, 4, 100, false},  // overflows end
		{200, 4, 100, false}, // offset beyond payload
		{50, 0, 100, true},   // zero-size read at valid offset
	}
	for _, c := range cases {
		got := safePointerDereference(c.offset, c.size, c.payloadSize)
		if got != c.want {
			t.Errorf("safePointerDereference(%d,%d,%d) = %v, want %v", c.offset, c.size, c.payloadSize, got, c.want)
		}
	}
}

func TestSafePointerDereferenceZeroAlwaysFalse(t *testing.T) {
	for _, size := range []int{0, 1, 16, 1000} {
		for _, payloadSize := range []int{0, 1, 100, 100000} {
			if safePointerDereference(0, size, payloadSize) {
				t.Fatalf("safePointerDereference(0, %d, %d) must be false", size, payloadSize)
			}
		}
	}
}
