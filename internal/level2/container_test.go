package level2

import (
	"bytes"
	"compress/bzip2"
	"os/exec"
	"testing"
)

// bzip2Compress shells out to the system bzip2 binary since the standard
// library only ships a decompressor. Tests skip if it isn't available.
func bzip2Compress(t *testing.T, data []byte) []byte {
	t.Helper()
	path, err := exec.LookPath("bzip2")
	if err != nil {
		t.Skip("bzip2 binary not available")
	}
	cmd := exec.Command(path, "-z", "-c")
	cmd.Stdin = bytes.NewReader(data)
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("bzip2 compress: %v", err)
	}
	return out
}

func TestDecompressRawBzip2(t *testing.T) {
	payload := bytes.Repeat([]byte("nexrad-volume-payload"), 50)
	compressed := bzip2Compress(t, payload)

	out, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("round-trip mismatch: got %d bytes, want %d", len(out), len(payload))
	}
}

func TestDecompressLDMWrapped(t *testing.T) {
	header := make([]byte, volumeHeaderSize)
	copy(header, []byte("ARCHIVE2.AR2V0001"))

	block1 := bzip2Compress(t, []byte("first-record-payload"))
	block2 := bzip2Compress(t, []byte("second-record-payload"))

	var buf bytes.Buffer
	buf.Write(header)
	writeBEInt32(&buf, int32(len(block1)))
	buf.Write(block1)
	writeBEInt32(&buf, int32(len(block2)))
	buf.Write(block2)
	writeBEInt32(&buf, 0) // terminator

	out, err := Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := append(append(append([]byte{}, header...), []byte("first-record-payload")...), []byte("second-record-payload")...)
	if !bytes.Equal(out, want) {
		t.Fatalf("LDM round-trip mismatch:\n got  %q\n want %q", out, want)
	}
}

func TestDecompressPassthroughOnGarbage(t *testing.T) {
	// Long enough for the LDM record walk, but neither its records nor the
	// whole buffer are valid bzip2: must pass through unchanged rather than
	// erroring, per spec.md §4.1.
	garbage := bytes.Repeat([]byte{0xAB}, volumeHeaderSize+8)
	out, err := Decompress(garbage)
	if err != nil {
		t.Fatalf("Decompress on undecodable input must not error: %v", err)
	}
	if !bytes.Equal(out, garbage) {
		t.Fatalf("expected passthrough of original bytes")
	}
}

func TestDecompressPassthroughOnTinyInput(t *testing.T) {
	// Too short to carry a volume header at all; the final fallback still
	// returns it unchanged rather than erroring, matching spec.md §8
	// scenario 4's 16-byte-buffer passthrough test. Decode, not
	// Decompress, is responsible for rejecting undersized streams.
	tiny := []byte{1, 2, 3}
	out, err := Decompress(tiny)
	if err != nil {
		t.Fatalf("Decompress on tiny input must not error: %v", err)
	}
	if !bytes.Equal(out, tiny) {
		t.Fatalf("expected tiny input passed through unchanged, got %v", out)
	}
}

func writeBEInt32(buf *bytes.Buffer, v int32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

// Sanity check that the stdlib bzip2 reader used in Decompress can actually
// consume what exec.Command("bzip2") produces, independent of Decompress.
func TestBzip2StdlibReadsExternalOutput(t *testing.T) {
	payload := []byte("round-trip-check")
	compressed := bzip2Compress(t, payload)
	r := bzip2.NewReader(bytes.NewReader(compressed))
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Fatalf("stdlib bzip2 reader mismatch")
	}
}
