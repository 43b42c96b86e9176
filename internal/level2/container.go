package level2

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"io"
)

// Decompress implements the container decompressor of spec.md §4.1: detect
// bzip2 vs LDM-wrapped bzip2 vs already-uncompressed data, and emit a single
// contiguous byte stream that preserves the 24-byte volume header.
//
// Growth policy: each bzip2 output buffer is pre-allocated to 12x the size
// of its compressed input; beyond that it grows by bytes.Buffer's own
// geometric growth, not by a fixed 1.5x factor.
func Decompress(input []byte) ([]byte, error) {
	if len(input) >= 2 && input[0] == 'B' && input[1] == 'Z' {
		out, err := decompressRawBzip2(input)
		if err == nil {
			return out, nil
		}
		return passthroughOrFail(input)
	}

	if len(input) >= volumeHeaderSize+4 {
		out, ok := decompressLDM(input)
		if ok {
			return out, nil
		}
	}

	out, err := decompressRawBzip2(input)
	if err == nil {
		return out, nil
	}

	return passthroughOrFail(input)
}

// passthroughOrFail is the final fallback of spec.md §4.1: once both the
// bzip2 and LDM-record decoders have failed, the input is returned
// unchanged rather than rejected, even when it is too short to carry a
// volume header -- spec.md §8 scenario 4 tests exactly this case (a
// 16-byte non-bzip2 buffer must come back unchanged), so CorruptContainer
// is never actually reachable through this path; Decode is the one that
// validates length before treating the result as a volume.
func passthroughOrFail(input []byte) ([]byte, error) {
	return input, nil
}

func decompressRawBzip2(input []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(input))
	out := make([]byte, 0, len(input)*12)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, newErr(CorruptContainer, "raw bzip2 decompression produced no data")
	}
	return buf.Bytes(), nil
}

// decompressLDM walks the record-wrapped format: a 24-byte volume header
// followed by [signed_be_i32 length][bzip2 block] records. A zero-length
// control word ends the stream; a negative length uses its absolute value.
func decompressLDM(input []byte) ([]byte, bool) {
	out := bytes.NewBuffer(make([]byte, 0, len(input)*12))
	out.Write(input[:volumeHeaderSize])

	offset := volumeHeaderSize
	decodedAny := false

	for offset+4 <= len(input) {
		ctrl := int32(binary.BigEndian.Uint32(input[offset : offset+4]))
		offset += 4

		if ctrl == 0 {
			break
		}

		blockLen := int(ctrl)
		if blockLen < 0 {
			blockLen = -blockLen
		}
		if offset+blockLen > len(input) {
			blockLen = len(input) - offset
		}
		if blockLen <= 0 {
			break
		}

		block := input[offset : offset+blockLen]
		offset += blockLen

		decompressed, err := decompressRawBzip2(block)
		if err != nil {
			continue
		}
		out.Write(decompressed)
		decodedAny = true
	}

	if !decodedAny {
		return nil, false
	}
	return out.Bytes(), true
}
