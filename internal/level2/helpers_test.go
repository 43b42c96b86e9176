package level2

import (
	"encoding/binary"
	"math"
)

// beU16b / beU32b / beF32b encode a value into its big-endian on-wire bytes, used by
// the synthetic Archive II fixtures built in decoder_test.go.
func beU16b(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func beU32b(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func beF32b(v float32) []byte {
	return beU32b(math.Float32bits(v))
}

// volBlock builds a 44-byte VOL data block carrying only the vcp_number
// field the decoder reads (offset 40).
func volBlock(vcp uint16) []byte {
	b := make([]byte, dataBlockVolumeSize)
	b[0] = blockTagVolume
	copy(b[1:4], nameVOL)
	copy(b[40:42], beU16b(vcp))
	return b
}

// radBlock builds a 20-byte RAD data block carrying unambiguous range
// (offset 6, ×100m) and Nyquist (offset 16, ×0.01 m/s).
func radBlock(unambiguousRangeRaw, nyquistRaw uint16) []byte {
	b := make([]byte, dataBlockRadialSize)
	b[0] = blockTagRadial
	copy(b[1:4], nameRAD)
	copy(b[6:8], beU16b(unambiguousRangeRaw))
	copy(b[16:18], beU16b(nyquistRaw))
	return b
}

// momentBlock builds a generic moment ('D') data block with an 8-bit gate
// stream, matching applyMomentBlock's offsets.
func momentBlock(name string, numGates, firstGate, gateSpacing uint16, scale, offset float32, gates []byte) []byte {
	b := make([]byte, dataBlockMomentSize)
	b[0] = blockTagGeneric
	copy(b[1:4], name)
	copy(b[8:10], beU16b(numGates))
	copy(b[10:12], beU16b(firstGate))
	copy(b[12:14], beU16b(gateSpacing))
	b[18] = 8 // word_size
	copy(b[20:24], beF32b(scale))
	copy(b[24:28], beF32b(offset))
	return append(b, gates...)
}

// message31Radial assembles one complete Message 31 payload: fixed header,
// block pointer table, then the blocks themselves back to back.
func message31Radial(azimuth, elevation float32, radialStatus, elevNum uint8, blocks [][]byte) []byte {
	header := make([]byte, message31FixedHeaderSize)
	copy(header[12:16], beF32b(azimuth))
	header[21] = radialStatus
	header[22] = elevNum
	copy(header[24:28], beF32b(elevation))
	copy(header[30:32], beU16b(uint16(len(blocks))))

	ptrTable := make([]byte, 4*len(blocks))
	offset := message31FixedHeaderSize + len(ptrTable)
	body := make([]byte, 0, 256)
	for i, blk := range blocks {
		copy(ptrTable[i*4:i*4+4], beU32b(uint32(offset)))
		body = append(body, blk...)
		offset += len(blk)
	}

	out := make([]byte, 0, len(header)+len(ptrTable)+len(body))
	out = append(out, header...)
	out = append(out, ptrTable...)
	out = append(out, body...)
	return out
}

// archive2Volume wraps a sequence of already-built message payloads (each
// paired with its NEXRAD message type) into a full decodable Archive II
// byte stream: volume header, zeroed metadata slot region, then one
// [12-byte CTM][16-byte MessageHeader][payload] record per message.
func archive2Volume(julianDay, ms uint32, msgs []struct {
	msgType uint8
	payload []byte
}) []byte {
	out := make([]byte, volumeHeaderSize)
	copy(out[0:4], "AR2V")
	copy(out[12:16], beU32b(julianDay))
	copy(out[16:20], beU32b(ms))

	out = append(out, make([]byte, metadataSlotCount*archive2SlotSize)...)

	for _, m := range msgs {
		payload := m.payload
		// Pad so the total record is at least 512 bytes: SizeHalfwords'
		// high byte must be non-zero, or the decoder's CTM zero-skip (which
		// also eats a leading zero header byte, matching the original
		// parser) would slide past the real header start.
		for (messageHeaderSize+len(payload))%2 != 0 || messageHeaderSize+len(payload) < 512 {
			payload = append(payload, 0)
		}

		ctm := make([]byte, archive2CTMSize)
		sizeHalfwords := uint16((messageHeaderSize + len(payload)) / 2)
		hdr := make([]byte, messageHeaderSize)
		binary.BigEndian.PutUint16(hdr[0:2], sizeHalfwords)
		hdr[3] = m.msgType
		binary.BigEndian.PutUint16(hdr[6:8], 15000) // > 10000 validity floor
		binary.BigEndian.PutUint16(hdr[12:14], 1)   // num_segments

		out = append(out, ctm...)
		out = append(out, hdr...)
		out = append(out, payload...)
	}
	return out
}
