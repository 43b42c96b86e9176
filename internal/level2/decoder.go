package level2

import "bytes"

const (
	archive2SlotSize  = 2432
	archive2CTMSize   = 12
	metadataSlotCount = 134
	maxMessageCount   = 200000
	maxProbeDistance  = 4096
)

// decodeState carries the mutable state threaded through a single volume
// scan decode: the in-progress sweep per frame, the segment reassembler, and
// a running ray count per tilt key. The 2D grid width is picked later from
// each Sweep's own RayCount, not from this table.
type decodeState struct {
	frames map[Product]*RadarFrame

	currentSweepIdx       int
	currentElevNum        uint8
	currentSweepElevation float32
	activeKey             int
	minElevation          float32

	radialCount        int
	elevationRayCounts map[int]int

	seg *segmenter
}

func newDecodeState(station, timestamp string, products []Product) *decodeState {
	frames := make(map[Product]*RadarFrame, len(products))
	for _, p := range products {
		frames[p] = &RadarFrame{
			Station:          station,
			Timestamp:        timestamp,
			Product:          p,
			NyquistByTiltKey: make(map[int]float32),
		}
	}
	return &decodeState{
		frames:             frames,
		currentSweepIdx:    -1,
		minElevation:       90.0,
		elevationRayCounts: make(map[int]int),
		seg:                newSegmenter(),
	}
}

// beginRadial advances the sweep index when radialStatus or an elevation
// number change signals the start of a new tilt.
func (d *decodeState) beginRadial(radialStatus, elevNum uint8, elevation float32) {
	isNewSweep := radialStatus == StatusStartElevation ||
		radialStatus == StatusStartVolume ||
		radialStatus == StatusStartElevationSegmented ||
		(elevNum != d.currentElevNum && d.currentSweepIdx >= 0) ||
		d.currentSweepIdx == -1

	if !isNewSweep {
		return
	}

	d.currentSweepIdx++
	d.currentElevNum = elevNum
	d.currentSweepElevation = elevation
	d.activeKey = GetTiltKey(elevation)
	if elevation < d.minElevation {
		d.minElevation = elevation
	}

	for _, f := range d.frames {
		f.Sweeps = append(f.Sweeps, Sweep{
			Index:        d.currentSweepIdx,
			ElevationNum: elevNum,
			ElevationDeg: elevation,
		})
	}
}

func (d *decodeState) countRay() {
	d.elevationRayCounts[d.activeKey]++
	for _, f := range d.frames {
		f.Sweeps[d.currentSweepIdx].RayCount++
	}
}

// finalize applies the fallback unambiguous range (230 km) to every frame
// that no RAD/message-1 block gave a usable value. Per-sweep RayCount totals
// are already complete from countRay and are not touched here.
func (d *decodeState) finalize() {
	for _, f := range d.frames {
		if f.UnambiguousRangeM <= 0 {
			f.UnambiguousRangeM = 230000.0
		}
	}
}

// Decode parses one fully-decompressed NEXRAD Level II byte stream and
// returns the requested products, each as an independent RadarFrame built
// from a single pass over the message stream (spec.md §4.2-4.4).
func Decode(data []byte, station string, products []Product) (map[Product]*RadarFrame, error) {
	if len(data) < volumeHeaderSize {
		return nil, newErr(Truncated, "input shorter than volume header")
	}

	vr := &byteReader{buf: data[:volumeHeaderSize]}
	julian, _ := vr.beU32(12)
	ms, _ := vr.beU32(16)
	timestamp := formatTimestamp(julian, ms)

	isArchive2 := bytes.HasPrefix(data, []byte("AR2V")) || bytes.HasPrefix(data, []byte("ARCHIVE2"))

	state := newDecodeState(station, timestamp, products)
	r := &byteReader{buf: data}
	offset := volumeHeaderSize

	if isArchive2 {
		for i := 0; i < metadataSlotCount; i++ {
			segOffset := offset + i*archive2SlotSize
			h, ok := decodeMessageHeader(r, segOffset+archive2CTMSize)
			if !ok || h.Type == 0 {
				continue
			}
			payloadStart := segOffset + archive2CTMSize + messageHeaderSize
			payloadSize := archive2SlotSize - archive2CTMSize - messageHeaderSize
			if payload, ok := r.slice(payloadStart, payloadSize); ok {
				state.seg.feed(h, payload)
			}
		}
		offset += metadataSlotCount * archive2SlotSize
	}

	messageCount := 0

	for offset+messageHeaderSize <= len(data) && messageCount < maxMessageCount {
		if isArchive2 {
			for offset < len(data) && data[offset] == 0 {
				offset++
			}
			if offset+messageHeaderSize > len(data) {
				break
			}
		}

		msgHeaderOffset, found := probeMessageHeader(r, offset, isArchive2)
		if !found {
			offset++
			continue
		}

		h, ok := decodeMessageHeader(r, msgHeaderOffset)
		if !ok {
			offset = msgHeaderOffset + 1
			continue
		}

		messageSizeBytes := int(h.SizeHalfwords) * 2
		if messageSizeBytes < messageHeaderSize || msgHeaderOffset+messageSizeBytes > len(data) {
			offset = msgHeaderOffset + 1
			continue
		}

		payloadStart := msgHeaderOffset + messageHeaderSize
		payloadEnd := msgHeaderOffset + messageSizeBytes
		payload := data[payloadStart:payloadEnd]

		offset = advanceOffset(msgHeaderOffset, messageSizeBytes, h.Type, isArchive2)

		combined, complete, err := state.seg.feed(h, payload)
		messageCount++
		if err != nil {
			continue
		}
		if !complete {
			continue
		}

		switch h.Type {
		case MessageType1:
			state.handleMessage1(combined)
			state.radialCount++
		case MessageType31:
			state.handleMessage31(combined)
			state.radialCount++
		}
	}

	state.finalize()
	anyPopulated := false
	for _, f := range state.frames {
		if len(f.Sweeps) > 0 {
			anyPopulated = true
			break
		}
	}
	if !anyPopulated {
		return nil, newErr(EmptyFrame, "no radials decoded for any requested product")
	}

	return state.frames, nil
}

// advanceOffset mirrors the original probe's forward-jump rule: short
// Archive II messages (everything but 31/29) are slotted into fixed
// 2432-byte records with a 12-byte CTM preamble.
func advanceOffset(msgHeaderOffset, messageSizeBytes int, msgType uint8, isArchive2 bool) int {
	next := msgHeaderOffset + messageSizeBytes
	if isArchive2 && messageSizeBytes < 2420 && msgType != 31 && msgType != 29 {
		next = msgHeaderOffset + (archive2SlotSize - archive2CTMSize)
	}
	return next
}

// probeMessageHeader looks for a valid MessageHeader at offset, then at
// offset+12 (the CTM-preamble-skipped position). If neither matches and the
// stream is Archive II framed, it scans forward byte by byte up to
// maxProbeDistance for the first header that passes the same full validity
// predicate (type, size and julian date).
func probeMessageHeader(r *byteReader, offset int, isArchive2 bool) (int, bool) {
	for _, skip := range [2]int{0, archive2CTMSize} {
		c := offset + skip
		if c+messageHeaderSize > r.len() {
			continue
		}
		if h, ok := decodeMessageHeader(r, c); ok && h.valid() {
			return c, true
		}
	}

	if !isArchive2 {
		return 0, false
	}

	for skip := 1; skip <= maxProbeDistance; skip++ {
		c := offset + skip
		if c+messageHeaderSize > r.len() {
			break
		}
		h, ok := decodeMessageHeader(r, c)
		if ok && h.valid() {
			return c, true
		}
	}
	return 0, false
}
