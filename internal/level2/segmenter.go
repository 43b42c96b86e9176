package level2

const maxSegments = 2000

// segmentState tracks the in-flight segments of one multi-segment message,
// keyed by sequence number.
type segmentState struct {
	msgType       uint8
	segments      [][]byte
	receivedCount int
	totalSegments int
}

// segmenter reassembles multi-segment NEXRAD messages, matching spec.md
// §4.2. A STATUS_START_VOLUME radial clears all pending state.
type segmenter struct {
	pending map[uint16]*segmentState
}

func newSegmenter() *segmenter {
	return &segmenter{pending: make(map[uint16]*segmentState)}
}

func (s *segmenter) clear() {
	s.pending = make(map[uint16]*segmentState)
}

// feed stores or emits a message segment. It returns the reassembled payload
// and true when the message is complete (including the single-segment case).
func (s *segmenter) feed(h MessageHeader, payload []byte) ([]byte, bool, error) {
	if h.NumSegments <= 1 {
		return payload, true, nil
	}

	if h.NumSegments > maxSegments {
		return nil, false, newErr(SegmentOverflow, "num_segments exceeds 2000")
	}

	st, ok := s.pending[h.SequenceNum]
	if !ok {
		st = &segmentState{
			msgType:       h.Type,
			segments:      make([][]byte, h.NumSegments),
			totalSegments: int(h.NumSegments),
		}
		s.pending[h.SequenceNum] = st
	}

	idx := int(h.SegmentNum) - 1
	if idx < 0 || idx >= len(st.segments) {
		// Out-of-range segment numbers are silently ignored.
		return nil, false, nil
	}

	if st.segments[idx] != nil {
		// Duplicate segment, dropped.
		return nil, false, nil
	}

	st.segments[idx] = payload
	st.receivedCount++

	if st.receivedCount != st.totalSegments {
		return nil, false, nil
	}

	total := 0
	for _, seg := range st.segments {
		total += len(seg)
	}
	combined := make([]byte, 0, total)
	for _, seg := range st.segments {
		combined = append(combined, seg...)
	}

	delete(s.pending, h.SequenceNum)
	return combined, true, nil
}

func (s *segmenter) count() int {
	return len(s.pending)
}
