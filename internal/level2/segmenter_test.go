package level2

import "testing"

func TestSegmenterSingleSegmentPassesThrough(t *testing.T) {
	s := newSegmenter()
	h := MessageHeader{NumSegments: 1}
	out, complete, err := s.feed(h, []byte{1, 2, 3})
	if err != nil || !complete || string(out) != "\x01\x02\x03" {
		t.Fatalf("unexpected result: %v %v %v", out, complete, err)
	}
	if s.count() != 0 {
		t.Fatalf("single-segment feed must not leave pending state")
	}
}

func TestSegmenterReassemblesInOrder(t *testing.T) {
	s := newSegmenter()
	h := MessageHeader{NumSegments: 3, SequenceNum: 7}

	h.SegmentNum = 1
	if _, complete, err := s.feed(h, []byte{1}); err != nil || complete {
		t.Fatalf("segment 1/3 should be incomplete, got complete=%v err=%v", complete, err)
	}
	h.SegmentNum = 3
	if _, complete, err := s.feed(h, []byte{3}); err != nil || complete {
		t.Fatalf("segment 3/3 should be incomplete")
	}
	h.SegmentNum = 2
	out, complete, err := s.feed(h, []byte{2})
	if err != nil || !complete {
		t.Fatalf("segment 2/3 should complete the message: complete=%v err=%v", complete, err)
	}
	if string(out) != "\x01\x02\x03" {
		t.Fatalf("reassembled payload = %v, want [1 2 3] in original order", out)
	}
	if s.count() != 0 {
		t.Fatalf("completed message must be removed from pending state")
	}
}

func TestSegmenterDropsDuplicateAndOutOfRangeSegments(t *testing.T) {
	s := newSegmenter()
	h := MessageHeader{NumSegments: 2, SequenceNum: 1}

	h.SegmentNum = 1
	s.feed(h, []byte{1})
	// Duplicate of segment 1 must be silently dropped.
	if _, complete, err := s.feed(h, []byte{9}); complete || err != nil {
		t.Fatalf("duplicate segment must not complete or error")
	}
	// Out-of-range segment number must be ignored without panicking.
	h.SegmentNum = 5
	if _, complete, err := s.feed(h, []byte{9}); complete || err != nil {
		t.Fatalf("out-of-range segment must not complete or error")
	}
}

func TestSegmenterRejectsOversizedSegmentCount(t *testing.T) {
	s := newSegmenter()
	h := MessageHeader{NumSegments: maxSegments + 1, SequenceNum: 1}
	_, complete, err := s.feed(h, []byte{1})
	if err == nil || complete {
		t.Fatalf("NumSegments > 2000 must error, got complete=%v err=%v", complete, err)
	}
	if derr, ok := err.(*Error); !ok || derr.Kind != SegmentOverflow {
		t.Fatalf("expected SegmentOverflow, got %v", err)
	}
}

func TestSegmenterClearDropsPendingState(t *testing.T) {
	s := newSegmenter()
	h := MessageHeader{NumSegments: 2, SequenceNum: 1, SegmentNum: 1}
	s.feed(h, []byte{1})
	if s.count() != 1 {
		t.Fatalf("expected one pending message before clear")
	}
	s.clear()
	if s.count() != 0 {
		t.Fatalf("clear() must drop all pending state")
	}
}
