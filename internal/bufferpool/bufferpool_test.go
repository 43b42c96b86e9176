package bufferpool

import (
	"testing"
	"time"
)

func TestAcquireReleaseReusesCapacity(t *testing.T) {
	p := New(2, 1024)

	buf := p.Acquire()
	if cap(buf) != 1024 {
		t.Fatalf("Acquire returned cap %d, want 1024", cap(buf))
	}
	if len(buf) != 0 {
		t.Fatalf("Acquire returned len %d, want 0", len(buf))
	}
	buf = append(buf, []byte("payload")...)
	p.Release(buf)

	buf2 := p.Acquire()
	if len(buf2) != 0 {
		t.Fatalf("reacquired buffer len %d, want 0", len(buf2))
	}
	if cap(buf2) < 1024 {
		t.Fatalf("reacquired buffer cap %d, want at least 1024", cap(buf2))
	}
}

func TestInUseTracksLeasedBuffers(t *testing.T) {
	p := New(3, 16)
	if n := p.InUse(); n != 0 {
		t.Fatalf("InUse() = %d, want 0", n)
	}

	a := p.Acquire()
	b := p.Acquire()
	if n := p.InUse(); n != 2 {
		t.Fatalf("InUse() = %d, want 2", n)
	}

	p.Release(a)
	if n := p.InUse(); n != 1 {
		t.Fatalf("InUse() = %d, want 1", n)
	}
	p.Release(b)
	if n := p.InUse(); n != 0 {
		t.Fatalf("InUse() = %d, want 0", n)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	p := New(1, 16)
	first := p.Acquire()

	acquired := make(chan []byte, 1)
	go func() {
		acquired <- p.Acquire()
	}()

	select {
	case <-acquired:
		t.Fatalf("second Acquire returned before any buffer was released")
	case <-time.After(50 * time.Millisecond):
	}

	p.Release(first)

	select {
	case buf := <-acquired:
		if buf == nil {
			t.Fatalf("expected a non-nil buffer once released")
		}
	case <-time.After(time.Second):
		t.Fatalf("second Acquire did not unblock after Release")
	}
}

func TestScopedLeaseReleaseIsIdempotent(t *testing.T) {
	p := New(1, 16)
	s := p.Lease()
	if p.InUse() != 1 {
		t.Fatalf("expected 1 buffer in use after Lease")
	}
	s.Set(append(s.Buf(), 1, 2, 3))

	s.Release()
	if p.InUse() != 0 {
		t.Fatalf("expected 0 buffers in use after Release")
	}
	s.Release() // must not panic or double-free
	if p.InUse() != 0 {
		t.Fatalf("expected InUse to remain 0 after a redundant Release")
	}
}
