package corebuf

import (
	"testing"
)

func TestBufferLifecycle(t *testing.T) {
	b := FromString("{\"config\": true}")

	if b.RefCnt() != 1 {
		t.Fatalf("bad initial refcount %d", b.RefCnt())
	}
	if b.String() != "{\"config\": true}" {
		t.Fatalf("bad content")
	}
	if b.Len() != len("{\"config\": true}") {
		t.Fatalf("bad length")
	}

	b.Retain()
	if b.RefCnt() != 2 {
		t.Fatalf("bad refcount after retain %d", b.RefCnt())
	}

	b.Release()
	b.Release()
	if b.RefCnt() != 0 {
		t.Fatalf("bad refcount after release %d", b.RefCnt())
	}
}

func TestBufferOverRelease(t *testing.T) {
	b := New([]byte("x"))
	b.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on over-release")
		}
	}()
	b.Release()
}

func TestBufferAccessAfterRelease(t *testing.T) {
	b := New([]byte("x"))
	b.Release()

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic on access after release")
		}
	}()
	_ = b.Bytes()
}
