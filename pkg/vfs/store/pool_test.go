package store

import "testing"

func TestPagePoolReusesWithinBound(t *testing.T) {
	pool := NewPagePool(8, 2)

	a := pool.Get()
	copy(a, []byte{1, 2, 3})
	pool.Put(a)

	b := pool.Get()
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d = %d, want 0 (page must be cleared on reuse)", i, v)
		}
	}
}

func TestPagePoolDropsWrongSize(t *testing.T) {
	pool := NewPagePool(8, 4)
	pool.Put(make([]byte, 4)) // wrong size, must be dropped silently
	if pool.pooled.Load() != 0 {
		t.Fatalf("pooled = %d, want 0", pool.pooled.Load())
	}
}

func TestPagePoolZeroBoundDisablesPooling(t *testing.T) {
	pool := NewPagePool(8, 0)
	pool.Put(make([]byte, 8))
	if pool.pooled.Load() != 0 {
		t.Fatalf("pooled = %d, want 0 with pooling disabled", pool.pooled.Load())
	}
}

func TestPagePoolRespectsBound(t *testing.T) {
	pool := NewPagePool(8, 1)
	pool.Put(make([]byte, 8))
	pool.Put(make([]byte, 8))
	if pool.pooled.Load() != 1 {
		t.Fatalf("pooled = %d, want 1 (bound exceeded)", pool.pooled.Load())
	}
}
