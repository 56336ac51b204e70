package stream

import "testing"

func TestBufferPool(t *testing.T) {
	t.Run("creates pool with correct size", func(t *testing.T) {
		pool := NewBufferPool(1024)

		if buf := pool.Get(); cap(*buf) != 1024 {
			t.Errorf("Expected capacity 1024, got %d", cap(*buf))
		}
	})

	t.Run("falls back to chunk size", func(t *testing.T) {
		pool := NewBufferPool(0)

		if buf := pool.Get(); cap(*buf) != defaultChunkBytes {
			t.Errorf("Expected capacity %d, got %d", defaultChunkBytes, cap(*buf))
		}
	})

	t.Run("gets and puts buffers", func(t *testing.T) {
		pool := NewBufferPool(100)

		buf1 := pool.Get()
		if buf1 == nil {
			t.Fatal("Expected non-nil buffer")
		}

		if len(*buf1) != 0 {
			t.Errorf("Expected empty buffer, got len=%d", len(*buf1))
		}

		if cap(*buf1) < 100 {
			t.Errorf("Expected capacity >= 100, got %d", cap(*buf1))
		}

		*buf1 = append(*buf1, []byte("test")...)
		pool.Put(buf1)

		// Should be reset to zero length
		buf2 := pool.Get()
		if len(*buf2) != 0 {
			t.Errorf("Expected reset buffer, got len=%d", len(*buf2))
		}
	})

	t.Run("drops oversized buffers", func(t *testing.T) {
		pool := NewBufferPool(100)

		big := make([]byte, 0, 10_000)
		pool.Put(&big)

		buf := pool.Get()
		if cap(*buf) > 400 {
			t.Errorf("Expected oversized buffer to be dropped, got cap=%d", cap(*buf))
		}
	})

	t.Run("handles nil put gracefully", func(t *testing.T) {
		pool := NewBufferPool(100)

		// Should not panic
		pool.Put(nil)
	})
}
