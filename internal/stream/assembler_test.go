package stream

import (
	"context"
	"errors"
	"testing"

	"datagen/middleware"
)

func bytesChunk(seq uint64, s string) Chunk {
	b := []byte(s)
	return Chunk{Seq: seq, Payload: &b, Records: 1}
}

func newTestAssembler(target uint64, out chan middleware.StreamChunk) *assembler {
	return &assembler{
		encoder:  NewEncoder(FormatJSON, false),
		format:   FormatJSON,
		target:   target,
		out:      out,
		pool:     NewBufferPool(64),
		progress: NewProgress(target),
	}
}

func drainOutput(out chan middleware.StreamChunk) string {
	close(out)
	var s string
	for c := range out {
		s += string(*c.Buf)
	}
	return s
}

func TestAssembler(t *testing.T) {
	t.Run("cuts after the chunk that reaches the target", func(t *testing.T) {
		out := make(chan middleware.StreamChunk, 8)
		a := newTestAssembler(10, out)

		ordered := make(chan Chunk, 4)
		ordered <- bytesChunk(0, `{"a":1}`)
		ordered <- bytesChunk(1, `{"b":2}`)
		ordered <- bytesChunk(2, `{"c":3}`)
		close(ordered)

		err := a.run(context.Background(), ordered)
		if !errors.Is(err, errBudgetReached) {
			t.Fatalf("Expected errBudgetReached, got %v", err)
		}

		got := drainOutput(out)
		if got != `[{"a":1},{"b":2}]` {
			t.Errorf("Unexpected output %s", got)
		}
		if a.progress.Snapshot().EmittedBytes != uint64(len(got)) {
			t.Errorf("Expected %d emitted bytes, got %d", len(got), a.progress.Snapshot().EmittedBytes)
		}
	})

	t.Run("closes the document when input ends early", func(t *testing.T) {
		out := make(chan middleware.StreamChunk, 8)
		a := newTestAssembler(1000, out)

		ordered := make(chan Chunk, 4)
		ordered <- bytesChunk(0, `{"a":1}`)
		close(ordered)

		if err := a.run(context.Background(), ordered); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := drainOutput(out); got != `[{"a":1}]` {
			t.Errorf("Unexpected output %s", got)
		}
	})

	t.Run("empty input is still a document", func(t *testing.T) {
		out := make(chan middleware.StreamChunk, 8)
		a := newTestAssembler(1000, out)

		ordered := make(chan Chunk)
		close(ordered)

		if err := a.run(context.Background(), ordered); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got := drainOutput(out); got != `[]` {
			t.Errorf("Unexpected output %s", got)
		}
	})

	t.Run("stops on cancellation without closing framing", func(t *testing.T) {
		out := make(chan middleware.StreamChunk)
		a := newTestAssembler(1000, out)

		ctx, cancel := context.WithCancel(context.Background())
		ordered := make(chan Chunk)

		done := make(chan error, 1)
		go func() { done <- a.run(ctx, ordered) }()

		ordered <- bytesChunk(0, `{"a":1}`)
		ordered <- bytesChunk(1, `{"b":2}`)
		first := <-out
		cancel()

		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
		if got := string(*first.Buf) + drainOutput(out); got != `[{"a":1},` {
			t.Errorf("Unexpected output %s", got)
		}
	})
}

func TestPrepend(t *testing.T) {
	buf := []byte("world")
	prepend(&buf, []byte("hello "))
	if string(buf) != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", buf)
	}

	prepend(&buf, nil)
	if string(buf) != "hello world" {
		t.Errorf("Expected unchanged buffer, got %q", buf)
	}
}
