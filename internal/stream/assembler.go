package stream

import (
	"context"
	"errors"

	"datagen/middleware"
)

// errBudgetReached stops the pipeline once the assembler has emitted the
// final chunk. It never leaves the package.
var errBudgetReached = errors.New("byte budget reached")

// assembler frames the ordered chunks and applies the byte cutoff.
//
// Each chunk is held back until its successor arrives, so separators and the
// closing bracket are appended to an existing payload instead of being sent as
// separate writes. The chunk that first reaches the target is emitted whole:
// cutting a record would break the format, so the target is a floor.
type assembler struct {
	encoder  Encoder
	format   Format
	target   uint64
	out      chan<- middleware.StreamChunk
	pool     BufferPool
	progress *Progress
	metrics  *Metrics

	emitted uint64
	held    *Chunk
}

func (a *assembler) run(ctx context.Context, ordered <-chan Chunk) error {
	defer func() {
		if a.held != nil {
			a.pool.Put(a.held.Payload)
			a.held = nil
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c, ok := <-ordered:
			if !ok {
				return a.finish(ctx)
			}

			if a.held == nil {
				prepend(c.Payload, a.encoder.Open())
			} else {
				*a.held.Payload = append(*a.held.Payload, a.encoder.Separator()...)
				if err := a.emitHeld(ctx); err != nil {
					return err
				}
			}
			a.held = &c

			if a.emitted+uint64(c.Len()) >= a.target {
				if err := a.finish(ctx); err != nil {
					return err
				}
				return errBudgetReached
			}
		}
	}
}

// finish appends the closing framing and emits the last chunk.
func (a *assembler) finish(ctx context.Context) error {
	if a.held == nil {
		// Nothing was generated; still produce a well-formed document.
		buf := a.pool.Get()
		*buf = append(*buf, a.encoder.Open()...)
		*buf = append(*buf, a.encoder.Close()...)
		a.held = &Chunk{Payload: buf}
	} else {
		*a.held.Payload = append(*a.held.Payload, a.encoder.Close()...)
	}
	return a.emitHeld(ctx)
}

func (a *assembler) emitHeld(ctx context.Context) error {
	c := a.held
	n := c.Len()
	if n == 0 {
		a.pool.Put(c.Payload)
		a.held = nil
		return nil
	}

	select {
	case a.out <- middleware.StreamChunk{Buf: c.Payload}:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.held = nil
	a.emitted += uint64(n)
	a.progress.RecordProgress(uint64(n))
	a.metrics.emitted(a.format, n)
	return nil
}

// prepend inserts p at the start of buf.
func prepend(buf *[]byte, p []byte) {
	if len(p) == 0 {
		return
	}
	b := append(*buf, p...)
	copy(b[len(p):], b[:len(b)-len(p)])
	copy(b, p)
	*buf = b
}
