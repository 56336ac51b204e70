package stream

import (
	"context"
	"fmt"
	"time"
)

// maxRecordsPerTask bounds one task when the size estimate is very small.
const maxRecordsPerTask = 1 << 20

// sample is the measured size of one released chunk.
type sample struct {
	bytes   uint64
	records uint64
}

// scheduler is the single-threaded coordinator. It plans tasks, keeps the
// reorder buffer and releases chunks strictly in sequence order. None of its
// fields are shared with workers.
type scheduler struct {
	target     uint64
	chunkBytes uint64
	topUpBytes uint64
	window     int
	seedEst    float64
	pool       BufferPool

	// plan
	nextSeq uint64
	nextID  uint64
	planned uint64

	// in flight: dispatched, not yet released
	inFlight      map[uint64]uint64
	inFlightBytes uint64

	// release
	released      uint64
	releasedBytes uint64
	reorder       map[uint64]Chunk

	// estimate: samples of released chunks not yet folded into the totals
	history       []sample
	foldedUpto    uint64
	foldedBytes   uint64
	foldedRecords uint64
}

func newScheduler(cfg Config, target uint64, seedEstimate float64, pool BufferPool) *scheduler {
	chunkBytes := uint64(cfg.ChunkBytes)
	// Top-up tasks cover a shortfall after the plan is spent; keep them
	// small relative to both the chunk and the target.
	topUp := min(chunkBytes/16, target/8)
	if topUp == 0 {
		topUp = 1
	}

	return &scheduler{
		target:     target,
		chunkBytes: chunkBytes,
		topUpBytes: topUp,
		window:     cfg.Window,
		seedEst:    seedEstimate,
		pool:       pool,
		nextID:     1,
		inFlight:   make(map[uint64]uint64, cfg.Window),
		reorder:    make(map[uint64]Chunk, cfg.Window),
	}
}

// wantMore reports whether another task should be dispatched: the window has
// room and released plus in-flight bytes have not covered the target yet.
func (s *scheduler) wantMore() bool {
	return len(s.inFlight) < s.window && s.releasedBytes+s.inFlightBytes < s.target
}

// plan creates the next task. Its size depends only on earlier plans and on
// chunks at least window positions back, all of which are released by the
// time wantMore allows the call.
func (s *scheduler) plan() Task {
	seq := s.nextSeq
	s.fold(seq)

	approx := s.topUpBytes
	if s.planned < s.target {
		approx = s.chunkBytes
		if rem := s.target - s.planned; rem < approx {
			approx = rem
		}
	}

	records := int(float64(approx) / s.estimate())
	if records < 1 {
		records = 1
	}
	if records > maxRecordsPerTask {
		records = maxRecordsPerTask
	}

	t := Task{Seq: seq, ApproxBytes: approx, Records: records, FirstID: s.nextID}

	s.nextSeq++
	s.nextID += uint64(records)
	s.planned += approx
	s.inFlight[seq] = approx
	s.inFlightBytes += approx

	return t
}

// fold moves samples of chunks up to seq-window into the running totals.
func (s *scheduler) fold(seq uint64) {
	if seq+1 <= uint64(s.window) {
		return
	}
	limit := seq + 1 - uint64(s.window)
	for s.foldedUpto < limit && len(s.history) > 0 {
		h := s.history[0]
		s.history = s.history[1:]
		s.foldedBytes += h.bytes
		s.foldedRecords += h.records
		s.foldedUpto++
	}
}

// estimate is the running average of encoded bytes per record.
func (s *scheduler) estimate() float64 {
	if s.foldedRecords == 0 {
		return s.seedEst
	}
	return float64(s.foldedBytes) / float64(s.foldedRecords)
}

// accept places a completed chunk in the reorder buffer.
func (s *scheduler) accept(c Chunk) error {
	if _, ok := s.inFlight[c.Seq]; !ok {
		return fmt.Errorf("%w: chunk %d was not in flight", ErrInternalScheduling, c.Seq)
	}
	if _, dup := s.reorder[c.Seq]; dup {
		return fmt.Errorf("%w: chunk %d completed twice", ErrInternalScheduling, c.Seq)
	}

	s.reorder[c.Seq] = c
	if len(s.reorder) > s.window {
		return fmt.Errorf("%w: reorder buffer holds %d chunks, window is %d", ErrInternalScheduling, len(s.reorder), s.window)
	}
	return nil
}

// pop returns the next chunk in sequence if it has arrived.
func (s *scheduler) pop() (Chunk, bool) {
	c, ok := s.reorder[s.released]
	if !ok {
		return Chunk{}, false
	}

	delete(s.reorder, c.Seq)
	s.inFlightBytes -= s.inFlight[c.Seq]
	delete(s.inFlight, c.Seq)
	s.released++
	s.releasedBytes += uint64(c.Len())
	s.history = append(s.history, sample{bytes: uint64(c.Len()), records: uint64(c.Records)})

	return c, true
}

// drain returns held buffers to the pool.
func (s *scheduler) drain() {
	for seq, c := range s.reorder {
		s.pool.Put(c.Payload)
		delete(s.reorder, seq)
	}
}

// run is the dispatch and release loop. It closes tasks when it returns and
// closes ordered only when every needed chunk was released, so a failed run
// never looks like a complete one downstream.
func (s *scheduler) run(ctx context.Context, tasks chan<- Task, results <-chan Chunk, ordered chan<- Chunk) error {
	defer close(tasks)
	defer s.drain()

	var pending *Task
	for {
		if pending == nil && s.wantMore() {
			t := s.plan()
			pending = &t
		}
		if pending == nil && len(s.inFlight) == 0 {
			close(ordered)
			return nil
		}

		// A nil channel disables the dispatch case while nothing is pending.
		var dispatch chan<- Task
		var next Task
		if pending != nil {
			dispatch = tasks
			next = *pending
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case dispatch <- next:
			pending = nil

		case c := <-results:
			if c.Err != nil {
				s.pool.Put(c.Payload)
				return fmt.Errorf("chunk %d: %w", c.Seq, c.Err)
			}
			if err := s.accept(c); err != nil {
				s.pool.Put(c.Payload)
				return err
			}
			for {
				rc, ok := s.pop()
				if !ok {
					break
				}
				select {
				case ordered <- rc:
				case <-ctx.Done():
					s.pool.Put(rc.Payload)
					return ctx.Err()
				}
			}
		}
	}
}

// worker turns tasks into encoded chunks.
type worker struct {
	seed     uint64
	source   *Source
	encoder  Encoder
	format   Format
	pool     BufferPool
	progress *Progress
	metrics  *Metrics
	records  []Record
}

// run processes tasks until the channel is closed. Task failures travel as
// Chunk.Err; the coordinator decides what they mean for the stream.
func (w *worker) run(ctx context.Context, tasks <-chan Task, results chan<- Chunk) error {
	for t := range tasks {
		// Queued tasks are abandoned once the stream is over.
		if ctx.Err() != nil {
			return nil
		}
		c := w.build(t)
		select {
		case results <- c:
		case <-ctx.Done():
			w.pool.Put(c.Payload)
			return nil
		}
	}
	return nil
}

func (w *worker) build(t Task) Chunk {
	start := time.Now()
	rng := taskRand(w.seed, t.Seq)

	w.records = w.records[:0]
	for i := 0; i < t.Records; i++ {
		w.records = append(w.records, w.source.Next(rng, t.FirstID+uint64(i)))
	}

	buf := w.pool.Get()
	if err := w.encoder.Encode(buf, w.records, t.Seq == 0); err != nil {
		w.pool.Put(buf)
		return Chunk{Seq: t.Seq, Err: err}
	}

	w.progress.RecordGenerated(uint64(len(*buf)), uint64(t.Records))
	w.metrics.chunkEncoded(w.format, t.Records, time.Since(start))

	return Chunk{Seq: t.Seq, Payload: buf, Records: t.Records}
}
