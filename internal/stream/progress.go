package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// Progress is the request-scoped progress state of one stream. Producers only
// ever touch it through atomic adds.
type Progress struct {
	target    uint64
	started   time.Time
	emitted   atomic.Uint64
	generated atomic.Uint64
	records   atomic.Uint64
	chunks    atomic.Uint64
}

// Snapshot is a point-in-time view of a Progress.
type Snapshot struct {
	TargetBytes    uint64        `json:"targetBytes"`
	EmittedBytes   uint64        `json:"emittedBytes"`
	GeneratedBytes uint64        `json:"generatedBytes"`
	Records        uint64        `json:"records"`
	Chunks         uint64        `json:"chunks"`
	Percent        float64       `json:"percent"`
	Elapsed        time.Duration `json:"elapsedNs"`
}

// NewProgress returns a tracker for a stream of target bytes.
func NewProgress(target uint64) *Progress {
	return &Progress{target: target, started: time.Now()}
}

// RecordProgress adds bytes handed to the transport.
func (p *Progress) RecordProgress(n uint64) {
	p.emitted.Add(n)
}

// RecordGenerated adds one encoded chunk.
func (p *Progress) RecordGenerated(bytes uint64, records uint64) {
	p.generated.Add(bytes)
	p.records.Add(records)
	p.chunks.Add(1)
}

// Snapshot reads the counters. Values are individually, not jointly, atomic.
func (p *Progress) Snapshot() Snapshot {
	emitted := p.emitted.Load()
	percent := 100.0
	if p.target > 0 {
		percent = float64(emitted) / float64(p.target) * 100
		if percent > 100 {
			percent = 100
		}
	}

	return Snapshot{
		TargetBytes:    p.target,
		EmittedBytes:   emitted,
		GeneratedBytes: p.generated.Load(),
		Records:        p.records.Load(),
		Chunks:         p.chunks.Load(),
		Percent:        percent,
		Elapsed:        time.Since(p.started),
	}
}

// Sample calls fn with a snapshot every interval until ctx is done, then once
// more with the final state. It blocks; run it in its own goroutine.
func (p *Progress) Sample(ctx context.Context, interval time.Duration, fn func(Snapshot)) {
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(p.Snapshot())
		case <-ctx.Done():
			fn(p.Snapshot())
			return
		}
	}
}
