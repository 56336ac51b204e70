// Package stream generates synthetic records as a size-targeted byte stream.
// It turns a requested output size into an ordered sequence of chunk tasks,
// encodes those tasks in parallel and reassembles the chunks in dispatch order,
// so a single well-formed JSON array or CSV document is streamed without ever
// holding the whole output in memory.
//
// Key Features:
// - Size budget parsing (b, kb, mb, gb, tb; binary multiples)
// - Fixed worker pool with ordered reassembly by sequence index
// - Bounded hand-off channels for backpressure
// - Format-aware framing and a hard byte cutoff
// - Lock-free progress counters sampled on a timer
//
// Usage Example:
//
//	gen, err := stream.NewGenerator(stream.DefaultConfig(), pools, nil, logger)
//	if err != nil {
//	    return err
//	}
//
//	bs, err := gen.Open(ctx, stream.Request{Size: "10mb", Format: "json"}, nil)
//	if err != nil {
//	    return err // parse errors, nothing was produced
//	}
//	defer bs.Close()
//
//	for chunk := range bs.Chunks() {
//	    if chunk.Error != nil {
//	        return chunk.Error
//	    }
//	    w.Write(*chunk.Buf)
//	    bs.Release(chunk.Buf)
//	}
package stream

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Format is the serialization of the output stream.
type Format int

const (
	FormatJSON Format = iota
	FormatCSV
)

// ParseFormat resolves a request format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	default:
		return "json"
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// SizeBudget is the parsed target output size.
type SizeBudget struct {
	TargetBytes uint64
}

// Request describes one stream to open.
type Request struct {
	Size   string // magnitude + unit, e.g. "10mb"
	Format string // "json" (default) or "csv"
	Pretty bool   // JSON only; ignored for CSV

	// Seed fixes the random stream. Zero picks a fresh seed per request.
	Seed uint64
}

// Task is one unit of dispatched work. It is consumed by exactly one worker.
type Task struct {
	Seq         uint64 // assigned at dispatch, strictly increasing
	ApproxBytes uint64 // byte goal used to size the task
	Records     int    // records to generate
	FirstID     uint64 // id of the first record; following records count up
}

// Chunk is the encoded output of one Task.
type Chunk struct {
	Seq     uint64
	Payload *[]byte // pooled buffer
	Records int
	Err     error
}

// Len returns the encoded payload size in bytes.
func (c Chunk) Len() int {
	if c.Payload == nil {
		return 0
	}
	return len(*c.Payload)
}

// Config defines the tunables consumed by the generator.
// All fields are optional and have sensible defaults.
type Config struct {
	// Workers is the size of the encoding worker pool.
	//
	// Default: runtime.GOMAXPROCS(0)
	Workers int

	// ChunkBytes is the logical byte goal for one chunk.
	//
	// Default: 256 * 1024 (256KB)
	//
	// Tradeoffs:
	//   - Smaller: finer cutoff, more scheduling overhead
	//   - Larger: fewer hand-offs, larger overshoot past the target
	ChunkBytes int

	// ChannelBuffer is the capacity of every hand-off channel.
	//
	// Default: 4
	ChannelBuffer int

	// Window caps the number of tasks in flight. It is also the lag used by the
	// bytes-per-record estimate, which keeps the chunk plan independent of the
	// worker count.
	//
	// Default: 16
	Window int

	// ProgressInterval is the sampling period of the progress tracker.
	//
	// Default: 500ms
	ProgressInterval time.Duration

	// MaxTargetBytes is the largest accepted size budget.
	//
	// Default: 1 TiB
	MaxTargetBytes uint64
}

const (
	defaultChunkBytes       = 256 * 1024
	defaultChannelBuffer    = 4
	defaultWindow           = 16
	defaultProgressInterval = 500 * time.Millisecond
	defaultMaxTargetBytes   = uint64(1) << 40
)

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		Workers:          runtime.GOMAXPROCS(0),
		ChunkBytes:       defaultChunkBytes,
		ChannelBuffer:    defaultChannelBuffer,
		Window:           defaultWindow,
		ProgressInterval: defaultProgressInterval,
		MaxTargetBytes:   defaultMaxTargetBytes,
	}
}

// Validate applies defaults for zero values and rejects negative ones.
func (c *Config) Validate() error {
	if c.Workers < 0 || c.ChunkBytes < 0 || c.ChannelBuffer < 0 || c.Window < 0 || c.ProgressInterval < 0 {
		return fmt.Errorf("stream config: negative value in %+v", *c)
	}

	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.ChunkBytes == 0 {
		c.ChunkBytes = defaultChunkBytes
	}
	if c.ChannelBuffer == 0 {
		c.ChannelBuffer = defaultChannelBuffer
	}
	if c.Window == 0 {
		c.Window = defaultWindow
	}
	if c.ProgressInterval == 0 {
		c.ProgressInterval = defaultProgressInterval
	}
	if c.MaxTargetBytes == 0 {
		c.MaxTargetBytes = defaultMaxTargetBytes
	}

	return nil
}
