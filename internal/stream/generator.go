package stream

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"datagen/middleware"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generator opens size-targeted record streams. It is safe for concurrent use;
// every Open call runs its own pipeline.
type Generator struct {
	cfg     Config
	source  *Source
	pool    BufferPool
	metrics *Metrics
	logger  *zap.Logger
}

// NewGenerator validates cfg and builds a generator over pools.
// metrics may be nil.
func NewGenerator(cfg Config, pools Pools, metrics *Metrics, logger *zap.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source, err := NewSource(pools)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		cfg:     cfg,
		source:  source,
		pool:    NewBufferPool(cfg.ChunkBytes + cfg.ChunkBytes/4),
		metrics: metrics,
		logger:  logger,
	}, nil
}

// GetConfig returns the validated configuration.
func (g *Generator) GetConfig() Config {
	return g.cfg
}

// ByteStream is a lazily produced, finite stream of byte chunks. It can be
// consumed exactly once. A closed channel marks the end; a chunk with Error
// set marks a failure, after which the channel is closed without the closing
// framing.
type ByteStream struct {
	chunks   <-chan middleware.StreamChunk
	done     chan struct{}
	cancel   context.CancelFunc
	pool     BufferPool
	progress *Progress
	format   Format
	target   uint64
	seed     uint64
	err      error
}

// Chunks returns the chunk channel.
func (b *ByteStream) Chunks() <-chan middleware.StreamChunk { return b.chunks }

// Done is closed once the pipeline has stopped and the last progress sample
// was delivered.
func (b *ByteStream) Done() <-chan struct{} { return b.done }

// Release hands a written chunk buffer back for reuse.
func (b *ByteStream) Release(buf *[]byte) { b.pool.Put(buf) }

// Close cancels the stream. Safe to call more than once and after the end.
func (b *ByteStream) Close() { b.cancel() }

// Progress returns the stream's progress tracker.
func (b *ByteStream) Progress() *Progress { return b.progress }

// Format returns the output format.
func (b *ByteStream) Format() Format { return b.format }

// ContentType returns the MIME type of the stream.
func (b *ByteStream) ContentType() string { return b.format.ContentType() }

// TargetBytes returns the parsed size budget.
func (b *ByteStream) TargetBytes() uint64 { return b.target }

// Seed returns the seed the records were generated from.
func (b *ByteStream) Seed() uint64 { return b.seed }

// Err returns the terminal error. Only meaningful once Chunks is closed.
func (b *ByteStream) Err() error { return b.err }

// Open validates req and starts the pipeline. Request errors are returned
// here, before anything is produced. onProgress, if not nil, is called at the
// configured sampling interval while the stream runs and once at the end.
func (g *Generator) Open(ctx context.Context, req Request, onProgress func(Snapshot)) (*ByteStream, error) {
	format, err := ParseFormat(req.Format)
	if err != nil {
		return nil, err
	}
	budget, err := ParseSizeWithLimit(req.Size, g.cfg.MaxTargetBytes)
	if err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan middleware.StreamChunk, g.cfg.ChannelBuffer)

	bs := &ByteStream{
		chunks:   out,
		done:     make(chan struct{}),
		cancel:   cancel,
		pool:     g.pool,
		progress: NewProgress(budget.TargetBytes),
		format:   format,
		target:   budget.TargetBytes,
		seed:     seed,
	}

	g.metrics.streamOpened()
	go g.run(ctx, bs, out, NewEncoder(format, req.Pretty && format == FormatJSON), onProgress)

	return bs, nil
}

func (g *Generator) run(ctx context.Context, bs *ByteStream, out chan<- middleware.StreamChunk, enc Encoder, onProgress func(Snapshot)) {
	defer close(bs.done)
	defer close(out)
	defer bs.cancel()

	start := time.Now()

	sampleDone := make(chan struct{})
	sampleCtx, stopSampling := context.WithCancel(context.Background())
	if onProgress != nil {
		go func() {
			defer close(sampleDone)
			bs.progress.Sample(sampleCtx, g.cfg.ProgressInterval, onProgress)
		}()
	} else {
		close(sampleDone)
	}

	err := g.pipeline(ctx, bs, out, enc)

	if err != nil {
		select {
		case out <- middleware.StreamChunk{Error: err}:
		case <-ctx.Done():
		}
	}
	bs.err = err

	stopSampling()
	<-sampleDone

	g.metrics.streamClosed(bs.format, err)

	snap := bs.progress.Snapshot()
	fields := []zap.Field{
		zap.String("format", bs.format.String()),
		zap.Uint64("target_bytes", bs.target),
		zap.Uint64("emitted_bytes", snap.EmittedBytes),
		zap.Uint64("records", snap.Records),
		zap.Uint64("chunks", snap.Chunks),
		zap.Duration("took", time.Since(start)),
	}
	switch {
	case err == nil:
		g.logger.Debug("stream complete", fields...)
	case errors.Is(err, ErrStreamCancelled):
		g.logger.Info("stream cancelled", fields...)
	default:
		g.logger.Error("stream failed", append(fields, zap.Error(err))...)
	}
}

// pipeline wires coordinator, workers and assembler and waits for them.
func (g *Generator) pipeline(ctx context.Context, bs *ByteStream, out chan<- middleware.StreamChunk, enc Encoder) error {
	tasks := make(chan Task, g.cfg.ChannelBuffer)
	results := make(chan Chunk, g.cfg.ChannelBuffer)
	ordered := make(chan Chunk, g.cfg.ChannelBuffer)

	eg, gctx := errgroup.WithContext(ctx)

	for i := 0; i < g.cfg.Workers; i++ {
		w := &worker{
			seed:     bs.seed,
			source:   g.source,
			encoder:  enc,
			format:   bs.format,
			pool:     g.pool,
			progress: bs.progress,
			metrics:  g.metrics,
		}
		eg.Go(func() error { return w.run(gctx, tasks, results) })
	}

	sched := newScheduler(g.cfg, bs.target, enc.SeedBytesPerRecord(g.source.ValueBytes()), g.pool)
	eg.Go(func() error { return sched.run(gctx, tasks, results, ordered) })

	asm := &assembler{
		encoder:  enc,
		format:   bs.format,
		target:   bs.target,
		out:      out,
		pool:     g.pool,
		progress: bs.progress,
		metrics:  g.metrics,
	}
	eg.Go(func() error { return asm.run(gctx, ordered) })

	err := eg.Wait()
	switch {
	case err == nil, errors.Is(err, errBudgetReached):
		return nil
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrStreamCancelled, context.Cause(ctx))
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStreamCancelled, err)
	default:
		return err
	}
}
