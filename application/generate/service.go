package generate

import (
	"context"
	"strconv"

	"datagen/internal/stream"
	"datagen/middleware"

	"go.uber.org/zap"
)

// Opener starts a record stream.
type Opener interface {
	Open(ctx context.Context, req stream.Request, onProgress func(stream.Snapshot)) (*stream.ByteStream, error)
}

type Service struct {
	gen      Opener
	registry *Registry
	metrics  *stream.Metrics
	logger   *zap.Logger
}

// NewService wires the generator to the registry. metrics may be nil.
func NewService(gen Opener, registry *Registry, metrics *stream.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gen:      gen,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Generate opens a stream for requestID and describes how to send it.
// Request errors are returned before anything is produced.
func (s *Service) Generate(ctx context.Context, requestID string, req stream.Request) (middleware.StreamResponse, error) {
	onProgress := func(snap stream.Snapshot) {
		s.logger.Debug("stream progress",
			zap.String("request_id", requestID),
			zap.Uint64("emitted_bytes", snap.EmittedBytes),
			zap.Uint64("target_bytes", snap.TargetBytes),
			zap.Uint64("records", snap.Records),
			zap.Float64("percent", snap.Percent),
		)
		s.metrics.ObserveProgress(requestID, snap)
	}

	bs, err := s.gen.Open(ctx, req, onProgress)
	if err != nil {
		return middleware.StreamResponse{}, err
	}

	s.registry.Add(requestID, bs)
	go func() {
		<-bs.Done()
		s.registry.Remove(requestID)
		s.metrics.ForgetProgress(requestID)
	}()

	s.logger.Info("stream opened",
		zap.String("request_id", requestID),
		zap.String("format", bs.Format().String()),
		zap.Uint64("target_bytes", bs.TargetBytes()),
		zap.Uint64("seed", bs.Seed()),
		zap.Bool("pretty", req.Pretty),
	)

	return middleware.StreamResponse{
		ContentType: bs.ContentType(),
		Headers: map[string]string{
			"X-Target-Bytes": strconv.FormatUint(bs.TargetBytes(), 10),
			"X-Seed":         strconv.FormatUint(bs.Seed(), 10),
		},
		ChunkChan: bs.Chunks(),
		Release:   bs.Release,
		Cancel:    bs.Close,
		Compress:  true,
	}, nil
}

// Progress lists the active streams.
func (s *Service) Progress() []StreamStatus {
	return s.registry.List()
}
