package health

import (
	"context"
	"errors"
	"time"

	"datagen/middleware"

	json "github.com/json-iterator/go"
)

const pingTimeout = 2 * time.Second

// ErrUnhealthy is returned when a dependency check fails.
var ErrUnhealthy = errors.New("vocabulary database unreachable")

// ActiveStreams reports how many generate streams are running.
type ActiveStreams interface {
	Active() int
}

type Service struct {
	vocabRepo *Repository
	streams   ActiveStreams
}

func NewService(vocabRepo *Repository, streams ActiveStreams) *Service {
	return &Service{
		vocabRepo: vocabRepo,
		streams:   streams,
	}
}

func (s *Service) check(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	result := map[string]any{
		"vocabulary_driver": s.vocabRepo.Driver(),
	}
	if s.streams != nil {
		result["active_streams"] = s.streams.Active()
	}

	if err := s.vocabRepo.Ping(ctx); err != nil {
		result["vocabulary_database"] = "error"
		return result, errors.Join(ErrUnhealthy, err)
	}
	result["vocabulary_database"] = "ok"
	return result, nil
}

func (s *Service) CheckHealth(ctx context.Context) (map[string]any, error) {
	return s.check(ctx)
}

func (s *Service) CheckHealthStream(ctx context.Context) <-chan middleware.StreamChunk {
	chunkChan := make(chan middleware.StreamChunk, 2)
	go func() {
		defer close(chunkChan)

		result, err := s.check(ctx)
		if err != nil {
			chunkChan <- middleware.StreamChunk{Error: err}
			return
		}

		jsonData, err := json.Marshal(result)
		if err != nil {
			chunkChan <- middleware.StreamChunk{Error: err}
			return
		}
		chunkChan <- middleware.StreamChunk{Buf: &jsonData}
	}()
	return chunkChan
}
