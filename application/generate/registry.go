package generate

import (
	"sort"
	"sync"
	"time"

	"datagen/internal/stream"
)

// StreamStatus describes one running stream.
type StreamStatus struct {
	RequestID string          `json:"requestId"`
	Format    string          `json:"format"`
	Seed      uint64          `json:"seed,string"`
	StartedAt time.Time       `json:"startedAt"`
	Progress  stream.Snapshot `json:"progress"`
}

type entry struct {
	format   string
	seed     uint64
	started  time.Time
	progress *stream.Progress
}

// Registry tracks the streams currently being served.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{streams: make(map[string]entry)}
}

func (r *Registry) Add(requestID string, bs *stream.ByteStream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[requestID] = entry{
		format:   bs.Format().String(),
		seed:     bs.Seed(),
		started:  time.Now(),
		progress: bs.Progress(),
	}
}

func (r *Registry) Remove(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, requestID)
}

// Active returns the number of registered streams.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.streams)
}

// List returns a snapshot of every stream, oldest first.
func (r *Registry) List() []StreamStatus {
	r.mu.RLock()
	list := make([]StreamStatus, 0, len(r.streams))
	for id, e := range r.streams {
		list = append(list, StreamStatus{
			RequestID: id,
			Format:    e.format,
			Seed:      e.seed,
			StartedAt: e.started,
			Progress:  e.progress.Snapshot(),
		})
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].RequestID < list[j].RequestID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}
