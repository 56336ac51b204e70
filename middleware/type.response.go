package middleware

import (
	"time"
)

type Response struct {
	Data    any
	Message string
	Code    int
	Error   error
}

type ResponseAPIDebug struct {
	Version   string    `json:"version"`
	Error     *string   `json:"error"`
	StartTime time.Time `json:"startTime"` // ISO8601 format, e.g., "2025-01-09T15:04:05Z07:00"
	EndTime   time.Time `json:"endTime"`   // ISO8601 format for consistency with StartTime
	RuntimeMs int64     `json:"runtimeMs"` // Runtime in milliseconds for better precision
}

type ResponseAPI struct {
	RequestID string            `json:"requestId"`
	Data      any               `json:"data"`
	Message   string            `json:"message"`
	Debug     *ResponseAPIDebug `json:"debug,omitempty"`
}

type StreamChunk struct {
	Buf   *[]byte // Pointer to pooled buffer, handed back through StreamResponse.Release
	Error error   // Error if any occurred during processing
}

// StreamResponse represents a streaming response configuration
type StreamResponse struct {
	ContentType string             // Content-Type of the body (default application/json)
	Headers     map[string]string  // Extra headers sent with the first chunk
	ChunkChan   <-chan StreamChunk // Channel to receive data chunks
	Release     func(buf *[]byte)  // Returns a written chunk buffer to its pool (optional)
	Cancel      func()             // Stops the producer when the client goes away (optional)
	Compress    bool               // Allow gzip when the client accepts it
	Error       error              // Error to return if streaming fails before starting
	Code        int                // HTTP status code (default 200)
}
