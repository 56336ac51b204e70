package middleware

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

func setResponseDefaults(r Response) Response {
	if r.Message == "" {
		r.Message = "Success"
	}
	if r.Code == 0 {
		r.Code = http.StatusOK
	}
	return r
}

func logResponseError(c *gin.Context, logger *zap.Logger, r Response) {
	if r.Error == nil {
		return
	}

	logger.Warn("request failed",
		zap.String("request_id", c.GetString("requestId")),
		zap.String("path", c.Request.URL.Path),
		zap.Int("code", r.Code),
		zap.Error(r.Error),
	)
}

func getStartTime(c *gin.Context) time.Time {
	if value, exists := c.Get("start-time"); exists {
		if t, ok := value.(time.Time); ok {
			return t
		}
	}
	return time.Now()
}

func buildDebugInfo(c *gin.Context, r Response) *ResponseAPIDebug {
	startTime := getStartTime(c)
	endTime := time.Now()

	var errMsg *string
	if r.Error != nil {
		msg := r.Error.Error()
		errMsg = &msg
	}

	return &ResponseAPIDebug{
		Version:   c.GetString("version"),
		StartTime: startTime,
		EndTime:   endTime,
		RuntimeMs: endTime.Sub(startTime).Milliseconds(),
		Error:     errMsg,
	}
}

func buildResponseAPI(c *gin.Context, r Response, shouldDebug bool) ResponseAPI {
	response := ResponseAPI{
		RequestID: c.GetString("requestId"),
		Message:   r.Message,
		Data:      r.Data,
	}

	if shouldDebug {
		response.Debug = buildDebugInfo(c, r)
	}

	return response
}

func send(c *gin.Context, logger *zap.Logger, shouldDebug bool) func(r Response) {
	return func(r Response) {
		r = setResponseDefaults(r)
		logResponseError(c, logger, r)
		response := buildResponseAPI(c, r, shouldDebug)

		c.Abort()
		c.JSON(r.Code, response)
	}
}

func RequestInit() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("requestId", requestID)
		c.Header("X-Request-Id", requestID)

		version := c.Request.Header.Get("version")
		if version == "" {
			version = "1.0.0"
		}
		c.Set("version", version)
		c.Set("start-time", time.Now())
		c.Next()
	}
}

// sendStream writes the chunks of r as they arrive, flushing after each one.
// Errors before the first chunk become a JSON error response; errors after it
// end the body early, which clients must treat as a failed download.
func sendStream(c *gin.Context, logger *zap.Logger, shouldDebug bool, allowGzip bool) func(r StreamResponse) {
	return func(r StreamResponse) {
		if r.Code == 0 {
			r.Code = http.StatusOK
		}
		if r.ContentType == "" {
			r.ContentType = "application/json"
		}
		if r.Cancel != nil {
			defer r.Cancel()
		}
		release := r.Release
		if release == nil {
			release = func(*[]byte) {}
		}

		if r.Error != nil {
			send(c, logger, shouldDebug)(Response{
				Code:    r.Code,
				Message: "Stream failed",
				Error:   r.Error,
			})
			return
		}

		requestID := c.GetString("requestId")
		ctx := c.Request.Context()
		useGzip := allowGzip && r.Compress && acceptsGzip(c.Request)

		var (
			body    io.Writer
			gz      *gzip.Writer
			started bool
			written int64
		)

		startBody := func() {
			c.Header("Content-Type", r.ContentType)
			for k, v := range r.Headers {
				c.Header(k, v)
			}
			body = c.Writer
			if useGzip {
				c.Header("Content-Encoding", "gzip")
				c.Header("Vary", "Accept-Encoding")
				gz, _ = gzip.NewWriterLevel(c.Writer, gzip.BestSpeed)
				body = gz
			}
			c.Status(r.Code)
			started = true
		}

		flush := func() {
			if gz != nil {
				gz.Flush()
			}
			if flusher, ok := c.Writer.(http.Flusher); ok {
				flusher.Flush()
			}
		}

		for {
			select {
			case <-ctx.Done():
				logger.Info("client went away",
					zap.String("request_id", requestID),
					zap.Int64("written_bytes", written),
					zap.Error(ctx.Err()),
				)
				return

			case chunk, ok := <-r.ChunkChan:
				if !ok {
					if !started {
						startBody()
					}
					if gz != nil {
						gz.Close()
					}
					flush()

					if shouldDebug {
						logger.Debug("stream completed",
							zap.String("request_id", requestID),
							zap.Int64("written_bytes", written),
							zap.Int64("runtime_ms", time.Since(getStartTime(c)).Milliseconds()),
						)
					}
					c.Abort()
					return
				}

				if chunk.Error != nil {
					if !started {
						send(c, logger, shouldDebug)(Response{
							Code:    http.StatusInternalServerError,
							Message: "Stream failed",
							Error:   chunk.Error,
						})
						return
					}
					logger.Error("stream aborted",
						zap.String("request_id", requestID),
						zap.Int64("written_bytes", written),
						zap.Error(chunk.Error),
					)
					flush()
					c.Abort()
					return
				}

				if chunk.Buf == nil || len(*chunk.Buf) == 0 {
					release(chunk.Buf)
					continue
				}
				if !started {
					startBody()
				}

				n, err := body.Write(*chunk.Buf)
				release(chunk.Buf)
				written += int64(n)
				if err != nil {
					logger.Info("write failed",
						zap.String("request_id", requestID),
						zap.Int64("written_bytes", written),
						zap.Error(err),
					)
					c.Abort()
					return
				}
				flush()
			}
		}
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(enc, "gzip") {
			return true
		}
	}
	return false
}

// ResponseInit installs the send and sendStream helpers on the context.
// allowGzip enables compressed stream bodies for clients that ask for them.
func ResponseInit(logger *zap.Logger, allowGzip bool) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		shouldDebug := gin.Mode() == gin.DebugMode
		c.Set("send", send(c, logger, shouldDebug))
		c.Set("sendStream", sendStream(c, logger, shouldDebug, allowGzip))
		c.Next()
	}
}
