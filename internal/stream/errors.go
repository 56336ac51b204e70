package stream

import "errors"

// Request errors are returned by Open before any byte is produced.
var (
	ErrInvalidSizeFormat = errors.New("invalid size format")
	ErrSizeOutOfRange    = errors.New("size out of range")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// Stream errors terminate a stream that has already started.
var (
	ErrEncodingFailure    = errors.New("encoding failure")
	ErrStreamCancelled    = errors.New("stream cancelled")
	ErrInternalScheduling = errors.New("internal scheduling error")
)

// IsRequestError reports whether err was caused by the request itself.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidSizeFormat) ||
		errors.Is(err, ErrSizeOutOfRange) ||
		errors.Is(err, ErrUnsupportedFormat)
}
