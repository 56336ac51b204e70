package stream

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^([+-]?\d+(?:\.\d+)?)\s*([a-z]+)$`)

// sizeUnits uses binary multiples so kb lines up with chunk arithmetic.
var sizeUnits = map[string]uint64{
	"b":  1,
	"kb": 1 << 10,
	"mb": 1 << 20,
	"gb": 1 << 30,
	"tb": 1 << 40,
}

// ParseSize parses a size expression such as "512kb" or "1.5GB" using the
// default ceiling.
func ParseSize(expr string) (SizeBudget, error) {
	return ParseSizeWithLimit(expr, defaultMaxTargetBytes)
}

// ParseSizeWithLimit parses a size expression and rejects budgets above limit.
func ParseSizeWithLimit(expr string, limit uint64) (SizeBudget, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return SizeBudget{}, fmt.Errorf("%w: %q (want <number><unit>, e.g. 10mb)", ErrInvalidSizeFormat, expr)
	}

	multiplier, ok := sizeUnits[m[2]]
	if !ok {
		return SizeBudget{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidSizeFormat, m[2])
	}

	target, err := scaleMagnitude(m[1], multiplier)
	if err != nil {
		return SizeBudget{}, fmt.Errorf("%w: %q: %v", ErrSizeOutOfRange, expr, err)
	}
	if target > limit {
		return SizeBudget{}, fmt.Errorf("%w: %q exceeds limit of %d bytes", ErrSizeOutOfRange, expr, limit)
	}

	return SizeBudget{TargetBytes: target}, nil
}

// scaleMagnitude multiplies the magnitude by the unit, exactly for integer
// magnitudes and truncated to whole bytes for decimals.
func scaleMagnitude(mag string, multiplier uint64) (uint64, error) {
	if strings.HasPrefix(mag, "-") {
		return 0, fmt.Errorf("negative magnitude")
	}
	mag = strings.TrimPrefix(mag, "+")

	if !strings.Contains(mag, ".") {
		n, err := strconv.ParseUint(mag, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("magnitude overflow")
		}
		if n == 0 {
			return 0, fmt.Errorf("zero magnitude")
		}
		if n > math.MaxUint64/multiplier {
			return 0, fmt.Errorf("magnitude overflow")
		}
		return n * multiplier, nil
	}

	f, err := strconv.ParseFloat(mag, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid magnitude")
	}
	bytes := f * float64(multiplier)
	if bytes >= math.MaxUint64 {
		return 0, fmt.Errorf("magnitude overflow")
	}
	if bytes < 1 {
		return 0, fmt.Errorf("budget rounds to zero bytes")
	}
	return uint64(bytes), nil
}
