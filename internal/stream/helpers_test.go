package stream

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

// testPools includes values that need quoting in both formats.
func testPools() Pools {
	return Pools{
		Names:      []string{"Acme Corp", `Globex "Prime" Inc`, "Smith, Jones & Co", "Initech", "Umbrella"},
		Industries: []string{"Software", "Retail", "Food & Beverage", "Banking", "Biotechnology"},
		Cities:     []string{"Springfield", "Shelbyville", "São Paulo", "New York", "Zürich"},
		States:     []string{"Oregon", "Ohio", "SP", "New York", "ZH"},
		Countries:  []string{"United States", "Brazil", "Switzerland"},
	}
}

func newTestGenerator(t *testing.T, cfg Config) *Generator {
	t.Helper()
	gen, err := NewGenerator(cfg, testPools(), nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	return gen
}

// collect reads the whole stream and returns the body and the first error
// marker, if any.
func collect(t *testing.T, bs *ByteStream) ([]byte, error) {
	t.Helper()

	var body []byte
	var streamErr error
	timeout := time.After(30 * time.Second)
	for {
		select {
		case chunk, ok := <-bs.Chunks():
			if !ok {
				return body, streamErr
			}
			if chunk.Error != nil {
				if streamErr == nil {
					streamErr = chunk.Error
				}
				continue
			}
			body = append(body, *chunk.Buf...)
			bs.Release(chunk.Buf)
		case <-timeout:
			t.Fatal("stream did not finish in time")
		}
	}
}

func openStream(t *testing.T, gen *Generator, req Request) *ByteStream {
	t.Helper()
	bs, err := gen.Open(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(bs.Close)
	return bs
}
