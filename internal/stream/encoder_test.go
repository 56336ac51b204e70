package stream

import (
	"bytes"
	"encoding/csv"
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
)

func sampleRecords(n int, firstID uint64) []Record {
	source, _ := NewSource(testPools())
	rng := rand.New(rand.NewPCG(1, 2))
	records := make([]Record, n)
	for i := range records {
		records[i] = source.Next(rng, firstID+uint64(i))
	}
	return records
}

func frame(enc Encoder, payloads ...[]byte) []byte {
	var out []byte
	out = append(out, enc.Open()...)
	for i, p := range payloads {
		if i > 0 {
			out = append(out, enc.Separator()...)
		}
		out = append(out, p...)
	}
	return append(out, enc.Close()...)
}

func encode(t *testing.T, enc Encoder, records []Record, first bool) []byte {
	t.Helper()
	buf := make([]byte, 0, 64)
	if err := enc.Encode(&buf, records, first); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	return buf
}

func TestJSONEncoder(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		name := "compact"
		if pretty {
			name = "pretty"
		}

		t.Run(name+" chunks frame into one array", func(t *testing.T) {
			enc := NewEncoder(FormatJSON, pretty)
			first := sampleRecords(3, 1)
			second := sampleRecords(2, 4)

			doc := frame(enc, encode(t, enc, first, true), encode(t, enc, second, false))

			var got []Record
			if err := json.Unmarshal(doc, &got); err != nil {
				t.Fatalf("Invalid JSON: %v\n%s", err, doc)
			}
			want := append(append([]Record{}, first...), second...)
			if len(got) != len(want) {
				t.Fatalf("Expected %d records, got %d", len(want), len(got))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("Record %d: expected %+v, got %+v", i, want[i], got[i])
				}
			}
		})
	}

	t.Run("escapes quotes", func(t *testing.T) {
		enc := NewEncoder(FormatJSON, false)
		rec := sampleRecords(1, 1)[0]
		rec.Name = `Globex "Prime" Inc`

		doc := frame(enc, encode(t, enc, []Record{rec}, true))
		if !bytes.Contains(doc, []byte(`"Globex \"Prime\" Inc"`)) {
			t.Errorf("Expected escaped name in %s", doc)
		}
	})

	t.Run("pretty records nest inside the array", func(t *testing.T) {
		enc := NewEncoder(FormatJSON, true)
		doc := frame(enc, encode(t, enc, sampleRecords(2, 1), true))

		if !bytes.HasPrefix(doc, []byte("[\n  {\n    \"id\": 1,\n")) {
			t.Errorf("Expected record indented one level, got %s", doc)
		}
		if !bytes.Contains(doc, []byte("\n  },\n  {\n    \"id\": 2,")) {
			t.Errorf("Expected records separated at one level, got %s", doc)
		}
		if !bytes.HasSuffix(doc, []byte("\n  }\n]\n")) {
			t.Errorf("Expected closing bracket at column 0, got %s", doc)
		}
		if bytes.Contains(doc, []byte("\n{")) {
			t.Errorf("Expected no record at column 0, got %s", doc)
		}
	})

	t.Run("rejects non-finite revenue", func(t *testing.T) {
		enc := NewEncoder(FormatJSON, false)
		records := sampleRecords(2, 1)
		records[1].Revenue = math.NaN()

		buf := make([]byte, 0, 64)
		err := enc.Encode(&buf, records, true)
		if !errors.Is(err, ErrEncodingFailure) {
			t.Errorf("Expected ErrEncodingFailure, got %v", err)
		}
	})
}

func TestCSVEncoder(t *testing.T) {
	enc := NewEncoder(FormatCSV, true)

	t.Run("header only on the first chunk", func(t *testing.T) {
		first := encode(t, enc, sampleRecords(2, 1), true)
		next := encode(t, enc, sampleRecords(2, 3), false)

		if !strings.HasPrefix(string(first), strings.Join(csvHeader, ",")+"\n") {
			t.Errorf("Expected header line, got %q", first)
		}
		if strings.Contains(string(next), "industry") {
			t.Errorf("Expected no header in later chunk, got %q", next)
		}
	})

	t.Run("rows parse back with quoting", func(t *testing.T) {
		records := sampleRecords(20, 1)
		records[0].Name = "Smith, Jones & Co"
		records[1].Name = `Globex "Prime" Inc`

		doc := frame(enc, encode(t, enc, records[:10], true), encode(t, enc, records[10:], false))

		rows, err := csv.NewReader(bytes.NewReader(doc)).ReadAll()
		if err != nil {
			t.Fatalf("Invalid CSV: %v", err)
		}
		if len(rows) != len(records)+1 {
			t.Fatalf("Expected %d rows, got %d", len(records)+1, len(rows))
		}
		for i, row := range rows {
			if len(row) != len(csvHeader) {
				t.Errorf("Row %d: expected %d columns, got %d", i, len(csvHeader), len(row))
			}
		}
		if rows[1][1] != "Smith, Jones & Co" || rows[2][1] != `Globex "Prime" Inc` {
			t.Errorf("Quoted names did not round-trip: %q, %q", rows[1][1], rows[2][1])
		}
		if rows[20][0] != "20" {
			t.Errorf("Expected last id 20, got %s", rows[20][0])
		}
	})

	t.Run("rejects non-finite revenue", func(t *testing.T) {
		records := sampleRecords(1, 1)
		records[0].Revenue = math.Inf(1)

		buf := make([]byte, 0, 64)
		if err := enc.Encode(&buf, records, true); !errors.Is(err, ErrEncodingFailure) {
			t.Errorf("Expected ErrEncodingFailure, got %v", err)
		}
	})
}

func widest(values []string) string {
	w := ""
	for _, v := range values {
		if len(v) > len(w) {
			w = v
		}
	}
	return w
}

func TestSeedBytesPerRecord(t *testing.T) {
	pools := testPools()
	source, err := NewSource(pools)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	// The widest record the pools and numeric ranges allow.
	rec := Record{
		ID:        math.MaxUint64,
		Name:      widest(pools.Names),
		Industry:  widest(pools.Industries),
		Revenue:   99_999_999.99,
		Employees: maxEmployees - 1,
		City:      widest(pools.Cities),
		State:     widest(pools.States),
		Country:   widest(pools.Countries),
	}

	for _, tc := range []struct {
		name   string
		format Format
		pretty bool
	}{
		{"json", FormatJSON, false},
		{"json_pretty", FormatJSON, true},
		{"csv", FormatCSV, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(tc.format, tc.pretty)
			size := len(encode(t, enc, []Record{rec}, false)) + len(enc.Separator())

			estimate := enc.SeedBytesPerRecord(source.ValueBytes())
			if estimate < float64(size) {
				t.Errorf("Expected estimate of at least %d bytes, got %.0f", size, estimate)
			}
		})
	}
}

func TestSourceNext(t *testing.T) {
	source, err := NewSource(testPools())
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	rng := taskRand(7, 0)
	for i := 0; i < 1000; i++ {
		r := source.Next(rng, uint64(i+1))
		if r.ID != uint64(i+1) {
			t.Fatalf("Expected id %d, got %d", i+1, r.ID)
		}
		if r.Name == "" || r.Industry == "" || r.City == "" || r.State == "" || r.Country == "" {
			t.Fatalf("Record has empty field: %+v", r)
		}
		if r.Revenue < minRevenue || r.Revenue > maxRevenue {
			t.Fatalf("Revenue out of range: %f", r.Revenue)
		}
		if r.Employees < minEmployees || r.Employees >= maxEmployees {
			t.Fatalf("Employees out of range: %d", r.Employees)
		}
	}

	t.Run("same seed and sequence repeat", func(t *testing.T) {
		a := source.Next(taskRand(9, 3), 1)
		b := source.Next(taskRand(9, 3), 1)
		if a != b {
			t.Errorf("Expected identical records, got %+v and %+v", a, b)
		}
	})

	t.Run("rejects empty pools", func(t *testing.T) {
		pools := testPools()
		pools.Countries = nil
		if _, err := NewSource(pools); err == nil {
			t.Error("Expected error for empty country pool")
		}
	})
}

func BenchmarkEncoder(b *testing.B) {
	records := sampleRecords(1000, 1)
	for _, tc := range []struct {
		name   string
		format Format
		pretty bool
	}{
		{"json", FormatJSON, false},
		{"json_pretty", FormatJSON, true},
		{"csv", FormatCSV, false},
	} {
		b.Run(tc.name, func(b *testing.B) {
			enc := NewEncoder(tc.format, tc.pretty)
			pool := NewBufferPool(defaultChunkBytes)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				buf := pool.Get()
				if err := enc.Encode(buf, records, i == 0); err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(len(*buf)))
				pool.Put(buf)
			}
		})
	}
}
