package stream

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// csvHeader is the fixed column order of CSV output.
var csvHeader = []string{"id", "name", "industry", "revenue", "employees", "city", "state", "country"}

var compactJSON = jsoniter.Config{}.Froze()

// Fixed bytes per record besides the vocabulary values: keys, punctuation,
// the separator and the widest numbers (uint64 id, revenue, uint32 employees).
const (
	compactRecordOverhead = 140
	prettyRecordOverhead  = 194
	csvRecordOverhead     = 68
)

// Encoder serializes a batch of records into a chunk payload that is valid
// once concatenated with its neighbours using Separator and framed by Open
// and Close.
type Encoder interface {
	// Encode appends the records to buf. first marks the very first chunk of
	// the stream.
	Encode(buf *[]byte, records []Record, first bool) error

	// Open, Separator and Close are the framing bytes owned by the assembler.
	Open() []byte
	Separator() []byte
	Close() []byte

	// SeedBytesPerRecord is the size estimate used before any chunk exists.
	// valueBytes is the longest combination of vocabulary values a record
	// can carry, so the estimate does not fall short of a real record.
	SeedBytesPerRecord(valueBytes int) float64
}

// NewEncoder returns the encoder for format. pretty only affects JSON.
func NewEncoder(format Format, pretty bool) Encoder {
	if format == FormatCSV {
		return csvEncoder{}
	}
	if pretty {
		return &jsonEncoder{
			pretty:   true,
			open:     []byte("[\n  "),
			sep:      []byte(",\n  "),
			close:    []byte("\n]\n"),
			overhead: prettyRecordOverhead,
		}
	}
	return &jsonEncoder{
		open:     []byte("["),
		sep:      []byte(","),
		close:    []byte("]"),
		overhead: compactRecordOverhead,
	}
}

// jsonEncoder writes records with the compact jsoniter stream. Pretty output
// adds its own whitespace so records sit one level inside the array.
type jsonEncoder struct {
	pretty           bool
	open, sep, close []byte
	overhead         int
}

func (e *jsonEncoder) Open() []byte      { return e.open }
func (e *jsonEncoder) Separator() []byte { return e.sep }
func (e *jsonEncoder) Close() []byte     { return e.close }

func (e *jsonEncoder) SeedBytesPerRecord(valueBytes int) float64 {
	return float64(e.overhead + valueBytes)
}

// field starts the next object member, indented two levels in pretty mode.
func (e *jsonEncoder) field(s *jsoniter.Stream, name string, first bool) {
	if !first {
		s.WriteMore()
	}
	if e.pretty {
		s.WriteRaw("\n    ")
	}
	s.WriteObjectField(name)
	if e.pretty {
		s.WriteRaw(" ")
	}
}

func (e *jsonEncoder) Encode(buf *[]byte, records []Record, _ bool) error {
	s := compactJSON.BorrowStream(nil)
	s.SetBuffer((*buf)[:0])
	defer func() {
		s.SetBuffer(nil)
		compactJSON.ReturnStream(s)
	}()

	for i := range records {
		r := &records[i]
		if math.IsNaN(r.Revenue) || math.IsInf(r.Revenue, 0) {
			return fmt.Errorf("%w: record %d: non-finite revenue", ErrEncodingFailure, r.ID)
		}
		if i > 0 {
			s.Write(e.sep)
		}

		s.WriteObjectStart()
		e.field(s, "id", true)
		s.WriteUint64(r.ID)
		e.field(s, "name", false)
		s.WriteString(r.Name)
		e.field(s, "industry", false)
		s.WriteString(r.Industry)
		e.field(s, "revenue", false)
		s.WriteFloat64(r.Revenue)
		e.field(s, "employees", false)
		s.WriteUint32(r.Employees)
		e.field(s, "city", false)
		s.WriteString(r.City)
		e.field(s, "state", false)
		s.WriteString(r.State)
		e.field(s, "country", false)
		s.WriteString(r.Country)
		if e.pretty {
			s.WriteRaw("\n  ")
		}
		s.WriteObjectEnd()

		if s.Error != nil {
			return fmt.Errorf("%w: record %d: %v", ErrEncodingFailure, r.ID, s.Error)
		}
	}

	*buf = s.Buffer()
	return nil
}

type csvEncoder struct{}

func (csvEncoder) Open() []byte      { return nil }
func (csvEncoder) Separator() []byte { return nil }
func (csvEncoder) Close() []byte     { return nil }

func (csvEncoder) SeedBytesPerRecord(valueBytes int) float64 {
	return float64(csvRecordOverhead + valueBytes)
}

func (csvEncoder) Encode(buf *[]byte, records []Record, first bool) error {
	out := bytes.NewBuffer((*buf)[:0])
	w := csv.NewWriter(out)

	if first {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("%w: header: %v", ErrEncodingFailure, err)
		}
	}

	var row [8]string
	for i := range records {
		r := &records[i]
		if math.IsNaN(r.Revenue) || math.IsInf(r.Revenue, 0) {
			return fmt.Errorf("%w: record %d: non-finite revenue", ErrEncodingFailure, r.ID)
		}
		row[0] = strconv.FormatUint(r.ID, 10)
		row[1] = r.Name
		row[2] = r.Industry
		row[3] = strconv.FormatFloat(r.Revenue, 'f', 2, 64)
		row[4] = strconv.FormatUint(uint64(r.Employees), 10)
		row[5] = r.City
		row[6] = r.State
		row[7] = r.Country
		if err := w.Write(row[:]); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrEncodingFailure, r.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}

	*buf = out.Bytes()
	return nil
}
