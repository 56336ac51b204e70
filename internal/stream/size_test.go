package stream

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    uint64
		wantErr error
	}{
		{name: "kilobytes", expr: "1kb", want: 1024},
		{name: "megabytes upper case", expr: "10MB", want: 10 << 20},
		{name: "gigabytes with spaces", expr: " 2 gb ", want: 2 << 30},
		{name: "terabytes", expr: "1tb", want: 1 << 40},
		{name: "bytes", expr: "512b", want: 512},
		{name: "decimal magnitude", expr: "1.5kb", want: 1536},
		{name: "decimal truncated", expr: "1.0001kb", want: 1024},
		{name: "explicit plus", expr: "+3kb", want: 3072},
		{name: "empty", expr: "", wantErr: ErrInvalidSizeFormat},
		{name: "missing unit", expr: "10", wantErr: ErrInvalidSizeFormat},
		{name: "missing magnitude", expr: "kb", wantErr: ErrInvalidSizeFormat},
		{name: "unknown unit", expr: "10xb", wantErr: ErrInvalidSizeFormat},
		{name: "garbage", expr: "lots", wantErr: ErrInvalidSizeFormat},
		{name: "exponent", expr: "1e3kb", wantErr: ErrInvalidSizeFormat},
		{name: "two dots", expr: "1.2.3mb", wantErr: ErrInvalidSizeFormat},
		{name: "zero", expr: "0kb", wantErr: ErrSizeOutOfRange},
		{name: "negative", expr: "-1mb", wantErr: ErrSizeOutOfRange},
		{name: "below one byte", expr: "0.0001kb", wantErr: ErrSizeOutOfRange},
		{name: "above limit", expr: "2tb", wantErr: ErrSizeOutOfRange},
		{name: "overflow", expr: "99999999999999999999gb", wantErr: ErrSizeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.expr)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				if !IsRequestError(err) {
					t.Errorf("Expected %v to be a request error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.TargetBytes != tt.want {
				t.Errorf("Expected %d bytes, got %d", tt.want, got.TargetBytes)
			}
		})
	}
}

func TestParseSizeWithLimit(t *testing.T) {
	t.Run("accepts budget at the limit", func(t *testing.T) {
		got, err := ParseSizeWithLimit("1kb", 1024)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got.TargetBytes != 1024 {
			t.Errorf("Expected 1024, got %d", got.TargetBytes)
		}
	})

	t.Run("rejects budget above the limit", func(t *testing.T) {
		_, err := ParseSizeWithLimit("2kb", 1024)
		if !errors.Is(err, ErrSizeOutOfRange) {
			t.Errorf("Expected ErrSizeOutOfRange, got %v", err)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatJSON},
		{in: "json", want: FormatJSON},
		{in: "JSON", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if FormatCSV.ContentType() != "text/csv" || FormatJSON.ContentType() != "application/json" {
		t.Errorf("Unexpected content types %q, %q", FormatCSV.ContentType(), FormatJSON.ContentType())
	}
}
