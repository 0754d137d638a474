package image

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		length    int
		size      int
		wantCount int
		wantLast  int
	}{
		{"single byte", 1, 256, 1, 1},
		{"exact record", 256, 256, 1, 256},
		{"one over", 257, 256, 2, 1},
		{"several records", 5000, 256, 20, 136},
		{"small records", 100, 16, 7, 4},
		{"record size one", 3, 1, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.length)
			for i := range data {
				data[i] = byte(i)
			}

			const base = 0x08000000
			records, err := Chunk(data, base, tt.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(records) != tt.wantCount {
				t.Fatalf("got %d records, want %d", len(records), tt.wantCount)
			}

			var joined []byte
			for i, r := range records {
				if r.Index != i {
					t.Errorf("record %d has index %d", i, r.Index)
				}
				if r.Address != base+uint32(i*tt.size) {
					t.Errorf("record %d address = 0x%08X", i, r.Address)
				}
				if i < len(records)-1 && len(r.Data) != tt.size {
					t.Errorf("record %d length = %d, want %d", i, len(r.Data), tt.size)
				}
				if i > 0 && uint64(r.Address) != records[i-1].End() {
					t.Errorf("record %d is not contiguous with record %d", i, i-1)
				}
				joined = append(joined, r.Data...)
			}

			if last := records[len(records)-1]; len(last.Data) != tt.wantLast {
				t.Errorf("last record length = %d, want %d", len(last.Data), tt.wantLast)
			}
			if !bytes.Equal(joined, data) {
				t.Error("records do not reassemble to the image")
			}
		})
	}
}

func TestChunkErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		base    uint32
		size    int
		wantErr string
	}{
		{"zero size", []byte{1}, 0, 0, "out of range"},
		{"oversized records", []byte{1}, 0, 257, "out of range"},
		{"empty", nil, 0, 256, "empty"},
		{"address overflow", make([]byte, 16), 0xFFFFFFF8, 256, "overflows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chunk(tt.data, tt.base, tt.size)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestChunkEmptySentinel(t *testing.T) {
	if _, err := Chunk(nil, 0, 16); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("error = %v, want ErrEmptyImage", err)
	}
}

func TestChunkEndOfAddressSpace(t *testing.T) {
	records, err := Chunk(make([]byte, 8), 0xFFFFFFF8, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[1].Address != 0xFFFFFFFC {
		t.Errorf("records = %+v", records)
	}
}
