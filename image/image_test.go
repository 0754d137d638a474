package image

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"app.bin", FormatBinary},
		{"app.hex", FormatIntelHex},
		{"APP.HEX", FormatIntelHex},
		{"app.ihex", FormatIntelHex},
		{"app", FormatBinary},
		{"dir.hex/app.img", FormatBinary},
	}

	for _, tt := range tests {
		if got := DetectFormat(tt.path); got != tt.want {
			t.Errorf("DetectFormat(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLoadReaderBinary(t *testing.T) {
	img, err := LoadReader(bytes.NewReader([]byte{0xDE, 0xAD, 0xBE, 0xEF}), FormatBinary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.HasAddress {
		t.Error("binary image should not carry an address")
	}
	if !bytes.Equal(img.Data, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("Data = % X", img.Data)
	}

	if _, err := LoadReader(bytes.NewReader(nil), FormatBinary); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("empty binary error = %v, want ErrEmptyImage", err)
	}
}

func TestLoadReaderIntelHex(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantAddr uint32
		wantData []byte
		wantErr  bool
	}{
		{
			name: "single segment with extended linear address",
			input: ":020000040800F2\n" +
				":0400000001020304F2\n" +
				":00000001FF\n",
			wantAddr: 0x08000000,
			wantData: []byte{0x01, 0x02, 0x03, 0x04},
		},
		{
			name: "gap filled with erased bytes",
			input: ":020000040800F2\n" +
				":0200000011AA43\n" +
				":020004002233A5\n" +
				":00000001FF\n",
			wantAddr: 0x08000000,
			wantData: []byte{0x11, 0xAA, 0xFF, 0xFF, 0x22, 0x33},
		},
		{
			name:    "bad checksum",
			input:   ":0400000001020304F3\n:00000001FF\n",
			wantErr: true,
		},
		{
			name:    "no data",
			input:   ":00000001FF\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := LoadReader(strings.NewReader(tt.input), FormatIntelHex)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !img.HasAddress || img.Address != tt.wantAddr {
				t.Errorf("Address = 0x%08X (has %v), want 0x%08X", img.Address, img.HasAddress, tt.wantAddr)
			}
			if !bytes.Equal(img.Data, tt.wantData) {
				t.Errorf("Data = % X, want % X", img.Data, tt.wantData)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.bin")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o600); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Source != path || img.Format != FormatBinary || img.Size() != 3 {
		t.Errorf("img = %+v", img)
	}

	if _, err := Load(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("expected error for missing file")
	}
}
