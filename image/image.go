package image

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

const (
	// GapFill is the value written into holes between Intel HEX segments
	GapFill = 0xFF

	// MaxImageSize bounds the flattened size of an image
	MaxImageSize = 16 * 1024 * 1024
)

// ErrEmptyImage is returned for images with no data.
var ErrEmptyImage = errors.New("image is empty")

// Format is the on-disk encoding of an image.
type Format int

const (
	// FormatBinary is a raw memory dump
	FormatBinary Format = iota

	// FormatIntelHex is an Intel HEX text file
	FormatIntelHex
)

func (f Format) String() string {
	if f == FormatIntelHex {
		return "intel-hex"
	}
	return "binary"
}

// Image is a firmware image ready to be chunked.
type Image struct {
	// Data is the contiguous image content
	Data []byte

	// Address is the address of Data[0] when the file carries one
	Address uint32

	// HasAddress is set for formats that carry a load address
	HasAddress bool

	// Format is the format the image was decoded from
	Format Format

	// Source is the path the image was loaded from, if any
	Source string
}

// Size returns the image length in bytes.
func (img *Image) Size() int {
	return len(img.Data)
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex", ".ihx":
		return FormatIntelHex
	default:
		return FormatBinary
	}
}

// Load reads an image from disk, choosing the format from the file extension.
//
// Example:
//
//	img, err := image.Load("app.bin")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d bytes\n", img.Size())
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := LoadReader(bufio.NewReader(f), DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	img.Source = path
	return img, nil
}

// LoadReader decodes an image in the given format from any io.Reader.
func LoadReader(r io.Reader, format Format) (*Image, error) {
	switch format {
	case FormatIntelHex:
		return loadIntelHex(r)
	default:
		return loadBinary(r)
	}
}

func loadBinary(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if len(data) > MaxImageSize {
		return nil, fmt.Errorf("image larger than %d bytes", MaxImageSize)
	}
	return &Image{Data: data, Format: FormatBinary}, nil
}

func loadIntelHex(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("invalid intel hex: %w", err)
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, ErrEmptyImage
	}

	start := segments[0].Address
	end := uint64(start)
	for _, s := range segments {
		if s.Address < start {
			start = s.Address
		}
		if e := uint64(s.Address) + uint64(len(s.Data)); e > end {
			end = e
		}
	}

	span := end - uint64(start)
	if span == 0 {
		return nil, ErrEmptyImage
	}
	if span > MaxImageSize {
		return nil, fmt.Errorf("segments span %d bytes from 0x%08X, larger than %d", span, start, MaxImageSize)
	}

	data := bytes.Repeat([]byte{GapFill}, int(span))
	for _, s := range segments {
		copy(data[s.Address-start:], s.Data)
	}

	return &Image{
		Data:       data,
		Address:    start,
		HasAddress: true,
		Format:     FormatIntelHex,
	}, nil
}
