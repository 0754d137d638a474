package image

import (
	"fmt"
	"math"
)

// MaxRecordSize is the largest record the bootloader WRITE and READ commands carry.
const MaxRecordSize = 256

// Record is one contiguous slice of the image written with a single command.
type Record struct {
	// Index is the position of the record in the image
	Index int

	// Address is the target address of Data[0]
	Address uint32

	// Data is 1..size bytes of image content
	Data []byte
}

// End returns the address one past the last byte of the record.
func (r Record) End() uint64 {
	return uint64(r.Address) + uint64(len(r.Data))
}

// Chunk splits data into records of at most size bytes, the first one at base.
// Records share data's backing array.
func Chunk(data []byte, base uint32, size int) ([]Record, error) {
	if size < 1 || size > MaxRecordSize {
		return nil, fmt.Errorf("record size %d out of range: must be 1-%d", size, MaxRecordSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if uint64(base)+uint64(len(data)) > math.MaxUint32+1 {
		return nil, fmt.Errorf("image of %d bytes at 0x%08X overflows the address space", len(data), base)
	}

	records := make([]Record, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := off + size
		if end > len(data) {
			end = len(data)
		}
		records = append(records, Record{
			Index:   len(records),
			Address: base + uint32(off),
			Data:    data[off:end],
		})
	}
	return records, nil
}
