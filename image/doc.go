// Package image loads firmware images and splits them into programming records.
//
// # Image Formats
//
// Two on-disk formats are accepted:
//   - Raw binary (.bin and anything else): the bytes are the image, with no
//     address of their own
//   - Intel HEX (.hex, .ihex): parsed with github.com/marcinbor85/gohex; the
//     data segments are flattened into one contiguous block starting at the
//     lowest address, with gaps filled with 0xFF (erased flash)
//
// # Usage
//
//	img, err := image.Load("firmware.hex")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	records, err := image.Chunk(img.Data, 0x08000000, image.MaxRecordSize)
//
// Records are contiguous: record i starts at base+i*size, and only the last
// one may be shorter than size.
package image
