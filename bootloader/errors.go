package bootloader

import (
	"fmt"
)

// UnsupportedDeviceError indicates that the product id is not in the device registry.
type UnsupportedDeviceError struct {
	ID uint16
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("unsupported device: product id 0x%03X is not registered", e.ID)
}

// VerifyMismatchError indicates that a record read back differs from the image.
type VerifyMismatchError struct {
	// Index is the record index
	Index int

	// Address is the address of the record
	Address uint32

	// Offset is the position of the first differing byte within the record
	Offset int

	Expected byte
	Actual   byte
}

func (e *VerifyMismatchError) Error() string {
	return fmt.Sprintf("verify mismatch in record %d at 0x%08X: expected 0x%02X, got 0x%02X",
		e.Index, e.Address+uint32(e.Offset), e.Expected, e.Actual)
}

// RecordError indicates that a command failed while processing one record.
type RecordError struct {
	// Phase is PhaseWrite or PhaseVerify
	Phase string

	Index   int
	Total   int
	Address uint32
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s record %d/%d at 0x%08X: %v", e.Phase, e.Index+1, e.Total, e.Address, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
