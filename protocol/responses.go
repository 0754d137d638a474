package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseGetResponse parses the payload of a GET response.
//
// Data format:
//
//	[VERSION][CMD0][CMD1]...
func ParseGetResponse(data []byte) (*BootloaderInfo, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("invalid data length for GET response: got %d bytes, expected at least 1", len(data))
	}

	info := &BootloaderInfo{
		Version:  data[0],
		Commands: append([]byte(nil), data[1:]...),
	}

	switch {
	case info.Supports(CmdExtendedErase):
		info.EraseMode = EraseExtended
	case info.Supports(CmdErase):
		info.EraseMode = EraseStandard
	default:
		info.EraseMode = EraseUnknown
	}

	return info, nil
}

// ParseGetIDResponse parses the payload of a GET_ID response.
// Returns the product identifier.
//
// Data format (ProductIDSize bytes, big-endian):
//
//	[PID_MSB][PID_LSB]
func ParseGetIDResponse(data []byte) (uint16, error) {
	if len(data) < ProductIDSize {
		return 0, fmt.Errorf("invalid data length for GET_ID response: got %d bytes, expected %d", len(data), ProductIDSize)
	}
	return binary.BigEndian.Uint16(data[:ProductIDSize]), nil
}
