package protocol

// ChecksumMask is the bit mask that computes the complement of a single byte.
const ChecksumMask = 0xFF

// XORChecksum computes the AN3155 checksum over a sequence of bytes.
// The checksum is the XOR of every byte.
//
// It is used for address fields, write payloads (including the N-1 length
// byte) and erase page lists.
func XORChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// Complement returns the bitwise complement of b.
// Opcodes and the READ byte count are always followed by their complement.
func Complement(b byte) byte {
	return ChecksumMask ^ b
}

// addressChecksum computes the checksum byte that follows a 4-byte address.
func addressChecksum(addr uint32) byte {
	return byte(addr>>24) ^ byte(addr>>16) ^ byte(addr>>8) ^ byte(addr)
}
