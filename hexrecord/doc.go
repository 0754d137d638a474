// Package hexrecord implements the colon-hex record format spoken by the Z80
// flash loader, and an incremental parser for it.
//
// # Record Format
//
//	:LLAAAATT[DD...]CC
//
// Where:
//   - LL is the payload length (0-255)
//   - AAAA is the 16-bit address, big-endian
//   - TT is the record type
//   - DD... is the payload, LL bytes
//   - CC is the two's complement of the sum of every byte from LL to the last DD
//
// Every field is two uppercase hex digits per byte. Records may be surrounded
// by any characters; the parser ignores everything until the next ':'.
//
// # Building Records
//
//	rec, err := hexrecord.New(hexrecord.TypeData, 0x0010, payload)
//	link.Send(rec.Encode())
//
// # Parsing
//
// The Parser is fed one character at a time and keeps its position across
// calls, so records may arrive split over any number of reads:
//
//	var p hexrecord.Parser
//	for _, c := range received {
//	    switch p.Feed(c) {
//	    case hexrecord.Accepted:
//	        rec := p.Record()
//	    case hexrecord.ChecksumMismatch, hexrecord.Malformed:
//	        // record dropped, parser is back at WaitStart
//	    }
//	}
package hexrecord
