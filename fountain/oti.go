package fountain

import "fmt"

// otiWireSize is the RFC 6330 Object Transmission Information size: the
// 8-byte Common OTI (F, reserved, T) followed by the 4-byte
// Scheme-specific OTI (Z, N, Al).
const otiWireSize = 12

// KMaxSourceSymbolsPerBlock is RFC 6330's Kt(max) — a source block may
// never contain more than this many source symbols. Encoding partitions
// the file into enough source blocks to respect this bound. A var rather
// than a const so tests can lower it to force the Z>1 multi-block split
// path without needing a multi-hundred-megabyte fixture.
var KMaxSourceSymbolsPerBlock uint32 = 56403

// OTI is the 12-byte RFC 6330 Object Transmission Information a decoder
// needs before it can reconstruct anything (spec §3).
type OTI struct {
	TransferLength  uint64 // F: total source-object length in bytes (40-bit on the wire)
	SymbolSize      uint16 // T
	NumSourceBlocks uint8  // Z
	NumSubBlocks    uint16 // N
	SymbolAlignment uint8  // Al
}

func (o OTI) encode() []byte {
	b := make([]byte, otiWireSize)
	f := o.TransferLength
	b[0] = byte(f >> 32)
	b[1] = byte(f >> 24)
	b[2] = byte(f >> 16)
	b[3] = byte(f >> 8)
	b[4] = byte(f)
	b[5] = 0 // reserved
	b[6] = byte(o.SymbolSize >> 8)
	b[7] = byte(o.SymbolSize)
	b[8] = o.NumSourceBlocks
	b[9] = byte(o.NumSubBlocks >> 8)
	b[10] = byte(o.NumSubBlocks)
	b[11] = o.SymbolAlignment
	return b
}

func decodeOTI(b []byte) (OTI, error) {
	if len(b) != otiWireSize {
		return OTI{}, fmt.Errorf("decode OTI: length %d != %d: %w", len(b), otiWireSize, ErrMalformedAnchor)
	}
	f := uint64(b[0])<<32 | uint64(b[1])<<24 | uint64(b[2])<<16 | uint64(b[3])<<8 | uint64(b[4])
	return OTI{
		TransferLength:  f,
		SymbolSize:      uint16(b[6])<<8 | uint16(b[7]),
		NumSourceBlocks: b[8],
		NumSubBlocks:    uint16(b[9])<<8 | uint16(b[10]),
		SymbolAlignment: b[11],
	}, nil
}

// blockLengths deterministically splits a transfer of the given total
// length into numBlocks source blocks of near-equal size, the same way
// on the encode and the decode side: both only need (TransferLength,
// NumSourceBlocks) from the OTI to agree on the split.
func blockLengths(transferLength uint64, numBlocks int) []uint64 {
	lens := make([]uint64, numBlocks)
	base := transferLength / uint64(numBlocks)
	rem := transferLength % uint64(numBlocks)
	for i := range lens {
		lens[i] = base
		if uint64(i) < rem {
			lens[i]++
		}
	}
	return lens
}
