package fountain

import "fmt"

// Tag byte values. A single discriminator byte is used rather than a
// length-prefixed frame because a QR symbol already delimits its own
// payload length (spec §9).
const (
	tagAnchor = 0x00
	tagPacket = 0x01
)

// packetHeaderLen is the fixed 5-byte header before the symbol payload
// (spec §4.1): tag, source block number, 24-bit encoding symbol ID.
const packetHeaderLen = 5

// UnknownSymbolSize tells ParsePacket to skip the fixed-size check,
// deferring validation until the symbol size is known from an anchor
// (spec §4.1's "PacketPending" behavior).
const UnknownSymbolSize = -1

// Packet is one fountain-coded symbol, self-identifying by its source
// block number and encoding symbol ID (spec §3). Given the OTI from the
// anchor, any single Packet can be fed to a Codec decoder without
// reference to its neighbours.
type Packet struct {
	SourceBlockNumber uint8
	EncodingSymbolID  uint32 // 24-bit: 0..2^24-1
	SymbolBytes       []byte
}

// ParsePacket parses a packet-frame payload. symbolSize is the expected
// length of SymbolBytes, or UnknownSymbolSize to skip that check. (The
// stream decoder does not parse pre-anchor packets at all: it buffers
// them raw and parses them once the anchor arrives.) It fails with ErrMalformedPacket
// on truncation or tag mismatch, and ErrSizeMismatch when symbolSize is
// known and disagrees with the payload.
func ParsePacket(b []byte, symbolSize int) (Packet, error) {
	if len(b) < packetHeaderLen {
		return Packet{}, fmt.Errorf("parse packet: length %d < %d: %w", len(b), packetHeaderLen, ErrMalformedPacket)
	}
	if b[0] != tagPacket {
		return Packet{}, fmt.Errorf("parse packet: tag %#x: %w", b[0], ErrMalformedPacket)
	}

	symbolBytes := b[packetHeaderLen:]
	if symbolSize != UnknownSymbolSize && len(symbolBytes) != symbolSize {
		return Packet{}, fmt.Errorf("parse packet: got %d symbol bytes, want %d: %w", len(symbolBytes), symbolSize, ErrSizeMismatch)
	}

	esi := uint32(b[2])<<16 | uint32(b[3])<<8 | uint32(b[4])
	return Packet{
		SourceBlockNumber: b[1],
		EncodingSymbolID:  esi,
		SymbolBytes:       append([]byte(nil), symbolBytes...),
	}, nil
}

// Serialize renders a Packet as its on-wire packet-frame payload.
func (p Packet) Serialize() []byte {
	out := make([]byte, packetHeaderLen+len(p.SymbolBytes))
	out[0] = tagPacket
	out[1] = p.SourceBlockNumber
	out[2] = byte(p.EncodingSymbolID >> 16)
	out[3] = byte(p.EncodingSymbolID >> 8)
	out[4] = byte(p.EncodingSymbolID)
	copy(out[packetHeaderLen:], p.SymbolBytes)
	return out
}

// FrameTag inspects the first byte of a raw payload without fully
// parsing it, for dispatch in the stream decoder.
func FrameTag(b []byte) (byte, bool) {
	if len(b) == 0 {
		return 0, false
	}
	return b[0], true
}
