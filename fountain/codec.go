package fountain

// DecodeStatus is the outcome of feeding one symbol to a BlockDecoder.
type DecodeStatus int

const (
	NeedMore DecodeStatus = iota
	BlockComplete
)

// AddResult is returned by BlockDecoder.Add.
type AddResult struct {
	Status DecodeStatus
	Data   []byte // set only when Status == BlockComplete
}

// BlockEncoder generates an unbounded, deterministic stream of encoding
// symbols for one source block: source symbols first (ESI 0..K-1), then
// repair symbols (spec §4.3). RaptorQ produces new repair symbols
// indefinitely; Reed-Solomon has a fixed parity set and cycles back to
// ESI 0 once every shard has been served.
type BlockEncoder interface {
	// NextSymbol returns the next symbol's (ESI, payload) pair.
	NextSymbol() (esi uint32, data []byte)
	// NumSourceSymbols returns K for this block.
	NumSourceSymbols() int
}

// BlockDecoder accumulates symbols for one source block until it has
// enough to reconstruct the block's bytes.
type BlockDecoder interface {
	// Add feeds one symbol. It is idempotent: re-adding an ESI already
	// fed returns {NeedMore, nil} without touching decoder state.
	Add(esi uint32, data []byte) (AddResult, error)
}

// Codec is the RaptorQ engine's contract as seen by the rest of the
// transport (spec §4.3). RaptorQ is the default implementation;
// ReedSolomon is wired in as an alternate, fixed-rate scheme selectable
// via the anchor's scheme tag (SPEC_FULL §4, §6).
type Codec interface {
	Algorithm() SchemeTag

	// NewEncoder partitions fileBytes into source blocks such that every
	// symbol fits within maxSymbolSize bytes, and returns the resulting
	// OTI together with one BlockEncoder per source block.
	NewEncoder(fileBytes []byte, maxSymbolSize int) (OTI, []BlockEncoder, error)

	// NewDecoder builds one BlockDecoder per source block described by
	// oti, ready to accept symbols for reconstruction.
	NewDecoder(oti OTI) ([]BlockDecoder, error)
}

// CodecFor resolves a SchemeTag to its Codec implementation.
func CodecFor(scheme SchemeTag) (Codec, error) {
	switch scheme {
	case SchemeRaptorQ:
		return raptorQCodec{}, nil
	case SchemeReedSolomon:
		return reedSolomonCodec{}, nil
	default:
		return nil, ErrUnknownScheme
	}
}
