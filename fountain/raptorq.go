package fountain

import (
	"fmt"

	"github.com/xssnick/raptorq"
)

// raptorQCodec is the default Codec (spec §4.3), wrapping
// github.com/xssnick/raptorq. The teacher's fec/raptorq.go wraps this
// same library around a single block; here it is generalized to
// spec.md's multi-source-block OTI by holding one raptorq.RaptorQ
// encoder/decoder pair per block, partitioned by blockLengths.
type raptorQCodec struct{}

func (raptorQCodec) Algorithm() SchemeTag { return SchemeRaptorQ }

func (raptorQCodec) NewEncoder(fileBytes []byte, maxSymbolSize int) (OTI, []BlockEncoder, error) {
	if maxSymbolSize <= 0 || maxSymbolSize > 0xFFFF {
		return OTI{}, nil, fmt.Errorf("raptorq: symbol size %d out of range", maxSymbolSize)
	}

	transferLength := uint64(len(fileBytes))
	maxBlockPayload := uint64(maxSymbolSize) * uint64(KMaxSourceSymbolsPerBlock)
	numBlocks := 1
	if maxBlockPayload > 0 {
		numBlocks = int((transferLength + maxBlockPayload - 1) / maxBlockPayload)
	}
	if numBlocks < 1 {
		numBlocks = 1
	}
	if numBlocks > 255 {
		return OTI{}, nil, fmt.Errorf("raptorq: file requires %d source blocks, exceeds 255", numBlocks)
	}

	oti := OTI{
		TransferLength:  transferLength,
		SymbolSize:      uint16(maxSymbolSize),
		NumSourceBlocks: uint8(numBlocks),
		NumSubBlocks:    1,
		SymbolAlignment: 4,
	}

	lens := blockLengths(transferLength, numBlocks)
	encoders := make([]BlockEncoder, numBlocks)
	offset := uint64(0)
	for i, blockLen := range lens {
		block := fileBytes[offset : offset+blockLen]
		offset += blockLen

		k := (len(block) + maxSymbolSize - 1) / maxSymbolSize
		if k < 1 {
			k = 1
		}
		padded := make([]byte, k*maxSymbolSize)
		copy(padded, block)

		rq := raptorq.NewRaptorQ(uint16(maxSymbolSize))
		enc, err := rq.CreateEncoder(padded)
		if err != nil {
			return OTI{}, nil, fmt.Errorf("raptorq: create encoder for block %d: %w", i, err)
		}
		encoders[i] = &raptorQBlockEncoder{enc: enc, k: uint32(k)}
	}

	return oti, encoders, nil
}

func (raptorQCodec) NewDecoder(oti OTI) ([]BlockDecoder, error) {
	if oti.SymbolSize == 0 {
		return nil, fmt.Errorf("raptorq: symbol size is zero: %w", ErrMalformedAnchor)
	}
	numBlocks := int(oti.NumSourceBlocks)
	if numBlocks < 1 {
		numBlocks = 1
	}

	lens := blockLengths(oti.TransferLength, numBlocks)
	decoders := make([]BlockDecoder, numBlocks)
	for i, blockLen := range lens {
		k := (blockLen + uint64(oti.SymbolSize) - 1) / uint64(oti.SymbolSize)
		if k < 1 {
			k = 1
		}
		payloadLen := k * uint64(oti.SymbolSize)

		rq := raptorq.NewRaptorQ(oti.SymbolSize)
		dec, err := rq.CreateDecoder(payloadLen)
		if err != nil {
			return nil, fmt.Errorf("raptorq: create decoder for block %d: %w", i, err)
		}
		decoders[i] = &raptorQBlockDecoder{dec: dec, seen: make(map[uint32]bool)}
	}
	return decoders, nil
}

type raptorQBlockEncoder struct {
	enc raptorq.Encoder
	k   uint32
	esi uint32
}

func (e *raptorQBlockEncoder) NumSourceSymbols() int { return int(e.k) }

func (e *raptorQBlockEncoder) NextSymbol() (uint32, []byte) {
	esi := e.esi
	e.esi++
	return esi, e.enc.GenSymbol(esi)
}

type raptorQBlockDecoder struct {
	dec  raptorq.Decoder
	seen map[uint32]bool
}

func (d *raptorQBlockDecoder) Add(esi uint32, data []byte) (AddResult, error) {
	if d.seen[esi] {
		return AddResult{Status: NeedMore}, nil
	}

	canTry, err := d.dec.AddSymbol(esi, data)
	if err != nil {
		return AddResult{}, fmt.Errorf("raptorq: add symbol %d: %w", esi, err)
	}
	d.seen[esi] = true

	if !canTry {
		return AddResult{Status: NeedMore}, nil
	}

	ok, result, err := d.dec.Decode()
	if err != nil {
		return AddResult{}, fmt.Errorf("raptorq: decode attempt: %w", err)
	}
	if !ok {
		return AddResult{Status: NeedMore}, nil
	}
	return AddResult{Status: BlockComplete, Data: result}, nil
}
