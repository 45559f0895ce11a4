package fountain

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// EncodeOptions controls how a StreamEncoder partitions and schedules a
// file (spec §4.4).
type EncodeOptions struct {
	// ChunkSize is the total QR payload size, including the 5-byte
	// packet header. The effective symbol size is ChunkSize-5.
	ChunkSize int
	// AnchorPeriod is how many packets are emitted between anchor
	// re-interleavings (spec §4.4's [10,50] range; SPEC_FULL decides 25).
	AnchorPeriod int
	// Overhead is the fractional overhead above K used to size a bounded
	// sink's packet budget (spec §4.4: overhead >= 0.05).
	Overhead float64
	// Safety is the flat number of extra symbols added on top of
	// Overhead (spec §4.4: safety >= 4).
	Safety int
	// Scheme selects the Codec used to produce symbols.
	Scheme SchemeTag
	// Interval paces NextPaced() for unbounded sinks (terminal carousel,
	// live display); zero disables pacing. Next() is never paced.
	Interval rate.Limit
}

// DefaultEncodeOptions returns the SPEC_FULL-mandated defaults.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		ChunkSize:    2000,
		AnchorPeriod: 25,
		Overhead:     0.05,
		Safety:       4,
		Scheme:       SchemeRaptorQ,
	}
}

// StreamEncoder produces the lazy, ordered emission schedule of spec
// §4.4: [anchor, packet_0, ..., packet_{M-1}, anchor, packet_M, ...],
// re-interleaving the anchor every AnchorPeriod packets. It is a
// pull-based, single-consumer iterator with no internal threads or
// suspension (spec §5).
type StreamEncoder struct {
	descriptor  Descriptor
	anchorBytes []byte
	blocks      []BlockEncoder
	opts        EncodeOptions

	blockCursor     int
	packetsSinceAnc int
	emittedFirst    bool
	limiter         *rate.Limiter
}

// NewStreamEncoder builds the OTI, partitions fileBytes through the
// selected Codec, and returns a ready-to-pull StreamEncoder.
func NewStreamEncoder(filename string, fileBytes []byte, opts EncodeOptions) (*StreamEncoder, error) {
	if opts.ChunkSize <= packetHeaderLen {
		return nil, fmt.Errorf("fountain: chunk size %d too small for %d-byte packet header", opts.ChunkSize, packetHeaderLen)
	}
	if opts.AnchorPeriod <= 0 {
		opts.AnchorPeriod = DefaultEncodeOptions().AnchorPeriod
	}

	codec, err := CodecFor(opts.Scheme)
	if err != nil {
		return nil, err
	}

	symbolSize := opts.ChunkSize - packetHeaderLen
	oti, blocks, err := codec.NewEncoder(fileBytes, symbolSize)
	if err != nil {
		return nil, fmt.Errorf("fountain: encode %q: %w", filename, err)
	}

	descriptor := Descriptor{
		Filename: filename,
		Length:   uint64(len(fileBytes)),
		OTI:      oti,
		Scheme:   opts.Scheme,
	}

	var limiter *rate.Limiter
	if opts.Interval > 0 {
		limiter = rate.NewLimiter(opts.Interval, 1)
	}

	return &StreamEncoder{
		descriptor:  descriptor,
		anchorBytes: descriptor.Serialize(),
		blocks:      blocks,
		opts:        opts,
		limiter:     limiter,
	}, nil
}

// Descriptor returns the file descriptor this encoder emits.
func (e *StreamEncoder) Descriptor() Descriptor { return e.descriptor }

// TotalSourceSymbols sums K across all source blocks.
func (e *StreamEncoder) TotalSourceSymbols() int {
	total := 0
	for _, b := range e.blocks {
		total += b.NumSourceSymbols()
	}
	return total
}

// BoundedPacketBudget returns the packet count spec §4.4 recommends for
// bounded sinks (GIFs, image directories): ceil(K*(1+overhead))+safety,
// summed per block.
func (e *StreamEncoder) BoundedPacketBudget() int {
	overhead := e.opts.Overhead
	if overhead < 0.05 {
		overhead = 0.05
	}
	safety := e.opts.Safety
	if safety < 4 {
		safety = 4
	}
	total := 0
	for _, b := range e.blocks {
		k := b.NumSourceSymbols()
		total += int(math.Ceil(float64(k)*(1+overhead))) + safety
	}
	return total
}

// Next returns the next payload in the schedule: the anchor frame, or
// the next fountain packet from the current block in round-robin order.
// It never blocks and never returns an error; for unbounded sinks the
// caller simply stops calling Next when done.
func (e *StreamEncoder) Next() []byte {
	if !e.emittedFirst {
		e.emittedFirst = true
		return e.anchorBytes
	}
	if e.packetsSinceAnc >= e.opts.AnchorPeriod {
		e.packetsSinceAnc = 0
		return e.anchorBytes
	}

	block := e.blocks[e.blockCursor]
	esi, data := block.NextSymbol()
	pkt := Packet{SourceBlockNumber: uint8(e.blockCursor), EncodingSymbolID: esi, SymbolBytes: data}

	e.blockCursor = (e.blockCursor + 1) % len(e.blocks)
	e.packetsSinceAnc++
	return pkt.Serialize()
}

// NextPaced behaves like Next but blocks until the configured Interval
// permits another frame, for unbounded sinks that must be paced in real
// time (terminal carousel, live display). It returns ctx.Err() if ctx is
// cancelled first.
func (e *StreamEncoder) NextPaced(ctx context.Context) ([]byte, error) {
	if e.limiter == nil {
		return e.Next(), nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.Next(), nil
}

// Bounded produces exactly BoundedPacketBudget() fountain packets plus
// their interleaved anchors, suitable for a GIF/image-directory sink
// that cannot iterate forever.
func (e *StreamEncoder) Bounded() [][]byte {
	budget := e.BoundedPacketBudget()
	out := make([][]byte, 0, budget+budget/e.opts.AnchorPeriod+1)
	packets := 0
	for packets < budget {
		frame := e.Next()
		out = append(out, frame)
		if t, ok := FrameTag(frame); ok && t == tagPacket {
			packets++
		}
	}
	return out
}
