package fountain

import (
	"errors"

	"golang.org/x/crypto/blake2b"

	"github.com/airgapqr/fountain/internal/seenset"
	"github.com/airgapqr/fountain/logger"
)

// Status is the stream decoder's state (spec §4.5 / §3). Transitions are
// monotonic along AwaitingAnchor -> Collecting -> Complete; Failed is
// terminal from any non-Complete state.
type Status int

const (
	AwaitingAnchor Status = iota
	Collecting
	Complete
	Failed
)

func (s Status) String() string {
	switch s {
	case AwaitingAnchor:
		return "AwaitingAnchor"
	case Collecting:
		return "Collecting"
	case Complete:
		return "Complete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DecodeOptions controls the decoder's bounded resources.
type DecodeOptions struct {
	// PendingQueueSize bounds the pre-anchor packet buffer (spec §4.5:
	// "a small pending queue (bounded, e.g. 64 packets)").
	PendingQueueSize int
}

// DefaultDecodeOptions returns the spec-mandated default.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{PendingQueueSize: 64}
}

// Stats are diagnostic counters for frames that never affect session
// outcome (spec §7: "per-frame parse and size errors are silently
// dropped ... with a diagnostic counter").
type Stats struct {
	AnchorsSeen                int
	AnchorsIgnoredConflicting  int
	PacketsDroppedMalformed    int
	PacketsDroppedSizeMismatch int
	PacketsDeduplicated        int
	PendingOverflowDrops       int
}

// ScanResult is returned by every ScanFrame call (spec §4.5).
type ScanResult struct {
	Status          Status
	ProgressCurrent int
	ProgressTotal   int
	Filename        string
	Data            []byte
}

// pendingPacket is a buffered pre-anchor frame, kept raw so it can be
// re-parsed once the real symbol size is known.
type pendingPacket struct {
	raw []byte
}

// Decoder is the stream decoder state machine (spec §4.5). ScanFrame is
// its sole mutator; there is no internal locking because the core is
// single-threaded cooperative (spec §5) — callers must not call
// ScanFrame concurrently on the same Decoder.
type Decoder struct {
	log  logger.Logger
	opts DecodeOptions

	status     Status
	descriptor *Descriptor
	blocks     []BlockDecoder
	blockDone  []bool
	seen       *seenset.Set

	progressTotal int
	fedCount      int
	blocksDone    int
	result        []byte
	resultHash    [blake2b.Size256]byte

	pending []pendingPacket

	stats Stats
}

// NewDecoder creates a Decoder in AwaitingAnchor. A nil log is treated
// as logger.Nop.
func NewDecoder(log logger.Logger, opts DecodeOptions) *Decoder {
	if log == nil {
		log = logger.Nop
	}
	if opts.PendingQueueSize <= 0 {
		opts = DefaultDecodeOptions()
	}
	return &Decoder{
		log:    log,
		opts:   opts,
		status: AwaitingAnchor,
		seen:   seenset.New(),
	}
}

// Status returns the decoder's current state.
func (d *Decoder) Status() Status { return d.status }

// Stats returns the diagnostic counters accumulated so far.
func (d *Decoder) Stats() Stats { return d.stats }

// Filename returns the sanitized filename once an anchor has been seen,
// or "" before that.
func (d *Decoder) Filename() string {
	if d.descriptor == nil {
		return ""
	}
	return SanitizeFilename(d.descriptor.Filename)
}

// Result returns the reconstructed bytes once Status() == Complete.
func (d *Decoder) Result() []byte { return d.result }

// ResultHash returns the BLAKE2b-256 digest of Result(), giving the
// "hashes deterministically from the same source file regardless of
// packet order" invariant (spec §3) an observable value a CLI can log.
func (d *Decoder) ResultHash() [blake2b.Size256]byte { return d.resultHash }

// ScanFrame is the decoder's sole mutator (spec §4.5). Once Complete,
// further calls are no-ops that just replay the final ScanResult.
func (d *Decoder) ScanFrame(payload []byte) ScanResult {
	if d.status == Complete {
		return d.snapshot()
	}
	if d.status == Failed {
		return d.snapshot()
	}

	tag, ok := FrameTag(payload)
	if !ok {
		d.stats.PacketsDroppedMalformed++
		return d.snapshot()
	}

	switch tag {
	case tagAnchor:
		d.handleAnchor(payload)
	case tagPacket:
		d.handlePacket(payload)
	default:
		// Unknown tag: dropped, no counter specified by spec for this case.
	}

	return d.snapshot()
}

func (d *Decoder) handleAnchor(payload []byte) {
	descriptor, err := ParseAnchor(payload)
	if err != nil {
		d.stats.PacketsDroppedMalformed++
		d.log.Debugf("fountain: dropped malformed anchor: %v", err)
		return
	}

	if d.descriptor != nil {
		if d.descriptor.Equal(descriptor) {
			return // idempotent re-delivery
		}
		d.stats.AnchorsIgnoredConflicting++
		d.log.Debugf("fountain: ignoring conflicting anchor for %q", descriptor.Filename)
		return
	}

	codec, err := CodecFor(descriptor.Scheme)
	if err != nil {
		d.stats.PacketsDroppedMalformed++
		d.log.Errorf("fountain: anchor names unknown scheme %v: %v", descriptor.Scheme, err)
		return
	}
	blocks, err := codec.NewDecoder(descriptor.OTI)
	if err != nil {
		d.stats.PacketsDroppedMalformed++
		d.log.Errorf("fountain: failed to instantiate decoder: %v", err)
		return
	}

	d.descriptor = &descriptor
	d.blocks = blocks
	d.blockDone = make([]bool, len(blocks))
	d.status = Collecting
	d.stats.AnchorsSeen++
	d.progressTotal = totalSourceSymbols(descriptor.OTI, len(blocks))

	d.drainPending()
}

// totalSourceSymbols recomputes K across all blocks from the OTI using
// the same split the codecs use internally, so progress_total can be
// derived without exposing per-block K on BlockDecoder.
func totalSourceSymbols(oti OTI, numBlocks int) int {
	if numBlocks < 1 {
		numBlocks = 1
	}
	total := 0
	for _, l := range blockLengths(oti.TransferLength, numBlocks) {
		k := (l + uint64(oti.SymbolSize) - 1) / uint64(oti.SymbolSize)
		if k < 1 {
			k = 1
		}
		total += int(k)
	}
	return total
}

func (d *Decoder) drainPending() {
	pending := d.pending
	d.pending = nil
	for _, p := range pending {
		d.handlePacket(p.raw)
	}
}

func (d *Decoder) handlePacket(payload []byte) {
	if d.status == AwaitingAnchor {
		if len(d.pending) >= d.opts.PendingQueueSize {
			d.pending = d.pending[1:]
			d.stats.PendingOverflowDrops++
			d.log.Debugf("fountain: pending queue full, dropped oldest buffered packet")
		}
		d.pending = append(d.pending, pendingPacket{raw: append([]byte(nil), payload...)})
		return
	}

	symbolSize := int(d.descriptor.OTI.SymbolSize)
	pkt, err := ParsePacket(payload, symbolSize)
	if err != nil {
		if errors.Is(err, ErrSizeMismatch) {
			d.stats.PacketsDroppedSizeMismatch++
		} else {
			d.stats.PacketsDroppedMalformed++
		}
		d.log.Debugf("fountain: dropped packet: %v", err)
		return
	}
	if int(pkt.SourceBlockNumber) >= len(d.blocks) {
		d.stats.PacketsDroppedMalformed++
		return
	}
	if d.blockDone[pkt.SourceBlockNumber] {
		d.stats.PacketsDeduplicated++
		return
	}

	key := seenset.Key(pkt.SourceBlockNumber, pkt.EncodingSymbolID)
	if !d.seen.Add(key) {
		d.stats.PacketsDeduplicated++
		return
	}

	d.fedCount++
	if d.fedCount > d.progressTotal {
		d.fedCount = d.progressTotal
	}

	result, err := d.blocks[pkt.SourceBlockNumber].Add(pkt.EncodingSymbolID, pkt.SymbolBytes)
	if err != nil {
		d.status = Failed
		d.log.Errorf("fountain: %v: %v", ErrInconsistentSymbol, err)
		return
	}
	if result.Status != BlockComplete {
		return
	}

	d.completeBlock(pkt.SourceBlockNumber, result.Data)
}

func (d *Decoder) completeBlock(blockNum uint8, data []byte) {
	if d.result == nil {
		d.result = make([]byte, d.descriptor.Length)
	}
	lens := blockLengths(d.descriptor.Length, len(d.blocks))
	offset := uint64(0)
	for i := 0; i < int(blockNum); i++ {
		offset += lens[i]
	}
	blockLen := lens[blockNum]
	end := offset + blockLen
	if uint64(len(data)) < blockLen {
		d.status = Failed
		d.log.Errorf("fountain: reconstructed block %d shorter than expected", blockNum)
		return
	}
	copy(d.result[offset:end], data[:blockLen])

	d.blockDone[blockNum] = true
	d.blocksDone++
	if d.blocksDone < len(d.blocks) {
		return // other blocks still collecting
	}

	d.status = Complete
	d.resultHash = blake2b.Sum256(d.result)
	d.log.Infof("fountain: reconstructed %q (%d bytes)", d.Filename(), len(d.result))
}

func (d *Decoder) snapshot() ScanResult {
	current := d.fedCount
	if current > d.progressTotal {
		current = d.progressTotal
	}
	res := ScanResult{
		Status:          d.status,
		ProgressCurrent: current,
		ProgressTotal:   d.progressTotal,
	}
	if d.descriptor != nil {
		res.Filename = d.Filename()
	}
	if d.status == Complete {
		res.Data = d.result
	}
	return res
}

