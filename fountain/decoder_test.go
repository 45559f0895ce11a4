package fountain

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/airgapqr/fountain/logger"
)

func TestDecoderStartsAwaitingAnchor(t *testing.T) {
	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	if dec.Status() != AwaitingAnchor {
		t.Fatalf("Status() = %v, want AwaitingAnchor", dec.Status())
	}
}

func TestDecoderIgnoresConflictingAnchor(t *testing.T) {
	input := []byte("hello world")
	enc, err := NewStreamEncoder("a.txt", input, testEncodeOptions(40))
	if err != nil {
		t.Fatalf("NewStreamEncoder: %v", err)
	}
	firstAnchor := enc.Next()

	otherEnc, err := NewStreamEncoder("b.txt", []byte("different file contents"), testEncodeOptions(40))
	if err != nil {
		t.Fatalf("NewStreamEncoder: %v", err)
	}
	secondAnchor := otherEnc.Next()

	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	dec.ScanFrame(firstAnchor)
	if dec.Filename() != "a.txt" {
		t.Fatalf("Filename() = %q, want %q", dec.Filename(), "a.txt")
	}

	dec.ScanFrame(secondAnchor)
	if dec.Filename() != "a.txt" {
		t.Fatalf("conflicting anchor changed Filename() to %q", dec.Filename())
	}
	if dec.Stats().AnchorsIgnoredConflicting != 1 {
		t.Errorf("AnchorsIgnoredConflicting = %d, want 1", dec.Stats().AnchorsIgnoredConflicting)
	}
}

func TestDecoderReDeliveredAnchorIsIdempotent(t *testing.T) {
	input := []byte("hello world")
	enc, err := NewStreamEncoder("a.txt", input, testEncodeOptions(40))
	if err != nil {
		t.Fatalf("NewStreamEncoder: %v", err)
	}
	anchor := enc.Next()

	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	dec.ScanFrame(anchor)
	statsBefore := dec.Stats()
	dec.ScanFrame(anchor)
	statsAfter := dec.Stats()

	if statsAfter.AnchorsSeen != statsBefore.AnchorsSeen {
		t.Errorf("AnchorsSeen changed on idempotent re-delivery: %d -> %d", statsBefore.AnchorsSeen, statsAfter.AnchorsSeen)
	}
	if statsAfter.AnchorsIgnoredConflicting != 0 {
		t.Errorf("AnchorsIgnoredConflicting = %d, want 0 for identical re-delivery", statsAfter.AnchorsIgnoredConflicting)
	}
}

func TestDrainReportsAnchorMissing(t *testing.T) {
	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	src := NewPayloadSliceSource([][]byte{
		{tagPacket, 0, 0, 0, 0, 1, 2, 3},
	})
	_, err := Drain(dec, src)
	if !errors.Is(err, ErrAnchorMissing) {
		t.Errorf("Drain error = %v, want ErrAnchorMissing", err)
	}
}

func TestDrainReportsIncomplete(t *testing.T) {
	input := make([]byte, 1<<16)
	rand.New(rand.NewSource(11)).Read(input)
	enc, err := NewStreamEncoder("x.bin", input, testEncodeOptions(200))
	if err != nil {
		t.Fatalf("NewStreamEncoder: %v", err)
	}

	// Only the anchor and a single packet: nowhere near enough to decode.
	frames := [][]byte{enc.Next(), enc.Next()}

	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	_, err = Drain(dec, NewPayloadSliceSource(frames))
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("Drain error = %v, want ErrIncomplete", err)
	}
}

func TestDrainSucceeds(t *testing.T) {
	input := []byte("hello world")
	enc, err := NewStreamEncoder("a.txt", input, testEncodeOptions(40))
	if err != nil {
		t.Fatalf("NewStreamEncoder: %v", err)
	}
	frames := collectFrames(t, enc, enc.TotalSourceSymbols()+4)

	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	res, err := Drain(dec, NewPayloadSliceSource(frames))
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if string(res.Data) != string(input) {
		t.Errorf("Drain result = %q, want %q", res.Data, input)
	}
}

func TestPendingQueueOverflowDropsOldest(t *testing.T) {
	opts := DecodeOptions{PendingQueueSize: 2}
	dec := NewDecoder(logger.Nop, opts)

	for i := 0; i < 5; i++ {
		dec.ScanFrame([]byte{tagPacket, 0, 0, 0, byte(i), 1})
	}
	if dec.Stats().PendingOverflowDrops != 3 {
		t.Errorf("PendingOverflowDrops = %d, want 3", dec.Stats().PendingOverflowDrops)
	}
}

func TestMalformedFramesAreCountedNotFatal(t *testing.T) {
	dec := NewDecoder(logger.Nop, DefaultDecodeOptions())
	dec.ScanFrame([]byte{0x7F, 1, 2})
	dec.ScanFrame(nil)
	if dec.Status() != AwaitingAnchor {
		t.Fatalf("Status() = %v, want AwaitingAnchor after malformed input", dec.Status())
	}
	if dec.Stats().PacketsDroppedMalformed == 0 {
		t.Error("expected malformed-frame counter to increase")
	}
}
