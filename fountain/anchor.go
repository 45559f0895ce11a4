package fountain

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Wire layout of the anchor frame (spec §4.2), extended with a one-byte
// scheme tag immediately after the RFC 6330 OTI (SPEC_FULL §6):
//
//	offset  bytes  field
//	0       1      tag = tagAnchor
//	1       1      version
//	2       12     OTI (RFC 6330 common + scheme-specific, see oti.go)
//	14      1      scheme tag
//	15      2      filename length L (big-endian)
//	17      L      filename UTF-8
const (
	anchorVersion      = 0x01
	anchorHeaderLen    = 1 + 1 + otiWireSize + 1 + 2
	maxFilenameWireLen = 1<<16 - 1
)

// SchemeTag identifies which erasure-coding Codec produced the stream's
// symbols. It rides alongside the OTI so a decoder never has to guess.
type SchemeTag uint8

const (
	SchemeRaptorQ SchemeTag = iota
	SchemeReedSolomon
)

func (s SchemeTag) String() string {
	switch s {
	case SchemeRaptorQ:
		return "raptorq"
	case SchemeReedSolomon:
		return "reed-solomon"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// Descriptor is the immutable file descriptor carried by an anchor frame
// (spec §3): everything the decoder needs before it can instantiate a
// Codec decoder and start collecting symbols.
type Descriptor struct {
	Filename string
	Length   uint64
	OTI      OTI
	Scheme   SchemeTag
}

// Equal reports whether two descriptors describe the same transfer. Used
// by the stream decoder to detect a conflicting second anchor (spec §3's
// "first-anchor-wins" invariant).
func (d Descriptor) Equal(o Descriptor) bool {
	return d.Filename == o.Filename && d.Length == o.Length && d.Scheme == o.Scheme && d.OTI == o.OTI
}

// Serialize renders the descriptor as an anchor-frame payload.
func (d Descriptor) Serialize() []byte {
	name := []byte(d.Filename)
	if len(name) > maxFilenameWireLen {
		name = name[:maxFilenameWireLen]
	}

	out := make([]byte, anchorHeaderLen+len(name))
	out[0] = tagAnchor
	out[1] = anchorVersion
	copy(out[2:2+otiWireSize], d.OTI.encode())
	out[2+otiWireSize] = byte(d.Scheme)
	lenOff := 2 + otiWireSize + 1
	out[lenOff] = byte(len(name) >> 8)
	out[lenOff+1] = byte(len(name))
	copy(out[lenOff+2:], name)
	return out
}

// ParseAnchor parses an anchor-frame payload into a Descriptor. It fails
// with ErrMalformedAnchor on a tag/version mismatch, truncation, or
// invalid UTF-8 in the filename. The returned filename is NOT yet
// sanitized — callers that intend to write it to disk must call
// SanitizeFilename first.
func ParseAnchor(b []byte) (Descriptor, error) {
	if len(b) < anchorHeaderLen {
		return Descriptor{}, fmt.Errorf("parse anchor: length %d < %d: %w", len(b), anchorHeaderLen, ErrMalformedAnchor)
	}
	if b[0] != tagAnchor {
		return Descriptor{}, fmt.Errorf("parse anchor: tag %#x: %w", b[0], ErrMalformedAnchor)
	}
	if b[1] != anchorVersion {
		return Descriptor{}, fmt.Errorf("parse anchor: version %d: %w", b[1], ErrMalformedAnchor)
	}

	oti, err := decodeOTI(b[2 : 2+otiWireSize])
	if err != nil {
		return Descriptor{}, fmt.Errorf("parse anchor: %w", err)
	}
	scheme := SchemeTag(b[2+otiWireSize])

	lenOff := 2 + otiWireSize + 1
	nameLen := int(b[lenOff])<<8 | int(b[lenOff+1])
	nameStart := lenOff + 2
	if len(b) < nameStart+nameLen {
		return Descriptor{}, fmt.Errorf("parse anchor: truncated filename: %w", ErrMalformedAnchor)
	}
	nameBytes := b[nameStart : nameStart+nameLen]
	if !utf8.Valid(nameBytes) {
		return Descriptor{}, fmt.Errorf("parse anchor: invalid UTF-8 filename: %w", ErrMalformedAnchor)
	}

	return Descriptor{
		Filename: string(nameBytes),
		Length:   oti.TransferLength,
		OTI:      oti,
		Scheme:   scheme,
	}, nil
}

// SanitizeFilename strips any directory components from a decoded
// filename so a decoder can never be coerced into writing outside its
// working directory (spec §4.2, S6). It returns a safe basename, never
// empty, never "." or "..".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "unnamed"
	}
	return base
}
