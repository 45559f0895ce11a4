package fountain

import "errors"

// Sentinel errors for the wire-level and session-level failure kinds the
// fountain transport can report. Per-frame failures (MalformedPacket,
// MalformedAnchor, SizeMismatch) are never surfaced to callers directly;
// the decoder counts them in Stats and moves on, since the transport
// medium is lossy by definition. Only whole-session outcomes propagate.
var (
	ErrMalformedPacket    = errors.New("fountain: malformed packet")
	ErrMalformedAnchor    = errors.New("fountain: malformed anchor")
	ErrSizeMismatch       = errors.New("fountain: symbol size mismatch")
	ErrInconsistentSymbol = errors.New("fountain: inconsistent symbol")
	ErrAnchorMissing      = errors.New("fountain: stream ended before any anchor was seen")
	ErrIncomplete         = errors.New("fountain: stream ended before decoding completed")
	ErrOutputExists       = errors.New("fountain: output file already exists")
	ErrUnknownScheme      = errors.New("fountain: unknown erasure-coding scheme")
)
