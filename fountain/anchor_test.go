package fountain

import (
	"errors"
	"strings"
	"testing"
)

func TestDescriptorRoundTrip(t *testing.T) {
	d := Descriptor{
		Filename: "report.pdf",
		Length:   123456,
		OTI: OTI{
			TransferLength:  123456,
			SymbolSize:      1200,
			NumSourceBlocks: 2,
			NumSubBlocks:    1,
			SymbolAlignment: 4,
		},
		Scheme: SchemeRaptorQ,
	}

	got, err := ParseAnchor(d.Serialize())
	if err != nil {
		t.Fatalf("ParseAnchor: %v", err)
	}
	if !got.Equal(d) {
		t.Errorf("round-tripped descriptor = %+v, want %+v", got, d)
	}
}

// TestAnchorGoldenLayout pins the exact byte layout of the anchor frame
// (tag, version, 12-byte OTI, scheme, 2-byte filename length, filename)
// so an accidental reordering of fields would fail this test.
func TestAnchorGoldenLayout(t *testing.T) {
	d := Descriptor{
		Filename: "a.txt",
		Length:   0x0102030405,
		OTI: OTI{
			TransferLength:  0x0102030405,
			SymbolSize:      0x0607,
			NumSourceBlocks: 0x08,
			NumSubBlocks:    0x090A,
			SymbolAlignment: 0x0B,
		},
		Scheme: SchemeReedSolomon,
	}

	want := []byte{
		tagAnchor, anchorVersion,
		0x01, 0x02, 0x03, 0x04, 0x05, // F (40-bit transfer length)
		0x00,       // reserved
		0x06, 0x07, // T (symbol size)
		0x08,       // Z (num source blocks)
		0x09, 0x0A, // N (num sub-blocks)
		0x0B,                  // Al
		byte(SchemeReedSolomon), // scheme tag
		0x00, 0x05,            // filename length = 5
		'a', '.', 't', 'x', 't',
	}

	got := d.Serialize()
	if len(got) != len(want) {
		t.Fatalf("len(Serialize()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestParseAnchorTruncated(t *testing.T) {
	_, err := ParseAnchor([]byte{tagAnchor, anchorVersion})
	if !errors.Is(err, ErrMalformedAnchor) {
		t.Errorf("error = %v, want wrapping ErrMalformedAnchor", err)
	}
}

func TestParseAnchorWrongVersion(t *testing.T) {
	d := Descriptor{Filename: "x", OTI: OTI{SymbolSize: 100}}
	wire := d.Serialize()
	wire[1] = 0xFF
	_, err := ParseAnchor(wire)
	if !errors.Is(err, ErrMalformedAnchor) {
		t.Errorf("error = %v, want wrapping ErrMalformedAnchor", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		"/etc/passwd":         "passwd",
		"a/b/c.txt":           "c.txt",
		"..":                  "unnamed",
		".":                   "unnamed",
		"":                    "unnamed",
		`C:\windows\win.ini`:  "win.ini",
	}
	for in, want := range cases {
		got := SanitizeFilename(in)
		if got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
		if strings.ContainsAny(got, `/\`) {
			t.Errorf("SanitizeFilename(%q) = %q still contains a path separator", in, got)
		}
	}
}

func TestDescriptorEqualDetectsConflict(t *testing.T) {
	a := Descriptor{Filename: "x", Length: 10, OTI: OTI{SymbolSize: 100}, Scheme: SchemeRaptorQ}
	b := a
	b.Length = 20
	if a.Equal(b) {
		t.Error("descriptors with different lengths should not be Equal")
	}
}

func TestSchemeTagString(t *testing.T) {
	if SchemeRaptorQ.String() != "raptorq" {
		t.Errorf("SchemeRaptorQ.String() = %q", SchemeRaptorQ.String())
	}
	if SchemeReedSolomon.String() != "reed-solomon" {
		t.Errorf("SchemeReedSolomon.String() = %q", SchemeReedSolomon.String())
	}
}
