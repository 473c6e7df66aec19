package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// E1: the reference 21-byte AX.25 frame for WB2OSZ-15>TEST:Hello.
func referenceFrame(t *testing.T) *Packet {
	t.Helper()
	p, err := Build([]Address{
		{Call: "TEST", SSID: 0},
		{Call: "WB2OSZ", SSID: 15},
	}, 0x03, 0xF0, []byte("Hello"))
	require.NoError(t, err)
	return p
}

func TestBuildThenParseRoundTrip(t *testing.T) {
	p := referenceFrame(t)
	raw := p.Bytes()

	p2, err := FromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, p2.Bytes())
}

func TestAccessors(t *testing.T) {
	p := referenceFrame(t)
	assert.Equal(t, 2, p.NumAddr())
	assert.Equal(t, "TEST", p.GetAddr(0))
	assert.Equal(t, "WB2OSZ", p.GetAddr(1))
	assert.Equal(t, 15, p.GetSSID(1))
	assert.Equal(t, 0xF0, p.GetPID())
	assert.Equal(t, []byte("Hello"), p.GetInfo())
	assert.Equal(t, KindUUI, p.FrameType().Kind)
}

func TestTNC2RoundTrip(t *testing.T) {
	s := "WB2OSZ-15>TEST:Hello"
	p, err := ParseTNC2(s, ParseOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, s, p.FormatTNC2())
}

func TestTNC2WithDigipeaters(t *testing.T) {
	s := "N0CALL>APRS,WIDE1-1*,WIDE2-2:test"
	p, err := ParseTNC2(s, ParseOptions{Strict: false})
	require.NoError(t, err)
	assert.Equal(t, 4, p.NumAddr())
	assert.True(t, p.GetH(2))
	assert.False(t, p.GetH(3))
	assert.Equal(t, s, p.FormatTNC2())
}

func TestTNC2HexEscape(t *testing.T) {
	s := "N0CALL>APRS:abc<0x0D>def"
	p, err := ParseTNC2(s, ParseOptions{Strict: false})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc\rdef"), p.GetInfo())
}

func TestStrictRejectsLongCallsign(t *testing.T) {
	_, err := ParseTNC2("TOOLONGCALL>APRS:x", ParseOptions{Strict: true})
	assert.Error(t, err)
}

func TestStrictRejectsLowerCase(t *testing.T) {
	_, err := ParseTNC2("n0call>APRS:x", ParseOptions{Strict: true})
	assert.Error(t, err)
}

func TestInsertAndRemoveAddr(t *testing.T) {
	p := referenceFrame(t)
	err := p.InsertAddr(2, Address{Call: "DIGI1", SSID: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, p.NumAddr())
	assert.Equal(t, "DIGI1", p.GetAddr(2))
	assert.True(t, p.GetH(2) == false)

	err = p.RemoveAddr(2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumAddr())
}

func TestDedupeChecksumStableAcrossDigipeaters(t *testing.T) {
	p1, err := ParseTNC2("N0CALL>APRS:hello world", ParseOptions{Strict: false})
	require.NoError(t, err)
	p2, err := ParseTNC2("N0CALL>APRS,WIDE1-1:hello world", ParseOptions{Strict: false})
	require.NoError(t, err)
	assert.Equal(t, p1.DedupeChecksum(), p2.DedupeChecksum())
}

func TestFrameTypeSABM(t *testing.T) {
	p, err := Build([]Address{{Call: "DEST"}, {Call: "SRC", H: true}}, 0x3F, -1, nil)
	require.NoError(t, err)
	assert.Equal(t, KindUSABM, p.FrameType().Kind)
	assert.True(t, p.FrameType().PF)
}

// TestIsExtendedHeuristicSFrame is testable property from spec.md §4.6: a
// modulo-128 S-frame parsed from raw bytes with no prior modulo knowledge
// must still be recognized by its second control byte.
func TestIsExtendedHeuristicSFrame(t *testing.T) {
	p, err := BuildExt([]Address{{Call: "DEST"}, {Call: "SRC", H: true}}, []byte{0x01, 0x00}, -1, nil, 128)
	require.NoError(t, err)
	p.Modulo = 0 // Simulate a raw-bytes parse where modulo is not yet known.
	assert.True(t, p.IsExtended())
}

// TestIsExtendedHeuristicIFrame checks the PID-based branch of the same
// heuristic for I-frames.
func TestIsExtendedHeuristicIFrame(t *testing.T) {
	p, err := BuildExt([]Address{{Call: "DEST"}, {Call: "SRC", H: true}}, []byte{0x00, 0x00}, 0xF0, []byte("hi"), 128)
	require.NoError(t, err)
	p.Modulo = 0
	assert.True(t, p.IsExtended())
}

// TestIsExtendedHeuristicRejectsModulo8Frame checks the heuristic doesn't
// false-positive on an ordinary modulo-8 S-frame.
func TestIsExtendedHeuristicRejectsModulo8Frame(t *testing.T) {
	p, err := Build([]Address{{Call: "DEST"}, {Call: "SRC", H: true}}, 0x01, -1, nil)
	require.NoError(t, err)
	p.Modulo = 0
	assert.False(t, p.IsExtended())
}
