package hdlc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitStuffUnstuffRoundTrip(t *testing.T) {
	data := []byte{0x82, 0xA0, 0x9C, 0x60, 0x86, 0xA2, 0x40, 0xE0, 0x03, 0xF0, 'h', 'i'}
	stuffed, meaningfulLen := BitStuff(data, 0)
	assert.Equal(t, len(stuffed), meaningfulLen)

	got := Unstuff(stuffed)
	require.NotNil(t, got)
	assert.Equal(t, data, got)
}

func TestBitStuffPadsToRequestedLength(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	stuffed, meaningfulLen := BitStuff(data, 32)
	assert.Len(t, stuffed, 32)
	assert.Less(t, meaningfulLen, 32)

	got := Unstuff(stuffed)
	require.NotNil(t, got)
	assert.Equal(t, data, got)
}

func TestUnstuffRejectsMissingLeadingFlag(t *testing.T) {
	assert.Nil(t, Unstuff([]byte{0x00, 0x01}))
}

func TestUnstuffRejectsSevenOnesInARow(t *testing.T) {
	// A flag, then a byte of all-ones (seven 1s well before any stuffed
	// zero could appear), should abort rather than return a frame.
	assert.Nil(t, Unstuff([]byte{Flag, 0xff, 0xff, Flag}))
}

func TestFCSMatchesKnownVector(t *testing.T) {
	// Over the empty message no byte is processed, so FCS (which applies
	// no final XOR) returns the initial value 0xFFFF.
	crc := FCS([]byte{})
	assert.Equal(t, uint16(0xFFFF), crc)
}

func TestNRZIEncodeDecodeRoundTrip(t *testing.T) {
	bits := []int{1, 1, 0, 1, 0, 0, 0, 1, 1, 1, 0}

	var enc NRZIEncoder
	levels := make([]int, len(bits))
	for i, b := range bits {
		levels[i] = enc.Encode(b)
	}

	var dec NRZIDecoder
	got := make([]int, len(bits))
	for i, lvl := range levels {
		got[i] = dec.Decode(lvl)
	}

	assert.Equal(t, bits, got)
}

func TestReceiverRecoversFrameFromBitStuffedStream(t *testing.T) {
	data := []byte{0x82, 0xA0, 0x9C, 0x60, 0x86, 0xA2, 0x40, 0x03, 0xF0, 'o', 'k'}
	fcs := FCS(data) ^ FCSFinalXOR
	withFCS := append(append([]byte{}, data...), byte(fcs), byte(fcs>>8))

	stuffed, _ := BitStuff(withFCS, 0)

	var r Receiver
	var gotFrame []byte
	gotOk := false
	for _, b := range stuffed {
		for i := 0; i < 8; i++ {
			bit := int((b >> uint(i)) & 1)
			if res := r.PutBit(bit); res.Ok {
				gotFrame = res.Frame
				gotOk = true
			}
		}
	}

	require.True(t, gotOk)
	assert.Equal(t, data, gotFrame)
}
