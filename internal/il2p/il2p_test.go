package il2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestScramblerRoundTrip(t *testing.T) {
	data := []byte("Hello, IL2P!")
	scrambled := ScrambleBlock(data)
	recovered := DescrambleBlock(scrambled, len(data))
	assert.Equal(t, data, recovered)
}

func TestScramblerRoundTripArbitraryData(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(t, "data")
		scrambled := ScrambleBlock(data)
		recovered := DescrambleBlock(scrambled, len(data))
		assert.Equal(t, data, recovered)
	})
}

// TestDescrambleFeedsReceivedBitNotRecoveredBit is a regression guard for
// the bug where Descramble fed its recovered (decoded) bit back into the
// register instead of the bit it actually received.
func TestDescrambleFeedsReceivedBitNotRecoveredBit(t *testing.T) {
	s := &Scrambler{state: 0x100} // bit8=1, bit4=0 -> feedback=1.
	out := s.Descramble(1)
	assert.Equal(t, 0, out, "1 xor feedback(1) should recover 0")
	assert.Equal(t, uint16(0x001), s.state, "register must shift in the received bit (1), not the recovered output (0)")
}

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Transparent:   false,
		MaxFEC:        false,
		HasControlPID: true,
		Dest:          "N0CALL",
		Src:           "WB2OSZ",
		DestSSID:      2,
		SrcSSID:       15,
		PayloadLength: 123,
	}
	data, err := EncodeHeader(h)
	require.NoError(t, err)
	got := DecodeHeader(data)
	assert.Equal(t, h.Dest, got.Dest)
	assert.Equal(t, h.Src, got.Src)
	assert.Equal(t, h.DestSSID, got.DestSSID)
	assert.Equal(t, h.SrcSSID, got.SrcSSID)
	assert.Equal(t, h.PayloadLength, got.PayloadLength)
	assert.Equal(t, h.HasControlPID, got.HasControlPID)
}

func TestHeaderBlockSurvivesOneBitFlip(t *testing.T) {
	h := Header{Dest: "N0CALL", Src: "N0CALL", DestSSID: 1, SrcSSID: 2, PayloadLength: 3, HasControlPID: true}
	block, err := EncodeHeaderBlock(h)
	require.NoError(t, err)

	// Flip one bit in the middle of the scrambled block (E3 scenario).
	corrupted := append([]byte{}, block...)
	corrupted[len(corrupted)/2] ^= 0x10

	got, _, ok := DecodeHeaderBlock(corrupted)
	require.True(t, ok)
	assert.Equal(t, h.Dest, got.Dest)
	assert.Equal(t, h.Src, got.Src)
	assert.Equal(t, h.PayloadLength, got.PayloadLength)
}

// Testable property #3: for payload sizes 0..1023 and both maxFEC
// settings, encode then decode returns the original bytes with zero
// corrections in the absence of noise.
func TestPlanBlocksAndPayloadRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxFEC := rapid.Bool().Draw(t, "maxFEC")
		var plen int
		if maxFEC {
			plen = rapid.IntRange(0, 1023).Draw(t, "plen")
		} else {
			plen = rapid.IntRange(0, 1023).Draw(t, "plen")
		}
		payload := make([]byte, plen)
		for i := range payload {
			payload[i] = rapid.Byte().Draw(t, "b")
		}

		wire, err := EncodePayload(payload, maxFEC)
		require.NoError(t, err)

		got, corrections, ok := DecodePayload(wire, plen, maxFEC)
		require.True(t, ok)
		assert.Equal(t, 0, corrections)
		assert.Equal(t, payload, got)
	})
}

func TestFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Header: Header{
			Dest:          "N0CALL",
			Src:           "N0CALL",
			DestSSID:      1,
			SrcSSID:       2,
			HasControlPID: true,
		},
		Control: 0x03,
		PID:     0xF0,
		Payload: []byte("abc"),
	}
	wire, err := Encode(f)
	require.NoError(t, err)

	require.Equal(t, byte(SyncWord>>16), wire[0])
	require.Equal(t, byte(SyncWord>>8&0xff), wire[1])
	require.Equal(t, byte(SyncWord&0xff), wire[2])

	got, corrections, ok := Decode(wire[3:], false)
	require.True(t, ok)
	assert.Equal(t, 0, corrections)
	assert.Equal(t, "N0CALL", got.Header.Dest)
	assert.Equal(t, byte(0x03), got.Control)
	assert.Equal(t, byte(0xF0), got.PID)
	assert.Equal(t, []byte("abc"), got.Payload)
}

func TestFrameEncodeDecodeInvertedPolarity(t *testing.T) {
	f := Frame{
		Header:  Header{Dest: "N0CALL", Src: "N0CALL", HasControlPID: false},
		Payload: []byte("xyz"),
	}
	wire, err := Encode(f)
	require.NoError(t, err)

	inverted := InvertBytes(wire)
	got, _, ok := Decode(inverted[3:], true)
	require.True(t, ok)
	assert.Equal(t, []byte("xyz"), got.Payload)
}

func TestReceiverFindsSyncAndDecodesFrame(t *testing.T) {
	f := Frame{
		Header:  Header{Dest: "N0CALL", Src: "N0CALL-2", HasControlPID: true},
		Control: 0x03,
		PID:     0xF0,
		Payload: []byte("abc"),
	}
	wire, err := Encode(f)
	require.NoError(t, err)

	recv := NewReceiver()
	var got FrameResult
	for _, b := range wire {
		res := recv.PutByte(b)
		if res.Ready {
			got = res
		}
	}
	require.True(t, got.Ok)
	assert.Equal(t, []byte("abc"), got.Frame.Payload)
}
