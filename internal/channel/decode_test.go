package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/hdlc"
	"github.com/n0call/tncore/internal/tone"
)

// modulateFrame bit-stuffs an AX.25 frame (data + FCS), prefixes a mark-
// tone lead-in (so the matched filters have settled by the time the
// opening flag arrives, as a real transmitter's TXDelay preamble would
// provide), and renders the result to AFSK audio samples at the given
// baud rate -- the transmit-side mirror of ChannelDecoder's receive path.
func modulateFrame(t *testing.T, data []byte, sampleRate, markFreq, spaceFreq, baud int) []int16 {
	t.Helper()
	fcs := hdlc.FCS(data) ^ hdlc.FCSFinalXOR
	withFCS := append(append([]byte{}, data...), byte(fcs), byte(fcs>>8))
	stuffed, _ := hdlc.BitStuff(withFCS, 0)

	mod := tone.NewAFSKModulator(sampleRate, markFreq, spaceFreq, 100)
	perSymbol := sampleRate / baud

	var samples []int16
	for i := 0; i < 32; i++ {
		samples = append(samples, mod.PutBit(1, perSymbol)...)
	}
	for _, b := range stuffed {
		for i := 0; i < 8; i++ {
			bit := int((b >> uint(i)) & 1)
			samples = append(samples, mod.PutBit(bit, perSymbol)...)
		}
	}
	return samples
}

func TestChannelDecoderRecoversPlainFrameFromAudio(t *testing.T) {
	const sampleRate = 44100
	const markFreq = 1200
	const spaceFreq = 2200
	const baud = 1200

	addrs := []ax25.Address{
		{Call: "N0CALL", SSID: 1},
		{Call: "N0CALL", SSID: 2},
	}
	pkt, err := ax25.Build(addrs, 0x03, 0xF0, []byte("hello"))
	require.NoError(t, err)

	samples := modulateFrame(t, pkt.Bytes(), sampleRate, markFreq, spaceFreq, baud)

	dec := NewAFSKChannelDecoder(sampleRate, markFreq, spaceFreq, baud, 0)
	var got []Candidate
	for _, s := range samples {
		if c, ready := dec.PutSample(s); ready {
			got = append(got, c...)
		}
	}

	require.NotEmpty(t, got)
	found := false
	for _, c := range got {
		if c.Packet != nil && string(c.Packet.GetInfo()) == "hello" {
			found = true
		}
	}
	assert.True(t, found)
}
