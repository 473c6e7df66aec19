package channel

import (
	"strings"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/fx25"
	"github.com/n0call/tncore/internal/hdlc"
	"github.com/n0call/tncore/internal/il2p"
	"github.com/n0call/tncore/internal/tone"
)

// ChannelDecoder fans one channel's demodulated bit/byte stream out to
// every decoder this channel is configured to run in parallel -- plain
// HDLC/AX.25, FX.25, and IL2P -- mirroring the teacher's demod.go/
// multi_modem.go pattern of running several slicers' worth of decoders
// side by side and letting pick_best_candidate choose among whichever of
// them produce a frame for the same on-air window. AFSK demodulation
// (component C1) feeds the bit stream; HDLC and FX.25 consume it bit by
// bit, IL2P is byte-oriented and runs off the same bits regrouped into
// bytes.
type ChannelDecoder struct {
	demod            *tone.AFSKDemodulator
	slice            tone.Slicer
	samplesPerSymbol int
	symbolPos        int

	plain *hdlc.Receiver
	fec   *fx25.Receiver
	il    *il2p.Receiver
	ilAcc byte
	ilLen int

	batch []Candidate
}

// NewAFSKChannelDecoder builds a decoder chain for a conventional Bell
// 202-style AFSK channel, running plain HDLC, FX.25, and IL2P recovery in
// parallel over the same demodulated bit stream (spec.md §4.1/§4.3/§4.4).
// baud selects the symbol rate (1200 for Bell 202, 300 for Bell 103);
// the decoder free-runs a fixed sampleRate/baud symbol clock rather than
// phase-locking to transitions, the simplification spec.md §9 accepts
// for a from-scratch AFSK path.
func NewAFSKChannelDecoder(sampleRate, markFreq, spaceFreq, baud int, dcdThreshold float64) *ChannelDecoder {
	perSymbol := sampleRate / baud
	if perSymbol < 1 {
		perSymbol = 1
	}
	return &ChannelDecoder{
		demod:            tone.NewAFSKDemodulator(sampleRate, markFreq, spaceFreq, dcdThreshold),
		samplesPerSymbol: perSymbol,
		plain:            &hdlc.Receiver{},
		fec:              fx25.NewReceiver(),
		il:               il2p.NewReceiver(),
	}
}

// PutSample feeds one audio sample through demodulation. Once per symbol
// period it slices a bit and drives every parallel frame decoder with it.
// Whenever at least one decoder produces a frame it returns the
// accumulated Candidates for that flag-to-flag window and true; callers
// pass the result straight to Supervisor.SubmitBatch. Bits flow directly
// from the slicer to the HDLC/FX.25/IL2P decoders without a separate NRZI
// stage, matching BitStuff/Unstuff's own convention of operating on data
// bits directly (spec.md §6).
func (d *ChannelDecoder) PutSample(sample int16) ([]Candidate, bool) {
	discriminant, dcd := d.demod.PutSample(sample)
	d.symbolPos++
	if d.symbolPos < d.samplesPerSymbol {
		return nil, false
	}
	d.symbolPos = 0
	if !dcd {
		return nil, false
	}
	dataBit := d.slice.Slice(discriminant)

	ready := false

	if res := d.plain.PutBit(dataBit); res.Ok {
		if pkt, err := ax25.FromBytes(res.Frame); err == nil {
			d.batch = append(d.batch, Candidate{Packet: pkt, FEC: false, Retries: 0})
			ready = true
		}
	}

	if res := d.fec.PutBit(dataBit); res.Ready && res.Ok {
		if pkt, err := ax25.FromBytes(res.Frame); err == nil {
			d.batch = append(d.batch, Candidate{Packet: pkt, FEC: true, Retries: res.Corrections})
			ready = true
		}
	}

	d.ilAcc = (d.ilAcc << 1) | byte(dataBit)
	d.ilLen++
	if d.ilLen == 8 {
		d.ilLen = 0
		if fr := d.il.PutByte(d.ilAcc); fr.Ready && fr.Ok {
			if pkt, ok := packetFromIL2P(fr.Frame); ok {
				d.batch = append(d.batch, Candidate{Packet: pkt, FEC: true, Retries: fr.Corrections})
				ready = true
			}
		}
	}

	if !ready {
		return nil, false
	}
	out := d.batch
	d.batch = nil
	return out, true
}

// packetFromIL2P rebuilds an ax25.Packet from a decoded IL2P frame's
// header and (if present) control/PID pair, so IL2P's own address/control
// encoding (spec.md §4.4) can still be voted on and logged like any other
// decode candidate.
func packetFromIL2P(f il2p.Frame) (*ax25.Packet, bool) {
	if f.Header.Transparent || !f.Header.HasControlPID {
		return nil, false
	}
	addrs := []ax25.Address{
		{Call: strings.TrimSpace(f.Header.Dest), SSID: int(f.Header.DestSSID)},
		{Call: strings.TrimSpace(f.Header.Src), SSID: int(f.Header.SrcSSID)},
	}
	pkt, err := ax25.Build(addrs, f.Control, int(f.PID), f.Payload)
	if err != nil {
		return nil, false
	}
	return pkt, true
}
