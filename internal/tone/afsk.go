// Package tone implements the tone codec (component C1): AFSK (Bell
// 202/103) generation and demodulation, scrambled 9600-baud NRZI
// baseband, V.26 QPSK / V.27 8-PSK, DTMF Goertzel detection and
// generation, and Morse/EAS SAME tone generation.
//
// Grounded on spec.md §4.1; structural hints (function shapes, the
// sine-table and matched-filter layout) come from the teacher's cgo
// gen_tone.go/demod_afsk.go/dtmf.go/morse.go shims, which reveal the
// algorithm through their comments even though their bodies only call
// into the unported C engine.
package tone

import "math"

// sineTableSize is the number of entries in the phase-accumulator sine
// table (spec.md §4.1: "256-entry signed 16-bit sine table").
const sineTableSize = 256

var sineTable [sineTableSize]int16

func init() {
	for i := 0; i < sineTableSize; i++ {
		sineTable[i] = int16(32767.0 * math.Sin(2*math.Pi*float64(i)/float64(sineTableSize)))
	}
}

// AFSKModulator generates Bell 202/103-style AFSK audio samples for a
// caller-driven bit stream, one phase accumulator per tone (mark/space).
type AFSKModulator struct {
	sampleRate   int
	markFreq     int
	spaceFreq    int
	amplitude    int // 0..100, percent of full scale.
	phaseAcc     uint32
	phaseIncMark uint32
	phaseIncSpc  uint32
}

// NewAFSKModulator constructs a modulator for the given sample rate,
// mark/space frequencies (Hz) and amplitude (0..100).
func NewAFSKModulator(sampleRate, markFreq, spaceFreq, amplitude int) *AFSKModulator {
	m := &AFSKModulator{sampleRate: sampleRate, markFreq: markFreq, spaceFreq: spaceFreq, amplitude: amplitude}
	m.phaseIncMark = phaseIncrement(sampleRate, markFreq)
	m.phaseIncSpc = phaseIncrement(sampleRate, spaceFreq)
	return m
}

// phaseIncrement computes the 32-bit phase accumulator step per sample
// for a tone of the given frequency: the top 8 bits of the accumulator
// index the sineTableSize-entry sine table, so one full table cycle
// (2^32 of accumulator range) must take exactly sampleRate/freq samples.
func phaseIncrement(sampleRate, freq int) uint32 {
	return uint32((uint64(freq) << 32) / uint64(sampleRate))
}

// PutBit advances the phase accumulator for one symbol's worth of bit
// (mark for 1, space for 0) and returns samplesPerSymbol audio samples.
func (m *AFSKModulator) PutBit(bit int, samplesPerSymbol int) []int16 {
	inc := m.phaseIncSpc
	if bit != 0 {
		inc = m.phaseIncMark
	}
	out := make([]int16, samplesPerSymbol)
	for i := range out {
		idx := (m.phaseAcc >> 24) & (sineTableSize - 1)
		out[i] = int16(int32(sineTable[idx]) * int32(m.amplitude) / 100)
		m.phaseAcc += inc
	}
	return out
}

// AFSKDemodulator runs two single-pole matched filters centred on mark
// and space, feeding a configurable slicer bank (spec.md §4.1).
type AFSKDemodulator struct {
	sampleRate int
	markFreq   int
	spaceFreq  int

	markI, markQ   float64
	spaceI, spaceQ float64
	phase          float64

	dcdThreshold float64
}

// NewAFSKDemodulator constructs a demodulator for the given sample rate
// and mark/space frequencies.
func NewAFSKDemodulator(sampleRate, markFreq, spaceFreq int, dcdThreshold float64) *AFSKDemodulator {
	return &AFSKDemodulator{sampleRate: sampleRate, markFreq: markFreq, spaceFreq: spaceFreq, dcdThreshold: dcdThreshold}
}

const filterPole = 0.95 // Single-pole IIR smoothing factor for the matched filters.

// PutSample feeds one audio sample through both matched filters and
// returns the instantaneous mark-minus-space discriminant (positive
// favours mark/1, negative favours space/0) plus whether the combined
// energy exceeds the DCD threshold.
func (d *AFSKDemodulator) PutSample(sample int16) (discriminant float64, dcd bool) {
	d.phase += 1.0 / float64(d.sampleRate)
	s := float64(sample) / 32768.0

	markRef := math.Cos(2 * math.Pi * float64(d.markFreq) * d.phase)
	markRefQ := math.Sin(2 * math.Pi * float64(d.markFreq) * d.phase)
	spaceRef := math.Cos(2 * math.Pi * float64(d.spaceFreq) * d.phase)
	spaceRefQ := math.Sin(2 * math.Pi * float64(d.spaceFreq) * d.phase)

	d.markI = filterPole*d.markI + (1-filterPole)*s*markRef
	d.markQ = filterPole*d.markQ + (1-filterPole)*s*markRefQ
	d.spaceI = filterPole*d.spaceI + (1-filterPole)*s*spaceRef
	d.spaceQ = filterPole*d.spaceQ + (1-filterPole)*s*spaceRefQ

	markMag := math.Hypot(d.markI, d.markQ)
	spaceMag := math.Hypot(d.spaceI, d.spaceQ)

	return markMag - spaceMag, markMag+spaceMag > d.dcdThreshold
}

// Slicer applies a DC-offset hypothesis to the demodulator's discriminant
// output and emits a bit; a bank of Slicers with different offsets lets
// the best-of voter (spec.md §9) pick whichever recovers a valid frame
// first.
type Slicer struct {
	DCOffset float64
}

// Slice converts one discriminant sample into a bit.
func (s Slicer) Slice(discriminant float64) int {
	if discriminant > s.DCOffset {
		return 1
	}
	return 0
}
