package tone

import "math"

// PSKVariant selects one of the two V.26 QPSK absolute-phase mappings, or
// the V.27 8-PSK mapping (spec.md §4.1: "Two constellation variants (V26_A
// and V26_B) differing in absolute phase mapping... attempting to use
// QPSK without explicit variant is an error").
type PSKVariant int

const (
	// VariantUnspecified forces callers to pick V26A/V26B/V27 explicitly.
	VariantUnspecified PSKVariant = iota
	VariantV26A
	VariantV26B
	VariantV27
)

// bitsPerSymbol returns how many data bits each PSK symbol carries.
func (v PSKVariant) bitsPerSymbol() int {
	if v == VariantV27 {
		return 3
	}
	return 2
}

// v26APhases and v26BPhases are the Gray-coded phase increments (in units
// of 2π/4) for each 2-bit dibit, differing only in absolute phase origin
// between the two variants.
var v26APhases = [4]float64{0, 1, 3, 2} // Gray-coded: 00,01,10,11 -> 0,90,270,180 degrees
var v26BPhases = [4]float64{0.5, 1.5, 3.5, 2.5} // Same Gray order, rotated 45 degrees at the constellation level.

// v27Phases are the Gray-coded phase increments (in units of 2π/8) for
// each 3-bit tribit, per the V.27 8-PSK constellation.
var v27Phases = [8]float64{1, 0, 2, 3, 6, 7, 5, 4}

// PSKModulator maintains the running absolute phase across symbols,
// emitting a Gray-coded phase increment per input dibit/tribit.
type PSKModulator struct {
	variant    PSKVariant
	sampleRate int
	baud       int
	amplitude  int
	phase      float64 // radians
}

// NewPSKModulator constructs a modulator; variant must not be
// VariantUnspecified.
func NewPSKModulator(variant PSKVariant, sampleRate, baud, amplitude int) (*PSKModulator, error) {
	if variant == VariantUnspecified {
		return nil, errVariantRequired
	}
	return &PSKModulator{variant: variant, sampleRate: sampleRate, baud: baud, amplitude: amplitude}, nil
}

// PutSymbol consumes bitsPerSymbol() bits (packed into the low bits of
// dibit, MSB first) and returns one symbol's worth of audio samples.
func (m *PSKModulator) PutSymbol(dibit int) []int16 {
	var table []float64
	var n float64
	switch m.variant {
	case VariantV26A:
		table, n = v26APhases[:], 4
	case VariantV26B:
		table, n = v26BPhases[:], 4
	default:
		table, n = v27Phases[:], 8
	}

	m.phase += 2 * math.Pi * table[dibit] / n
	samplesPerSymbol := m.sampleRate / m.baud
	out := make([]int16, samplesPerSymbol)
	carrierFreq := float64(m.baud) // Symbol-rate carrier, the common convention for these modems.
	for i := range out {
		t := float64(i) / float64(m.sampleRate)
		v := math.Sin(2*math.Pi*carrierFreq*t + m.phase)
		out[i] = int16(32767.0 * float64(m.amplitude) / 100.0 * v)
	}
	return out
}

// errVariantRequired is returned by NewPSKModulator and NewPSKDemodulator
// when called with VariantUnspecified.
var errVariantRequired = &variantError{}

type variantError struct{}

func (*variantError) Error() string {
	return "tone: PSK variant must be explicitly selected (V26_A, V26_B, or V27)"
}

// PSKDemodulator is the symmetric receive-side counterpart: given a
// measured phase change from the previous symbol, it returns the
// Gray-decoded dibit/tribit.
type PSKDemodulator struct {
	variant   PSKVariant
	lastPhase float64
	haveLast  bool
}

// NewPSKDemodulator constructs a demodulator; variant must not be
// VariantUnspecified.
func NewPSKDemodulator(variant PSKVariant) (*PSKDemodulator, error) {
	if variant == VariantUnspecified {
		return nil, errVariantRequired
	}
	return &PSKDemodulator{variant: variant}, nil
}

// PutPhase consumes one symbol's measured absolute phase (radians) and
// returns the decoded dibit/tribit by finding the closest expected phase
// increment from the last symbol.
func (d *PSKDemodulator) PutPhase(phase float64) int {
	if !d.haveLast {
		d.haveLast = true
		d.lastPhase = phase
		return 0
	}
	delta := phase - d.lastPhase
	d.lastPhase = phase

	for delta < 0 {
		delta += 2 * math.Pi
	}
	for delta >= 2*math.Pi {
		delta -= 2 * math.Pi
	}

	var table []float64
	var n float64
	switch d.variant {
	case VariantV26A:
		table, n = v26APhases[:], 4
	case VariantV26B:
		table, n = v26BPhases[:], 4
	default:
		table, n = v27Phases[:], 8
	}

	best, bestDist := 0, math.MaxFloat64
	for i, inc := range table {
		want := 2 * math.Pi * inc / n
		dist := math.Abs(delta - want)
		if dist > math.Pi {
			dist = 2*math.Pi - dist
		}
		if dist < bestDist {
			bestDist, best = dist, i
		}
	}
	return best
}
