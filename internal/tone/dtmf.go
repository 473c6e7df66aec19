package tone

import "math"

// dtmfRows and dtmfCols are the eight standard DTMF tone frequencies
// (spec.md §4.1).
var dtmfRows = [4]float64{697, 770, 852, 941}
var dtmfCols = [4]float64{1209, 1336, 1477, 1633}

// dtmfKeys maps [row][col] to the keypad character.
var dtmfKeys = [4][4]byte{
	{'1', '2', '3', 'A'},
	{'4', '5', '6', 'B'},
	{'7', '8', '9', 'C'},
	{'*', '0', '#', 'D'},
}

// DTMFBlockSize returns the Goertzel analysis block size for sampleRate,
// per spec.md §4.1: round(205 * sampleRate / 8000).
func DTMFBlockSize(sampleRate int) int {
	return int(math.Round(205.0 * float64(sampleRate) / 8000.0))
}

// groupWinner returns the index of the one entry in mags whose value
// exceeds ratio times the sum of the other three, or -1 if none does.
func groupWinner(mags [4]float64, ratio float64) int {
	best := -1
	for i, m := range mags {
		rest := 0.0
		for j, o := range mags {
			if j != i {
				rest += o
			}
		}
		if m > ratio*rest {
			best = i
		}
	}
	return best
}

// goertzel evaluates the Goertzel single-bin power for freq over block at
// the given sample rate.
func goertzel(block []float64, sampleRate int, freq float64) float64 {
	w := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(w)

	var s0, s1, s2 float64
	for _, x := range block {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	return power
}

// DTMFDetector accumulates one analysis block at a time and debounces
// the decoded key, emitting a key only once per press and a sequence-end
// marker after SilenceBlocks blocks of continuous silence (spec.md §4.1 and
// testable property #7: detection must be amplitude-insensitive).
type DTMFDetector struct {
	sampleRate int
	blockSize  int
	buf        []float64

	lastKey      byte
	debounce     int
	silenceCount int

	// DebounceBlocks is the number of consecutive blocks a key must be
	// seen in before it is reported (rejects transients).
	DebounceBlocks int
	// SilenceBlocks is the number of consecutive silent blocks that marks
	// the end of a sequence.
	SilenceBlocks int
}

// NewDTMFDetector constructs a detector for sampleRate, with a 5-second
// default silence timeout (spec.md §4.1).
func NewDTMFDetector(sampleRate int) *DTMFDetector {
	blockSize := DTMFBlockSize(sampleRate)
	return &DTMFDetector{
		sampleRate:     sampleRate,
		blockSize:      blockSize,
		DebounceBlocks: 2,
		SilenceBlocks:  (5 * sampleRate) / blockSize,
	}
}

// DTMFEvent is one detector output: a decoded key, a sequence-end marker,
// or neither (ok is false).
type DTMFEvent struct {
	Key    byte
	SeqEnd bool
}

// PutSample accumulates one audio sample, running Goertzel detection once
// a full block has been collected.
func (d *DTMFDetector) PutSample(sample int16) (ev DTMFEvent, ok bool) {
	d.buf = append(d.buf, float64(sample)/32768.0)
	if len(d.buf) < d.blockSize {
		return DTMFEvent{}, false
	}
	block := d.buf
	d.buf = nil
	return d.analyzeBlock(block)
}

func (d *DTMFDetector) analyzeBlock(block []float64) (ev DTMFEvent, ok bool) {
	var rowMag, colMag [4]float64
	for i, f := range dtmfRows {
		rowMag[i] = math.Sqrt(math.Max(0, goertzel(block, d.sampleRate, f)))
	}
	for i, f := range dtmfCols {
		colMag[i] = math.Sqrt(math.Max(0, goertzel(block, d.sampleRate, f)))
	}

	// A row/column wins only if its magnitude exceeds 1.74x the sum of
	// the other three in its group (spec.md §4.1); this ratio test is
	// scale-invariant, which is what gives property #7 (amplitude
	// insensitivity) for free.
	const winRatio = 1.74
	rowBest := groupWinner(rowMag, winRatio)
	colBest := groupWinner(colMag, winRatio)

	present := rowBest >= 0 && colBest >= 0

	if !present {
		d.debounce = 0
		d.lastKey = 0
		d.silenceCount++
		if d.silenceCount == d.SilenceBlocks {
			return DTMFEvent{SeqEnd: true}, true
		}
		return DTMFEvent{}, false
	}

	d.silenceCount = 0
	key := dtmfKeys[rowBest][colBest]
	if key == d.lastKey {
		d.debounce++
	} else {
		d.lastKey = key
		d.debounce = 1
	}
	if d.debounce == d.DebounceBlocks {
		return DTMFEvent{Key: key}, true
	}
	return DTMFEvent{}, false
}

// DTMFGenerator produces dual-tone audio for a sequence of DTMF keys.
type DTMFGenerator struct {
	sampleRate int
	amplitude  int
}

// NewDTMFGenerator constructs a generator for sampleRate and amplitude
// (0..100).
func NewDTMFGenerator(sampleRate, amplitude int) *DTMFGenerator {
	return &DTMFGenerator{sampleRate: sampleRate, amplitude: amplitude}
}

// PutKey returns durationMs milliseconds of dual-tone audio for key.
// key must be one of 0-9, A-D, *, #.
func (g *DTMFGenerator) PutKey(key byte, durationMs int) []int16 {
	row, col := -1, -1
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if dtmfKeys[r][c] == key {
				row, col = r, c
			}
		}
	}
	if row < 0 {
		return nil
	}

	n := g.sampleRate * durationMs / 1000
	out := make([]int16, n)
	rf, cf := dtmfRows[row], dtmfCols[col]
	amp := 32767.0 * float64(g.amplitude) / 100.0 / 2.0
	for i := range out {
		t := float64(i) / float64(g.sampleRate)
		v := amp*math.Sin(2*math.Pi*rf*t) + amp*math.Sin(2*math.Pi*cf*t)
		out[i] = int16(v)
	}
	return out
}
