package tone

import "math"

// morseTable maps A-Z and 0-9 to their dot/dash patterns; '.' is a dot,
// '-' is a dash.
var morseTable = map[byte]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".",
	'F': "..-.", 'G': "--.", 'H': "....", 'I': "..", 'J': ".---",
	'K': "-.-", 'L': ".-..", 'M': "--", 'N': "-.", 'O': "---",
	'P': ".--.", 'Q': "--.-", 'R': ".-.", 'S': "...", 'T': "-",
	'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-", 'Y': "-.--",
	'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
}

// MorseToneHz is the fixed CW tone frequency (spec.md §4.1).
const MorseToneHz = 800

// MorseUnitMillis returns the length of one Morse time unit in
// milliseconds for the given words-per-minute, using the standard
// PARIS timing convention (spec.md §4.1: "1200/WPM ms").
func MorseUnitMillis(wpm int) float64 {
	return 1200.0 / float64(wpm)
}

// MorseGenerator renders text as CW audio at a configured speed and
// amplitude, inserting TXDELAY/TXTAIL silence around the keyed portion.
type MorseGenerator struct {
	sampleRate int
	amplitude  int
	wpm        int
}

// NewMorseGenerator constructs a generator for sampleRate, amplitude
// (0..100), and wpm (words per minute).
func NewMorseGenerator(sampleRate, amplitude, wpm int) *MorseGenerator {
	return &MorseGenerator{sampleRate: sampleRate, amplitude: amplitude, wpm: wpm}
}

func (g *MorseGenerator) unitSamples() int {
	return int(math.Round(MorseUnitMillis(g.wpm) / 1000.0 * float64(g.sampleRate)))
}

func (g *MorseGenerator) tone(units int) []int16 {
	n := units * g.unitSamples()
	out := make([]int16, n)
	amp := 32767.0 * float64(g.amplitude) / 100.0
	for i := range out {
		t := float64(i) / float64(g.sampleRate)
		out[i] = int16(amp * math.Sin(2*math.Pi*MorseToneHz*t))
	}
	return out
}

func (g *MorseGenerator) silence(units int) []int16 {
	return make([]int16, units*g.unitSamples())
}

// Encode renders text (upper-cased automatically for lookup) as CW
// audio, with txDelayMs/txTailMs milliseconds of leading/trailing
// silence around the keyed portion (spec.md §4.1). Dits are 1 unit, dahs
// 3, gaps inside a letter 1, between letters 3 and between words 7, so
// "CQ DX" renders as 55 units between the leading and trailing silence
// (C 11, Q 13, D 7, X 11, two letter gaps and one word gap).
func (g *MorseGenerator) Encode(text string, txDelayMs, txTailMs int) []int16 {
	var out []int16
	out = append(out, g.silence(int(math.Round(float64(txDelayMs)/MorseUnitMillis(g.wpm))))...)

	for wi, word := range splitWords(text) {
		if wi > 0 {
			out = append(out, g.silence(7)...) // Inter-word gap: 7 units.
		}
		for li, ch := range []byte(word) {
			if li > 0 {
				out = append(out, g.silence(3)...) // Inter-letter gap: 3 units.
			}
			pattern, known := morseTable[upper(ch)]
			if !known {
				continue
			}
			for si, sym := range pattern {
				if si > 0 {
					out = append(out, g.silence(1)...) // Intra-character gap: 1 unit.
				}
				if sym == '.' {
					out = append(out, g.tone(1)...)
				} else {
					out = append(out, g.tone(3)...)
				}
			}
		}
	}

	out = append(out, g.silence(int(math.Round(float64(txTailMs)/MorseUnitMillis(g.wpm))))...)
	return out
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

func splitWords(s string) []string {
	var words []string
	cur := ""
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if cur != "" {
				words = append(words, cur)
				cur = ""
			}
			continue
		}
		cur += string(s[i])
	}
	if cur != "" {
		words = append(words, cur)
	}
	return words
}

// EAS SAME generation: 520.83 bit/s AFSK with mark/space at 2083.3/1562.5
// Hz (spec.md §4.1).
const (
	EASBaud       = 520.83
	EASMarkHz     = 2083.33
	EASSpaceHz    = 1562.50
)

// EASGenerator renders a SAME header/EOM byte string as AFSK audio.
type EASGenerator struct {
	sampleRate int
	amplitude  int
	phaseAcc   uint32
	incMark    uint32
	incSpace   uint32
}

// NewEASGenerator constructs a generator for sampleRate and amplitude
// (0..100).
func NewEASGenerator(sampleRate, amplitude int) *EASGenerator {
	g := &EASGenerator{sampleRate: sampleRate, amplitude: amplitude}
	g.incMark = uint32((uint64(EASMarkHz*1000) << 32) / uint64(sampleRate) / 1000)
	g.incSpace = uint32((uint64(EASSpaceHz*1000) << 32) / uint64(sampleRate) / 1000)
	return g
}

// Encode renders msg as SAME AFSK audio, one 520.83-baud symbol per bit,
// LSB first per byte as SAME requires.
func (g *EASGenerator) Encode(msg []byte) []int16 {
	samplesPerBit := int(math.Round(float64(g.sampleRate) / EASBaud))
	var out []int16
	for _, b := range msg {
		for i := 0; i < 8; i++ {
			bit := (b >> uint(i)) & 1
			inc := g.incSpace
			if bit != 0 {
				inc = g.incMark
			}
			for s := 0; s < samplesPerBit; s++ {
				idx := (g.phaseAcc >> 24) & (sineTableSize - 1)
				out = append(out, int16(int32(sineTable[idx])*int32(g.amplitude)/100))
				g.phaseAcc += inc
			}
		}
	}
	return out
}
