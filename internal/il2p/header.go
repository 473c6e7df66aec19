package il2p

import (
	"errors"

	"github.com/n0call/tncore/internal/rs"
)

// HeaderSize is the number of header data bytes RS-protected and
// scrambled, before the 2-byte RS parity (spec.md §4.4).
const HeaderSize = 13

// headerParity is the number of RS parity bytes protecting the header.
const headerParity = 2

var headerCodec = rs.New(8, 0x11d, 1, 1, headerParity)

// charset maps a callsign character to its 6-bit code and back: 0-25 =
// 'A'-'Z', 26-35 = '0'-'9', 36 = space (used for SSID-less padding).
const charsetSize = 37

func charToCode(c byte) (byte, error) {
	switch {
	case c >= 'A' && c <= 'Z':
		return c - 'A', nil
	case c >= '0' && c <= '9':
		return 26 + (c - '0'), nil
	case c == ' ':
		return 36, nil
	default:
		return 0, errors.New("il2p: invalid callsign character")
	}
}

func codeToChar(code byte) byte {
	switch {
	case code < 26:
		return 'A' + code
	case code < 36:
		return '0' + (code - 26)
	default:
		return ' '
	}
}

// Header is the logical content of an IL2P frame header (spec.md §4.4):
// addressing, frame kind, and enough length information to locate the
// payload RS blocks. The AX.25 control and PID bytes, when present, travel
// in the clear at the front of the (pre-RS) payload rather than inside
// this fixed 13-byte block — see Encode/Decode in frame.go — which keeps
// the header itself a constant size regardless of control-field width.
type Header struct {
	Transparent    bool // True: raw payload, no AX.25 interpretation. False: AX.25 frame.
	MaxFEC         bool // True: payload uses the 16-parity "max FEC" blocking (spec.md §4.4).
	HasControlPID  bool // True: the payload begins with [control][pid].
	Dest           string
	Src            string
	DestSSID       byte
	SrcSSID        byte
	PayloadLength  int // Length, in bytes, of the logical payload (spec.md §4.4, 0..1023).
}

func padCallsign(call string) string {
	for len(call) < 6 {
		call += " "
	}
	return call[:6]
}

// EncodeHeader packs h into the 13 header data bytes, in the clear
// (callers RS-encode and scramble the result).
func EncodeHeader(h Header) ([HeaderSize]byte, error) {
	var out [HeaderSize]byte

	dest := padCallsign(h.Dest)
	src := padCallsign(h.Src)
	chars := make([]byte, 0, 12)
	for i := 0; i < 6; i++ {
		code, err := charToCode(dest[i])
		if err != nil {
			return out, err
		}
		chars = append(chars, code)
	}
	for i := 0; i < 6; i++ {
		code, err := charToCode(src[i])
		if err != nil {
			return out, err
		}
		chars = append(chars, code)
	}

	var bitbuf uint64
	bits := 0
	bytePos := 0
	for _, code := range chars {
		bitbuf = (bitbuf << 6) | uint64(code)
		bits += 6
		for bits >= 8 {
			bits -= 8
			out[bytePos] = byte(bitbuf >> uint(bits))
			bytePos++
		}
	}

	if h.PayloadLength < 0 || h.PayloadLength > 1023 {
		return out, errors.New("il2p: payload length out of range")
	}
	if h.DestSSID > 15 || h.SrcSSID > 15 {
		return out, errors.New("il2p: ssid out of range")
	}

	out[9] = (h.DestSSID << 4) | h.SrcSSID

	var flags byte
	if h.Transparent {
		flags |= 0x80
	}
	if h.MaxFEC {
		flags |= 0x40
	}
	flags |= byte((h.PayloadLength >> 4) & 0x3f)
	out[10] = flags

	out[11] = byte((h.PayloadLength & 0x0f) << 4)

	if h.HasControlPID {
		out[12] = 0x01
	}

	return out, nil
}

// DecodeHeader is the inverse of EncodeHeader.
func DecodeHeader(data [HeaderSize]byte) Header {
	var h Header

	var bitbuf uint64
	bits := 0
	chars := make([]byte, 0, 12)
	for _, b := range data[:9] {
		bitbuf = (bitbuf << 8) | uint64(b)
		bits += 8
		for bits >= 6 {
			bits -= 6
			chars = append(chars, byte((bitbuf>>uint(bits))&0x3f))
		}
	}

	destBytes := make([]byte, 6)
	srcBytes := make([]byte, 6)
	for i := 0; i < 6; i++ {
		destBytes[i] = codeToChar(chars[i])
	}
	for i := 0; i < 6; i++ {
		srcBytes[i] = codeToChar(chars[6+i])
	}
	h.Dest = trimCallsign(string(destBytes))
	h.Src = trimCallsign(string(srcBytes))

	h.DestSSID = data[9] >> 4
	h.SrcSSID = data[9] & 0x0f

	h.Transparent = data[10]&0x80 != 0
	h.MaxFEC = data[10]&0x40 != 0
	h.PayloadLength = (int(data[10]&0x3f) << 4) | int(data[11]>>4)
	h.HasControlPID = data[12]&0x01 != 0

	return h
}

func trimCallsign(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == ' ' {
		i--
	}
	return s[:i]
}

// EncodeHeaderBlock produces the full on-wire header block: 13 data bytes
// plus 2 RS parity bytes, scrambled.
func EncodeHeaderBlock(h Header) ([]byte, error) {
	data, err := EncodeHeader(h)
	if err != nil {
		return nil, err
	}
	full := headerCodec.N()
	k := headerCodec.K() // 253; the 13 data bytes occupy the front of this region, the rest stays zero
	padded := make([]byte, full-headerParity)
	copy(padded[len(padded)-k:], data[:])
	parity := headerCodec.Encode(padded[len(padded)-k:])

	clear := append(append([]byte{}, data[:]...), parity...)
	return ScrambleBlock(clear), nil
}

// DecodeHeaderBlock is the receive-side inverse of EncodeHeaderBlock: it
// descrambles, RS-corrects, and decodes the header. ok is false if RS
// correction failed.
func DecodeHeaderBlock(block []byte) (h Header, corrections int, ok bool) {
	clear := DescrambleBlock(block, HeaderSize+headerParity)

	n := headerCodec.N()
	k := headerCodec.K()
	full := make([]byte, n)
	copy(full[n-headerParity-k:n-headerParity], clear[:HeaderSize])
	copy(full[n-headerParity:], clear[HeaderSize:])

	corrected, _ := headerCodec.Decode(full, nil)
	if corrected < 0 {
		return Header{}, 0, false
	}

	var data [HeaderSize]byte
	copy(data[:], full[n-headerParity-k:n-headerParity])
	return DecodeHeader(data), corrected, true
}
