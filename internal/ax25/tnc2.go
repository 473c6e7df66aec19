package ax25

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseOptions controls strictness of TNC-2 text parsing (spec.md §4.6).
type ParseOptions struct {
	Strict bool // Reject anything loose mode would allow.
}

// ParseTNC2 parses "SRC[-ssid]>DEST[-ssid][,DIGI[-ssid][*]]...:INFO" into a
// Packet. A trailing '*' on a digipeater sets its H-bit. "<0xNN>" inside
// INFO becomes the single byte NN.
func ParseTNC2(s string, opt ParseOptions) (*Packet, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return nil, fmt.Errorf("ax25: no ':' separating header from info in %q", s)
	}
	header := s[:colon]
	infoText := s[colon+1:]

	gt := strings.IndexByte(header, '>')
	if gt < 0 {
		return nil, fmt.Errorf("ax25: no '>' separating source from destination in %q", header)
	}
	srcPart := header[:gt]
	rest := header[gt+1:]

	fields := strings.Split(rest, ",")
	destPart := fields[0]
	digiParts := fields[1:]

	if len(digiParts) > MaxAddrs-2 {
		return nil, fmt.Errorf("ax25: too many digipeaters (%d)", len(digiParts))
	}

	src, err := parseAddrField(srcPart, opt, false)
	if err != nil {
		return nil, err
	}
	dest, err := parseAddrField(destPart, opt, false)
	if err != nil {
		return nil, err
	}

	addrs := []Address{dest, src}
	for _, dp := range digiParts {
		a, err := parseAddrField(dp, opt, true)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, a)
	}

	info, err := unescapeInfo(infoText)
	if err != nil {
		return nil, err
	}

	return Build(addrs, 0x03, 0xF0, info) // Default to UI frame; callers needing other control should use Build directly.
}

func parseAddrField(s string, opt ParseOptions, allowStar bool) (Address, error) {
	h := false
	if strings.HasSuffix(s, "*") {
		if !allowStar {
			return Address{}, fmt.Errorf("ax25: unexpected '*' in %q", s)
		}
		h = true
		s = s[:len(s)-1]
	}
	call, ssid, err := ParseSSID(s)
	if err != nil {
		return Address{}, err
	}

	if opt.Strict {
		if len(call) == 0 || len(call) > 6 {
			return Address{}, fmt.Errorf("ax25: callsign %q must be 1-6 characters", call)
		}
		for _, c := range call {
			if c < 'A' || c > 'Z' {
				if c >= '0' && c <= '9' {
					continue
				}
				return Address{}, fmt.Errorf("ax25: strict mode rejects lower-case/invalid character in %q", call)
			}
		}
	} else {
		call = strings.ToUpper(call)
	}

	return Address{Call: call, SSID: ssid, H: h}, nil
}

func unescapeInfo(s string) ([]byte, error) {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '<' && i+5 <= len(s)-1 && strings.HasPrefix(s[i:], "<0x") {
			end := strings.IndexByte(s[i:], '>')
			if end > 0 {
				hex := s[i+3 : i+end]
				v, err := strconv.ParseUint(hex, 16, 8)
				if err == nil {
					out = append(out, byte(v))
					i += end
					continue
				}
			}
		}
		out = append(out, s[i])
	}
	return out, nil
}

// FormatTNC2 renders a Packet back to TNC-2 text, suppressing SSID-0 and
// re-emitting the digipeater '*' from each address's H-bit.
func (p *Packet) FormatTNC2() string {
	var b strings.Builder
	b.WriteString(p.AddrWithSSID(1))
	b.WriteByte('>')
	b.WriteString(p.AddrWithSSID(0))
	for i := 2; i < p.NumAddr(); i++ {
		b.WriteByte(',')
		b.WriteString(p.AddrWithSSID(i))
		if p.GetH(i) {
			b.WriteByte('*')
		}
	}
	b.WriteByte(':')
	b.Write(escapeInfo(p.GetInfo()))
	return b.String()
}

func escapeInfo(info []byte) []byte {
	var out []byte
	for _, c := range info {
		if c < 0x20 || c >= 0x7f {
			out = append(out, []byte(fmt.Sprintf("<0x%02X>", c))...)
		} else {
			out = append(out, c)
		}
	}
	return out
}
