// Package ax25 implements the AX.25 packet object (component C6): an
// in-memory representation of an AX.25 frame with address/control/PID/info
// accessors, parsing from TNC-2 text and raw bytes, frame-type
// classification, and address insertion/removal for digipeating.
//
// Grounded on spec.md §4.6 and the field/accessor names surfaced through
// the teacher's ax25_pad-equivalent cgo shims (get_addr, get_ssid,
// get_control, frame_type, and friends); since no plain-Go ax25_pad.go
// file exists in the teacher snapshot, this package is a fresh
// implementation in their naming convention.
package ax25

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinFrameLen and MaxFrameLen bound a valid AX.25 frame (spec.md §4.6).
const (
	MinFrameLen = 15
	MaxFrameLen = 330
	MaxAddrs    = 10
	MinAddrs    = 2
)

// Packet is a single contiguous byte buffer holding an AX.25 frame exactly
// as it appears on the air, without the trailing FCS (spec.md §3).
type Packet struct {
	data []byte

	// ReleaseTime is a monotonic-seconds timestamp, used for transmit
	// scheduling and dedupe windows; it is metadata, not part of the wire
	// bytes.
	ReleaseTime float64

	// Modulo records whether this packet was parsed/built assuming 8 or
	// 128 sequence numbering, or 0 if unknown/not applicable (spec.md §3).
	Modulo int
}

// numAddrBytes returns the number of bytes (7 per address) in the address
// field, or 0 if no last-address bit is found within MaxAddrs*7 bytes.
func (p *Packet) numAddrBytes() int {
	for i := 0; i+6 < len(p.data) && i < MaxAddrs*7; i += 7 {
		if p.data[i+6]&0x01 != 0 {
			return i + 7
		}
	}
	return 0
}

// NumAddr returns the number of addresses (2..10) in the frame, or 0 if
// the frame is malformed (no last-address bit found within MaxAddrs*7
// bytes).
func (p *Packet) NumAddr() int {
	n := p.numAddrBytes()
	if n == 0 {
		return 0
	}
	return n / 7
}

// GetAddr returns the callsign (without SSID) at address index i (0=dest,
// 1=src, 2..=digipeaters).
func (p *Packet) GetAddr(i int) string {
	off := i * 7
	if off+6 > len(p.data) {
		return ""
	}
	var b strings.Builder
	for j := 0; j < 6; j++ {
		c := p.data[off+j] >> 1
		if c != ' ' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// GetSSID returns the SSID (0-15) of address index i.
func (p *Packet) GetSSID(i int) int {
	off := i*7 + 6
	if off >= len(p.data) {
		return 0
	}
	return int((p.data[off] >> 1) & 0x0f)
}

// GetH returns the H-bit (has-been-repeated / command-response bit,
// context-dependent) of address index i.
func (p *Packet) GetH(i int) bool {
	off := i*7 + 6
	if off >= len(p.data) {
		return false
	}
	return p.data[off]&0x80 != 0
}

// SetH sets the H-bit of address index i (used when a digipeater marks
// itself as having repeated the frame).
func (p *Packet) SetH(i int, h bool) {
	off := i*7 + 6
	if off >= len(p.data) {
		return
	}
	if h {
		p.data[off] |= 0x80
	} else {
		p.data[off] &^= 0x80
	}
}

// AddrWithSSID returns "CALL" or "CALL-SSID" (SSID 0 suppressed) for
// address index i.
func (p *Packet) AddrWithSSID(i int) string {
	call := p.GetAddr(i)
	ssid := p.GetSSID(i)
	if ssid == 0 {
		return call
	}
	return fmt.Sprintf("%s-%d", call, ssid)
}

// GetControl returns the first control byte.
func (p *Packet) GetControl() byte {
	n := p.NumAddr()
	off := n * 7
	if off >= len(p.data) {
		return 0
	}
	return p.data[off]
}

// IsExtended reports whether the control field should be read as 16-bit
// (modulo 128), using the heuristic from spec.md §4.6: if the packet's
// Modulo is explicitly known, trust it; otherwise treat the frame as
// extended when a second control byte exists and either the first
// control byte marks an S-frame or the field that would follow a second
// control byte looks like a known PID (0xF0 or 0x08).
func (p *Packet) IsExtended() bool {
	if p.Modulo == 128 {
		return true
	}
	if p.Modulo == 8 {
		return false
	}

	n := p.NumAddr()
	off := n * 7
	if off >= len(p.data) {
		return false
	}
	c := p.data[off]
	second := off + 1
	if second >= len(p.data) {
		return false // no room for a second control byte.
	}

	if c&0x03 == 0x01 {
		// S-frame: modulo-128 encodes it as exactly two control bytes
		// and nothing else, so the frame ends right after the second.
		return second == len(p.data)-1
	}
	if c&0x01 == 0x00 {
		// I-frame: a PID byte follows the control field. If the byte
		// one past a hypothetical second control byte is a known PID,
		// that second control byte is really there.
		pidOff := second + 1
		if pidOff >= len(p.data) {
			return false
		}
		pid := p.data[pidOff]
		return pid == 0xF0 || pid == 0x08
	}
	return false
}

func (p *Packet) controlFieldLen() int {
	c := p.GetControl()
	if c&0x03 == 0x03 {
		return 1 // U-frame.
	}
	if p.IsExtended() {
		return 2
	}
	return 1
}

// GetPID returns the PID byte, or -1 if this frame type carries none (any
// S-frame or most U-frames other than UI).
func (p *Packet) GetPID() int {
	switch p.kindOnly() {
	case KindI, KindUUI:
		n := p.NumAddr()
		off := n*7 + p.controlFieldLen()
		if off >= len(p.data) {
			return -1
		}
		return int(p.data[off])
	default:
		return -1
	}
}

// GetInfo returns the info field (payload after any PID byte), or nil if
// this frame type carries none.
func (p *Packet) GetInfo() []byte {
	n := p.NumAddr()
	off := n * 7
	switch p.kindOnly() {
	case KindI, KindUUI:
		off += p.controlFieldLen() + 1 // +1 for PID
	case KindUTest, KindUXID, KindUFRMR:
		off += p.controlFieldLen()
	default:
		return nil
	}
	if off > len(p.data) {
		return nil
	}
	return p.data[off:]
}

// Bytes returns the raw frame bytes (without FCS), the canonical
// representation this package's testable round-trip property (spec.md §8
// property #1) operates on. Callers must not mutate the returned slice.
func (p *Packet) Bytes() []byte { return p.data }

// FromBytes constructs a Packet from raw frame bytes (without FCS),
// validating the length and address-field structure (spec.md §4.6: frame
// length 15..330 bytes).
func FromBytes(data []byte) (*Packet, error) {
	if len(data) < MinFrameLen || len(data) > MaxFrameLen {
		return nil, fmt.Errorf("ax25: frame length %d out of range [%d,%d]", len(data), MinFrameLen, MaxFrameLen)
	}
	p := &Packet{data: append([]byte{}, data...)}
	n := p.NumAddr()
	if n < MinAddrs || n > MaxAddrs {
		return nil, errors.New("ax25: invalid address field (no terminating last-address bit, or out of range)")
	}
	return p, nil
}

func ssidByte(ssid int, last bool, h bool) byte {
	b := byte(0x60) | byte(ssid<<1) // reserved bits RR=11 per common convention
	if h {
		b |= 0x80
	}
	if last {
		b |= 0x01
	}
	return b
}

func encodeCallsign(call string, ssid int, last bool, h bool) ([7]byte, error) {
	var out [7]byte
	if len(call) == 0 || len(call) > 6 {
		return out, fmt.Errorf("ax25: callsign %q must be 1-6 characters", call)
	}
	padded := strings.ToUpper(call)
	for len(padded) < 6 {
		padded += " "
	}
	for i := 0; i < 6; i++ {
		out[i] = padded[i] << 1
	}
	if ssid < 0 || ssid > 15 {
		return out, fmt.Errorf("ax25: ssid %d out of range 0..15", ssid)
	}
	out[6] = ssidByte(ssid, last, h)
	return out, nil
}

// Address is one parsed callsign-SSID-H triple, used by Build.
type Address struct {
	Call string
	SSID int
	H    bool
}

// Build constructs a Packet from explicit addresses plus a control byte,
// optional PID, and info field. addrs must have 2..10 entries (dest, src,
// then digipeaters); the last address automatically gets the
// last-address bit set.
func Build(addrs []Address, control byte, pid int, info []byte) (*Packet, error) {
	if len(addrs) < MinAddrs || len(addrs) > MaxAddrs {
		return nil, fmt.Errorf("ax25: need 2-10 addresses, got %d", len(addrs))
	}
	var data []byte
	for i, a := range addrs {
		enc, err := encodeCallsign(a.Call, a.SSID, i == len(addrs)-1, a.H)
		if err != nil {
			return nil, err
		}
		data = append(data, enc[:]...)
	}
	data = append(data, control)
	if pid >= 0 {
		data = append(data, byte(pid))
	}
	data = append(data, info...)

	return FromBytes(data)
}

// BuildExt is Build's modulo-128 counterpart: control is the full 1- or
// 2-byte control field, written MSB-first (so a 2-byte extended I/S
// control field is control[0] then control[1]), and the returned
// Packet's Modulo is set so later IsExtended()/controlFieldLen() calls
// read it back correctly.
func BuildExt(addrs []Address, control []byte, pid int, info []byte, modulo int) (*Packet, error) {
	if len(addrs) < MinAddrs || len(addrs) > MaxAddrs {
		return nil, fmt.Errorf("ax25: need 2-10 addresses, got %d", len(addrs))
	}
	if len(control) != 1 && len(control) != 2 {
		return nil, fmt.Errorf("ax25: control field must be 1 or 2 bytes, got %d", len(control))
	}
	var data []byte
	for i, a := range addrs {
		enc, err := encodeCallsign(a.Call, a.SSID, i == len(addrs)-1, a.H)
		if err != nil {
			return nil, err
		}
		data = append(data, enc[:]...)
	}
	data = append(data, control...)
	if pid >= 0 {
		data = append(data, byte(pid))
	}
	data = append(data, info...)

	p, err := FromBytes(data)
	if err != nil {
		return nil, err
	}
	p.Modulo = modulo
	return p, nil
}

// InsertAddr inserts a new digipeater address at position idx (shifting
// later addresses up), preserving the last-address-bit invariant. idx must
// be in [2, NumAddr()] (digipeater positions only).
func (p *Packet) InsertAddr(idx int, a Address) error {
	n := p.NumAddr()
	if idx < 2 || idx > n || n >= MaxAddrs {
		return errors.New("ax25: invalid digipeater insert position or address field full")
	}
	enc, err := encodeCallsign(a.Call, a.SSID, false, a.H)
	if err != nil {
		return err
	}
	if idx == n {
		// Clear the old last-address bit, it moves to the new entry.
		p.data[(n-1)*7+6] &^= 0x01
	}
	off := idx * 7
	tail := append([]byte{}, p.data[off:]...)
	p.data = append(p.data[:off], enc[:]...)
	p.data = append(p.data, tail...)
	if idx == n {
		p.data[n*7+6] |= 0x01
	}
	return nil
}

// RemoveAddr removes the digipeater address at position idx (shifting
// later addresses down).
func (p *Packet) RemoveAddr(idx int) error {
	n := p.NumAddr()
	if idx < 2 || idx >= n {
		return errors.New("ax25: invalid digipeater remove position")
	}
	off := idx * 7
	p.data = append(p.data[:off], p.data[off+7:]...)
	newN := n - 1
	p.data[(newN-1)*7+6] |= 0x01
	return nil
}

// DedupeChecksum computes the CRC-16 dedupe checksum over source,
// destination, and info (digipeaters excluded, trailing CR/LF/space
// stripped from info), for duplicate suppression within a time window
// (spec.md §4.6).
func (p *Packet) DedupeChecksum() uint16 {
	var buf []byte
	buf = append(buf, p.data[0:7]...)  // dest
	buf = append(buf, p.data[7:14]...) // src
	// The source's last-address bit depends on whether digipeaters follow.
	buf[13] &^= 0x01
	info := p.GetInfo()
	end := len(info)
	for end > 0 && (info[end-1] == '\r' || info[end-1] == '\n' || info[end-1] == ' ') {
		end--
	}
	buf = append(buf, info[:end]...)
	return crc16CCITT(buf)
}

func crc16CCITT(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// ParseSSID parses a "CALL-SSID" or "CALL" string into its parts.
func ParseSSID(s string) (call string, ssid int, err error) {
	idx := strings.IndexByte(s, '-')
	if idx < 0 {
		return s, 0, nil
	}
	call = s[:idx]
	ssid64, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("ax25: bad ssid in %q: %w", s, err)
	}
	if ssid64 < 0 || ssid64 > 15 {
		return "", 0, fmt.Errorf("ax25: ssid %d out of range in %q", ssid64, s)
	}
	return call, ssid64, nil
}
