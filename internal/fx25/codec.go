package fx25

import (
	"github.com/n0call/tncore/internal/hdlc"
)

// Encode wraps a bit-stuffed, flag-delimited HDLC frame (as produced by
// hdlc.BitStuff) in an FX.25 correlation tag and Reed-Solomon parity block,
// selecting a tag via PickMode. ax25Frame is the raw AX.25 frame (no FCS,
// no flags, no stuffing) -- Encode appends the FCS and bit-stuffs it
// itself. fxMode is the user preference as documented on PickMode.
//
// Returns nil if fxMode disables FX.25 or no tag is large enough to carry
// the frame; callers fall back to plain HDLC transmission in that case
// (spec.md §4.3, "If no tag fits, fall back to plain AX.25").
//
// Ported from the teacher's fx25_send.go (fx25_send_frame).
func Encode(ax25Frame []byte, fxMode int) []byte {
	fcs := hdlc.FCS(ax25Frame) ^ hdlc.FCSFinalXOR
	withFCS := append(append([]byte{}, ax25Frame...), byte(fcs), byte(fcs>>8))

	_, stuffedLen := hdlc.BitStuff(withFCS, 0)
	ctag := PickMode(fxMode, stuffedLen)
	if ctag < 0 {
		return nil
	}

	tag := Tags[ctag]
	stuffed, _ := hdlc.BitStuff(withFCS, tag.KDataRadio)

	codec := RS(ctag)
	k := codec.K()
	// Shortened code: the k-byte RS data region is (k - KDataRadio) virtual
	// zero bytes followed by the actual radio-transmitted stuffed frame;
	// see Decode for the receive-side mirror of this padding.
	dataBlock := make([]byte, k)
	copy(dataBlock[k-tag.KDataRadio:], stuffed)

	parity := codec.Encode(dataBlock)

	out := make([]byte, 0, 8+tag.NBlockRadio)
	for i := 0; i < 8; i++ {
		out = append(out, byte(tag.Value>>(8*i)))
	}
	out = append(out, stuffed...)
	out = append(out, parity...)
	return out
}

// Decode attempts FX.25 recovery of one block given the already-detected
// tag index ctag and the nBlockRadio bytes following the tag (the
// bit-stuffed HDLC payload plus RS parity, exactly Tags[ctag].NBlockRadio
// bytes). It RS-decodes the block (padding with zero erasure positions up
// to the RS algorithm's n=255 symbols when NBlockRadio < 255, matching the
// teacher's shortened-code handling), then hands the recovered,
// stuffed HDLC bytes to hdlc.Unstuff.
//
// Returns the raw AX.25 frame (FCS checked and removed, flags and stuffing
// removed),
// the number of symbols RS corrected, and ok=false if the block was
// uncorrectable or the unstuffed frame's FCS didn't check out.
//
// Ported from the teacher's fx25_rec.go (process_rs_block).
func Decode(ctag int, block []byte) (frame []byte, corrections int, ok bool) {
	tag := Tags[ctag]
	if len(block) != tag.NBlockRadio {
		return nil, 0, false
	}

	codec := RS(ctag)
	n := codec.N()
	k := codec.K()
	dataLen := tag.KDataRadio

	// Shortened code: the radio-transmitted block carries only dataLen (<=
	// k) data bytes; conceptually those occupy the tail of the k-byte data
	// region with (k - dataLen) virtual zero bytes in front, matching how
	// every shortened RS(255,k) implementation (including the teacher's)
	// handles an n < 255 block.
	full := make([]byte, n)
	copy(full[k-dataLen:k], block[:dataLen])
	copy(full[k:n], block[dataLen:])

	corrected, _ := codec.Decode(full, nil)
	if corrected < 0 {
		return nil, 0, false
	}

	stuffed := full[k-dataLen : k]
	unstuffed := hdlc.Unstuff(stuffed)
	if unstuffed == nil || len(unstuffed) < 3 {
		return nil, corrected, false
	}

	dataPart := unstuffed[:len(unstuffed)-2]
	fcsBytes := uint16(unstuffed[len(unstuffed)-2]) | uint16(unstuffed[len(unstuffed)-1])<<8
	if hdlc.FCS(dataPart)^hdlc.FCSFinalXOR != fcsBytes {
		return nil, corrected, false
	}

	return dataPart, corrected, true
}

// TagWindow tracks the most recently received 64 bits (LSB-first, matching
// the on-air tag transmission order) for correlation-tag detection. One
// instance corresponds to one receive subchannel in component C10.
type TagWindow struct {
	value uint64
}

// PutBit shifts in one received bit (0 or 1) and returns the current
// 64-bit window value to test against TagFindMatch.
func (w *TagWindow) PutBit(bit int) uint64 {
	w.value >>= 1
	if bit != 0 {
		w.value |= 1 << 63
	}
	return w.value
}

// Reset clears the window, e.g. after a successful tag match and block
// consumption.
func (w *TagWindow) Reset() { w.value = 0 }
