package il2p

import (
	"errors"

	"github.com/n0call/tncore/internal/rs"
)

// payloadBlockSpec describes one RS sub-block size class from spec.md
// §4.4's "m=false" table: a maximum data-byte count and the parity-symbol
// count it gets.
type payloadBlockSpec struct {
	maxData int
	parity  uint
}

var normalBlockSpecs = []payloadBlockSpec{
	{61, 2},
	{123, 4},
	{185, 6},
	{247, 8},
}

const maxFECBlockData = 239
const maxFECParity = 16

var payloadCodecs = map[uint]*rs.Codec{}

func payloadCodec(parity uint) *rs.Codec {
	if c, ok := payloadCodecs[parity]; ok {
		return c
	}
	c := rs.New(8, 0x11d, 1, 1, parity)
	payloadCodecs[parity] = c
	return c
}

// PlanBlocks computes the RS sub-block geometry for a payload of length
// plen bytes, per spec.md §4.4. With maxFEC the payload is split as evenly
// as possible into blocks of at most 239 data bytes (the first few blocks
// one byte larger than the rest if plen doesn't divide evenly), all
// carrying 16 parity symbols. Without maxFEC the payload is split the same
// way into blocks of at most 247 data bytes, and the parity count is that
// of the smallest size class (61/123/185/247) holding the smaller block
// size.
func PlanBlocks(plen int, maxFEC bool) (dataSizes []int, parity uint, err error) {
	if plen < 0 {
		return nil, 0, errors.New("il2p: negative payload length")
	}
	if plen == 0 {
		return nil, 0, nil
	}

	if maxFEC {
		nBlocks := (plen + maxFECBlockData - 1) / maxFECBlockData
		if nBlocks == 0 {
			nBlocks = 1
		}
		smallSize := plen / nBlocks
		largeCount := plen - nBlocks*smallSize
		sizes := make([]int, nBlocks)
		for i := 0; i < nBlocks; i++ {
			if i < largeCount {
				sizes[i] = smallSize + 1
			} else {
				sizes[i] = smallSize
			}
		}
		return sizes, maxFECParity, nil
	}

	maxData := normalBlockSpecs[len(normalBlockSpecs)-1].maxData
	nBlocks := (plen + maxData - 1) / maxData
	smallSize := plen / nBlocks
	largeCount := plen - nBlocks*smallSize
	sizes := make([]int, nBlocks)
	for i := range sizes {
		sizes[i] = smallSize
		if i < largeCount {
			sizes[i]++
		}
	}
	for _, spec := range normalBlockSpecs {
		if smallSize <= spec.maxData {
			return sizes, spec.parity, nil
		}
	}
	return nil, 0, errors.New("il2p: payload too large for non-maxFEC blocking")
}

// EncodePayload RS-encodes and scrambles each sub-block of payload per the
// geometry PlanBlocks computes, concatenating them into the on-wire
// payload section that follows the header block.
func EncodePayload(payload []byte, maxFEC bool) ([]byte, error) {
	sizes, parity, err := PlanBlocks(len(payload), maxFEC)
	if err != nil {
		return nil, err
	}

	codec := payloadCodec(parity)
	var out []byte
	off := 0
	for _, sz := range sizes {
		block := payload[off : off+sz]
		off += sz

		k := codec.K()
		padded := make([]byte, k)
		copy(padded[k-sz:], block)
		par := codec.Encode(padded)

		clear := append(append([]byte{}, padded[k-sz:]...), par...)
		out = append(out, ScrambleBlock(clear)...)
	}
	return out, nil
}

// DecodePayload is the receive-side inverse of EncodePayload: given the
// scrambled on-wire payload bytes and the same geometry used to encode
// (recomputed from the decoded header's length field), it descrambles and
// RS-corrects each block and concatenates the recovered data.
func DecodePayload(wire []byte, plen int, maxFEC bool) (payload []byte, corrections int, ok bool) {
	sizes, parity, err := PlanBlocks(plen, maxFEC)
	if err != nil {
		return nil, 0, false
	}
	codec := payloadCodec(parity)
	k := codec.K()
	n := codec.N()

	off := 0
	for _, sz := range sizes {
		blockLen := sz + int(parity)
		// ScrambleBlock emits blockLen*8 data bits plus 5 flush bits,
		// rounded up to a whole number of bytes (the 5 settle bits it
		// discards on input are not part of its output).
		wireBlockBytes := (blockLen*8 + 5 + 7) / 8
		if off+wireBlockBytes > len(wire) {
			return nil, 0, false
		}
		clear := DescrambleBlock(wire[off:off+wireBlockBytes], blockLen)
		off += wireBlockBytes

		full := make([]byte, n)
		copy(full[k-sz:k], clear[:sz])
		copy(full[k:k+int(parity)], clear[sz:])

		corrected, _ := codec.Decode(full, nil)
		if corrected < 0 {
			return nil, 0, false
		}
		corrections += corrected
		payload = append(payload, full[k-sz:k]...)
	}

	return payload, corrections, true
}
