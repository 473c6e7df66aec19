// Package il2p implements the IL2P forward-error-correction layer
// (component C4): a scrambling LFSR, an RS-coded/permuted header, small and
// large RS payload sub-blocks, sync-word search with polarity detection,
// and the trailing Hamming(7,4)-protected CRC that catches rare
// RS-decode-silently-wrong cases.
//
// Ported from the teacher's il2p_crc.go (the one IL2P file that is plain
// Go, not a cgo shim); the scrambler, header and receive state machine are
// fresh implementations grounded on spec.md §4.4 and structural hints from
// the teacher's il2p_rec.go/il2p_header.go/il2p_scramble.go cgo shims.
package il2p

import "github.com/n0call/tncore/internal/hdlc"

// CRCEncodedSize is the on-wire size, in bytes, of the Hamming-encoded
// trailing CRC (4 bytes, one per nibble of the 16-bit CRC).
const CRCEncodedSize = 4

var hammingEncode = [16]byte{
	0x00, 0x71, 0x62, 0x13, 0x54, 0x25, 0x36, 0x47,
	0x38, 0x49, 0x5a, 0x2b, 0x6c, 0x1d, 0x0e, 0x7f,
}

var hammingDecode = [128]byte{
	0x00, 0x00, 0x00, 0x03, 0x00, 0x05, 0x0e, 0x07,
	0x00, 0x09, 0x0e, 0x0b, 0x0e, 0x0d, 0x0e, 0x0e,
	0x00, 0x03, 0x03, 0x03, 0x04, 0x0d, 0x06, 0x03,
	0x08, 0x0d, 0x0a, 0x03, 0x0d, 0x0d, 0x0e, 0x0d,
	0x00, 0x05, 0x02, 0x0b, 0x05, 0x05, 0x06, 0x05,
	0x08, 0x0b, 0x0b, 0x0b, 0x0c, 0x05, 0x0e, 0x0b,
	0x08, 0x01, 0x06, 0x03, 0x06, 0x05, 0x06, 0x06,
	0x08, 0x08, 0x08, 0x0b, 0x08, 0x0d, 0x06, 0x0f,
	0x00, 0x09, 0x02, 0x07, 0x04, 0x07, 0x07, 0x07,
	0x09, 0x09, 0x0a, 0x09, 0x0c, 0x09, 0x0e, 0x07,
	0x04, 0x01, 0x0a, 0x03, 0x04, 0x04, 0x04, 0x07,
	0x0a, 0x09, 0x0a, 0x0a, 0x04, 0x0d, 0x0a, 0x0f,
	0x02, 0x01, 0x02, 0x02, 0x0c, 0x05, 0x02, 0x07,
	0x0c, 0x09, 0x02, 0x0b, 0x0c, 0x0c, 0x0c, 0x0f,
	0x01, 0x01, 0x02, 0x01, 0x04, 0x01, 0x06, 0x0f,
	0x08, 0x01, 0x0a, 0x0f, 0x0c, 0x0f, 0x0f, 0x0f,
}

// CRCCalc computes the CRC-16-CCITT over AX.25 frame data (without the
// AX.25 FCS), reusing the same reflected CRC as plain HDLC.
func CRCCalc(data []byte) uint16 {
	return hdlc.FCS(data)
}

// CRCEncode Hamming(7,4)-encodes a 16-bit CRC into 4 bytes, high nibble
// first.
func CRCEncode(crc uint16) [CRCEncodedSize]byte {
	var encoded [CRCEncodedSize]byte
	encoded[0] = hammingEncode[(crc>>12)&0x0f]
	encoded[1] = hammingEncode[(crc>>8)&0x0f]
	encoded[2] = hammingEncode[(crc>>4)&0x0f]
	encoded[3] = hammingEncode[crc&0x0f]
	return encoded
}

// CRCDecode decodes 4 Hamming(7,4)-encoded bytes back to a 16-bit CRC,
// correcting any single-bit error per codeword.
func CRCDecode(encoded []byte) uint16 {
	n0 := uint16(hammingDecode[encoded[0]&0x7f])
	n1 := uint16(hammingDecode[encoded[1]&0x7f])
	n2 := uint16(hammingDecode[encoded[2]&0x7f])
	n3 := uint16(hammingDecode[encoded[3]&0x7f])
	return (n0 << 12) | (n1 << 8) | (n2 << 4) | n3
}

// CRCCheck validates a received Hamming-encoded CRC against decoded AX.25
// frame data.
func CRCCheck(frameData []byte, encodedCRC []byte) bool {
	return CRCCalc(frameData) == CRCDecode(encodedCRC)
}
