package il2p

// state names the IL2P receive state machine's phases (spec.md §4.4).
type state int

const (
	stateSearching state = iota
	stateHeader
	statePayload
)

// Receiver hunts for an IL2P sync word in a byte-aligned stream and, once
// found, accumulates the header block and the payload blocks it implies,
// then decodes the complete frame. Callers feed it whole bytes as they
// arrive (unlike hdlc.Receiver and fx25.Receiver, which are bit-oriented,
// IL2P's RS/scrambled framing is naturally byte-oriented once sync is
// found).
//
// Ported from the teacher's il2p_rec.go state names (IL2P_SEARCHING /
// IL2P_HEADER / IL2P_PAYLOAD) via the cgo shim's comments.
type Receiver struct {
	st       state
	window   uint32
	windowN  int
	inverted bool

	headerLen int
	buf       []byte
	needed    int
	header    Header
}

const headerCodedLenConst = ((HeaderSize + headerParity) * 8 + 5 + 7) / 8

// NewReceiver returns a Receiver ready to hunt for a sync word.
func NewReceiver() *Receiver {
	return &Receiver{st: stateSearching}
}

// FrameResult is returned by PutByte once a complete frame has been
// decoded (successfully or not).
type FrameResult struct {
	Frame       Frame
	Corrections int
	Ok          bool
	Ready       bool
}

// PutByte processes one incoming byte, bit by bit for sync-word search,
// byte-at-a-time once past it.
func (r *Receiver) PutByte(b byte) FrameResult {
	if r.st == stateSearching {
		for i := 7; i >= 0; i-- {
			bit := (b >> uint(i)) & 1
			r.window = (r.window << 1) | uint32(bit)
			r.windowN++
			if r.windowN < SyncWordBits {
				continue
			}
			if matched, inverted := SyncWordMatch(r.window); matched {
				r.st = stateHeader
				r.inverted = inverted
				r.buf = nil
				r.needed = headerCodedLenConst
				return FrameResult{}
			}
		}
		return FrameResult{}
	}

	r.buf = append(r.buf, b)
	if len(r.buf) < r.needed {
		return FrameResult{}
	}

	switch r.st {
	case stateHeader:
		headerBlock := r.buf
		if r.inverted {
			headerBlock = InvertBytes(headerBlock)
		}
		h, hCorr, ok := DecodeHeaderBlock(headerBlock)
		if !ok {
			r.reset()
			return FrameResult{Ready: true, Ok: false}
		}
		r.header = h
		r.headerLen = hCorr
		r.buf = nil

		sizes, parity, err := PlanBlocks(h.PayloadLength, h.MaxFEC)
		if err != nil {
			r.reset()
			return FrameResult{Ready: true, Ok: false}
		}
		total := 0
		for _, sz := range sizes {
			blockLen := sz + int(parity)
			total += (blockLen*8 + 5 + 7) / 8
		}
		if total == 0 {
			frame := Frame{Header: h}
			r.reset()
			return FrameResult{Frame: frame, Corrections: hCorr, Ok: true, Ready: true}
		}
		r.st = statePayload
		r.needed = total
		return FrameResult{}

	case statePayload:
		payloadWire := r.buf
		if r.inverted {
			payloadWire = InvertBytes(payloadWire)
		}
		logical, pCorr, ok := DecodePayload(payloadWire, r.header.PayloadLength, r.header.MaxFEC)
		result := FrameResult{Ready: true}
		if !ok {
			r.reset()
			return result
		}

		f := Frame{Header: r.header}
		if r.header.HasControlPID && len(logical) >= 2 {
			f.Control = logical[0]
			f.PID = logical[1]
			f.Payload = logical[2:]
		} else {
			f.Payload = logical
		}
		result.Frame = f
		result.Corrections = r.headerLen + pCorr
		result.Ok = true
		r.reset()
		return result
	}

	return FrameResult{}
}

func (r *Receiver) reset() {
	r.st = stateSearching
	r.window = 0
	r.windowN = 0
	r.buf = nil
}
