package datalink

import (
	"time"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dwlog"
)

// State is one of the AX.25 v2.2 data-link states named in spec.md §4.9.
type State int

const (
	StateDisconnected State = iota
	StateAwaitingConnection   // Sent SABM, waiting for UA/DM.
	StateAwaitingConnection22 // Sent SABME, waiting for UA/DM/FRMR before falling back to SABM.
	StateAwaitingRelease      // Sent DISC, waiting for UA/DM.
	StateConnected
	StateTimerRecovery // T1 expired at least once since the last ack; retransmitting.
)

// control-field constants for the U-frame subtypes this state machine
// sends and recognizes, expressed as the teacher's kindOnly switches it
// (mask 0x10 is the poll/final bit, set per frame as needed).
const (
	ctlSABM = 0x2F
	ctlSABME = 0x6F
	ctlDISC  = 0x43
	ctlDM    = 0x0F
	ctlUA    = 0x63
	ctlFRMR  = 0x87
)

// Timers bundles the configurable retry/ack timing (spec.md §4.9).
type Timers struct {
	T1        time.Duration // Retransmission timer.
	T3        time.Duration // Idle keep-alive poll timer.
	N2        int           // Retry limit before surfacing a link failure.
}

// DefaultTimers mirrors conventional AX.25 defaults.
func DefaultTimers() Timers {
	return Timers{T1: 3 * time.Second, T3: 180 * time.Second, N2: 10}
}

// pendingFrame is one queued I-frame: either already transmitted and
// awaiting acknowledgment (sent=true, kept for retransmission) or still
// sitting in the send-queue because the window was closed when DLData
// submitted it (sent=false).
type pendingFrame struct {
	ns   int
	info []byte
	pid  int
	sent bool
}

// Session is one AX.25 v2.2 connected-mode link, single-threaded per
// spec.md §5 ("the state machine is single-threaded on the consumer, so
// no external locking is required for its per-link state").
type Session struct {
	Channel int
	My      ax25.Address
	Peer    ax25.Address

	State State

	modulo int // 8 or 128, negotiated.
	window int // k, negotiated.
	srej   SREJMode
	n1     int // Max info field length, bytes.

	vs, vr, va int // V(S), V(R), V(A).
	pending    []pendingFrame

	timers      Timers
	retries     int // N2 counter for the current retry episode.
	busy        bool
	t1Active    bool
	t1Remaining time.Duration
	t3Active    bool
	t3Remaining time.Duration
	lastTick    time.Time

	xidLocal   XIDParams
	xidAgreed  XIDParams

	// Send transmits a fully built outgoing frame (e.g. to the transmit
	// scheduler's expedited queue for S/U frames, normal for I-frames).
	Send func(pkt *ax25.Packet)

	// DataIndication is invoked with each I-frame's info field, in
	// sequence, once accepted.
	DataIndication func(info []byte)

	// LinkError is invoked, with a short descriptive reason, when N2 is
	// exceeded, when an I-frame carries an invalid N(R) or an over-long
	// I-field (after an FRMR is sent), on a DM from the peer while
	// connected, on an FRMR from the peer (except in reply to SABME), and
	// on a DISC from the peer. An invalid N(R) in an RR, RNR or REJ draws
	// an FRMR without invoking LinkError or changing state.
	LinkError func(reason string)

	// Connected is invoked once the link transitions into StateConnected.
	Connected func()
}

// NewSession constructs a Session in StateDisconnected.
func NewSession(channel int, my, peer ax25.Address, timers Timers) *Session {
	return &Session{
		Channel: channel,
		My:      my,
		Peer:    peer,
		State:   StateDisconnected,
		modulo:  8,
		window:  4,
		n1:      256,
		timers:  timers,
		xidLocal: DefaultXIDParams(),
	}
}

func (s *Session) addrs(dest, src ax25.Address) []ax25.Address {
	return []ax25.Address{dest, src}
}

// sendU builds and sends a U-frame with the given control subtype,
// addressed from us to the peer.
func (s *Session) sendU(ctl byte, pf bool) {
	c := ctl
	if pf {
		c |= 0x10
	}
	pkt, err := ax25.Build(s.addrs(s.Peer, s.My), c, -1, nil)
	if err != nil {
		dwlog.Errf("datalink: failed to build U-frame 0x%02x: %v", ctl, err)
		return
	}
	pkt.Modulo = s.modulo
	if s.Send != nil {
		s.Send(pkt)
	}
}

// DLConnect starts a connection attempt, offering SABME first per
// spec.md §4.9 ("Connect request to peer capability detection: First
// send SABME; if peer responds FRMR or DM, fall back to SABM").
func (s *Session) DLConnect() {
	s.vs, s.vr, s.va = 0, 0, 0
	s.pending = nil
	s.retries = 0
	s.State = StateAwaitingConnection22
	s.sendU(ctlSABME, true)
	s.armT1()
}

// DLDisconnect requests link release.
func (s *Session) DLDisconnect() {
	if s.State == StateDisconnected {
		return
	}
	s.State = StateAwaitingRelease
	s.sendU(ctlDISC, true)
	s.armT1()
}

// DLData queues info for transmission as an I-frame, sending immediately
// if the window allows and otherwise leaving it in the send-queue for
// flushWindow to drain once V(A) advances (spec.md §4.9).
func (s *Session) DLData(info []byte, pid int) {
	if s.State != StateConnected && s.State != StateTimerRecovery {
		dwlog.Errf("datalink: DLData while not connected, dropping %d bytes", len(info))
		return
	}
	ns := s.vs
	s.pending = append(s.pending, pendingFrame{ns: ns, info: info, pid: pid})
	s.vs = (s.vs + 1) % s.modulo
	s.flushWindow()
}

// windowOpen reports whether another I-frame may be transmitted: the
// count of sent-but-unacknowledged frames must stay within s.window.
// Frames still sitting unsent in the send-queue don't count against
// this -- only transmission, not queuing, occupies the window.
func (s *Session) windowOpen() bool {
	outstanding := 0
	for _, pf := range s.pending {
		if pf.sent {
			outstanding++
		}
	}
	return outstanding < s.window
}

// flushWindow transmits queued-but-not-yet-sent I-frames in sequence
// order for as long as the window has room, so a send-queue built up
// while the window was closed gets drained into the window as V(A)
// advances rather than stalling until the next T1-triggered
// retransmission (spec.md §4.9/§3).
func (s *Session) flushWindow() {
	for i := range s.pending {
		pf := &s.pending[i]
		if pf.sent {
			continue
		}
		if !s.windowOpen() {
			return
		}
		s.sendIFrame(pf.ns, pf.info, pf.pid, false)
		pf.sent = true
	}
}

func (s *Session) sendIFrame(ns int, info []byte, pid int, pf bool) {
	control := s.iControlBytes(ns, s.vr, pf)
	pkt, err := ax25.BuildExt(s.addrs(s.Peer, s.My), control, pid, info, s.modulo)
	if err != nil {
		dwlog.Errf("datalink: failed to build I-frame: %v", err)
		return
	}
	if s.Send != nil {
		s.Send(pkt)
	}
	if !s.t1Active {
		s.armT1()
	}
}

func (s *Session) iControlBytes(ns, nr int, pf bool) []byte {
	if s.modulo == 128 {
		c1 := byte(ns << 1)
		c2 := byte(nr << 1)
		if pf {
			c2 |= 0x01
		}
		return []byte{c1, c2}
	}
	c := byte(ns<<1) & 0x0E
	c |= byte(nr<<5) & 0xE0
	if pf {
		c |= 0x10
	}
	return []byte{c}
}

func (s *Session) sControlByte(kindBits byte, nr int, pf bool) []byte {
	if s.modulo == 128 {
		c1 := byte(0x01) | kindBits
		c2 := byte(nr << 1)
		if pf {
			c2 |= 0x01
		}
		return []byte{c1, c2}
	}
	c := byte(0x01) | kindBits
	c |= byte(nr<<5) & 0xE0
	if pf {
		c |= 0x10
	}
	return []byte{c}
}

// sendRR/sendRNR/sendREJ/sendSREJ build and send the named S-frame
// acknowledging/requesting up to N(R)=s.vr.
func (s *Session) sendRR(pf bool)  { s.sendS(0x00, pf) }
func (s *Session) sendRNR(pf bool) { s.sendS(0x04, pf) }
func (s *Session) sendREJ(pf bool) { s.sendS(0x08, pf) }
func (s *Session) sendSREJ(pf bool) { s.sendS(0x0C, pf) }

func (s *Session) sendS(kindBits byte, pf bool) {
	control := s.sControlByte(kindBits, s.vr, pf)
	pkt, err := ax25.BuildExt(s.addrs(s.Peer, s.My), control, -1, nil, s.modulo)
	if err != nil {
		dwlog.Errf("datalink: failed to build S-frame: %v", err)
		return
	}
	if s.Send != nil {
		s.Send(pkt)
	}
}

// frmrReason tags which clause of AX.25 §4.3.3.9 an FRMR is reporting;
// more than one may be set.
type frmrReason struct {
	w bool // control field invalid or undefined
	x bool // control field invalid for the current state (e.g. unexpected frame type)
	y bool // information field exceeded the negotiated maximum length
	z bool // N(R) was not in the range V(A)..V(S)
}

// buildFRMR assembles the 3-byte AX.25 §4.3.3.9 FRMR info field: the
// rejected control octet, then a byte packing V(R)/V(S)/the command bit,
// then the W/X/Y/Z violation flags in the low nibble of a third byte.
func (s *Session) buildFRMR(rejectedControl byte, reason frmrReason) []byte {
	v2 := byte(s.vs&0x07) | byte(s.vr&0x07)<<4
	v2 |= 0x08 // the rejected frame was a command, since we only reject received frames.

	var v3 byte
	if reason.w {
		v3 |= 0x01
	}
	if reason.x {
		v3 |= 0x02
	}
	if reason.y {
		v3 |= 0x04
	}
	if reason.z {
		v3 |= 0x08
	}
	return []byte{rejectedControl, v2, v3}
}

func (s *Session) sendFRMR(rejectedControl byte, reason frmrReason) {
	pkt, err := ax25.Build(s.addrs(s.Peer, s.My), ctlFRMR|0x10, -1, s.buildFRMR(rejectedControl, reason))
	if err != nil {
		dwlog.Errf("datalink: failed to build FRMR: %v", err)
		return
	}
	if s.Send != nil {
		s.Send(pkt)
	}
}

// armT1/armT3 (re)start the corresponding logical timer's remaining
// duration, tracked in wall-clock-independent form (see Tick) so that
// busy periods can be excluded from the countdown regardless of how
// often Tick happens to be called.
func (s *Session) armT1() {
	s.t1Active = true
	s.t1Remaining = s.timers.T1
}

func (s *Session) stopT1() {
	s.t1Active = false
}

func (s *Session) armT3() {
	s.t3Active = true
	s.t3Remaining = s.timers.T3
}

// ChannelBusy reports a change in carrier-sense/PTT state; while busy,
// T1/T3 do not advance (spec.md §5 Timer discipline, testable property
// #8). Tick resumes the countdown from wherever it left off once busy
// clears.
func (s *Session) ChannelBusy(busy bool) {
	if busy == s.busy {
		return
	}
	if !s.lastTick.IsZero() {
		s.advance(time.Now())
	}
	s.busy = busy
}

// Tick evaluates T1/T3 expiry; callers invoke this whenever the DLQ
// consumer wakes (spec.md §5: "T1/T3/TH are logical timers evaluated
// each time the consumer wakes"), passing the current time.
func (s *Session) Tick(now time.Time) {
	s.advance(now)

	if s.t1Active && s.t1Remaining <= 0 {
		s.onT1Expiry()
	}
	if s.State == StateConnected && s.t3Active && s.t3Remaining <= 0 {
		s.onT3Expiry()
	}
}

// advance deducts the elapsed time since the last call from whichever
// logical timers are active, unless the channel is currently busy.
func (s *Session) advance(now time.Time) {
	if s.lastTick.IsZero() {
		s.lastTick = now
		return
	}
	elapsed := now.Sub(s.lastTick)
	s.lastTick = now
	if elapsed <= 0 || s.busy {
		return
	}
	if s.t1Active {
		s.t1Remaining -= elapsed
	}
	if s.t3Active {
		s.t3Remaining -= elapsed
	}
}

// tickAdvance approximates the scheduler's poll granularity, used by
// tests to simulate successive wake-ups.
const tickAdvance = 100 * time.Millisecond

func (s *Session) onT1Expiry() {
	s.retries++
	if s.retries > s.timers.N2 {
		if s.LinkError != nil {
			s.LinkError("N2 retry limit exceeded")
		}
		s.State = StateDisconnected
		s.stopT1()
		return
	}

	switch s.State {
	case StateAwaitingConnection22:
		// Peer never responded to SABME; fall back to SABM.
		s.State = StateAwaitingConnection
		s.modulo = 8
		s.sendU(ctlSABM, true)
		s.armT1()
	case StateAwaitingConnection:
		s.sendU(ctlSABM, true)
		s.armT1()
	case StateAwaitingRelease:
		s.sendU(ctlDISC, true)
		s.armT1()
	case StateConnected, StateTimerRecovery:
		s.State = StateTimerRecovery
		s.retransmitFrom(s.va)
		s.armT1()
	}
}

func (s *Session) onT3Expiry() {
	s.sendRR(true) // Poll, to detect a dead peer and refresh T1/T3.
	s.armT1()
	s.armT3()
}

// retransmitFrom resends every pending I-frame starting at sequence nr
// (spec.md §4.9: "T1 expiry: retransmit from V(A)").
func (s *Session) retransmitFrom(nr int) {
	for _, pf := range s.pending {
		if !pf.sent {
			continue
		}
		if pf.ns == nr || s.seqAfterOrEqual(pf.ns, nr) {
			s.sendIFrame(pf.ns, pf.info, pf.pid, false)
		}
	}
}

func (s *Session) seqAfterOrEqual(ns, nr int) bool {
	return (ns-nr+s.modulo)%s.modulo < s.window
}

// ackThrough advances V(A) to nr, discards now-acknowledged pending
// frames, flushes any send-queued frames the now-wider window has room
// for, and stops T1 if fully caught up (spec.md §4.9).
func (s *Session) ackThrough(nr int) {
	if nr != s.va {
		s.retries = 0
	}
	s.va = nr
	kept := s.pending[:0]
	for _, pf := range s.pending {
		if !s.seqBefore(pf.ns, nr) {
			kept = append(kept, pf)
		}
	}
	s.pending = kept

	s.flushWindow()

	if s.vs == s.va {
		s.stopT1()
	} else {
		s.armT1()
	}
}

func (s *Session) seqBefore(ns, nr int) bool {
	return (nr-ns+s.modulo)%s.modulo > 0 && (nr-ns+s.modulo)%s.modulo <= s.window
}

// validNR reports whether nr is within the range of sequence numbers we
// could plausibly have sent: between V(A) and V(S) inclusive, per the
// N(R) error check AX.25 §4.3.3.9 requires before accepting an
// acknowledgment.
func (s *Session) validNR(nr int) bool {
	span := (s.vs - s.va + s.modulo) % s.modulo
	offset := (nr - s.va + s.modulo) % s.modulo
	return offset <= span
}

// HandleFrame processes one received frame per spec.md §4.9's event
// list.
func (s *Session) HandleFrame(pkt *ax25.Packet) {
	info := pkt.FrameType()
	control := pkt.GetControl()

	switch info.Kind {
	case ax25.KindUSABM:
		s.onSABM(info.PF, 8)
	case ax25.KindUSABME:
		s.onSABM(info.PF, 128)
	case ax25.KindUDISC:
		s.onDISC(info.PF)
	case ax25.KindUUA:
		s.onUA()
	case ax25.KindUDM:
		s.onDM()
	case ax25.KindUFRMR:
		s.onFRMR()
	case ax25.KindUXID:
		s.onXID(pkt.GetInfo())
	case ax25.KindI:
		s.onIFrame(info, pkt.GetInfo(), control)
	case ax25.KindSRR:
		s.onRR(info.NR, info.PF, control)
	case ax25.KindSRNR:
		s.onRNR(info.NR, control)
	case ax25.KindSREJ:
		s.onREJ(info.NR, control)
	case ax25.KindSSREJ:
		s.onSREJ(info.NR)
	}
}

func (s *Session) onSABM(pf bool, modulo int) {
	s.modulo = modulo
	s.vs, s.vr, s.va = 0, 0, 0
	s.pending = nil
	s.retries = 0
	s.window = 4
	if modulo == 128 {
		s.window = 32
	}
	s.State = StateConnected
	s.sendU(ctlUA, pf)
	s.armT3()
	if s.Connected != nil {
		s.Connected()
	}
}

func (s *Session) onDISC(pf bool) {
	s.sendU(ctlUA, pf)
	s.State = StateDisconnected
	s.stopT1()
	if s.LinkError != nil {
		s.LinkError("peer requested disconnect")
	}
}

func (s *Session) onUA() {
	switch s.State {
	case StateAwaitingConnection22:
		s.modulo = 128
		s.window = 32
	case StateAwaitingConnection:
		s.modulo = 8
		s.window = 4
	case StateAwaitingRelease:
		s.State = StateDisconnected
		s.stopT1()
		return
	default:
		return
	}
	s.vs, s.vr, s.va = 0, 0, 0
	s.pending = nil
	s.retries = 0
	s.State = StateConnected
	s.stopT1()
	s.armT3()
	if s.Connected != nil {
		s.Connected()
	}
}

func (s *Session) onDM() {
	switch s.State {
	case StateAwaitingConnection22:
		s.State = StateAwaitingConnection
		s.modulo = 8
		s.sendU(ctlSABM, true)
		s.armT1()
	case StateAwaitingConnection, StateAwaitingRelease:
		s.State = StateDisconnected
		s.stopT1()
	case StateConnected, StateTimerRecovery:
		s.State = StateDisconnected
		s.stopT1()
		if s.LinkError != nil {
			s.LinkError("peer sent DM while connected")
		}
	}
}

func (s *Session) onFRMR() {
	if s.State == StateAwaitingConnection22 {
		s.State = StateAwaitingConnection
		s.modulo = 8
		s.sendU(ctlSABM, true)
		s.armT1()
		return
	}
	if s.LinkError != nil {
		s.LinkError("peer sent FRMR")
	}
	s.State = StateDisconnected
	s.stopT1()
}

func (s *Session) onXID(info []byte) {
	peer, err := DecodeXID(info)
	if err != nil {
		dwlog.Errf("datalink: bad XID from peer: %v", err)
		return
	}
	s.xidAgreed = negotiate(s.xidLocal, peer)
	s.modulo = s.xidAgreed.Modulo
	s.window = s.xidAgreed.WindowSizeRx
	s.srej = s.xidAgreed.SREJ
	if s.xidAgreed.IFieldLengthRx != Unknown {
		s.n1 = s.xidAgreed.IFieldLengthRx
	}
	resp := mustXIDResponse(s, s.xidAgreed)
	if resp != nil && s.Send != nil {
		s.Send(resp)
	}
}

func negotiate(local, peer XIDParams) XIDParams {
	out := local
	if peer.Modulo != 0 && peer.Modulo < local.Modulo {
		out.Modulo = peer.Modulo
	}
	if peer.WindowSizeRx != Unknown && peer.WindowSizeRx < local.WindowSizeRx {
		out.WindowSizeRx = peer.WindowSizeRx
	}
	if peer.IFieldLengthRx != Unknown && peer.IFieldLengthRx < local.IFieldLengthRx {
		out.IFieldLengthRx = peer.IFieldLengthRx
	}
	if peer.SREJ < local.SREJ {
		out.SREJ = peer.SREJ
	}
	return out
}

func mustXIDResponse(s *Session, p XIDParams) *ax25.Packet {
	body := EncodeXID(p, false)
	pkt, err := ax25.Build(s.addrs(s.Peer, s.My), 0xAF|0x10, -1, body)
	if err != nil {
		dwlog.Errf("datalink: failed to build XID response: %v", err)
		return nil
	}
	return pkt
}

func (s *Session) onIFrame(info ax25.FrameTypeInfo, payload []byte, control byte) {
	if s.State != StateConnected && s.State != StateTimerRecovery {
		return
	}
	if !s.validNR(info.NR) || len(payload) > s.n1 {
		s.sendFRMR(control, frmrReason{z: !s.validNR(info.NR), y: len(payload) > s.n1})
		s.State = StateDisconnected
		s.stopT1()
		if s.LinkError != nil {
			s.LinkError("protocol error: invalid N(R) or I-field too long")
		}
		return
	}
	s.ackThrough(info.NR)

	if info.NS != s.vr {
		s.sendREJIfNeeded()
		return
	}
	s.vr = (s.vr + 1) % s.modulo
	if s.DataIndication != nil {
		s.DataIndication(payload)
	}
	s.sendRR(info.PF)
	s.armT3()
}

func (s *Session) sendREJIfNeeded() {
	switch s.srej {
	case SREJNone:
		s.sendREJ(false)
	default:
		s.sendSREJ(false)
	}
}

func (s *Session) onRR(nr int, pf bool, control byte) {
	if !s.validNR(nr) {
		s.sendFRMR(control, frmrReason{z: true})
		return
	}
	s.ackThrough(nr)
	if s.State == StateTimerRecovery && s.vs == s.va {
		s.State = StateConnected
	}
	if pf {
		s.sendRR(true)
	}
}

func (s *Session) onRNR(nr int, control byte) {
	if !s.validNR(nr) {
		s.sendFRMR(control, frmrReason{z: true})
		return
	}
	s.ackThrough(nr)
	// No peer-busy state is kept: N(R) is acknowledged as for RR, and
	// ackThrough may still send queued I-frames. T1 still governs the
	// outstanding frame(s) already sent.
}

func (s *Session) onREJ(nr int, control byte) {
	if !s.validNR(nr) {
		s.sendFRMR(control, frmrReason{z: true})
		return
	}
	s.ackThrough(nr)
	s.retransmitFrom(nr)
}

func (s *Session) onSREJ(nr int) {
	for _, pf := range s.pending {
		if pf.ns == nr {
			s.sendIFrame(pf.ns, pf.info, pf.pid, false)
			return
		}
	}
}
