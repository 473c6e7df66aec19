package datalink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0call/tncore/internal/ax25"
)

func TestEncodeXIDMatchesReferenceScenario(t *testing.T) {
	p := XIDParams{
		FullDuplex:     0,
		SREJ:           SREJSingle,
		Modulo:         128,
		IFieldLengthRx: 128,
		WindowSizeRx:   2,
		AckTimerMillis: 4096,
		Retries:        3,
	}
	got := EncodeXID(p, true)
	want := []byte{
		0x82, 0x80, 0x00, 0x17,
		0x02, 0x02, 0x21, 0x00,
		0x03, 0x03, 0x86, 0xA8, 0x02,
		0x06, 0x02, 0x04, 0x00,
		0x08, 0x01, 0x02,
		0x09, 0x02, 0x10, 0x00,
		0x0A, 0x01, 0x03,
	}
	assert.Equal(t, want, got)
}

func TestDecodeXIDRoundTrip(t *testing.T) {
	p := XIDParams{
		FullDuplex:     1,
		SREJ:           SREJMulti,
		Modulo:         128,
		IFieldLengthRx: 256,
		WindowSizeRx:   7,
		AckTimerMillis: 3000,
		Retries:        10,
	}
	encoded := EncodeXID(p, true)
	decoded, err := DecodeXID(encoded)
	require.NoError(t, err)
	assert.Equal(t, 1, decoded.FullDuplex)
	assert.Equal(t, SREJMulti, decoded.SREJ)
	assert.Equal(t, 128, decoded.Modulo)
	assert.Equal(t, 256, decoded.IFieldLengthRx)
	assert.Equal(t, 7, decoded.WindowSizeRx)
	assert.Equal(t, 3000, decoded.AckTimerMillis)
	assert.Equal(t, 10, decoded.Retries)
}

func newTestPair(t *testing.T) (a, b *Session, sentFromA, sentFromB *[]*ax25.Packet) {
	t.Helper()
	aCall := ax25.Address{Call: "N0CALL", SSID: 1}
	bCall := ax25.Address{Call: "N0CALL", SSID: 2}

	var framesFromA, framesFromB []*ax25.Packet
	sessA := NewSession(0, aCall, bCall, DefaultTimers())
	sessB := NewSession(0, bCall, aCall, DefaultTimers())
	sessA.Send = func(pkt *ax25.Packet) { framesFromA = append(framesFromA, pkt) }
	sessB.Send = func(pkt *ax25.Packet) { framesFromB = append(framesFromB, pkt) }
	return sessA, sessB, &framesFromA, &framesFromB
}

// TestConnectDataDisconnectRoundTrip drives a minimal two-party exchange
// through connect, one data frame, and disconnect, checking each side
// lands in the expected state.
func TestConnectDataDisconnectRoundTrip(t *testing.T) {
	a, b, fromA, fromB := newTestPair(t)

	a.DLConnect()
	require.Len(t, *fromA, 1, "expected SABME")
	b.HandleFrame((*fromA)[0])
	assert.Equal(t, StateConnected, b.State)
	*fromA = nil

	require.Len(t, *fromB, 1, "expected UA")
	a.HandleFrame((*fromB)[0])
	assert.Equal(t, StateConnected, a.State)
	*fromB = nil

	var received []byte
	b.DataIndication = func(info []byte) { received = info }

	a.DLData([]byte("hello"), 0xF0)
	require.Len(t, *fromA, 1, "expected one I-frame")
	b.HandleFrame((*fromA)[0])
	assert.Equal(t, []byte("hello"), received)
	*fromA = nil

	require.Len(t, *fromB, 1, "expected RR acking the I-frame")
	a.HandleFrame((*fromB)[0])
	assert.Empty(t, a.pending, "I-frame should be acked and cleared")
	*fromB = nil

	a.DLDisconnect()
	require.Len(t, *fromA, 1, "expected DISC")
	b.HandleFrame((*fromA)[0])
	assert.Equal(t, StateDisconnected, b.State)

	require.Len(t, *fromB, 1, "expected UA for DISC")
	a.HandleFrame((*fromB)[0])
	assert.Equal(t, StateDisconnected, a.State)
}

// TestRejTriggersRetransmission checks that an REJ with N(R) behind V(S)
// causes the sender to resend from that sequence number.
func TestRejTriggersRetransmission(t *testing.T) {
	a, _, fromA, _ := newTestPair(t)
	a.State = StateConnected
	a.modulo = 8
	a.window = 4

	a.DLData([]byte("one"), 0xF0)
	a.DLData([]byte("two"), 0xF0)
	require.Len(t, *fromA, 2)
	*fromA = nil

	rejPkt, err := ax25.BuildExt([]ax25.Address{a.Peer, a.My}, []byte{0x09}, -1, nil, 8)
	require.NoError(t, err)
	a.HandleFrame(rejPkt)

	assert.NotEmpty(t, *fromA, "expected retransmission after REJ")
}

// TestT1PausesWhileChannelBusy is testable property #8: while the
// channel is reported busy, Tick must not let T1 expire.
func TestT1PausesWhileChannelBusy(t *testing.T) {
	a, _, fromA, _ := newTestPair(t)
	a.timers.T1 = 200 * time.Millisecond
	a.State = StateConnected
	a.DLData([]byte("x"), 0xF0)
	require.Len(t, *fromA, 1)
	*fromA = nil

	a.ChannelBusy(true)
	now := time.Now()
	for i := 0; i < 50; i++ {
		now = now.Add(tickAdvance)
		a.Tick(now)
	}
	assert.Empty(t, *fromA, "T1 must not fire while channel stays busy")

	a.ChannelBusy(false)
	now = now.Add(a.timers.T1 + tickAdvance)
	a.Tick(now)
	assert.NotEmpty(t, *fromA, "T1 should fire once busy clears and deadline passes")
}

func TestN2ExceededSurfacesLinkError(t *testing.T) {
	a, _, fromA, _ := newTestPair(t)
	a.timers.T1 = 10 * time.Millisecond
	a.timers.N2 = 2
	a.State = StateConnected
	a.DLData([]byte("x"), 0xF0)
	*fromA = nil

	var failed string
	a.LinkError = func(reason string) { failed = reason }

	now := time.Now()
	for i := 0; i < 10 && failed == ""; i++ {
		now = now.Add(a.timers.T1 + tickAdvance)
		a.Tick(now)
	}
	assert.NotEmpty(t, failed)
	assert.Equal(t, StateDisconnected, a.State)
}

// TestSendQueueDrainsAsWindowOpens checks that I-frames submitted while
// the window is full don't stall forever: once enough RRs ack the
// outstanding frames to reopen the window, the still-unsent frames must
// go out without waiting for a T1-triggered retransmission.
func TestSendQueueDrainsAsWindowOpens(t *testing.T) {
	a, _, fromA, _ := newTestPair(t)
	a.State = StateConnected
	a.modulo = 8
	a.window = 2

	a.DLData([]byte("one"), 0xF0)
	a.DLData([]byte("two"), 0xF0)
	a.DLData([]byte("three"), 0xF0)
	require.Len(t, *fromA, 2, "only window-many frames should be sent up front")
	*fromA = nil

	rr, err := ax25.BuildExt([]ax25.Address{a.Peer, a.My}, []byte{0x01}, -1, nil, 8)
	require.NoError(t, err)
	a.HandleFrame(rr) // RR N(R)=0 acks nothing yet; window still full.
	assert.Empty(t, *fromA)

	rr, err = ax25.BuildExt([]ax25.Address{a.Peer, a.My}, []byte{0x21}, -1, nil, 8)
	require.NoError(t, err)
	a.HandleFrame(rr) // RR N(R)=1 acks the first frame, opening one slot.
	require.Len(t, *fromA, 1, "the third, previously send-queued frame should now go out")
}

// TestFRMRInfoFieldFormat checks the FRMR info field sent for an invalid
// N(R) matches AX.25 §4.3.3.9's 3-byte layout.
func TestFRMRInfoFieldFormat(t *testing.T) {
	a, _, fromA, _ := newTestPair(t)
	a.State = StateConnected
	a.modulo = 8
	a.vs, a.vr, a.va = 2, 0, 0

	// N(R)=7 is outside the [V(A), V(S)] == [0, 2] window: invalid.
	badRR, err := ax25.BuildExt([]ax25.Address{a.Peer, a.My}, []byte{0xE1}, -1, nil, 8)
	require.NoError(t, err)
	a.HandleFrame(badRR)

	require.Len(t, *fromA, 1)
	frmr := (*fromA)[0]
	assert.Equal(t, ax25.KindUFRMR, frmr.FrameType().Kind)
	info := frmr.GetInfo()
	require.Len(t, info, 3, "FRMR info field must be the 3-byte control/V(S)V(R)C/WXYZ layout")
	assert.Equal(t, byte(0xE1), info[0], "first byte is the rejected control field")
	assert.Equal(t, byte(0x08), info[2]&0x08, "Z bit must be set for an invalid N(R)")
}
