package xmit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dlq"
)

type fakeCarrier struct {
	mu   sync.Mutex
	busy map[int]bool
}

func (f *fakeCarrier) ChannelBusy(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy[channel]
}

type fakePTT struct {
	mu  sync.Mutex
	on  map[int]int
	off map[int]int
}

func newFakePTT() *fakePTT { return &fakePTT{on: map[int]int{}, off: map[int]int{}} }

func (f *fakePTT) PTTOn(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on[channel]++
	return nil
}

func (f *fakePTT) PTTOff(channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.off[channel]++
	return nil
}

func testPacket(t *testing.T) *ax25.Packet {
	p, err := ax25.Build([]ax25.Address{{Call: "N0CALL", SSID: 0}, {Call: "N0CALL", SSID: 1}}, 0x03, 0xf0, []byte("hello"))
	require.NoError(t, err)
	return p
}

func TestSchedulerTransmitsQueuedFrame(t *testing.T) {
	carrier := &fakeCarrier{busy: map[int]bool{}}
	ptt := newFakePTT()
	out := dlq.New(0)

	params := DefaultChannelParams()
	params.SlotTime = time.Millisecond
	params.TXDelay = time.Millisecond
	params.TXTail = time.Millisecond

	sched := NewScheduler(carrier, ptt, out)
	sched.ConfigureChannel(0, params)

	var mu sync.Mutex
	var emitted []*ax25.Packet
	sched.Emit = func(channel int, pkt *ax25.Packet) {
		mu.Lock()
		emitted = append(emitted, pkt)
		mu.Unlock()
	}

	go sched.Run()
	defer sched.Stop()

	sched.Enqueue(0, PrioNormal, testPacket(t))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(emitted) == 1
	}, time.Second, time.Millisecond)

	item, ok := out.Dequeue()
	require.True(t, ok)
	assert.Equal(t, dlq.KindSeizeConfirm, item.Kind)

	// PTT goes off after TXTail, which can follow Emit.
	require.Eventually(t, func() bool {
		ptt.mu.Lock()
		defer ptt.mu.Unlock()
		return ptt.off[0] > 0
	}, time.Second, time.Millisecond)
	ptt.mu.Lock()
	defer ptt.mu.Unlock()
	assert.Equal(t, 1, ptt.on[0])
	assert.Equal(t, 1, ptt.off[0])
}

func TestSchedulerWaitsForChannelNotBusy(t *testing.T) {
	carrier := &fakeCarrier{busy: map[int]bool{0: true}}
	ptt := newFakePTT()
	out := dlq.New(0)

	params := DefaultChannelParams()
	params.SlotTime = 10 * time.Millisecond
	params.TXDelay = time.Millisecond
	params.TXTail = time.Millisecond

	sched := NewScheduler(carrier, ptt, out)
	sched.ConfigureChannel(0, params)

	var mu sync.Mutex
	emitted := false
	sched.Emit = func(channel int, pkt *ax25.Packet) {
		mu.Lock()
		emitted = true
		mu.Unlock()
	}

	go sched.Run()
	defer sched.Stop()

	sched.Enqueue(0, PrioNormal, testPacket(t))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, emitted)
}

func TestSchedulerPrefersExpeditedOverNormal(t *testing.T) {
	carrier := &fakeCarrier{busy: map[int]bool{}}
	ptt := newFakePTT()
	out := dlq.New(0)

	params := DefaultChannelParams()
	params.PersistP = 255 // Always proceed.
	params.SlotTime = time.Millisecond
	params.TXDelay = 0
	params.TXTail = 0
	params.MaxBurst = 1

	sched := NewScheduler(carrier, ptt, out)
	sched.ConfigureChannel(0, params)

	var mu sync.Mutex
	var order []string
	sched.Emit = func(channel int, pkt *ax25.Packet) {
		mu.Lock()
		order = append(order, string(pkt.GetInfo()))
		mu.Unlock()
	}

	normalPkt := testPacket(t)
	expeditedPkt, err := ax25.Build([]ax25.Address{{Call: "N0CALL", SSID: 0}, {Call: "N0CALL", SSID: 1}}, 0x03, 0xf0, []byte("urgent"))
	require.NoError(t, err)

	sched.Enqueue(0, PrioNormal, normalPkt)
	sched.Enqueue(0, PrioExpedited, expeditedPkt)

	go sched.Run()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "urgent", order[0])
}

func TestCountReflectsQueueDepth(t *testing.T) {
	carrier := &fakeCarrier{busy: map[int]bool{0: true}}
	ptt := newFakePTT()
	out := dlq.New(0)

	sched := NewScheduler(carrier, ptt, out)
	sched.ConfigureChannel(0, DefaultChannelParams())

	assert.Equal(t, 0, sched.Count(0))
	sched.Enqueue(0, PrioNormal, testPacket(t))
	assert.Equal(t, 1, sched.Count(0))
}
