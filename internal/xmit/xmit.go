// Package xmit implements the transmit scheduler (component C8): per
// channel priority queues, p-persistence carrier sense, and TXDELAY/TXTAIL
// PTT sequencing (spec.md §4.8).
//
// Grounded on the teacher's tq.go (queue_head/tq_append/tq_remove/
// tq_wait_while_empty, generalized from C-linked-list-per-priority-per-
// channel into a Go slice-backed Queue) and ptt.go (the PTT sequencing
// shape), with the PTT_METHOD_* hardware backends themselves left
// unimplemented per spec.md §1 (actual keying transport is out of scope;
// PTTControl is the seam callers provide).
package xmit

import (
	"math/rand"
	"time"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dlq"
	"github.com/n0call/tncore/internal/dwlog"
)

// Priority selects one of the three outgoing queues for a channel
// (spec.md §4.8: "three priority queues (expedited / normal / beacon)").
type Priority int

const (
	PrioExpedited Priority = iota
	PrioNormal
	PrioBeacon
	numPriorities
)

// PTTControl is the hardware seam a caller supplies; this package only
// sequences calls to it (spec.md §1 scopes actual PTT transport out).
type PTTControl interface {
	PTTOn(channel int) error
	PTTOff(channel int) error
}

// CarrierSense reports whether a channel currently has DCD asserted
// (from whatever demodulator/slicer is monitoring it).
type CarrierSense interface {
	ChannelBusy(channel int) bool
}

// Frame is one outgoing AX.25 packet queued for a channel at a priority.
type Frame struct {
	Channel int
	Prio    Priority
	Packet  *ax25.Packet
}

// ChannelParams are the per-channel timing parameters spec.md §4.8
// names.
type ChannelParams struct {
	PersistP int           // 0..255, p-persistence probability numerator.
	SlotTime time.Duration // Retry wait when persistence check fails.
	TXDelay  time.Duration // PTT-on settle time before first flag.
	TXTail   time.Duration // Trailing time after last flag before PTT-off.
	MaxBurst int           // Max frames transmitted back-to-back per seizure.
}

// DefaultChannelParams mirrors the conventional AX.25 defaults (p=63,
// slottime=100ms, txdelay=300ms, txtail=50ms).
func DefaultChannelParams() ChannelParams {
	return ChannelParams{PersistP: 63, SlotTime: 100 * time.Millisecond, TXDelay: 300 * time.Millisecond, TXTail: 50 * time.Millisecond, MaxBurst: 32}
}

// channelQueue holds the three priority queues for one channel.
type channelQueue struct {
	queues [numPriorities][]*ax25.Packet
}

func (c *channelQueue) isEmpty() bool {
	for _, q := range c.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

func (c *channelQueue) count() int {
	n := 0
	for _, q := range c.queues {
		n += len(q)
	}
	return n
}

// Scheduler owns one transmit thread's worth of state for every channel
// assigned to a single audio device (spec.md §4.8: "a single transmit
// thread per audio device").
type Scheduler struct {
	chans  map[int]*channelQueue
	params map[int]ChannelParams

	carrier CarrierSense
	ptt     PTTControl
	out     *dlq.Queue

	wakeup chan struct{}
	stop   chan struct{}

	// Emit is called with the channel and packet of each transmitted frame. A
	// real deployment wires this to the C5 HDLC flag/bit-stuff encoder
	// feeding C1's modulator; tests can capture frames directly.
	Emit func(channel int, pkt *ax25.Packet)
}

// NewScheduler constructs a Scheduler. carrier, ptt and out must not be
// nil.
func NewScheduler(carrier CarrierSense, ptt PTTControl, out *dlq.Queue) *Scheduler {
	return &Scheduler{
		chans:   make(map[int]*channelQueue),
		params:  make(map[int]ChannelParams),
		carrier: carrier,
		ptt:     ptt,
		out:     out,
		wakeup:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// ConfigureChannel registers a channel's timing parameters; it must be
// called before Enqueue/Append for that channel.
func (s *Scheduler) ConfigureChannel(channel int, p ChannelParams) {
	s.chans[channel] = &channelQueue{}
	s.params[channel] = p
}

// Enqueue appends pkt to the tail of the named priority queue for the
// given channel, waking the transmit loop if every queue was empty
// (spec.md §4.8; grounded on tq_append).
func (s *Scheduler) Enqueue(channel int, prio Priority, pkt *ax25.Packet) {
	cq, ok := s.chans[channel]
	if !ok {
		dwlog.Errf("xmit: ERROR - request to transmit on unconfigured channel %d", channel)
		return
	}

	const maxQueueLen = 100 // spec.md §9 note: sanity check, not a hard protocol limit.
	if cq.count() > maxQueueLen {
		dwlog.Errf("xmit: transmit queue for channel %d is too long, discarding frame", channel)
		return
	}

	wasEmpty := allEmpty(s.chans)
	cq.queues[prio] = append(cq.queues[prio], pkt)

	if wasEmpty {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
}

func allEmpty(chans map[int]*channelQueue) bool {
	for _, cq := range chans {
		if !cq.isEmpty() {
			return false
		}
	}
	return true
}

// SeizeNow forces an immediate transmit opportunity for channel even if
// its queues are empty (spec.md §4.8's LM-SEIZE Request, grounded on
// lm_seize_request's "null frame" trick, replaced here with an explicit
// signal rather than a sentinel packet).
func (s *Scheduler) SeizeNow(channel int) {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// Stop halts the run loop; Run returns once any in-flight burst
// completes its TXTAIL.
func (s *Scheduler) Stop() { close(s.stop) }

// Run drives the transmit thread until Stop is called. It loops: wait
// for a non-empty queue, pick the highest-priority ready channel,
// contend for the channel with p-persistence, and transmit a burst.
func (s *Scheduler) Run() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		channel, prio, ok := s.pickReady()
		if !ok {
			select {
			case <-s.wakeup:
			case <-s.stop:
				return
			}
			continue
		}

		if !s.contend(channel) {
			continue
		}

		s.transmitBurst(channel, prio)
	}
}

// pickReady returns the first channel/priority with a queued frame,
// preferring expedited over normal over beacon (spec.md §4.8).
func (s *Scheduler) pickReady() (channel int, prio Priority, ok bool) {
	for p := Priority(0); p < numPriorities; p++ {
		for ch, cq := range s.chans {
			if len(cq.queues[p]) > 0 {
				return ch, p, true
			}
		}
	}
	return 0, 0, false
}

// contend applies p-persistence carrier sense: if the channel is busy,
// always retry after slottime; otherwise draw a uniform 0..255 and
// proceed only if it is <= PersistP (spec.md §4.8).
func (s *Scheduler) contend(channel int) bool {
	params := s.params[channel]

	if s.carrier.ChannelBusy(channel) {
		time.Sleep(params.SlotTime)
		return false
	}

	draw := rand.Intn(256)
	if draw > params.PersistP {
		time.Sleep(params.SlotTime)
		return false
	}
	return true
}

// transmitBurst keys PTT, waits TXDELAY, sends up to MaxBurst queued
// frames from channel/prio back to back, waits TXTAIL, then releases
// PTT. A SeizeConfirm event is posted to the DLQ once PTT is asserted so
// the data-link state machine can arm its timers (spec.md §4.8).
func (s *Scheduler) transmitBurst(channel int, prio Priority) {
	params := s.params[channel]
	cq := s.chans[channel]

	if err := s.ptt.PTTOn(channel); err != nil {
		dwlog.Errf("xmit: PTT on failed for channel %d: %v", channel, err)
		return
	}
	time.Sleep(params.TXDelay)

	s.out.Enqueue(dlq.Item{Kind: dlq.KindSeizeConfirm, Channel: channel})

	sent := 0
	for sent < params.MaxBurst && len(cq.queues[prio]) > 0 {
		pkt := cq.queues[prio][0]
		cq.queues[prio] = cq.queues[prio][1:]

		if s.Emit != nil {
			s.Emit(channel, pkt)
		}
		sent++
	}

	time.Sleep(params.TXTail)
	if err := s.ptt.PTTOff(channel); err != nil {
		dwlog.Errf("xmit: PTT off failed for channel %d: %v", channel, err)
	}
}

// Count returns the number of queued frames across all priorities for
// channel, for KISS/AGW query support (spec.md §4.8, grounded on
// tq_count).
func (s *Scheduler) Count(channel int) int {
	cq, ok := s.chans[channel]
	if !ok {
		return 0
	}
	return cq.count()
}
