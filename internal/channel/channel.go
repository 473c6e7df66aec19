// Package channel implements the per-channel receive supervisor
// (component C10): it owns the set of parallel demodulator/FEC
// candidates for one radio channel, picks the best decode each time a
// batch of candidates completes, suppresses duplicates arriving close
// together, and hands the survivor to the receive dispatch queue.
//
// Ported from the teacher's multi_modem.go (candidate_t, the
// score-by-retries-then-bump-on-matching-CRC algorithm in
// pick_best_candidate), replacing its fixed [MAX_RADIO_CHANS]
// [MAX_SUBCHANS][MAX_SLICERS] array of candidate_t with a plain Go
// slice sized to however many decoders this channel is actually
// running, and its ax25_delete-on-the-losers-only-after-voting pattern
// with simply not bothering to retain the dropped candidates' packets.
package channel

import (
	"sync"
	"time"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dlq"
	"github.com/n0call/tncore/internal/dwlog"
)

// Candidate is one parallel decoder's result for the same bit window,
// mirroring the teacher's candidate_t.
type Candidate struct {
	Packet  *ax25.Packet
	FEC     bool // True if recovered via FX.25/IL2P FEC rather than a clean CRC.
	Retries int  // Bit-fix attempts (AX.25) or corrected bytes (FEC). 0 is best.
}

// retryMax mirrors the teacher's RETRY_MAX, the ceiling used to turn
// "fewer retries is better" into a score where higher is better.
const retryMax = 16

// score mirrors pick_best_candidate's two-tier scheme: a plain-CRC frame
// scores retryMax*1000 - 1000*retries + 1 (16001 with no retries) and an
// FEC-recovered frame 9000 - 100*corrections, so a plain frame with at
// most 7 retries outranks any FEC frame. Within each tier fewer retries
// score higher.
func score(c Candidate) int {
	if c.Packet == nil {
		return 0
	}
	if c.FEC {
		return 9000 - 100*c.Retries
	}
	return retryMax*1000 - c.Retries*1000 + 1
}

// pickBest selects the single best candidate out of a batch, bumping
// the score of any candidate whose dedupe checksum matches another in
// the same batch (multiple decoders agreeing is itself evidence),
// exactly as pick_best_candidate's CRC-bump pass does.
func pickBest(candidates []Candidate) (Candidate, bool) {
	n := len(candidates)
	if n == 0 {
		return Candidate{}, false
	}
	scores := make([]int, n)
	checksums := make([]uint16, n)
	for i, c := range candidates {
		scores[i] = score(c)
		if c.Packet != nil {
			checksums[i] = c.Packet.DedupeChecksum()
		}
	}
	for i, c := range candidates {
		if c.Packet == nil {
			continue
		}
		for j := range candidates {
			if j != i && candidates[j].Packet != nil && checksums[j] == checksums[i] {
				scores[i] += (n + 1)
			}
		}
	}

	bestIdx, bestScore := -1, 0
	for i, s := range scores {
		if candidates[i].Packet != nil && s > bestScore {
			bestScore, bestIdx = s, i
		}
	}
	if bestIdx < 0 {
		return Candidate{}, false
	}
	return candidates[bestIdx], true
}

// DedupeWindow is how long a just-accepted frame's checksum is
// remembered to suppress a near-duplicate arriving via a different
// decoder shortly after (spec.md §9 Design Notes; generalized from the
// teacher's DEFAULT_DEDUPE).
const DedupeWindow = 4 * time.Second

// Supervisor owns one radio channel's receive-side fan-in: it accepts
// batches of simultaneous decode Candidates (one call per HDLC/FX.25/
// IL2P frame-boundary event across however many demodulators/slicers
// are configured), votes on the best one, and enqueues the survivor to
// the dispatch queue -- unless it is a duplicate of a very recently
// accepted frame.
type Supervisor struct {
	Channel int
	Queue   *dlq.Queue

	mu      sync.Mutex
	recent  map[uint16]time.Time
	decoder *ChannelDecoder
}

// NewSupervisor constructs a Supervisor that enqueues accepted frames
// onto q as KindReceivedFrame items.
func NewSupervisor(channel int, q *dlq.Queue) *Supervisor {
	return &Supervisor{
		Channel: channel,
		Queue:   q,
		recent:  make(map[uint16]time.Time),
	}
}

// SubmitBatch votes among candidates (all decodes of the same frame
// window) and, unless the winner duplicates a recently accepted frame,
// enqueues it to the dispatch queue. now is the caller's current time,
// passed explicitly so tests can drive the dedupe window deterministically.
func (s *Supervisor) SubmitBatch(candidates []Candidate, now time.Time) {
	best, ok := pickBest(candidates)
	if !ok {
		return
	}

	sum := best.Packet.DedupeChecksum()
	s.mu.Lock()
	s.expireLocked(now)
	if last, dup := s.recent[sum]; dup && now.Sub(last) < DedupeWindow {
		s.mu.Unlock()
		dwlog.Debugf("channel %d: suppressing duplicate frame, checksum %04x", s.Channel, sum)
		return
	}
	s.recent[sum] = now
	s.mu.Unlock()

	s.Queue.NoteAlloc()
	s.Queue.Enqueue(dlq.Item{
		Kind:    dlq.KindReceivedFrame,
		Channel: s.Channel,
		Packet:  best.Packet,
	})
}

// expireLocked drops dedupe entries older than DedupeWindow so the map
// doesn't grow without bound over a long-running session. Caller must
// hold s.mu.
func (s *Supervisor) expireLocked(now time.Time) {
	for sum, t := range s.recent {
		if now.Sub(t) >= DedupeWindow {
			delete(s.recent, sum)
		}
	}
}

// AttachDecoder wires a demodulator/decoder chain to this channel, so
// subsequent PutSample calls decode live audio rather than requiring the
// caller to assemble Candidate batches by hand.
func (s *Supervisor) AttachDecoder(d *ChannelDecoder) {
	s.mu.Lock()
	s.decoder = d
	s.mu.Unlock()
}

// PutSample feeds one audio sample through the attached decoder chain
// and, whenever a flag-to-flag window yields at least one decode, votes
// and enqueues the winner exactly as SubmitBatch does. A no-op if no
// decoder has been attached (e.g. this channel is data-link-only, as in
// tests that submit synthetic Candidate batches directly).
func (s *Supervisor) PutSample(sample int16, now time.Time) {
	s.mu.Lock()
	d := s.decoder
	s.mu.Unlock()
	if d == nil {
		return
	}
	if candidates, ready := d.PutSample(sample); ready {
		s.SubmitBatch(candidates, now)
	}
}

// ReportChannelBusy forwards a carrier-sense transition to the dispatch
// queue as a KindChannelBusy event, for the data-link state machine's
// T1-pause handling (spec.md §5, testable property #8).
func (s *Supervisor) ReportChannelBusy(busy bool) {
	s.Queue.Enqueue(dlq.Item{
		Kind:    dlq.KindChannelBusy,
		Channel: s.Channel,
		Busy:    busy,
	})
}
