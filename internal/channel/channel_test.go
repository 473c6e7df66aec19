package channel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dlq"
)

func buildPacket(t *testing.T, info string) *ax25.Packet {
	t.Helper()
	addrs := []ax25.Address{
		{Call: "N0CALL", SSID: 1},
		{Call: "N0CALL", SSID: 2},
	}
	p, err := ax25.Build(addrs, 0x03, 0xF0, []byte(info))
	require.NoError(t, err)
	return p
}

func TestPickBestPrefersFewerRetries(t *testing.T) {
	clean := Candidate{Packet: buildPacket(t, "hello"), Retries: 0}
	fixed := Candidate{Packet: buildPacket(t, "hello"), Retries: 3}

	best, ok := pickBest([]Candidate{fixed, clean})
	require.True(t, ok)
	assert.Equal(t, 0, best.Retries)
}

func TestPickBestPrefersFECOverPlainWithManyRetries(t *testing.T) {
	fec := Candidate{Packet: buildPacket(t, "hello"), FEC: true, Retries: 2}
	plain := Candidate{Packet: buildPacket(t, "hello"), Retries: 15}

	best, ok := pickBest([]Candidate{plain, fec})
	require.True(t, ok)
	assert.True(t, best.FEC)
}

func TestPickBestIgnoresEmptyCandidates(t *testing.T) {
	best, ok := pickBest([]Candidate{{}, {}, {Packet: buildPacket(t, "x")}})
	require.True(t, ok)
	assert.NotNil(t, best.Packet)
}

func TestPickBestNoneDecoded(t *testing.T) {
	_, ok := pickBest([]Candidate{{}, {}})
	assert.False(t, ok)
}

func TestSupervisorSuppressesDuplicateWithinWindow(t *testing.T) {
	q := dlq.New(0)
	s := NewSupervisor(0, q)
	now := time.Now()

	s.SubmitBatch([]Candidate{{Packet: buildPacket(t, "hello")}}, now)
	assert.Equal(t, 1, q.Len())

	s.SubmitBatch([]Candidate{{Packet: buildPacket(t, "hello")}}, now.Add(time.Second))
	assert.Equal(t, 1, q.Len(), "duplicate within the window should be suppressed")

	s.SubmitBatch([]Candidate{{Packet: buildPacket(t, "hello")}}, now.Add(DedupeWindow+time.Second))
	assert.Equal(t, 2, q.Len(), "same frame after the window elapses should be re-accepted")
}

func TestSupervisorReportsChannelBusy(t *testing.T) {
	q := dlq.New(0)
	s := NewSupervisor(2, q)
	s.ReportChannelBusy(true)

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, dlq.KindChannelBusy, item.Kind)
	assert.True(t, item.Busy)
	assert.Equal(t, 2, item.Channel)
}
