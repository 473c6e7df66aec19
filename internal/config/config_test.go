package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigHasOneChannel(t *testing.T) {
	c := Default()
	require.Len(t, c.Channels, 1)
	ch, ok := c.Channel(0)
	assert.True(t, ok)
	assert.Equal(t, "N0CALL", ch.MyCall)
	assert.Equal(t, ModemAFSK, ch.Modem)
}

func TestChannelLookupMissing(t *testing.T) {
	c := Default()
	_, ok := c.Channel(7)
	assert.False(t, ok)
}

func TestConfigRoundTripsThroughYAML(t *testing.T) {
	c := Default()
	out, err := yaml.Marshal(c)
	require.NoError(t, err)

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, c.Channels[0].MyCall, back.Channels[0].MyCall)
	assert.Equal(t, c.Channels[0].Timing.SlotTime, back.Channels[0].Timing.SlotTime)
}
