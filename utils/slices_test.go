package utils_test

import (
	"strconv"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	assert.Nil(t, utils.Map([]int(nil), strconv.Itoa))
	assert.Equal(t, []string{"1", "2"}, utils.Map([]int{1, 2}, strconv.Itoa))
}

func TestFilter(t *testing.T) {
	even := func(v int) bool { return v%2 == 0 }
	assert.Equal(t, []int{2, 4}, utils.Filter([]int{1, 2, 3, 4}, even))
	assert.Nil(t, utils.Filter([]int{1, 3}, even))
}

func TestAnyOf(t *testing.T) {
	assert.True(t, utils.AnyOf(2, 1, 2, 3))
	assert.False(t, utils.AnyOf(9, 1, 2, 3))
}

func TestNetworkSet(t *testing.T) {
	var network utils.Network
	require.NoError(t, network.Set("SEPOLIA"))
	assert.Equal(t, "SN_SEPOLIA", network.ChainID)

	assert.ErrorIs(t, network.Set("nope"), utils.ErrUnknownNetwork)
}

func TestLogLevel(t *testing.T) {
	var level utils.LogLevel
	require.NoError(t, level.Set("warn"))
	assert.Equal(t, utils.WARN, level)
	assert.Equal(t, "warn", level.String())

	assert.ErrorIs(t, level.Set("loud"), utils.ErrUnknownLogLevel)
}
