package core_test

import (
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenEventsEmissionOrder(t *testing.T) {
	outer := felt.New(0xa)
	inner := felt.New(0xb)
	k1, k2, k3 := felt.New(1), felt.New(2), felt.New(3)

	// The inner call emitted between the outer call's two events.
	frame := &core.CallInfo{
		ContractAddress: &outer,
		Events: []core.OrderedEvent{
			{Order: 0, Keys: []*felt.Felt{&k1}},
			{Order: 2, Keys: []*felt.Felt{&k3}},
		},
		InnerCalls: []core.CallInfo{{
			ContractAddress: &inner,
			Events:          []core.OrderedEvent{{Order: 1, Keys: []*felt.Felt{&k2}}},
		}},
	}

	events := frame.FlattenEvents()
	require.Len(t, events, 3)
	assert.True(t, events[0].Keys[0].Equal(&k1))
	assert.True(t, events[1].Keys[0].Equal(&k2))
	assert.True(t, events[2].Keys[0].Equal(&k3))

	// Each event is stamped with the frame that emitted it.
	assert.True(t, events[0].From.Equal(&outer))
	assert.True(t, events[1].From.Equal(&inner))
}

func TestFlattenMessagesSenderIsEmittingFrame(t *testing.T) {
	caller := felt.New(0xca11)
	library := felt.New(0x11b)
	l1Target := felt.New(0xe7b)

	frame := &core.CallInfo{
		ContractAddress: &caller,
		InnerCalls: []core.CallInfo{{
			ContractAddress: &library,
			CallType:        core.CallTypeLibraryCall,
			Messages: []core.OrderedL2ToL1Message{
				{Order: 0, To: &l1Target, Payload: []*felt.Felt{&caller}},
			},
		}},
	}

	messages := frame.FlattenMessages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].From.Equal(&library))
	assert.True(t, messages[0].To.Equal(&l1Target))
}

func TestExecuteInvocationReverted(t *testing.T) {
	reverted := &core.ExecuteInvocation{RevertReason: "assert failed"}
	assert.True(t, reverted.Reverted())

	succeeded := &core.ExecuteInvocation{CallInfo: &core.CallInfo{}}
	assert.False(t, succeeded.Reverted())
}
