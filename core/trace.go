package core

import (
	"sort"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

type CallType uint8

const (
	CallTypeCall CallType = iota
	CallTypeLibraryCall
	CallTypeDelegate
)

func (c CallType) MarshalText() ([]byte, error) {
	switch c {
	case CallTypeLibraryCall:
		return []byte("LIBRARY_CALL"), nil
	case CallTypeDelegate:
		return []byte("DELEGATE"), nil
	default:
		return []byte("CALL"), nil
	}
}

// OrderedEvent is an event inside a call frame; Order positions it in the
// transaction-wide emission sequence.
type OrderedEvent struct {
	Order uint64       `json:"order"`
	Keys  []*felt.Felt `json:"keys"`
	Data  []*felt.Felt `json:"data"`
}

type OrderedL2ToL1Message struct {
	Order   uint64       `json:"order"`
	To      *felt.Felt   `json:"to_address"`
	Payload []*felt.Felt `json:"payload"`
}

// CallInfo is one frame of the executor's call tree. Classes are referenced
// by hash; the class bodies live in the state's class store.
type CallInfo struct {
	ContractAddress    *felt.Felt             `json:"contract_address"`
	ClassHash          *felt.Felt             `json:"class_hash"`
	EntryPointSelector *felt.Felt             `json:"entry_point_selector"`
	CallType           CallType               `json:"call_type"`
	Calldata           []*felt.Felt           `json:"calldata"`
	Result             []*felt.Felt           `json:"result"`
	Events             []OrderedEvent         `json:"events"`
	Messages           []OrderedL2ToL1Message `json:"messages"`
	InnerCalls         []CallInfo             `json:"calls"`
}

// FlattenEvents walks the call tree and returns the events in emission
// order. Each event carries the address of the frame that emitted it.
func (c *CallInfo) FlattenEvents() []Event {
	type positioned struct {
		order uint64
		event Event
	}
	var collect func(frame *CallInfo, into []positioned) []positioned
	collect = func(frame *CallInfo, into []positioned) []positioned {
		for _, e := range frame.Events {
			into = append(into, positioned{order: e.Order, event: Event{
				From: frame.ContractAddress,
				Keys: e.Keys,
				Data: e.Data,
			}})
		}
		for i := range frame.InnerCalls {
			into = collect(&frame.InnerCalls[i], into)
		}
		return into
	}

	all := collect(c, nil)
	sort.SliceStable(all, func(i, j int) bool { return all[i].order < all[j].order })

	events := make([]Event, len(all))
	for i, p := range all {
		events[i] = p.event
	}
	return events
}

// FlattenMessages walks the call tree and returns the L2->L1 messages in
// emission order. The sender is the frame whose execution issued the
// syscall, not the caller of a library call.
func (c *CallInfo) FlattenMessages() []*L2ToL1Message {
	type positioned struct {
		order   uint64
		message *L2ToL1Message
	}
	var collect func(frame *CallInfo, into []positioned) []positioned
	collect = func(frame *CallInfo, into []positioned) []positioned {
		for _, m := range frame.Messages {
			into = append(into, positioned{order: m.Order, message: &L2ToL1Message{
				From:    frame.ContractAddress,
				To:      m.To,
				Payload: m.Payload,
			}})
		}
		for i := range frame.InnerCalls {
			into = collect(&frame.InnerCalls[i], into)
		}
		return into
	}

	all := collect(c, nil)
	sort.SliceStable(all, func(i, j int) bool { return all[i].order < all[j].order })

	messages := make([]*L2ToL1Message, len(all))
	for i, p := range all {
		messages[i] = p.message
	}
	return messages
}

// ExecuteInvocation is either the __execute__ call tree or a revert reason,
// never both.
type ExecuteInvocation struct {
	RevertReason string    `json:"revert_reason,omitempty"`
	CallInfo     *CallInfo `json:"function_invocation,omitempty"`
}

func (e *ExecuteInvocation) Reverted() bool {
	return e != nil && e.CallInfo == nil
}

// TransactionTrace is the per-kind trace shape the trace endpoints serve.
type TransactionTrace struct {
	Type                  TransactionType    `json:"type"`
	ValidateInvocation    *CallInfo          `json:"validate_invocation,omitempty"`
	ExecuteInvocation     *ExecuteInvocation `json:"execute_invocation,omitempty"`
	FeeTransferInvocation *CallInfo          `json:"fee_transfer_invocation,omitempty"`
	ConstructorInvocation *CallInfo          `json:"constructor_invocation,omitempty"`
	FunctionInvocation    *CallInfo          `json:"function_invocation,omitempty"`
	StateDiff             *StateDiff         `json:"state_diff,omitempty"`
}
