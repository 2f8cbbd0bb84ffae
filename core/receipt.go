package core

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/pkg/errors"
)

type ExecutionStatus uint8

const (
	TxnSucceeded ExecutionStatus = iota
	TxnReverted
)

func (s ExecutionStatus) MarshalText() ([]byte, error) {
	switch s {
	case TxnSucceeded:
		return []byte("SUCCEEDED"), nil
	case TxnReverted:
		return []byte("REVERTED"), nil
	default:
		return nil, errors.New("unknown execution status")
	}
}

func (s *ExecutionStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SUCCEEDED":
		*s = TxnSucceeded
	case "REVERTED":
		*s = TxnReverted
	default:
		return errors.Errorf("unknown execution status %q", text)
	}
	return nil
}

type FinalityStatus uint8

const (
	TxnPreConfirmed FinalityStatus = iota
	TxnAcceptedOnL2
	TxnAcceptedOnL1
	TxnRejected
)

func (s FinalityStatus) MarshalText() ([]byte, error) {
	switch s {
	case TxnPreConfirmed:
		return []byte("PRE_CONFIRMED"), nil
	case TxnAcceptedOnL2:
		return []byte("ACCEPTED_ON_L2"), nil
	case TxnAcceptedOnL1:
		return []byte("ACCEPTED_ON_L1"), nil
	case TxnRejected:
		return []byte("REJECTED"), nil
	default:
		return nil, errors.New("unknown finality status")
	}
}

func (s *FinalityStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "PRE_CONFIRMED", "RECEIVED":
		*s = TxnPreConfirmed
	case "ACCEPTED_ON_L2":
		*s = TxnAcceptedOnL2
	case "ACCEPTED_ON_L1":
		*s = TxnAcceptedOnL1
	case "REJECTED":
		*s = TxnRejected
	default:
		return errors.Errorf("unknown finality status %q", text)
	}
	return nil
}

type FeeUnit uint8

const (
	WEI FeeUnit = iota
	FRI
)

func (u FeeUnit) MarshalText() ([]byte, error) {
	switch u {
	case WEI:
		return []byte("WEI"), nil
	case FRI:
		return []byte("FRI"), nil
	default:
		return nil, errors.New("unknown fee unit")
	}
}

func (u *FeeUnit) UnmarshalText(text []byte) error {
	switch string(text) {
	case "WEI":
		*u = WEI
	case "FRI":
		*u = FRI
	default:
		return errors.Errorf("unknown fee unit %q", text)
	}
	return nil
}

// Event is one emitted event, stamped with the contract that generated it.
type Event struct {
	From *felt.Felt   `json:"from_address"`
	Keys []*felt.Felt `json:"keys"`
	Data []*felt.Felt `json:"data"`
}

// L2ToL1Message is the payload of a send_message_to_l1 syscall. From is the
// contract whose frame executed the syscall; To is the L1 address as a felt.
type L2ToL1Message struct {
	From    *felt.Felt   `json:"from_address"`
	To      *felt.Felt   `json:"to_address"`
	Payload []*felt.Felt `json:"payload"`
}

// GasConsumed is the executor-reported consumption vector.
type GasConsumed struct {
	L1Gas     uint64 `json:"l1_gas"`
	L1DataGas uint64 `json:"l1_data_gas"`
	L2Gas     uint64 `json:"l2_gas"`
}

// TransactionReceipt accumulates the outcome of one transaction. BlockHash
// and BlockNumber stay nil until the containing block seals.
type TransactionReceipt struct {
	TransactionHash    *felt.Felt
	ActualFee          *felt.Felt
	FeeUnit            FeeUnit
	ExecutionStatus    ExecutionStatus
	FinalityStatus     FinalityStatus
	RevertReason       string
	Events             []Event
	L2ToL1Messages     []*L2ToL1Message
	ExecutionResources GasConsumed
	BlockHash          *felt.Felt
	BlockNumber        *uint64
}
