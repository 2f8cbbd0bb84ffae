// Package vm is the boundary to the external Cairo runtime. The devnet
// consumes the executor through the VM interface only: it hands over a
// transaction, a mutable state scope and the block context, and receives a
// call trace plus resource consumption back.
package vm

import (
	"errors"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// Validation-phase failures. The transaction is not admitted when Execute
// returns one of these; errors.Is distinguishes them at the sequencer
// boundary.
var (
	ErrInvalidTransactionNonce    = errors.New("invalid transaction nonce")
	ErrInsufficientMaxFee         = errors.New("max fee is insufficient")
	ErrInsufficientAccountBalance = errors.New("account balance is insufficient")
	ErrValidationFailure          = errors.New("account validation failed")
)

// BlockContext is the execution environment of the block under
// construction.
type BlockContext struct {
	BlockNumber      uint64
	Timestamp        uint64
	SequencerAddress *felt.Felt
	GasPrices        core.GasPrices
	ChainID          *felt.Felt
}

// ExecutionFlags modulate a run. Query marks fee-estimation and simulation
// copies; SkipValidate suppresses __validate__ (also used for impersonated
// senders); SkipFeeCharge leaves balances untouched.
type ExecutionFlags struct {
	SkipValidate  bool
	SkipFeeCharge bool
	Query         bool
}

// TransactionExecutionInfo is the executor's verdict on one transaction. A
// non-empty RevertReason means __execute__ reverted: such transactions are
// still admitted and charged.
type TransactionExecutionInfo struct {
	ValidateInvocation    *core.CallInfo
	ExecuteInvocation     *core.CallInfo
	FeeTransferInvocation *core.CallInfo
	ConstructorInvocation *core.CallInfo
	FunctionInvocation    *core.CallInfo
	RevertReason          string
	GasConsumed           core.GasConsumed
}

func (info *TransactionExecutionInfo) Reverted() bool {
	return info.RevertReason != ""
}

// Invocations returns the executed call trees in execution order, skipping
// absent phases.
func (info *TransactionExecutionInfo) Invocations() []*core.CallInfo {
	var calls []*core.CallInfo
	for _, call := range []*core.CallInfo{
		info.ValidateInvocation,
		info.ConstructorInvocation,
		info.ExecuteInvocation,
		info.FunctionInvocation,
		info.FeeTransferInvocation,
	} {
		if call != nil {
			calls = append(calls, call)
		}
	}
	return calls
}

// CallRequest is a read-only entry-point invocation.
type CallRequest struct {
	ContractAddress *felt.Felt
	ClassHash       *felt.Felt
	Selector        *felt.Felt
	Calldata        []*felt.Felt
}

//go:generate mockgen -destination=../mocks/mock_vm.go -package=mocks github.com/0xSpaceShard/starknet-devnet-go/vm VM

// VM runs transactions against a state scope. Execute mutates the scope
// through the StateReadWriter; the devnet turns those writes into the
// transaction's state diff. PaidFeeOnL1 is only consulted for L1 handler
// transactions.
type VM interface {
	Execute(txn core.Transaction, paidFeeOnL1 *felt.Felt, state core.StateReadWriter,
		blockContext *BlockContext, flags ExecutionFlags) (*TransactionExecutionInfo, error)
	Call(req *CallRequest, state core.StateReader, blockContext *BlockContext) ([]*felt.Felt, error)
}
