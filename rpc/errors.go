package rpc

import (
	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/clients/origin"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/pkg/errors"
)

// The numeric error table of the Starknet RPC spec, plus the devnet's
// restricted-mode code.
var (
	ErrContractNotFound           = &jsonrpc.Error{Code: 20, Message: "Contract not found"}
	ErrBlockNotFound              = &jsonrpc.Error{Code: 24, Message: "Block not found"}
	ErrInvalidTxIndex             = &jsonrpc.Error{Code: 27, Message: "Invalid transaction index in a block"}
	ErrClassHashNotFound          = &jsonrpc.Error{Code: 28, Message: "Class hash not found"}
	ErrTxnHashNotFound            = &jsonrpc.Error{Code: 29, Message: "Transaction hash not found"}
	ErrPageSizeTooBig             = &jsonrpc.Error{Code: 31, Message: "Requested page size is too big"}
	ErrNoBlock                    = &jsonrpc.Error{Code: 32, Message: "There are no blocks"}
	ErrInvalidContinuationToken   = &jsonrpc.Error{Code: 33, Message: "The supplied continuation token is invalid or unknown"}
	ErrTooManyKeysInFilter        = &jsonrpc.Error{Code: 34, Message: "Too many keys provided in a filter"}
	ErrContractError              = &jsonrpc.Error{Code: 40, Message: "Contract error"}
	ErrCompilationFailed          = &jsonrpc.Error{Code: 50, Message: "Failed to compile the contract"}
	ErrClassAlreadyDeclared       = &jsonrpc.Error{Code: 51, Message: "Class already declared"}
	ErrInvalidTransactionNonce    = &jsonrpc.Error{Code: 52, Message: "Invalid transaction nonce"}
	ErrInsufficientMaxFee         = &jsonrpc.Error{Code: 53, Message: "Max fee is smaller than the minimal transaction cost (validation plus fee transfer)"}
	ErrInsufficientAccountBalance = &jsonrpc.Error{Code: 54, Message: "Account balance is smaller than the transaction's max_fee"}
	ErrValidationFailure          = &jsonrpc.Error{Code: 55, Message: "Account validation failed"}
	ErrInvalidSubscriptionID      = &jsonrpc.Error{Code: 66, Message: "Invalid subscription id"}
	ErrTooManyBlocksBack          = &jsonrpc.Error{Code: 68, Message: "Cannot go back more than 1024 blocks"}

	ErrMethodForbidden = &jsonrpc.Error{Code: -32604, Message: "Method forbidden"}
	ErrInternal        = jsonrpc.Err(jsonrpc.InternalError, nil)
)

type ContractErrorData struct {
	RevertError string `json:"revert_error"`
}

func makeContractError(err error) *jsonrpc.Error {
	return ErrContractError.CloneWithData(ContractErrorData{
		RevertError: err.Error(),
	})
}

// mapError turns the core's typed errors into the Starknet RPC spec's
// numeric codes.
// Origin errors that already carry a spec shape pass through transparently.
func mapError(err error) *jsonrpc.Error {
	var originErr *origin.RPCError
	if errors.As(err, &originErr) {
		return &jsonrpc.Error{Code: originErr.Code, Message: originErr.Message, Data: originErr.Data}
	}

	switch {
	case errors.Is(err, blockchain.ErrBlockNotFound),
		errors.Is(err, state.ErrNoHistory),
		errors.Is(err, state.ErrFutureBlock),
		errors.Is(err, state.ErrUnknownAbortBlock):
		return ErrBlockNotFound
	case errors.Is(err, blockchain.ErrNoBlocks):
		return ErrNoBlock
	case errors.Is(err, blockchain.ErrTxnNotFound):
		return ErrTxnHashNotFound
	case errors.Is(err, core.ErrContractNotDeployed):
		return ErrContractNotFound
	case errors.Is(err, core.ErrClassNotFound), errors.Is(err, core.ErrNoCompiledClassHash):
		return ErrClassHashNotFound
	case errors.Is(err, vm.ErrInvalidTransactionNonce):
		return ErrInvalidTransactionNonce
	case errors.Is(err, vm.ErrInsufficientMaxFee):
		return ErrInsufficientMaxFee
	case errors.Is(err, vm.ErrInsufficientAccountBalance):
		return ErrInsufficientAccountBalance
	case errors.Is(err, vm.ErrValidationFailure):
		return ErrValidationFailure.CloneWithData(err.Error())
	case errors.Is(err, sequencer.ErrDuplicateTransaction):
		return ErrInvalidTransactionNonce.CloneWithData(err.Error())
	case errors.Is(err, sequencer.ErrClassAlreadyDeclared):
		return ErrClassAlreadyDeclared
	case errors.Is(err, sequencer.ErrExecutionReverted),
		errors.Is(err, sequencer.ErrExecutorFailure):
		return makeContractError(err)
	case errors.Is(err, sequencer.ErrInvalidContinuationToken):
		return ErrInvalidContinuationToken
	case errors.Is(err, state.ErrCannotAbortGenesis):
		return ErrInternal.CloneWithData("genesis block cannot be aborted")
	case errors.Is(err, l1.ErrNotConfigured),
		errors.Is(err, l1.ErrMessageNotPresent):
		return ErrInternal.CloneWithData(err.Error())
	default:
		return ErrInternal.CloneWithData(err.Error())
	}
}
