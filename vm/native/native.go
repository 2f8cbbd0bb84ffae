// Package native is the built-in executor: a minimal account and ERC20
// runtime covering the devnet's system flows (fee token mints and
// transfers, nonce and balance accounting, deploy-account). Anything
// beyond those entry points reverts. A full Cairo VM can be swapped in
// behind the same vm.VM interface.
package native

import (
	"math/big"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/pkg/errors"
)

var (
	transferSelector  = crypto.StarknetKeccak([]byte("transfer"))
	mintSelector      = crypto.StarknetKeccak([]byte("permissioned_mint"))
	balanceOfSelector = crypto.StarknetKeccak([]byte("balanceOf"))
	transferEventKey  = crypto.StarknetKeccak([]byte("Transfer"))

	balancesSelector = crypto.StarknetKeccak([]byte("ERC20_balances"))
)

// Flat consumption vector every native execution reports; real metering
// belongs to a real VM.
var nativeGas = core.GasConsumed{L1Gas: 21, L1DataGas: 128, L2Gas: 4000}

type Executor struct{}

var _ vm.VM = (*Executor)(nil)

func New() *Executor {
	return &Executor{}
}

func balanceSlot(address *felt.Felt) *felt.Felt {
	return crypto.Pedersen(balancesSelector, address)
}

func readBalance(state core.StateReader, token, address *felt.Felt) (*big.Int, error) {
	low, err := state.ContractStorage(token, balanceSlot(address))
	if err != nil {
		return nil, err
	}
	one := felt.New(1)
	highSlot := new(felt.Felt).Add(balanceSlot(address), &one)
	high, err := state.ContractStorage(token, highSlot)
	if err != nil {
		return nil, err
	}
	balance := high.BigInt(new(big.Int))
	balance.Lsh(balance, 128)
	return balance.Add(balance, low.BigInt(new(big.Int))), nil
}

func writeBalance(state core.StateReadWriter, token, address *felt.Felt, balance *big.Int) error {
	mask := new(big.Int).Lsh(big.NewInt(1), 128)
	mask.Sub(mask, big.NewInt(1))
	low := new(felt.Felt).SetBigInt(new(big.Int).And(balance, mask))
	high := new(felt.Felt).SetBigInt(new(big.Int).Rsh(balance, 128))

	if err := state.SetContractStorage(token, balanceSlot(address), low); err != nil {
		return err
	}
	one := felt.New(1)
	highSlot := new(felt.Felt).Add(balanceSlot(address), &one)
	return state.SetContractStorage(token, highSlot, high)
}

func (e *Executor) Execute(txn core.Transaction, paidFeeOnL1 *felt.Felt,
	state core.StateReadWriter, blockContext *vm.BlockContext, flags vm.ExecutionFlags,
) (*vm.TransactionExecutionInfo, error) {
	switch t := txn.(type) {
	case *core.InvokeTransaction:
		return e.executeInvoke(t, state, flags)
	case *core.DeclareTransaction:
		return e.executeAccountTx(t.SenderAddress, t.Nonce, state, flags)
	case *core.DeployAccountTransaction:
		return e.executeDeployAccount(t, state, flags)
	case *core.L1HandlerTransaction:
		if paidFeeOnL1 == nil || paidFeeOnL1.IsZero() {
			return nil, errors.Wrap(vm.ErrInsufficientMaxFee, "l1 handler without paid fee")
		}
		return &vm.TransactionExecutionInfo{
			FunctionInvocation: &core.CallInfo{
				ContractAddress:    t.ContractAddress,
				EntryPointSelector: t.EntryPointSelector,
				Calldata:           t.CallData,
			},
			GasConsumed: nativeGas,
		}, nil
	default:
		return nil, errors.Errorf("native executor: unsupported transaction %T", txn)
	}
}

// validateAccount checks deployment, nonce and (unless skipped) a
// non-empty signature; the devnet does not verify curve signatures.
func validateAccount(sender, nonce *felt.Felt, state core.StateReadWriter,
	flags vm.ExecutionFlags, signed bool,
) (*core.CallInfo, error) {
	if _, err := state.ContractClassHash(sender); err != nil {
		return nil, errors.Wrap(vm.ErrValidationFailure, "sender is not deployed")
	}

	current, err := state.ContractNonce(sender)
	if err != nil {
		return nil, err
	}
	expected := nonce
	if expected == nil {
		expected = &felt.Zero
	}
	if !flags.Query && !current.Equal(expected) {
		return nil, errors.Wrapf(vm.ErrInvalidTransactionNonce,
			"expected %s, got %s", current.String(), expected.String())
	}

	if !flags.SkipValidate && !signed {
		return nil, errors.Wrap(vm.ErrValidationFailure, "missing signature")
	}

	one := felt.New(1)
	if err := state.SetContractNonce(sender, new(felt.Felt).Add(current, &one)); err != nil {
		return nil, err
	}
	return &core.CallInfo{ContractAddress: sender}, nil
}

func (e *Executor) executeAccountTx(sender, nonce *felt.Felt,
	state core.StateReadWriter, flags vm.ExecutionFlags,
) (*vm.TransactionExecutionInfo, error) {
	validate, err := validateAccount(sender, nonce, state, flags, true)
	if err != nil {
		return nil, err
	}
	return &vm.TransactionExecutionInfo{
		ValidateInvocation: validate,
		GasConsumed:        nativeGas,
	}, nil
}

func (e *Executor) executeDeployAccount(t *core.DeployAccountTransaction,
	state core.StateReadWriter, flags vm.ExecutionFlags,
) (*vm.TransactionExecutionInfo, error) {
	if _, err := state.ContractClassHash(t.ContractAddress); err == nil {
		return nil, errors.Wrap(vm.ErrValidationFailure, "address already deployed")
	}
	if err := state.SetContractClassHash(t.ContractAddress, t.ClassHash); err != nil {
		return nil, err
	}
	one := felt.New(1)
	if err := state.SetContractNonce(t.ContractAddress, &one); err != nil {
		return nil, err
	}
	return &vm.TransactionExecutionInfo{
		ConstructorInvocation: &core.CallInfo{
			ContractAddress: t.ContractAddress,
			ClassHash:       t.ClassHash,
			Calldata:        t.ConstructorCallData,
		},
		GasConsumed: nativeGas,
	}, nil
}

func (e *Executor) executeInvoke(t *core.InvokeTransaction,
	state core.StateReadWriter, flags vm.ExecutionFlags,
) (*vm.TransactionExecutionInfo, error) {
	validate, err := validateAccount(t.SenderAddress, t.Nonce, state, flags,
		len(t.TransactionSignature) > 0 || len(t.CallData) > 0)
	if err != nil {
		return nil, err
	}

	info := &vm.TransactionExecutionInfo{
		ValidateInvocation: validate,
		GasConsumed:        nativeGas,
	}

	// Account __execute__ call encoding: target, selector, calldata
	// length, arguments.
	if len(t.CallData) < 3 {
		info.RevertReason = "invalid __execute__ calldata"
		return info, nil
	}
	target, selector := t.CallData[0], t.CallData[1]
	args := t.CallData[3:]

	execute := &core.CallInfo{
		ContractAddress:    target,
		EntryPointSelector: selector,
		Calldata:           args,
	}

	switch {
	case selector.Equal(mintSelector):
		if len(args) < 3 {
			info.RevertReason = "permissioned_mint expects recipient and u256 amount"
			return info, nil
		}
		recipient := args[0]
		amount := args[2].BigInt(new(big.Int))
		amount.Lsh(amount, 128)
		amount.Add(amount, args[1].BigInt(new(big.Int)))

		balance, err := readBalance(state, target, recipient)
		if err != nil {
			return nil, err
		}
		if err := writeBalance(state, target, recipient, balance.Add(balance, amount)); err != nil {
			return nil, err
		}
		execute.Events = []core.OrderedEvent{{
			Order: 0,
			Keys:  []*felt.Felt{transferEventKey},
			Data:  []*felt.Felt{&felt.Zero, recipient, args[1], args[2]},
		}}
	case selector.Equal(transferSelector):
		if len(args) < 3 {
			info.RevertReason = "transfer expects recipient and u256 amount"
			return info, nil
		}
		recipient := args[0]
		amount := args[2].BigInt(new(big.Int))
		amount.Lsh(amount, 128)
		amount.Add(amount, args[1].BigInt(new(big.Int)))

		senderBalance, err := readBalance(state, target, t.SenderAddress)
		if err != nil {
			return nil, err
		}
		if senderBalance.Cmp(amount) < 0 {
			info.RevertReason = "ERC20: transfer amount exceeds balance"
			return info, nil
		}
		recipientBalance, err := readBalance(state, target, recipient)
		if err != nil {
			return nil, err
		}
		if err := writeBalance(state, target, t.SenderAddress, senderBalance.Sub(senderBalance, amount)); err != nil {
			return nil, err
		}
		if err := writeBalance(state, target, recipient, recipientBalance.Add(recipientBalance, amount)); err != nil {
			return nil, err
		}
		execute.Events = []core.OrderedEvent{{
			Order: 0,
			Keys:  []*felt.Felt{transferEventKey},
			Data:  []*felt.Felt{t.SenderAddress, recipient, args[1], args[2]},
		}}
	default:
		info.RevertReason = "entry point not supported by the native executor"
		return info, nil
	}

	info.ExecuteInvocation = execute
	return info, nil
}

// Call serves the read-only surface the native runtime understands.
func (e *Executor) Call(req *vm.CallRequest, state core.StateReader,
	blockContext *vm.BlockContext,
) ([]*felt.Felt, error) {
	if req.Selector.Equal(balanceOfSelector) {
		if len(req.Calldata) < 1 {
			return nil, errors.New("balanceOf expects an address")
		}
		balance, err := readBalance(state, req.ContractAddress, req.Calldata[0])
		if err != nil {
			return nil, err
		}
		mask := new(big.Int).Lsh(big.NewInt(1), 128)
		mask.Sub(mask, big.NewInt(1))
		low := new(felt.Felt).SetBigInt(new(big.Int).And(balance, mask))
		high := new(felt.Felt).SetBigInt(new(big.Int).Rsh(balance, 128))
		return []*felt.Felt{low, high}, nil
	}
	return nil, errors.New("entry point not supported by the native executor")
}
