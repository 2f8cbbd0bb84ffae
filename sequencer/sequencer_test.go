package sequencer_test

import (
	"encoding/json"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/mocks"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testConfig() sequencer.Config {
	price := felt.New(1)
	balance := felt.New(1000)
	return sequencer.Config{
		Seed:           123,
		TotalAccounts:  1,
		InitialBalance: &balance,
		Network:        utils.Sepolia,
		GasPrices: core.GasPrices{
			L1GasPriceWEI: &price, L1GasPriceFRI: &price,
			L1DataGasPriceWEI: &price, L1DataGasPriceFRI: &price,
			L2GasPriceWEI: &price, L2GasPriceFRI: &price,
		},
		BlockGeneration: sequencer.BlockGeneration{Mode: sequencer.GenerateOnTransaction},
		Archive:         state.CapacityFull,
	}
}

// mintExecutor mimics the fee token's permissioned_mint: it credits the
// recipient's low balance slot and bumps the sender nonce.
func mintExecutor(ctrl *gomock.Controller) *mocks.MockVM {
	executor := mocks.NewMockVM(ctrl)
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(tx core.Transaction, _ *felt.Felt, st core.StateReadWriter,
			_ *vm.BlockContext, _ vm.ExecutionFlags,
		) (*vm.TransactionExecutionInfo, error) {
			invoke := tx.(*core.InvokeTransaction)
			token, recipient, amountLow := invoke.CallData[0], invoke.CallData[3], invoke.CallData[4]

			lowKey, _ := sequencer.BalanceSlots(recipient)
			current, err := st.ContractStorage(token, lowKey)
			if err != nil {
				return nil, err
			}
			if err := st.SetContractStorage(token, lowKey, new(felt.Felt).Add(current, amountLow)); err != nil {
				return nil, err
			}

			nonce, err := st.ContractNonce(invoke.SenderAddress)
			if err != nil {
				return nil, err
			}
			one := felt.New(1)
			if err := st.SetContractNonce(invoke.SenderAddress, new(felt.Felt).Add(nonce, &one)); err != nil {
				return nil, err
			}

			return &vm.TransactionExecutionInfo{
				ExecuteInvocation: &core.CallInfo{
					ContractAddress: token,
					Events: []core.OrderedEvent{{
						Order: 0,
						Keys:  []*felt.Felt{sequencer.TransferSelector},
						Data:  []*felt.Felt{recipient, amountLow},
					}},
				},
				GasConsumed: core.GasConsumed{L1Gas: 10},
			}, nil
		}).
		AnyTimes()
	return executor
}

func newSequencer(t *testing.T, cfg sequencer.Config, executor vm.VM) *sequencer.Sequencer {
	t.Helper()
	seq, err := sequencer.New(cfg, executor, utils.NewNopZapLogger())
	require.NoError(t, err)
	return seq
}

func TestGenesis(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mocks.NewMockVM(ctrl))

	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 0, height)

	genesis, err := seq.BlockByID(sequencer.NumberBlockID(0))
	require.NoError(t, err)
	assert.Equal(t, core.BlockAcceptedOnL2, genesis.Status)

	pre, err := seq.BlockByID(sequencer.PreConfirmedBlockID())
	require.NoError(t, err)
	assert.EqualValues(t, 1, pre.Number)
	assert.True(t, pre.ParentHash.Equal(genesis.Hash))

	accounts := seq.Accounts()
	require.Len(t, accounts, 1)
	balance, err := seq.BalanceAt(sequencer.LatestBlockID(), accounts[0].Address, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance.String())
}

func TestSeededAccountsAreDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := newSequencer(t, testConfig(), mocks.NewMockVM(ctrl))
	second := newSequencer(t, testConfig(), mocks.NewMockVM(ctrl))

	assert.True(t, first.Accounts()[0].Address.Equal(second.Accounts()[0].Address))

	otherCfg := testConfig()
	otherCfg.Seed = 999
	third := newSequencer(t, otherCfg, mocks.NewMockVM(ctrl))
	assert.False(t, first.Accounts()[0].Address.Equal(third.Accounts()[0].Address))
}

func TestMintCreditsBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	hash, balance, err := seq.Mint(&recipient, big.NewInt(100), core.FRI)
	require.NoError(t, err)
	require.NotNil(t, hash)
	assert.Equal(t, "100", balance.String())

	// on_transaction mode sealed a block around the mint.
	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 1, height)

	entry, err := seq.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnAcceptedOnL2, entry.Receipt.FinalityStatus)
	assert.Equal(t, core.TxnSucceeded, entry.Receipt.ExecutionStatus)
	require.NotNil(t, entry.BlockNumber)
	assert.EqualValues(t, 1, *entry.BlockNumber)
}

func TestTwoMintsProduceDistinctHashes(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	first, _, err := seq.Mint(&recipient, big.NewInt(5), core.WEI)
	require.NoError(t, err)
	second, _, err := seq.Mint(&recipient, big.NewInt(5), core.WEI)
	require.NoError(t, err)

	// The chargeable account's nonce advanced between the two.
	assert.False(t, first.Equal(second))
}

func TestAbortRestoresBalances(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	_, _, err := seq.Mint(&recipient, big.NewInt(1), core.FRI)
	require.NoError(t, err)
	b1, err := seq.LatestBlock()
	require.NoError(t, err)

	_, _, err = seq.Mint(&recipient, big.NewInt(1), core.FRI)
	require.NoError(t, err)
	b2, err := seq.LatestBlock()
	require.NoError(t, err)

	aborted, err := seq.AbortBlocks(sequencer.HashBlockID(b2.Hash))
	require.NoError(t, err)
	require.Len(t, aborted, 1)
	assert.True(t, aborted[0].Equal(b2.Hash))

	balance, err := seq.BalanceAt(sequencer.LatestBlockID(), &recipient, core.FRI)
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())

	aborted, err = seq.AbortBlocks(sequencer.HashBlockID(b1.Hash))
	require.NoError(t, err)
	require.Len(t, aborted, 1)

	balance, err = seq.BalanceAt(sequencer.LatestBlockID(), &recipient, core.FRI)
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())

	// Re-minting lands on block 1 again.
	_, _, err = seq.Mint(&recipient, big.NewInt(1), core.FRI)
	require.NoError(t, err)
	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 1, height)

	balance, err = seq.BalanceAt(sequencer.LatestBlockID(), &recipient, core.FRI)
	require.NoError(t, err)
	assert.Equal(t, "1", balance.String())
}

func TestAbortGenesisRefused(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mocks.NewMockVM(ctrl))

	_, err := seq.AbortBlocks(sequencer.NumberBlockID(0))
	assert.ErrorIs(t, err, state.ErrCannotAbortGenesis)
}

func TestValidationFailureNotAdmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockVM(ctrl)
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, vm.ErrInvalidTransactionNonce)
	seq := newSequencer(t, testConfig(), executor)

	sender := felt.New(0xacc)
	one := felt.New(1)
	_, err := seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version: &one, SenderAddress: &sender, Nonce: &felt.Zero, MaxFee: &one,
	}})
	assert.ErrorIs(t, err, vm.ErrInvalidTransactionNonce)

	// No block was sealed beyond genesis.
	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 0, height)
}

func TestRevertedExecutionIsAdmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockVM(ctrl)
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&vm.TransactionExecutionInfo{
			RevertReason: "assert failed in __execute__",
			GasConsumed:  core.GasConsumed{L1Gas: 7},
		}, nil)
	seq := newSequencer(t, testConfig(), executor)

	sender := felt.New(0xacc)
	one := felt.New(1)
	maxFee := felt.New(1000)
	hash, err := seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version: &one, SenderAddress: &sender, Nonce: &felt.Zero, MaxFee: &maxFee,
	}})
	require.NoError(t, err)

	entry, err := seq.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnReverted, entry.Receipt.ExecutionStatus)
	assert.Equal(t, "assert failed in __execute__", entry.Receipt.RevertReason)
	// Fees are still charged on accepted reverts.
	assert.Equal(t, "0x7", entry.Receipt.ActualFee.String())
	assert.True(t, entry.Trace.ExecuteInvocation.Reverted())
}

func TestExecutorPanicIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockVM(ctrl)
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(core.Transaction, *felt.Felt, core.StateReadWriter,
			*vm.BlockContext, vm.ExecutionFlags,
		) (*vm.TransactionExecutionInfo, error) {
			panic("vm blew up")
		})
	seq := newSequencer(t, testConfig(), executor)

	sender := felt.New(0xacc)
	one := felt.New(1)
	_, err := seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version: &one, SenderAddress: &sender, Nonce: &felt.Zero, MaxFee: &one,
	}})
	assert.ErrorIs(t, err, sequencer.ErrExecutorFailure)

	// The devnet stays alive and the scope was released.
	recipient := felt.New(0x1)
	_, err = seq.BalanceAt(sequencer.LatestBlockID(), &recipient, core.WEI)
	assert.NoError(t, err)
}

func TestDuplicateTransactionRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	sender := felt.New(0xacc)
	one := felt.New(1)
	maxFee := felt.New(100)
	token := sequencer.EthFeeTokenAddress
	recipient := felt.New(0x1)
	three := felt.New(3)
	makeTx := func() *core.InvokeTransaction {
		return &core.InvokeTransaction{
			Version: &one, SenderAddress: &sender, Nonce: &felt.Zero, MaxFee: &maxFee,
			CallData: []*felt.Felt{token, sequencer.MintSelector, &three, &recipient, &one, &felt.Zero},
		}
	}

	_, err := seq.AddTransaction(sequencer.BroadcastItem{Transaction: makeTx()})
	require.NoError(t, err)
	_, err = seq.AddTransaction(sequencer.BroadcastItem{Transaction: makeTx()})
	assert.ErrorIs(t, err, sequencer.ErrDuplicateTransaction)
}

func TestEstimateVsSimulateAsymmetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockVM(ctrl)
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&vm.TransactionExecutionInfo{
			RevertReason: "reverting tx",
			GasConsumed:  core.GasConsumed{L1Gas: 3},
		}, nil).
		Times(2)
	seq := newSequencer(t, testConfig(), executor)

	sender := felt.New(0xacc)
	one := felt.New(1)
	maxFee := felt.New(100)
	item := sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version: &one, SenderAddress: &sender, Nonce: &felt.Zero, MaxFee: &maxFee,
	}}

	// Estimation of a reverting transaction fails.
	_, err := seq.EstimateFee(sequencer.LatestBlockID(), []sequencer.BroadcastItem{item}, nil)
	assert.ErrorIs(t, err, sequencer.ErrExecutionReverted)

	// Simulation of the same transaction succeeds with a reverted trace.
	results, err := seq.SimulateTransactions(sequencer.LatestBlockID(), []sequencer.BroadcastItem{item}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Trace.ExecuteInvocation.Reverted())
	assert.Equal(t, "reverting tx", results[0].Trace.ExecuteInvocation.RevertReason)
}

func TestSimulationDoesNotCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	one := felt.New(1)
	maxFee := felt.New(100)
	three := felt.New(3)
	item := sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version: &one, SenderAddress: sequencer.ChargeableAddress, Nonce: &felt.Zero, MaxFee: &maxFee,
		CallData: []*felt.Felt{sequencer.EthFeeTokenAddress, sequencer.MintSelector, &three, &recipient, &one, &felt.Zero},
	}}

	_, err := seq.SimulateTransactions(sequencer.LatestBlockID(), []sequencer.BroadcastItem{item}, nil)
	require.NoError(t, err)

	balance, err := seq.BalanceAt(sequencer.PreConfirmedBlockID(), &recipient, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}

func TestUpdateGasAffectsNextBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	newPrice := felt.New(50)
	prices, err := seq.UpdateGas(sequencer.GasModification{L1GasPriceWEI: &newPrice})
	require.NoError(t, err)
	assert.Equal(t, "0x32", prices.L1GasPriceWEI.String())

	// The current pre-confirmed block keeps the old price.
	pre, err := seq.BlockByID(sequencer.PreConfirmedBlockID())
	require.NoError(t, err)
	assert.Equal(t, "0x1", pre.GasPrices.L1GasPriceWEI.String())

	// With generate_block the pre-confirmed seals at old prices and the new
	// ones start immediately.
	higher := felt.New(70)
	_, err = seq.UpdateGas(sequencer.GasModification{L1GasPriceWEI: &higher, GenerateBlock: true})
	require.NoError(t, err)

	sealed, err := seq.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, "0x1", sealed.GasPrices.L1GasPriceWEI.String())

	pre, err = seq.BlockByID(sequencer.PreConfirmedBlockID())
	require.NoError(t, err)
	assert.Equal(t, "0x46", pre.GasPrices.L1GasPriceWEI.String())
}

func TestImpersonationRequiresFork(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mocks.NewMockVM(ctrl))

	addr := felt.New(0xacc)
	assert.ErrorIs(t, seq.ImpersonateAccount(&addr), sequencer.ErrNotForked)
	assert.ErrorIs(t, seq.SetAutoImpersonate(true), sequencer.ErrNotForked)
}

func TestImpersonationSkipsValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockVM(ctrl)

	var seenFlags []vm.ExecutionFlags
	executor.EXPECT().
		Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ core.Transaction, _ *felt.Felt, _ core.StateReadWriter,
			_ *vm.BlockContext, flags vm.ExecutionFlags,
		) (*vm.TransactionExecutionInfo, error) {
			seenFlags = append(seenFlags, flags)
			if !flags.SkipValidate {
				return nil, vm.ErrValidationFailure
			}
			return &vm.TransactionExecutionInfo{ExecuteInvocation: &core.CallInfo{}}, nil
		}).
		AnyTimes()

	forkBlock := uint64(10)
	cfg := testConfig()
	cfg.ForkURL = "http://origin.invalid"
	cfg.ForkBlock = &forkBlock
	seq := newSequencer(t, cfg, executor)

	sender := felt.New(0xacc)
	one := felt.New(1)
	makeTx := func(nonce uint64) sequencer.BroadcastItem {
		n := felt.New(nonce)
		return sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
			Version: &one, SenderAddress: &sender, Nonce: &n, MaxFee: &one,
		}}
	}

	// Without impersonation validation runs and fails.
	_, err := seq.AddTransaction(makeTx(0))
	assert.ErrorIs(t, err, vm.ErrValidationFailure)

	require.NoError(t, seq.ImpersonateAccount(&sender))
	_, err = seq.AddTransaction(makeTx(1))
	assert.NoError(t, err)

	require.NoError(t, seq.StopImpersonateAccount(&sender))
	_, err = seq.AddTransaction(makeTx(2))
	assert.ErrorIs(t, err, vm.ErrValidationFailure)

	require.Len(t, seenFlags, 3)
	assert.False(t, seenFlags[0].SkipValidate)
	assert.True(t, seenFlags[1].SkipValidate)
	assert.False(t, seenFlags[2].SkipValidate)
}

func TestOnDemandMode(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := testConfig()
	cfg.BlockGeneration = sequencer.BlockGeneration{Mode: sequencer.GenerateOnDemand}
	seq := newSequencer(t, cfg, mintExecutor(ctrl))

	recipient := felt.New(0x1)
	hash, _, err := seq.Mint(&recipient, big.NewInt(1), core.WEI)
	require.NoError(t, err)

	// Still pre-confirmed, no block sealed.
	entry, err := seq.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnPreConfirmed, entry.Receipt.FinalityStatus)
	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 0, height)

	block, err := seq.CreateBlock()
	require.NoError(t, err)
	assert.EqualValues(t, 1, block.Number)
	assert.Equal(t, core.TxnAcceptedOnL2, entry.Receipt.FinalityStatus)

	// Sealing an empty pre-confirmed block is allowed.
	empty, err := seq.CreateBlock()
	require.NoError(t, err)
	assert.Zero(t, empty.TransactionCount)
}

func TestAcceptOnL1(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	hash, _, err := seq.Mint(&recipient, big.NewInt(1), core.WEI)
	require.NoError(t, err)

	hashes, err := seq.AcceptOnL1(sequencer.LatestBlockID())
	require.NoError(t, err)
	// Genesis and the mint block, newest first.
	require.Len(t, hashes, 2)

	entry, err := seq.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnAcceptedOnL1, entry.Receipt.FinalityStatus)

	// Pre-confirmed target refused.
	_, err = seq.AcceptOnL1(sequencer.PreConfirmedBlockID())
	assert.ErrorIs(t, err, blockchain.ErrPreConfirmedTarget)
}

func TestDumpAndLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	path := filepath.Join(t.TempDir(), "dump.json")

	cfg := testConfig()
	seq := newSequencer(t, cfg, mintExecutor(ctrl)).WithDump(sequencer.DumpOnTransaction, path)

	recipient := felt.New(0x1)
	first, _, err := seq.Mint(&recipient, big.NewInt(3), core.WEI)
	require.NoError(t, err)
	second, _, err := seq.Mint(&recipient, big.NewInt(4), core.WEI)
	require.NoError(t, err)

	file, err := sequencer.ReadDumpFile(path)
	require.NoError(t, err)
	require.Len(t, file.Transactions, 2)
	assert.True(t, file.Transactions[0].ResultingHash.Equal(first))
	assert.True(t, file.Transactions[1].ResultingHash.Equal(second))

	// A fresh devnet with the dumped config replays to the same hashes.
	fresh := newSequencer(t, file.ChainConfig, mintExecutor(ctrl))
	require.NoError(t, fresh.Load(file, decodeDumpedInvoke))

	for _, hash := range []*felt.Felt{first, second} {
		entry, err := fresh.TransactionByHash(hash)
		require.NoError(t, err)
		assert.Equal(t, core.TxnAcceptedOnL2, entry.Receipt.FinalityStatus)
	}

	balance, err := fresh.BalanceAt(sequencer.LatestBlockID(), &recipient, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "7", balance.String())

	// Loading again is idempotent.
	require.NoError(t, fresh.Load(file, decodeDumpedInvoke))
	balance, err = fresh.BalanceAt(sequencer.LatestBlockID(), &recipient, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "7", balance.String())
}

// decodeDumpedInvoke rebuilds the invoke transaction the mint pipeline
// serialized into the dump file.
func decodeDumpedInvoke(raw json.RawMessage) (sequencer.BroadcastItem, error) {
	var form struct {
		SenderAddress *felt.Felt   `json:"sender_address"`
		Nonce         *felt.Felt   `json:"nonce"`
		MaxFee        *felt.Felt   `json:"max_fee"`
		Calldata      []*felt.Felt `json:"calldata"`
	}
	if err := json.Unmarshal(raw, &form); err != nil {
		return sequencer.BroadcastItem{}, err
	}
	one := felt.New(1)
	return sequencer.BroadcastItem{
		Transaction: &core.InvokeTransaction{
			Version:       &one,
			SenderAddress: form.SenderAddress,
			Nonce:         form.Nonce,
			MaxFee:        form.MaxFee,
			CallData:      form.Calldata,
		},
		Raw: raw,
	}, nil
}

func TestEventsQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	_, _, err := seq.Mint(&recipient, big.NewInt(1), core.WEI)
	require.NoError(t, err)
	_, _, err = seq.Mint(&recipient, big.NewInt(2), core.WEI)
	require.NoError(t, err)

	chunk, err := seq.Events(sequencer.EventFilter{
		Address: sequencer.EthFeeTokenAddress,
		Keys:    [][]*felt.Felt{{sequencer.TransferSelector}},
	}, "", 10)
	require.NoError(t, err)
	assert.Len(t, chunk.Events, 2)
	assert.Empty(t, chunk.ContinuationToken)

	// Page size one produces a continuation token that resumes the scan.
	page, err := seq.Events(sequencer.EventFilter{Address: sequencer.EthFeeTokenAddress}, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.NotEmpty(t, page.ContinuationToken)

	rest, err := seq.Events(sequencer.EventFilter{Address: sequencer.EthFeeTokenAddress},
		page.ContinuationToken, 10)
	require.NoError(t, err)
	assert.Len(t, rest.Events, 1)

	_, err = seq.Events(sequencer.EventFilter{}, "not-a-token", 10)
	assert.ErrorIs(t, err, sequencer.ErrInvalidContinuationToken)
}

func TestRestart(t *testing.T) {
	ctrl := gomock.NewController(t)
	seq := newSequencer(t, testConfig(), mintExecutor(ctrl))

	recipient := felt.New(0x1)
	_, _, err := seq.Mint(&recipient, big.NewInt(9), core.WEI)
	require.NoError(t, err)

	require.NoError(t, seq.Restart())

	height, err := seq.Height()
	require.NoError(t, err)
	assert.EqualValues(t, 0, height)

	balance, err := seq.BalanceAt(sequencer.LatestBlockID(), &recipient, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "0", balance.String())
}
