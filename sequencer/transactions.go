package sequencer

import (
	"encoding/json"
	"math/big"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/pkg/errors"
)

// BroadcastItem is one transaction as it arrived on the wire: the typed
// form, the declared class body if any, the L1 fee for handler
// transactions, and the raw broadcast JSON retained for the dump file.
type BroadcastItem struct {
	Transaction core.Transaction
	Class       core.Class
	PaidFeeOnL1 *felt.Felt
	Raw         json.RawMessage
}

// AddTransaction runs the full admission pipeline for one transaction and
// returns its hash.
func (s *Sequencer) AddTransaction(item BroadcastItem) (*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addTransactionLocked(item.Transaction, item.Class, item.PaidFeeOnL1, item.Raw)
}

func (s *Sequencer) addTransactionLocked(tx core.Transaction, class core.Class,
	paidFeeOnL1 *felt.Felt, broadcast json.RawMessage,
) (*felt.Felt, error) {
	hash, err := s.stampHash(tx)
	if err != nil {
		return nil, err
	}
	if _, err := s.chain.TransactionByHash(hash); err == nil {
		return nil, ErrDuplicateTransaction
	}

	declare, _ := tx.(*core.DeclareTransaction)
	if declare != nil {
		if class == nil {
			return nil, errors.New("declare transaction without a class body")
		}
		if _, err := s.layers.PreConfirmed().Class(declare.ClassHash); err == nil {
			return nil, ErrClassAlreadyDeclared
		}
	}

	scope, err := s.layers.BeginTxScope()
	if err != nil {
		return nil, err
	}

	flags := vm.ExecutionFlags{SkipValidate: s.isImpersonatedLocked(core.TxSender(tx))}
	info, err := s.executeGuarded(tx, paidFeeOnL1, scope, flags)
	if err != nil {
		// Validation-phase failure: the transaction is not admitted.
		scope.Discard()
		return nil, err
	}

	if declare != nil {
		if err := scope.PutClass(declare.ClassHash, class); err != nil {
			scope.Discard()
			return nil, err
		}
		if declare.CompiledClassHash != nil {
			if err := scope.SetCompiledClassHash(declare.ClassHash, declare.CompiledClassHash); err != nil {
				scope.Discard()
				return nil, err
			}
		}
	}

	fee, unit := s.chargedFee(tx, info)
	diff := scope.Commit()

	entry := &blockchain.TransactionEntry{
		Transaction: tx,
		Receipt:     buildReceipt(tx, info, fee, unit),
		Trace:       buildTrace(tx, info, &diff),
		Broadcast:   broadcast,
	}
	s.chain.AddPreConfirmedTransaction(entry)
	s.notifyAdmitted(entry)

	s.log.Infow("Transaction admitted", "hash", hash.ShortString(),
		"type", tx.Type().String(), "reverted", info.Reverted())

	if s.cfg.BlockGeneration.Mode == GenerateOnTransaction {
		if _, err := s.sealLocked(); err != nil {
			return nil, err
		}
	}
	if s.dumpMode == DumpOnTransaction {
		if err := s.dumpLocked(s.dumpPath); err != nil {
			s.log.Errorw("Dump on transaction failed", "err", err)
		}
	}
	return hash, nil
}

// stampHash computes and fixes the transaction hash when the broadcast
// form did not carry one.
func (s *Sequencer) stampHash(tx core.Transaction) (*felt.Felt, error) {
	if existing := tx.Hash(); existing != nil {
		return existing, nil
	}
	hash, err := core.TransactionHash(tx, s.chainID)
	if err != nil {
		return nil, err
	}
	switch t := tx.(type) {
	case *core.InvokeTransaction:
		t.TransactionHash = hash
	case *core.DeclareTransaction:
		t.TransactionHash = hash
	case *core.DeployAccountTransaction:
		t.TransactionHash = hash
	case *core.L1HandlerTransaction:
		t.TransactionHash = hash
	}
	return hash, nil
}

// executeGuarded contains executor panics: the scope caller discards and
// the devnet stays alive.
func (s *Sequencer) executeGuarded(tx core.Transaction, paidFeeOnL1 *felt.Felt,
	scope *state.TxScope, flags vm.ExecutionFlags,
) (info *vm.TransactionExecutionInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("Executor panicked", "recovered", r)
			info = nil
			err = errors.Wrapf(ErrExecutorFailure, "executor panic: %v", r)
		}
	}()

	info, err = s.executor.Execute(tx, paidFeeOnL1, scope, s.blockContext(), flags)
	if err == nil && info == nil {
		err = errors.Wrap(ErrExecutorFailure, "executor returned no execution info")
	}
	return info, err
}

// chargedFee prices the consumed resources at the pre-confirmed block's
// prices, capped by the transaction's bounds.
func (s *Sequencer) chargedFee(tx core.Transaction, info *vm.TransactionExecutionInfo) (*felt.Felt, core.FeeUnit) {
	prices := s.chain.PreConfirmed().GasPrices
	unit := core.WEI
	if tx.TxVersion() != nil && tx.TxVersion().Equal(feltThree) {
		unit = core.FRI
	}

	l1Price, l1DataPrice, l2Price := prices.L1GasPriceWEI, prices.L1DataGasPriceWEI, prices.L2GasPriceWEI
	if unit == core.FRI {
		l1Price, l1DataPrice, l2Price = prices.L1GasPriceFRI, prices.L1DataGasPriceFRI, prices.L2GasPriceFRI
	}

	total := new(big.Int)
	total.Add(total, resourceFee(info.GasConsumed.L1Gas, l1Price, boundFor(tx, core.ResourceL1Gas)))
	total.Add(total, resourceFee(info.GasConsumed.L1DataGas, l1DataPrice, boundFor(tx, core.ResourceL1DataGas)))
	total.Add(total, resourceFee(info.GasConsumed.L2Gas, l2Price, boundFor(tx, core.ResourceL2Gas)))

	if maxFee := v1MaxFee(tx); maxFee != nil {
		feeCap := maxFee.BigInt(new(big.Int))
		if total.Cmp(feeCap) > 0 {
			total.Set(feeCap)
		}
	}
	return new(felt.Felt).SetBigInt(total), unit
}

var feltThree = new(felt.Felt).SetUint64(3)

func resourceFee(consumed uint64, price *felt.Felt, bounds *core.ResourceBounds) *big.Int {
	fee := new(big.Int).SetUint64(consumed)
	fee.Mul(fee, price.BigInt(new(big.Int)))
	if bounds != nil && bounds.MaxPricePerUnit != nil {
		feeCap := new(big.Int).SetUint64(bounds.MaxAmount)
		feeCap.Mul(feeCap, bounds.MaxPricePerUnit.BigInt(new(big.Int)))
		if fee.Cmp(feeCap) > 0 {
			fee.Set(feeCap)
		}
	}
	return fee
}

func boundFor(tx core.Transaction, resource core.Resource) *core.ResourceBounds {
	var bounds map[core.Resource]core.ResourceBounds
	switch t := tx.(type) {
	case *core.InvokeTransaction:
		bounds = t.ResourceBounds
	case *core.DeclareTransaction:
		bounds = t.ResourceBounds
	case *core.DeployAccountTransaction:
		bounds = t.ResourceBounds
	}
	if b, ok := bounds[resource]; ok {
		return &b
	}
	return nil
}

func v1MaxFee(tx core.Transaction) *felt.Felt {
	switch t := tx.(type) {
	case *core.InvokeTransaction:
		return t.MaxFee
	case *core.DeclareTransaction:
		return t.MaxFee
	case *core.DeployAccountTransaction:
		return t.MaxFee
	default:
		return nil
	}
}

func buildReceipt(tx core.Transaction, info *vm.TransactionExecutionInfo, fee *felt.Felt, unit core.FeeUnit) *core.TransactionReceipt {
	receipt := &core.TransactionReceipt{
		TransactionHash:    tx.Hash(),
		ActualFee:          fee,
		FeeUnit:            unit,
		FinalityStatus:     core.TxnPreConfirmed,
		ExecutionStatus:    core.TxnSucceeded,
		ExecutionResources: info.GasConsumed,
	}
	if info.Reverted() {
		receipt.ExecutionStatus = core.TxnReverted
		receipt.RevertReason = info.RevertReason
	}
	for _, call := range info.Invocations() {
		receipt.Events = append(receipt.Events, call.FlattenEvents()...)
		receipt.L2ToL1Messages = append(receipt.L2ToL1Messages, call.FlattenMessages()...)
	}
	return receipt
}

func buildTrace(tx core.Transaction, info *vm.TransactionExecutionInfo, diff *core.StateDiff) *core.TransactionTrace {
	trace := &core.TransactionTrace{
		Type:                  tx.Type(),
		ValidateInvocation:    info.ValidateInvocation,
		FeeTransferInvocation: info.FeeTransferInvocation,
		StateDiff:             diff,
	}
	switch tx.Type() {
	case core.TxnInvoke:
		if info.Reverted() {
			trace.ExecuteInvocation = &core.ExecuteInvocation{RevertReason: info.RevertReason}
		} else {
			trace.ExecuteInvocation = &core.ExecuteInvocation{CallInfo: info.ExecuteInvocation}
		}
	case core.TxnDeployAccount:
		trace.ConstructorInvocation = info.ConstructorInvocation
	case core.TxnL1Handler:
		trace.FunctionInvocation = info.FunctionInvocation
	case core.TxnDeclare:
	}
	return trace
}

// SimulationFlag matches the RPC simulation flags.
type SimulationFlag uint8

const (
	FlagSkipValidate SimulationFlag = iota
	FlagSkipFeeCharge
)

// FeeEstimation is the priced outcome of one estimated transaction.
type FeeEstimation struct {
	L1GasConsumed     *felt.Felt
	L1GasPrice        *felt.Felt
	L2GasConsumed     *felt.Felt
	L2GasPrice        *felt.Felt
	L1DataGasConsumed *felt.Felt
	L1DataGasPrice    *felt.Felt
	OverallFee        *felt.Felt
	Unit              core.FeeUnit
}

// SimulatedTransaction pairs a trace with its fee estimation.
type SimulatedTransaction struct {
	Trace         *core.TransactionTrace
	FeeEstimation FeeEstimation
}

// SimulateTransactions runs the pipeline on query-flagged copies without
// committing. Reverting executions are returned as success-shaped traces
// with the revert reason inside.
func (s *Sequencer) SimulateTransactions(id BlockID, items []BroadcastItem,
	flags []SimulationFlag,
) ([]SimulatedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simulateLocked(id, items, flags, false)
}

// EstimateFee prices transactions with fee charging skipped. Unlike
// simulation, a reverting transaction fails the whole estimate.
func (s *Sequencer) EstimateFee(id BlockID, items []BroadcastItem,
	flags []SimulationFlag,
) ([]FeeEstimation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.simulateLocked(id, items, append(flags, FlagSkipFeeCharge), true)
	if err != nil {
		return nil, err
	}

	estimations := make([]FeeEstimation, len(results))
	for i, result := range results {
		estimations[i] = result.FeeEstimation
	}
	return estimations, nil
}

func (s *Sequencer) simulateLocked(id BlockID, items []BroadcastItem,
	flags []SimulationFlag, estimateMode bool,
) ([]SimulatedTransaction, error) {
	// Simulation always runs against the live overlay; the block id is
	// accepted for interface parity and must resolve.
	if _, err := s.stateByIDLocked(id); err != nil {
		return nil, err
	}

	execFlags := vm.ExecutionFlags{Query: true}
	for _, flag := range flags {
		switch flag {
		case FlagSkipValidate:
			execFlags.SkipValidate = true
		case FlagSkipFeeCharge:
			execFlags.SkipFeeCharge = true
		}
	}

	results := make([]SimulatedTransaction, 0, len(items))
	for _, item := range items {
		if _, err := s.stampHash(item.Transaction); err != nil {
			return nil, err
		}

		scope, err := s.layers.BeginTxScope()
		if err != nil {
			return nil, err
		}

		itemFlags := execFlags
		if s.isImpersonatedLocked(core.TxSender(item.Transaction)) {
			itemFlags.SkipValidate = true
		}
		info, err := s.executeGuarded(item.Transaction, item.PaidFeeOnL1, scope, itemFlags)
		if err != nil {
			scope.Discard()
			return nil, err
		}
		if estimateMode && info.Reverted() {
			scope.Discard()
			return nil, errors.Wrap(ErrExecutionReverted, info.RevertReason)
		}

		fee, unit := s.chargedFee(item.Transaction, info)
		diff, err := scope.Diff().Clone()
		scope.Discard()
		if err != nil {
			return nil, err
		}

		prices := s.chain.PreConfirmed().GasPrices
		l1Price, l1DataPrice, l2Price := prices.L1GasPriceWEI, prices.L1DataGasPriceWEI, prices.L2GasPriceWEI
		if unit == core.FRI {
			l1Price, l1DataPrice, l2Price = prices.L1GasPriceFRI, prices.L1DataGasPriceFRI, prices.L2GasPriceFRI
		}

		results = append(results, SimulatedTransaction{
			Trace: buildTrace(item.Transaction, info, &diff),
			FeeEstimation: FeeEstimation{
				L1GasConsumed:     new(felt.Felt).SetUint64(info.GasConsumed.L1Gas),
				L1GasPrice:        l1Price,
				L2GasConsumed:     new(felt.Felt).SetUint64(info.GasConsumed.L2Gas),
				L2GasPrice:        l2Price,
				L1DataGasConsumed: new(felt.Felt).SetUint64(info.GasConsumed.L1DataGas),
				L1DataGasPrice:    l1DataPrice,
				OverallFee:        fee,
				Unit:              unit,
			},
		})
	}
	return results, nil
}

// Call executes a read-only entry point at the given block.
func (s *Sequencer) Call(id BlockID, req *vm.CallRequest) ([]*felt.Felt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}
	if req.ClassHash == nil {
		classHash, err := reader.ContractClassHash(req.ContractAddress)
		if err != nil {
			return nil, err
		}
		req.ClassHash = classHash
	}
	return s.executor.Call(req, reader, s.blockContext())
}
