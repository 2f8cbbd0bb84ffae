package rpc

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
)

type FunctionCall struct {
	ContractAddress    felt.Felt    `json:"contract_address" validate:"required"`
	EntryPointSelector felt.Felt    `json:"entry_point_selector" validate:"required"`
	Calldata           []*felt.Felt `json:"calldata"`
}

func (h *Handler) Call(funcCall FunctionCall, id BlockID) ([]*felt.Felt, *jsonrpc.Error) {
	result, err := h.sequencer.Call(id.toSequencer(), &vm.CallRequest{
		ContractAddress: &funcCall.ContractAddress,
		Selector:        &funcCall.EntryPointSelector,
		Calldata:        funcCall.Calldata,
	})
	if err != nil {
		if mapped := mapError(err); mapped.Code == ErrContractNotFound.Code ||
			mapped.Code == ErrBlockNotFound.Code {
			return nil, mapped
		}
		return nil, makeContractError(err)
	}
	return result, nil
}

type SimulationFlag string

const (
	SkipValidateFlag  SimulationFlag = "SKIP_VALIDATE"
	SkipFeeChargeFlag SimulationFlag = "SKIP_FEE_CHARGE"
)

func adaptFlags(flags []SimulationFlag) []sequencer.SimulationFlag {
	var out []sequencer.SimulationFlag
	for _, flag := range flags {
		switch flag {
		case SkipValidateFlag:
			out = append(out, sequencer.FlagSkipValidate)
		case SkipFeeChargeFlag:
			out = append(out, sequencer.FlagSkipFeeCharge)
		}
	}
	return out
}

type FeeEstimate struct {
	L1GasConsumed     *felt.Felt `json:"l1_gas_consumed"`
	L1GasPrice        *felt.Felt `json:"l1_gas_price"`
	L2GasConsumed     *felt.Felt `json:"l2_gas_consumed"`
	L2GasPrice        *felt.Felt `json:"l2_gas_price"`
	L1DataGasConsumed *felt.Felt `json:"l1_data_gas_consumed"`
	L1DataGasPrice    *felt.Felt `json:"l1_data_gas_price"`
	OverallFee        *felt.Felt `json:"overall_fee"`
	Unit              string     `json:"unit"`
}

func adaptEstimation(estimation sequencer.FeeEstimation) FeeEstimate {
	return FeeEstimate{
		L1GasConsumed:     estimation.L1GasConsumed,
		L1GasPrice:        estimation.L1GasPrice,
		L2GasConsumed:     estimation.L2GasConsumed,
		L2GasPrice:        estimation.L2GasPrice,
		L1DataGasConsumed: estimation.L1DataGasConsumed,
		L1DataGasPrice:    estimation.L1DataGasPrice,
		OverallFee:        estimation.OverallFee,
		Unit:              feeUnitString(estimation.Unit),
	}
}

func feeUnitString(unit core.FeeUnit) string {
	text, _ := unit.MarshalText()
	return string(text)
}

func toItems(broadcasts []BroadcastedTransaction) ([]sequencer.BroadcastItem, *jsonrpc.Error) {
	items := make([]sequencer.BroadcastItem, len(broadcasts))
	for i := range broadcasts {
		item, rpcErr := broadcasts[i].ToItem()
		if rpcErr != nil {
			return nil, rpcErr
		}
		items[i] = item
	}
	return items, nil
}

func (h *Handler) EstimateFee(broadcasts []BroadcastedTransaction,
	simulationFlags []SimulationFlag, id BlockID,
) ([]FeeEstimate, *jsonrpc.Error) {
	items, rpcErr := toItems(broadcasts)
	if rpcErr != nil {
		return nil, rpcErr
	}

	estimations, err := h.sequencer.EstimateFee(id.toSequencer(), items, adaptFlags(simulationFlags))
	if err != nil {
		return nil, mapError(err)
	}
	return utils.Map(estimations, adaptEstimation), nil
}

type MsgFromL1 struct {
	From     felt.Felt    `json:"from_address" validate:"required"`
	To       felt.Felt    `json:"to_address" validate:"required"`
	Selector felt.Felt    `json:"entry_point_selector" validate:"required"`
	Payload  []*felt.Felt `json:"payload"`
}

func (h *Handler) EstimateMessageFee(msg MsgFromL1, id BlockID) (*FeeEstimate, *jsonrpc.Error) {
	// The order of the calldata parameters matters. msg.From must be
	// prepended.
	calldata := make([]*felt.Felt, 0, len(msg.Payload)+1)
	calldata = append(calldata, &msg.From)
	calldata = append(calldata, msg.Payload...)

	item := sequencer.BroadcastItem{
		Transaction: &core.L1HandlerTransaction{
			Version:            &felt.Zero,
			ContractAddress:    &msg.To,
			EntryPointSelector: &msg.Selector,
			Nonce:              &felt.Zero,
			CallData:           calldata,
			// Must be greater than zero to successfully execute.
			PaidFeeOnL1: new(felt.Felt).SetUint64(1),
		},
		PaidFeeOnL1: new(felt.Felt).SetUint64(1),
	}

	estimations, err := h.sequencer.EstimateFee(id.toSequencer(),
		[]sequencer.BroadcastItem{item}, nil)
	if err != nil {
		return nil, mapError(err)
	}
	estimate := adaptEstimation(estimations[0])
	return &estimate, nil
}

type SimulatedTransaction struct {
	TransactionTrace *TransactionTrace `json:"transaction_trace"`
	FeeEstimation    FeeEstimate       `json:"fee_estimation"`
}

func (h *Handler) SimulateTransactions(id BlockID, broadcasts []BroadcastedTransaction,
	simulationFlags []SimulationFlag,
) ([]SimulatedTransaction, *jsonrpc.Error) {
	items, rpcErr := toItems(broadcasts)
	if rpcErr != nil {
		return nil, rpcErr
	}

	results, err := h.sequencer.SimulateTransactions(id.toSequencer(), items, adaptFlags(simulationFlags))
	if err != nil {
		return nil, mapError(err)
	}

	return utils.Map(results, func(result sequencer.SimulatedTransaction) SimulatedTransaction {
		return SimulatedTransaction{
			TransactionTrace: adaptTrace(result.Trace),
			FeeEstimation:    adaptEstimation(result.FeeEstimation),
		}
	}), nil
}

// TransactionTrace is the wire trace; ExecuteInvocation is either a call
// tree or an object holding only revert_reason.
type TransactionTrace struct {
	Type                  string         `json:"type"`
	ValidateInvocation    *core.CallInfo `json:"validate_invocation,omitempty"`
	ExecuteInvocation     any            `json:"execute_invocation,omitempty"`
	FeeTransferInvocation *core.CallInfo `json:"fee_transfer_invocation,omitempty"`
	ConstructorInvocation *core.CallInfo `json:"constructor_invocation,omitempty"`
	FunctionInvocation    *core.CallInfo `json:"function_invocation,omitempty"`
	StateDiff             *ThinStateDiff `json:"state_diff,omitempty"`
}

type revertedInvocation struct {
	RevertReason string `json:"revert_reason"`
}

func adaptTrace(trace *core.TransactionTrace) *TransactionTrace {
	out := &TransactionTrace{
		Type:                  trace.Type.String(),
		ValidateInvocation:    trace.ValidateInvocation,
		FeeTransferInvocation: trace.FeeTransferInvocation,
		ConstructorInvocation: trace.ConstructorInvocation,
		FunctionInvocation:    trace.FunctionInvocation,
	}
	if trace.ExecuteInvocation != nil {
		if trace.ExecuteInvocation.Reverted() {
			out.ExecuteInvocation = revertedInvocation{RevertReason: trace.ExecuteInvocation.RevertReason}
		} else {
			out.ExecuteInvocation = trace.ExecuteInvocation.CallInfo
		}
	}
	if trace.StateDiff != nil {
		thin := adaptStateDiff(trace.StateDiff)
		out.StateDiff = &thin
	}
	return out
}

func (h *Handler) TraceTransaction(hash *felt.Felt) (*TransactionTrace, *jsonrpc.Error) {
	entry, err := h.sequencer.TraceByHash(hash)
	if err != nil {
		return nil, mapError(err)
	}
	if entry.Trace == nil {
		return nil, ErrTxnHashNotFound
	}
	return adaptTrace(entry.Trace), nil
}

type BlockTrace struct {
	TransactionHash *felt.Felt        `json:"transaction_hash"`
	TraceRoot       *TransactionTrace `json:"trace_root"`
}

func (h *Handler) TraceBlockTransactions(id BlockID) ([]BlockTrace, *jsonrpc.Error) {
	_, entries, rpcErr := h.blockWithEntries(id)
	if rpcErr != nil {
		return nil, rpcErr
	}

	traces := make([]BlockTrace, 0, len(entries))
	for _, entry := range entries {
		if entry.Trace == nil {
			continue
		}
		traces = append(traces, BlockTrace{
			TransactionHash: entry.Transaction.Hash(),
			TraceRoot:       adaptTrace(entry.Trace),
		})
	}
	return traces, nil
}
