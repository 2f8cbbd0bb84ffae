package rpc

import (
	"encoding/json"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/fork"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
)

type ResourceBounds struct {
	MaxAmount       *felt.Felt `json:"max_amount"`
	MaxPricePerUnit *felt.Felt `json:"max_price_per_unit"`
}

type ResourceBoundsMap struct {
	L1Gas     *ResourceBounds `json:"l1_gas,omitempty"`
	L2Gas     *ResourceBounds `json:"l2_gas,omitempty"`
	L1DataGas *ResourceBounds `json:"l1_data_gas,omitempty"`
}

// Transaction is the wire shape shared by reads and broadcasts; unused
// fields stay empty per kind.
type Transaction struct {
	Hash                  *felt.Felt         `json:"transaction_hash,omitempty"`
	Type                  string             `json:"type"`
	Version               *felt.Felt         `json:"version,omitempty"`
	Nonce                 *felt.Felt         `json:"nonce,omitempty"`
	MaxFee                *felt.Felt         `json:"max_fee,omitempty"`
	SenderAddress         *felt.Felt         `json:"sender_address,omitempty"`
	ContractAddress       *felt.Felt         `json:"contract_address,omitempty"`
	EntryPointSelector    *felt.Felt         `json:"entry_point_selector,omitempty"`
	CallData              *[]*felt.Felt      `json:"calldata,omitempty"`
	Signature             *[]*felt.Felt      `json:"signature,omitempty"`
	ClassHash             *felt.Felt         `json:"class_hash,omitempty"`
	CompiledClassHash     *felt.Felt         `json:"compiled_class_hash,omitempty"`
	ContractAddressSalt   *felt.Felt         `json:"contract_address_salt,omitempty"`
	ConstructorCallData   *[]*felt.Felt      `json:"constructor_calldata,omitempty"`
	ResourceBounds        *ResourceBoundsMap `json:"resource_bounds,omitempty"`
	Tip                   *felt.Felt         `json:"tip,omitempty"`
	PaymasterData         *[]*felt.Felt      `json:"paymaster_data,omitempty"`
	AccountDeploymentData *[]*felt.Felt      `json:"account_deployment_data,omitempty"`
	NonceDAMode           *string            `json:"nonce_data_availability_mode,omitempty"`
	FeeDAMode             *string            `json:"fee_data_availability_mode,omitempty"`
}

func adaptBoundsOut(bounds map[core.Resource]core.ResourceBounds) *ResourceBoundsMap {
	if bounds == nil {
		return nil
	}
	out := &ResourceBoundsMap{}
	adapt := func(b core.ResourceBounds) *ResourceBounds {
		return &ResourceBounds{
			MaxAmount:       new(felt.Felt).SetUint64(b.MaxAmount),
			MaxPricePerUnit: b.MaxPricePerUnit,
		}
	}
	if b, ok := bounds[core.ResourceL1Gas]; ok {
		out.L1Gas = adapt(b)
	}
	if b, ok := bounds[core.ResourceL2Gas]; ok {
		out.L2Gas = adapt(b)
	}
	if b, ok := bounds[core.ResourceL1DataGas]; ok {
		out.L1DataGas = adapt(b)
	}
	return out
}

func daModeString(mode core.DAMode) *string {
	text, _ := mode.MarshalText()
	s := string(text)
	return &s
}

// AdaptTransaction serializes a core transaction for the read surface.
func AdaptTransaction(txn core.Transaction) *Transaction {
	switch t := txn.(type) {
	case *core.InvokeTransaction:
		out := &Transaction{
			Hash:          t.TransactionHash,
			Type:          core.TxnInvoke.String(),
			Version:       t.Version,
			Nonce:         t.Nonce,
			MaxFee:        t.MaxFee,
			SenderAddress: t.SenderAddress,
			CallData:      &t.CallData,
			Signature:     utils.HeapPtr(t.Signature()),
		}
		if t.ResourceBounds != nil {
			out.ResourceBounds = adaptBoundsOut(t.ResourceBounds)
			out.Tip = new(felt.Felt).SetUint64(t.Tip)
			out.PaymasterData = &t.PaymasterData
			out.AccountDeploymentData = &t.AccountDeploymentData
			out.NonceDAMode = daModeString(t.NonceDAMode)
			out.FeeDAMode = daModeString(t.FeeDAMode)
		}
		return out
	case *core.DeclareTransaction:
		out := &Transaction{
			Hash:              t.TransactionHash,
			Type:              core.TxnDeclare.String(),
			Version:           t.Version,
			Nonce:             t.Nonce,
			MaxFee:            t.MaxFee,
			SenderAddress:     t.SenderAddress,
			ClassHash:         t.ClassHash,
			CompiledClassHash: t.CompiledClassHash,
			Signature:         utils.HeapPtr(t.Signature()),
		}
		if t.ResourceBounds != nil {
			out.ResourceBounds = adaptBoundsOut(t.ResourceBounds)
			out.Tip = new(felt.Felt).SetUint64(t.Tip)
			out.PaymasterData = &t.PaymasterData
			out.AccountDeploymentData = &t.AccountDeploymentData
			out.NonceDAMode = daModeString(t.NonceDAMode)
			out.FeeDAMode = daModeString(t.FeeDAMode)
		}
		return out
	case *core.DeployAccountTransaction:
		out := &Transaction{
			Hash:                t.TransactionHash,
			Type:                core.TxnDeployAccount.String(),
			Version:             t.Version,
			Nonce:               t.Nonce,
			MaxFee:              t.MaxFee,
			ClassHash:           t.ClassHash,
			ContractAddressSalt: t.ContractAddressSalt,
			ConstructorCallData: &t.ConstructorCallData,
			Signature:           utils.HeapPtr(t.Signature()),
		}
		if t.ResourceBounds != nil {
			out.ResourceBounds = adaptBoundsOut(t.ResourceBounds)
			out.Tip = new(felt.Felt).SetUint64(t.Tip)
			out.PaymasterData = &t.PaymasterData
			out.NonceDAMode = daModeString(t.NonceDAMode)
			out.FeeDAMode = daModeString(t.FeeDAMode)
		}
		return out
	case *core.L1HandlerTransaction:
		return &Transaction{
			Hash:               t.TransactionHash,
			Type:               core.TxnL1Handler.String(),
			Version:            t.Version,
			Nonce:              t.Nonce,
			ContractAddress:    t.ContractAddress,
			EntryPointSelector: t.EntryPointSelector,
			CallData:           &t.CallData,
		}
	default:
		return &Transaction{}
	}
}

// BroadcastedTransaction is a Transaction plus the broadcast-only fields;
// the raw envelope is retained for the dump file.
type BroadcastedTransaction struct {
	Transaction
	ContractClass json.RawMessage `json:"contract_class,omitempty"`
	PaidFeeOnL1   *felt.Felt      `json:"paid_fee_on_l1,omitempty"`

	raw json.RawMessage
}

func (b *BroadcastedTransaction) UnmarshalJSON(data []byte) error {
	type alias BroadcastedTransaction
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*b = BroadcastedTransaction(decoded)
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

func derefCalldata(data *[]*felt.Felt) []*felt.Felt {
	if data == nil {
		return nil
	}
	return *data
}

func adaptBoundsIn(bounds *ResourceBoundsMap) map[core.Resource]core.ResourceBounds {
	if bounds == nil {
		return nil
	}
	out := make(map[core.Resource]core.ResourceBounds)
	set := func(resource core.Resource, b *ResourceBounds) {
		if b == nil {
			return
		}
		amount := uint64(0)
		if b.MaxAmount != nil {
			amount, _ = b.MaxAmount.Uint64()
		}
		out[resource] = core.ResourceBounds{MaxAmount: amount, MaxPricePerUnit: b.MaxPricePerUnit}
	}
	set(core.ResourceL1Gas, bounds.L1Gas)
	set(core.ResourceL2Gas, bounds.L2Gas)
	set(core.ResourceL1DataGas, bounds.L1DataGas)
	return out
}

func parseDAMode(s *string) core.DAMode {
	if s == nil || *s != "L2" {
		return core.DAModeL1
	}
	return core.DAModeL2
}

// ToItem turns a broadcast into the sequencer's admission input. Class
// bodies that fail to adapt map to the compilation-failure code.
func (b *BroadcastedTransaction) ToItem() (sequencer.BroadcastItem, *jsonrpc.Error) {
	version := b.Version
	if version == nil {
		version = &felt.Zero
	}
	signature := derefCalldata(b.Signature)
	bounds := adaptBoundsIn(b.ResourceBounds)
	tip := uint64(0)
	if b.Tip != nil {
		tip, _ = b.Tip.Uint64()
	}

	switch b.Type {
	case "INVOKE":
		return sequencer.BroadcastItem{
			Transaction: &core.InvokeTransaction{
				Version:               version,
				SenderAddress:         b.SenderAddress,
				CallData:              derefCalldata(b.CallData),
				TransactionSignature:  signature,
				Nonce:                 b.Nonce,
				MaxFee:                b.MaxFee,
				ResourceBounds:        bounds,
				Tip:                   tip,
				PaymasterData:         derefCalldata(b.PaymasterData),
				AccountDeploymentData: derefCalldata(b.AccountDeploymentData),
				NonceDAMode:           parseDAMode(b.NonceDAMode),
				FeeDAMode:             parseDAMode(b.FeeDAMode),
			},
			Raw: b.raw,
		}, nil
	case "DECLARE":
		class, err := fork.AdaptClass(b.ContractClass)
		if err != nil {
			return sequencer.BroadcastItem{}, ErrCompilationFailed.CloneWithData(err.Error())
		}
		classHash := b.ClassHash
		if classHash == nil {
			computed, hashErr := class.Hash()
			if hashErr != nil {
				return sequencer.BroadcastItem{}, ErrCompilationFailed.CloneWithData(hashErr.Error())
			}
			classHash = computed
		}
		return sequencer.BroadcastItem{
			Transaction: &core.DeclareTransaction{
				Version:               version,
				SenderAddress:         b.SenderAddress,
				ClassHash:             classHash,
				CompiledClassHash:     b.CompiledClassHash,
				TransactionSignature:  signature,
				Nonce:                 b.Nonce,
				MaxFee:                b.MaxFee,
				ResourceBounds:        bounds,
				Tip:                   tip,
				PaymasterData:         derefCalldata(b.PaymasterData),
				AccountDeploymentData: derefCalldata(b.AccountDeploymentData),
				NonceDAMode:           parseDAMode(b.NonceDAMode),
				FeeDAMode:             parseDAMode(b.FeeDAMode),
			},
			Class: class,
			Raw:   b.raw,
		}, nil
	case "DEPLOY_ACCOUNT":
		constructorCalldata := derefCalldata(b.ConstructorCallData)
		contractAddress := core.ContractAddressFromDeploy(
			&felt.Zero, b.ContractAddressSalt, b.ClassHash, constructorCalldata)
		return sequencer.BroadcastItem{
			Transaction: &core.DeployAccountTransaction{
				Version:              version,
				ContractAddress:      contractAddress,
				ContractAddressSalt:  b.ContractAddressSalt,
				ClassHash:            b.ClassHash,
				ConstructorCallData:  constructorCalldata,
				TransactionSignature: signature,
				Nonce:                b.Nonce,
				MaxFee:               b.MaxFee,
				ResourceBounds:       bounds,
				Tip:                  tip,
				PaymasterData:        derefCalldata(b.PaymasterData),
				NonceDAMode:          parseDAMode(b.NonceDAMode),
				FeeDAMode:            parseDAMode(b.FeeDAMode),
			},
			Raw: b.raw,
		}, nil
	case "L1_HANDLER":
		return sequencer.BroadcastItem{
			Transaction: &core.L1HandlerTransaction{
				Version:            version,
				ContractAddress:    b.ContractAddress,
				EntryPointSelector: b.EntryPointSelector,
				Nonce:              b.Nonce,
				CallData:           derefCalldata(b.CallData),
				PaidFeeOnL1:        b.PaidFeeOnL1,
			},
			PaidFeeOnL1: b.PaidFeeOnL1,
			Raw:         b.raw,
		}, nil
	default:
		return sequencer.BroadcastItem{}, jsonrpc.Err(jsonrpc.InvalidParams, "unknown transaction type "+b.Type)
	}
}

// DecodeBroadcast is the dump loader's way back from a persisted broadcast
// form to an admission item.
func DecodeBroadcast(raw json.RawMessage) (sequencer.BroadcastItem, error) {
	var broadcast BroadcastedTransaction
	if err := json.Unmarshal(raw, &broadcast); err != nil {
		return sequencer.BroadcastItem{}, err
	}
	item, rpcErr := broadcast.ToItem()
	if rpcErr != nil {
		return sequencer.BroadcastItem{}, errorFromRPC(rpcErr)
	}
	return item, nil
}

type rpcErrorWrapper struct {
	inner *jsonrpc.Error
}

func (w rpcErrorWrapper) Error() string {
	return w.inner.Message
}

func errorFromRPC(rpcErr *jsonrpc.Error) error {
	return rpcErrorWrapper{inner: rpcErr}
}

type AddTxResponse struct {
	TransactionHash *felt.Felt `json:"transaction_hash"`
}

type DeclareResponse struct {
	TransactionHash *felt.Felt `json:"transaction_hash"`
	ClassHash       *felt.Felt `json:"class_hash"`
}

type DeployAccountResponse struct {
	TransactionHash *felt.Felt `json:"transaction_hash"`
	ContractAddress *felt.Felt `json:"contract_address"`
}

func (h *Handler) AddInvokeTransaction(broadcast BroadcastedTransaction) (*AddTxResponse, *jsonrpc.Error) {
	broadcast.Type = "INVOKE"
	item, rpcErr := broadcast.ToItem()
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := h.sequencer.AddTransaction(item)
	if err != nil {
		return nil, mapError(err)
	}
	return &AddTxResponse{TransactionHash: hash}, nil
}

func (h *Handler) AddDeclareTransaction(broadcast BroadcastedTransaction) (*DeclareResponse, *jsonrpc.Error) {
	broadcast.Type = "DECLARE"
	item, rpcErr := broadcast.ToItem()
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := h.sequencer.AddTransaction(item)
	if err != nil {
		return nil, mapError(err)
	}
	declare := item.Transaction.(*core.DeclareTransaction)
	return &DeclareResponse{TransactionHash: hash, ClassHash: declare.ClassHash}, nil
}

func (h *Handler) AddDeployAccountTransaction(broadcast BroadcastedTransaction) (*DeployAccountResponse, *jsonrpc.Error) {
	broadcast.Type = "DEPLOY_ACCOUNT"
	item, rpcErr := broadcast.ToItem()
	if rpcErr != nil {
		return nil, rpcErr
	}
	hash, err := h.sequencer.AddTransaction(item)
	if err != nil {
		return nil, mapError(err)
	}
	deploy := item.Transaction.(*core.DeployAccountTransaction)
	return &DeployAccountResponse{TransactionHash: hash, ContractAddress: deploy.ContractAddress}, nil
}

func (h *Handler) TransactionByHash(hash *felt.Felt) (*Transaction, *jsonrpc.Error) {
	entry, err := h.sequencer.TransactionByHash(hash)
	if err != nil {
		return nil, mapError(err)
	}
	if entry.Transaction == nil {
		// Origin transaction: relay its raw form.
		var relayed Transaction
		if json.Unmarshal(entry.Broadcast, &relayed) == nil {
			return &relayed, nil
		}
		return nil, ErrTxnHashNotFound
	}
	return AdaptTransaction(entry.Transaction), nil
}

func (h *Handler) TransactionByBlockIDAndIndex(id BlockID, index uint64) (*Transaction, *jsonrpc.Error) {
	entry, err := h.sequencer.TransactionInBlock(id.toSequencer(), index)
	if err != nil {
		if mapped := mapError(err); mapped == ErrTxnHashNotFound {
			return nil, ErrInvalidTxIndex
		} else {
			return nil, mapped
		}
	}
	return AdaptTransaction(entry.Transaction), nil
}

type ActualFee struct {
	Amount *felt.Felt `json:"amount"`
	Unit   string     `json:"unit"`
}

type MessageToL1 struct {
	From    *felt.Felt   `json:"from_address"`
	To      *felt.Felt   `json:"to_address"`
	Payload []*felt.Felt `json:"payload"`
}

type Event struct {
	From *felt.Felt   `json:"from_address"`
	Keys []*felt.Felt `json:"keys"`
	Data []*felt.Felt `json:"data"`
}

type ExecutionResources struct {
	L1Gas     uint64 `json:"l1_gas"`
	L1DataGas uint64 `json:"l1_data_gas"`
	L2Gas     uint64 `json:"l2_gas"`
}

type TransactionReceipt struct {
	Type               string             `json:"type"`
	TransactionHash    *felt.Felt         `json:"transaction_hash"`
	ActualFee          ActualFee          `json:"actual_fee"`
	ExecutionStatus    string             `json:"execution_status"`
	FinalityStatus     string             `json:"finality_status"`
	BlockHash          *felt.Felt         `json:"block_hash,omitempty"`
	BlockNumber        *uint64            `json:"block_number,omitempty"`
	MessagesSent       []*MessageToL1     `json:"messages_sent"`
	Events             []Event            `json:"events"`
	ExecutionResources ExecutionResources `json:"execution_resources"`
	RevertReason       string             `json:"revert_reason,omitempty"`
}

func statusString(v interface{ MarshalText() ([]byte, error) }) string {
	text, _ := v.MarshalText()
	return string(text)
}

// AdaptReceipt serializes a receipt; block coordinates stay absent while
// the transaction is pre-confirmed.
func AdaptReceipt(receipt *core.TransactionReceipt) *TransactionReceipt {
	out := &TransactionReceipt{
		TransactionHash: receipt.TransactionHash,
		ActualFee: ActualFee{
			Amount: receipt.ActualFee,
			Unit:   statusString(receipt.FeeUnit),
		},
		ExecutionStatus: statusString(receipt.ExecutionStatus),
		FinalityStatus:  statusString(receipt.FinalityStatus),
		BlockHash:       receipt.BlockHash,
		BlockNumber:     receipt.BlockNumber,
		MessagesSent:    []*MessageToL1{},
		Events:          []Event{},
		ExecutionResources: ExecutionResources{
			L1Gas:     receipt.ExecutionResources.L1Gas,
			L1DataGas: receipt.ExecutionResources.L1DataGas,
			L2Gas:     receipt.ExecutionResources.L2Gas,
		},
		RevertReason: receipt.RevertReason,
	}
	for _, message := range receipt.L2ToL1Messages {
		out.MessagesSent = append(out.MessagesSent, &MessageToL1{
			From: message.From, To: message.To, Payload: message.Payload,
		})
	}
	for i := range receipt.Events {
		event := &receipt.Events[i]
		out.Events = append(out.Events, Event{From: event.From, Keys: event.Keys, Data: event.Data})
	}
	return out
}

func (h *Handler) TransactionReceipt(hash *felt.Felt) (*TransactionReceipt, *jsonrpc.Error) {
	entry, err := h.sequencer.TransactionByHash(hash)
	if err != nil {
		return nil, mapError(err)
	}
	receipt := AdaptReceipt(entry.Receipt)
	if entry.Transaction != nil {
		receipt.Type = entry.Transaction.Type().String()
	}
	return receipt, nil
}

type TransactionStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

func (h *Handler) TransactionStatus(hash *felt.Felt) (*TransactionStatus, *jsonrpc.Error) {
	entry, err := h.sequencer.TransactionByHash(hash)
	if err != nil {
		return nil, mapError(err)
	}
	return &TransactionStatus{
		FinalityStatus:  statusString(entry.Receipt.FinalityStatus),
		ExecutionStatus: statusString(entry.Receipt.ExecutionStatus),
		FailureReason:   entry.Receipt.RevertReason,
	}, nil
}
