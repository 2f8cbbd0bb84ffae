// Package rpc is the JSON-RPC facade: parameter decoding, the method
// table for the HTTP and WebSocket endpoints, and the mapping from core
// errors to the Starknet RPC spec's numeric codes.
package rpc

import (
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/Masterminds/semver/v3"
)

// SpecVersion is the Starknet RPC spec version this surface implements.
const SpecVersion = "0.8.0"

var specVersion = semver.MustParse(SpecVersion)

// Handler carries every RPC method. One instance serves both transports;
// subscription methods only function on sockets.
type Handler struct {
	sequencer *sequencer.Sequencer
	hub       *SubscriptionHub
	log       utils.Logger

	// restricted holds the devnet method names forbidden in restrictive
	// mode.
	restricted map[string]struct{}
}

func New(seq *sequencer.Sequencer, log utils.Logger) *Handler {
	h := &Handler{
		sequencer:  seq,
		log:        log,
		restricted: make(map[string]struct{}),
	}
	h.hub = NewSubscriptionHub(log)
	seq.AddListener(h.hub)
	return h
}

// WithRestrictedMethods forbids the listed methods (restrictive mode).
func (h *Handler) WithRestrictedMethods(methods []string) *Handler {
	for _, method := range methods {
		h.restricted[method] = struct{}{}
	}
	return h
}

// SpecVersionSatisfies reports whether the served spec covers the given
// constraint; the websocket surface gates on it.
func SpecVersionSatisfies(constraint string) bool {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false
	}
	return c.Check(specVersion)
}

// guard wraps a devnet handler with the restrictive-mode check.
func guard[T any](h *Handler, name string, inner func() (T, *jsonrpc.Error)) (T, *jsonrpc.Error) {
	if _, forbidden := h.restricted[name]; forbidden {
		var zero T
		return zero, ErrMethodForbidden
	}
	return inner()
}

// Methods returns the full method table for registration.
func (h *Handler) Methods() []jsonrpc.Method { //nolint:funlen
	return []jsonrpc.Method{
		// Starknet-standard reads.
		{Name: "starknet_specVersion", Handler: h.SpecVersion},
		{Name: "starknet_chainId", Handler: h.ChainID},
		{Name: "starknet_blockNumber", Handler: h.BlockNumber},
		{Name: "starknet_blockHashAndNumber", Handler: h.BlockHashAndNumber},
		{Name: "starknet_syncing", Handler: h.Syncing},
		{
			Name:    "starknet_getBlockWithTxHashes",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.BlockWithTxHashes,
		},
		{
			Name:    "starknet_getBlockWithTxs",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.BlockWithTxs,
		},
		{
			Name:    "starknet_getBlockWithReceipts",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.BlockWithReceipts,
		},
		{
			Name:    "starknet_getBlockTransactionCount",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.BlockTransactionCount,
		},
		{
			Name:    "starknet_getStateUpdate",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.StateUpdate,
		},
		{
			Name:    "starknet_getStorageAt",
			Params:  []jsonrpc.Parameter{{Name: "contract_address"}, {Name: "key"}, {Name: "block_id"}},
			Handler: h.StorageAt,
		},
		{
			Name:    "starknet_getNonce",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "contract_address"}},
			Handler: h.Nonce,
		},
		{
			Name:    "starknet_getClass",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "class_hash"}},
			Handler: h.Class,
		},
		{
			Name:    "starknet_getClassAt",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "contract_address"}},
			Handler: h.ClassAt,
		},
		{
			Name:    "starknet_getClassHashAt",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "contract_address"}},
			Handler: h.ClassHashAt,
		},
		{
			Name:    "starknet_getTransactionByHash",
			Params:  []jsonrpc.Parameter{{Name: "transaction_hash"}},
			Handler: h.TransactionByHash,
		},
		{
			Name:    "starknet_getTransactionByBlockIdAndIndex",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "index"}},
			Handler: h.TransactionByBlockIDAndIndex,
		},
		{
			Name:    "starknet_getTransactionReceipt",
			Params:  []jsonrpc.Parameter{{Name: "transaction_hash"}},
			Handler: h.TransactionReceipt,
		},
		{
			Name:    "starknet_getTransactionStatus",
			Params:  []jsonrpc.Parameter{{Name: "transaction_hash"}},
			Handler: h.TransactionStatus,
		},
		{
			Name:    "starknet_getEvents",
			Params:  []jsonrpc.Parameter{{Name: "filter"}},
			Handler: h.Events,
		},
		{
			Name:    "starknet_call",
			Params:  []jsonrpc.Parameter{{Name: "request"}, {Name: "block_id"}},
			Handler: h.Call,
		},
		{
			Name:    "starknet_estimateFee",
			Params:  []jsonrpc.Parameter{{Name: "request"}, {Name: "simulation_flags"}, {Name: "block_id"}},
			Handler: h.EstimateFee,
		},
		{
			Name:    "starknet_estimateMessageFee",
			Params:  []jsonrpc.Parameter{{Name: "message"}, {Name: "block_id"}},
			Handler: h.EstimateMessageFee,
		},
		{
			Name:    "starknet_simulateTransactions",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}, {Name: "transactions"}, {Name: "simulation_flags"}},
			Handler: h.SimulateTransactions,
		},
		{
			Name:    "starknet_traceTransaction",
			Params:  []jsonrpc.Parameter{{Name: "transaction_hash"}},
			Handler: h.TraceTransaction,
		},
		{
			Name:    "starknet_traceBlockTransactions",
			Params:  []jsonrpc.Parameter{{Name: "block_id"}},
			Handler: h.TraceBlockTransactions,
		},

		// Starknet-standard writes.
		{
			Name:    "starknet_addInvokeTransaction",
			Params:  []jsonrpc.Parameter{{Name: "invoke_transaction"}},
			Handler: h.AddInvokeTransaction,
		},
		{
			Name:    "starknet_addDeclareTransaction",
			Params:  []jsonrpc.Parameter{{Name: "declare_transaction"}},
			Handler: h.AddDeclareTransaction,
		},
		{
			Name:    "starknet_addDeployAccountTransaction",
			Params:  []jsonrpc.Parameter{{Name: "deploy_account_transaction"}},
			Handler: h.AddDeployAccountTransaction,
		},

		// Devnet extensions.
		{
			Name:    "devnet_mint",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "amount"}, {Name: "unit", Optional: true}},
			Handler: h.Mint,
		},
		{
			Name:    "devnet_getAccountBalance",
			Params:  []jsonrpc.Parameter{{Name: "address"}, {Name: "unit", Optional: true}, {Name: "block_id", Optional: true}},
			Handler: h.AccountBalance,
		},
		{Name: "devnet_getPredeployedAccounts", Handler: h.PredeployedAccounts},
		{Name: "devnet_getConfig", Handler: h.GetConfig},
		{Name: "devnet_createBlock", Handler: h.CreateBlock},
		{
			Name:    "devnet_abortBlocks",
			Params:  []jsonrpc.Parameter{{Name: "starting_block_id"}},
			Handler: h.AbortBlocks,
		},
		{
			Name:    "devnet_acceptOnL1",
			Params:  []jsonrpc.Parameter{{Name: "starting_block_id"}},
			Handler: h.AcceptOnL1,
		},
		{
			Name:    "devnet_updateGas",
			Params:  []jsonrpc.Parameter{{Name: "gas_update"}},
			Handler: h.UpdateGas,
		},
		{
			Name:    "devnet_impersonateAccount",
			Params:  []jsonrpc.Parameter{{Name: "account_address"}},
			Handler: h.ImpersonateAccount,
		},
		{
			Name:    "devnet_stopImpersonateAccount",
			Params:  []jsonrpc.Parameter{{Name: "account_address"}},
			Handler: h.StopImpersonateAccount,
		},
		{Name: "devnet_autoImpersonate", Handler: h.AutoImpersonate},
		{Name: "devnet_stopAutoImpersonate", Handler: h.StopAutoImpersonate},
		{
			Name:    "devnet_dump",
			Params:  []jsonrpc.Parameter{{Name: "path", Optional: true}},
			Handler: h.Dump,
		},
		{
			Name:    "devnet_load",
			Params:  []jsonrpc.Parameter{{Name: "path"}},
			Handler: h.Load,
		},
		{Name: "devnet_restart", Handler: h.Restart},
		{
			Name:    "devnet_postmanLoad",
			Params:  []jsonrpc.Parameter{{Name: "network_url"}, {Name: "address", Optional: true}},
			Handler: h.PostmanLoad,
		},
		{
			Name:    "devnet_postmanFlush",
			Params:  []jsonrpc.Parameter{{Name: "dry_run", Optional: true}},
			Handler: h.PostmanFlush,
		},
		{
			Name:    "devnet_postmanSendMessageToL2",
			Params:  []jsonrpc.Parameter{{Name: "message"}},
			Handler: h.PostmanSendMessageToL2,
		},
		{
			Name:    "devnet_postmanConsumeMessageFromL2",
			Params:  []jsonrpc.Parameter{{Name: "message"}},
			Handler: h.PostmanConsumeMessageFromL2,
		},
	}
}

// WSMethods returns the socket-only subscription surface, registered on
// top of Methods for the websocket endpoint.
func (h *Handler) WSMethods() []jsonrpc.Method {
	return []jsonrpc.Method{
		{
			Name:    "starknet_subscribeNewHeads",
			Params:  []jsonrpc.Parameter{{Name: "block_id", Optional: true}},
			Handler: h.SubscribeNewHeads,
		},
		{
			Name:    "starknet_subscribeTransactionStatus",
			Params:  []jsonrpc.Parameter{{Name: "transaction_hash"}},
			Handler: h.SubscribeTransactionStatus,
		},
		{
			Name:    "starknet_subscribeNewTransactions",
			Params:  []jsonrpc.Parameter{{Name: "finality_status", Optional: true}, {Name: "sender_address", Optional: true}},
			Handler: h.SubscribeNewTransactions,
		},
		{
			Name:    "starknet_subscribeNewTransactionReceipts",
			Params:  []jsonrpc.Parameter{{Name: "finality_status", Optional: true}, {Name: "sender_address", Optional: true}},
			Handler: h.SubscribeNewTransactionReceipts,
		},
		{
			Name:    "starknet_subscribeEvents",
			Params:  []jsonrpc.Parameter{{Name: "from_address", Optional: true}, {Name: "keys", Optional: true}, {Name: "block_id", Optional: true}, {Name: "finality_status", Optional: true}},
			Handler: h.SubscribeEvents,
		},
		{
			Name:    "starknet_unsubscribe",
			Params:  []jsonrpc.Parameter{{Name: "subscription_id"}},
			Handler: h.Unsubscribe,
		},
	}
}

func (h *Handler) SpecVersion() (string, *jsonrpc.Error) {
	return SpecVersion, nil
}
