package rpc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
)

const (
	maxBlocksBack = 1024
	// Per-socket queue depth; a slow socket blocks only itself and is
	// dropped when the queue overflows.
	socketQueueSize = 1024
)

type subscriptionKind uint8

const (
	subNewHeads subscriptionKind = iota
	subTxStatus
	subNewTransactions
	subNewReceipts
	subEvents
)

type subscription struct {
	id   uint64
	kind subscriptionKind

	txHash         *felt.Felt
	senderFilter   []*felt.Felt
	finalityFilter map[core.FinalityStatus]struct{}
	eventAddress   *felt.Felt
	eventKeys      [][]*felt.Felt
}

func (sub *subscription) matchesSender(sender *felt.Felt) bool {
	if len(sub.senderFilter) == 0 {
		return true
	}
	if sender == nil {
		return false
	}
	for _, candidate := range sub.senderFilter {
		if candidate.Equal(sender) {
			return true
		}
	}
	return false
}

func (sub *subscription) matchesFinality(status core.FinalityStatus) bool {
	_, ok := sub.finalityFilter[status]
	return ok
}

type socket struct {
	conn  jsonrpc.Conn
	queue chan []byte
	subs  map[uint64]*subscription
}

// SubscriptionHub owns every socket's subscriptions and fans the
// sequencer's commit events out to them. Dispatch is in-order per socket;
// a slow socket slows only itself.
type SubscriptionHub struct {
	mu      sync.Mutex
	sockets map[uint64]*socket

	// Status notifications for aborted transactions are suppressed after
	// the reorg event.
	suppressed map[felt.Felt]struct{}

	nextID atomic.Uint64
	log    utils.Logger
}

var _ sequencer.Listener = (*SubscriptionHub)(nil)

func NewSubscriptionHub(log utils.Logger) *SubscriptionHub {
	return &SubscriptionHub{
		sockets:    make(map[uint64]*socket),
		suppressed: make(map[felt.Felt]struct{}),
		log:        log,
	}
}

func (hub *SubscriptionHub) register(conn jsonrpc.Conn, sub *subscription) uint64 {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	sub.id = hub.nextID.Add(1)

	sock, ok := hub.sockets[conn.ID()]
	if !ok {
		sock = &socket{
			conn:  conn,
			queue: make(chan []byte, socketQueueSize),
			subs:  make(map[uint64]*subscription),
		}
		hub.sockets[conn.ID()] = sock
		go hub.writeLoop(sock)
	}
	sock.subs[sub.id] = sub
	return sub.id
}

// writeLoop drains one socket's queue; it exits when the socket closes and
// drops the socket's subscriptions.
func (hub *SubscriptionHub) writeLoop(sock *socket) {
	for {
		select {
		case <-sock.conn.Closed():
			hub.dropSocket(sock)
			return
		case data := <-sock.queue:
			if _, err := sock.conn.Write(data); err != nil {
				hub.dropSocket(sock)
				return
			}
		}
	}
}

func (hub *SubscriptionHub) dropSocket(sock *socket) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.sockets, sock.conn.ID())
}

// Unsubscribe removes the subscription iff the same socket owns it.
func (hub *SubscriptionHub) Unsubscribe(conn jsonrpc.Conn, id uint64) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	sock, ok := hub.sockets[conn.ID()]
	if !ok {
		return false
	}
	if _, owned := sock.subs[id]; !owned {
		return false
	}
	delete(sock.subs, id)
	return true
}

type subscriptionNotification struct {
	Version string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  subscriptionParams `json:"params"`
}

type subscriptionParams struct {
	SubscriptionID uint64 `json:"subscription_id"`
	Result         any    `json:"result"`
}

// push enqueues one notification; overflow drops the socket rather than
// blocking the dispatcher.
func (hub *SubscriptionHub) push(sock *socket, sub *subscription, method string, result any) {
	data, err := json.Marshal(subscriptionNotification{
		Version: "2.0",
		Method:  method,
		Params:  subscriptionParams{SubscriptionID: sub.id, Result: result},
	})
	if err != nil {
		hub.log.Errorw("Failed to marshal subscription notification", "err", err)
		return
	}
	select {
	case sock.queue <- data:
	default:
		hub.log.Warnw("Subscription queue overflow, dropping socket", "socket", sock.conn.ID())
		// push runs under the hub lock; detach the removal.
		go hub.dropSocket(sock)
	}
}

// pushDirect is the subscribe-time backfill path: same envelope, same
// queue.
func (hub *SubscriptionHub) pushDirect(conn jsonrpc.Conn, subID uint64, method string, result any) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	sock, ok := hub.sockets[conn.ID()]
	if !ok {
		return
	}
	sub, ok := sock.subs[subID]
	if !ok {
		return
	}
	hub.push(sock, sub, method, result)
}

func (hub *SubscriptionHub) forEach(kind subscriptionKind, visit func(sock *socket, sub *subscription)) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, sock := range hub.sockets {
		for _, sub := range sock.subs {
			if sub.kind == kind {
				visit(sock, sub)
			}
		}
	}
}

func (hub *SubscriptionHub) isSuppressed(hash *felt.Felt) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	_, ok := hub.suppressed[*hash]
	return ok
}

func (hub *SubscriptionHub) notifyStatus(entry *blockchain.TransactionEntry) {
	hash := entry.Transaction.Hash()
	if hub.isSuppressed(hash) {
		return
	}
	status := &TransactionStatus{
		FinalityStatus:  statusString(entry.Receipt.FinalityStatus),
		ExecutionStatus: statusString(entry.Receipt.ExecutionStatus),
		FailureReason:   entry.Receipt.RevertReason,
	}
	hub.forEach(subTxStatus, func(sock *socket, sub *subscription) {
		if sub.txHash.Equal(hash) {
			hub.push(sock, sub, "starknet_subscriptionTransactionStatus", map[string]any{
				"transaction_hash": hash,
				"status":           status,
			})
		}
	})
}

func (hub *SubscriptionHub) notifyTransactions(entries []*blockchain.TransactionEntry, status core.FinalityStatus) {
	for _, entry := range entries {
		sender := core.TxSender(entry.Transaction)
		hub.forEach(subNewTransactions, func(sock *socket, sub *subscription) {
			if sub.matchesFinality(status) && sub.matchesSender(sender) {
				hub.push(sock, sub, "starknet_subscriptionNewTransactions",
					AdaptTransaction(entry.Transaction))
			}
		})
		hub.forEach(subNewReceipts, func(sock *socket, sub *subscription) {
			if sub.matchesFinality(status) && sub.matchesSender(sender) {
				hub.push(sock, sub, "starknet_subscriptionNewTransactionReceipts",
					AdaptReceipt(entry.Receipt))
			}
		})
	}
}

// OnTransactionAdmitted implements sequencer.Listener.
func (hub *SubscriptionHub) OnTransactionAdmitted(entry *blockchain.TransactionEntry) {
	hub.notifyStatus(entry)
	hub.notifyTransactions([]*blockchain.TransactionEntry{entry}, core.TxnPreConfirmed)
}

// OnBlockSealed implements sequencer.Listener.
func (hub *SubscriptionHub) OnBlockSealed(block *core.Block, entries []*blockchain.TransactionEntry) {
	header := adaptBlockHeader(block)
	hub.forEach(subNewHeads, func(sock *socket, sub *subscription) {
		hub.push(sock, sub, "starknet_subscriptionNewHeads", header)
	})

	for _, entry := range entries {
		hub.notifyStatus(entry)
	}
	hub.notifyTransactions(entries, core.TxnAcceptedOnL2)

	hub.forEach(subEvents, func(sock *socket, sub *subscription) {
		for _, entry := range entries {
			for i := range entry.Receipt.Events {
				event := &entry.Receipt.Events[i]
				if !eventMatches(event, sub) {
					continue
				}
				number := block.Number
				hub.push(sock, sub, "starknet_subscriptionEvents", EmittedEvent{
					Event:           Event{From: event.From, Keys: event.Keys, Data: event.Data},
					BlockHash:       block.Hash,
					BlockNumber:     &number,
					TransactionHash: entry.Transaction.Hash(),
				})
			}
		}
	})
}

// OnL1Accepted implements sequencer.Listener.
func (hub *SubscriptionHub) OnL1Accepted(hashes []*felt.Felt, entries []*blockchain.TransactionEntry) {
	for _, entry := range entries {
		hub.notifyStatus(entry)
	}
	hub.notifyTransactions(entries, core.TxnAcceptedOnL1)
}

type reorgNotification struct {
	StartingBlockHash   *felt.Felt `json:"starting_block_hash"`
	StartingBlockNumber uint64     `json:"starting_block_number"`
	EndingBlockHash     *felt.Felt `json:"ending_block_hash"`
	EndingBlockNumber   uint64     `json:"ending_block_number"`
}

// OnReorg implements sequencer.Listener: every live subscription learns
// about the rollback, then status updates for the aborted transactions go
// quiet.
func (hub *SubscriptionHub) OnReorg(reorg *sequencer.Reorg) {
	notification := reorgNotification{
		StartingBlockHash:   reorg.FirstHash,
		StartingBlockNumber: reorg.FirstNumber,
		EndingBlockHash:     reorg.LastHash,
		EndingBlockNumber:   reorg.LastNumber,
	}

	hub.mu.Lock()
	for _, hash := range reorg.AbortedTxns {
		hub.suppressed[*hash] = struct{}{}
	}
	for _, sock := range hub.sockets {
		for _, sub := range sock.subs {
			hub.push(sock, sub, "starknet_subscriptionReorg", notification)
		}
	}
	hub.mu.Unlock()
}

func eventMatches(event *core.Event, sub *subscription) bool {
	if sub.eventAddress != nil && !event.From.Equal(sub.eventAddress) {
		return false
	}
	for i, allowed := range sub.eventKeys {
		if len(allowed) == 0 {
			continue
		}
		if i >= len(event.Keys) {
			return false
		}
		found := false
		for _, candidate := range allowed {
			if candidate.Equal(event.Keys[i]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// --- subscription endpoints (websocket only) ---

var errWebsocketOnly = jsonrpc.Err(jsonrpc.InvalidRequest, "subscriptions are only available over websocket")

func connFrom(ctx context.Context) (jsonrpc.Conn, *jsonrpc.Error) {
	conn, ok := jsonrpc.ConnFromContext(ctx)
	if !ok {
		return nil, errWebsocketOnly
	}
	return conn, nil
}

type SubscriptionID struct {
	ID uint64 `json:"subscription_id"`
}

// SubscribeNewHeads streams sealed block headers; a past start block
// backfills up to 1024 blocks first.
func (h *Handler) SubscribeNewHeads(ctx context.Context, id *BlockID) (*SubscriptionID, *jsonrpc.Error) {
	conn, rpcErr := connFrom(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var backfill []*core.Block
	if id != nil && !id.Latest && !id.PreConfirmed {
		start, err := h.sequencer.BlockByID(id.toSequencer())
		if err != nil {
			return nil, mapError(err)
		}
		latest, err := h.sequencer.Height()
		if err != nil {
			return nil, mapError(err)
		}
		if latest-start.Number > maxBlocksBack {
			return nil, ErrTooManyBlocksBack
		}
		for number := start.Number; number <= latest; number++ {
			block, err := h.sequencer.BlockByID(sequencer.NumberBlockID(number))
			if err != nil {
				continue
			}
			backfill = append(backfill, block)
		}
	}

	subID := h.hub.register(conn, &subscription{kind: subNewHeads})
	for _, block := range backfill {
		h.hub.pushDirect(conn, subID, "starknet_subscriptionNewHeads", adaptBlockHeader(block))
	}
	return &SubscriptionID{ID: subID}, nil
}

// SubscribeTransactionStatus streams the status transitions of one hash;
// an already-known hash reports its current status immediately.
func (h *Handler) SubscribeTransactionStatus(ctx context.Context, hash *felt.Felt) (*SubscriptionID, *jsonrpc.Error) {
	conn, rpcErr := connFrom(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	subID := h.hub.register(conn, &subscription{kind: subTxStatus, txHash: hash})

	if entry, err := h.sequencer.TransactionByHash(hash); err == nil {
		h.hub.pushDirect(conn, subID, "starknet_subscriptionTransactionStatus", map[string]any{
			"transaction_hash": hash,
			"status": &TransactionStatus{
				FinalityStatus:  statusString(entry.Receipt.FinalityStatus),
				ExecutionStatus: statusString(entry.Receipt.ExecutionStatus),
				FailureReason:   entry.Receipt.RevertReason,
			},
		})
	}
	return &SubscriptionID{ID: subID}, nil
}

func parseFinalityFilter(statuses []string) (map[core.FinalityStatus]struct{}, *jsonrpc.Error) {
	filter := make(map[core.FinalityStatus]struct{})
	if len(statuses) == 0 {
		// Default filter.
		filter[core.TxnAcceptedOnL2] = struct{}{}
		return filter, nil
	}
	for _, status := range statuses {
		var parsed core.FinalityStatus
		if err := parsed.UnmarshalText([]byte(status)); err != nil {
			return nil, jsonrpc.Err(jsonrpc.InvalidParams, err.Error())
		}
		filter[parsed] = struct{}{}
	}
	return filter, nil
}

func (h *Handler) subscribeTxFeed(ctx context.Context, kind subscriptionKind,
	finalityStatus []string, senderAddress []*felt.Felt,
) (*SubscriptionID, *jsonrpc.Error) {
	conn, rpcErr := connFrom(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	filter, rpcErr := parseFinalityFilter(finalityStatus)
	if rpcErr != nil {
		return nil, rpcErr
	}
	subID := h.hub.register(conn, &subscription{
		kind:           kind,
		senderFilter:   senderAddress,
		finalityFilter: filter,
	})
	return &SubscriptionID{ID: subID}, nil
}

func (h *Handler) SubscribeNewTransactions(ctx context.Context,
	finalityStatus []string, senderAddress []*felt.Felt,
) (*SubscriptionID, *jsonrpc.Error) {
	return h.subscribeTxFeed(ctx, subNewTransactions, finalityStatus, senderAddress)
}

func (h *Handler) SubscribeNewTransactionReceipts(ctx context.Context,
	finalityStatus []string, senderAddress []*felt.Felt,
) (*SubscriptionID, *jsonrpc.Error) {
	return h.subscribeTxFeed(ctx, subNewReceipts, finalityStatus, senderAddress)
}

// SubscribeEvents streams matching events; a past start block backfills
// matching history first, capped like new-heads backfill.
func (h *Handler) SubscribeEvents(ctx context.Context, fromAddress *felt.Felt,
	keys [][]*felt.Felt, id *BlockID, finalityStatus *string,
) (*SubscriptionID, *jsonrpc.Error) {
	conn, rpcErr := connFrom(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	totalKeys := 0
	for _, allowed := range keys {
		totalKeys += len(allowed)
	}
	if totalKeys > maxEventFilterKeys {
		return nil, ErrTooManyKeysInFilter
	}

	var backfill []sequencer.EmittedEvent
	if id != nil && !id.Latest && !id.PreConfirmed {
		start, err := h.sequencer.BlockByID(id.toSequencer())
		if err != nil {
			return nil, mapError(err)
		}
		latest, err := h.sequencer.Height()
		if err != nil {
			return nil, mapError(err)
		}
		if latest-start.Number > maxBlocksBack {
			return nil, ErrTooManyBlocksBack
		}

		from := sequencer.NumberBlockID(start.Number)
		filter := sequencer.EventFilter{From: &from, Address: fromAddress, Keys: keys}
		continuation := ""
		for {
			chunk, err := h.sequencer.Events(filter, continuation, maxEventChunkSize)
			if err != nil {
				return nil, mapError(err)
			}
			backfill = append(backfill, chunk.Events...)
			if chunk.ContinuationToken == "" {
				break
			}
			continuation = chunk.ContinuationToken
		}
	}

	subID := h.hub.register(conn, &subscription{
		kind:         subEvents,
		eventAddress: fromAddress,
		eventKeys:    keys,
	})
	for i := range backfill {
		emitted := &backfill[i]
		h.hub.pushDirect(conn, subID, "starknet_subscriptionEvents", EmittedEvent{
			Event:           Event{From: emitted.From, Keys: emitted.Keys, Data: emitted.Data},
			BlockHash:       emitted.BlockHash,
			BlockNumber:     emitted.BlockNumber,
			TransactionHash: emitted.TransactionHash,
		})
	}
	return &SubscriptionID{ID: subID}, nil
}

// Unsubscribe returns true iff the id belongs to the calling socket.
func (h *Handler) Unsubscribe(ctx context.Context, id uint64) (bool, *jsonrpc.Error) {
	conn, rpcErr := connFrom(ctx)
	if rpcErr != nil {
		return false, rpcErr
	}
	if !h.hub.Unsubscribe(conn, id) {
		return false, ErrInvalidSubscriptionID
	}
	return true, nil
}
