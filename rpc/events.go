package rpc

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
)

const (
	maxEventChunkSize  = 1024
	maxEventFilterKeys = 1024
)

type EventsArg struct {
	EventFilter
	ResultPageRequest
}

type EventFilter struct {
	FromBlock *BlockID       `json:"from_block"`
	ToBlock   *BlockID       `json:"to_block"`
	Address   *felt.Felt     `json:"address"`
	Keys      [][]*felt.Felt `json:"keys"`
}

type ResultPageRequest struct {
	ContinuationToken string `json:"continuation_token"`
	ChunkSize         uint64 `json:"chunk_size" validate:"min=1"`
}

type EmittedEvent struct {
	Event
	BlockHash       *felt.Felt `json:"block_hash,omitempty"`
	BlockNumber     *uint64    `json:"block_number,omitempty"`
	TransactionHash *felt.Felt `json:"transaction_hash"`
}

type EventsChunk struct {
	Events            []EmittedEvent `json:"events"`
	ContinuationToken string         `json:"continuation_token,omitempty"`
}

// Events returns all events matching the given filter, paginated.
func (h *Handler) Events(args EventsArg) (*EventsChunk, *jsonrpc.Error) {
	if args.ChunkSize > maxEventChunkSize {
		return nil, ErrPageSizeTooBig
	}
	totalKeys := 0
	for _, keys := range args.Keys {
		totalKeys += len(keys)
	}
	if totalKeys > maxEventFilterKeys {
		return nil, ErrTooManyKeysInFilter
	}

	filter := sequencer.EventFilter{
		Address: args.Address,
		Keys:    args.Keys,
	}
	if args.FromBlock != nil {
		from := args.FromBlock.toSequencer()
		filter.From = &from
	}
	if args.ToBlock != nil {
		to := args.ToBlock.toSequencer()
		filter.To = &to
	}

	chunk, err := h.sequencer.Events(filter, args.ContinuationToken, args.ChunkSize)
	if err != nil {
		return nil, mapError(err)
	}

	out := &EventsChunk{
		Events:            make([]EmittedEvent, 0, len(chunk.Events)),
		ContinuationToken: chunk.ContinuationToken,
	}
	for i := range chunk.Events {
		emitted := &chunk.Events[i]
		out.Events = append(out.Events, EmittedEvent{
			Event: Event{
				From: emitted.From,
				Keys: emitted.Keys,
				Data: emitted.Data,
			},
			BlockHash:       emitted.BlockHash,
			BlockNumber:     emitted.BlockNumber,
			TransactionHash: emitted.TransactionHash,
		})
	}
	return out, nil
}
