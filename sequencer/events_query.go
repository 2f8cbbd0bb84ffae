package sequencer

import (
	"errors"
	"fmt"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

var ErrInvalidContinuationToken = errors.New("invalid continuation token")

// EmittedEvent is an event joined with its position in the chain.
type EmittedEvent struct {
	core.Event
	BlockHash       *felt.Felt
	BlockNumber     *uint64
	TransactionHash *felt.Felt
}

// EventsChunk is one page of an events query.
type EventsChunk struct {
	Events            []EmittedEvent
	ContinuationToken string
}

// EventFilter scopes an events query. Nil From/To default to genesis and
// the pre-confirmed block respectively. A nil key list matches any value at
// that position.
type EventFilter struct {
	From    *BlockID
	To      *BlockID
	Address *felt.Felt
	Keys    [][]*felt.Felt
}

type eventCursor struct {
	block uint64
	tx    uint64
	event uint64
}

func parseToken(token string) (eventCursor, error) {
	var cursor eventCursor
	if token == "" {
		return cursor, nil
	}
	if _, err := fmt.Sscanf(token, "%d-%d-%d", &cursor.block, &cursor.tx, &cursor.event); err != nil {
		return cursor, ErrInvalidContinuationToken
	}
	return cursor, nil
}

func (c eventCursor) String() string {
	return fmt.Sprintf("%d-%d-%d", c.block, c.tx, c.event)
}

// Events scans the requested block range and returns at most chunkSize
// matching events plus a continuation token when more remain. The whole
// scan holds the handle, so the page is consistent.
func (s *Sequencer) Events(filter EventFilter, continuation string, chunkSize uint64) (*EventsChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, err := parseToken(continuation)
	if err != nil {
		return nil, err
	}

	fromNumber, toNumber, includePre, err := s.resolveRangeLocked(filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	if cursor.block > fromNumber {
		fromNumber = cursor.block
	}

	chunk := &EventsChunk{}
	appendBlock := func(block *core.Block) (bool, error) {
		if !s.bloomMayMatch(block, &filter) {
			return true, nil
		}
		entries := s.chain.EntriesOf(block)
		for txIdx, entry := range entries {
			if block.Number == cursor.block && uint64(txIdx) < cursor.tx {
				continue
			}
			for evIdx := range entry.Receipt.Events {
				if block.Number == cursor.block && uint64(txIdx) == cursor.tx && uint64(evIdx) < cursor.event {
					continue
				}
				event := &entry.Receipt.Events[evIdx]
				if !matchEvent(event, &filter) {
					continue
				}
				if uint64(len(chunk.Events)) == chunkSize {
					chunk.ContinuationToken = eventCursor{
						block: block.Number, tx: uint64(txIdx), event: uint64(evIdx),
					}.String()
					return false, nil
				}
				emitted := EmittedEvent{Event: *event, TransactionHash: entry.Transaction.Hash()}
				if block.Status != core.BlockPreConfirmed {
					number := block.Number
					emitted.BlockNumber = &number
					emitted.BlockHash = block.Hash
				}
				chunk.Events = append(chunk.Events, emitted)
			}
		}
		return true, nil
	}

	for number := fromNumber; number <= toNumber; number++ {
		block, err := s.chain.BlockByNumber(number)
		if err != nil {
			continue
		}
		more, err := appendBlock(block)
		if err != nil {
			return nil, err
		}
		if !more {
			return chunk, nil
		}
	}

	if includePre {
		pre := s.chain.PreConfirmed()
		if pre.Number >= fromNumber {
			if more, err := appendBlock(pre); err != nil {
				return nil, err
			} else if !more {
				return chunk, nil
			}
		}
	}
	return chunk, nil
}

// resolveRangeLocked turns the filter bounds into a sealed-number range
// plus whether the pre-confirmed block joins the scan.
func (s *Sequencer) resolveRangeLocked(from, to *BlockID) (uint64, uint64, bool, error) {
	height, hasBlocks := s.chain.Height()
	if !hasBlocks {
		return 0, 0, true, nil
	}

	fromNumber := uint64(0)
	if from != nil && !from.Latest && !from.PreConfirmed {
		block, err := s.blockByIDLocked(*from)
		if err != nil {
			return 0, 0, false, err
		}
		fromNumber = block.Number
	} else if from != nil && from.Latest {
		fromNumber = height
	}

	toNumber := height
	includePre := to == nil || to.PreConfirmed
	if to != nil && !to.Latest && !to.PreConfirmed {
		block, err := s.blockByIDLocked(*to)
		if err != nil {
			return 0, 0, false, err
		}
		toNumber = block.Number
		if toNumber > height {
			toNumber = height
		}
	}
	return fromNumber, toNumber, includePre, nil
}

func (s *Sequencer) bloomMayMatch(block *core.Block, filter *EventFilter) bool {
	if block.EventsBloom == nil {
		return true
	}
	if filter.Address != nil && !block.EventsBloom.Test(filter.Address.Marshal()) {
		return false
	}
	return true
}

func matchEvent(event *core.Event, filter *EventFilter) bool {
	if filter.Address != nil && !event.From.Equal(filter.Address) {
		return false
	}
	for i, allowed := range filter.Keys {
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
