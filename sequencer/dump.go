package sequencer

import (
	"encoding"
	"encoding/json"
	"fmt"
	"os"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// DumpMode selects the trigger that persists the accepted transaction log.
type DumpMode uint8

const (
	DumpDisabled DumpMode = iota
	DumpOnExit
	DumpOnRequest
	DumpOnBlock
	DumpOnTransaction
)

var (
	_ pflag.Value              = (*DumpMode)(nil)
	_ encoding.TextUnmarshaler = (*DumpMode)(nil)
)

func (m DumpMode) String() string {
	switch m {
	case DumpOnExit:
		return "exit"
	case DumpOnRequest:
		return "request"
	case DumpOnBlock:
		return "block"
	case DumpOnTransaction:
		return "transaction"
	default:
		return ""
	}
}

func (m *DumpMode) Set(s string) error {
	switch s {
	case "", "disabled":
		*m = DumpDisabled
	case "exit":
		*m = DumpOnExit
	case "request":
		*m = DumpOnRequest
	case "block":
		*m = DumpOnBlock
	case "transaction":
		*m = DumpOnTransaction
	default:
		return fmt.Errorf("unknown dump mode %q (known: exit, request, block, transaction)", s)
	}
	return nil
}

func (m *DumpMode) Type() string {
	return "DumpMode"
}

func (m *DumpMode) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}

// DumpTransaction is one replayable entry: the broadcast form as received,
// plus the hashes it produced, kept for verification on load.
type DumpTransaction struct {
	BroadcastForm      json.RawMessage `json:"broadcast_form"`
	ResultingHash      *felt.Felt      `json:"resulting_hash,omitempty"`
	ResultingBlockHash *felt.Felt      `json:"resulting_block_hash,omitempty"`
}

// DumpFile is the persisted state layout: the chain config plus the
// ordered accepted transaction log. No VM artifacts are included.
type DumpFile struct {
	ChainConfig  Config            `json:"chain_config"`
	Transactions []DumpTransaction `json:"transactions"`
}

// Dump serializes the accepted transaction log to the given path, or the
// configured one when empty. Held under the main lock so the file always
// sits between two complete sequencer transitions.
func (s *Sequencer) Dump(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dumpLocked(path)
}

func (s *Sequencer) dumpLocked(path string) error {
	if path == "" {
		path = s.dumpPath
	}
	if path == "" {
		return errors.New("no dump path configured")
	}

	file := DumpFile{ChainConfig: s.cfg}
	for _, entry := range s.chain.AcceptedEntries() {
		if entry.Broadcast == nil {
			// Entries admitted without a broadcast form, such as the L1
			// handler transactions injected through the postman, are not
			// written to the file, so a load does not replay them.
			continue
		}
		file.Transactions = append(file.Transactions, DumpTransaction{
			BroadcastForm:      entry.Broadcast,
			ResultingHash:      entry.Transaction.Hash(),
			ResultingBlockHash: entry.BlockHash,
		})
	}

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal dump file")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write dump file")
	}
	s.log.Infow("Dumped devnet state", "path", path, "transactions", len(file.Transactions))
	return nil
}

// DumpOnExitRequested reports whether the shutdown path must dump.
func (s *Sequencer) DumpOnExitRequested() bool {
	return s.dumpMode == DumpOnExit && s.dumpPath != ""
}

// ReadDumpFile loads and decodes a dump file.
func ReadDumpFile(path string) (*DumpFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read dump file")
	}
	file := new(DumpFile)
	if err := json.Unmarshal(data, file); err != nil {
		return nil, errors.Wrap(err, "decode dump file")
	}
	return file, nil
}

// Decoder turns a broadcast form back into a typed transaction; the RPC
// facade provides it so load replays through the exact wire path.
type Decoder func(broadcast json.RawMessage) (BroadcastItem, error)

// Load replays a dump file through the sequencer. Every replayed
// transaction must reproduce its recorded hash; a mismatch aborts with a
// descriptive error. Replaying an already-known transaction is a no-op, so
// loading the same file twice converges to the same state.
func (s *Sequencer) Load(file *DumpFile, decode Decoder) error {
	for i, dumped := range file.Transactions {
		item, err := decode(dumped.BroadcastForm)
		if err != nil {
			return errors.Wrapf(err, "decode dumped transaction %d", i)
		}

		hash, err := s.AddTransaction(item)
		if errors.Is(err, ErrDuplicateTransaction) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "replay dumped transaction %d", i)
		}

		if dumped.ResultingHash != nil && !hash.Equal(dumped.ResultingHash) {
			return errors.Wrapf(ErrLoadHashMismatch,
				"transaction %d: expected %s, replay produced %s",
				i, dumped.ResultingHash.String(), hash.String())
		}
	}
	s.log.Infow("Loaded devnet state", "transactions", len(file.Transactions))
	return nil
}
