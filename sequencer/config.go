package sequencer

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/spf13/pflag"
)

// BlockGenerationMode selects when the pre-confirmed block seals.
type BlockGenerationMode uint8

const (
	// GenerateOnTransaction seals after every admitted transaction.
	GenerateOnTransaction BlockGenerationMode = iota
	// GenerateOnDemand seals only on devnet_createBlock.
	GenerateOnDemand
	// GeneratePeriodic seals on a timer; empty blocks are allowed.
	GeneratePeriodic
)

func (m BlockGenerationMode) String() string {
	switch m {
	case GenerateOnDemand:
		return "demand"
	case GeneratePeriodic:
		return "periodic"
	default:
		return "transaction"
	}
}

// BlockGeneration is the CLI-facing value: a mode plus the period for the
// periodic mode. "transaction", "demand" or a number of seconds.
type BlockGeneration struct {
	Mode          BlockGenerationMode
	PeriodSeconds uint64
}

var (
	_ pflag.Value              = (*BlockGeneration)(nil)
	_ encoding.TextUnmarshaler = (*BlockGeneration)(nil)
)

func (g *BlockGeneration) String() string {
	if g.Mode == GeneratePeriodic {
		return strconv.FormatUint(g.PeriodSeconds, 10)
	}
	return g.Mode.String()
}

func (g *BlockGeneration) Set(s string) error {
	switch s {
	case "transaction":
		*g = BlockGeneration{Mode: GenerateOnTransaction}
	case "demand":
		*g = BlockGeneration{Mode: GenerateOnDemand}
	default:
		seconds, err := strconv.ParseUint(s, 10, 64)
		if err != nil || seconds == 0 {
			return fmt.Errorf("invalid block generation %q (known: transaction, demand, <seconds>)", s)
		}
		*g = BlockGeneration{Mode: GeneratePeriodic, PeriodSeconds: seconds}
	}
	return nil
}

func (g *BlockGeneration) Type() string {
	return "BlockGeneration"
}

func (g *BlockGeneration) UnmarshalText(text []byte) error {
	return g.Set(string(text))
}

// Config is everything that shapes the chain itself; it is what the dump
// file persists alongside the transaction log.
type Config struct {
	Seed            uint32          `json:"seed" mapstructure:"seed"`
	TotalAccounts   uint8           `json:"total_accounts" mapstructure:"accounts" validate:"required"`
	InitialBalance  *felt.Felt      `json:"initial_balance" mapstructure:"initial-balance" validate:"required"`
	Network         utils.Network   `json:"network" mapstructure:"chain-id"`
	GasPrices       core.GasPrices  `json:"gas_prices" mapstructure:"gas-prices" validate:"required"`
	BlockGeneration BlockGeneration `json:"block_generation" mapstructure:"block-generation-on"`
	Archive         state.Capacity  `json:"state_archive_capacity" mapstructure:"state-archive-capacity"`
	// AccountClass picks the predeployed account flavor: cairo0 or cairo1.
	AccountClass string `json:"account_class" mapstructure:"account-class" validate:"omitempty,oneof=cairo0 cairo1"`
	// AccountClassCustomPath points at a class definition file used for the
	// predeployed accounts instead of the built-in flavors.
	AccountClassCustomPath string `json:"account_class_custom,omitempty" mapstructure:"account-class-custom"`
	// PredeclareArgent additionally declares the Argent account classes at
	// genesis.
	PredeclareArgent bool `json:"predeclare_argent,omitempty" mapstructure:"predeclare-argent"`

	// Fork pins; zero ForkURL means no fork.
	ForkURL   string  `json:"fork_network,omitempty" mapstructure:"fork-network"`
	ForkBlock *uint64 `json:"fork_block,omitempty" mapstructure:"fork-block"`
}

// MarshalJSON writes Network, BlockGeneration and Archive in the text form
// their UnmarshalText methods read, so a dumped config loads back.
func (c Config) MarshalJSON() ([]byte, error) {
	type plain Config
	return json.Marshal(struct {
		plain
		Network         string `json:"network"`
		BlockGeneration string `json:"block_generation"`
		Archive         string `json:"state_archive_capacity"`
	}{plain(c), c.Network.Name, c.BlockGeneration.String(), c.Archive.String()})
}

func (c *Config) Forked() bool {
	return c.ForkURL != ""
}

// ChainID returns the chain id felt bound into transaction hashes.
func (c *Config) ChainID() *felt.Felt {
	return new(felt.Felt).SetBytes([]byte(c.Network.ChainID))
}

// Admission and lifecycle errors; the RPC facade maps them to their
// numeric codes.
var (
	ErrDuplicateTransaction = errors.New("transaction with the same hash already exists")
	ErrClassAlreadyDeclared = errors.New("class already declared")
	ErrExecutionReverted    = errors.New("transaction execution reverted")
	ErrExecutorFailure      = errors.New("executor failure")
	ErrNotForked            = errors.New("impersonation is only available on a forked devnet")
	ErrLoadHashMismatch     = errors.New("replayed transaction produced a different hash")
)
