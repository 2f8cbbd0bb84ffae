package node

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/go-playground/validator/v10"
)

// Config is the full startup surface. Field names double as the CLI flag
// and config-file keys via mapstructure.
type Config struct {
	HTTPHost string `mapstructure:"host" validate:"required"`
	HTTPPort uint16 `mapstructure:"port" validate:"required"`
	Timeout  uint   `mapstructure:"timeout"`

	LogLevel utils.LogLevel `mapstructure:"log-level"`
	Colour   bool           `mapstructure:"colour"`

	Accounts           uint8      `mapstructure:"accounts" validate:"required"`
	InitialBalance     *felt.Felt `mapstructure:"initial-balance" validate:"required"`
	Seed               uint32     `mapstructure:"seed"`
	AccountClass       string     `mapstructure:"account-class" validate:"oneof=cairo0 cairo1"`
	AccountClassCustom string     `mapstructure:"account-class-custom" validate:"omitempty,file"`
	PredeclareArgent   bool       `mapstructure:"predeclare-argent"`

	ChainID utils.Network `mapstructure:"chain-id"`

	// Gas prices, non-zero u128 each.
	GasPrice         *felt.Felt `mapstructure:"gas-price" validate:"required"`
	DataGasPrice     *felt.Felt `mapstructure:"data-gas-price" validate:"required"`
	StrkGasPrice     *felt.Felt `mapstructure:"strk-gas-price" validate:"required"`
	StrkDataGasPrice *felt.Felt `mapstructure:"strk-data-gas-price" validate:"required"`
	L2GasPrice       *felt.Felt `mapstructure:"l2-gas-price" validate:"required"`
	StrkL2GasPrice   *felt.Felt `mapstructure:"strk-l2-gas-price" validate:"required"`

	BlockGenerationOn sequencer.BlockGeneration `mapstructure:"block-generation-on"`
	StateArchive      state.Capacity            `mapstructure:"state-archive-capacity"`

	DumpOn   sequencer.DumpMode `mapstructure:"dump-on"`
	DumpPath string             `mapstructure:"dump-path"`

	ForkNetwork string `mapstructure:"fork-network" validate:"omitempty,url"`
	ForkBlock   uint64 `mapstructure:"fork-block"`

	RestrictiveMode []string `mapstructure:"restrictive-mode"`
}

// DefaultConfig mirrors the CLI defaults.
func DefaultConfig() Config {
	gasPrice := felt.New(100_000_000_000)
	dataGasPrice := felt.New(1_000_000_000)
	initialBalance, _ := new(felt.Felt).SetString("0x3635c9adc5dea00000") // 1000 ETH in wei

	return Config{
		HTTPHost:          "127.0.0.1",
		HTTPPort:          5050,
		Timeout:           120,
		LogLevel:          utils.INFO,
		Colour:            true,
		Accounts:          10,
		InitialBalance:    initialBalance,
		Seed:              0,
		AccountClass:      "cairo1",
		ChainID:           utils.Sepolia,
		GasPrice:          &gasPrice,
		DataGasPrice:      &dataGasPrice,
		StrkGasPrice:      &gasPrice,
		StrkDataGasPrice:  &dataGasPrice,
		L2GasPrice:        &dataGasPrice,
		StrkL2GasPrice:    &dataGasPrice,
		BlockGenerationOn: sequencer.BlockGeneration{Mode: sequencer.GenerateOnTransaction},
		StateArchive:      state.CapacityNone,
	}
}

// Validate runs the struct tags plus the non-zero price rule.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, price := range []*felt.Felt{
		c.GasPrice, c.DataGasPrice, c.StrkGasPrice,
		c.StrkDataGasPrice, c.L2GasPrice, c.StrkL2GasPrice,
	} {
		if price.IsZero() {
			return errZeroGasPrice
		}
	}
	return nil
}

func (c *Config) gasPrices() core.GasPrices {
	return core.GasPrices{
		L1GasPriceWEI:     c.GasPrice,
		L1GasPriceFRI:     c.StrkGasPrice,
		L1DataGasPriceWEI: c.DataGasPrice,
		L1DataGasPriceFRI: c.StrkDataGasPrice,
		L2GasPriceWEI:     c.L2GasPrice,
		L2GasPriceFRI:     c.StrkL2GasPrice,
	}
}

// SequencerConfig projects the node config onto the chain config the
// sequencer owns and the dump file persists.
func (c *Config) SequencerConfig() sequencer.Config {
	cfg := sequencer.Config{
		Seed:                   c.Seed,
		TotalAccounts:          c.Accounts,
		InitialBalance:         c.InitialBalance,
		Network:                c.ChainID,
		GasPrices:              c.gasPrices(),
		BlockGeneration:        c.BlockGenerationOn,
		Archive:                c.StateArchive,
		AccountClass:           c.AccountClass,
		AccountClassCustomPath: c.AccountClassCustom,
		PredeclareArgent:       c.PredeclareArgent,
	}
	if c.ForkNetwork != "" {
		cfg.ForkURL = c.ForkNetwork
		forkBlock := c.ForkBlock
		cfg.ForkBlock = &forkBlock
	}
	return cfg
}
