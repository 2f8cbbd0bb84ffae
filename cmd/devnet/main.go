package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xSpaceShard/starknet-devnet-go/node"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm/native"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "go.uber.org/automaxprocs"
)

const (
	configFlag    = "config"
	envPrefix     = "DEVNET"
	greeting      = "starknet-devnet"
	versionString = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := node.DefaultConfig()
	cmd := newRootCmd(&cfg)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *node.Config) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     greeting,
		Short:   "A local Starknet sequencer for development",
		Version: versionString,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile, err := cmd.Flags().GetString(configFlag); err == nil && configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
			}
			v.SetEnvPrefix(envPrefix)
			v.AutomaticEnv()
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			)))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := utils.NewZapLogger(cfg.LogLevel, cfg.Colour)
			if err != nil {
				return err
			}

			devnet, err := node.New(cfg, native.New(), log)
			if err != nil {
				return err
			}
			return devnet.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String(configFlag, "", "Path to a YAML config file")
	flags.String("host", cfg.HTTPHost, "Address to bind the server to")
	flags.Uint16("port", cfg.HTTPPort, "Port to listen on")
	flags.Uint("timeout", cfg.Timeout, "Request timeout in seconds")
	flags.Var(&cfg.LogLevel, "log-level", "Log verbosity (debug, info, warn, error)")
	flags.Bool("colour", cfg.Colour, "Colourize log output")

	flags.Uint8("accounts", cfg.Accounts, "Number of accounts to predeploy")
	flags.String("initial-balance", cfg.InitialBalance.String(), "Initial balance of every predeployed account")
	flags.Uint32("seed", cfg.Seed, "Seed for the account generator")
	flags.String("account-class", cfg.AccountClass, "Predeployed account flavor (cairo0, cairo1)")
	flags.String("account-class-custom", cfg.AccountClassCustom, "Path to a custom account class definition")
	flags.Bool("predeclare-argent", cfg.PredeclareArgent, "Predeclare the Argent account classes")
	flags.Var(&cfg.ChainID, "chain-id", "Chain to advertise (MAINNET, SEPOLIA, TESTNET)")

	flags.String("gas-price", cfg.GasPrice.String(), "L1 gas price in wei")
	flags.String("data-gas-price", cfg.DataGasPrice.String(), "L1 data gas price in wei")
	flags.String("strk-gas-price", cfg.StrkGasPrice.String(), "L1 gas price in fri")
	flags.String("strk-data-gas-price", cfg.StrkDataGasPrice.String(), "L1 data gas price in fri")
	flags.String("l2-gas-price", cfg.L2GasPrice.String(), "L2 gas price in wei")
	flags.String("strk-l2-gas-price", cfg.StrkL2GasPrice.String(), "L2 gas price in fri")

	flags.Var(&cfg.BlockGenerationOn, "block-generation-on", "When to seal blocks (transaction, demand, or seconds)")
	flags.Var(&cfg.StateArchive, "state-archive-capacity", "Historical state retention (none, full)")

	flags.Var(&cfg.DumpOn, "dump-on", "Dump trigger (exit, request, block, transaction)")
	flags.String("dump-path", cfg.DumpPath, "Path of the dump file")

	flags.String("fork-network", cfg.ForkNetwork, "JSON-RPC URL of the network to fork")
	flags.Uint64("fork-block", cfg.ForkBlock, "Block number to fork at")

	flags.StringSlice("restrictive-mode", cfg.RestrictiveMode, "Devnet methods to forbid")

	return cmd
}
