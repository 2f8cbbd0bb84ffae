// Package node wires the devnet together: sequencer, executor, fork
// overlay, postman broker, JSON-RPC servers and the background services,
// and runs them on one cooperative runtime.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/clients/origin"
	"github.com/0xSpaceShard/starknet-devnet-go/fork"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/0xSpaceShard/starknet-devnet-go/rpc"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm"
	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sourcegraph/conc"
)

var errZeroGasPrice = errors.New("gas prices must be non-zero")

type Node struct {
	cfg *Config
	log utils.Logger

	sequencer *sequencer.Sequencer
	handler   *rpc.Handler
	server    *http.Server
}

// New validates the config and assembles the devnet.
func New(cfg *Config, executor vm.VM, log utils.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "invalid configuration")
	}

	seq, err := sequencer.New(cfg.SequencerConfig(), executor, log)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "build sequencer")
	}

	if cfg.ForkNetwork != "" {
		client := origin.NewClient(cfg.ForkNetwork).WithLogger(log)
		overlay := fork.NewOverlay(client, cfg.ForkBlock, log)
		seq.WithForkReader(overlay).WithStateOrigin(overlay)
	}

	seq.WithBroker(l1.NewBroker(log))
	seq.WithDump(cfg.DumpOn, cfg.DumpPath)

	handler := rpc.New(seq, log).WithRestrictedMethods(cfg.RestrictiveMode)

	httpRPC := jsonrpc.NewServer(log).
		WithValidator(validator.New()).
		WithListener(makeRPCMetrics("http"))
	if err := httpRPC.RegisterMethods(handler.Methods()...); err != nil {
		return nil, err
	}

	wsRPC := jsonrpc.NewServer(log).
		WithValidator(validator.New()).
		WithListener(makeRPCMetrics("ws"))
	if err := wsRPC.RegisterMethods(handler.Methods()...); err != nil {
		return nil, err
	}
	// Subscriptions entered the RPC spec with 0.8; the gate keeps older
	// spec targets from exposing them.
	if rpc.SpecVersionSatisfies(">= 0.8.0") {
		if err := wsRPC.RegisterMethods(handler.WSMethods()...); err != nil {
			return nil, err
		}
	}

	httpHandler := jsonrpc.NewHTTP(httpRPC, log)
	wsHandler := jsonrpc.NewWS(wsRPC, log)

	mux := http.NewServeMux()
	// One endpoint, both transports: upgrade requests go to the socket
	// server, everything else to plain HTTP.
	serve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Upgrade") == "websocket" {
			wsHandler.ServeHTTP(w, r)
			return
		}
		httpHandler.ServeHTTP(w, r)
	})
	mux.Handle("/", serve)
	mux.Handle("/rpc", serve)
	mux.Handle("/ws", wsHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort),
		Handler:           cors.AllowAll().Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Timeout > 0 {
		server.ReadTimeout = time.Duration(cfg.Timeout) * time.Second
		server.WriteTimeout = time.Duration(cfg.Timeout) * time.Second
	}

	return &Node{
		cfg:       cfg,
		log:       log,
		sequencer: seq,
		handler:   handler,
		server:    server,
	}, nil
}

// Sequencer exposes the core for embedding and tests.
func (n *Node) Sequencer() *sequencer.Sequencer {
	return n.sequencer
}

// Run starts the server and the periodic block timer, loads a dump file
// if one exists at the configured path, and on shutdown performs the
// dump-on-exit if requested.
func (n *Node) Run(ctx context.Context) error {
	if n.cfg.DumpPath != "" {
		if _, err := os.Stat(n.cfg.DumpPath); err == nil {
			file, err := sequencer.ReadDumpFile(n.cfg.DumpPath)
			if err != nil {
				return err
			}
			if err := n.sequencer.Load(file, sequencer.Decoder(rpc.DecodeBroadcast)); err != nil {
				return err
			}
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg := conc.NewWaitGroup()

	wg.Go(func() {
		n.log.Infow("Devnet listening", "addr", n.server.Addr,
			"chain", n.cfg.ChainID.ChainID, "accounts", n.cfg.Accounts)
		if err := n.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Errorw("Server failed", "err", err)
			cancel()
		}
	})

	if n.cfg.BlockGenerationOn.Mode == sequencer.GeneratePeriodic {
		wg.Go(func() {
			period := time.Duration(n.cfg.BlockGenerationOn.PeriodSeconds) * time.Second
			ticker := time.NewTicker(period)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					n.sequencer.Tick()
				}
			}
		})
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := n.server.Shutdown(shutdownCtx); err != nil {
		n.log.Warnw("Server shutdown", "err", err)
	}
	wg.Wait()

	if n.sequencer.DumpOnExitRequested() {
		if err := n.sequencer.Dump(""); err != nil {
			return pkgerrors.Wrap(err, "dump on exit")
		}
	}
	return nil
}
