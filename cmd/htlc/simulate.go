// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/chain"
	"github.com/luxfi/htlc/config"
	"github.com/luxfi/htlc/factory"
	"github.com/luxfi/htlc/payload"
	"github.com/luxfi/htlc/resolver"
	"github.com/luxfi/htlc/store"
)

// Simulation parties and tokens
var (
	simMaker    = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	simSrcToken = common.HexToAddress("0x0000000000000000000000000000000000005c01")
	simDstToken = common.HexToAddress("0x0000000000000000000000000000000000005c02")

	// Stage offsets: src 10/120/1000/1200, dst 300/600/900
	simOffsets = []uint32{10, 120, 1000, 1200, 300, 600, 900}
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a complete swap between two in-process chains",
	Long: `Run a swap between two in-process chains with a resolver acting as the
taker. By default the swap settles; with --refund both legs expire and are
cancelled. Chain and factory settings may be provided by config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		refund, _ := cmd.Flags().GetBool("refund")

		v, err := config.BuildViper(cmd.Flags())
		if err != nil {
			return err
		}
		setSimulationDefaults(v)
		cfg, err := config.NewConfig(v)
		if err != nil {
			return err
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		swap, err := simulate(cmd.Context(), &cfg, logger, refund, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "swap %s finished in state %s\n", swap.ID().Hex(), swap.State)
		return nil
	},
}

func init() {
	config.AddFlags(simulateCmd.Flags())
	simulateCmd.Flags().Bool("refund", false, "Let the swap expire and cancel both legs")
}

// setSimulationDefaults fills in two demo chains so simulate runs without a
// config file
func setSimulationDefaults(v *viper.Viper) {
	v.SetDefault(config.ResolverAddressKey, "0x0000000000000000000000000000000000000b0b")
	for i, section := range []string{config.SourceKey, config.DestinationKey} {
		chainID := common.Hash{}
		chainID[31] = byte(i + 1)
		v.SetDefault(section+".chain-id", chainID.Hex())
		v.SetDefault(section+".factory-address", "0x00000000000000000000000000000000000fac70")
		v.SetDefault(section+".native-token", "0x000000000000000000000000000000000000eeee")
		v.SetDefault(section+".access-token", "0x000000000000000000000000000000000000acce")
		v.SetDefault(section+".src-rescue-delay", 86400)
		v.SetDefault(section+".dst-rescue-delay", 86400)
	}
}

// simulate runs one swap end to end and returns its final record
func simulate(ctx context.Context, cfg *config.Config, logger *zap.Logger, refund bool, out io.Writer) (resolver.Swap, error) {
	genesis := uint64(time.Now().Unix())
	src := chain.New(&chain.Config{ChainID: cfg.Source.GetChainID(), GenesisTime: genesis, Logger: logger})
	dst := chain.New(&chain.Config{ChainID: cfg.Destination.GetChainID(), GenesisTime: genesis, Logger: logger})

	srcFactory, err := factory.New(cfg.Source.GetFactoryConfig(), src, logger)
	if err != nil {
		return resolver.Swap{}, err
	}
	dstFactory, err := factory.New(cfg.Destination.GetFactoryConfig(), dst, logger)
	if err != nil {
		return resolver.Swap{}, err
	}

	var db *store.LevelDB
	if cfg.DBPath != "" {
		db, err = store.NewLevelDB(cfg.DBPath)
	} else {
		db, err = store.NewMemLevelDB()
	}
	if err != nil {
		return resolver.Swap{}, err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	taker := cfg.GetResolverAddress()
	r, err := resolver.New(&resolver.Config{
		Address:        taker,
		Src:            resolver.Leg{Chain: src, Factory: srcFactory},
		Dst:            resolver.Leg{Chain: dst, Factory: dstFactory},
		DB:             db,
		Retry:          cfg.GetRetryPolicy(),
		SecretCacheTTL: cfg.SecretCacheTTL,
		MaxConcurrency: cfg.MaxConcurrency,
		Registerer:     registry,
		Logger:         logger,
	})
	if err != nil {
		return resolver.Swap{}, err
	}
	r.SetCallbacks(
		func(_ context.Context, s resolver.Swap, addr common.Address, imm *htlc.Immutables) error {
			return src.Execute(func(tx htlc.Tx) error {
				return tx.Transfer(imm.Token, s.Order.Maker, addr, imm.Amount)
			})
		},
		func(s resolver.Swap) {
			logger.Info("Swap settled", zap.Stringer("hashlock", s.ID()))
		},
	)

	secret, hashlock, err := htlc.NewSecret()
	if err != nil {
		return resolver.Swap{}, err
	}
	timelocks, err := htlc.NewTimelocks(simOffsets...)
	if err != nil {
		return resolver.Swap{}, err
	}
	order := &payload.SwapOrder{
		Version:          payload.SwapOrderVersion,
		OrderHash:        htlc.Keccak256(hashlock[:], genesisBytes(genesis)),
		Hashlock:         hashlock,
		SrcChain:         src.ID(),
		DstChain:         dst.ID(),
		Maker:            simMaker,
		Taker:            taker,
		SrcToken:         simSrcToken,
		DstToken:         simDstToken,
		SrcAmount:        uint256.NewInt(1_000_000),
		DstAmount:        uint256.NewInt(2_000_000),
		SrcSafetyDeposit: uint256.NewInt(1_000),
		DstSafetyDeposit: uint256.NewInt(1_000),
		Timelocks:        timelocks,
	}

	srcNative := cfg.Source.GetFactoryConfig().NativeToken
	dstNative := cfg.Destination.GetFactoryConfig().NativeToken
	mints := []struct {
		c      *chain.Chain
		token  common.Address
		holder common.Address
		amount *uint256.Int
	}{
		{src, simSrcToken, simMaker, order.SrcAmount},
		{src, srcNative, taker, order.SrcSafetyDeposit},
		{dst, simDstToken, taker, order.DstAmount},
		{dst, dstNative, taker, order.DstSafetyDeposit},
	}
	for _, m := range mints {
		if err := m.c.Mint(m.token, m.holder, m.amount); err != nil {
			return resolver.Swap{}, err
		}
	}

	s, err := r.Accept(order)
	if err != nil {
		return resolver.Swap{}, err
	}
	id := s.ID()
	if err := r.DeploySrc(ctx, id); err != nil {
		return resolver.Swap{}, err
	}
	if err := r.DeployDst(ctx, id); err != nil {
		return resolver.Swap{}, err
	}

	advance := func(offset htlc.Stage) error {
		at := genesis + uint64(timelocks.Offset(offset))
		if err := src.SetTime(at); err != nil {
			return err
		}
		return dst.SetTime(at)
	}

	if refund {
		if err := advance(htlc.SrcCancellation); err != nil {
			return resolver.Swap{}, err
		}
		if err := r.Cancel(ctx, id); err != nil {
			return resolver.Swap{}, err
		}
	} else {
		if err := r.RevealSecret(id, secret); err != nil {
			return resolver.Swap{}, err
		}
		if err := advance(htlc.DstWithdrawal); err != nil {
			return resolver.Swap{}, err
		}
		if err := r.WithdrawDst(ctx, id); err != nil {
			return resolver.Swap{}, err
		}
		if err := r.WithdrawSrc(ctx, id); err != nil {
			return resolver.Swap{}, err
		}
	}

	fmt.Fprintf(out, "maker:    src %s  dst %s\n",
		src.BalanceOf(simSrcToken, simMaker).Dec(), dst.BalanceOf(simDstToken, simMaker).Dec())
	fmt.Fprintf(out, "resolver: src %s  dst %s\n",
		src.BalanceOf(simSrcToken, taker).Dec(), dst.BalanceOf(simDstToken, taker).Dec())
	if err := reportTransitions(registry, out); err != nil {
		return resolver.Swap{}, err
	}
	return r.GetSwap(id)
}

func genesisBytes(genesis uint64) []byte {
	return uint256.NewInt(genesis).Bytes()
}

func reportTransitions(registry *prometheus.Registry, out io.Writer) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if family.GetName() != "swap_transition_count" {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				fmt.Fprintf(out, "entered %-14s %d\n", label.GetValue(), int(m.GetCounter().GetValue()))
			}
		}
	}
	return nil
}
