// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/luxfi/htlc"
	"github.com/luxfi/htlc/escrow"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "htlc",
	Short: "Hashed timelock escrow tooling for cross-chain atomic swaps",
	Long: `htlc computes hashlocks, packs and inspects timelock schedules,
derives escrow instance addresses and runs swap simulations on two
in-process chains.`,
	Version:      fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(hashlockCmd)
	rootCmd.AddCommand(timelocksCmd)
	rootCmd.AddCommand(addressCmd)
	rootCmd.AddCommand(simulateCmd)

	timelocksCmd.AddCommand(packCmd)
	timelocksCmd.AddCommand(inspectCmd)
}

var hashlockCmd = &cobra.Command{
	Use:   "hashlock",
	Short: "Hash a secret, or draw a new one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secretHex, _ := cmd.Flags().GetString("secret")

		var (
			secret   [htlc.SecretLen]byte
			hashlock common.Hash
			err      error
		)
		if secretHex == "" {
			secret, hashlock, err = htlc.NewSecret()
			if err != nil {
				return err
			}
		} else {
			if secret, err = parseSecret(secretHex); err != nil {
				return err
			}
			hashlock = htlc.HashSecret(secret)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "secret:   0x%x\n", secret)
		fmt.Fprintf(out, "hashlock: %s\n", hashlock.Hex())
		return nil
	},
}

var timelocksCmd = &cobra.Command{
	Use:   "timelocks",
	Short: "Pack or inspect a timelock schedule",
}

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack stage offsets into a timelocks word",
	Long: `Pack stage offsets, given in seconds after deployment and in stage order
(src withdrawal, src public withdrawal, src cancellation, src public
cancellation, dst withdrawal, dst public withdrawal, dst cancellation).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		offsetList, _ := cmd.Flags().GetString("offsets")
		deployedAt, _ := cmd.Flags().GetUint64("deployed-at")

		offsets, err := parseOffsets(offsetList)
		if err != nil {
			return err
		}
		t, err := htlc.NewTimelocks(offsets...)
		if err != nil {
			return err
		}
		if t, err = t.SetDeployedAt(deployedAt); err != nil {
			return err
		}
		if err := t.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.Pack().Hex())
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <word>",
	Short: "Print the deployment time and stage boundaries of a timelocks word",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		word, err := parseWord(args[0])
		if err != nil {
			return err
		}
		t := htlc.UnpackTimelocks(word)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "deployed_at: %d\n", t.DeployedAt)
		for i := 0; i < htlc.NumStages; i++ {
			stage := htlc.Stage(i)
			fmt.Fprintf(out, "%-24s +%-8d %d\n", stage.String()+":", t.Offset(stage), t.Get(stage))
		}
		if err := t.Validate(); err != nil {
			fmt.Fprintf(out, "warning: %v\n", err)
		}
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Derive the address of an escrow instance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		variantName, _ := cmd.Flags().GetString("variant")
		factoryHex, _ := cmd.Flags().GetString("factory")
		nativeHex, _ := cmd.Flags().GetString("native-token")
		accessHex, _ := cmd.Flags().GetString("access-token")
		rescueDelay, _ := cmd.Flags().GetUint32("rescue-delay")
		immHex, _ := cmd.Flags().GetString("immutables")

		var v escrow.Variant
		switch variantName {
		case escrow.Src.String():
			v = escrow.Src
		case escrow.Dst.String():
			v = escrow.Dst
		default:
			return fmt.Errorf("unknown variant %q", variantName)
		}
		addrs := make([]common.Address, 3)
		for i, s := range []string{factoryHex, nativeHex, accessHex} {
			if !common.IsHexAddress(s) {
				return fmt.Errorf("invalid address %q", s)
			}
			addrs[i] = common.HexToAddress(s)
		}
		imm, err := htlc.ParseImmutables(common.FromHex(immHex))
		if err != nil {
			return err
		}

		cfg := escrow.Config{
			RescueDelay: rescueDelay,
			NativeToken: addrs[1],
			AccessToken: addrs[2],
		}
		initCodeHash := cfg.InitCodeHash(v)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "salt:           %s\n", imm.Hash().Hex())
		fmt.Fprintf(out, "init code hash: %s\n", initCodeHash.Hex())
		fmt.Fprintf(out, "address:        %s\n", htlc.ComputeAddress(addrs[0], imm.Hash(), initCodeHash).Hex())
		return nil
	},
}

func init() {
	hashlockCmd.Flags().StringP("secret", "s", "", "Secret to hash (32 bytes hex). Empty draws a random one")

	packCmd.Flags().StringP("offsets", "o", "", "Comma separated stage offsets in seconds")
	packCmd.Flags().Uint64P("deployed-at", "d", 0, "Deployment timestamp")
	packCmd.MarkFlagRequired("offsets")

	addressCmd.Flags().String("variant", "dst", "Escrow variant (src, dst)")
	addressCmd.Flags().String("factory", "", "Factory address")
	addressCmd.Flags().String("native-token", "", "Native token address")
	addressCmd.Flags().String("access-token", "", "Access token address")
	addressCmd.Flags().Uint32("rescue-delay", 0, "Template rescue delay in seconds")
	addressCmd.Flags().String("immutables", "", "Canonical immutables encoding (hex)")
	addressCmd.MarkFlagRequired("factory")
	addressCmd.MarkFlagRequired("immutables")
}

// Helper functions
func parseSecret(s string) ([htlc.SecretLen]byte, error) {
	var secret [htlc.SecretLen]byte
	b := common.FromHex(s)
	if len(b) != htlc.SecretLen {
		return secret, fmt.Errorf("secret must be %d bytes, got %d", htlc.SecretLen, len(b))
	}
	copy(secret[:], b)
	return secret, nil
}

func parseOffsets(s string) ([]uint32, error) {
	var offsets []uint32
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q: %w", field, err)
		}
		offsets = append(offsets, uint32(v))
	}
	return offsets, nil
}

func parseWord(s string) (*uint256.Int, error) {
	b := common.FromHex(s)
	if len(b) > htlc.WordLen {
		return nil, fmt.Errorf("word is %d bytes, at most %d allowed", len(b), htlc.WordLen)
	}
	return new(uint256.Int).SetBytes(b), nil
}
