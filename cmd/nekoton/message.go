package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broxus/nekoton-go/abi"
	"github.com/broxus/nekoton-go/address"
	"github.com/broxus/nekoton-go/ton"
	"github.com/broxus/nekoton-go/tvm/cell"
)

const dryRunRetries = 3

type messageFlags struct {
	Address string
	Phrase  string
	Account uint16
	DryRun  bool
}

func newMessageCmd(a *app) *cobra.Command {
	var flags messageFlags

	cmd := &cobra.Command{
		Use:   "message <abi.json> <function> <inputs json>",
		Short: "Build and sign an external call message",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadContract(args[0])
			if err != nil {
				return err
			}
			f, err := function(c, args[1])
			if err != nil {
				return err
			}
			tokens, err := abi.TokensFromJSON(f.Inputs, []byte(args[2]))
			if err != nil {
				return err
			}

			dst, err := parseAddress(flags.Address, a.cfg.Workchain)
			if err != nil {
				return err
			}
			kp, err := deriveKeys(flags.Phrase, flags.Account)
			if err != nil {
				return err
			}

			unsigned, err := f.EncodeExternalMessage(dst, tokens, abi.ExternalCallOptions{
				PublicKey: kp.PublicKey(),
				Timeout:   a.cfg.timeout(),
				Clock:     a.clock,
			}, nil)
			if err != nil {
				return err
			}
			msg, err := unsigned.Sign(kp, a.cfg.SignatureID)
			if err != nil {
				return err
			}

			boc, err := cell.EncodeBOC(msg.Cell, a.encoding())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hash:      %x\n", msg.Hash)
			fmt.Fprintf(out, "expire_at: %d\n", msg.ExpireAt)
			fmt.Fprintf(out, "boc:       %s\n", boc)

			if !flags.DryRun {
				return nil
			}

			offline := ton.NewOffline(nil)
			transport := ton.WithRetry(ton.WithTimeout(offline, a.cfg.timeout()), dryRunRetries)
			if err = ton.SendExternalMessage(cmd.Context(), transport, msg.Message); err != nil {
				return fmt.Errorf("failed to send message: %w", err)
			}
			a.log.Info("message sent", zap.String("dst", dst.String()),
				zap.String("hash", hex.EncodeToString(msg.Hash)), zap.Int("sent", len(offline.Sent())))
			fmt.Fprintf(out, "sent:      %d\n", len(offline.Sent()))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.Address, "address", "", "destination contract address")
	cmd.Flags().StringVar(&flags.Phrase, "phrase", "", "seed phrase of the signing key")
	cmd.Flags().Uint16Var(&flags.Account, "account", 0, "account number of a 12 words phrase")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "send through an offline transport")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("phrase")

	return cmd
}

// parseAddress accepts raw and user friendly forms, a bare hex account id
// is placed into the given workchain.
func parseAddress(s string, workchain int32) (*address.Address, error) {
	if len(s) == 64 && !strings.ContainsAny(s, ":-_") {
		if _, err := hex.DecodeString(s); err == nil {
			s = fmt.Sprintf("%d:%s", workchain, s)
		}
	}
	return address.ParseAny(s)
}
