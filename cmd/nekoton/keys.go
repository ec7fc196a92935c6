package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/broxus/nekoton-go/crypto"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate and derive key pairs",
	}

	var legacy bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a seed phrase and its key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed crypto.Seed
			var err error
			if legacy {
				seed, err = crypto.GenerateLegacy(a.rand)
			} else {
				seed, err = crypto.GenerateBip39(a.rand)
			}
			if err != nil {
				return err
			}

			kp, err := seed.KeyPair()
			if err != nil {
				return err
			}
			printKeys(cmd.OutOrStdout(), seed.Phrase(), kp)
			return nil
		},
	}
	generate.Flags().BoolVar(&legacy, "legacy", false, "24 words phrase of old wallets")
	cmd.AddCommand(generate)

	var account uint16
	derive := &cobra.Command{
		Use:   "derive <phrase>",
		Short: "Print the key pair of a seed phrase",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase := strings.Join(args, " ")
			kp, err := deriveKeys(phrase, account)
			if err != nil {
				return err
			}
			printKeys(cmd.OutOrStdout(), phrase, kp)
			return nil
		},
	}
	derive.Flags().Uint16Var(&account, "account", 0, "account number of a 12 words phrase")
	cmd.AddCommand(derive)

	return cmd
}

// deriveKeys returns the key pair of the phrase, account is used only for bip39 phrases.
func deriveKeys(phrase string, account uint16) (*crypto.KeyPair, error) {
	seed, err := crypto.ParsePhrase(phrase)
	if err != nil {
		return nil, err
	}

	if s, ok := seed.(*crypto.Bip39Seed); ok {
		return s.Derive(crypto.PathForAccount(account))
	}
	if account != 0 {
		return nil, fmt.Errorf("%w: legacy phrase has a single account", crypto.ErrInvalidPhrase)
	}
	return seed.KeyPair()
}

func printKeys(out io.Writer, phrase string, kp *crypto.KeyPair) {
	fmt.Fprintf(out, "phrase: %s\n", strings.Join(strings.Fields(phrase), " "))
	fmt.Fprintf(out, "public: %s\n", kp.Public.String())
	fmt.Fprintf(out, "secret: %s\n", hex.EncodeToString(kp.Secret))
}
