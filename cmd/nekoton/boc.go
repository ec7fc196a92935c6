package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/broxus/nekoton-go/tvm/cell"
)

func newBocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boc",
		Short: "Inspect and convert bags of cells",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <boc>",
		Short: "Print hash, depth and the cell tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cell.DecodeBOC(args[0], a.encoding())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hash:  %x\n", c.Hash())
			fmt.Fprintf(out, "depth: %d\n", c.Depth())
			fmt.Fprintf(out, "bits:  %d\n", c.BitsSize())
			fmt.Fprintf(out, "refs:  %d\n", c.RefsNum())
			fmt.Fprintln(out, c.Dump())
			return nil
		},
	})

	var to string
	convert := &cobra.Command{
		Use:   "convert <boc>",
		Short: "Re-encode a BoC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := cell.ParseEncoding(to)
			if err != nil {
				return err
			}

			c, err := cell.DecodeBOC(args[0], a.encoding())
			if err != nil {
				return err
			}

			res, err := cell.EncodeBOC(c, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	convert.Flags().StringVar(&to, "to", string(cell.EncodingHex), "target encoding: base64|hex")
	cmd.AddCommand(convert)

	return cmd
}
