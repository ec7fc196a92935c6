package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/broxus/nekoton-go/abi"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// loadContract reads a contract description, a configured ABIVersion is
// used when the description has none.
func (a *app) loadContract(file string) (*abi.Contract, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	if a.cfg.ABIVersion != "" {
		var raw map[string]json.RawMessage
		if err = json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", abi.ErrInvalidSchema, err)
		}
		_, hasVersion := raw["version"]
		_, hasABIVersion := raw["ABI version"]
		if !hasVersion && !hasABIVersion {
			raw["version"], _ = json.Marshal(a.cfg.ABIVersion)
			if data, err = json.Marshal(raw); err != nil {
				return nil, err
			}
		}
	}

	c, err := abi.ParseContract(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	a.log.Debug("contract loaded", zap.String("file", file), zap.Stringer("version", c.Version),
		zap.Int("functions", len(c.Functions)), zap.Int("events", len(c.Events)))
	return c, nil
}

var errNotFound = errors.New("not found")

func function(c *abi.Contract, name string) (*abi.Function, error) {
	f, ok := c.Functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: function %q", errNotFound, name)
	}
	return f, nil
}

func newABICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abi",
		Short: "Encode and decode contract calls",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ids <abi.json>",
		Short: "Print function and event ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadContract(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range c.SortedFunctions() {
				fmt.Fprintf(out, "function %s input=0x%08x output=0x%08x\n", f.Name, f.InputID, f.OutputID)
			}
			for _, e := range c.SortedEvents() {
				fmt.Fprintf(out, "event %s id=0x%08x\n", e.Name, e.ID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "encode <abi.json> <function> <inputs json>",
		Short: "Build an internal call body",
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
			body, err := f.EncodeInternalInput(tokens)
			if err != nil {
				return err
			}

			res, err := cell.EncodeBOC(body, a.encoding())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	})

	var internal, partial bool
	decode := &cobra.Command{
		Use:   "decode <abi.json> <boc>",
		Short: "Detect the function or event of a body and decode it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.loadContract(args[0])
			if err != nil {
				return err
			}
			body, err := cell.DecodeBOC(args[1], a.encoding())
			if err != nil {
				return err
			}

			res, err := decodeBody(c, body, internal, partial)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	decode.Flags().BoolVar(&internal, "internal", false, "body of an internal message, without header")
	decode.Flags().BoolVar(&partial, "partial", false, "allow unread data after the last value")
	cmd.AddCommand(decode)

	return cmd
}

type decodedBody struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name"`
	Tokens json.RawMessage `json:"tokens"`
}

// decodeBody tries function inputs, then outputs, then events.
func decodeBody(c *abi.Contract, body *cell.Cell, internal, partial bool) (*decodedBody, error) {
	res, tokens, err := guessBody(c, body, internal, partial)
	if err != nil {
		return nil, err
	}

	res.Tokens, err = abi.TokensToJSON(tokens)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func guessBody(c *abi.Contract, body *cell.Cell, internal, partial bool) (*decodedBody, []abi.Token, error) {
	f, err := c.GuessFunctionByInput(body, internal)
	if err != nil {
		return nil, nil, err
	}
	if f != nil {
		tokens, err := f.DecodeInput(body, internal, partial)
		return &decodedBody{Kind: "input", Name: f.Name}, tokens, err
	}

	if f, err = c.GuessFunctionByOutput(body); err != nil {
		return nil, nil, err
	}
	if f != nil {
		tokens, err := f.DecodeOutput(body, partial)
		return &decodedBody{Kind: "output", Name: f.Name}, tokens, err
	}

	e, err := c.GuessEvent(body)
	if err != nil {
		return nil, nil, err
	}
	if e != nil {
		tokens, err := e.DecodeMessageBody(body, partial)
		return &decodedBody{Kind: "event", Name: e.Name}, tokens, err
	}
	return nil, nil, fmt.Errorf("%w: no function or event matches the body", errNotFound)
}
