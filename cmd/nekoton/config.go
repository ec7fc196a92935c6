package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"
	"github.com/spf13/cobra"

	"github.com/broxus/nekoton-go/abi"
	"github.com/broxus/nekoton-go/tvm/cell"
)

// Config is loaded from a TOML file, keys are named as the fields.
type Config struct {
	// Encoding of BoC arguments and output, base64 or hex.
	Encoding string
	// ABIVersion is used for descriptions without a version.
	ABIVersion string
	// Timeout of external messages and transport calls, in seconds.
	Timeout     uint32
	SignatureID *int32 `toml:",omitempty"`
	// Workchain of addresses given as a bare account id.
	Workchain int32
	LogLevel  string
}

func defaultConfig() Config {
	return Config{
		Encoding: string(cell.EncodingBase64),
		Timeout:  uint32(abi.DefaultExpireTimeout / time.Second),
		LogLevel: "info",
	}
}

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func loadConfig(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return err
	}
	return cfg.validate()
}

func (c *Config) validate() error {
	if _, err := cell.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if c.ABIVersion != "" {
		if _, err := abi.ParseVersion(c.ABIVersion); err != nil {
			return fmt.Errorf("bad ABIVersion: %w", err)
		}
	}
	if c.Workchain < -128 || c.Workchain > 127 {
		return fmt.Errorf("workchain %d is out of range", c.Workchain)
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return abi.DefaultExpireTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

func dumpConfig(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dumpconfig",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := dumpConfig(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
