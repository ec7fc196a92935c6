package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/broxus/nekoton-go/clock"
	"github.com/broxus/nekoton-go/ton"
	"github.com/broxus/nekoton-go/tvm/cell"
)

type globalFlags struct {
	ConfigFile string
	Encoding   string
	Verbose    bool
}

type app struct {
	flags globalFlags
	cfg   Config
	log   *zap.Logger

	clock clock.Clock
	rand  io.Reader
}

func newApp() *app {
	return &app{
		cfg:   defaultConfig(),
		log:   zap.NewNop(),
		clock: clock.System{},
		rand:  rand.Reader,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "nekoton",
		Short:         "Cells, BoC and contract ABI toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&a.flags.ConfigFile, "config", "c", "", "TOML configuration file")
	root.PersistentFlags().StringVarP(&a.flags.Encoding, "encoding", "e", "", "BoC encoding: base64|hex (overrides config)")
	root.PersistentFlags().BoolVarP(&a.flags.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newBocCmd(a))
	root.AddCommand(newABICmd(a))
	root.AddCommand(newKeysCmd(a))
	root.AddCommand(newMessageCmd(a))
	root.AddCommand(newConfigCmd(a))
	return root
}

func (a *app) init() error {
	if a.flags.ConfigFile != "" {
		if err := loadConfig(a.flags.ConfigFile, &a.cfg); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if a.flags.Encoding != "" {
		a.cfg.Encoding = a.flags.Encoding
	}
	if err := a.cfg.validate(); err != nil {
		return err
	}

	log, err := newLogger(a.cfg.LogLevel, a.flags.Verbose)
	if err != nil {
		return err
	}
	a.log = log
	zap.ReplaceGlobals(log)
	ton.Logger = func(v ...any) {
		zap.S().Debug(v...)
	}
	return nil
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}

	if level != "" && !verbose {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("bad log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

func (a *app) encoding() cell.Encoding {
	enc, _ := cell.ParseEncoding(a.cfg.Encoding)
	return enc
}

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
