// Command distributed loads, inspects and packs extension bundles.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	distributed "github.com/wippyai/wasm-distributed"
	"github.com/wippyai/wasm-distributed/config"
	"github.com/wippyai/wasm-distributed/loader"
	"github.com/wippyai/wasm-distributed/session"
	"github.com/wippyai/wasm-distributed/store"
	"github.com/wippyai/wasm-distributed/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command shares.
type app struct {
	logger   *zap.Logger
	cache    *store.Store
	shutdown telemetry.Shutdown
	cfg      config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "distributed",
		Short: "Load and inspect WebAssembly extension bundles.",
		Long: `Load and inspect WebAssembly extension bundles.

Settings are read from DISTRIBUTED_* environment variables; flags override them.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "", "log format (console, json)")
	root.PersistentFlags().String("cache", "", "path of the SQLite bundle cache")
	root.PersistentFlags().String("suffix", "", "packaging marker in bundle filenames")

	root.AddCommand(
		newLoadCmd(a),
		newInspectCmd(a),
		newDigestCmd(),
		newPackCmd(a),
		newCacheCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for flag, dst := range map[string]*string{
		"log-level":  &cfg.LogLevel,
		"log-format": &cfg.LogFormat,
		"cache":      &cfg.CachePath,
		"suffix":     &cfg.Suffix,
	} {
		if v, _ := flags.GetString(flag); v != "" {
			*dst = v
		}
	}
	a.cfg = cfg

	a.logger, err = cfg.Logger()
	if err != nil {
		return err
	}
	loader.SetLogger(a.logger.Named("loader"))

	a.shutdown, err = telemetry.Setup(cmd.Context(), "distributed", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}

	if cfg.CachePath != "" {
		a.cache, err = store.Open(cfg.CachePath)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	ctx := context.WithoutCancel(cmd.Context())
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close bundle cache", zap.Error(err))
		}
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

// newSession creates a session configured from the environment.
func (a *app) newSession(ctx context.Context, host distributed.Host) (*session.Session, error) {
	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithSuffix(a.cfg.Suffix),
		session.WithPayloadExt(a.cfg.PayloadExt),
		session.WithHostVersion(a.cfg.HostVersion),
		session.WithHTTPTimeout(a.cfg.HTTPTimeout),
		session.WithMemoryLimitPages(a.cfg.MemoryLimitPages),
	}
	if a.cache != nil {
		opts = append(opts, session.WithCache(a.cache))
	}
	return session.New(ctx, host, opts...)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the library version bundles are compared against.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), distributed.Version)
		},
	}
}
