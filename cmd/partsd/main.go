package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/jacoelho/partstore"
	"github.com/jacoelho/partstore/internal/cliconfig"
	"github.com/jacoelho/partstore/internal/daemon"
	"github.com/jacoelho/partstore/log"
	"github.com/jacoelho/partstore/metrics"
)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "partsd:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "partsd",
		Short:         "Assemble, start and stop a partstore application",
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.partsd/config.toml)")
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address for /metrics, /healthz and /parts")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console, json)")
	flags.BoolVar(&cfg.Zlib, "zlib", cfg.Zlib, "install the zlib deflate and inflate services")
	flags.BoolVar(&cfg.Brotli, "brotli", cfg.Brotli, "install the brotli encode and decode services")
	flags.IntVar(&cfg.DeflateLevel, "deflate-level", cfg.DeflateLevel, "zlib level used by the self test")
	flags.IntVar(&cfg.BrotliQuality, "brotli-quality", cfg.BrotliQuality, "brotli quality used by the self test")
	flags.BoolVar(&cfg.SelfTest, "self-test", cfg.SelfTest, "round-trip data through the codecs on start")
	flags.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "log edits of the config file while running")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time for stop hooks")
	flags.DurationVar(&cfg.RunFor, "run-for", cfg.RunFor, "stop after this duration (0 runs until signalled)")

	// load resolves the config file and environment, flags win over both.
	load := func(cmd *cobra.Command) (string, error) {
		cfgFile := cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}

		changed := map[string]bool{}
		cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			fc, err := cliconfig.LoadFileConfig(cfgFile)
			if err != nil {
				return "", fmt.Errorf("load config: %w", err)
			}
			if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
				return "", err
			}
		} else {
			cfgFile = ""
		}

		if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
			return "", err
		}
		if err := cfg.Validate(); err != nil {
			return "", err
		}
		return cfgFile, nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Start the application and wait for a signal",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfgFile, err := load(cmd)
				if err != nil {
					return err
				}
				app, logger, err := assemble(cfg, cfgFile)
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				return daemon.Run(ctx, app, cfg.RunFor, cfg.ShutdownTimeout, logger)
			},
		},
		&cobra.Command{
			Use:   "graph",
			Short: "Print the assembled parts in dot format without starting them",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfgFile, err := load(cmd)
				if err != nil {
					return err
				}
				app, _, err := assemble(cfg, cfgFile)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), app.Store().DotGraph())
				return app.Close()
			},
		},
	)

	root.SetContext(context.Background())
	return root
}

func assemble(cfg cliconfig.Config, cfgFile string) (*partstore.Application, log.Logger, error) {
	logger, err := log.NewZerologAdapter(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := partstore.NewApplication(
		partstore.WithLogger(logger),
		partstore.WithObserver(metrics.NewObserver(reg)),
	)
	if err := daemon.Assemble(app, daemon.Options{
		Config:     cfg,
		ConfigPath: cfgFile,
		Logger:     logger,
		Registry:   reg,
	}); err != nil {
		return nil, nil, errors.Join(err, app.Close())
	}
	return app, logger, nil
}
