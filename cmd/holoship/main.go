package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/holoship/internal/cliconfig"
	"github.com/bft-labs/holoship/pkg/holoship"
	"github.com/bft-labs/holoship/pkg/log"
)

const helpDescription = `
Render holographic content for a remote headset player and stream the frames
back over the network.

Modes:
  - Connect:    holoship <player-host>[:port] dials a listening player.
  - Listen:     holoship --listen waits for a player to connect.
  - Standalone: holoship --standalone renders locally without a player.

Keys and phrases are read from stdin, one per line:
  (empty)  connect             d  disconnect
  p        toggle preview      c  toggle depth buffer commit
  s        save position       l  load position
  x        exit
Any other line is treated as a recognised phrase, e.g. "toggle preview" or "blue".
`

var exampleUsage = strings.TrimSpace(`
  holoship 192.168.1.20
  holoship --listen --port 8265
  holoship --listen --ephemeral-port --log-level debug
  holoship --standalone --anchor-dir ~/.holoship/anchors
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var (
		cfgPath         string
		noAutoReconnect bool
	)

	bootLog := log.NewZerologAdapter(zerolog.InfoLevel)

	root := &cobra.Command{
		Use:     "holoship [host[:port]]",
		Short:   "Host remote holographic sessions",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if noAutoReconnect {
				cfg.AutoReconnect = false
			}

			if err := loadConfig(&cfg, cfgFile, args, changed); err != nil {
				return err
			}
			logger := log.NewZerologAdapter(log.ParseLevel(cfg.LogLevel))
			logger.Info("configuration", log.Any("config", cfg))

			h, err := holoship.New(libConfig(cfg),
				holoship.WithLogger(logger),
				holoship.WithRetryPolicy(retryPolicy(cfg)),
				holoship.WithObserver(&cliObserver{logger: logger.With(log.String("component", "cli"))}),
			)
			if err != nil {
				return fmt.Errorf("create host: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-sigCh:
					logger.Info("received signal, stopping...")
					cancel()
				case <-ctx.Done():
				}
			}()

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				r := newReloader(h, cfg, changed, logger)
				go r.run(ctx, cfgFile)
			}
			go readInput(ctx, os.Stdin, h, logger)

			if cfg.Mode() == holoship.ModeDisabled {
				err = h.InitializeStandalone()
			} else {
				err = h.Start()
			}
			if err != nil {
				_ = h.Close()
				return fmt.Errorf("start host: %w", err)
			}
			if addr := h.Addr(); addr != nil {
				logger.Info("waiting for player", log.String("addr", addr.String()))
			}

			if err := h.Run(ctx); err != nil && !errors.Is(err, holoship.ErrShutdownTimeout) {
				return fmt.Errorf("stop host: %w", err)
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.holoship/config.toml)")
	root.Flags().BoolVar(&cfg.Listen, "listen", cfg.Listen, "wait for the player to connect instead of dialing it")
	root.Flags().BoolVar(&cfg.Standalone, "standalone", cfg.Standalone, "render locally without a player")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "handshake port")
	root.Flags().IntVar(&cfg.TransportPort, "transport-port", cfg.TransportPort, "transport port (default: port+1)")
	root.Flags().BoolVar(&cfg.Ephemeral, "ephemeral-port", cfg.Ephemeral, "listen on a system-chosen port")

	root.Flags().BoolVar(&noAutoReconnect, "no-auto-reconnect", false, "do not reconnect after a lost connection")
	root.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "maximum consecutive reconnect attempts (0 = unlimited)")
	root.Flags().DurationVar(&cfg.RetryInitial, "retry-initial", cfg.RetryInitial, "first reconnect delay (0 = immediate)")
	root.Flags().DurationVar(&cfg.RetryMax, "retry-max", cfg.RetryMax, "maximum reconnect delay")

	root.Flags().StringVar(&cfg.Compression, "compression", cfg.Compression, "frame compression: none, lz4 or zstd")
	root.Flags().DurationVar(&cfg.KeepAlive, "keepalive", cfg.KeepAlive, "keepalive interval")

	root.Flags().IntVar(&cfg.Width, "width", cfg.Width, "preview width")
	root.Flags().IntVar(&cfg.Height, "height", cfg.Height, "preview height")
	root.Flags().BoolVar(&cfg.ShowPreview, "show-preview", cfg.ShowPreview, "show the local preview while connected")
	root.Flags().StringVar(&cfg.AnchorDir, "anchor-dir", cfg.AnchorDir, "directory for saved positions")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time to wait for teardown")
	if err := root.Flags().MarkHidden("shutdown-timeout"); err != nil {
		bootLog.Info("failed to hide shutdown-timeout flag", log.Err(err))
	}

	if err := root.Execute(); err != nil {
		bootLog.Error("holoship", log.Err(err))
		os.Exit(1)
	}
}

// loadConfig layers the config file, the environment and the positional
// target over the flag values, then validates the result.
func loadConfig(cfg *cliconfig.Config, cfgFile string, args []string, changed map[string]bool) error {
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	if len(args) == 1 {
		host, port, err := cliconfig.ParseTarget(args[0], cfg.Port)
		if err != nil {
			return err
		}
		cfg.Host, cfg.Port = host, port
		changed["host"] = true
	}
	return cfg.Validate()
}

func libConfig(cfg cliconfig.Config) holoship.Config {
	sc := cfg.SessionConfig()
	return holoship.Config{
		Mode:            sc.Mode,
		Address:         sc.Address,
		Port:            sc.Port,
		TransportPort:   sc.TransportPort,
		Ephemeral:       sc.Ephemeral,
		Compression:     cfg.Compression,
		KeepAlive:       cfg.KeepAlive,
		Width:           cfg.Width,
		Height:          cfg.Height,
		ShowPreview:     cfg.ShowPreview,
		AnchorDir:       cfg.AnchorDir,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

func retryPolicy(cfg cliconfig.Config) holoship.RetryPolicy {
	return holoship.RetryPolicy{
		Enabled:      cfg.AutoReconnect,
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryInitial,
		MaxDelay:     cfg.RetryMax,
	}
}
