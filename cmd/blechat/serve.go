package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/blechat/internal/peripheral"
	goble "github.com/srg/blechat/internal/peripheral/go-ble"
	"github.com/srg/blechat/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Advertise the chat service and open the chat shell",
	Long: `Starts the GATT chat peripheral and reads chat input from stdin.

Each plain line is broadcast to every subscribed central. Lines starting
with '/' are shell commands; type /help for the list.

Examples:
  # Advertise with defaults
  blechat serve

  # Custom name and service
  blechat serve --name Lobby --service 180d --char 2a37

  # Settings from a file, verbose logging
  blechat serve --config blechat.yaml --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Advertised device name")
	cmd.Flags().String("service", "", "Chat service UUID")
	cmd.Flags().String("char", "", "Chat characteristic UUID")
	cmd.Flags().String("greeting", "", "Initial readable characteristic value")
	cmd.Flags().Duration("settle", 0, "Wait between service registration and advertising")
	cmd.Flags().Duration("advertise-timeout", 0, "Stop advertising after this long (0 advertises until stopped)")
}

// loadServeConfig reads --config and applies the serve flags that were set.
func loadServeConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	stringFlags := map[string]*string{
		"name":     &cfg.DeviceName,
		"service":  &cfg.ServiceUUID,
		"char":     &cfg.CharacteristicUUID,
		"greeting": &cfg.ReadGreeting,
	}
	for name, dst := range stringFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	durationFlags := map[string]*time.Duration{
		"settle":            &cfg.SettleInterval,
		"advertise-timeout": &cfg.AdvertiseTimeout,
	}
	for name, dst := range durationFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, out, err := newLineReader(os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logger.SetOutput(cmd.ErrOrStderr())
	if rl, ok := in.(interface{ Stderr() io.Writer }); ok {
		logger.SetOutput(rl.Stderr())
	}

	stack := goble.NewStack(logger, goble.WithAdvertiseStartGrace(cfg.AdvertiseGrace))
	session := peripheral.NewSession(stack, logger, cfg.SessionOptions())
	defer session.Close()

	printSignals(ctx, session, out, logger)

	if err := session.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Peripheral %q is up; type /help for commands\n", cfg.DeviceName)

	return NewShell(ctx, session, out, logger).Run(ctx, in)
}
