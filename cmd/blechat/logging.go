package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blechat/pkg/config"
)

// configureLogger creates a logger from cfg, with --log-level taking precedence
// over the configured level. Returns an error if the level is invalid.
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		if _, err := logrus.ParseLevel(logLevelStr); err != nil {
			return nil, fmt.Errorf("%w: %s (must be debug, info, warn, or error)", ErrInvalidLogLevel, logLevelStr)
		}
		cfg.LogLevel = logLevelStr
	}
	return cfg.NewLogger(), nil
}
