/*
Copyright (c) 2024 Diagrid Inc.
Licensed under the MIT License.
*/

package cli

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCommand returns the rhythm root command. Every flag can also be set
// from the environment, prefixed with RHYTHM_, e.g. RHYTHM_LOG_LEVEL.
func NewCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("rhythm")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "rhythm",
		Short:         "Compute and trigger date sequences",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return v.BindPFlags(cmd.InheritedFlags())
		},
	}

	root.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	root.PersistentFlags().StringP("config", "c", "", "YAML document of named schedules")

	root.AddCommand(newNextCommand(v), newRunCommand(v))

	return root
}

func newLogger(level string) (logr.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return logr.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}

	return zapr.NewLogger(zl).WithName("rhythm"), nil
}
