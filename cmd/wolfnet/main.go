// Command wolfnet runs a snapshot server over the simulated arena and
// inspects recorded demos.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦ ╦┌─┐┬  ┌─┐┌┐┌┌─┐┌┬┐
  ║║║│ ││  ├┤ │││├┤  │
  ╚╩╝└─┘┴─┘└  ┘└┘└─┘ ┴
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "wolfnet",
		Short: "Snapshot networking server",
		Long: `wolfnet serves a simulated arena to game clients over UDP and
WebSocket using delta compressed snapshots and reliable commands.

Settings come from wolfnet.json, then .env files, then WOLFNET_*
environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			initEnv(v)
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			logger, err := newLogger(v.GetString("log-level"), v.GetString("log-format"))
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}
	root.PersistentFlags().String("config", "wolfnet.json", "Path to the config file")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	root.AddCommand(
		serveCmd(v),
		inspectCmd(),
		versionCmd(),
	)
	return root
}

// initEnv loads .env files and maps WOLFNET_* variables onto flag names.
func initEnv(v *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("wolfnet")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("W400").WithDetail("unknown log level " + level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, errors.New("W400").WithDetail("unknown log format " + format)
	}
}

func printBanner() {
	fmt.Print(banner)
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
