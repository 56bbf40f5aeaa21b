// Package commands implements the operator CLI.
package commands

import (
	"log/slog"
	"os"
	"time"

	"whatsapp-assistant/internal/operator"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	url         string
	maxAttempts int
	verbose     bool
}

func NewRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "operator",
		Short: "Operator console for the WhatsApp assistant",
		Long: `Connects to the assistant's operator socket.

Examples:
  operator watch --url ws://localhost:8080/ws-maximus
  operator simulate 15551234567 "hello"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newWatchCmd(flags),
		newSimulateCmd(flags),
	)

	rootCmd.PersistentFlags().StringVarP(&flags.url, "url", "u", defaultURL(), "operator socket URL (env OPERATOR_WS_URL)")
	rootCmd.PersistentFlags().IntVar(&flags.maxAttempts, "max-attempts", 5, "reconnect attempts before giving up")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log connection state changes")

	return rootCmd
}

func defaultURL() string {
	if u := os.Getenv("OPERATOR_WS_URL"); u != "" {
		return u
	}
	return "ws://localhost:8080/ws-maximus"
}

func (f *globalFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (f *globalFlags) supervisor(onState func(prev, next operator.State)) *operator.Supervisor {
	return operator.New(operator.Config{
		URL:         f.url,
		MaxAttempts: f.maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Logger:      f.logger(),
		OnState:     onState,
	})
}
