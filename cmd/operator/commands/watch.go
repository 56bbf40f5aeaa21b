package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"whatsapp-assistant/internal/operator"

	"github.com/spf13/cobra"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print every conversation event as it happens",
		Long: `Streams hub events to stdout. When the connection cannot be
re-established, type "retry" and press enter to start over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			s := flags.supervisor(func(prev, next operator.State) {
				fmt.Fprintf(cmd.ErrOrStderr(), "* %s\n", next)
			})
			s.Start(ctx)
			defer s.Close()

			retry := make(chan struct{})
			go readRetries(ctx, cmd.InOrStdin(), retry)

			for {
				select {
				case <-ctx.Done():
					return nil
				case data := <-s.Events():
					if raw {
						fmt.Fprintln(out, string(data))
						continue
					}
					_, text := operator.Describe(data)
					fmt.Fprintln(out, text)
				case err := <-s.Errors():
					if errors.Is(err, operator.ErrMaxReconnectAttempts) {
						fmt.Fprintln(cmd.ErrOrStderr(), `! connection lost; type "retry" to reconnect`)
						continue
					}
					return err
				case <-retry:
					s.Retry()
				}
			}
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print frames as JSON")
	return cmd
}

// readRetries signals retry for every "retry" line on r. It returns at EOF or
// once ctx is done.
func readRetries(ctx context.Context, r io.Reader, retry chan<- struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "retry" {
			continue
		}
		select {
		case retry <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}
