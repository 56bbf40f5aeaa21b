package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-assistant/internal/operator"
	"whatsapp-assistant/internal/ws"

	"github.com/spf13/cobra"
)

func newSimulateCmd(flags *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "simulate <phone-number> <message>",
		Short: "Send a message as if a contact had written it and print the reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			connected := make(chan struct{}, 1)
			s := flags.supervisor(func(prev, next operator.State) {
				if next == operator.StateConnected {
					select {
					case connected <- struct{}{}:
					default:
					}
				}
			})
			s.Start(ctx)
			defer s.Close()

			select {
			case <-connected:
			case err := <-s.Errors():
				return err
			case <-ctx.Done():
				return fmt.Errorf("connect to %s: %w", flags.url, ctx.Err())
			}

			frame := ws.InboundFrame{Type: ws.TypeWhatsAppMessage, PhoneNumber: args[0], Content: args[1]}
			if err := s.Send(frame); err != nil {
				return fmt.Errorf("send frame: %w", err)
			}

			for {
				select {
				case data := <-s.Events():
					typ, text := operator.Describe(data)
					switch typ {
					case ws.TypeAIResponse:
						fmt.Fprintln(cmd.OutOrStdout(), text)
						return nil
					case ws.TypeError:
						return errors.New(text)
					case ws.TypeExemptedMessage:
						fmt.Fprintln(cmd.OutOrStdout(), text)
						return nil
					}
				case err := <-s.Errors():
					return err
				case <-ctx.Done():
					return fmt.Errorf("no reply within %s", timeout)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the reply")
	return cmd
}
