package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leofalp/chatrelay/core/catalog"
	"github.com/leofalp/chatrelay/core/sink"
	"github.com/leofalp/chatrelay/providers/ai"
)

func newAskCmd() *cobra.Command {
	var (
		model       string
		historyFile string
		showReply   bool
	)

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and stream the reply to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			var conversation []ai.Message
			if historyFile != "" {
				data, err := os.ReadFile(historyFile)
				if err != nil {
					return fmt.Errorf("reading history: %w", err)
				}
				if err := json.Unmarshal(data, &conversation); err != nil {
					return fmt.Errorf("parsing history: %w", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			channel := sink.NewWriterChannel(cmd.OutOrStdout(), ctx.Done())
			reply, err := a.relay.Deliver(ctx, channel, sink.Request{
				Conversation: conversation,
				Message:      strings.Join(args, " "),
				Model:        model,
			})
			if err != nil {
				return err
			}

			if showReply {
				encoder := json.NewEncoder(cmd.ErrOrStderr())
				encoder.SetIndent("", "  ")
				return encoder.Encode(reply)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", catalog.DefaultFallbackModel, "model id (see 'chatrelay models')")
	cmd.Flags().StringVar(&historyFile, "history", "", "JSON file with prior turns: [{\"role\":\"user\",\"content\":\"...\"}]")
	cmd.Flags().BoolVar(&showReply, "json", false, "print the assembled reply as JSON to stderr")
	return cmd
}
