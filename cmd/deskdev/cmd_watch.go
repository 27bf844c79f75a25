package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/delivery"
	"github.com/user/deskdev/internal/types"
)

func init() {
	rootCmd.AddCommand(watchCmd, sayCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Follow a conversation and print new events as they arrive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()
		id := types.ConversationID(args[0])

		reg := delivery.NewRegistry()
		reg.Register("stdout", delivery.Writer(os.Stdout))

		gw, _, _, err := newGateway(cfg, newClient(cfg), reg)
		if err != nil {
			return err
		}

		// show what is already stored before following
		if err := printTranscript(ctx, cfg, gw, id); err != nil {
			return err
		}

		gw.Start(ctx)
		defer gw.Stop()
		if err := gw.Follow(ctx, id, "stdout"); err != nil {
			return err
		}
		slog.Debug("watching", "conversation_id", string(id), "transport", cfg.Follow.Transport)

		<-ctx.Done()
		return nil
	},
}

var sayCmd = &cobra.Command{
	Use:   "say <id> <message...>",
	Short: "Send a user message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		text := strings.Join(args[1:], " ")

		gw, _, _, err := newGateway(cfg, newClient(cfg), nil)
		if err != nil {
			return err
		}
		if err := gw.SendMessage(cmd.Context(), types.ConversationID(args[0]), text); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Sent.")
		return nil
	},
}
