package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/config"
	"github.com/user/deskdev/internal/delivery"
	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/gateway"
	"github.com/user/deskdev/internal/types"
)

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(
		conversationListCmd,
		conversationEventsCmd,
		conversationTranscriptCmd,
		conversationTrajectoryCmd,
		conversationMicroagentsCmd,
		conversationPromptCmd,
		conversationURLCmd,
	)
	conversationListCmd.Flags().Bool("local", false, "list the local index instead of the server")
	conversationEventsCmd.Flags().Int64("start", 0, "first event id")
	conversationEventsCmd.Flags().Int("limit", 50, "maximum events to list")
	conversationTranscriptCmd.Flags().Bool("no-refresh", false, "use stored events only")
}

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Inspect conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		if local, _ := cmd.Flags().GetBool("local"); local {
			_, conversations, events, err := newGateway(cfg, newClient(cfg), nil)
			if err != nil {
				return err
			}
			list, err := conversations.List(ctx)
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No conversations found.")
				return nil
			}
			fmt.Fprintln(w, "ID\tTITLE\tEVENTS\tDELIVERY\tUPDATED")
			for _, c := range list {
				count, err := events.Count(ctx, c.ConversationID)
				if err != nil {
					count = 0
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					c.ConversationID, c.Title, count, c.DeliveryKey,
					c.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		}

		list, err := newService(cfg).UserConversations(ctx)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No conversations found.")
			return nil
		}
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tREPOSITORY\tUPDATED")
		for _, c := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.Title, c.Status, c.Repository,
				c.LastUpdated.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var conversationEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "List raw events from the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		start, _ := cmd.Flags().GetInt64("start")
		limit, _ := cmd.Flags().GetInt("limit")

		page, err := newClient(cfg).ListEvents(cmd.Context(), args[0], start, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE\tKIND\tVISIBLE")
		for _, raw := range page.Events {
			ev, err := event.Decode(raw)
			if err != nil {
				fmt.Fprintf(w, "-\t-\tinvalid\t-\n")
				continue
			}
			id, source := "-", "-"
			if h, ok := event.HeaderOf(ev); ok {
				id, source = strconv.FormatInt(h.ID, 10), string(h.Source)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", id, source, event.Classify(ev), event.ShouldRender(ev))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if page.HasMore {
			fmt.Fprintln(os.Stderr, "(more events available, use --start)")
		}
		return nil
	},
}

var conversationTranscriptCmd = &cobra.Command{
	Use:   "transcript <id>",
	Short: "Print the rendered transcript of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()
		id := types.ConversationID(args[0])

		gw, _, _, err := newGateway(cfg, newClient(cfg), nil)
		if err != nil {
			return err
		}
		if skip, _ := cmd.Flags().GetBool("no-refresh"); !skip {
			if _, err := gw.Refresh(ctx, id); err != nil {
				return err
			}
		}
		return printTranscript(ctx, cfg, gw, id)
	},
}

var conversationTrajectoryCmd = &cobra.Command{
	Use:   "trajectory <id>",
	Short: "Download the full trajectory of a conversation as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		traj, err := newService(cfg).Trajectory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(traj)
	},
}

var conversationMicroagentsCmd = &cobra.Command{
	Use:   "microagents <id>",
	Short: "List microagents loaded into a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		agents, err := newService(cfg).Microagents(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No microagents loaded.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tTRIGGERS")
		for _, a := range agents {
			fmt.Fprintf(w, "%s\t%s\t%v\n", a.Name, a.Type, a.Triggers)
		}
		return w.Flush()
	},
}

var conversationPromptCmd = &cobra.Command{
	Use:   "prompt <id> <event-id>",
	Short: "Show the suggested prompt for remembering an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid event id %q: %w", args[1], err)
		}
		cfg := loadConfig()
		text, err := newService(cfg).MicroagentPrompt(cmd.Context(), args[0], eventID)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	},
}

var conversationURLCmd = &cobra.Command{
	Use:   "url <id>",
	Short: "Print the API URL of a conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		fmt.Println(cfg.API.BaseURL + newClient(cfg).GetConversationURL(args[0]))
	},
}

func printTranscript(ctx context.Context, cfg *config.Config, gw *gateway.Gateway, id types.ConversationID) error {
	entries, err := gw.Transcript(ctx, id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Nothing to show yet.")
		return nil
	}
	out := delivery.Writer(os.Stdout)
	r := newRenderer(cfg)
	for _, m := range r.Entries(entries) {
		if err := out(types.DeliveryKey("stdout"), m); err != nil {
			return err
		}
	}
	return nil
}
