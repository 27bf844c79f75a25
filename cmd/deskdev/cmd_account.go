package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/pkg/api"
)

func init() {
	rootCmd.AddCommand(balanceCmd, checkoutCmd, feedbackCmd, optionsCmd)
	feedbackCmd.Flags().String("polarity", "positive", "positive or negative")
	feedbackCmd.Flags().String("email", "", "contact email")
	feedbackCmd.Flags().String("permissions", "private", "private or public")
	feedbackCmd.Flags().Bool("trajectory", true, "attach the conversation trajectory")
	optionsCmd.Flags().Bool("json", false, "print as JSON")
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show remaining credits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		balance, ok, err := newService(cfg).Balance(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Billing is not enabled on this server.")
			return nil
		}
		fmt.Printf("Balance: $%s\n", balance)
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <amount>",
	Short: "Buy credits and print the payment URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		cfg := loadConfig()
		url, err := newService(cfg).CreateCheckoutSession(cmd.Context(), amount)
		if err != nil {
			return err
		}
		fmt.Println("Open this link to complete the payment:")
		fmt.Println(url)
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <id>",
	Short: "Rate a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()
		svc := newService(cfg)

		polarity, _ := cmd.Flags().GetString("polarity")
		permissions, _ := cmd.Flags().GetString("permissions")
		email, _ := cmd.Flags().GetString("email")
		if polarity != "positive" && polarity != "negative" {
			return fmt.Errorf("polarity must be positive or negative")
		}
		if permissions != "private" && permissions != "public" {
			return fmt.Errorf("permissions must be private or public")
		}

		fb := api.Feedback{
			Version:     "1.0",
			Email:       email,
			Polarity:    polarity,
			Permissions: permissions,
		}
		if attach, _ := cmd.Flags().GetBool("trajectory"); attach {
			traj, err := svc.Trajectory(ctx, args[0])
			if err != nil {
				return err
			}
			fb.Trajectory = traj.Trajectory
		}

		res, err := svc.SubmitFeedback(ctx, args[0], fb)
		if err != nil {
			return err
		}
		fmt.Println(res.Body.Message)
		if res.Body.FeedbackID != "" {
			fmt.Println("Feedback ID:", res.Body.FeedbackID)
		}
		if res.Body.Password != "" {
			fmt.Println("Password:", res.Body.Password)
		}
		return nil
	},
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show server configuration and available models and agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		ctx := cmd.Context()
		svc := newService(cfg)

		server, err := svc.Config(ctx)
		if err != nil {
			return err
		}
		opts, err := svc.AIConfigOptions(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"config": server, "options": opts})
		}
		fmt.Printf("Mode:               %s\n", server.AppMode)
		fmt.Printf("Billing:            %t\n", server.FeatureFlags.EnableBilling)
		fmt.Printf("Models:             %s\n", strings.Join(opts.Models, ", "))
		fmt.Printf("Agents:             %s\n", strings.Join(opts.Agents, ", "))
		fmt.Printf("Security analyzers: %s\n", strings.Join(opts.SecurityAnalyzers, ", "))
		return nil
	},
}
