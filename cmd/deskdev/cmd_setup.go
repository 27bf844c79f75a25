package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("DeskDev Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.API.BaseURL = prompt(scanner, "Platform URL", cfg.API.BaseURL)
		cfg.API.APIKey = prompt(scanner, "API key (optional)", cfg.API.APIKey)

		for {
			cfg.Follow.Transport = prompt(scanner, "Follow transport (poll or websocket)", cfg.Follow.Transport)
			if cfg.Follow.Transport == "poll" || cfg.Follow.Transport == "websocket" {
				break
			}
			fmt.Println("Please enter poll or websocket.")
		}

		tokens := prompt(scanner, "Max tokens of tool output shown", strconv.Itoa(cfg.Render.MaxContentTokens))
		if n, err := strconv.Atoi(tokens); err == nil {
			cfg.Render.MaxContentTokens = n
		}

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
