package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/repo"
	"github.com/user/deskdev/pkg/api"
)

func init() {
	rootCmd.AddCommand(repoCmd)
	repoCmd.AddCommand(repoListCmd, repoSearchCmd, repoBranchesCmd)
}

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Browse git repositories available to the agent",
}

func printRepositories(repos []api.Repository) error {
	if len(repos) == 0 {
		fmt.Println("No repositories found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPROVIDER\tPUBLIC\tPUSHED")
	for _, r := range repos {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", r.FullName, r.GitProvider, r.IsPublic, r.PushedAt)
	}
	return w.Flush()
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your repositories, most recently pushed first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		repos, err := newService(cfg).UserRepositories(cmd.Context())
		if err != nil {
			return err
		}
		return printRepositories(repos)
	},
}

var repoSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search your repositories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		repos, err := newService(cfg).SearchRepositories(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printRepositories(repos)
	},
}

var repoBranchesCmd = &cobra.Command{
	Use:   "branches <owner/repo | github url>",
	Short: "List branches of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ok := repo.FullName(args[0])
		if !ok {
			return fmt.Errorf("not a repository: %s", args[0])
		}
		cfg := loadConfig()
		branches, err := newService(cfg).RepositoryBranches(cmd.Context(), name)
		if err != nil {
			return err
		}
		if len(branches) == 0 {
			fmt.Println("No branches found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BRANCH\tCOMMIT\tPROTECTED")
		for _, b := range branches {
			sha := b.CommitSHA
			if len(sha) > 7 {
				sha = sha[:7]
			}
			fmt.Fprintf(w, "%s\t%s\t%t\n", b.Name, sha, b.Protected)
		}
		return w.Flush()
	},
}
