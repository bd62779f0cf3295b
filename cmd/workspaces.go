package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "List the workspaces in the repository",
	RunE:  runWorkspaces,
}

var workspacesCreateCmd = &cobra.Command{
	Use:   "workspaces:create <name>",
	Short: "Create an empty workspace",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspacesCreate,
}

func init() {
	rootCmd.AddCommand(workspacesCmd)
	rootCmd.AddCommand(workspacesCreateCmd)
}

func runWorkspaces(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	names, err := repo.WorkspaceNames(context.Background())
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runWorkspacesCreate(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := repo.CreateWorkspace(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("created workspace %s\n", args[0])
	return nil
}
