package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	copyFromWorkspace   string
	cloneRemoveExisting bool
)

var copyCmd = &cobra.Command{
	Use:   "copy <src> <dest>",
	Short: "Copy a subtree, assigning fresh identities",
	Long: `Copy the subtree at src to dest. Every copied node gets a fresh UUID;
the source is left untouched. With --from-workspace the source is read from
another workspace.

Examples:
  modeshape copy /cars/altima /archive/altima
  modeshape copy --from-workspace staging /cars /cars`,
	Args: cobra.ExactArgs(2),
	RunE: runCopy,
}

var moveCmd = &cobra.Command{
	Use:   "move <src> <dest>",
	Short: "Move a node, preserving its identity",
	Args:  cobra.ExactArgs(2),
	RunE:  runMove,
}

var cloneCmd = &cobra.Command{
	Use:   "clone <src-workspace> <src> <dest>",
	Short: "Clone a subtree from another workspace, preserving identities",
	Long: `Clone the subtree at src in src-workspace to dest in the current
workspace, keeping every node's UUID. Identity collisions fail the clone
unless --remove-existing removes the colliding nodes first.`,
	Args: cobra.ExactArgs(3),
	RunE: runClone,
}

func init() {
	copyCmd.Flags().StringVar(&copyFromWorkspace, "from-workspace", "", "workspace to copy from (default: the current workspace)")
	cloneCmd.Flags().BoolVar(&cloneRemoveExisting, "remove-existing", false, "remove destination nodes whose UUIDs collide with incoming ones")
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(cloneCmd)
}

func runCopy(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := login(repo)
	if err != nil {
		return err
	}
	defer func() { _ = session.Logout() }()

	ctx := context.Background()
	if copyFromWorkspace != "" {
		return session.Workspace().CopyFrom(ctx, copyFromWorkspace, args[0], args[1])
	}
	return session.Workspace().Copy(ctx, args[0], args[1])
}

func runMove(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := login(repo)
	if err != nil {
		return err
	}
	defer func() { _ = session.Logout() }()

	return session.Workspace().Move(context.Background(), args[0], args[1])
}

func runClone(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := login(repo)
	if err != nil {
		return err
	}
	defer func() { _ = session.Logout() }()

	return session.Workspace().Clone(context.Background(), args[0], args[1], args[2], cloneRemoveExisting)
}
