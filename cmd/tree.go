package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kevinsdooapp/modeshape/internal/cache"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repository"
)

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the subtree at a path",
	Long: `Print the nodes beneath a path, one per line, indented by depth.
Each line shows the node's name, sibling index (when it has same-name
siblings), primary type, and UUID.

Examples:
  modeshape tree
  modeshape tree /cars/sports --depth 2
  modeshape tree -w staging /`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().IntVar(&treeDepth, "depth", -1, "maximum depth to print (-1 for unbounded)")
	rootCmd.AddCommand(treeCmd)
}

func runTree(cmd *cobra.Command, args []string) error {
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

	start := "/"
	if len(args) == 1 {
		start = args[0]
	}
	p, err := path.ParseWith(start, repo.Namespaces())
	if err != nil {
		return err
	}
	node, err := session.Cache().FindNode(p)
	if err != nil {
		return err
	}
	return printTree(repo, session, node, 0)
}

func printTree(repo *repository.Repository, session *repository.Session, node *cache.Node, depth int) error {
	label := repo.Namespaces().FormatPath(node.Path())
	if depth > 0 {
		seg := node.Segment()
		label = repo.Namespaces().FormatName(seg.Name)
		if seg.Index > 1 {
			label = fmt.Sprintf("%s[%d]", label, seg.Index)
		}
	}
	fmt.Printf("%s%s  (%s, %s)\n",
		strings.Repeat("  ", depth), label,
		repo.Namespaces().FormatName(node.PrimaryType()), node.UUID())

	if treeDepth >= 0 && depth >= treeDepth {
		return nil
	}
	segments, err := node.ChildSegments()
	if err != nil {
		return err
	}
	for _, seg := range segments {
		child, err := session.Cache().FindNode(node.Path().Child(seg))
		if err != nil {
			return err
		}
		if err := printTree(repo, session, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
