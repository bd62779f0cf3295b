package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

var mknodeType string
var mknodeProps []string

var mknodeCmd = &cobra.Command{
	Use:   "mknode <path>",
	Short: "Create a node",
	Long: `Create a node at the given path and save. The parent must exist.

Examples:
  modeshape mknode /cars
  modeshape mknode /cars/altima --type nt:unstructured --prop maker=Nissan`,
	Args: cobra.ExactArgs(1),
	RunE: runMknode,
}

var rmnodeCmd = &cobra.Command{
	Use:   "rmnode <path>",
	Short: "Remove a node and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE:  runRmnode,
}

var setpropCmd = &cobra.Command{
	Use:   "setprop <path> <name> <value>...",
	Short: "Set a property on a node",
	Long: `Set a string property on the node at the given path and save.
Multiple values make the property multi-valued.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runSetprop,
}

func init() {
	mknodeCmd.Flags().StringVar(&mknodeType, "type", "", "primary type for the new node (default from the parent's child definition)")
	mknodeCmd.Flags().StringArrayVar(&mknodeProps, "prop", nil, "property to set, as name=value (repeatable)")
	rootCmd.AddCommand(mknodeCmd)
	rootCmd.AddCommand(rmnodeCmd)
	rootCmd.AddCommand(setpropCmd)
}

func runMknode(cmd *cobra.Command, args []string) error {
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

	p, err := path.ParseWith(args[0], repo.Namespaces())
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return fmt.Errorf("the root node always exists")
	}
	parent, err := session.Cache().FindNode(p.Parent())
	if err != nil {
		return err
	}
	var primaryType path.Name
	if mknodeType != "" {
		if primaryType, err = path.ParseName(mknodeType, repo.Namespaces()); err != nil {
			return err
		}
	}
	node, err := session.Cache().CreateChild(parent, p.LastSegment().Name, primaryType)
	if err != nil {
		return err
	}
	for _, kv := range mknodeProps {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("property %q is not in name=value form", kv)
		}
		propName, err := path.ParseName(name, repo.Namespaces())
		if err != nil {
			return err
		}
		if err := session.Cache().SetProperty(node, graph.NewProperty(propName, graph.PropString, value)); err != nil {
			return err
		}
	}
	if err := session.Save(context.Background()); err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", repo.Namespaces().FormatPath(node.Path()), node.UUID())
	return nil
}

func runRmnode(cmd *cobra.Command, args []string) error {
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

	p, err := path.ParseWith(args[0], repo.Namespaces())
	if err != nil {
		return err
	}
	node, err := session.Cache().FindNode(p)
	if err != nil {
		return err
	}
	if err := session.Cache().MarkDeleted(node); err != nil {
		return err
	}
	return session.Save(context.Background())
}

func runSetprop(cmd *cobra.Command, args []string) error {
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

	p, err := path.ParseWith(args[0], repo.Namespaces())
	if err != nil {
		return err
	}
	node, err := session.Cache().FindNode(p)
	if err != nil {
		return err
	}
	name, err := path.ParseName(args[1], repo.Namespaces())
	if err != nil {
		return err
	}
	values := args[2:]
	var prop graph.Property
	if len(values) == 1 {
		prop = graph.NewProperty(name, graph.PropString, values[0])
	} else {
		prop = graph.NewMultiProperty(name, graph.PropString, values...)
	}
	if err := session.Cache().SetProperty(node, prop); err != nil {
		return err
	}
	return session.Save(context.Background())
}
