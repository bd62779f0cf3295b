package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var namespacesCmd = &cobra.Command{
	Use:   "namespaces",
	Short: "List registered namespace mappings",
	RunE:  runNamespaces,
}

var namespaceRegisterCmd = &cobra.Command{
	Use:   "namespaces:register <prefix> <uri>",
	Short: "Register a namespace prefix",
	Args:  cobra.ExactArgs(2),
	RunE:  runNamespaceRegister,
}

func init() {
	rootCmd.AddCommand(namespacesCmd)
	rootCmd.AddCommand(namespaceRegisterCmd)
}

func runNamespaces(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	for _, prefix := range repo.Namespaces().Prefixes() {
		uri, _ := repo.Namespaces().URI(prefix)
		fmt.Printf("%s = %s\n", prefix, uri)
	}
	return nil
}

func runNamespaceRegister(cmd *cobra.Command, args []string) error {
	repo, cleanup, err := openRepository()
	if err != nil {
		return err
	}
	defer cleanup()

	return repo.Namespaces().Register(args[0], args[1])
}
