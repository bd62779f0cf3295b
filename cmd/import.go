package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kevinsdooapp/modeshape/internal/cache"
	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/namespace"
	"github.com/kevinsdooapp/modeshape/internal/path"
)

var importCmd = &cobra.Command{
	Use:   "import <parent-path> [file]",
	Short: "Import a YAML subtree under a node",
	Long: `Import a subtree described in YAML beneath the node at parent-path,
then save. With no file argument the document is read from stdin.

The document is one node with optional properties and children:

  name: cars
  type: nt:unstructured
  properties:
    maker: Nissan
    tags: [sedan, hybrid]
  children:
    - name: altima

Examples:
  modeshape import / fixtures/cars.yaml
  cat cars.yaml | modeshape import /inventory`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

// subtreeDoc is the YAML shape of one imported node. Property values may be
// scalars or sequences; sequences become multi-valued string properties.
type subtreeDoc struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
	Children   []subtreeDoc   `yaml:"children,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
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

	var r io.Reader = os.Stdin
	if len(args) == 2 {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	doc, err := decodeSubtree(r)
	if err != nil {
		return err
	}

	p, err := path.ParseWith(args[0], repo.Namespaces())
	if err != nil {
		return err
	}
	parent, err := session.Cache().FindNode(p)
	if err != nil {
		return err
	}
	root, err := buildSubtree(session.Cache(), repo.Namespaces(), parent, doc)
	if err != nil {
		return err
	}
	if err := session.Save(context.Background()); err != nil {
		return err
	}
	fmt.Printf("imported %s (%s)\n", repo.Namespaces().FormatPath(root.Path()), root.UUID())
	return nil
}

func decodeSubtree(r io.Reader) (subtreeDoc, error) {
	var doc subtreeDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return doc, fmt.Errorf("decoding subtree document: %w", err)
	}
	if doc.Name == "" {
		return doc, fmt.Errorf("subtree document is missing a node name")
	}
	return doc, nil
}

// buildSubtree creates the node described by doc beneath parent, properties
// and children included, returning the created node.
func buildSubtree(c *cache.SessionCache, ns *namespace.Registry, parent *cache.Node, doc subtreeDoc) (*cache.Node, error) {
	name, err := path.ParseName(doc.Name, ns)
	if err != nil {
		return nil, err
	}
	var primaryType path.Name
	if doc.Type != "" {
		if primaryType, err = path.ParseName(doc.Type, ns); err != nil {
			return nil, err
		}
	}
	node, err := c.CreateChild(parent, name, primaryType)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(doc.Properties))
	for k := range doc.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		propName, err := path.ParseName(k, ns)
		if err != nil {
			return nil, err
		}
		prop, err := propertyFromYAML(propName, doc.Properties[k])
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", k, err)
		}
		if err := c.SetProperty(node, prop); err != nil {
			return nil, err
		}
	}

	for _, child := range doc.Children {
		if child.Name == "" {
			return nil, fmt.Errorf("child of %q is missing a node name", doc.Name)
		}
		if _, err := buildSubtree(c, ns, node, child); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func propertyFromYAML(name path.Name, value any) (graph.Property, error) {
	switch v := value.(type) {
	case []any:
		values := make([]string, len(v))
		for i, item := range v {
			s, ok := scalarString(item)
			if !ok {
				return graph.Property{}, fmt.Errorf("value %d is not a scalar", i)
			}
			values[i] = s
		}
		return graph.NewMultiProperty(name, graph.PropString, values...), nil
	default:
		s, ok := scalarString(v)
		if !ok {
			return graph.Property{}, fmt.Errorf("value is not a scalar")
		}
		return graph.NewProperty(name, graph.PropString, s), nil
	}
}

func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case bool, int, int64, uint64, float64:
		return fmt.Sprintf("%v", s), true
	default:
		return "", false
	}
}
