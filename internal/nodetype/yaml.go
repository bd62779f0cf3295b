package nodetype

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// typeFile is the YAML document shape for node type definition files:
//
//	types:
//	  - name: md:vehicle
//	    supertypes: [nt:base]
//	    children:
//	      - name: md:engine
//	        required: [md:engine]
//	        default: md:engine
//	        mandatory: true
//	        sns: false
//	    properties:
//	      - name: md:maker
//	        type: string
type typeFile struct {
	Types []typeSpec `yaml:"types"`
}

type typeSpec struct {
	Name       string         `yaml:"name"`
	Supertypes []string       `yaml:"supertypes"`
	Children   []childSpec    `yaml:"children"`
	Properties []propertySpec `yaml:"properties"`
}

type childSpec struct {
	Name      string   `yaml:"name"` // empty for the residual definition
	Required  []string `yaml:"required"`
	Default   string   `yaml:"default"`
	Mandatory bool     `yaml:"mandatory"`
	SNS       bool     `yaml:"sns"`
}

type propertySpec struct {
	Name      string `yaml:"name"` // empty for the residual definition
	Type      string `yaml:"type"`
	Multiple  bool   `yaml:"multiple"`
	Mandatory bool   `yaml:"mandatory"`
}

// ParseTypes decodes a YAML node type document, resolving prefixed names
// through the resolver.
func ParseTypes(data []byte, resolver path.Resolver) ([]*NodeType, error) {
	var file typeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, repoerr.Wrap(repoerr.KindConstraintViolation, "parsing node type document", err)
	}
	types := make([]*NodeType, 0, len(file.Types))
	for _, spec := range file.Types {
		t, err := spec.toType(resolver)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// LoadTypesFile reads and parses a node type definition file.
func LoadTypesFile(filename string, resolver path.Resolver) ([]*NodeType, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // G304: operator-supplied definitions path
	if err != nil {
		return nil, fmt.Errorf("reading node type file: %w", err)
	}
	return ParseTypes(data, resolver)
}

func (s typeSpec) toType(resolver path.Resolver) (*NodeType, error) {
	if s.Name == "" {
		return nil, repoerr.New(repoerr.KindConstraintViolation, "node type has no name")
	}
	name, err := path.ParseName(s.Name, resolver)
	if err != nil {
		return nil, err
	}
	t := &NodeType{Name: name}
	if len(s.Supertypes) == 0 {
		t.Supertypes = []path.Name{NameBase}
	}
	for _, super := range s.Supertypes {
		sn, err := path.ParseName(super, resolver)
		if err != nil {
			return nil, err
		}
		t.Supertypes = append(t.Supertypes, sn)
	}
	for _, child := range s.Children {
		def, err := child.toDefinition(resolver)
		if err != nil {
			return nil, err
		}
		t.ChildDefinitions = append(t.ChildDefinitions, def)
	}
	for _, prop := range s.Properties {
		def, err := prop.toDefinition(resolver)
		if err != nil {
			return nil, err
		}
		t.PropertyDefinitions = append(t.PropertyDefinitions, def)
	}
	return t, nil
}

func (s childSpec) toDefinition(resolver path.Resolver) (NodeDefinition, error) {
	def := NodeDefinition{Mandatory: s.Mandatory, AllowsSNS: s.SNS}
	var err error
	if s.Name != "" {
		if def.Name, err = path.ParseName(s.Name, resolver); err != nil {
			return NodeDefinition{}, err
		}
	}
	for _, required := range s.Required {
		rn, err := path.ParseName(required, resolver)
		if err != nil {
			return NodeDefinition{}, err
		}
		def.RequiredTypes = append(def.RequiredTypes, rn)
	}
	if s.Default != "" {
		if def.DefaultType, err = path.ParseName(s.Default, resolver); err != nil {
			return NodeDefinition{}, err
		}
	}
	return def, nil
}

func (s propertySpec) toDefinition(resolver path.Resolver) (PropertyDefinition, error) {
	def := PropertyDefinition{
		Type:      graph.ParsePropertyType(s.Type),
		Multiple:  s.Multiple,
		Mandatory: s.Mandatory,
	}
	if s.Name != "" {
		name, err := path.ParseName(s.Name, resolver)
		if err != nil {
			return PropertyDefinition{}, err
		}
		def.Name = name
	}
	return def, nil
}
