package path

// Name is a namespace-qualified local name. Two names are equal when both the
// namespace URI and the local part match; the prefix used in any textual form
// is a presentation concern owned by the namespace registry.
type Name struct {
	Namespace string // namespace URI, empty for unqualified names
	Local     string
}

// NewName creates a qualified name from a namespace URI and local part.
func NewName(namespace, local string) Name {
	return Name{Namespace: namespace, Local: local}
}

// LocalName creates an unqualified name.
func LocalName(local string) Name {
	return Name{Local: local}
}

// IsEmpty reports whether the name has no local part.
func (n Name) IsEmpty() bool {
	return n.Local == ""
}

// String returns the expanded form of the name: "{uri}local" for qualified
// names, or just the local part when no namespace is set.
func (n Name) String() string {
	if n.Namespace == "" {
		return n.Local
	}
	return "{" + n.Namespace + "}" + n.Local
}
