package path

import (
	"strconv"
	"strings"

	"github.com/kevinsdooapp/modeshape/internal/repoerr"
)

// Resolver maps a namespace prefix to its registered URI. The namespace
// registry implements this; tests may pass nil when no prefixed names occur.
type Resolver interface {
	URI(prefix string) (string, bool)
}

// Parse parses an absolute path string with no prefix resolution. Qualified
// segments ("nt:file") fail with InvalidPath; use ParseWith for those.
func Parse(s string) (Path, error) {
	return ParseWith(s, nil)
}

// ParseWith parses an absolute path string, resolving namespace prefixes
// through the given resolver. "." and ".." segments are normalized away.
// A ".." that would climb above the root, an empty segment, or a malformed
// sibling index all fail with InvalidPath.
func ParseWith(s string, resolver Resolver) (Path, error) {
	if s == "" {
		return Path{}, repoerr.New(repoerr.KindInvalidPath, "path is empty")
	}
	if !strings.HasPrefix(s, "/") {
		return Path{}, repoerr.Newf(repoerr.KindInvalidPath, "path %q is not absolute", s)
	}
	if s == "/" {
		return Root(), nil
	}
	raw := strings.Split(strings.TrimPrefix(s, "/"), "/")
	segments := make([]Segment, 0, len(raw))
	for _, part := range raw {
		switch part {
		case "":
			return Path{}, repoerr.Newf(repoerr.KindInvalidPath, "path %q contains an empty segment", s)
		case ".":
			continue
		case "..":
			if len(segments) == 0 {
				return Path{}, repoerr.Newf(repoerr.KindInvalidPath, "path %q climbs above the root", s)
			}
			segments = segments[:len(segments)-1]
			continue
		}
		seg, err := parseSegment(part, resolver)
		if err != nil {
			return Path{}, err
		}
		segments = append(segments, seg)
	}
	return Path{segments: segments}, nil
}

// MustParse parses a path or panics. Intended for tests and constants.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(part string, resolver Resolver) (Segment, error) {
	name := part
	index := 1
	if i := strings.IndexByte(part, '['); i >= 0 {
		if !strings.HasSuffix(part, "]") {
			return Segment{}, repoerr.Newf(repoerr.KindInvalidPath, "segment %q has an unterminated index", part)
		}
		idx, err := strconv.Atoi(part[i+1 : len(part)-1])
		if err != nil || idx < 1 {
			return Segment{}, repoerr.Newf(repoerr.KindInvalidPath, "segment %q has an invalid sibling index", part)
		}
		name = part[:i]
		index = idx
	}
	if name == "" {
		return Segment{}, repoerr.Newf(repoerr.KindInvalidPath, "segment %q has no name", part)
	}
	qualified, err := parseName(name, resolver)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Name: qualified, Index: index}, nil
}

func parseName(s string, resolver Resolver) (Name, error) {
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return LocalName(s), nil
	}
	prefix, local := s[:i], s[i+1:]
	if local == "" {
		return Name{}, repoerr.Newf(repoerr.KindInvalidPath, "name %q has no local part", s)
	}
	if resolver == nil {
		return Name{}, repoerr.Newf(repoerr.KindInvalidPath, "name %q uses prefix %q but no namespace resolver was supplied", s, prefix)
	}
	uri, ok := resolver.URI(prefix)
	if !ok {
		return Name{}, repoerr.Newf(repoerr.KindInvalidPath, "name %q uses unregistered prefix %q", s, prefix)
	}
	return NewName(uri, local), nil
}

// ParseName parses a possibly prefixed name outside of a path context,
// for example a primary type name from configuration.
func ParseName(s string, resolver Resolver) (Name, error) {
	if s == "" {
		return Name{}, repoerr.New(repoerr.KindInvalidPath, "name is empty")
	}
	if strings.ContainsAny(s, "/[]") {
		return Name{}, repoerr.Newf(repoerr.KindInvalidPath, "name %q contains path characters", s)
	}
	return parseName(s, resolver)
}

// HasTrailingIndex reports whether the literal textual form ends with an
// explicit sibling index. Destination paths of structural operations must
// not carry one, even "[1]", which canonicalizes away during parsing.
func HasTrailingIndex(s string) bool {
	return strings.HasSuffix(s, "]")
}
