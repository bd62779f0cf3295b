package namespace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/namespace"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repoerr"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

func TestBuiltinsAlwaysPresent(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)

	uri, ok := reg.URI(namespace.PrefixNT)
	require.True(t, ok)
	assert.Equal(t, namespace.URINT, uri)

	prefix, ok := reg.Prefix(namespace.URIMD)
	require.True(t, ok)
	assert.Equal(t, namespace.PrefixMD, prefix)
}

func TestRegisterAndResolve(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)

	require.NoError(t, reg.Register("ex", "http://example.com/1.0"))
	uri, ok := reg.URI("ex")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/1.0", uri)

	// Re-registering moves the prefix to the new URI.
	require.NoError(t, reg.Register("ex", "http://example.com/2.0"))
	_, ok = reg.Prefix("http://example.com/1.0")
	assert.False(t, ok)
	prefix, ok := reg.Prefix("http://example.com/2.0")
	require.True(t, ok)
	assert.Equal(t, "ex", prefix)
}

func TestRegisterRejections(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		prefix string
		uri    string
	}{
		{"empty prefix", "", "http://example.com"},
		{"empty uri", "ex", ""},
		{"colon in prefix", "e:x", "http://example.com"},
		{"slash in prefix", "e/x", "http://example.com"},
		{"space in prefix", "e x", "http://example.com"},
		{"builtin nt", namespace.PrefixNT, "http://example.com"},
		{"builtin md", namespace.PrefixMD, "http://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.prefix, tt.uri)
			require.Error(t, err)
			assert.True(t, repoerr.IsKind(err, repoerr.KindConstraintViolation))
		})
	}
}

func TestRegistrationsPersist(t *testing.T) {
	src := testutil.NewMemorySource(t)
	reg, err := namespace.NewRegistry(src)
	require.NoError(t, err)
	require.NoError(t, reg.Register("ex", "http://example.com/1.0"))

	// A registry built over the same store sees the mapping.
	reloaded, err := namespace.NewRegistry(src)
	require.NoError(t, err)
	uri, ok := reloaded.URI("ex")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/1.0", uri)
}

func TestPrefixesSorted(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)
	require.NoError(t, reg.Register("aaa", "http://example.com/aaa"))

	assert.Equal(t, []string{"aaa", "md", "nt"}, reg.Prefixes())
}

func TestFormatName(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)

	assert.Equal(t, "nt:base", reg.FormatName(path.NewName(namespace.URINT, "base")))
	assert.Equal(t, "plain", reg.FormatName(path.LocalName("plain")))

	// No registered prefix falls back to the expanded form.
	unknown := path.NewName("http://example.com/none", "x")
	assert.Equal(t, unknown.String(), reg.FormatName(unknown))
}

func TestFormatPath(t *testing.T) {
	reg, err := namespace.NewRegistry(nil)
	require.NoError(t, err)
	require.NoError(t, reg.Register("ex", "http://example.com/1.0"))

	root := path.Root()
	assert.Equal(t, "/", reg.FormatPath(root))

	p := root.
		Child(path.NewSegment(path.NewName("http://example.com/1.0", "cars"), 1)).
		Child(path.NewSegment(path.LocalName("altima"), 2))
	assert.Equal(t, "/ex:cars/altima[2]", reg.FormatPath(p))
}
