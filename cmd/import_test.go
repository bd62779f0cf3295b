package cmd

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kevinsdooapp/modeshape/internal/graph/memory"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/repository"
)

func importSession(t *testing.T) (*repository.Repository, *repository.Session) {
	t.Helper()
	src := memory.NewSource("import-test", nodetype.NameRoot, "default")
	repo, err := repository.New(repository.Config{Source: src})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	sess, err := repo.Login(context.Background(), "default", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Logout() })
	return repo, sess
}

func TestDecodeSubtree(t *testing.T) {
	doc, err := decodeSubtree(strings.NewReader(`
name: cars
type: nt:unstructured
properties:
  maker: Nissan
  doors: 4
  tags: [sedan, hybrid]
children:
  - name: altima
  - name: altima
`))
	require.NoError(t, err)
	require.Equal(t, "cars", doc.Name)
	require.Equal(t, "nt:unstructured", doc.Type)
	require.Len(t, doc.Properties, 3)
	require.Len(t, doc.Children, 2)
}

func TestDecodeSubtreeErrors(t *testing.T) {
	_, err := decodeSubtree(strings.NewReader(`children: [{name: orphan}]`))
	require.Error(t, err, "document without a name must be rejected")

	_, err = decodeSubtree(strings.NewReader(`name: x
unknown_field: true`))
	require.Error(t, err, "unknown fields must be rejected")
}

func TestBuildSubtree(t *testing.T) {
	repo, sess := importSession(t)

	doc, err := decodeSubtree(strings.NewReader(`
name: cars
properties:
  maker: Nissan
  tags: [sedan, hybrid]
children:
  - name: altima
  - name: altima
    properties:
      trim: SL
`))
	require.NoError(t, err)

	root, err := sess.Cache().Root()
	require.NoError(t, err)
	node, err := buildSubtree(sess.Cache(), repo.Namespaces(), root, doc)
	require.NoError(t, err)
	require.NoError(t, sess.Save(context.Background()))

	// A second session sees the saved tree, same-name siblings included.
	check, err := repo.Login(context.Background(), "default", nil)
	require.NoError(t, err)
	defer func() { _ = check.Logout() }()

	cars, err := check.Cache().FindNode(mustPath(t, repo, "/cars"))
	require.NoError(t, err)
	require.Equal(t, node.UUID(), cars.UUID())

	maker, ok := cars.Property(mustName(t, repo, "maker"))
	require.True(t, ok)
	require.Equal(t, []string{"Nissan"}, maker.Values)
	tags, ok := cars.Property(mustName(t, repo, "tags"))
	require.True(t, ok)
	require.Equal(t, []string{"sedan", "hybrid"}, tags.Values)

	second, err := check.Cache().FindNode(mustPath(t, repo, "/cars/altima[2]"))
	require.NoError(t, err)
	trim, ok := second.Property(mustName(t, repo, "trim"))
	require.True(t, ok)
	require.Equal(t, []string{"SL"}, trim.Values)
}

func TestBuildSubtreeRejectsNonScalarProperty(t *testing.T) {
	repo, sess := importSession(t)

	doc, err := decodeSubtree(strings.NewReader(`
name: broken
properties:
  nested:
    inner: true
`))
	require.NoError(t, err)

	root, err := sess.Cache().Root()
	require.NoError(t, err)
	_, err = buildSubtree(sess.Cache(), repo.Namespaces(), root, doc)
	require.ErrorContains(t, err, "nested")
}

func mustPath(t *testing.T, repo *repository.Repository, s string) path.Path {
	t.Helper()
	p, err := path.ParseWith(s, repo.Namespaces())
	require.NoError(t, err)
	return p
}

func mustName(t *testing.T, repo *repository.Repository, s string) path.Name {
	t.Helper()
	n, err := path.ParseName(s, repo.Namespaces())
	require.NoError(t, err)
	return n
}
