package memory_test

import (
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kevinsdooapp/modeshape/internal/graph"
	"github.com/kevinsdooapp/modeshape/internal/nodetype"
	"github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/testutil"
)

// Same-name-sibling indices must stay contiguous 1..N through any sequence
// of creations and deletions, with surviving siblings keeping their relative
// order.
func TestSiblingIndicesStayContiguous(t *testing.T) {
	itemName := path.LocalName("item")
	payloadName := path.LocalName("payload")

	rapid.Check(t, func(rt *rapid.T) {
		src := testutil.NewMemorySource(t)
		conn, err := src.Connect("default")
		require.NoError(t, err)
		defer conn.Close()

		parentPath, err := path.Parse("/list")
		require.NoError(t, err)
		require.NoError(t, conn.Apply([]graph.Change{{
			Kind:        graph.ChangeCreateNode,
			ParentPath:  path.Root(),
			Name:        path.LocalName("list"),
			UUID:        uuid.New(),
			PrimaryType: nodetype.NameUnstructured,
		}}))

		var payloads []string
		serial := 0

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(payloads) == 0 || rapid.Bool().Draw(rt, "create") {
				serial++
				payload := strconv.Itoa(serial)
				err := conn.Apply([]graph.Change{{
					Kind:        graph.ChangeCreateNode,
					ParentPath:  parentPath,
					Name:        itemName,
					UUID:        uuid.New(),
					PrimaryType: nodetype.NameUnstructured,
					Properties:  []graph.Property{graph.NewProperty(payloadName, graph.PropString, payload)},
				}})
				require.NoError(rt, err)
				payloads = append(payloads, payload)
			} else {
				victim := rapid.IntRange(1, len(payloads)).Draw(rt, "victim")
				target := parentPath.Child(path.NewSegment(itemName, victim))
				require.NoError(rt, conn.Apply([]graph.Change{{Kind: graph.ChangeDeleteNode, Path: target}}))
				payloads = append(payloads[:victim-1], payloads[victim:]...)
			}

			parent, err := conn.ReadNode(parentPath)
			require.NoError(rt, err)
			require.Len(rt, parent.Children, len(payloads))
			for j, child := range parent.Children {
				require.Equal(rt, j+1, child.Index, "index gap at position %d", j)

				rec, err := conn.ReadNode(parentPath.Child(child.Segment()))
				require.NoError(rt, err)
				prop, ok := rec.Property(payloadName)
				require.True(rt, ok)
				require.Equal(rt, payloads[j], prop.First(), "order broke at position %d", j)
			}
		}
	})
}
