package chart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(id int64) *int64 { return &id }

func TestNewTreeAcceptsAnyOrder(t *testing.T) {
	tree, err := NewTree([]AccountGroup{
		{ID: 3, Code: "1.1.1", Name: "Banks", Nature: NatureAssets, ParentID: ptr(2)},
		{ID: 1, Code: "1", Name: "Assets", Nature: NatureAssets},
		{ID: 2, Code: "1.1", Name: "Current", Nature: NatureAssets, ParentID: ptr(1)},
		{ID: 4, Code: "2", Name: "Income", Nature: NatureIncome},
	}, []Ledger{{ID: 10, Code: "1.1.1.1", Name: "HBL", GroupID: 3}})
	require.NoError(t, err)
	require.Equal(t, 4, tree.Len())

	nature, ok := tree.NatureOf(3)
	require.True(t, ok)
	require.Equal(t, NatureAssets, nature)

	root, ok := tree.Root(3)
	require.True(t, ok)
	require.Equal(t, int64(1), root.ID)
	require.Equal(t, []int64{2, 3}, tree.Descendants(1))

	var visited []string
	tree.Walk(func(depth int, n *Node) { visited = append(visited, n.Group.Code) })
	require.Equal(t, []string{"1", "1.1", "1.1.1", "2"}, visited)

	node, _ := tree.Node(3)
	require.Len(t, node.Ledgers, 1)
}

func TestNewTreeRejectsBrokenShapes(t *testing.T) {
	_, err := NewTree([]AccountGroup{{ID: 1, ParentID: ptr(1)}}, nil)
	require.ErrorIs(t, err, ErrSelfParent)

	_, err = NewTree([]AccountGroup{{ID: 1, ParentID: ptr(2)}, {ID: 2, ParentID: ptr(1)}}, nil)
	require.ErrorIs(t, err, ErrCycle)

	_, err = NewTree([]AccountGroup{{ID: 1, ParentID: ptr(9)}}, nil)
	require.ErrorIs(t, err, ErrGroupNotFound)

	_, err = NewTree([]AccountGroup{{ID: 1, Nature: NatureAssets}}, []Ledger{{ID: 5, GroupID: 7}})
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestTreeMoveKeepsAcyclic(t *testing.T) {
	tree, err := NewTree([]AccountGroup{
		{ID: 1, Code: "1", Nature: NatureAssets},
		{ID: 2, Code: "1.1", ParentID: ptr(1)},
		{ID: 3, Code: "1.1.1", ParentID: ptr(2)},
	}, nil)
	require.NoError(t, err)

	require.ErrorIs(t, tree.Move(2, ptr(3)), ErrCycle)
	require.ErrorIs(t, tree.Move(2, ptr(2)), ErrSelfParent)
	require.NoError(t, tree.Move(3, nil))
	require.Len(t, tree.Roots(), 2)
	require.Empty(t, tree.Children(2))
}

func TestSuffix(t *testing.T) {
	n, err := Suffix("1.2.14")
	require.NoError(t, err)
	require.Equal(t, 14, n)

	n, err = Suffix("3")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	for _, bad := range []string{"", "1.", "1.x", "1.0"} {
		_, err := Suffix(bad)
		require.ErrorIs(t, err, ErrMalformedCode, bad)
	}
}
