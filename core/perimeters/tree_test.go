package perimeters

import (
	"testing"

	"github.com/stretchr/testify/require"

	"worksafety/core/store"
)

func id(v int64) *int64 { return &v }

func sampleTree() *Tree {
	return NewTree([]store.Perimeter{
		{ID: 1, ExternalID: "A", Name: "Plant", DisplayOrder: 2},
		{ID: 2, ExternalID: "B", Name: "Office", DisplayOrder: 1},
		{ID: 3, ExternalID: "A1", Name: "Line 1", DisplayOrder: 5, ParentID: id(1)},
		{ID: 4, ExternalID: "A0", Name: "Dock", DisplayOrder: 3, ParentID: id(1)},
		{ID: 5, ExternalID: "A1x", Name: "Press", DisplayOrder: 1, ParentID: id(3)},
	})
}

func TestDepthAndLabel(t *testing.T) {
	tree := sampleTree()
	require.Equal(t, 0, tree.Depth(1))
	require.Equal(t, 1, tree.Depth(3))
	require.Equal(t, 2, tree.Depth(5))
	require.Equal(t, "[A] Plant", tree.Label(1))
	require.Equal(t, "--- --- [A1x] Press", tree.Label(5))
	require.Equal(t, "", tree.Label(99))
}

func TestOrderedIsPreOrderByDisplayOrder(t *testing.T) {
	var got []int64
	for _, n := range sampleTree().Ordered() {
		got = append(got, n.ID)
	}
	require.Equal(t, []int64{2, 1, 4, 3, 5}, got)
}

func TestOrderedKeepsOrphans(t *testing.T) {
	tree := NewTree([]store.Perimeter{
		{ID: 7, ExternalID: "X", Name: "Orphan", ParentID: id(42)},
		{ID: 8, ExternalID: "Y", Name: "Root"},
	})
	require.Len(t, tree.Ordered(), 2)
	require.Equal(t, 0, tree.Depth(7))
}

func TestWouldCycle(t *testing.T) {
	tree := sampleTree()
	require.True(t, tree.WouldCycle(1, 1))
	require.True(t, tree.WouldCycle(1, 5))
	require.True(t, tree.WouldCycle(3, 5))
	require.False(t, tree.WouldCycle(5, 4))
	require.False(t, tree.WouldCycle(0, 5))
	require.False(t, tree.WouldCycle(2, 0))
}

func TestPutReparents(t *testing.T) {
	tree := sampleTree()
	tree.Put(Node{ID: 5, ParentID: 2, ExternalID: "A1x", Name: "Press", DisplayOrder: 1})
	require.Equal(t, 1, tree.Depth(5))
	var got []int64
	for _, n := range tree.Ordered() {
		got = append(got, n.ID)
	}
	require.Equal(t, []int64{2, 5, 1, 4, 3}, got)
}

func TestCheckSite(t *testing.T) {
	require.NoError(t, CheckSite(nil, nil))
	require.NoError(t, CheckSite(nil, id(3)))
	require.NoError(t, CheckSite(id(3), id(3)))
	require.Error(t, CheckSite(id(3), id(4)))
	require.Error(t, CheckSite(id(3), nil))
}
