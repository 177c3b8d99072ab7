package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gusuku-oknw/peerdiffx/element"
)

// fixture:
//
//	main:    c1 - c2 - c4 - m6 (merges f5)
//	feature:        \ c3 - f5
func fixture() (*Graph, *Branch, *Branch) {
	main := &Branch{ID: "bm", Name: "main", IsDefault: true, HeadID: "m6", CreatedAt: 1}
	feature := &Branch{ID: "bf", Name: "feature", HeadID: "f5", CreatedAt: 2}
	commits := []*Commit{
		{ID: "m6", BranchID: "bm", ParentID: "c4", MergedFromID: "f5", CreatedAt: 60, Seq: 6},
		{ID: "c1", BranchID: "bm", CreatedAt: 10, Seq: 1},
		{ID: "c2", BranchID: "bm", ParentID: "c1", CreatedAt: 20, Seq: 2},
		{ID: "c3", BranchID: "bf", ParentID: "c2", CreatedAt: 30, Seq: 3},
		{ID: "c4", BranchID: "bm", ParentID: "c2", CreatedAt: 40, Seq: 4},
		{ID: "f5", BranchID: "bf", ParentID: "c3", CreatedAt: 50, Seq: 5},
	}
	return NewGraph([]*Branch{main, feature}, commits), main, feature
}

func TestCommitKind(t *testing.T) {
	g, _, _ := fixture()
	c1, _ := g.Commit("c1")
	c2, _ := g.Commit("c2")
	m6, _ := g.Commit("m6")
	assert.Equal(t, KindRoot, c1.Kind())
	assert.Equal(t, KindNormal, c2.Kind())
	assert.Equal(t, KindMerge, m6.Kind())
}

func TestGraph_Branches(t *testing.T) {
	g, main, feature := fixture()

	def, ok := g.DefaultBranch()
	require.True(t, ok)
	assert.Equal(t, main, def)

	b, ok := g.Branch("feature")
	require.True(t, ok)
	assert.Equal(t, feature, b)

	_, ok = g.Branch("nope")
	assert.False(t, ok)
}

func TestGraph_DefaultBranchFallsBackToOldest(t *testing.T) {
	g := NewGraph([]*Branch{{ID: "b2", Name: "late", CreatedAt: 5}, {ID: "b1", Name: "early", CreatedAt: 1}}, nil)
	b, ok := g.DefaultBranch()
	require.True(t, ok)
	assert.Equal(t, "early", b.Name)

	_, ok = NewGraph(nil, nil).DefaultBranch()
	assert.False(t, ok)
}

func TestGraph_Tip(t *testing.T) {
	g, main, _ := fixture()

	tip, ok := g.Tip(main)
	require.True(t, ok)
	assert.Equal(t, "m6", tip.ID)

	// Without a head the latest commit on the branch wins.
	headless := &Branch{ID: "bf", Name: "feature"}
	tip, ok = g.Tip(headless)
	require.True(t, ok)
	assert.Equal(t, "f5", tip.ID)

	_, ok = g.Tip(&Branch{ID: "empty", Name: "empty"})
	assert.False(t, ok)
}

func TestGraph_TipTieBreaksOnSeq(t *testing.T) {
	g := NewGraph(nil, []*Commit{
		{ID: "a", BranchID: "b", CreatedAt: 7, Seq: 1},
		{ID: "b", BranchID: "b", ParentID: "a", CreatedAt: 7, Seq: 2},
	})
	tip, ok := g.Tip(&Branch{ID: "b"})
	require.True(t, ok)
	assert.Equal(t, "b", tip.ID)
}

func TestGraph_EmptyHistory(t *testing.T) {
	g := NewGraph([]*Branch{{ID: "b", Name: "main", IsDefault: true}}, nil)
	assert.True(t, g.Empty())
	b, _ := g.DefaultBranch()
	_, ok := g.Tip(b)
	assert.False(t, ok)
}

func TestGraph_Log(t *testing.T) {
	g, _, _ := fixture()

	var ids []string
	for _, c := range g.Log("m6", 0) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"m6", "c4", "c2", "c1"}, ids)
	assert.Len(t, g.Log("m6", 2), 2)
	assert.Empty(t, g.Log("missing", 0))
}

func TestGraph_Ancestry(t *testing.T) {
	g, _, _ := fixture()

	assert.Len(t, g.Ancestors("m6"), 6)
	assert.True(t, g.IsAncestor("c3", "m6"))
	assert.True(t, g.IsAncestor("c2", "c2"))
	assert.False(t, g.IsAncestor("c4", "f5"))
}

func TestGraph_CommonAncestor(t *testing.T) {
	g, _, _ := fixture()

	tests := []struct {
		a, b string
		want string
	}{
		{"c4", "f5", "c2"},
		{"f5", "c4", "c2"},
		{"m6", "f5", "f5"},
		{"c3", "c3", "c3"},
		{"c1", "m6", "c1"},
	}
	for _, tt := range tests {
		c, ok := g.CommonAncestor(tt.a, tt.b)
		require.True(t, ok, "%s/%s", tt.a, tt.b)
		assert.Equal(t, tt.want, c.ID, "%s/%s", tt.a, tt.b)
	}

	_, ok := g.CommonAncestor("c1", "missing")
	assert.False(t, ok)
}

func TestSnapshot_Elements(t *testing.T) {
	s := Snapshot{
		1: {SlideNumber: 1, Elements: element.Collection{{ID: "a", Kind: element.KindText}}},
		2: {SlideNumber: 2},
	}
	els := s.Elements()
	assert.Len(t, els, 2)
	assert.Equal(t, []string{"a"}, els[1].IDs())
}
