package orgtree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func member(id, reportsTo string, role Role) Member {
	return Member{
		ID:        id,
		FullName:  "Member " + id,
		Email:     id + "@example.com",
		Role:      role,
		ReportsTo: reportsTo,
		IsActive:  true,
	}
}

func childIDs(n *Node) []string {
	ids := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		ids = append(ids, c.Member.ID)
	}
	return ids
}

func TestBuildTreeEmpty(t *testing.T) {
	assert.Nil(t, BuildTree(nil))
	assert.Nil(t, BuildTree([]Member{}))
}

func TestBuildTreeChain(t *testing.T) {
	tree := BuildTree([]Member{
		member("C", "B", RoleStaff),
		member("A", "", RoleOwner),
		member("B", "A", RoleManager),
	})
	require.NotNil(t, tree)
	require.NotNil(t, tree.Root)

	assert.Equal(t, "A", tree.Root.Member.ID)
	assert.Equal(t, []string{"B"}, childIDs(tree.Root))
	b, ok := tree.Node("B")
	require.True(t, ok)
	assert.Equal(t, []string{"C"}, childIDs(b))
	c, _ := tree.Node("C")
	assert.Empty(t, c.Children)
	assert.Equal(t, 3, tree.Len())
	assert.Empty(t, tree.Detached)
	assert.Empty(t, tree.Excluded)
}

func TestBuildTreeTwoCycleFallsBackToFirstMember(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "B", RoleManager),
		member("B", "A", RoleManager),
	})
	require.NotNil(t, tree)

	assert.Equal(t, "A", tree.Root.Member.ID)
	assert.Empty(t, tree.Root.Children)
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, []string{"B"}, tree.Excluded)
	_, ok := tree.Node("B")
	assert.False(t, ok)
}

// With no candidate anywhere the fallback root stands alone; members that
// only report into the cycle through it stay excluded.
func TestBuildTreeFallbackRootKeepsNoReports(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "B", RoleManager),
		member("B", "A", RoleManager),
		member("C", "A", RoleStaff),
	})
	require.NotNil(t, tree)

	assert.Equal(t, "A", tree.Root.Member.ID)
	assert.Empty(t, tree.Root.Children)
	assert.Equal(t, 1, tree.Len())
	assert.Equal(t, []string{"B", "C"}, tree.Excluded)
	assert.Empty(t, tree.Detached)
}

func TestBuildTreeCycleFallbackPrefersTopLevelRole(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "B", RoleStaff),
		member("B", "C", RoleOwner),
		member("C", "A", RoleManager),
	})
	require.NotNil(t, tree)
	assert.Equal(t, "B", tree.Root.Member.ID)
	assert.Equal(t, []string{"A", "C"}, tree.Excluded)
}

func TestBuildTreePrefersTopLevelCandidate(t *testing.T) {
	tree := BuildTree([]Member{
		member("S", "", RoleStaff),
		member("O", "", RoleOwner),
		member("M", "O", RoleManager),
	})
	require.NotNil(t, tree)

	assert.Equal(t, "O", tree.Root.Member.ID)
	assert.Equal(t, []string{"M"}, childIDs(tree.Root))
	require.Len(t, tree.Detached, 1)
	assert.Equal(t, "S", tree.Detached[0].Member.ID)
	assert.Equal(t, 3, tree.Len())
}

func TestBuildTreeFirstCandidateWithoutTopLevel(t *testing.T) {
	tree := BuildTree([]Member{
		member("M1", "", RoleManager),
		member("M2", "", RoleManager),
	})
	require.NotNil(t, tree)
	assert.Equal(t, "M1", tree.Root.Member.ID)
	require.Len(t, tree.Detached, 1)
	assert.Equal(t, "M2", tree.Detached[0].Member.ID)
}

func TestBuildTreeMultipleTopLevelCandidatesUsesInputOrder(t *testing.T) {
	tree := BuildTree([]Member{
		member("O2", "", RoleOwner),
		member("O1", "", RoleOwner),
	})
	require.NotNil(t, tree)
	assert.Equal(t, "O2", tree.Root.Member.ID)
}

func TestBuildTreeDanglingReferenceIsCandidate(t *testing.T) {
	tree := BuildTree([]Member{
		member("X", "missing", RoleOwner),
		member("Y", "X", RoleStaff),
	})
	require.NotNil(t, tree)
	assert.Equal(t, "X", tree.Root.Member.ID)
	assert.Equal(t, []string{"Y"}, childIDs(tree.Root))
}

func TestBuildTreeDetachedBranchKeepsChildren(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "", RoleOwner),
		member("K", "gone", RoleManager),
		member("L", "K", RoleStaff),
	})
	require.NotNil(t, tree)
	require.Len(t, tree.Detached, 1)
	assert.Equal(t, []string{"L"}, childIDs(tree.Detached[0]))
	assert.Equal(t, 3, tree.Len())
}

func TestBuildTreeCycleBesideValidRootIsExcluded(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "", RoleOwner),
		member("B", "C", RoleStaff),
		member("C", "B", RoleStaff),
		member("D", "B", RoleStaff),
		member("E", "A", RoleStaff),
	})
	require.NotNil(t, tree)
	assert.Equal(t, "A", tree.Root.Member.ID)
	assert.Equal(t, []string{"E"}, childIDs(tree.Root))
	assert.Equal(t, []string{"B", "C", "D"}, tree.Excluded)
	assert.Equal(t, 2, tree.Len())
}

func TestBuildTreeSelfReference(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "", RoleOwner),
		member("B", "B", RoleStaff),
	})
	require.NotNil(t, tree)
	assert.Equal(t, []string{"B"}, tree.Excluded)

	alone := BuildTree([]Member{member("S", "S", RoleStaff)})
	require.NotNil(t, alone)
	assert.Equal(t, "S", alone.Root.Member.ID)
	assert.Empty(t, alone.Root.Children)
}

func TestBuildTreeDuplicateIDsFirstWins(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "", RoleOwner),
		member("B", "A", RoleStaff),
		{ID: "B", FullName: "Shadow", Role: RoleStaff},
	})
	require.NotNil(t, tree)
	assert.Equal(t, []string{"B"}, tree.Duplicates)
	b, ok := tree.Node("B")
	require.True(t, ok)
	assert.Equal(t, "Member B", b.Member.FullName)
	assert.Equal(t, 2, tree.Len())
}

func TestBuildTreeCustomTopLevelRole(t *testing.T) {
	tree := BuildTree([]Member{
		member("S", "", RoleStaff),
		member("GM", "", Role("general-manager")),
	}, WithTopLevelRole("general-manager"))
	require.NotNil(t, tree)
	assert.Equal(t, "GM", tree.Root.Member.ID)
}

func TestBuildTreeChildrenKeepInputOrder(t *testing.T) {
	members := []Member{member("A", "", RoleOwner)}
	for i := 0; i < 5; i++ {
		members = append(members, member(fmt.Sprintf("c%d", 4-i), "A", RoleStaff))
	}
	tree := BuildTree(members)
	require.NotNil(t, tree)
	assert.Equal(t, []string{"c4", "c3", "c2", "c1", "c0"}, childIDs(tree.Root))

	again := BuildTree(members)
	assert.Equal(t, childIDs(tree.Root), childIDs(again.Root))
}

func TestBuildTreeEveryMemberOnceForAcyclicInput(t *testing.T) {
	members := []Member{member("root", "", RoleOwner)}
	for i := 0; i < 40; i++ {
		parent := "root"
		if i > 0 {
			parent = fmt.Sprintf("m%d", i/3)
		}
		members = append(members, member(fmt.Sprintf("m%d", i), parent, RoleStaff))
	}
	members = append(members, member("lost", "nobody", RoleStaff))

	tree := BuildTree(members)
	require.NotNil(t, tree)
	assert.Equal(t, len(members), tree.Len())

	seen := map[string]int{}
	roots := 0
	tree.Walk(func(n *Node, depth int) bool {
		seen[n.Member.ID]++
		if depth == 0 && n == tree.Root {
			roots++
		}
		return true
	})
	assert.Equal(t, 1, roots)
	assert.Len(t, seen, len(members))
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
}

func TestTreeWalkStops(t *testing.T) {
	tree := BuildTree([]Member{
		member("A", "", RoleOwner),
		member("B", "A", RoleStaff),
		member("C", "A", RoleStaff),
	})
	visited := 0
	tree.Walk(func(n *Node, depth int) bool {
		visited++
		return n.Member.ID != "B"
	})
	assert.Equal(t, 2, visited)
}

func TestNilTreeAccessors(t *testing.T) {
	var tree *Tree
	assert.Equal(t, 0, tree.Len())
	_, ok := tree.Node("A")
	assert.False(t, ok)
	tree.Walk(func(*Node, int) bool {
		t.Fatal("unexpected visit")
		return false
	})
}
