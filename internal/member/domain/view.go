package domain

import "github.com/smallbiznis/orgchart/internal/orgtree"

type TreeNode struct {
	ID        string      `json:"id"`
	FullName  string      `json:"full_name"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	ReportsTo *string     `json:"reports_to"`
	IsActive  bool        `json:"is_active"`
	Children  []*TreeNode `json:"children"`
}

// TreeView is the JSON shape of an org tree.
type TreeView struct {
	Root       *TreeNode   `json:"root"`
	Detached   []*TreeNode `json:"detached"`
	Excluded   []string    `json:"excluded"`
	Duplicates []string    `json:"duplicates"`
	Size       int         `json:"size"`
}

func NewTreeView(tree *orgtree.Tree) TreeView {
	view := TreeView{
		Detached:   []*TreeNode{},
		Excluded:   []string{},
		Duplicates: []string{},
	}
	if tree == nil {
		return view
	}

	view.Root = toTreeNode(tree.Root)
	for _, d := range tree.Detached {
		view.Detached = append(view.Detached, toTreeNode(d))
	}
	view.Excluded = append(view.Excluded, tree.Excluded...)
	view.Duplicates = append(view.Duplicates, tree.Duplicates...)
	view.Size = tree.Len()
	return view
}

func toTreeNode(n *orgtree.Node) *TreeNode {
	if n == nil {
		return nil
	}
	out := &TreeNode{
		ID:       n.Member.ID,
		FullName: n.Member.FullName,
		Email:    n.Member.Email,
		Role:     string(n.Member.Role),
		IsActive: n.Member.IsActive,
		Children: make([]*TreeNode, 0, len(n.Children)),
	}
	if n.Member.ReportsTo != "" {
		reportsTo := n.Member.ReportsTo
		out.ReportsTo = &reportsTo
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, toTreeNode(child))
	}
	return out
}
