package swayipc

import (
	sway "github.com/joshuarubin/go-sway"

	"pkt.systems/swayless/schema"
)

// children returns tiling then floating children.
func children(n *sway.Node) []*sway.Node {
	out := make([]*sway.Node, 0, len(n.Nodes)+len(n.FloatingNodes))
	out = append(out, n.Nodes...)
	return append(out, n.FloatingNodes...)
}

// findChild returns the direct child of the given type and name.
func findChild(n *sway.Node, typ, name string) *sway.Node {
	for _, child := range children(n) {
		if string(child.Type) == typ && child.Name == name {
			return child
		}
	}
	return nil
}

// FindWorkspace finds a workspace node on a named output below root.
func FindWorkspace(root *sway.Node, output schema.OutputName, workspace schema.WorkspaceName) *sway.Node {
	out := findChild(root, "output", string(output))
	if out == nil {
		return nil
	}
	return findChild(out, "workspace", string(workspace))
}

// Windows returns the ids of every leaf container below n, tiling first.
func Windows(n *sway.Node) []schema.ContainerID {
	var ids []schema.ContainerID
	var walk func(*sway.Node)
	walk = func(node *sway.Node) {
		kids := children(node)
		if len(kids) == 0 {
			if node != n {
				ids = append(ids, schema.ContainerID(node.ID))
			}
			return
		}
		for _, child := range kids {
			walk(child)
		}
	}
	walk(n)
	return ids
}

// FocusedLeaf follows the focus stack from n down to the most recently
// focused container. It reports false when n has no children.
func FocusedLeaf(n *sway.Node) (*sway.Node, bool) {
	node := n
	for {
		kids := children(node)
		if len(kids) == 0 {
			break
		}
		next := kids[0]
		if len(node.Focus) > 0 {
			for _, child := range kids {
				if child.ID == node.Focus[0] {
					next = child
					break
				}
			}
		}
		node = next
	}
	if node == n {
		return nil, false
	}
	return node, true
}
