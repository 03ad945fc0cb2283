package mirror

import (
	"sort"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// tree builds the nested view of the workspace. Folders sort before files,
// then by name.
func (m *Mirror) tree() []*core.FileNode {
	root := &core.FileNode{ID: "/", Kind: core.KindFolder}
	nodes := map[string]*core.FileNode{"/": root}

	var folder func(id string) *core.FileNode
	folder = func(id string) *core.FileNode {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := &core.FileNode{ID: id, Name: core.BaseName(id), Kind: core.KindFolder, Children: []*core.FileNode{}}
		nodes[id] = n
		parent := folder(core.ParentID(id))
		parent.Children = append(parent.Children, n)
		return n
	}

	for id := range m.folders {
		folder(id)
	}
	for id := range m.files {
		parent := folder(core.ParentID(id))
		parent.Children = append(parent.Children, &core.FileNode{ID: id, Name: core.BaseName(id), Kind: core.KindFile})
	}

	for _, n := range nodes {
		sortNodes(n.Children)
	}
	if root.Children == nil {
		return []*core.FileNode{}
	}
	return root.Children
}

func sortNodes(nodes []*core.FileNode) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Kind != nodes[j].Kind {
			return nodes[i].Kind == core.KindFolder
		}
		return nodes[i].Name < nodes[j].Name
	})
}
