package graph

import (
	"github.com/wudi/colorkit/object"
)

// Traverse visits root and every node upstream of it depth first, each
// node once, emitting Visited with the depth as data. fn returning false
// stops the walk. The visited nodes are returned in visit order.
func Traverse(root *Node, fn func(n *Node, depth int) bool) []*Node {
	var order []*Node
	walk(root, map[object.ID]bool{}, func(n *Node, depth int) bool {
		order = append(order, n)
		n.Env().Emit(n, object.SignalVisited, depth)
		if fn != nil {
			return fn(n, depth)
		}
		return true
	}, 0)
	return order
}

func walk(n *Node, seen map[object.ID]bool, fn func(*Node, int) bool, depth int) bool {
	if n == nil || seen[n.ID()] {
		return true
	}
	seen[n.ID()] = true
	if !fn(n, depth) {
		return false
	}
	for i := range n.plugs {
		if !walk(n.Upstream(i), seen, fn, depth+1) {
			return false
		}
	}
	return true
}
