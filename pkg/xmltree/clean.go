package xmltree

import "strings"

// Clean returns a copy of node with whitespace-only strings removed from
// every list, recursively. Maps and lists are copied; node is not modified.
func Clean(node any) any {
	switch n := node.(type) {
	case Tree:
		return Tree(cleanMap(n))
	case map[string]any:
		return cleanMap(n)
	case []any:
		out := make([]any, 0, len(n))
		for _, item := range n {
			if s, ok := item.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			out = append(out, Clean(item))
		}
		return out
	default:
		return node
	}
}

func cleanMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clean(v)
	}
	return out
}
