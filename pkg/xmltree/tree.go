package xmltree

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// Reserved keys.
const (
	TextKey       = "_text"
	CommentKey    = "_comment"
	AttributesKey = "_attributes"
)

// ErrEmptyDocument is returned when the input holds no root element.
var ErrEmptyDocument = errors.New("xml document has no root element")

// Tree is the document node. Its only regular key is the root element name.
type Tree map[string]any

// Parse reads an XML document from r.
func Parse(r io.Reader) (Tree, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	doc := map[string]any{}
	stack := []map[string]any{doc}
	names := []string{""}
	sawRoot := false

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		current := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			node := map[string]any{}
			if len(t.Attr) > 0 {
				attrs := make(map[string]any, len(t.Attr))
				for _, a := range t.Attr {
					attrs[attrName(a.Name)] = a.Value
				}
				node[AttributesKey] = attrs
			}
			stack = append(stack, node)
			names = append(names, t.Name.Local)
		case xml.EndElement:
			node := stack[len(stack)-1]
			name := names[len(names)-1]
			stack = stack[:len(stack)-1]
			names = names[:len(names)-1]
			add(stack[len(stack)-1], name, node)
			if len(stack) == 1 {
				sawRoot = true
			}
		case xml.CharData:
			// Text outside the root element is not part of the tree.
			if len(stack) > 1 {
				add(current, TextKey, string(t))
			}
		case xml.Comment:
			if len(stack) > 1 {
				add(current, CommentKey, string(t))
			}
		}
	}

	if !sawRoot {
		return nil, ErrEmptyDocument
	}
	return Tree(doc), nil
}

// ParseString parses an XML document held in a string.
func ParseString(s string) (Tree, error) {
	return Parse(strings.NewReader(s))
}

// add stores value under key, turning repeated keys into a list.
func add(node map[string]any, key string, value any) {
	existing, ok := node[key]
	if !ok {
		node[key] = value
		return
	}
	if list, ok := existing.([]any); ok {
		node[key] = append(list, value)
		return
	}
	node[key] = []any{existing, value}
}

func attrName(name xml.Name) string {
	if name.Space == "xmlns" {
		return "xmlns:" + name.Local
	}
	return name.Local
}

// charsetReader decodes non UTF-8 documents declared in the XML prolog.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: unsupported", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Lookup walks the tree along path. A list met on the way is entered at
// its first element.
func (t Tree) Lookup(path ...string) (any, bool) {
	return Lookup(map[string]any(t), path...)
}

// Text returns the trimmed text content of the node at path.
func (t Tree) Text(path ...string) (string, bool) {
	node, ok := t.Lookup(path...)
	if !ok {
		return "", false
	}
	return Text(node)
}

// Lookup walks node along path. A list met on the way is entered at its
// first element.
func Lookup(node any, path ...string) (any, bool) {
	current := node
	for _, key := range path {
		if list, ok := current.([]any); ok {
			if len(list) == 0 {
				return nil, false
			}
			current = list[0]
		}
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Text returns the trimmed text of node: the string itself, or the joined
// "_text" entries of an element.
func Text(node any) (string, bool) {
	switch n := node.(type) {
	case string:
		return strings.TrimSpace(n), true
	case map[string]any:
		text, ok := n[TextKey]
		if !ok {
			return "", false
		}
		return Text(text)
	case []any:
		var b strings.Builder
		for _, item := range n {
			if s, ok := item.(string); ok {
				b.WriteString(s)
			}
		}
		return strings.TrimSpace(b.String()), true
	default:
		return "", false
	}
}

// List returns node as a list, wrapping a single value.
func List(node any) []any {
	switch n := node.(type) {
	case nil:
		return nil
	case []any:
		return n
	default:
		return []any{n}
	}
}
