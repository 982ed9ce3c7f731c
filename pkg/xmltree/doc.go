// Package xmltree converts XML documents into generic trees of maps,
// slices and strings.
//
// The mapping follows the DOM walk used by the catalog front end:
//
//   - an element becomes a map[string]any keyed by child name
//   - text and comment children are stored under "_text" and "_comment"
//   - attributes are collected in a map under "_attributes"
//   - a name that occurs more than once becomes a []any in document order
//
// So <meta><count>12</count></meta> yields
// {"meta": {"count": {"_text": "12"}}}.
//
// Clean removes the whitespace-only text entries that indentation leaves
// behind in such trees.
package xmltree
