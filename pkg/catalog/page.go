package catalog

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-client/pkg/aquabrowser"
	"github.com/Sternrassler/catalog-client/pkg/xmltree"
)

// ErrNoResults is returned when the probe reports zero results.
var ErrNoResults = errors.New("no results found")

// Page is one fetched page of results.
//
// A page with a non-nil Err is the marker substituted for a page that
// failed; it keeps its Index and URL but carries no records.
type Page struct {
	// Index is the 0-based page position.
	Index int
	URL   string

	// Records holds the cleaned results.result entries.
	Records []any

	// Tree is the full decoded response.
	Tree xmltree.Tree

	Err error
}

// Failed reports whether the page is a substituted failure.
func (p Page) Failed() bool {
	return p.Err != nil
}

// decodePage turns a page body into a Page.
func decodePage(index int, url, body string) (Page, error) {
	tree, err := aquabrowser.Decode(body)
	if err != nil {
		return Page{}, fmt.Errorf("page %d: %w", index+1, err)
	}
	records, err := aquabrowser.Records(tree)
	if err != nil {
		return Page{}, fmt.Errorf("page %d: %w", index+1, err)
	}
	return Page{
		Index:   index,
		URL:     url,
		Records: records,
		Tree:    tree,
	}, nil
}
