// Package aquabrowser interprets Aquabrowser API responses: embedded error
// payloads, probe metadata and result records.
package aquabrowser

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/catalog-client/pkg/xmltree"
)

// RootElement is the document element of every response.
const RootElement = "aquabrowser"

var (
	// ErrMalformed is returned when a response lacks the expected structure.
	ErrMalformed = errors.New("malformed aquabrowser response")

	// ErrNoResultsNode is returned when a page response has no results element.
	ErrNoResultsNode = errors.New("aquabrowser response has no results")
)

// APIError is an error reported by the API inside a response body.
type APIError struct {
	Code   string
	Reason string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("aquabrowser error %s: %s", e.Code, e.Reason)
}

// Meta holds the probe fields of a response.
type Meta struct {
	Count        int
	ContextToken string
}

// Decode parses body and checks it for an embedded API error.
func Decode(body string) (xmltree.Tree, error) {
	tree, err := xmltree.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if err := CheckError(tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// CheckError returns an *APIError when tree carries an aquabrowser.error node.
func CheckError(tree xmltree.Tree) error {
	node, ok := tree.Lookup(RootElement, "error")
	if !ok {
		return nil
	}
	code, _ := xmltree.Text(child(node, "code"))
	reason, _ := xmltree.Text(child(node, "reason"))
	return &APIError{Code: code, Reason: reason}
}

// ParseMeta extracts meta.count and meta.rctx. The count is required; a
// missing rctx yields an empty token.
func ParseMeta(tree xmltree.Tree) (Meta, error) {
	raw, ok := tree.Text(RootElement, "meta", "count")
	if !ok {
		return Meta{}, fmt.Errorf("%w: missing meta.count", ErrMalformed)
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return Meta{}, fmt.Errorf("%w: invalid meta.count %q", ErrMalformed, raw)
	}

	token, _ := tree.Text(RootElement, "meta", "rctx")
	return Meta{Count: count, ContextToken: token}, nil
}

// Records returns the cleaned results.result entries of a page response,
// always as a list.
func Records(tree xmltree.Tree) ([]any, error) {
	results, ok := tree.Lookup(RootElement, "results")
	if !ok {
		return nil, ErrNoResultsNode
	}
	result, _ := xmltree.Lookup(results, "result")
	records := xmltree.List(result)

	cleaned := make([]any, 0, len(records))
	for _, r := range records {
		cleaned = append(cleaned, xmltree.Clean(r))
	}
	return cleaned, nil
}

// Document returns the cleaned tree of a single-record response such as
// details or availability.
func Document(tree xmltree.Tree) xmltree.Tree {
	return xmltree.Clean(tree).(xmltree.Tree)
}

func child(node any, key string) any {
	v, _ := xmltree.Lookup(node, key)
	return v
}
