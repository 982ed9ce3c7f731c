package cli

import (
	"encoding/json"
	"io"

	"github.com/Sternrassler/catalog-client/pkg/catalog"
	"github.com/Sternrassler/catalog-client/pkg/fetch"
)

// pageLine is the JSON line printed per page.
type pageLine struct {
	Page    int    `json:"page"`
	URL     string `json:"url"`
	Records []any  `json:"records"`
	Error   string `json:"error,omitempty"`
}

func writePage(w io.Writer, p catalog.Page) error {
	line := pageLine{
		Page:    p.Index + 1,
		URL:     fetch.Redact(p.URL),
		Records: p.Records,
	}
	if line.Records == nil {
		line.Records = []any{}
	}
	if p.Err != nil {
		line.Error = p.Err.Error()
	}
	return json.NewEncoder(w).Encode(line)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
