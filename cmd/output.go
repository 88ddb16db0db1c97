package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-ebook-store/pkg/store"
	"github.com/shouni/go-ebook-store/pkg/types"
)

// jsonRecord は --json 出力の1行分です。SearchResult のフィールドはそのまま展開されます。
type jsonRecord struct {
	*store.SearchResult
	Classified bool   `json:"classified"`
	Error      string `json:"error,omitempty"`
}

// writeJSON は結果を JSON 配列として書き出します。
func writeJSON(w io.Writer, results []types.DetailResult) error {
	records := make([]jsonRecord, 0, len(results))
	for _, d := range results {
		rec := jsonRecord{SearchResult: d.Result, Classified: d.Classified}
		if d.Error != nil {
			rec.Error = d.Error.Error()
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// writeTable は結果を表形式で書き出します。
func writeTable(w io.Writer, results []types.DetailResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Title", "Author", "Price", "Detail Item", "DRM"})

	for i, d := range results {
		r := d.Result
		drm := r.DRM.String()
		if d.Error != nil {
			drm = "error"
		}
		t.AppendRow(table.Row{
			i + 1,
			textUtils.NormalizeText(r.Title),
			textUtils.NormalizeText(r.Author),
			r.Price,
			r.DetailItem,
			drm,
		})
	}

	t.AppendFooter(table.Row{"", fmt.Sprintf("%d 件", len(results))})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// writeResults は --json の指定に応じて出力形式を切り替えます。
func writeResults(w io.Writer, results []types.DetailResult) error {
	if Flags.JSON {
		return writeJSON(w, results)
	}
	writeTable(w, results)
	return nil
}
