package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/services"
)

// validateFormat rejects output formats renderResult cannot produce.
func validateFormat(format string) error {
	switch format {
	case "table", "", "csv", "md", "markdown", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderResult(w io.Writer, result *services.QueryResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Rows)
	case "csv":
		t := resultTable(w, result)
		t.RenderCSV()
	case "md", "markdown":
		t := resultTable(w, result)
		t.RenderMarkdown()
	case "table", "":
		if len(result.Rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			return nil
		}
		t := resultTable(w, result)
		t.SetStyle(table.StyleLight)
		t.Render()
	default:
		return validateFormat(format)
	}

	if format == "table" || format == "" {
		suffix := ""
		if result.Truncated {
			suffix = ", truncated"
		}
		_, _ = fmt.Fprintf(w, "(%d rows%s, %dms)\n", result.RowCount, suffix, result.DurationMS)
	}
	return nil
}

func resultTable(w io.Writer, result *services.QueryResult) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := make(table.Row, len(result.Columns))
	for i, col := range result.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range result.Rows {
		row := make(table.Row, len(result.Columns))
		for i, col := range result.Columns {
			row[i] = formatValue(r[col])
		}
		t.AppendRow(row)
	}
	return t
}

func renderStatus(w io.Writer, statuses []models.SourceStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"table", "status", "rows", "loaded at", "error"})
	for _, st := range statuses {
		loaded := ""
		if st.LoadedAt != nil {
			loaded = st.LoadedAt.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{st.TableName, string(st.Status), st.Rows, loaded, st.Error})
	}
	t.Render()
}

func formatValue(v interface{}) string {
	switch val := models.NormalizeValue(v).(type) {
	case nil:
		return "NULL"
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
