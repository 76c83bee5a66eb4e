package database

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnKind is the inferred type of a CSV column.
type ColumnKind int

// Column kinds, ordered from most to least specific.
const (
	KindBigInt ColumnKind = iota
	KindDouble
	KindText
)

// SQLType returns the PostgreSQL column type for the kind.
func (k ColumnKind) SQLType() string {
	switch k {
	case KindBigInt:
		return "BIGINT"
	case KindDouble:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// normalizeHeader trims header cells and names blank ones column<N>.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		if h == "" {
			h = fmt.Sprintf("column%d", i)
		}
		out[i] = h
	}
	return out
}

// inferColumnKinds widens each column to the narrowest kind that fits every
// non-empty cell. Columns with no values are TEXT.
func inferColumnKinds(width int, records [][]string) []ColumnKind {
	kinds := make([]ColumnKind, width)
	seen := make([]bool, width)

	for _, rec := range records {
		for i := 0; i < width && i < len(rec); i++ {
			cell := strings.TrimSpace(rec[i])
			if cell == "" || kinds[i] == KindText {
				continue
			}
			seen[i] = true
			if k := cellKind(cell); k > kinds[i] {
				kinds[i] = k
			}
		}
	}

	for i := range kinds {
		if !seen[i] {
			kinds[i] = KindText
		}
	}
	return kinds
}

func cellKind(cell string) ColumnKind {
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return KindBigInt
	}
	if _, err := strconv.ParseFloat(cell, 64); err == nil {
		return KindDouble
	}
	return KindText
}

// parseCell converts a cell to the Go value COPY expects for kind. Empty
// cells become NULL.
func parseCell(kind ColumnKind, cell string) (interface{}, error) {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil, nil
	}

	switch kind {
	case KindBigInt:
		return strconv.ParseInt(trimmed, 10, 64)
	case KindDouble:
		return strconv.ParseFloat(trimmed, 64)
	default:
		return cell, nil
	}
}

// convertRecords parses every record against kinds. Short records are padded
// with NULLs; extra cells are dropped.
func convertRecords(kinds []ColumnKind, records [][]string) ([][]interface{}, error) {
	rows := make([][]interface{}, 0, len(records))
	for n, rec := range records {
		row := make([]interface{}, len(kinds))
		for i, kind := range kinds {
			if i >= len(rec) {
				continue
			}
			v, err := parseCell(kind, rec[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", n+1, i, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
