package models

import (
	"fmt"
	"strings"
)

// Row is one result record keyed by column name.
type Row map[string]interface{}

// Float returns the column as a float64 when it holds a number.
func (r Row) Float(col string) (float64, bool) {
	switch v := NormalizeValue(r[col]).(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	default:
		return 0, false
	}
}

// Text returns the column as a string; non-string values are formatted.
func (r Row) Text(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// RowBatch is a typed result set: ordered column names plus rows.
type RowBatch struct {
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Len returns the number of rows.
func (b *RowBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// QueryStatus is the lifecycle state of a registered query or table load.
type QueryStatus string

// Status values shared by data sources, features and queries.
const (
	StatusPending QueryStatus = "pending"
	StatusLoading QueryStatus = "loading"
	StatusReady   QueryStatus = "ready"
	StatusError   QueryStatus = "error"
)

// TrimName normalizes a state name for lookups.
func TrimName(name string) string {
	return strings.TrimSpace(name)
}
