package database

import (
	"database/sql"
	"fmt"

	"github.com/stwalsh4118/covidroom/internal/models"
)

// scanRows drains a database/sql result into a RowBatch. convert runs on
// each raw driver value before generic normalization; maxRows <= 0 means
// no limit.
func scanRows(rows *sql.Rows, maxRows int, convert func(interface{}) interface{}) (*models.RowBatch, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	batch := &models.RowBatch{Columns: cols, Rows: []models.Row{}}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if maxRows > 0 && len(batch.Rows) >= maxRows {
			batch.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		row := make(models.Row, len(cols))
		for i, col := range cols {
			v := values[i]
			if convert != nil {
				v = convert(v)
			}
			row[col] = models.NormalizeValue(v)
		}
		batch.Rows = append(batch.Rows, row)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}

	return batch, nil
}
