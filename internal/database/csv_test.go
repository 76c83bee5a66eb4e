package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferColumnKinds(t *testing.T) {
	records := [][]string{
		{"2020", "Texas", "100", "1.5", ""},
		{"2021", "Ohio", "", "2", ""},
		{"2022", "Iowa", "7"},
	}

	kinds := inferColumnKinds(5, records)
	assert.Equal(t, []ColumnKind{KindBigInt, KindText, KindBigInt, KindDouble, KindText}, kinds)
}

func TestInferColumnKinds_WidensToText(t *testing.T) {
	kinds := inferColumnKinds(1, [][]string{{"1"}, {"2.5"}, {"n/a"}, {"3"}})
	assert.Equal(t, []ColumnKind{KindText}, kinds)
}

func TestColumnKind_SQLType(t *testing.T) {
	assert.Equal(t, "BIGINT", KindBigInt.SQLType())
	assert.Equal(t, "DOUBLE PRECISION", KindDouble.SQLType())
	assert.Equal(t, "TEXT", KindText.SQLType())
}

func TestNormalizeHeader(t *testing.T) {
	got := normalizeHeader([]string{"\uFEFFyear", " state ", ""})
	assert.Equal(t, []string{"year", "state", "column2"}, got)
}

func TestConvertRecords(t *testing.T) {
	kinds := []ColumnKind{KindBigInt, KindText, KindDouble}

	rows, err := convertRecords(kinds, [][]string{
		{"2020", "Texas", "1.25"},
		{" 2021 ", "Ohio"},
		{"", "Iowa", "", "extra"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []interface{}{int64(2020), "Texas", 1.25}, rows[0])
	assert.Equal(t, []interface{}{int64(2021), "Ohio", nil}, rows[1])
	assert.Equal(t, []interface{}{nil, "Iowa", nil}, rows[2])
}

func TestConvertRecords_BadCell(t *testing.T) {
	_, err := convertRecords([]ColumnKind{KindBigInt}, [][]string{{"abc"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "row 1 column 0")
}
