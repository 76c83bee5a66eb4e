package models

import (
	"fmt"
	"math"
	"math/big"
)

// NormalizeValue converts integral and wide numeric driver values to float64
// so every count reaches clients as an ordinary JSON number. Values above
// 2^53 lose precision. NaN and infinities become nil, and nested lists and
// maps are normalized with their keys rendered as strings, so any result is
// JSON-encodable. Everything else passes through unchanged.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	case *big.Int:
		if x == nil {
			return nil
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case big.Int:
		f, _ := new(big.Float).SetInt(&x).Float64()
		return f
	case *big.Float:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return finite(f)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = NormalizeValue(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = NormalizeValue(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = NormalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func finite(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

// NormalizeRow returns a copy of row with every value normalized.
func NormalizeRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeBatch normalizes every row of the batch in place.
func NormalizeBatch(b *RowBatch) *RowBatch {
	if b == nil {
		return nil
	}
	for i, row := range b.Rows {
		b.Rows[i] = NormalizeRow(row)
	}
	return b
}
