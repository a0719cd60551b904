// Package dataset provides a lightweight column-ordered tabular value passed
// between the data store, the fetch layer, and chart generation.
//
// A Dataset is a point-in-time snapshot: producers hand out deep copies and
// consumers never observe later mutations through an old reference.
package dataset

import (
	"fmt"
	"hash/fnv"
	"slices"
)

// Dataset is a tabular value with named, ordered columns.
// Rows hold one value per column, in column order.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the dataset has no columns and no rows.
func (d Dataset) Empty() bool {
	return len(d.Columns) == 0 && len(d.Rows) == 0
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Columns: slices.Clone(d.Columns),
		Rows:    make([][]any, len(d.Rows)),
	}
	for i, row := range d.Rows {
		out.Rows[i] = slices.Clone(row)
	}
	return out
}

// Select projects the dataset onto the requested columns, preserving the
// requested order. Column names that are not present are silently dropped,
// so the result contains the intersection of requested and available columns.
func (d Dataset) Select(columns []string) Dataset {
	idx := make([]int, 0, len(columns))
	kept := make([]string, 0, len(columns))
	for _, name := range columns {
		if i := slices.Index(d.Columns, name); i >= 0 {
			idx = append(idx, i)
			kept = append(kept, name)
		}
	}

	out := Dataset{
		Columns: kept,
		Rows:    make([][]any, len(d.Rows)),
	}
	for r, row := range d.Rows {
		projected := make([]any, len(idx))
		for c, i := range idx {
			projected[c] = row[i]
		}
		out.Rows[r] = projected
	}
	return out
}

// Column returns the values of a named column and whether the column exists.
func (d Dataset) Column(name string) ([]any, bool) {
	i := slices.Index(d.Columns, name)
	if i < 0 {
		return nil, false
	}
	values := make([]any, len(d.Rows))
	for r, row := range d.Rows {
		values[r] = row[i]
	}
	return values, true
}

// Fingerprint returns a stable hash of the dataset's content, suitable for
// keying derived artifacts such as cached insights. Two datasets with equal
// columns and values always produce the same fingerprint, regardless of when
// or where they were materialized.
func (d Dataset) Fingerprint() string {
	h := fnv.New64a()
	for _, c := range d.Columns {
		fmt.Fprintf(h, "%s\x1f", c)
	}
	fmt.Fprint(h, "\x1e")
	for _, row := range d.Rows {
		for _, v := range row {
			switch x := v.(type) {
			case float64:
				fmt.Fprintf(h, "%.6f\x1f", x)
			default:
				fmt.Fprintf(h, "%v\x1f", v)
			}
		}
		fmt.Fprint(h, "\x1e")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Float reads a row value as float64, handling the numeric types that survive
// a JSON round trip. The second return is false for non-numeric values.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
