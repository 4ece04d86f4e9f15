package store

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Row is one record: named fields holding either a string or a list of
// strings. Timestamps are kept as ISO-8601 strings so rows round-trip
// through the file format losslessly.
type Row map[string]any

// tableFile is the on-disk column-oriented layout. Scalar columns keep their
// values in Values; list columns keep them in ListValues. A row missing a
// column reads back as the column's zero value.
type tableFile struct {
	Rows    int           `json:"rows"`
	Columns []tableColumn `json:"columns"`
}

type tableColumn struct {
	Name       string     `json:"name"`
	Lists      bool       `json:"lists,omitempty"`
	Values     []string   `json:"values,omitempty"`
	ListValues [][]string `json:"list_values,omitempty"`
}

// EncodeTable serializes rows column-major. Column order is the sorted union
// of field names so identical row sets always produce identical bytes.
func EncodeTable(rows []Row) ([]byte, error) {
	names := make(map[string]bool)
	lists := make(map[string]bool)
	for _, row := range rows {
		for name, value := range row {
			names[name] = true
			switch value.(type) {
			case string:
			case []string:
				lists[name] = true
			default:
				return nil, fmt.Errorf("field %q: unsupported value type %T", name, value)
			}
		}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	file := tableFile{Rows: len(rows)}
	for _, name := range ordered {
		col := tableColumn{Name: name, Lists: lists[name]}
		for _, row := range rows {
			if col.Lists {
				list, _ := row[name].([]string)
				if s, ok := row[name].(string); ok && s != "" {
					// Scalar value in a list column: keep it as a one-element list.
					list = []string{s}
				}
				if list == nil {
					list = []string{}
				}
				col.ListValues = append(col.ListValues, list)
			} else {
				s, _ := row[name].(string)
				col.Values = append(col.Values, s)
			}
		}
		file.Columns = append(file.Columns, col)
	}

	return json.MarshalIndent(file, "", "  ")
}

// DecodeTable reads rows back from the column-major layout.
func DecodeTable(data []byte) ([]Row, error) {
	var file tableFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	if file.Rows < 0 {
		return nil, fmt.Errorf("decode table: negative row count %d", file.Rows)
	}

	rows := make([]Row, file.Rows)
	for i := range rows {
		rows[i] = Row{}
	}
	for _, col := range file.Columns {
		if col.Lists {
			if len(col.ListValues) != file.Rows {
				return nil, fmt.Errorf("decode table: column %q has %d values, want %d",
					col.Name, len(col.ListValues), file.Rows)
			}
			for i, list := range col.ListValues {
				rows[i][col.Name] = list
			}
		} else {
			if len(col.Values) != file.Rows {
				return nil, fmt.Errorf("decode table: column %q has %d values, want %d",
					col.Name, len(col.Values), file.Rows)
			}
			for i, value := range col.Values {
				rows[i][col.Name] = value
			}
		}
	}
	return rows, nil
}
