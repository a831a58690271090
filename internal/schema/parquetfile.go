package schema

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
)

// FromParquet reads column names and types from the footer of a parquet file.
func FromParquet(content []byte, fileName string) (Schema, error) {
	file, err := parquet.OpenFile(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fallback(fileName), fmt.Errorf("open parquet file: %w", err)
	}

	table := fileTable(fileName)
	s := New()
	for _, field := range file.Schema().Fields() {
		s.AddTable(table, field.Name())
		s.SetType(table, field.Name(), parquetType(field))
	}
	if s.Empty() {
		return fallback(fileName), nil
	}
	return s, nil
}

func parquetType(field parquet.Field) string {
	if !field.Leaf() {
		return "JSON"
	}
	switch field.Type().Kind() {
	case parquet.Boolean:
		return "BOOLEAN"
	case parquet.Int32:
		return "INTEGER"
	case parquet.Int64:
		if ColumnType(field.Name()) == "TIMESTAMP" {
			return "TIMESTAMP"
		}
		return "BIGINT"
	case parquet.Int96:
		return "TIMESTAMP"
	case parquet.Float:
		return "REAL"
	case parquet.Double:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}
