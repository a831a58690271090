package schema

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
)

// CSVDescriber reports column names and types of a CSV document.
type CSVDescriber interface {
	DescribeCSV(ctx context.Context, content []byte) ([]Column, error)
}

// FromCSV reads the header row as the columns of one table named after the
// file. Types come from describer when it succeeds, else from the first data row.
func FromCSV(ctx context.Context, content []byte, fileName string, describer CSVDescriber) (Schema, error) {
	table := fileTable(fileName)
	s := New()

	if describer != nil {
		columns, err := describer.DescribeCSV(ctx, content)
		if err == nil && len(columns) > 0 {
			for _, column := range columns {
				s.AddTable(table, column.Name)
				s.SetType(table, column.Name, column.Type)
			}
			return s, nil
		}
		header, sample := readCSVHead(content)
		addCSVColumns(&s, table, header, sample)
		if s.Empty() {
			return fallback(fileName), err
		}
		return s, err
	}

	header, sample := readCSVHead(content)
	addCSVColumns(&s, table, header, sample)
	if s.Empty() {
		return fallback(fileName), nil
	}
	return s, nil
}

func readCSVHead(content []byte) ([]string, []string) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comma = sniffDelimiter(content)

	header, err := reader.Read()
	if err != nil {
		return nil, nil
	}
	sample, err := reader.Read()
	if err != nil && err != io.EOF {
		sample = nil
	}
	return header, sample
}

func addCSVColumns(s *Schema, table string, header, sample []string) {
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if strings.TrimSpace(name) == "" {
			continue
		}
		s.AddTable(table, name)
		if i < len(sample) {
			if sqlType := csvValueType(sample[i]); sqlType != "" {
				s.SetType(table, name, sqlType)
			}
		}
	}
}

// sniffDelimiter picks the most frequent of , ; and tab on the first line.
func sniffDelimiter(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, count := ',', bytes.Count(line, []byte(","))
	for _, candidate := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(candidate))); n > count {
			best, count = candidate, n
		}
	}
	return best
}

func csvValueType(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case isInteger(value):
		return "INTEGER"
	case isDecimal(value):
		return "DECIMAL(10,2)"
	case strings.EqualFold(value, "true") || strings.EqualFold(value, "false"):
		return "BOOLEAN"
	}
	return "TEXT"
}

func isInteger(value string) bool {
	_, err := strconv.ParseInt(value, 10, 64)
	return err == nil
}

func isDecimal(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}
