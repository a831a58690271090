package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var errNotObject = errors.New("json value is not an object")

// recordSampleLimit bounds how many records are scanned for keys.
const recordSampleLimit = 100

// FromJSON accepts an explicit {tables, relations} document, a list of sample
// records, or an object of tables given as records or column lists.
func FromJSON(content []byte, fileName string) Schema {
	content = bytes.TrimSpace(content)
	var s Schema
	var ok bool
	switch {
	case bytes.HasPrefix(content, []byte("[")):
		s, ok = fromRecords(content, fileTable(fileName))
	case bytes.HasPrefix(content, []byte("{")):
		if s, ok = fromSchemaDocument(content); !ok {
			s, ok = fromTableObject(content)
		}
	}
	if !ok || s.Empty() {
		return fallback(fileName)
	}
	s.Normalize()
	return s
}

func fromSchemaDocument(content []byte) (Schema, bool) {
	var doc struct {
		Tables    json.RawMessage `json:"tables"`
		Relations []Relation      `json:"relations"`
	}
	if err := json.Unmarshal(content, &doc); err != nil || len(doc.Tables) == 0 {
		return Schema{}, false
	}

	s := New()
	tables := bytes.TrimSpace(doc.Tables)
	switch {
	case bytes.HasPrefix(tables, []byte("{")):
		keys, values, err := objectEntries(tables)
		if err != nil {
			return Schema{}, false
		}
		for i, table := range keys {
			addColumnSpec(&s, table, values[i])
		}
	case bytes.HasPrefix(tables, []byte("[")):
		var list []struct {
			Name    string          `json:"name"`
			Columns json.RawMessage `json:"columns"`
		}
		if err := json.Unmarshal(tables, &list); err != nil {
			return Schema{}, false
		}
		for _, table := range list {
			addColumnSpec(&s, table.Name, table.Columns)
		}
	default:
		return Schema{}, false
	}
	for _, r := range doc.Relations {
		s.AddRelation(r)
	}
	return s, true
}

// addColumnSpec reads columns given as names, {name, type} objects, or a name to type object.
func addColumnSpec(s *Schema, table string, raw json.RawMessage) {
	s.AddTable(table)
	raw = bytes.TrimSpace(raw)
	if bytes.HasPrefix(raw, []byte("{")) {
		keys, values, err := objectEntries(raw)
		if err != nil {
			return
		}
		for i, column := range keys {
			s.AddTable(table, column)
			var sqlType string
			if json.Unmarshal(values[i], &sqlType) == nil {
				s.SetType(table, column, strings.ToUpper(sqlType))
			}
		}
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return
	}
	for _, item := range items {
		var name string
		if json.Unmarshal(item, &name) == nil {
			s.AddTable(table, name)
			continue
		}
		var column Column
		if json.Unmarshal(item, &column) == nil && column.Name != "" {
			s.AddTable(table, column.Name)
			s.SetType(table, column.Name, strings.ToUpper(column.Type))
		}
	}
}

func fromRecords(content []byte, table string) (Schema, bool) {
	var records []json.RawMessage
	if err := json.Unmarshal(content, &records); err != nil {
		return Schema{}, false
	}
	s := New()
	if !addRecords(&s, table, records) {
		return Schema{}, false
	}
	return s, true
}

// addRecords adds the union of keys of the first records as columns, typed
// by the first value seen for each key.
func addRecords(s *Schema, table string, records []json.RawMessage) bool {
	if len(records) > recordSampleLimit {
		records = records[:recordSampleLimit]
	}
	tableKey := cleanIdent(table)
	found := false
	for _, record := range records {
		keys, values, err := objectEntries(record)
		if err != nil {
			continue
		}
		found = true
		s.AddTable(table)
		for i, key := range keys {
			column := cleanIdent(key)
			if _, seen := s.Types[tableKey][column]; seen {
				continue
			}
			s.AddTable(table, column)
			if sqlType := jsonValueType(values[i]); sqlType != "" {
				s.SetType(table, column, sqlType)
			}
		}
	}
	return found
}

func fromTableObject(content []byte) (Schema, bool) {
	keys, values, err := objectEntries(content)
	if err != nil {
		return Schema{}, false
	}
	s := New()
	for i, table := range keys {
		value := bytes.TrimSpace(values[i])
		switch {
		case bytes.HasPrefix(value, []byte("{")):
			columns, columnValues, err := objectEntries(value)
			if err != nil {
				continue
			}
			s.AddTable(table, columns...)
			for j, column := range columns {
				if sqlType := jsonValueType(columnValues[j]); sqlType != "" {
					s.SetType(table, column, sqlType)
				}
			}
		case bytes.HasPrefix(value, []byte("[")):
			var items []json.RawMessage
			if err := json.Unmarshal(value, &items); err != nil || len(items) == 0 {
				continue
			}
			if first := bytes.TrimSpace(items[0]); bytes.HasPrefix(first, []byte("{")) {
				addRecords(&s, table, items)
				continue
			}
			addColumnSpec(&s, table, value)
		}
	}
	return s, !s.Empty()
}

// jsonValueType maps the JSON kind of value to an SQL type. Null yields "".
func jsonValueType(value json.RawMessage) string {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return ""
	}
	switch value[0] {
	case '"':
		return "TEXT"
	case 't', 'f':
		return "BOOLEAN"
	case 'n':
		return ""
	case '{', '[':
		return "JSON"
	}
	if bytes.ContainsAny(value, ".eE") {
		return "DECIMAL(10,2)"
	}
	return "INTEGER"
}

// objectEntries decodes a JSON object keeping its key order.
func objectEntries(raw []byte) ([]string, []json.RawMessage, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	token, err := decoder.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, nil, errNotObject
	}
	var (
		keys   []string
		values []json.RawMessage
	)
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := token.(string)
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}
