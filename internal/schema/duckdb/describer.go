package duckdb

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlassist/sqlassist/internal/schema"
)

// Describer types CSV columns with DuckDB's CSV sniffer.
type Describer struct {
	// SampleBytes caps how much of the upload is handed to DuckDB. Zero keeps everything.
	SampleBytes int
}

func NewDescriber(sampleBytes int) *Describer {
	return &Describer{SampleBytes: sampleBytes}
}

func (d *Describer) DescribeCSV(ctx context.Context, content []byte) ([]schema.Column, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("csv content is empty")
	}
	content = truncateLines(content, d.SampleBytes)

	workDir, err := os.MkdirTemp("", "sqlassist-csv-")
	if err != nil {
		return nil, fmt.Errorf("create describe temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPath := filepath.Join(workDir, "upload.csv")
	if err := os.WriteFile(localPath, content, 0o600); err != nil {
		return nil, fmt.Errorf("write local csv file %q: %w", localPath, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "DESCRIBE SELECT * FROM read_csv_auto("+quoteString(localPath)+")")
	if err != nil {
		return nil, fmt.Errorf("describe csv: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe columns: %w", err)
	}

	var out []schema.Column
	for rows.Next() {
		values := make([]any, len(columnNames))
		scanTargets := make([]any, len(columnNames))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan describe row: %w", err)
		}
		if len(values) < 2 {
			continue
		}
		out = append(out, schema.Column{Name: toString(values[0]), Type: toString(values[1])})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate describe rows: %w", err)
	}
	return out, nil
}

// truncateLines cuts content to at most limit bytes, ending on a full line.
func truncateLines(content []byte, limit int) []byte {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := content[:limit]
	if i := bytes.LastIndexByte(cut, '\n'); i > 0 {
		return cut[:i+1]
	}
	return cut
}

func toString(value any) string {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case string:
		return typed
	case nil:
		return ""
	default:
		return fmt.Sprint(typed)
	}
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
