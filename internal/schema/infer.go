package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Formats accepted by Infer, keyed by file extension.
const (
	FormatSQL     = "sql"
	FormatJSON    = "json"
	FormatText    = "txt"
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

var formats = map[string]string{
	".sql":     FormatSQL,
	".json":    FormatJSON,
	".txt":     FormatText,
	".csv":     FormatCSV,
	".parquet": FormatParquet,
}

// UnsupportedFormatError is returned for a file extension Infer cannot read.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported schema file extension %q", e.Extension)
}

// FormatOf returns the format of fileName, or an UnsupportedFormatError.
func FormatOf(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	format, ok := formats[ext]
	if !ok {
		return "", &UnsupportedFormatError{Extension: ext}
	}
	return format, nil
}

type Options struct {
	Describer CSVDescriber
	Logger    *slog.Logger
}

// Infer reads a schema from an uploaded file. Only an unsupported extension
// fails: unreadable content degrades to a single table named after the file.
func Infer(ctx context.Context, fileName string, content []byte, opts Options) (Schema, error) {
	format, err := FormatOf(fileName)
	if err != nil {
		return Schema{}, err
	}

	var s Schema
	switch format {
	case FormatSQL:
		s = FromSQL(string(content), fileName)
	case FormatJSON:
		s = FromJSON(content, fileName)
	case FormatText:
		s = FromText(string(content))
	case FormatCSV:
		s, err = FromCSV(ctx, content, fileName, opts.Describer)
	case FormatParquet:
		s, err = FromParquet(content, fileName)
	}
	if err != nil && opts.Logger != nil {
		opts.Logger.WarnContext(ctx, "schema inference degraded",
			slog.String("file", fileName),
			slog.String("format", format),
			slog.String("error", err.Error()),
		)
	}
	s.Normalize()
	return s, nil
}
