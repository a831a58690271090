package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TableContext describes one table the oracle may reference.
type TableContext struct {
	TableName string   `json:"table_name"`
	Columns   []string `json:"columns"`
}

type Request struct {
	NaturalLanguage string         `json:"natural_language"`
	Tables          []TableContext `json:"tables"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Oracle turns a natural-language request into SQL using an external model.
type Oracle interface {
	Query(ctx context.Context, req Request) (Result, error)
}

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Query(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Fallback queries Primary and, when it fails, Secondary.
type Fallback struct {
	Primary   Oracle
	Secondary Oracle
	// OnError observes primary failures that were recovered by Secondary.
	OnError func(err error)
}

// WithFallback returns an Oracle that tries primary before fallback. A nil
// primary yields fallback unchanged.
func WithFallback(primary, fallback Oracle) Oracle {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &Fallback{Primary: primary, Secondary: fallback}
}

func (f *Fallback) Query(ctx context.Context, req Request) (Result, error) {
	result, err := f.Primary.Query(ctx, req)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, fmt.Errorf("primary oracle: %w", err)
	}
	if f.OnError != nil {
		f.OnError(err)
	}
	result, fallbackErr := f.Secondary.Query(ctx, req)
	if fallbackErr != nil {
		return Result{}, errors.Join(fmt.Errorf("primary oracle: %w", err), fmt.Errorf("fallback oracle: %w", fallbackErr))
	}
	return result, nil
}

// SchemaDDL renders table contexts as CREATE TABLE statements for prompts.
func SchemaDDL(tables []TableContext) string {
	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("CREATE TABLE " + table.TableName + " (")
		columns := table.Columns
		if len(columns) == 0 {
			columns = []string{"id"}
		}
		b.WriteString(strings.Join(columns, ", "))
		b.WriteString(");")
	}
	return b.String()
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
