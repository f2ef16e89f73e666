package query

import (
	"fmt"
	"strings"
)

type condition struct {
	clause string
	args   []any
}

// SortField is one ORDER BY term. Field is resolved through the projection.
type SortField struct {
	Field      string
	Descending bool
}

// Builder assembles a SELECT with numbered placeholders.
type Builder struct {
	projection *ProjectionMap
	conditions []condition
	orderBy    []SortField
}

// NewBuilder creates a Builder over projection ordered by sort.
func NewBuilder(projection *ProjectionMap, sort ...SortField) *Builder {
	return &Builder{
		projection: projection,
		orderBy:    sort,
	}
}

// WhereEquals adds field = value. A nil value adds nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	return b.where(field, "=", value)
}

// WhereAtMost adds field <= value. A nil value adds nothing.
func (b *Builder) WhereAtMost(field string, value any) *Builder {
	return b.where(field, "<=", value)
}

// WhereAtLeast adds field >= value. A nil value adds nothing.
func (b *Builder) WhereAtLeast(field string, value any) *Builder {
	return b.where(field, ">=", value)
}

// WhereBefore adds field < value. A nil value adds nothing.
func (b *Builder) WhereBefore(field string, value any) *Builder {
	return b.where(field, "<", value)
}

// Build returns the SELECT and its arguments.
func (b *Builder) Build() (string, []any) {
	where, args := b.buildWhere()
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s%s",
		b.projection.Columns(),
		b.projection.From(),
		where,
		b.buildOrderBy(),
	)
	return sql, args
}

// BuildCount returns a COUNT(*) over the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.buildWhere()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.projection.From(), where), args
}

func (b *Builder) where(field, op string, value any) *Builder {
	if value == nil {
		return b
	}
	b.conditions = append(b.conditions, condition{
		clause: fmt.Sprintf("%s %s $%%d", b.projection.Column(field), op),
		args:   []any{value},
	})
	return b
}

func (b *Builder) buildWhere() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}

	clauses := make([]string, len(b.conditions))
	var args []any
	for i, c := range b.conditions {
		placeholders := make([]any, len(c.args))
		for j := range c.args {
			placeholders[j] = len(args) + j + 1
		}
		clauses[i] = fmt.Sprintf(c.clause, placeholders...)
		args = append(args, c.args...)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (b *Builder) buildOrderBy() string {
	if len(b.orderBy) == 0 {
		return ""
	}

	parts := make([]string, len(b.orderBy))
	for i, f := range b.orderBy {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		parts[i] = b.projection.Column(f.Field) + " " + dir
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
