package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/hydrahub/internal/errs"
)

// Dialect is the placeholder and identifier-quoting style of an engine.
type Dialect int

const (
	DialectPostgres Dialect = iota // $1 placeholders, "double" quotes
	DialectMySQL                   // ? placeholders, `backtick` quotes
)

// SortDirection is the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

// Operators cannot be bound as parameters, so only these are accepted.
var operators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"LIKE": true, "ILIKE": true,
}

// The builders below never interpolate values: every value becomes a
// placeholder and lands in the returned args, in placeholder order.
//
//	sql, args, err := Select("data_assets", DialectPostgres).
//	    Columns("id", "path").
//	    Where("owner_uuid", "=", owner).
//	    OrderBy("date_created", Desc).
//	    Build()

type cond struct {
	column, op string
	value      any
}

type pair struct {
	column string
	value  any
}

type order struct {
	column string
	dir    SortDirection
}

// SelectBuilder builds a SELECT. Without Columns it selects *.
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	where   []cond
	order   []order
}

func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where adds a condition. Conditions are joined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, cond{column, op, value})
	return b
}

func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.order = append(b.order, order{column, dir})
	return b
}

func (b *SelectBuilder) Build() (string, []any, error) {
	w := newWriter(b.dialect)
	w.str("SELECT ")
	if len(b.columns) == 0 {
		w.str("*")
	} else {
		w.idents(b.columns)
	}
	w.str(" FROM ").ident(b.table)
	if err := w.where(b.where); err != nil {
		return "", nil, err
	}
	for i, o := range b.order {
		if i == 0 {
			w.str(" ORDER BY ")
		} else {
			w.str(", ")
		}
		w.ident(o.column)
		if o.dir == Desc {
			w.str(" DESC")
		} else {
			w.str(" ASC")
		}
	}
	return w.done()
}

// InsertBuilder builds a single-row INSERT. Columns keep call order.
type InsertBuilder struct {
	table   string
	dialect Dialect
	values  []pair
}

func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	b.values = append(b.values, pair{column, value})
	return b
}

func (b *InsertBuilder) Build() (string, []any, error) {
	if len(b.values) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "insert into "+b.table+" has no columns")
	}

	w := newWriter(b.dialect)
	cols := make([]string, len(b.values))
	for i, v := range b.values {
		cols[i] = v.column
	}
	w.str("INSERT INTO ").ident(b.table).str(" (").idents(cols).str(") VALUES (")
	for i, v := range b.values {
		if i > 0 {
			w.str(", ")
		}
		w.bind(v.value)
	}
	w.str(")")
	return w.done()
}

// UpdateBuilder builds an UPDATE. It refuses to build without a WHERE.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	set     []pair
	where   []cond
}

func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.set = append(b.set, pair{column, value})
	return b
}

func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where = append(b.where, cond{column, op, value})
	return b
}

func (b *UpdateBuilder) Build() (string, []any, error) {
	switch {
	case len(b.set) == 0:
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update of "+b.table+" sets no columns")
	case len(b.where) == 0:
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update of "+b.table+" has no WHERE clause")
	}

	w := newWriter(b.dialect)
	w.str("UPDATE ").ident(b.table).str(" SET ")
	for i, s := range b.set {
		if i > 0 {
			w.str(", ")
		}
		w.ident(s.column).str(" = ").bind(s.value)
	}
	if err := w.where(b.where); err != nil {
		return "", nil, err
	}
	return w.done()
}

// DeleteBuilder builds a DELETE. It refuses to build without a WHERE.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   []cond
}

func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d}
}

func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where = append(b.where, cond{column, op, value})
	return b
}

func (b *DeleteBuilder) Build() (string, []any, error) {
	if len(b.where) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "delete from "+b.table+" has no WHERE clause")
	}

	w := newWriter(b.dialect)
	w.str("DELETE FROM ").ident(b.table)
	if err := w.where(b.where); err != nil {
		return "", nil, err
	}
	return w.done()
}

// writer accumulates statement text and its bound args.
type writer struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func newWriter(d Dialect) *writer {
	return &writer{d: d}
}

func (w *writer) str(s string) *writer {
	w.sb.WriteString(s)
	return w
}

// ident writes name quoted for the dialect, doubling embedded quotes.
func (w *writer) ident(name string) *writer {
	q := `"`
	if w.d == DialectMySQL {
		q = "`"
	}
	return w.str(q + strings.ReplaceAll(name, q, q+q) + q)
}

func (w *writer) idents(names []string) *writer {
	for i, n := range names {
		if i > 0 {
			w.str(", ")
		}
		w.ident(n)
	}
	return w
}

func (w *writer) bind(v any) *writer {
	w.args = append(w.args, v)
	if w.d == DialectMySQL {
		return w.str("?")
	}
	return w.str(fmt.Sprintf("$%d", len(w.args)))
}

func (w *writer) where(conds []cond) error {
	for i, c := range conds {
		op := strings.ToUpper(c.op)
		if !operators[op] {
			return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf("unsupported WHERE operator: %q", c.op))
		}
		// MySQL has no ILIKE; its default collations compare
		// case-insensitively anyway.
		if op == "ILIKE" && w.d == DialectMySQL {
			op = "LIKE"
		}
		if i == 0 {
			w.str(" WHERE ")
		} else {
			w.str(" AND ")
		}
		w.ident(c.column).str(" " + op + " ").bind(c.value)
	}
	return nil
}

func (w *writer) done() (string, []any, error) {
	return w.sb.String(), w.args, nil
}
