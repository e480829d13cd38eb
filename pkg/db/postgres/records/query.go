package records

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	kdb "github.com/opst/knitmeta/pkg/db"
)

// Field is a pair of a column and its value.
//
// In conditions, it means equality. A nil Value means "IS NULL".
type Field struct {
	Column string
	Value  any
}

func Eq(column string, value any) Field {
	return Field{Column: column, Value: value}
}

type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order {
	return Order{Column: column}
}

func Desc(column string) Order {
	return Order{Column: column, Desc: true}
}

// Statement is a SQL statement with its parameters.
type Statement interface {
	// Table which the statement reads or writes.
	Target() Table

	// SQL builds query text and its parameters.
	//
	// If it refers a column not in the whitelist of the table, it returns ErrUnknownColumn.
	SQL() (string, []any, error)
}

func ident(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// params collects bind parameters.
type params []any

func (p *params) bind(v any) string {
	*p = append(*p, v)
	return fmt.Sprintf("$%d", len(*p))
}

func checkColumn(t Table, column string) error {
	if !t.Has(column) {
		return fmt.Errorf("%w: %s.%s", kdb.ErrUnknownColumn, t.Name, column)
	}
	return nil
}

func columnList(t Table) string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, ident(c))
	}
	return strings.Join(cols, ", ")
}

func where(t Table, conds []Field, p *params) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}
	terms := make([]string, 0, len(conds))
	for _, c := range conds {
		if err := checkColumn(t, c.Column); err != nil {
			return "", err
		}
		if c.Value == nil {
			terms = append(terms, ident(c.Column)+" IS NULL")
			continue
		}
		terms = append(terms, ident(c.Column)+" = "+p.bind(c.Value))
	}
	return " WHERE " + strings.Join(terms, " AND "), nil
}

// Query selects rows of Table.
type Query struct {
	Table   Table
	Where   []Field
	OrderBy []Order

	// zero means no limit.
	Limit int
}

var _ Statement = Query{}

func (q Query) Target() Table {
	return q.Table
}

func (q Query) SQL() (string, []any, error) {
	p := params{}
	b := &strings.Builder{}
	fmt.Fprintf(b, "SELECT %s FROM %s", columnList(q.Table), ident(q.Table.Name))

	w, err := where(q.Table, q.Where, &p)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(w)

	if 0 < len(q.OrderBy) {
		orders := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			if err := checkColumn(q.Table, o.Column); err != nil {
				return "", nil, err
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			orders = append(orders, ident(o.Column)+" "+dir)
		}
		b.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if 0 < q.Limit {
		b.WriteString(" LIMIT " + p.bind(q.Limit))
	}

	return b.String(), p, nil
}

// Insert inserts a row and returns the persisted row.
type Insert struct {
	Table  Table
	Values []Field

	// When true, a row conflicting with existing ones is skipped silently.
	OnConflictDoNothing bool
}

var _ Statement = Insert{}

func (i Insert) Target() Table {
	return i.Table
}

func (i Insert) SQL() (string, []any, error) {
	if len(i.Values) == 0 {
		return "", nil, fmt.Errorf("%w: no values to insert into %s", kdb.ErrInvalid, i.Table.Name)
	}
	p := params{}
	cols := make([]string, 0, len(i.Values))
	vals := make([]string, 0, len(i.Values))
	for _, f := range i.Values {
		if err := checkColumn(i.Table, f.Column); err != nil {
			return "", nil, err
		}
		cols = append(cols, ident(f.Column))
		vals = append(vals, p.bind(f.Value))
	}

	b := &strings.Builder{}
	fmt.Fprintf(
		b, "INSERT INTO %s (%s) VALUES (%s)",
		ident(i.Table.Name), strings.Join(cols, ", "), strings.Join(vals, ", "),
	)
	if i.OnConflictDoNothing {
		b.WriteString(" ON CONFLICT DO NOTHING")
	}
	b.WriteString(" RETURNING " + columnList(i.Table))
	return b.String(), p, nil
}

// Update sets values to rows matching Where, and returns updated rows.
type Update struct {
	Table Table
	Set   []Field
	Where []Field
}

var _ Statement = Update{}

func (u Update) Target() Table {
	return u.Table
}

func (u Update) SQL() (string, []any, error) {
	if len(u.Set) == 0 {
		return "", nil, fmt.Errorf("%w: nothing to update in %s", kdb.ErrInvalid, u.Table.Name)
	}
	p := params{}
	sets := make([]string, 0, len(u.Set))
	for _, f := range u.Set {
		if err := checkColumn(u.Table, f.Column); err != nil {
			return "", nil, err
		}
		sets = append(sets, ident(f.Column)+" = "+p.bind(f.Value))
	}

	w, err := where(u.Table, u.Where, &p)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s%s RETURNING %s",
		ident(u.Table.Name), strings.Join(sets, ", "), w, columnList(u.Table),
	), p, nil
}

// Bump raises an integer column up to Value, on rows matching Where.
//
// The column never decreases; NULL is treated as 0.
type Bump struct {
	Table  Table
	Column string
	Value  int64
	Where  []Field
}

var _ Statement = Bump{}

func (b Bump) Target() Table {
	return b.Table
}

func (b Bump) SQL() (string, []any, error) {
	if err := checkColumn(b.Table, b.Column); err != nil {
		return "", nil, err
	}
	p := params{}
	col := ident(b.Column)
	set := fmt.Sprintf("%s = greatest(coalesce(%s, 0), %s)", col, col, p.bind(b.Value))

	w, err := where(b.Table, b.Where, &p)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s%s RETURNING %s",
		ident(b.Table.Name), set, w, columnList(b.Table),
	), p, nil
}

// describe conditions for error messages.
func describe(conds []Field) string {
	terms := make([]string, 0, len(conds))
	for _, c := range conds {
		switch v := c.Value.(type) {
		case *string:
			if v == nil {
				terms = append(terms, c.Column+"=<nil>")
			} else {
				terms = append(terms, fmt.Sprintf("%s=%s", c.Column, *v))
			}
		default:
			terms = append(terms, fmt.Sprintf("%s=%v", c.Column, c.Value))
		}
	}
	return strings.Join(terms, ", ")
}

// Exists tells whether any row matches Where.
type Exists struct {
	Table Table
	Where []Field
}

var _ Statement = Exists{}

func (e Exists) Target() Table {
	return e.Table
}

func (e Exists) SQL() (string, []any, error) {
	p := params{}
	w, err := where(e.Table, e.Where, &p)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s%s)", ident(e.Table.Name), w), p, nil
}

// Attributes are fields common to new records.
//
// Zero TsEpoch is omitted, so the database default (now) is used.
func Attributes(a kdb.Attributes) []Field {
	fs := []Field{
		Eq("user_name", a.UserName),
		Eq("tags", kdb.NewTagSet(a.Tags)),
		Eq("system_tags", kdb.NewTagSet(a.SystemTags)),
	}
	if a.TsEpoch != 0 {
		fs = append(fs, Eq("ts_epoch", a.TsEpoch))
	}
	return fs
}
