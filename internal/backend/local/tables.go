package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/id"
)

// Select reads the signed-in user's rows of table into dest.
func (s *Store) Select(ctx context.Context, tableName string, q backend.Query, dest any) error {
	uid, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	sel, err := parseSelect(t, q.Columns())
	if err != nil {
		return err
	}

	where, args, err := whereClause(t, uid, q.Filters)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(sel.fetchColumns(t), ", "), t.name, where)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			if err := t.checkColumn(o.Column); err != nil {
				return err
			}
			parts[i] = o.Column
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return sqlError(err, t.name)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return sqlError(err, t.name)
	}

	for _, e := range sel.embeds {
		if err := s.embed(ctx, uid, e, records); err != nil {
			return err
		}
	}
	project(records, sel, t)
	return decodeInto(records, dest)
}

// embed resolves e for every record with one IN query on the target table.
func (s *Store) embed(ctx context.Context, uid string, e embedding, records []record) error {
	target := tables[e.rel.target]

	var ids []string
	for _, r := range records {
		if v, ok := r[e.rel.column].(string); ok && !slices.Contains(ids, v) {
			ids = append(ids, v)
		}
	}

	byID := map[string]record{}
	if len(ids) > 0 {
		where, args, err := whereClause(target, uid, []backend.Filter{backend.In("id", ids...)})
		if err != nil {
			return err
		}
		query := "SELECT " + strings.Join(e.sel.fetchColumns(target, "id"), ", ") + " FROM " + target.name + where
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return sqlError(err, target.name)
		}
		related, err := scanRecords(rows)
		if err != nil {
			return sqlError(err, target.name)
		}
		for _, r := range related {
			if key, ok := r["id"].(string); ok {
				byID[key] = r
			}
		}
		project(related, e.sel, target)
	}

	for _, r := range records {
		key, _ := r[e.rel.column].(string)
		if related, ok := byID[key]; ok {
			r[e.name] = related
		} else {
			r[e.name] = nil
		}
	}
	return nil
}

// project drops the columns read only to resolve embeddings.
func project(records []record, sel selection, t *table) {
	if sel.all {
		return
	}
	for _, r := range records {
		for _, c := range t.columns {
			if !sel.keeps(c) {
				delete(r, c)
			}
		}
	}
}

// Insert adds rows owned by the signed-in user. rows is a struct, a map or
// a slice of either.
func (s *Store) Insert(ctx context.Context, tableName string, rows any, dest any) error {
	uid, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	inputs, err := toRecords(rows)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return decodeInto(nil, dest)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sqlError(err, t.name)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := make([]record, 0, len(inputs))
	for _, in := range inputs {
		cols, args, err := s.insertValues(t, uid, in)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			t.name, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(t.columns, ", "))
		rs, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return sqlError(err, t.name)
		}
		out, err := scanRecords(rs)
		if err != nil {
			return sqlError(err, t.name)
		}
		inserted = append(inserted, out...)
	}
	if err := tx.Commit(); err != nil {
		return sqlError(err, t.name)
	}

	s.logger.Debug("rows inserted", "table", t.name, "count", len(inserted))
	return decodeInto(inserted, dest)
}

func (s *Store) insertValues(t *table, uid string, in record) ([]string, []any, error) {
	if owner, ok := in[t.owner]; ok && owner != nil && fmt.Sprint(owner) != uid {
		return nil, nil, rowSecurity(t.name)
	}
	in[t.owner] = uid
	if t.idPrefix != "" {
		if v, ok := in["id"]; !ok || v == nil || v == "" {
			in["id"] = id.MustGenerate(t.idPrefix)
		}
	}
	now := s.timestamp()
	for _, c := range t.stamped {
		if v, ok := in[c]; !ok || v == nil {
			in[c] = now
		}
	}
	return columnValues(t, in)
}

// Update patches the signed-in user's rows of table matching filters.
func (s *Store) Update(ctx context.Context, tableName string, filters []backend.Filter, patch any, dest any) error {
	uid, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return badRequest("UPDATE requires a WHERE clause")
	}

	inputs, err := toRecords(patch)
	if err != nil {
		return err
	}
	if len(inputs) != 1 || len(inputs[0]) == 0 {
		return badRequest("patch must be one non-empty object")
	}
	in := inputs[0]
	if owner, ok := in[t.owner]; ok && fmt.Sprint(owner) != uid {
		return rowSecurity(t.name)
	}
	delete(in, t.owner)
	if len(in) == 0 {
		return decodeInto(nil, dest)
	}

	cols, args, err := columnValues(t, in)
	if err != nil {
		return err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	where, whereArgs, err := whereClause(t, uid, filters)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s",
		t.name, strings.Join(sets, ", "), where, strings.Join(t.columns, ", "))
	rows, err := s.db.QueryContext(ctx, query, append(args, whereArgs...)...)
	if err != nil {
		return sqlError(err, t.name)
	}
	updated, err := scanRecords(rows)
	if err != nil {
		return sqlError(err, t.name)
	}
	return decodeInto(updated, dest)
}

// Delete removes the signed-in user's rows of table matching filters.
func (s *Store) Delete(ctx context.Context, tableName string, filters []backend.Filter) error {
	uid, err := s.authorize(ctx)
	if err != nil {
		return err
	}
	t, err := lookupTable(tableName)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return badRequest("DELETE requires a WHERE clause")
	}
	where, args, err := whereClause(t, uid, filters)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+t.name+where, args...)
	if err != nil {
		return sqlError(err, t.name)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("rows deleted", "table", t.name, "count", n)
	return nil
}

// whereClause always scopes to uid, so a user never sees another's rows.
func whereClause(t *table, uid string, filters []backend.Filter) (string, []any, error) {
	conds := []string{t.owner + " = ?"}
	args := []any{uid}
	for _, f := range filters {
		if err := t.checkColumn(f.Column); err != nil {
			return "", nil, err
		}
		switch f.Op {
		case backend.OpEq:
			conds = append(conds, f.Column+" = ?")
			args = append(args, f.Value())
		case backend.OpNeq:
			conds = append(conds, f.Column+" <> ?")
			args = append(args, f.Value())
		case backend.OpIn:
			if len(f.Values) == 0 {
				conds = append(conds, "0")
				continue
			}
			conds = append(conds, f.Column+" IN ("+placeholders(len(f.Values))+")")
			for _, v := range f.Values {
				args = append(args, v)
			}
		default:
			return "", nil, badRequest("unsupported operator %q", f.Op)
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// columnValues validates in against t and returns its columns in a stable
// order with their bind values.
func columnValues(t *table, in record) ([]string, []any, error) {
	cols := make([]string, 0, len(in))
	for c := range in {
		if err := t.checkColumn(c); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	slices.Sort(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		v, err := bindValue(t, c, in[c])
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return cols, args, nil
}

func bindValue(t *table, column string, v any) (any, error) {
	switch v := v.(type) {
	case nil, bool:
		return v, nil
	case string:
		if t.isTime(column) {
			ts, err := parseTime(v)
			if err != nil {
				return nil, badRequest("invalid timestamp for %s: %q", column, v)
			}
			return formatTime(ts), nil
		}
		return v, nil
	case json.Number:
		// Ids are text here; a numeric id in a filter or row means the same row.
		if n, err := v.Int64(); err == nil {
			if column == "id" || strings.HasSuffix(column, "_id") {
				return strconv.FormatInt(n, 10), nil
			}
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, badRequest("invalid number for %s", column)
		}
		return f, nil
	default:
		return nil, badRequest("column %s does not accept a JSON %T", column, v)
	}
}

// toRecords normalizes any JSON-encodable row or slice of rows.
func toRecords(rows any) ([]record, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, badRequest("rows are not valid JSON: %v", err)
	}
	b = bytes.TrimSpace(b)

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if len(b) > 0 && b[0] == '{' {
		var one record
		if err := dec.Decode(&one); err != nil {
			return nil, badRequest("rows are not valid JSON: %v", err)
		}
		return []record{one}, nil
	}
	var many []record
	if err := dec.Decode(&many); err != nil {
		return nil, badRequest("rows must be an object or an array of objects")
	}
	return many, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
