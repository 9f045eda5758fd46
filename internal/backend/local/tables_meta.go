package local

import (
	"slices"
	"strings"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/id"
)

// table describes one application table to the query builder. Only columns
// listed here can be selected, filtered, ordered or written.
type table struct {
	name    string
	columns []string
	// owner is the column stamped with, and filtered by, the signed-in user.
	owner string
	// idPrefix generates the primary key when an insert omits it.
	idPrefix string
	// stamped columns default to the insert time.
	stamped []string
	// times are normalized to timeLayout so they sort as text.
	times  []string
	embeds map[string]relation
}

// relation is a to-one embedding: column holds the id of a row in target.
type relation struct {
	column string
	target string
}

var tables = map[string]*table{
	backend.TableUsers: {
		name:    backend.TableUsers,
		columns: []string{"id"},
		owner:   "id",
	},
	backend.TableNotes: {
		name:     backend.TableNotes,
		columns:  []string{"id", "text", "created_at", "user_id"},
		owner:    "user_id",
		idPrefix: id.PrefixNote,
		stamped:  []string{"created_at"},
		times:    []string{"created_at"},
	},
	backend.TableTags: {
		name:     backend.TableTags,
		columns:  []string{"id", "text", "color", "created_at", "updated_at", "user_id"},
		owner:    "user_id",
		idPrefix: id.PrefixTag,
		stamped:  []string{"created_at", "updated_at"},
		times:    []string{"created_at", "updated_at"},
	},
	backend.TableNotesTags: {
		name:    backend.TableNotesTags,
		columns: []string{"note_id", "tag_id", "user_id"},
		owner:   "user_id",
		embeds: map[string]relation{
			"notes": {column: "note_id", target: backend.TableNotes},
			"tags":  {column: "tag_id", target: backend.TableTags},
		},
	},
}

func lookupTable(name string) (*table, error) {
	t, ok := tables[name]
	if !ok {
		return nil, badRequest("relation %q does not exist", name)
	}
	return t, nil
}

func (t *table) has(column string) bool { return slices.Contains(t.columns, column) }

func (t *table) isTime(column string) bool { return slices.Contains(t.times, column) }

func (t *table) checkColumn(column string) error {
	if !t.has(column) {
		return badRequest("column %s.%s does not exist", t.name, column)
	}
	return nil
}

// selection is a parsed select= expression.
type selection struct {
	// columns requested directly; all is set by "*".
	columns []string
	all     bool
	embeds  []embedding
}

type embedding struct {
	name string
	rel  relation
	sel  selection
}

// parseSelect understands the subset of PostgREST select syntax the app
// uses: "*", column lists and one level of to-one embedding ("notes(*)").
func parseSelect(t *table, expr string) (selection, error) {
	var sel selection
	for _, item := range splitTopLevel(expr) {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
			continue
		case item == "*":
			sel.all = true
		case strings.HasSuffix(item, ")"):
			open := strings.IndexByte(item, '(')
			if open <= 0 {
				return sel, badRequest("malformed select item %q", item)
			}
			name := item[:open]
			rel, ok := t.embeds[name]
			if !ok {
				return sel, badRequest("could not find a relationship between %q and %q", t.name, name)
			}
			inner, err := parseSelect(tables[rel.target], item[open+1:len(item)-1])
			if err != nil {
				return sel, err
			}
			if len(inner.embeds) > 0 {
				return sel, badRequest("nested embedding is not supported")
			}
			sel.embeds = append(sel.embeds, embedding{name: name, rel: rel, sel: inner})
		default:
			if err := t.checkColumn(item); err != nil {
				return sel, err
			}
			if !slices.Contains(sel.columns, item) {
				sel.columns = append(sel.columns, item)
			}
		}
	}
	if !sel.all && len(sel.columns) == 0 && len(sel.embeds) == 0 {
		sel.all = true
	}
	return sel, nil
}

// fetchColumns are the columns to read: the requested ones plus whatever the
// embeddings need to resolve.
func (s selection) fetchColumns(t *table, extra ...string) []string {
	if s.all {
		return t.columns
	}
	cols := slices.Clone(s.columns)
	for _, e := range s.embeds {
		extra = append(extra, e.rel.column)
	}
	for _, c := range extra {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// keeps reports whether column belongs in the output.
func (s selection) keeps(column string) bool {
	return s.all || slices.Contains(s.columns, column)
}

func splitTopLevel(expr string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, expr[start:])
}
