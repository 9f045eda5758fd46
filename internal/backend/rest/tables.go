package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/listenupapp/tagnotes/internal/backend"
)

// Select reads rows from table into dest.
func (c *Client) Select(ctx context.Context, table string, q backend.Query, dest any) error {
	token, err := c.requireToken(ctx)
	if err != nil {
		return err
	}

	query := filterValues(q.Filters)
	query.Set("select", compactSelect(q.Columns()))
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		query.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}

	return c.do(ctx, request{
		method: http.MethodGet,
		path:   tablePath(table),
		query:  query,
		token:  token,
	}, dest)
}

// Insert adds rows to table. With a non-nil dest the inserted rows are
// returned (Prefer: return=representation).
func (c *Client) Insert(ctx context.Context, table string, rows any, dest any) error {
	token, err := c.requireToken(ctx)
	if err != nil {
		return err
	}

	req := request{
		method: http.MethodPost,
		path:   tablePath(table),
		body:   rows,
		header: preferHeader(dest != nil),
		token:  token,
	}
	if dest != nil {
		req.query = url.Values{"select": {"*"}}
	}
	return c.do(ctx, req, dest)
}

// Update patches the rows of table matching filters.
func (c *Client) Update(ctx context.Context, table string, filters []backend.Filter, patch any, dest any) error {
	token, err := c.requireToken(ctx)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return unfilteredError("update", table)
	}

	query := filterValues(filters)
	if dest != nil {
		query.Set("select", "*")
	}
	return c.do(ctx, request{
		method: http.MethodPatch,
		path:   tablePath(table),
		query:  query,
		body:   patch,
		header: preferHeader(dest != nil),
		token:  token,
	}, dest)
}

// Delete removes the rows of table matching filters.
func (c *Client) Delete(ctx context.Context, table string, filters []backend.Filter) error {
	token, err := c.requireToken(ctx)
	if err != nil {
		return err
	}
	if len(filters) == 0 {
		return unfilteredError("delete", table)
	}

	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   tablePath(table),
		query:  filterValues(filters),
		header: preferHeader(false),
		token:  token,
	}, nil)
}

func tablePath(table string) string {
	return "/rest/v1/" + url.PathEscape(table)
}

func preferHeader(representation bool) http.Header {
	h := http.Header{}
	if representation {
		h.Set("Prefer", "return=representation")
	} else {
		h.Set("Prefer", "return=minimal")
	}
	return h
}

// filterValues renders filters as PostgREST query parameters.
func filterValues(filters []backend.Filter) url.Values {
	q := url.Values{}
	for _, f := range filters {
		switch f.Op {
		case backend.OpIn:
			quoted := make([]string, len(f.Values))
			for i, v := range f.Values {
				quoted[i] = quote(v)
			}
			q.Add(f.Column, "in.("+strings.Join(quoted, ",")+")")
		default:
			q.Add(f.Column, string(f.Op)+"."+f.Value())
		}
	}
	return q
}

// quote wraps list values that contain PostgREST reserved characters.
func quote(v string) string {
	if !strings.ContainsAny(v, ",().:\" ") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// compactSelect strips whitespace from multi-line select expressions.
func compactSelect(s string) string {
	return strings.Join(strings.Fields(s), "")
}
