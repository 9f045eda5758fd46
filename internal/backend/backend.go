// Package backend defines the persistence and auth collaborator the data
// layer talks to. Implementations live in the rest (hosted, Supabase
// compatible) and local (embedded SQLite) subpackages.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/errors"
)

// Tables the application reads and writes.
const (
	TableNotes     = "notes"
	TableTags      = "tags"
	TableNotesTags = "notes_tags"
	TableUsers     = "users"
)

// EmbedNotesAndTags selects a join row with both ends resolved.
const EmbedNotesAndTags = "notes(*),tags(*)"

// ErrSignedOut is returned by data calls made without a session.
var ErrSignedOut = errors.Unauthorized("not signed in")

// Backend is the remote collaborator. Every failure is an *errors.Error
// whose Message is fit to show the user; HTTP-backed failures carry Status.
//
// dest arguments are pointers to a slice the JSON representation of the
// affected rows decodes into. A nil dest skips returning rows.
type Backend interface {
	// CurrentUser returns the signed-in user, or nil when signed out.
	CurrentUser(ctx context.Context) (*domain.User, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context) error
	UpdateUser(ctx context.Context, email, password string) (*domain.User, error)

	Select(ctx context.Context, table string, q Query, dest any) error
	Insert(ctx context.Context, table string, rows any, dest any) error
	Update(ctx context.Context, table string, filters []Filter, patch any, dest any) error
	Delete(ctx context.Context, table string, filters []Filter) error

	Close() error
}

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	// Load returns the saved session, or nil when there is none.
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Clear(ctx context.Context) error
}

// Op is a filter comparison.
type Op string

// Supported comparisons.
const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpIn  Op = "in"
)

// Filter restricts the rows a call applies to.
type Filter struct {
	Column string
	Op     Op
	Values []string
}

// Eq matches rows whose column equals v.
func Eq(column string, v any) Filter {
	return Filter{Column: column, Op: OpEq, Values: []string{fmt.Sprint(v)}}
}

// Neq matches rows whose column differs from v.
func Neq(column string, v any) Filter {
	return Filter{Column: column, Op: OpNeq, Values: []string{fmt.Sprint(v)}}
}

// In matches rows whose column is one of vs.
func In[T any](column string, vs ...T) Filter {
	values := make([]string, len(vs))
	for i, v := range vs {
		values[i] = fmt.Sprint(v)
	}
	return Filter{Column: column, Op: OpIn, Values: values}
}

// Value returns the single comparison value of an eq or neq filter.
func (f Filter) Value() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// String renders the filter for logs ("note_id=eq.7").
func (f Filter) String() string {
	if f.Op == OpIn {
		return f.Column + "=in.(" + strings.Join(f.Values, ",") + ")"
	}
	return f.Column + "=" + string(f.Op) + "." + f.Value()
}

// Order sorts selected rows.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a select.
type Query struct {
	// Select lists columns and embedded relations. Empty means "*".
	Select  string
	Filters []Filter
	Order   []Order
	// Limit caps the number of rows; zero means no cap.
	Limit int
}

// Columns returns Select, defaulting to "*".
func (q Query) Columns() string {
	if strings.TrimSpace(q.Select) == "" {
		return "*"
	}
	return q.Select
}

// Where is shorthand for a query with only filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}
