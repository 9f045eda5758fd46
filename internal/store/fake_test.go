package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/listenupapp/tagnotes/internal/backend"
	"github.com/listenupapp/tagnotes/internal/domain"
)

// call is one recorded backend call.
type call struct {
	Verb    string
	Table   string
	Filters []string
	Body    string
}

// fakeBackend records calls and answers Select from canned JSON.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []call
	user    *domain.User
	selects map[string]string
	inserts map[string]string
	updates map[string]string
	err     map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		user:    &domain.User{ID: "u1", Email: "a@b.co"},
		selects: map[string]string{},
		inserts: map[string]string{},
		updates: map[string]string{},
		err:     map[string]error{},
	}
}

func (f *fakeBackend) record(verb, table string, filters []backend.Filter, body any) error {
	c := call{Verb: verb, Table: table}
	for _, fl := range filters {
		c.Filters = append(c.Filters, fl.String())
	}
	if body != nil {
		b, _ := json.Marshal(body)
		c.Body = string(b)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.err[verb+" "+table]
}

func (f *fakeBackend) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeBackend) callsFor(verb, table string) []call {
	var out []call
	for _, c := range f.Calls() {
		if c.Verb == verb && c.Table == table {
			out = append(out, c)
		}
	}
	return out
}

func decode(raw string, dest any) error {
	if dest == nil || raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (f *fakeBackend) CurrentUser(context.Context) (*domain.User, error) {
	if err := f.record("user", "", nil, nil); err != nil {
		return nil, err
	}
	return f.user, nil
}

func (f *fakeBackend) SignUp(context.Context, string, string) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeBackend) SignIn(context.Context, string, string) (*domain.Session, error) {
	return nil, nil
}

func (f *fakeBackend) SignOut(context.Context) error { return nil }

func (f *fakeBackend) UpdateUser(context.Context, string, string) (*domain.User, error) {
	return f.user, nil
}

func (f *fakeBackend) Select(_ context.Context, table string, q backend.Query, dest any) error {
	if err := f.record("select", table, q.Filters, nil); err != nil {
		return err
	}
	return decode(f.selects[table], dest)
}

func (f *fakeBackend) Insert(_ context.Context, table string, rows any, dest any) error {
	if err := f.record("insert", table, nil, rows); err != nil {
		return err
	}
	return decode(f.inserts[table], dest)
}

func (f *fakeBackend) Update(_ context.Context, table string, filters []backend.Filter, patch any, dest any) error {
	if err := f.record("update", table, filters, patch); err != nil {
		return err
	}
	return decode(f.updates[table], dest)
}

func (f *fakeBackend) Delete(_ context.Context, table string, filters []backend.Filter) error {
	return f.record("delete", table, filters, nil)
}

func (f *fakeBackend) Close() error { return nil }
