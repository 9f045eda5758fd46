package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/service"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return &printer{w: w, format: format}, nil
	default:
		return nil, fmt.Errorf("invalid output format %q: want table, json or yaml", format)
	}
}

// print writes v as JSON or YAML, or calls table for the table format.
func (p *printer) print(v any, table func(tw *tabwriter.Writer)) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		return p.yaml(v)
	default:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

// yaml goes through JSON first so keys follow the json tags.
func (p *printer) yaml(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// message prints a line for humans. JSON and YAML output stay machine-readable.
func (p *printer) message(format string, args ...any) {
	if p.format != formatTable {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) notes(notes []service.NoteView) error {
	if notes == nil {
		notes = []service.NoteView{}
	}
	return p.print(notes, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tTEXT\tTAGS\tCREATED")
		for _, n := range notes {
			text := n.Text
			if n.DeleteState != pending.StateNone {
				text += " (deleting)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, oneLine(text), tagTexts(n.Tags), formatTime(n.CreatedAt))
		}
	})
}

func (p *printer) tags(tags []domain.Tag) error {
	if tags == nil {
		tags = []domain.Tag{}
	}
	return p.print(tags, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tTEXT\tCOLOR\tUPDATED")
		for _, t := range tags {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Text, t.Color, formatTime(t.UpdatedAt))
		}
	})
}

func (p *printer) user(u *domain.User) error {
	return p.print(u, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "ID\tEMAIL\tCREATED")
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Email, formatTime(u.CreatedAt))
	})
}

func tagTexts(tags []domain.Tag) string {
	texts := make([]string, len(tags))
	for i, t := range tags {
		texts[i] = t.Text
	}
	return strings.Join(texts, ", ")
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 60 {
		return string(r[:59]) + "…"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
