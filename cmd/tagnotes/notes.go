package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/normalize"
	"github.com/listenupapp/tagnotes/internal/pending"
	"github.com/listenupapp/tagnotes/internal/search"
	"github.com/listenupapp/tagnotes/internal/service"
)

// deletePoll is how often delete waits check the note's delete state.
const deletePoll = 50 * time.Millisecond

func newNotesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note"},
		Short:   "List, add, search and delete notes",
	}
	cmd.AddCommand(
		newNotesListCmd(a),
		newNotesAddCmd(a),
		newNotesSearchCmd(a),
		newNotesDeleteCmd(a),
	)
	return cmd
}

func newNotesListCmd(a *app) *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			var notes []service.NoteView
			if tag != "" {
				t, err := resolveTag(ctx, svc.tags, tag)
				if err != nil {
					return err
				}
				notes, err = svc.notes.ByTag(ctx, t.ID)
				if err != nil {
					return err
				}
			} else {
				notes, err = svc.notes.List(ctx)
				if err != nil {
					return err
				}
			}
			return a.printer(cmd).notes(notes)
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only notes with this tag (id or text)")
	return cmd
}

func newNotesAddCmd(a *app) *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a note",
		Long: `Add a note. Words after the command are joined into the note text.
Tags given with --tag are matched by text and created when missing.`,
		Example: `  tagnotes notes add buy raw honey --tag shopping --tag bee`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			text := strings.Join(args, " ")
			if err := svc.notes.Check(text); err != nil {
				return err
			}

			var tagIDs []domain.ID
			for _, t := range tags {
				tag, _, err := svc.tags.FindOrCreate(ctx, t)
				if err != nil {
					return err
				}
				tagIDs = append(tagIDs, tag.ID)
			}

			note, err := svc.notes.Add(ctx, text, tagIDs)
			if err != nil {
				return err
			}
			return a.printer(cmd).notes([]service.NoteView{{Note: note}})
		},
	}

	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "tag text, repeatable")
	return cmd
}

func newNotesSearchCmd(a *app) *cobra.Command {
	var (
		tag   string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search over notes and their tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			params := search.Params{Query: strings.Join(args, " "), Limit: limit}
			if tag != "" {
				t, err := resolveTag(ctx, svc.tags, tag)
				if err != nil {
					return err
				}
				params.TagID = t.ID
			}

			res, err := svc.notes.Search(ctx, params)
			if err != nil {
				return err
			}
			p := a.printer(cmd)
			return p.print(res, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tSCORE\tTEXT\tTAGS")
				for _, hit := range res.Hits {
					fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n", hit.ID, hit.Score, oneLine(hit.Text), tagTexts(hit.Tags))
				}
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only notes with this tag (id or text)")
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of hits")
	return cmd
}

func newNotesDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a note after the undo window",
		Long: `Delete a note. The note stays until the grace period ends; press
Ctrl-C before then to undo.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			noteID := domain.ID(args[0])

			ok, err := svc.notes.RequestDelete(ctx, noteID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("a delete of note %s is already in progress", noteID)
			}

			p := a.printer(cmd)
			p.message("Deleting %s in %s. Press Ctrl-C to undo.", noteID, svc.notes.Deleter().GracePeriod())

			undo, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			if err := waitForDelete(undo, svc.notes, noteID); err != nil {
				if errors.Is(err, context.Canceled) && svc.notes.CancelDelete(noteID) {
					p.message("Delete undone")
					return nil
				}
				return err
			}

			notes, err := svc.notes.List(ctx)
			if err != nil {
				return err
			}
			if slices.ContainsFunc(notes, func(n service.NoteView) bool { return n.ID == noteID }) {
				return fmt.Errorf("note %s could not be deleted", noteID)
			}
			p.message("Deleted %s", noteID)
			return nil
		},
	}
	return cmd
}

// waitForDelete blocks until the delete of noteID has finished, or ctx ends.
func waitForDelete(ctx context.Context, notes *service.NoteService, noteID domain.ID) error {
	ticker := time.NewTicker(deletePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if notes.DeleteState(noteID) == pending.StateNone {
				return nil
			}
		}
	}
}

// resolveTag finds a tag by id, or by text the way tags are normalized.
func resolveTag(ctx context.Context, tags *service.TagService, ref string) (domain.Tag, error) {
	all, err := tags.Load(ctx)
	if err != nil {
		return domain.Tag{}, err
	}
	text := normalize.TagText(ref)
	for _, t := range all {
		if t.ID.String() == ref || t.Text == text {
			return t, nil
		}
	}
	return domain.Tag{}, fmt.Errorf("no tag %q", ref)
}
