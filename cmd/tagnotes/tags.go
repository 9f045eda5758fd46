package main

import (
	"github.com/spf13/cobra"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/service"
)

func newTagsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tags",
		Aliases: []string{"tag"},
		Short:   "List and add tags",
	}
	cmd.AddCommand(newTagsListCmd(a), newTagsAddCmd(a))
	return cmd
}

func newTagsListCmd(a *app) *cobra.Command {
	var (
		recent bool
		filter string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tags, most recently used first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			tags, err := svc.tags.Recent(commandContext(cmd), service.RecentParams{
				Filter:  filter,
				ShowAll: !recent,
			})
			if err != nil {
				return err
			}
			return a.printer(cmd).tags(tags)
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", false, "only the few most recent tags")
	cmd.Flags().StringVar(&filter, "filter", "", "only tags containing this text")
	return cmd
}

func newTagsAddCmd(a *app) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a tag",
		Long: `Add a tag. Without --color a random palette color is picked, and an
existing tag with the same text is returned unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)

			var tag domain.Tag
			if color == "" {
				tag, _, err = svc.tags.FindOrCreate(ctx, args[0])
			} else {
				tag, err = svc.tags.Create(ctx, args[0], color)
			}
			if err != nil {
				return err
			}
			return a.printer(cmd).tags([]domain.Tag{tag})
		},
	}

	cmd.Flags().StringVarP(&color, "color", "c", "", "hex color, e.g. #ff6347")
	return cmd
}
