package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/tags"
)

func newTagCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Tag features and search by tag",
		Long: `Tag features and search by tag.

Tags are free-form labels. Input lists may be separated by spaces, commas
or semicolons, and a leading # is ignored.`,
	}
	cmd.AddCommand(newTagAddCmd())
	cmd.AddCommand(newTagRmCmd())
	cmd.AddCommand(newTagSetCmd())
	cmd.AddCommand(newTagFindCmd())
	cmd.AddCommand(newTagSuggestCmd())
	cmd.AddCommand(newTagListCmd())
	return cmd
}

func newTagAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add ID TAGS...",
		Short:   "Add tags to a feature",
		Args:    cobra.MinimumNArgs(2),
		Example: `  featureplus tag add 12 payments "#ui"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				updated, err := r.await(r.sess.Coordinator.AddTags(f.ID, strings.Join(args[1:], " ")))
				if err != nil {
					return err
				}
				return r.tagged(updated)
			})
		},
	}
}

func newTagRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID TAG",
		Short: "Remove a tag from a feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				updated, err := r.await(r.sess.Coordinator.RemoveTag(f.ID, strings.TrimPrefix(args[1], "#")))
				if err != nil {
					return err
				}
				return r.tagged(updated)
			})
		},
	}
}

func newTagSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set ID [TAGS...]",
		Short: "Replace a feature's tags; no TAGS clears them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				updated, err := r.await(r.sess.Coordinator.SetTags(f.ID, strings.Join(args[1:], " ")))
				if err != nil {
					return err
				}
				return r.tagged(updated)
			})
		},
	}
}

func (r *runner) tagged(e entity.Entity) error {
	f, ok := e.(*entity.Feature)
	if !ok || jsonOut {
		return r.done("Tagged", e, e.Key())
	}
	if len(f.Tags) == 0 {
		fmt.Fprintf(r.out, "Feature %s has no tags\n", f.ID)
		return nil
	}
	fmt.Fprintf(r.out, "Feature %s: %s\n", f.ID, r.styles.chips(f.Tags))
	return nil
}

func newTagFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find TAG",
		Short: "List the features carrying a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tag := strings.TrimPrefix(strings.TrimSpace(args[0]), "#")
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				found := tags.FeaturesByTag(r.sess.Store, r.sess.Tags, tag)
				if jsonOut {
					if found == nil {
						found = []*entity.Feature{}
					}
					return printJSON(r.out, found)
				}
				if len(found) == 0 {
					fmt.Fprintf(r.out, "No features tagged #%s\n", tag)
					return nil
				}
				for _, f := range found {
					fmt.Fprintln(r.out, r.styles.featureLine(f, r.sess.Counts.Summary(f.ID)))
				}
				return nil
			})
		},
	}
}

func newTagSuggestCmd() *cobra.Command {
	var exclude string
	cmd := &cobra.Command{
		Use:   "suggest QUERY",
		Short: "Suggest known tags starting with QUERY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				got := r.sess.Tags.Autocomplete(args[0], tags.Parse(exclude))
				if jsonOut {
					if got == nil {
						got = []string{}
					}
					return printJSON(r.out, got)
				}
				for _, t := range got {
					fmt.Fprintln(r.out, t)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&exclude, "exclude", "", "tags to leave out, usually the ones already chosen")
	return cmd
}

func newTagListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tag in the project with its feature count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				usage := r.sess.Tags.Usage()
				if jsonOut {
					return printJSON(r.out, usage)
				}
				if len(usage) == 0 {
					fmt.Fprintln(r.out, "No tags yet")
					return nil
				}
				names := make([]string, 0, len(usage))
				for t := range usage {
					names = append(names, t)
				}
				slices.Sort(names)

				w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TAG\tFEATURES")
				for _, t := range names {
					fmt.Fprintf(w, "#%s\t%d\n", t, usage[t])
				}
				return w.Flush()
			})
		},
	}
}
