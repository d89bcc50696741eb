package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/counts"
	"github.com/randalmurphal/featureplus/internal/entity"
)

// groupCounts is one row of the counts output.
type groupCounts struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	counts.Summary
}

func newCountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show the status board and per-group task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				board := r.sess.Counts.StatusCounts(r.project)
				groups := []groupCounts{}
				for _, id := range r.sess.Hierarchy.Roots(r.project) {
					f, ok := r.sess.Store.Feature(id)
					if !ok {
						continue
					}
					groups = append(groups, groupCounts{ID: f.ID, Title: f.Title, Summary: r.sess.Counts.Summary(id)})
				}
				if jsonOut {
					return printJSON(r.out, map[string]any{"status_counts": board, "groups": groups})
				}

				s := r.styles
				fmt.Fprintf(r.out, "%s %d   %s %d   %s %d   (%s)\n\n",
					s.statusLabel(entity.StatusTodo), board.Todo,
					s.statusLabel(entity.StatusInProgress), board.InProgress,
					s.statusLabel(entity.StatusDone), board.Done,
					plural(board.Total(), "feature"))
				if len(groups) == 0 {
					return nil
				}
				w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tGROUP\tSUB-FEATURES\tTASKS\tALL TASKS")
				for _, g := range groups {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", g.ID, truncate(g.Title, 40), g.Children, g.Tasks, g.DescendantTasks)
				}
				return w.Flush()
			})
		},
	}
}
