package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/entity"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "List, create and inspect projects",
	}
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectCreateCmd())
	cmd.AddCommand(newProjectShowCmd())
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, r *runner) error {
				projects, err := r.sess.Projects(ctx)
				if err != nil {
					return fmt.Errorf("list projects: %w", err)
				}
				if jsonOut {
					if projects == nil {
						projects = []*entity.Project{}
					}
					return printJSON(r.out, projects)
				}
				if len(projects) == 0 {
					fmt.Fprintln(r.out, "No projects. Create one with 'featureplus project create NAME'.")
					return nil
				}

				w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tCURRENT")
				for _, p := range projects {
					current := ""
					if p.ID == r.project {
						current = "*"
					}
					_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, truncate(p.Description, 40), current)
				}
				return w.Flush()
			})
		},
	}
}

func newProjectCreateCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a project with the default categories and task types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, r *runner) error {
				p := &entity.Project{Name: args[0], Description: description}
				created, err := r.await(r.sess.Coordinator.Create(p))
				if err != nil {
					return err
				}
				return r.done("Created", created, created.Key())
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [ID]",
		Short: "Show a project's settings and feature board",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("project", args[0]); err != nil {
					return err
				}
			}
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				p, ok := r.sess.Store.Project(r.project)
				if !ok {
					return fmt.Errorf("project %s missing from cache", r.project)
				}
				board := r.sess.Counts.StatusCounts(p.ID)
				if jsonOut {
					return printJSON(r.out, map[string]any{"project": p, "status_counts": board})
				}

				s := r.styles
				fmt.Fprintf(r.out, "%s %s\n", s.paint(s.title, p.Name), s.paint(s.subtle, "("+p.ID+")"))
				if p.Description != "" {
					fmt.Fprintln(r.out, p.Description)
				}
				fmt.Fprintf(r.out, "\nCategories: %s\n", strings.Join(p.FeatureCategories(), ", "))
				fmt.Fprintf(r.out, "Task types: %s\n", strings.Join(p.TaskTypes(), ", "))
				fmt.Fprintf(r.out, "\n%s %d   %s %d   %s %d\n",
					s.statusLabel(entity.StatusTodo), board.Todo,
					s.statusLabel(entity.StatusInProgress), board.InProgress,
					s.statusLabel(entity.StatusDone), board.Done)
				return nil
			})
		},
	}
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	return string(runes[:maxLen-3]) + "..."
}
