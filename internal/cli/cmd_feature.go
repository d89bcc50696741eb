package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
	"github.com/randalmurphal/featureplus/internal/tags"
)

func newFeatureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "feature",
		Aliases: []string{"f"},
		Short:   "Manage features and sub-features",
		Long: `Manage the feature hierarchy of the selected project.

A feature without a parent is a feature group; features under it are
sub-features. Tasks belong to exactly one feature.`,
	}
	cmd.AddCommand(newFeatureAddCmd())
	cmd.AddCommand(newFeatureEditCmd())
	cmd.AddCommand(newFeatureSetCmd())
	cmd.AddCommand(newFeatureMvCmd())
	cmd.AddCommand(newFeatureRmCmd())
	cmd.AddCommand(newFeatureShowCmd())
	cmd.AddCommand(newFeatureTreeCmd())
	return cmd
}

func newFeatureAddCmd() *cobra.Command {
	var (
		parent, description, status, priority, category, assignee, tagList string
	)
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a feature group, or a sub-feature with --parent",
		Args:  cobra.ExactArgs(1),
		Example: `  featureplus feature add "Checkout" --tags "payments, ui"
  featureplus feature add "Card form" --parent 12 --status in_progress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f := entity.NewFeature(r.project, args[0])
				f.Description = description
				f.Category = category
				f.AssigneeID = assignee
				if status != "" {
					f.Status = entity.Status(status)
				}
				if priority != "" {
					f.Priority = entity.Priority(priority)
				}
				f.SetParent(parent)
				f.Tags = tags.Parse(tagList)

				created, err := r.await(r.sess.Coordinator.Create(f))
				if err != nil {
					return err
				}
				return r.done("Created", created, created.Key())
			})
		},
	}
	cmd.Flags().StringVarP(&parent, "parent", "p", "", "parent feature id (makes a sub-feature)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "feature description")
	cmd.Flags().StringVar(&status, "status", "", "todo, in_progress or done (default todo)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium or high (default medium)")
	cmd.Flags().StringVar(&category, "category", "", "category from the project config")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee user id")
	cmd.Flags().StringVarP(&tagList, "tags", "t", "", "tags separated by spaces, commas or semicolons")
	return cmd
}

// editFlags maps feature edit flags to patch fields.
var editFlags = map[string]string{
	"title":       entity.FieldTitle,
	"description": entity.FieldDescription,
	"status":      entity.FieldStatus,
	"priority":    entity.FieldPriority,
	"category":    entity.FieldCategory,
	"assignee":    entity.FieldAssigneeID,
}

func newFeatureEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change fields of a feature",
		Args:  cobra.ExactArgs(1),
		Example: `  featureplus feature edit 12 --status done
  featureplus feature edit 12 --title "Checkout v2" --priority high`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := entity.Patch{}
			for flag, field := range editFlags {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					patch[field] = v
				}
			}
			if len(patch) == 0 {
				return errors.ErrValidation("flags", "nothing to change; pass at least one of --title, --description, --status, --priority, --category, --assignee")
			}
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				return r.patchFeature(args[0], patch)
			})
		},
	}
	for flag := range editFlags {
		cmd.Flags().String(flag, "", "new "+flag)
	}
	return cmd
}

func newFeatureSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set ID FIELD [VALUE]",
		Short: "Set one field of a feature",
		Long: `Set one field of a feature, as the field patch endpoint does.

Fields: title, description, status, priority, assignee_id, category,
parent_feature_id, tags. An omitted VALUE clears the field; for
parent_feature_id that makes the feature a group. Tags are given as one
space or comma separated list.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			field := args[1]
			var value any
			if len(args) == 3 {
				value = args[2]
			}
			switch field {
			case entity.FieldTags:
				raw, _ := value.(string)
				value = tags.Parse(raw)
			case entity.FieldParentFeatureID:
				if value == "" {
					value = nil
				}
			}
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				return r.patchFeature(args[0], entity.Patch{field: value})
			})
		},
	}
}

func (r *runner) patchFeature(id string, patch entity.Patch) error {
	f, err := r.feature(id)
	if err != nil {
		return err
	}
	updated, err := r.await(r.sess.Coordinator.Patch(f.Key(), patch))
	if err != nil {
		return err
	}
	return r.done("Updated", updated, updated.Key())
}

func newFeatureMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv ID [PARENT]",
		Short: "Move a feature under PARENT, or make it a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := ""
			if len(args) == 2 {
				parent = args[1]
			}
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				moved, err := r.await(r.sess.Coordinator.Move(f.ID, parent))
				if err != nil {
					return err
				}
				return r.done("Moved", moved, moved.Key())
			})
		},
	}
}

func newFeatureRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a feature and its tasks",
		Long: `Delete a feature. Its tasks are deleted with it. A feature that still
has sub-features cannot be deleted; move or delete them first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				key := f.Key()
				if _, err := r.await(r.sess.Coordinator.Delete(key)); err != nil {
					return err
				}
				return r.done("Deleted", nil, key)
			})
		},
	}
}

// featureDetail is the JSON shape of feature show.
type featureDetail struct {
	Feature   *entity.Feature `json:"feature"`
	Ancestors []string        `json:"ancestors"`
	Children  []string        `json:"children"`
	Tasks     []*entity.Task  `json:"tasks"`
	Counts    any             `json:"counts"`
}

func newFeatureShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a feature with its breadcrumb, sub-features and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				d := featureDetail{
					Feature:   f,
					Ancestors: r.sess.Hierarchy.Ancestors(f.ID),
					Children:  r.sess.Hierarchy.ChildrenOf(f.ID),
					Tasks: r.sess.Store.Tasks(func(t *entity.Task) bool {
						return t.Owner() == f.ID
					}),
					Counts: r.sess.Counts.Summary(f.ID),
				}
				if jsonOut {
					return printJSON(r.out, d)
				}
				r.printFeature(d)
				return nil
			})
		},
	}
}

func (r *runner) printFeature(d featureDetail) {
	s := r.styles
	f := d.Feature

	if len(d.Ancestors) > 0 {
		crumbs := make([]string, 0, len(d.Ancestors))
		for _, id := range d.Ancestors {
			if a, ok := r.sess.Store.Feature(id); ok {
				crumbs = append(crumbs, a.Title)
			}
		}
		slices.Reverse(crumbs)
		fmt.Fprintln(r.out, s.paint(s.subtle, strings.Join(crumbs, " / ")+" /"))
	}
	fmt.Fprintf(r.out, "%s %s %s\n", s.paint(s.title, f.Title), s.paint(s.subtle, "("+f.ID+")"), s.statusLabel(f.Status))
	if f.Description != "" {
		fmt.Fprintln(r.out, f.Description)
	}
	fmt.Fprintf(r.out, "\nPriority: %s\n", f.Priority)
	if f.Category != "" {
		fmt.Fprintf(r.out, "Category: %s\n", f.Category)
	}
	if f.AssigneeID != "" {
		fmt.Fprintf(r.out, "Assignee: %s\n", f.AssigneeID)
	}
	if len(f.Tags) > 0 {
		fmt.Fprintf(r.out, "Tags:     %s\n", s.chips(f.Tags))
	}

	if len(d.Children) > 0 {
		fmt.Fprintln(r.out, "\nSub-features:")
		for _, id := range d.Children {
			if c, ok := r.sess.Store.Feature(id); ok {
				fmt.Fprintf(r.out, "  %s\n", s.featureLine(c, r.sess.Counts.Summary(id)))
			}
		}
	}
	if len(d.Tasks) > 0 {
		fmt.Fprintln(r.out, "\nTasks:")
		for _, t := range d.Tasks {
			fmt.Fprintf(r.out, "  %s %-8s %s\n", s.paint(s.subtle, t.ID), t.TaskType, t.TaskName)
		}
	}
}

func newFeatureTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the project's feature hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				if jsonOut {
					return printJSON(r.out, r.treeJSON())
				}
				if len(r.sess.Hierarchy.Roots(r.project)) == 0 {
					fmt.Fprintln(r.out, "No features yet. Add one with 'featureplus feature add TITLE'.")
					return nil
				}
				r.styles.renderTree(r.out, treeSource{
					hierarchy: r.sess.Hierarchy,
					counts:    r.sess.Counts,
					feature:   r.sess.Store.Feature,
				}, r.project)
				return nil
			})
		},
	}
}

// treeNode is the JSON shape of feature tree.
type treeNode struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Status   string      `json:"status"`
	Tags     []string    `json:"tags"`
	Tasks    int         `json:"tasks"`
	Children []*treeNode `json:"children"`
}

func (r *runner) treeJSON() []*treeNode {
	byOwner := r.sess.Counts.TaskCounts()
	var build func(id string) *treeNode
	build = func(id string) *treeNode {
		f, ok := r.sess.Store.Feature(id)
		if !ok {
			return nil
		}
		n := &treeNode{ID: f.ID, Title: f.Title, Status: string(f.Status), Tags: f.Tags, Tasks: byOwner[f.ID], Children: []*treeNode{}}
		for _, c := range r.sess.Hierarchy.ChildrenOf(id) {
			if child := build(c); child != nil {
				n.Children = append(n.Children, child)
			}
		}
		return n
	}
	out := []*treeNode{}
	for _, id := range r.sess.Hierarchy.Roots(r.project) {
		if n := build(id); n != nil {
			out = append(out, n)
		}
	}
	return out
}
