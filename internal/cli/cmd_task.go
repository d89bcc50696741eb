package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the tasks of a feature",
	}
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskEditCmd())
	cmd.AddCommand(newTaskRmCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskCommentCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var taskType, description string
	cmd := &cobra.Command{
		Use:     "add FEATURE_ID NAME",
		Short:   "Add a task to a feature",
		Args:    cobra.ExactArgs(2),
		Example: `  featureplus task add 12 "Card form layout" --type UI`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				f, err := r.feature(args[0])
				if err != nil {
					return err
				}
				t := &entity.Task{
					FeatureID:   f.ID,
					TaskType:    entity.TaskType(taskType),
					TaskName:    args[1],
					Description: description,
				}
				created, err := r.await(r.sess.Coordinator.Create(t))
				if err != nil {
					return err
				}
				return r.done("Created", created, created.Key())
			})
		},
	}
	cmd.Flags().StringVar(&taskType, "type", string(entity.TaskTypeBackend), "UI, Backend or DB")
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	return cmd
}

func newTaskEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change the name, type or description of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := entity.Patch{}
			for flag, field := range map[string]string{
				"name":        entity.FieldTaskName,
				"type":        entity.FieldTaskType,
				"description": entity.FieldDescription,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					patch[field] = v
				}
			}
			if len(patch) == 0 {
				return errors.ErrValidation("flags", "nothing to change; pass --name, --type or --description")
			}
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				key := r.sess.Coordinator.Resolve(entity.TaskKey(args[0]))
				if !r.sess.Store.Has(key) {
					return errors.ErrNotFound(key.String())
				}
				updated, err := r.await(r.sess.Coordinator.Patch(key, patch))
				if err != nil {
					return err
				}
				return r.done("Updated", updated, updated.Key())
			})
		},
	}
	cmd.Flags().String("name", "", "new task name")
	cmd.Flags().String("type", "", "new task type")
	cmd.Flags().String("description", "", "new description")
	return cmd
}

func newTaskRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				key := r.sess.Coordinator.Resolve(entity.TaskKey(args[0]))
				if !r.sess.Store.Has(key) {
					return errors.ErrNotFound(key.String())
				}
				if _, err := r.await(r.sess.Coordinator.Delete(key)); err != nil {
					return err
				}
				return r.done("Deleted", nil, key)
			})
		},
	}
}

func newTaskListCmd() *cobra.Command {
	var featureID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally only those of one feature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				owner := ""
				if featureID != "" {
					f, err := r.feature(featureID)
					if err != nil {
						return err
					}
					owner = f.ID
				}
				list := r.sess.Store.Tasks(func(t *entity.Task) bool {
					return owner == "" || t.Owner() == owner
				})
				if jsonOut {
					if list == nil {
						list = []*entity.Task{}
					}
					return printJSON(r.out, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(r.out, "No tasks found")
					return nil
				}
				w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tFEATURE\tTYPE\tNAME")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Owner(), t.TaskType, truncate(t.TaskName, 50))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&featureID, "feature", "f", "", "only tasks of this feature")
	return cmd
}
