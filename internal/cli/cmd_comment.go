package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

func newTaskCommentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Discuss a task",
	}
	cmd.AddCommand(newCommentAddCmd())
	cmd.AddCommand(newCommentEditCmd())
	cmd.AddCommand(newCommentRmCmd())
	cmd.AddCommand(newCommentListCmd())
	return cmd
}

func newCommentAddCmd() *cobra.Command {
	var attachment string
	cmd := &cobra.Command{
		Use:     "add TASK_ID TEXT",
		Short:   "Comment on a task",
		Args:    cobra.ExactArgs(2),
		Example: `  featureplus task comment add 4 "Needs the new card icons" --attachment 9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				t, err := r.task(args[0])
				if err != nil {
					return err
				}
				comment := entity.Comment{UserID: r.cfg.Session.UserID, Content: args[1], AttachmentID: attachment}
				out, err := r.await(r.sess.Coordinator.AddComment(t.ID, comment))
				if err != nil {
					return err
				}
				// the remote appends the new comment
				comments := out.(*entity.Task).Comments
				if len(comments) == 0 {
					return errors.ErrNotFound(fmt.Sprintf("new comment on %s", out.Key()))
				}
				return r.commentDone("Added", out.Key(), comments[len(comments)-1])
			})
		},
	}
	cmd.Flags().StringVar(&attachment, "attachment", "", "id of the task attachment the comment is about")
	return cmd
}

func newCommentEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit TASK_ID COMMENT_ID TEXT",
		Short: "Change the text of a comment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				t, err := r.task(args[0])
				if err != nil {
					return err
				}
				out, err := r.await(r.sess.Coordinator.EditComment(t.ID, args[1], args[2]))
				if err != nil {
					return err
				}
				task := out.(*entity.Task)
				i := task.CommentIndex(args[1])
				if i < 0 {
					return errors.ErrNotFound(fmt.Sprintf("comment %s on %s", args[1], task.Key()))
				}
				return r.commentDone("Updated", task.Key(), task.Comments[i])
			})
		},
	}
}

func newCommentRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm TASK_ID COMMENT_ID",
		Aliases: []string{"delete"},
		Short:   "Delete a comment",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				t, err := r.task(args[0])
				if err != nil {
					return err
				}
				out, err := r.await(r.sess.Coordinator.RemoveComment(t.ID, args[1]))
				if err != nil {
					return err
				}
				if jsonOut {
					return printJSON(r.out, map[string]string{"deleted": args[1], "task": out.Key().ID})
				}
				fmt.Fprintf(r.out, "%s comment %s on task %s\n", r.styles.paint(r.styles.ok, "Deleted"), args[1], out.Key().ID)
				return nil
			})
		},
	}
}

func newCommentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list TASK_ID",
		Short: "List the comments on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, r *runner) error {
				t, err := r.task(args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					list := t.Comments
					if list == nil {
						list = []entity.Comment{}
					}
					return printJSON(r.out, list)
				}
				if len(t.Comments) == 0 {
					fmt.Fprintln(r.out, "No comments")
					return nil
				}
				w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSER\tATTACHMENT\tCONTENT")
				for _, c := range t.Comments {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, orDash(c.UserID), orDash(c.AttachmentID), truncate(c.Content, 60))
				}
				return w.Flush()
			})
		},
	}
}

// task returns a cached task of the hydrated project.
func (r *runner) task(id string) (*entity.Task, error) {
	key := r.sess.Coordinator.Resolve(entity.TaskKey(id))
	e, ok := r.sess.Store.Get(key)
	if !ok {
		return nil, errors.ErrNotFound(key.String())
	}
	return e.(*entity.Task), nil
}

func (r *runner) commentDone(verb string, task entity.Key, c entity.Comment) error {
	if jsonOut {
		return printJSON(r.out, c)
	}
	fmt.Fprintf(r.out, "%s comment %s on task %s\n", r.styles.paint(r.styles.ok, verb), c.ID, task.ID)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
