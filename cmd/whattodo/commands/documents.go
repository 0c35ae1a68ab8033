package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/ports"
)

// NewShowCommand prints the document.
func NewShowCommand(opts *rootOptions) *cobra.Command {
	var asJSON, all bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show today's tasks, older tasks and today's note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				snap := a.documents.Snapshot()
				if asJSON {
					enc := json.NewEncoder(out(cmd))
					enc.SetIndent("", "  ")
					return enc.Encode(snap)
				}
				printDocument(out(cmd), snap.Document, a.engine.Today(), all)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the whole document as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "ignore the label filter")
	return cmd
}

func printDocument(w io.Writer, doc entities.Document, today string, all bool) {
	labels := doc.LabelsByID()
	visible := func(t entities.Task) bool {
		if all || len(doc.Filters) == 0 {
			return true
		}
		for _, id := range doc.Filters {
			if t.HasLabel(id) {
				return true
			}
		}
		return false
	}

	fmt.Fprintf(w, "%s\n", today)
	printTasks(w, doc.TasksFor(today), labels, visible)

	if older := doc.TasksBefore(today); len(older) > 0 {
		fmt.Fprintf(w, "\nOlder\n")
		printTasks(w, older, labels, visible)
	}

	if note := doc.Notes[today]; note != "" {
		fmt.Fprintf(w, "\nNote\n  %s\n", note)
	}

	if len(doc.Filters) > 0 && !all {
		names := make([]string, 0, len(doc.Filters))
		for _, id := range doc.Filters {
			names = append(names, labels[id].Title)
		}
		fmt.Fprintf(w, "\nFiltered by: %s\n", strings.Join(names, ", "))
	}
}

func printTasks(w io.Writer, tasks []entities.Task, labels map[string]entities.Label, visible func(entities.Task) bool) {
	shown := 0
	for _, t := range tasks {
		if !visible(t) {
			continue
		}
		shown++

		mark := " "
		if t.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("  [%s] %s", mark, t.Title)
		if t.Pinned {
			line += " (pinned)"
		}
		for _, id := range t.SortedLabels() {
			if l, ok := labels[id]; ok {
				line += " #" + l.Title
			}
		}
		fmt.Fprintf(w, "%s  %s\n", line, t.ID)
	}
	if shown == 0 {
		fmt.Fprintln(w, "  (no tasks)")
	}
}

// NewTaskCommand groups the task subcommands.
func NewTaskCommand(opts *rootOptions) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Add, edit and remove tasks",
	}

	taskCmd.AddCommand(newTaskAddCommand(opts))
	taskCmd.AddCommand(newTaskUpdateCommand(opts))
	taskCmd.AddCommand(newTaskIDCommand(opts, "done <id>", "Mark a task completed", func(a *app, id string) error {
		_, err := a.documents.SetCompleted(id, true)
		return err
	}))
	taskCmd.AddCommand(newTaskIDCommand(opts, "undo <id>", "Mark a task not completed", func(a *app, id string) error {
		_, err := a.documents.SetCompleted(id, false)
		return err
	}))
	taskCmd.AddCommand(newTaskIDCommand(opts, "pin <id>", "Pin a task so it follows you into each new day", func(a *app, id string) error {
		_, err := a.documents.SetPinned(id, true)
		return err
	}))
	taskCmd.AddCommand(newTaskIDCommand(opts, "unpin <id>", "Unpin a task", func(a *app, id string) error {
		_, err := a.documents.SetPinned(id, false)
		return err
	}))
	taskCmd.AddCommand(newTaskIDCommand(opts, "today <id>", "Move a task into today", func(a *app, id string) error {
		_, err := a.documents.MoveTaskToToday(id)
		return err
	}))
	taskCmd.AddCommand(newTaskIDCommand(opts, "rm <id>", "Remove a task", func(a *app, id string) error {
		_, err := a.documents.RemoveTask(id)
		return err
	}))

	return taskCmd
}

func newTaskAddCommand(opts *rootOptions) *cobra.Command {
	var req ports.CreateTaskRequest

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a task to today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.validate.Struct(req); err != nil {
					return err
				}
				if err := checkLabels(a, req.Labels); err != nil {
					return err
				}
				task, _ := a.documents.AddTask(req.Task())
				fmt.Fprintln(out(cmd), task.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Description, "description", "", "task description")
	cmd.Flags().StringVar(&req.URL, "url", "", "link attached to the task")
	cmd.Flags().StringSliceVar(&req.Labels, "label", nil, "label id (repeatable)")
	cmd.Flags().BoolVar(&req.Pinned, "pin", false, "pin the task")
	return cmd
}

func newTaskUpdateCommand(opts *rootOptions) *cobra.Command {
	var title, description, url string
	var labels []string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a task's title, description, link or labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				task, _, err := a.documents.Snapshot().Document.FindTask(args[0])
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				if flags.Changed("title") {
					task.Title = title
				}
				if flags.Changed("description") {
					task.Description = description
				}
				if flags.Changed("url") {
					task.URL = url
				}
				if flags.Changed("label") {
					if err := checkLabels(a, labels); err != nil {
						return err
					}
					task.Labels = labels
				}

				req := ports.UpdateTaskRequest{
					Title:       task.Title,
					Description: task.Description,
					URL:         task.URL,
					CreatedAt:   task.CreatedAt,
					Completed:   task.Completed,
					CompletedAt: task.CompletedAt,
					Labels:      task.Labels,
					Pinned:      task.Pinned,
				}
				if err := a.validate.Struct(req); err != nil {
					return err
				}

				_, err = a.documents.UpdateTask(req.Task(task.ID))
				return err
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&url, "url", "", "new link")
	cmd.Flags().StringSliceVar(&labels, "label", nil, "replace the labels (repeatable)")
	return cmd
}

func newTaskIDCommand(opts *rootOptions, use, short string, fn func(a *app, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return fn(a, args[0])
			})
		},
	}
}

func checkLabels(a *app, ids []string) error {
	doc := a.documents.Snapshot().Document
	for _, id := range ids {
		if !doc.HasLabel(id) {
			return fmt.Errorf("%w: %s", entities.ErrLabelNotFound, id)
		}
	}
	return nil
}

// NewLabelCommand groups the label subcommands.
func NewLabelCommand(opts *rootOptions) *cobra.Command {
	labelCmd := &cobra.Command{
		Use:   "label",
		Short: "Manage labels",
	}

	var color string
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a label",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.LabelRequest{Title: strings.Join(args, " "), Color: color}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.validate.Struct(req); err != nil {
					return err
				}
				label, _ := a.documents.AddLabel(entities.Label{Title: req.Title, Color: req.Color})
				fmt.Fprintln(out(cmd), label.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&color, "color", "#a4b0be", "label color")

	var newColor string
	renameCmd := &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a label",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				label, err := a.documents.Snapshot().Document.FindLabel(args[0])
				if err != nil {
					return err
				}
				label.Title = strings.Join(args[1:], " ")
				if cmd.Flags().Changed("color") {
					label.Color = newColor
				}
				if err := a.validate.Struct(ports.LabelRequest{Title: label.Title, Color: label.Color}); err != nil {
					return err
				}
				_, err = a.documents.UpdateLabel(label)
				return err
			})
		},
	}
	renameCmd.Flags().StringVar(&newColor, "color", "", "new color")

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				_, err := a.documents.RemoveLabel(args[0])
				return err
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "ls",
		Short: "List labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				for _, l := range a.documents.Snapshot().Document.Labels {
					fmt.Fprintf(out(cmd), "%s\t%s\t%s\n", l.ID, l.Title, l.Color)
				}
				return nil
			})
		},
	}

	labelCmd.AddCommand(addCmd, renameCmd, rmCmd, listCmd)
	return labelCmd
}

// NewNoteCommand groups the note subcommands.
func NewNoteCommand(opts *rootOptions) *cobra.Command {
	noteCmd := &cobra.Command{
		Use:   "note",
		Short: "Manage day notes",
	}

	var date string
	setCmd := &cobra.Command{
		Use:   "set <text>",
		Short: "Set the note for a day (today by default)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				day := date
				if day == "" {
					day = a.engine.Today()
				}
				a.documents.UpdateNote(strings.Join(args, " "), day)
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&date, "date", "", `day key, e.g. "Mon Oct 19 2026"`)

	noteCmd.AddCommand(setCmd)
	return noteCmd
}

// NewFiltersCommand groups the filter subcommands.
func NewFiltersCommand(opts *rootOptions) *cobra.Command {
	filtersCmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage the label filter",
	}

	filtersCmd.AddCommand(&cobra.Command{
		Use:   "set [label-id...]",
		Short: "Show only tasks with one of the given labels; no ids clears the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				doc := a.documents.UpdateFilters(args)
				if len(doc.Filters) != len(args) {
					fmt.Fprintf(cmd.ErrOrStderr(), "ignored unknown label ids\n")
				}
				return nil
			})
		},
	})

	return filtersCmd
}
