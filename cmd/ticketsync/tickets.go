package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"ticketsync/internal/domain/ticket"
)

func newTicketsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket", "t"},
		Short:   "Manage maintenance tickets",
	}

	cmd.AddCommand(
		newTicketsListCmd(c),
		newTicketsShowCmd(c),
		newTicketsStatsCmd(c),
		newTicketsCreateCmd(c),
		newTicketsUpdateCmd(c),
		newTicketsDeleteCmd(c),
		newTicketsAssignCmd(c),
		newTicketsCommentCmd(c),
		newTicketsCommentsCmd(c),
		newTicketsLogsCmd(c),
		newTicketsAttachCmd(c),
		newTicketsAttachmentsCmd(c),
	)

	return cmd
}

func newTicketsListCmd(c *cli) *cobra.Command {
	var (
		filters     ticket.Filters
		status      string
		priority    string
		page, limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			filters.Status = ticket.Status(strings.ToUpper(status))
			filters.Priority = ticket.Priority(strings.ToUpper(priority))
			a.Tickets.SetFilters(filters)
			a.Tickets.SetLimit(limit)
			a.Tickets.SetPage(page)

			res, err := a.TicketService.List(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, res)
			}

			rows := make([][]any, 0, len(res.Data))
			for _, t := range res.Data {
				assignee := "-"
				if t.AssignedTo != nil {
					assignee = t.AssignedTo.Name
				}
				rows = append(rows, []any{t.ID, t.Status.Label(), t.Priority, t.Category, assignee, stamp(t.CreatedAt), t.Title})
			}
			if err := table(cmd.OutOrStdout(), "ID\tSTATUS\tPRIORITY\tCATEGORY\tASSIGNEE\tCREATED\tTITLE", rows); err != nil {
				return err
			}
			p := res.Meta
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d tickets)\n", p.Page, max(p.TotalPages, 1), p.Total)
			return err
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (OPEN, IN_PROGRESS, PENDING, RESOLVED, CLOSED)")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority (LOW, MEDIUM, HIGH, CRITICAL)")
	cmd.Flags().StringVar(&filters.AssignedToID, "assigned-to", "", "filter by technician id")
	cmd.Flags().StringVar(&filters.Search, "search", "", "search title and description")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", ticket.DefaultPageSize, "tickets per page")
	return cmd
}

func newTicketsShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.TicketService.Get(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, t)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", t.Title, strings.Repeat("=", len(t.Title)))
			fmt.Fprintf(out, "ID:        %s\n", t.ID)
			fmt.Fprintf(out, "Status:    %s\n", t.Status.Label())
			fmt.Fprintf(out, "Priority:  %s\n", t.Priority)
			fmt.Fprintf(out, "Category:  %s\n", t.Category)
			fmt.Fprintf(out, "Location:  %s\n", orDash(t.Location))
			if t.CreatedBy != nil {
				fmt.Fprintf(out, "Reporter:  %s\n", t.CreatedBy.Name)
			}
			if t.AssignedTo != nil {
				fmt.Fprintf(out, "Assignee:  %s\n", t.AssignedTo.Name)
			}
			fmt.Fprintf(out, "Created:   %s\n", stamp(t.CreatedAt))
			if t.ResolvedAt != nil {
				fmt.Fprintf(out, "Resolved:  %s\n", stamp(*t.ResolvedAt))
			}
			_, err = fmt.Fprintf(out, "\n%s\n", t.Description)
			return err
		},
	}
}

func newTicketsStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ticket counts by status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.TicketService.Stats(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, s)
			}
			return table(cmd.OutOrStdout(), "TOTAL\tOPEN\tIN PROGRESS\tPENDING\tRESOLVED", [][]any{
				{s.Total, s.Open, s.InProgress, s.Pending, s.Resolved},
			})
		},
	}
}

func newTicketsCreateCmd(c *cli) *cobra.Command {
	var (
		req      ticket.CreateRequest
		priority string
		category string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a new ticket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req.Priority = ticket.Priority(strings.ToUpper(priority))
			req.Category = ticket.Category(strings.ToUpper(category))
			t, err := a.TicketService.Create(cmd.Context(), &req)
			if err != nil {
				return friendly(err)
			}
			return printTicketResult(cmd, c, "Created", t)
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "short summary")
	cmd.Flags().StringVar(&req.Description, "description", "", "what is wrong")
	cmd.Flags().StringVar(&req.Location, "location", "", "where the problem is")
	cmd.Flags().StringVar(&priority, "priority", string(ticket.PriorityMedium), "LOW, MEDIUM, HIGH or CRITICAL")
	cmd.Flags().StringVar(&category, "category", string(ticket.CategoryGeneral), "ELECTRICAL, PLUMBING, HVAC, IT, GENERAL or OTHER")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newTicketsUpdateCmd(c *cli) *cobra.Command {
	var (
		req      ticket.UpdateRequest
		status   string
		priority string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a ticket's status, priority or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Status = ticket.Status(strings.ToUpper(status))
			req.Priority = ticket.Priority(strings.ToUpper(priority))
			if req == (ticket.UpdateRequest{}) {
				return fmt.Errorf("nothing to update")
			}

			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.TicketService.Update(cmd.Context(), args[0], &req)
			if err != nil {
				return friendly(err)
			}
			return printTicketResult(cmd, c, "Updated", t)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&req.Title, "title", "", "new title")
	cmd.Flags().StringVar(&req.Description, "description", "", "new description")
	return cmd
}

func newTicketsDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.TicketService.Delete(cmd.Context(), args[0]); err != nil {
				return friendly(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return err
		},
	}
}

func newTicketsAssignCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <id> <technician-id>",
		Short: "Assign a ticket to a technician",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.TicketService.Assign(cmd.Context(), args[0], args[1])
			if err != nil {
				return friendly(err)
			}
			if t.ID == "" {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s\n", args[0])
				return err
			}
			return printTicketResult(cmd, c, "Assigned", t)
		},
	}
}

func newTicketsCommentCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "comment <id> <text>...",
		Short: "Add a comment to a ticket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			comment, err := a.TicketService.AddComment(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, comment)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Comment %s added\n", comment.ID)
			return err
		},
	}
}

func newTicketsCommentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <id>",
		Short: "List a ticket's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			comments, err := a.TicketService.Comments(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, comments)
			}
			rows := make([][]any, 0, len(comments))
			for _, cm := range comments {
				author := cm.UserID
				if cm.User != nil {
					author = cm.User.Name
				}
				rows = append(rows, []any{stamp(cm.CreatedAt), author, cm.Content})
			}
			return table(cmd.OutOrStdout(), "WHEN\tAUTHOR\tCOMMENT", rows)
		},
	}
}

func newTicketsLogsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Show a ticket's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			logs, err := a.TicketService.Logs(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, logs)
			}
			rows := make([][]any, 0, len(logs))
			for _, l := range logs {
				actor := l.UserID
				if l.User != nil {
					actor = l.User.Name
				}
				rows = append(rows, []any{stamp(l.CreatedAt), actor, l.Action, orDash(l.OldValue), orDash(l.NewValue)})
			}
			return table(cmd.OutOrStdout(), "WHEN\tBY\tACTION\tFROM\tTO", rows)
		},
	}
}

func newTicketsAttachCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <id> <file>",
		Short: "Upload a file to a ticket",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			att, err := a.TicketService.Upload(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, att)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d bytes)\n", att.Filename, att.Size)
			return err
		},
	}
}

func newTicketsAttachmentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "attachments <id>",
		Short: "List a ticket's attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			atts, err := a.TicketService.Attachments(cmd.Context(), args[0])
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, atts)
			}
			rows := make([][]any, 0, len(atts))
			for _, att := range atts {
				rows = append(rows, []any{att.ID, att.Filename, att.Size, att.URL})
			}
			return table(cmd.OutOrStdout(), "ID\tFILE\tBYTES\tURL", rows)
		},
	}
}

func printTicketResult(cmd *cobra.Command, c *cli, verb string, t *ticket.Ticket) error {
	if c.asJSON {
		return writeJSON(cmd, t)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s [%s]\n", verb, t.ID, t.Title, t.Status.Label())
	return err
}
