package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ticketsync/internal/domain/user"
)

func newUsersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer user accounts (admin only)",
	}

	cmd.AddCommand(
		newUsersListCmd(c),
		newUsersRoleCmd(c),
		newUsersDepartmentCmd(c),
		newUsersDeleteCmd(c),
	)

	return cmd
}

func newUsersListCmd(c *cli) *cobra.Command {
	var (
		filters user.Filters
		role    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			filters.Role = user.Role(strings.ToUpper(role))
			users, err := a.UserService.List(cmd.Context(), filters)
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, users)
			}
			rows := make([][]any, 0, len(users))
			for _, u := range users {
				rows = append(rows, []any{u.ID, u.Name, u.Email, u.Role, orDash(u.Department)})
			}
			return table(cmd.OutOrStdout(), "ID\tNAME\tEMAIL\tROLE\tDEPARTMENT", rows)
		},
	}
	cmd.Flags().StringVar(&filters.Search, "search", "", "match name or email")
	cmd.Flags().StringVar(&role, "role", "", "USER, TECHNICIAN or ADMIN")
	return cmd
}

func newUsersRoleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "role <id> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.UserService.UpdateRole(cmd.Context(), args[0], user.Role(strings.ToUpper(args[1])))
			if err != nil {
				return friendly(err)
			}
			return printUserResult(cmd, c, u)
		},
	}
}

func newUsersDepartmentCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "department <id> <department>",
		Short: "Move a user to a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.UserService.UpdateDepartment(cmd.Context(), args[0], args[1])
			if err != nil {
				return friendly(err)
			}
			return printUserResult(cmd, c, u)
		},
	}
}

func newUsersDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.UserService.Delete(cmd.Context(), args[0]); err != nil {
				return friendly(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", args[0])
			return err
		},
	}
}

func printUserResult(cmd *cobra.Command, c *cli, u *user.User) error {
	if c.asJSON {
		return writeJSON(cmd, u)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> role=%s department=%s\n", u.Name, u.Email, u.Role, orDash(u.Department))
	return err
}
