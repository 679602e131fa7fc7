package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ticketsync/internal/domain/auth"
)

func newAccountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your own account",
	}

	cmd.AddCommand(
		newAccountProfileCmd(c),
		newAccountPasswordCmd(c),
		newAccountDeleteCmd(c),
	)

	return cmd
}

func newAccountProfileCmd(c *cli) *cobra.Command {
	var req auth.UpdateProfileRequest

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile, or update it with --name/--phone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.AccountService.Profile(cmd.Context())
			if err != nil {
				return friendly(err)
			}
			if cmd.Flags().Changed("name") || cmd.Flags().Changed("phone") {
				if !cmd.Flags().Changed("name") {
					req.Name = u.Name
				}
				if !cmd.Flags().Changed("phone") {
					req.Phone = u.Phone
				}
				if u, err = a.AccountService.UpdateProfile(cmd.Context(), &req); err != nil {
					return friendly(err)
				}
			}
			if c.asJSON {
				return writeJSON(cmd, u)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", u.Name)
			fmt.Fprintf(out, "Email:       %s\n", u.Email)
			fmt.Fprintf(out, "Role:        %s\n", u.Role)
			fmt.Fprintf(out, "Phone:       %s\n", orDash(u.Phone))
			_, err = fmt.Fprintf(out, "Department:  %s\n", orDash(u.Department))
			return err
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "new phone number")
	return cmd
}

func newAccountPasswordCmd(c *cli) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.AccountService.ChangePassword(cmd.Context(), current, next); err != nil {
				return friendly(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return err
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newAccountDeleteCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete your account and sign out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the account without --yes")
			}

			a, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.AccountService.DeleteAccount(cmd.Context()); err != nil {
				return friendly(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Account deleted")
			return err
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
