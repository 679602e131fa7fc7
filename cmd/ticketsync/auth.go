package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.Session.Login(cmd.Context(), email, password)
			if err != nil {
				return friendly(err)
			}
			if c.asJSON {
				return writeJSON(cmd, u)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.Name, u.Role)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Register(cmd.Context(), name, email, password); err != nil {
				return friendly(err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Account created, you can now log in")
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return err
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is still valid",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.Start(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return writeJSON(cmd, st)
			}

			out := cmd.OutOrStdout()
			if !st.IsAuthenticated || st.User == nil {
				_, err = fmt.Fprintln(out, "Not logged in")
				return err
			}
			fmt.Fprintf(out, "Logged in as %s <%s>\n", st.User.Name, st.User.Email)
			fmt.Fprintf(out, "Role: %s\n", st.User.Role)
			if exp, ok := a.Session.TokenExpiry(); ok {
				fmt.Fprintf(out, "Access token valid until %s\n", stamp(exp))
			}
			return nil
		},
	}
}
