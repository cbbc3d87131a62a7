package cli

import (
	"github.com/spf13/cobra"

	"github.com/kofuk/premises-sub000/internal/domain/session"
)

func newLoginCmd(rt *runtime) *cobra.Command {
	var user, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the control panel",
		Long: `Log in and keep the session for later commands.

An account created by an administrator has a one-time password; login then
asks for a new one before the session starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if user == "" {
				user = rt.cfg.Auth.UserName
			}
			if user == "" {
				if user, err = rt.prompt.ask(rt.text("username"), ""); err != nil {
					return err
				}
			}
			if password == "" {
				password = rt.cfg.Auth.Password
			}
			if password == "" {
				if password, err = rt.prompt.askSecret(rt.text("password")); err != nil {
					return err
				}
			}

			res, err := rt.app.Session().Login(ctx, user, password)
			if err != nil {
				return err
			}
			if res == session.NeedsChangePassword {
				next, err := rt.prompt.askSecret(rt.text("set_password_title"))
				if err != nil {
					return err
				}
				if err := rt.app.Session().InitializePassword(ctx, user, next); err != nil {
					return err
				}
			}

			rt.printf("Logged in as %s\n", rt.app.Session().State().UserName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func newLogoutCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.app.Session().Logout(cmd.Context()); err != nil {
				return err
			}
			rt.printf("Logged out\n")
			return nil
		},
	}
}

func newWhoamiCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := rt.app.Session().State()
			if !st.LoggedIn {
				rt.printf("Not logged in\n")
				return nil
			}
			rt.printf("%s\n", st.UserName)
			return nil
		},
	}
}

func newUsersCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}

	add := &cobra.Command{
		Use:   "add <name> [password]",
		Short: "Create an account with a one-time password",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			password := ""
			if len(args) == 2 {
				password = args[1]
			} else {
				var err error
				if password, err = rt.prompt.askSecret(rt.text("password")); err != nil {
					return err
				}
			}
			if err := rt.app.Session().AddUser(cmd.Context(), args[0], password); err != nil {
				return err
			}
			rt.printf("%s\n", rt.text("add_user_success"))
			return nil
		},
	}

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			current, err := rt.prompt.askSecret(rt.text("change_password_current"))
			if err != nil {
				return err
			}
			next, err := rt.prompt.askSecret(rt.text("change_password_new"))
			if err != nil {
				return err
			}
			if err := rt.app.Session().ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			rt.printf("%s\n", rt.text("change_password_success"))
			return nil
		},
	}

	cmd.AddCommand(add, passwd)
	return cmd
}
