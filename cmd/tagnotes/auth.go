package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/listenupapp/tagnotes/internal/domain"
	"github.com/listenupapp/tagnotes/internal/service"
)

var errNotSignedIn = errors.New("not signed in, run tagnotes login")

func newLoginCmd(a *app) *cobra.Command {
	var (
		email    string
		password string
		signup   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in, or create an account with --signup",
		Long: `Sign in to the backend. The session is kept in the data directory and
reused by later commands until logout.

Without --password the password is read from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			svc, err := a.services()
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			creds := service.Credentials{Email: email, Password: password}
			var sess *domain.Session
			if signup {
				sess, err = svc.auth.SignUp(ctx, creds)
			} else {
				sess, err = svc.auth.SignIn(ctx, creds)
			}
			if err != nil {
				return err
			}

			p := a.printer(cmd)
			if sess.AccessToken == "" {
				p.message("Account created for %s. Confirm the email, then log in.", sess.User.Email)
				return nil
			}
			p.message("Signed in as %s", sess.User.Email)
			if p.format == formatTable {
				return nil
			}
			return p.user(&sess.User)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when empty)")
	cmd.Flags().BoolVar(&signup, "signup", false, "create the account first")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			if err := svc.auth.SignOut(commandContext(cmd)); err != nil {
				return err
			}
			a.printer(cmd).message("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			user, err := svc.auth.CurrentUser(commandContext(cmd))
			if err != nil {
				return err
			}
			if user == nil {
				return errNotSignedIn
			}
			return a.printer(cmd).user(user)
		},
	}
}
