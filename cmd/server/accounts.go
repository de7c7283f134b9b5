package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/clubchat-server/internal/app"
	"github.com/vovakirdan/clubchat-server/internal/auth"
)

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage chat users",
	}

	var name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.CreateUser(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", user.ID, user.ProfileName)
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "profile name")
	_ = add.MarkFlagRequired("name")

	cmd.AddCommand(add)
	return cmd
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage login sessions",
	}

	var userID int64
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Create a session and print its credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := auth.IssueSession(cmd.Context(), st, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
	issue.Flags().Int64Var(&userID, "user-id", 0, "user id")
	_ = issue.MarkFlagRequired("user-id")

	cmd.AddCommand(issue)
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint signed credentials",
	}

	var (
		userID int64
		name   string
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed token for the jwt auth mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}

			token, err := auth.GenerateToken(app.JWTConfig(cfg.Auth), userID, name)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().Int64Var(&userID, "user-id", 0, "user id")
	issue.Flags().StringVar(&name, "name", "", "profile name")
	_ = issue.MarkFlagRequired("user-id")
	_ = issue.MarkFlagRequired("name")

	cmd.AddCommand(issue)
	return cmd
}
