package main

import (
	"fmt"
	"time"

	"approvalflow/internal/app"
	"approvalflow/internal/service"

	"github.com/spf13/cobra"
)

var (
	newUser  service.CreateUserRequest
	tokenFor string
	tokenTTL time.Duration
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage the approver directory",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			user, err := a.Users.CreateUser(cmd.Context(), newUser)
			if err != nil {
				return err
			}
			if done, err := printJSON(cmd.OutOrStdout(), user); done || err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", user.Username, user.Role, user.ID)
			return nil
		})
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app.App) error {
			token, err := a.Users.IssueToken(cmd.Context(), tokenFor, tokenTTL)
			if err != nil {
				return err
			}
			if done, err := printJSON(cmd.OutOrStdout(), token); done || err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.Token)
			return nil
		})
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&newUser.Username, "username", "", "Username")
	userCreateCmd.Flags().StringVar(&newUser.Email, "email", "", "Email address")
	userCreateCmd.Flags().StringVar(&newUser.Role, "role", "engineer", "Role (admin, reviewer, engineer)")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userCreateCmd)

	tokenCmd.Flags().StringVar(&tokenFor, "username", "", "User to mint the token for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("username")
}
