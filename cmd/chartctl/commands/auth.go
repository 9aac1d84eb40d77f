package commands

import (
	"log/slog"

	"chartbrief-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var loginUsername *string
var loginPassword *string
var credsUsername *string
var credsPassword *string

func init() {
	loginUsername = loginCmd.Flags().String("username", "", "Portal username; empty falls back to the stored credentials.")
	loginPassword = loginCmd.Flags().String("password", "", "Portal password; empty falls back to the stored credentials.")
	credsUsername = setCredentialsCmd.Flags().String("username", "", "Portal username to store.")
	credsPassword = setCredentialsCmd.Flags().String("password", "", "Portal password to store.")

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(setCredentialsCmd)
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the portal session and stored credentials.",
}

var loginCmd = &cobra.Command{
	Use:   "login [--username <user> --password <pass>]",
	Short: "Logs the shared browser session into the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		status, err := service.Login(cmd.Context(), *loginUsername, *loginPassword)
		if err != nil {
			serviceutil.Fatal("login", err)
		}
		slog.Info("logged in", "username", status.Username)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Reports whether the portal session is logged in.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		status, err := service.AuthStatus(cmd.Context())
		if err != nil {
			serviceutil.Fatal("fetch auth status", err)
		}
		slog.Info("session", "logged_in", status.LoggedIn, "username", status.Username)
	},
}

var setCredentialsCmd = &cobra.Command{
	Use:   "set-credentials --username <user> --password <pass>",
	Short: "Verifies credentials against the portal and stores them in the keychain.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		err := service.SetCredentials(cmd.Context(), *credsUsername, *credsPassword)
		if err != nil {
			serviceutil.Fatal("store credentials", err)
		}
		slog.Info("credentials verified and stored", "username", *credsUsername)
	},
}
