package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/irisdrone/pipewatch/internal/client"
	"github.com/spf13/cobra"
)

var loginFlags struct {
	username string
	password string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the backend and save the token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the saved session",
	RunE:  runLogout,
}

func init() {
	f := loginCmd.Flags()
	f.StringVarP(&loginFlags.username, "username", "u", "", "username (default from saved login)")
	f.StringVarP(&loginFlags.password, "password", "p", os.Getenv("PIPEWATCH_PASSWORD"), "password (read from stdin when empty)")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	store, err := credentialStore()
	if err != nil {
		return err
	}
	saved := store.Get()

	username := loginFlags.username
	if username == "" {
		username = saved.Username
	}
	if username == "" {
		return fmt.Errorf("--username is required")
	}

	password := loginFlags.password
	if password == "" {
		if password, err = readPassword(cmd); err != nil {
			return err
		}
	}

	server := serverURL(saved)
	c := client.New(server)
	if _, err := c.Login(cmd.Context(), username, password); err != nil {
		if errors.Is(err, client.ErrUnauthenticated) {
			return fmt.Errorf("incorrect username or password")
		}
		return err
	}

	if err := store.Save(Credentials{ServerURL: server, Username: username, Token: c.Token()}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged in to %s as %s\n", server, username)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	c, store, err := authedClient()
	if err != nil {
		return err
	}
	if err := c.Logout(cmd.Context()); err != nil && !errors.Is(err, client.ErrUnauthenticated) {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠️ Backend logout failed: %v\n", err)
	}
	if err := store.ClearToken(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "👋 Logged out")
	return nil
}
