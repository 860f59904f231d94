package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/irisdrone/pipewatch/internal/client"
	"github.com/irisdrone/pipewatch/internal/logging"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

const defaultServer = "http://localhost:3001"

var rootFlags struct {
	server      string
	credentials string
	noColor     bool
	verbose     bool
}

var rootCmd = &cobra.Command{
	Use:   "pipewatch",
	Short: "Pipeline defect monitoring from the terminal",
	Long: "pipewatch cross-checks control-system and drone detections, keeps the\n" +
		"defect registry up to date and lets operators triage entries.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		level := slog.LevelWarn
		if rootFlags.verbose {
			level = slog.LevelDebug
		}
		logging.Init(level, "text", cmd.ErrOrStderr())
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.server, "server", os.Getenv("PIPEWATCH_SERVER"), "backend URL (default from saved login or "+defaultServer+")")
	f.StringVar(&rootFlags.credentials, "credentials", "", "credentials file (default in the user config dir)")
	f.BoolVar(&rootFlags.noColor, "no-color", false, "disable colored output")
	f.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "log refresh activity")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(briefCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func credentialStore() (*CredentialStore, error) {
	path := rootFlags.credentials
	if path == "" {
		var err error
		if path, err = DefaultCredentialsPath(); err != nil {
			return nil, err
		}
	}
	return NewCredentialStore(path)
}

// serverURL resolves the backend from the flag, the saved login or the
// default, in that order.
func serverURL(creds Credentials) string {
	switch {
	case rootFlags.server != "":
		return rootFlags.server
	case creds.ServerURL != "":
		return creds.ServerURL
	default:
		return defaultServer
	}
}

// authedClient returns a client carrying the saved token.
func authedClient() (*client.Client, *CredentialStore, error) {
	store, err := credentialStore()
	if err != nil {
		return nil, nil, err
	}
	creds := store.Get()
	if creds.Token == "" {
		return nil, nil, errNotLoggedIn
	}
	return client.New(serverURL(creds), client.WithToken(creds.Token)), store, nil
}

var errNotLoggedIn = errors.New("not logged in, run 'pipewatch login' first")

// loginHint turns an expired token into an actionable message.
func loginHint(err error) error {
	if errors.Is(err, client.ErrUnauthenticated) {
		return fmt.Errorf("session expired, run 'pipewatch login' again: %w", err)
	}
	return err
}
