// authcli is a small CLI for working with a token endpoint through the
// go-auth-client stack: log in, print a valid access token, call a
// bearer-protected endpoint and log out. Credentials persist under the
// user's home directory (JSON file by default, bolt DB with AUTH_STORE=bolt)
// so invocations share one session.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Settings may live in a per-user env file or the current directory.
	if homeDir, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(homeDir, ".authcli"))
	}
	_ = godotenv.Load()

	progName := os.Args[0]
	progName = progName[strings.LastIndex(progName, "/")+1:]

	rootCmd := &cobra.Command{
		Use:   progName,
		Short: "session client for an OAuth2 token endpoint",
		Long:  "Log in against a token endpoint and issue authenticated requests with automatic single-flight token refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("a subcommand is required")
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(loginCommand())
	rootCmd.AddCommand(tokenCommand())
	rootCmd.AddCommand(whoamiCommand())
	rootCmd.AddCommand(logoutCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
