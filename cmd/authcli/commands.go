package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/transport"
)

func loginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "authenticate and store the session credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if username == "" {
				username = s.config.GetUsername()
			}
			if username == "" {
				return errors.New("a username is required (--user or AUTH_USER)")
			}

			password := s.config.GetPassword()
			if password == "" {
				password, err = promptPassword()
				if err != nil {
					return err
				}
			}

			tokenResponse, err := s.refresher.PasswordLogin(cmd.Context(), username, password)
			if err != nil {
				return errors.Wrap(err, "login failed")
			}

			creds := tokenResponse.Credentials("", credentials.NowTimeFunc())
			if err := s.coordinator.SetCredentials(cmd.Context(), creds); err != nil {
				return err
			}

			fmt.Println("logged in")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username to authenticate as")
	return cmd
}

func tokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "print a valid access token, refreshing if required",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			creds, err := s.coordinator.Token(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(creds.AccessToken)
			return nil
		},
	}
}

func whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "call the issuer's userinfo endpoint with the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			httpClient, err := transport.NewClient(s.coordinator)
			if err != nil {
				return err
			}

			url := strings.TrimSuffix(s.config.GetIssuer(), "/") + "/userinfo"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return errors.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}
			fmt.Println(strings.TrimSpace(string(body)))
			return nil
		},
	}
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "revoke the refresh token and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newStack(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.coordinator.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	password := strings.TrimSpace(string(passwordBytes))
	if password == "" {
		return "", errors.New("a password is required")
	}
	return password, nil
}
