package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"authguard/internal/auth"
	"authguard/pkg/authclient"

	"github.com/spf13/cobra"
)

type options struct {
	serverURL       string
	credentialsPath string
	timeout         time.Duration
}

// client builds an authclient whose sources are ranked cookie jar first,
// then the credentials file.
func (o *options) client() (*authclient.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	jarSource, err := authclient.NewCookieJarSource(jar, o.serverURL)
	if err != nil {
		return nil, err
	}
	path := o.credentialsPath
	if path == "" {
		if path, err = authclient.DefaultCredentialsPath(); err != nil {
			return nil, err
		}
	}
	return authclient.New(authclient.Config{
		BaseURL:    o.serverURL,
		HTTPClient: &http.Client{Jar: jar, Timeout: o.timeout},
		Sources:    []authclient.Source{jarSource, authclient.NewFileSource(path)},
	}), nil
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "authctl",
		Short:         "authctl - authguard command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.serverURL, "server", "http://localhost:8080", "authguard API server URL")
	root.PersistentFlags().StringVar(&o.credentialsPath, "credentials", "", "credentials file (default ~/.authguard/credentials.json)")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 15*time.Second, "HTTP timeout")

	root.AddCommand(
		newLoginCmd(o),
		newWhoamiCmd(o),
		newRefreshCmd(o),
		newLogoutCmd(o),
		newHashPasswordCmd(),
	)
	return root
}

func newLoginCmd(o *options) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			c, err := o.client()
			if err != nil {
				return err
			}
			id, err := c.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s, role %s)\n", id.Handle, id.Email, id.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newWhoamiCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			id, err := c.Me(cmd.Context())
			if err != nil {
				if errors.Is(err, authclient.ErrReauthenticationRequired) {
					return errors.New("not logged in (run authctl login)")
				}
				return err
			}
			verified := "unverified"
			if id.Verified {
				verified = "verified"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s <%s> role=%s %s\n", id.ID, id.Handle, id.Email, id.Role, verified)
			return nil
		},
	}
}

func newRefreshCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the stored token pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if !c.Coordinator().Refresh(cmd.Context()) {
				return authclient.ErrReauthenticationRequired
			}
			creds, err := c.Store().Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token renewed, expires %s\n", creds.ExpiresAt().Format(time.RFC3339))
			return nil
		},
	}
}

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newHashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt digest (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plaintext string
			if len(args) == 1 {
				plaintext = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password on stdin")
				}
				plaintext = strings.TrimRight(line, "\r\n")
			}
			digest, err := auth.NewHasher(cost).Hash(plaintext)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", auth.DefaultCost, "bcrypt cost")
	return cmd
}
