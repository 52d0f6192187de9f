package main

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/pinkconnect/core"
	"github.com/trezcool/pinkconnect/core/identity"
	"github.com/trezcool/pinkconnect/core/route"
	"github.com/trezcool/pinkconnect/core/session"
	identitysvc "github.com/trezcool/pinkconnect/services/identity"
	"github.com/trezcool/pinkconnect/storage/local"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	// errFailed reports a failure already shown in the printed state.
	errFailed = errors.New("operation failed")
)

// portal runs one auth operation per command against the identity provider.
type portal struct {
	conf    *core.Config
	logger  core.Logger
	storage local.Storage
}

func (p *portal) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "portal",
		Short:         "PinkConnect portal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&p.conf.Client.APIURL, "api", p.conf.Client.APIURL, "Base URL of the identity provider")
	root.PersistentFlags().DurationVar(&p.conf.Client.Timeout, "timeout", p.conf.Client.Timeout, "Timeout of each provider call")

	root.AddCommand(
		p.newLoginCmd(),
		p.newRegisterCmd(),
		p.newLogoutCmd(),
		p.newResetPasswordCmd(),
		p.newUpdatePasswordCmd(),
		p.newWhoamiCmd(),
		p.newOpenCmd(),
	)
	return root
}

// withManager starts a Manager over the stored session, runs fn, then prints the final state.
func (p *portal) withManager(cmd *cobra.Command, fn func(ctx context.Context, m *session.Manager) error) error {
	ctx := cmd.Context()
	client := identitysvc.NewClient(
		p.conf.Client.APIURL,
		p.storage,
		identitysvc.WithTimeout(p.conf.Client.Timeout),
		identitysvc.WithLogger(p.logger),
		identitysvc.WithRedirectTo(p.conf.FrontendBaseURL+"auth/reset-password"),
	)
	m := session.NewManager(client, identitysvc.NewProfileStore(client), p.logger)
	defer m.Close()
	m.Start(ctx)

	err := fn(ctx, m)
	st := m.State()
	printState(cmd.OutOrStdout(), st)
	if err != nil {
		return err
	}
	if st.Error != "" {
		return errFailed
	}
	return nil
}

func (p *portal) newLoginCmd() *cobra.Command {
	var email, pwd string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email & password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd, pwd)
			if err != nil {
				return err
			}
			return p.withManager(cmd, func(ctx context.Context, m *session.Manager) error {
				return m.SignIn(ctx, email, pwd)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&pwd, "password", "", "Account password, prompted when empty")
	return cmd
}

func (p *portal) newRegisterCmd() *cobra.Command {
	var (
		email, pwd string
		attrs      identity.Attributes
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd, pwd)
			if err != nil {
				return err
			}
			return p.withManager(cmd, func(ctx context.Context, m *session.Manager) error {
				if err := m.SignUp(ctx, email, pwd, attrs); err != nil {
					return err
				}
				if !m.State().Authenticated() {
					cmd.Println("check your inbox to confirm your email")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&pwd, "password", "", "Account password, prompted when empty")
	cmd.Flags().StringVar(&attrs.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&attrs.Role, "role", "", "parent or teacher")
	return cmd
}

func (p *portal) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return p.withManager(cmd, func(ctx context.Context, m *session.Manager) error {
				return m.SignOut(ctx)
			})
		},
	}
}

func (p *portal) newResetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Receive a password reset link by email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return p.withManager(cmd, func(ctx context.Context, m *session.Manager) error {
				if err := m.ResetPassword(ctx, email); err != nil {
					return err
				}
				if m.State().Error == "" {
					cmd.Println("password reset email sent")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func (p *portal) newUpdatePasswordCmd() *cobra.Command {
	var pwd string
	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Change the password of the signed in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := promptPassword(cmd, pwd)
			if err != nil {
				return err
			}
			return p.withManager(cmd, func(ctx context.Context, m *session.Manager) error {
				return m.UpdatePassword(ctx, pwd)
			})
		},
	}
	cmd.Flags().StringVar(&pwd, "password", "", "New password, prompted when empty")
	return cmd
}

func (p *portal) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the current auth state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return p.withManager(cmd, func(context.Context, *session.Manager) error { return nil })
		},
	}
}

// pathNavigator is a one-shot Navigator recording where the guard sends it.
type pathNavigator struct {
	path string
}

func (n *pathNavigator) CurrentPath() string { return n.path }
func (n *pathNavigator) Replace(path string) { n.path = path }

func (p *portal) newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open PATH",
		Short: "Print where the portal lands when opening PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return p.withManager(cmd, func(_ context.Context, m *session.Manager) error {
				nav := &pathNavigator{path: args[0]}
				target := route.NewGuard(nav).Check(m.State())
				if target == route.TargetNone {
					cmd.Printf("open %s\n", nav.path)
				} else {
					cmd.Printf("redirect %s -> %s (%s)\n", args[0], nav.path, target)
				}
				return nil
			})
		},
	}
}

func promptPassword(cmd *cobra.Command, pwd string) (string, error) {
	if pwd != "" {
		return pwd, nil
	}
	cmd.Print("Enter password:")
	b, err := readPasswordFunc(int(syscall.Stdin))
	cmd.Println()
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(b), nil
}

func printState(w io.Writer, st session.State) {
	if !st.Authenticated() {
		fmt.Fprintln(w, "signed out")
	} else {
		fmt.Fprintf(w, "signed in as %s\n", st.Session.User.Email)
		if st.Profile != nil {
			fmt.Fprintf(w, "  name: %s\n", st.Profile.DisplayName())
			fmt.Fprintf(w, "  role: %s\n", st.Profile.Role)
		}
	}
	if st.Error != "" {
		fmt.Fprintf(w, "error: %s\n", st.Error)
	}
}
