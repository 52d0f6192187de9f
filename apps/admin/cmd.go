package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/pinkconnect/core/profile"
	"github.com/trezcool/pinkconnect/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	prfRepo profile.Repository
	out     io.Writer
	nowFunc func() time.Time
	ctx     context.Context
}

func (cli *commandLine) now() time.Time {
	if cli.nowFunc != nil {
		return cli.nowFunc().UTC()
	}
	return time.Now().UTC()
}

func (cli *commandLine) context() context.Context {
	if cli.ctx != nil {
		return cli.ctx
	}
	return context.Background()
}

func (cli *commandLine) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Administer the PinkConnect identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Usage()
			return errHelp
		},
	}
	if cli.out != nil {
		root.SetOut(cli.out)
		root.SetErr(cli.out)
	}
	root.AddCommand(cli.newMigrateCmd(), cli.newAddUserCmd(), cli.newResetPasswordCmd())
	return root
}

func (cli *commandLine) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a database migration command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) newAddUserCmd() *cobra.Command {
	var (
		email, name, role string
		confirmed         bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user and its profile. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(email, name, role, pwd, confirmed)
			if err != nil {
				return err
			}
			cmd.Printf("user %s saved (%s)\n", usr.Email, usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	cmd.Flags().StringVar(&name, "name", "", "The user's full name")
	cmd.Flags().StringVar(&role, "role", profile.DefaultRole, "The user's role: parent or teacher")
	cmd.Flags().BoolVar(&confirmed, "confirmed", true, "Mark the email as confirmed")
	return cmd
}

func (cli *commandLine) newResetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted next.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(email, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "The user's email")
	return cmd
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	cmd.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		_ = cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	root := cli.newRootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)
	return root.ExecuteContext(cli.context())
}
