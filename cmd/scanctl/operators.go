package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
)

// envOperatorPassword supplies passwords non-interactively. There is
// deliberately no --password flag so passwords stay out of shell history.
const envOperatorPassword = "SCANCTL_OPERATOR_PASSWORD"

const minPasswordLength = 8

func newOperatorsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operators",
		Aliases: []string{"operator"},
		Short:   "Manage API operator accounts",
		Long: `Manage the operator accounts that log in to the console API.

Passwords are read from the SCANCTL_OPERATOR_PASSWORD environment variable,
or prompted for without echo.`,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List operator accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			ops, err := auth.NewOperatorRepository(a.db.DB).List(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, []string{op.Username, op.DisplayName, string(op.Role), onOff(op.IsActive)})
			}
			return renderTable(cmd.OutOrStdout(), []string{"USERNAME", "NAME", "ROLE", "ACTIVE"}, rows)
		},
	}

	var (
		role        string
		displayName string
	)
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create an operator account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			if !auth.IsValidUsername(username) {
				return fmt.Errorf("invalid username %q", username)
			}
			if !auth.IsValidRole(auth.Role(role)) {
				return fmt.Errorf("invalid role %q: must be viewer, operator, or admin", role)
			}
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password for "+username+": ")
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			op := &auth.Operator{
				Username:     username,
				DisplayName:  orDefault(displayName, username),
				PasswordHash: hash,
				Role:         auth.Role(role),
				IsActive:     true,
			}
			if err := auth.NewOperatorRepository(a.db.DB).Create(cmd.Context(), op); err != nil {
				return err
			}
			recordOperator(cmd.Context(), a, opts.actor(), audit.ActionRegister, op.ID, map[string]any{
				"username": op.Username,
				"role":     op.Role,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", op.Username, op.Role)
			return nil
		},
	}
	add.Flags().StringVarP(&role, "role", "r", string(auth.RoleOperator), "Role: viewer, operator, or admin")
	add.Flags().StringVar(&displayName, "name", "", "Display name (default: username)")

	passwd := &cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Set an operator's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			repo := auth.NewOperatorRepository(a.db.DB)
			op, err := repo.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "New password for "+op.Username+": ")
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := repo.UpdatePassword(cmd.Context(), op.ID, hash); err != nil {
				return err
			}
			recordOperator(cmd.Context(), a, opts.actor(), audit.ActionUpdate, op.ID, map[string]any{"password": "changed"})
			return nil
		},
	}

	remove := &cobra.Command{
		Use:     "remove USERNAME",
		Aliases: []string{"rm"},
		Short:   "Delete an operator account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			repo := auth.NewOperatorRepository(a.db.DB)
			op, err := repo.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := repo.Delete(cmd.Context(), op.ID); err != nil {
				return err
			}
			recordOperator(cmd.Context(), a, opts.actor(), audit.ActionUnregister, op.ID, map[string]any{"username": op.Username})
			return nil
		},
	}

	cmd.AddCommand(list, add, passwd, remove)
	return cmd
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token USERNAME",
		Short: "Issue an API access token for an operator",
		Long: `Issue a bearer token for an existing, active operator without a login
round trip. Intended for scripts and service accounts; the token is
signed with security.jwt.secret and printed on stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openConsole(cmd.Context(), opts, nil)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cfg.ValidateAPI(); err != nil {
				return err
			}
			op, err := auth.NewOperatorRepository(a.db.DB).GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !op.IsActive {
				return auth.ErrOperatorInactive
			}

			tokenCfg := auth.TokenConfig{
				Secret: a.cfg.Security.JWT.Secret,
				Issuer: a.cfg.Security.JWT.Issuer,
				TTL:    a.cfg.GetTokenTTL(),
			}
			if ttl > 0 {
				tokenCfg.TTL = ttl
			}
			token, expires, err := auth.IssueToken(op, tokenCfg)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("expires "+expires.Local().Format(timeLayout)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: security.jwt.token_ttl)")
	return cmd
}

// readPassword returns the password from SCANCTL_OPERATOR_PASSWORD, or
// prompts on a terminal without echo. Piped input is read as one line.
func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	password := os.Getenv(envOperatorPassword)
	if password == "" {
		fmt.Fprint(prompt, label)
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(prompt)
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			password = string(b)
		} else {
			line, err := bufio.NewReader(in).ReadString('\n')
			fmt.Fprintln(prompt)
			if err != nil && line == "" {
				return "", fmt.Errorf("reading password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
	}
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

// recordOperator writes an audit entry for an operator account change.
func recordOperator(ctx context.Context, a *app, actor console.Actor, action, id string, details map[string]any) {
	repo := a.svc.Audit()
	if repo == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: audit.EntityOperator,
		EntityID:   id,
		Operator:   actor.Operator,
		Source:     actor.Source,
		Details:    details,
	}
	if err := repo.Create(ctx, entry); err != nil {
		a.log.Warn("audit log write failed", "action", action, "error", err)
	}
}
