package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/dragonbytelabs/dz/internal/cli/ui"
	"github.com/dragonbytelabs/dz/internal/store"
	"github.com/dragonbytelabs/dz/internal/web/auth"
)

func validEmail(v any) error {
	s, _ := v.(string)
	if _, ok := auth.NormalizeEmail(s); !ok {
		return errors.New("not a valid email address")
	}
	return nil
}

func validPassword(v any) error {
	s, _ := v.(string)
	return auth.ValidatePassword(s)
}

// askPassword prompts twice and requires both answers to match
func askPassword(message string) (string, error) {
	var password, confirm string
	if err := survey.AskOne(&survey.Password{Message: message}, &password, survey.WithValidator(validPassword)); err != nil {
		return "", err
	}
	if err := survey.AskOne(&survey.Password{Message: "Confirm password:"}, &confirm); err != nil {
		return "", err
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

func newAdminCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}
	cmd.AddCommand(newAdminCreateCommand(g), newAdminPasswordCommand(g))
	return cmd
}

func newAdminCreateCommand(g *globals) *cobra.Command {
	var email, name, password string
	var interactive bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Long: `Create an account that can sign in to the admin application.

Missing values are prompted for unless --interactive=false is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				if !interactive {
					return errors.New("--email and --password are required when not interactive")
				}
			}
			if email == "" {
				if err := survey.AskOne(&survey.Input{Message: "Email:"}, &email, survey.WithValidator(validEmail)); err != nil {
					return err
				}
			}
			normalized, ok := auth.NormalizeEmail(email)
			if !ok {
				return fmt.Errorf("invalid email address %q", email)
			}
			if name == "" {
				name, _, _ = strings.Cut(normalized, "@")
				if interactive {
					if err := survey.AskOne(&survey.Input{Message: "Display name:", Default: name}, &name); err != nil {
						return err
					}
				}
			}
			if password == "" {
				var err error
				if password, err = askPassword("Password:"); err != nil {
					return err
				}
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := db.CreateUser(cmd.Context(), normalized, hash, strings.TrimSpace(name))
			if errors.Is(err, store.ErrUniqueViolation) {
				return fmt.Errorf("an account for %s already exists", normalized)
			}
			if err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Created %s (%s)", u.Email, u.DisplayName), g.noColor)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name (default: local part of the email)")
	cmd.Flags().StringVar(&password, "password", "", "account password, prompted when empty")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", true, "prompt for missing values")
	return cmd
}

func newAdminPasswordCommand(g *globals) *cobra.Command {
	var password string
	var interactive bool
	cmd := &cobra.Command{
		Use:   "password <email>",
		Short: "Set the password of an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, ok := auth.NormalizeEmail(args[0])
			if !ok {
				return fmt.Errorf("invalid email address %q", args[0])
			}
			if password == "" {
				if !interactive {
					return errors.New("--password is required when not interactive")
				}
				var err error
				if password, err = askPassword("New password:"); err != nil {
					return err
				}
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}

			db, err := g.openMigrated(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			u, err := db.GetUserByEmail(cmd.Context(), email)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no account for %s", email)
			}
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			if err := db.UpdateUserPassword(cmd.Context(), u.ID, hash); err != nil {
				return err
			}
			ui.Success(cmd.OutOrStdout(), "Password updated for "+email, g.noColor)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password, prompted when empty")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", true, "prompt for missing values")
	return cmd
}
