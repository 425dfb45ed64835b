package create

import (
	"errors"
	"fmt"
	"net/mail"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var interactive bool
var email string
var password string
var name string

var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	Long:  `Create a user either interactively or by passing flags, printing the entry for the users config.`,
	Run: func(cmd *cobra.Command, args []string) {
		if interactive {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Email").Value(&email).Validate(func(s string) error {
						if _, err := mail.ParseAddress(s); err != nil {
							return errors.New("must be a valid email address")
						}
						return nil
					}),
					huh.NewInput().Title("Password").Value(&password).Validate(func(s string) error {
						if s == "" {
							return errors.New("password cannot be empty")
						}
						return nil
					}),
					huh.NewInput().Title("Display name (optional)").Value(&name),
				),
			)

			err := form.WithTheme(huh.ThemeBase()).Run()

			if err != nil {
				log.Fatal().Err(err).Msg("Form failed")
			}
		}

		if email == "" || password == "" {
			log.Fatal().Msg("Email and password cannot be empty")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		if err != nil {
			log.Fatal().Err(err).Msg("Failed to hash password")
		}

		entry := fmt.Sprintf("%s:%s", email, string(hash))

		if name != "" {
			entry = fmt.Sprintf("%s:%s", entry, name)
		}

		log.Info().Str("user", entry).Msg("User created")
	},
}

func init() {
	CreateCmd.Flags().BoolVar(&interactive, "interactive", false, "Create a user interactively")
	CreateCmd.Flags().StringVar(&email, "email", "", "Email")
	CreateCmd.Flags().StringVar(&password, "password", "", "Password")
	CreateCmd.Flags().StringVar(&name, "name", "", "Display name")
}
