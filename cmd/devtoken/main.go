// Command devtoken signs an HS256 identity token for local development,
// accepted by the server when IDENTITY_JWT_SECRET is configured.
package main

import (
	"collaborative-docs/internal/auth"
	"collaborative-docs/internal/domain"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var identity domain.Identity
	var secret string
	var ttl time.Duration

	// picks up IDENTITY_JWT_SECRET from a local .env when present
	_ = godotenv.Load()

	flagSet := pflag.NewFlagSet("devtoken", pflag.ContinueOnError)
	flagSet.StringVar(&identity.Subject, "sub", "", "subject (user id) the token is issued to")
	flagSet.StringVar(&identity.OrganizationID, "org", "", "active organization id claim")
	flagSet.StringVar(&identity.Name, "name", "", "display name claim")
	flagSet.StringVar(&identity.Email, "email", "", "email claim")
	flagSet.StringVar(&identity.AvatarURL, "avatar", "", "avatar URL claim")
	flagSet.StringVar(&secret, "secret", os.Getenv("IDENTITY_JWT_SECRET"), "HS256 signing secret")
	flagSet.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if identity.Subject == "" {
		return errors.New("--sub is required")
	}
	if secret == "" {
		return errors.New("--secret or IDENTITY_JWT_SECRET is required")
	}

	token, err := auth.SignHS256(secret, identity, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
