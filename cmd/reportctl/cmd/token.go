package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/playreport/api/pkg/jwt"
)

var (
	tokenIdentity identityFlags
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed token for a caller identity (development only)",
	RunE:  runToken,
}

func init() {
	tokenIdentity.register(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

type tokenOutput struct {
	Token     string    `json:"token" yaml:"token"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

func runToken(cmd *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	if e.cfg.IsProduction() {
		return fmt.Errorf("refusing to issue tokens in production")
	}

	identity, err := tokenIdentity.resolve(e.cfg)
	if err != nil {
		return err
	}

	gen, err := jwt.NewGenerator(jwt.TokenConfig{
		Secret: e.cfg.Auth.JWTSecret,
		Issuer: e.cfg.Auth.JWTIssuer,
		TTL:    tokenTTL,
	})
	if err != nil {
		return err
	}

	token, expiresAt, err := gen.GenerateToken(identity)
	if err != nil {
		return err
	}

	if printStructured(tokenOutput{Token: token, ExpiresAt: expiresAt}) {
		return nil
	}
	fmt.Println(token)
	return nil
}
