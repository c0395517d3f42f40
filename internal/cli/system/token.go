package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/streakd/internal/cli"
	"github.com/julianstephens/streakd/internal/identity"
)

// TokenCmd mints a bearer token signed with the configured secret, for
// local development and smoke tests
type TokenCmd struct {
	Owner string        `arg:"" help:"Owner id to put in the token subject."`
	TTL   time.Duration `help:"Token lifetime." default:"24h"`
	Email string        `help:"Email claim."`
}

func (cmd *TokenCmd) Run(ctx *cli.Context) error {
	if ctx.Config.JWTSecret == "" {
		return errors.New("no JWT secret configured; set STREAKD_JWT_SECRET or run 'streakd keyring set jwt-secret <value>'")
	}
	v, err := identity.NewVerifier(ctx.Config.JWTSecret, ctx.Config.JWTIssuer)
	if err != nil {
		return err
	}
	raw, err := v.Sign(cmd.Owner, cmd.TTL, identity.Claims{Email: cmd.Email})
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Println(raw)
	return nil
}
