package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"MiniCart/internal/auth"
)

// runToken prints a signed admin token for catalog writes:
//
//	ministore token -subject ops -ttl 24h
func runToken(args []string, secret string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(out)

	subject := fs.String("subject", "ops", "token subject, logged on catalog writes")
	role := fs.String("role", auth.RoleAdmin, "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(secret) < minSecret {
		return fmt.Errorf("ADMIN_JWT_SECRET must be at least %d chars", minSecret)
	}
	if *subject == "" {
		return errors.New("subject is required")
	}
	if *ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	tok, err := auth.NewTokenMaker(secret).New(*subject, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
