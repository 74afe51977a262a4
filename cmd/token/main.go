// Command token mints an operator bearer token signed with JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"estimate-api/internal/auth"
	"estimate-api/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	operator := flag.String("operator", "", "operator name recorded in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_TOKEN_TTL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *ttl > 0 {
		cfg.Auth.TokenTTL = *ttl
	}

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return err
	}

	token, err := issuer.Issue(*operator, time.Now())
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
