// File: cmd/token/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rag-pipeline/internal/config"
	"rag-pipeline/internal/infra/api"
)

// token prints a bearer token for an API client, signed with auth.jwt_secret.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("sub", "", "client name stored as the token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime (default auth.token_ttl)")
	flag.Parse()

	// dev=true: minting needs no AI credentials
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "auth.jwt_secret (or JWT_SECRET) is not set")
		os.Exit(1)
	}
	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, lifetime).Mint(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(lifetime).UTC().Format(time.RFC3339))
}
