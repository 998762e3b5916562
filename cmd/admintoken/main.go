// Command admintoken prints a bearer token for the /v1/admin endpoints,
// signed with JWT_SIGNING_KEY.
//
// Usage:
//
//	JWT_SIGNING_KEY=... go run ./cmd/admintoken -sub ops@example.com -ttl 30m
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/courierfee/courierfee/internal/auth"
)

func main() {
	subject := flag.String("sub", "operator", "token subject, used as the admin rate limit key")
	ttl := flag.Duration("ttl", auth.DefaultTokenExpiry, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	cfg := auth.JWTConfigFromEnv()
	cfg.Expiry = *ttl

	tokens, err := auth.NewJWTService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}

	token, expiresAt, err := tokens.GenerateAccessToken(*subject, auth.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}
