package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/deepaktammali/litellm/internal/auth"
	"github.com/deepaktammali/litellm/internal/config"
	"github.com/deepaktammali/litellm/internal/database"
	"github.com/deepaktammali/litellm/internal/store"
)

// keygen mints an API key, stores its hash, and prints the token once.
func main() {
	userID := flag.String("user", "", "user id the key belongs to")
	role := flag.String("role", string(auth.RoleInternalUser), "role granted to the key (proxy_admin or internal_user)")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: keygen -user <user-id> [-role proxy_admin|internal_user]")
		os.Exit(2)
	}
	parsedRole, ok := auth.ParseRole(*role)
	if !ok {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load(config.Options{})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	prefix, secret, token, err := auth.GenerateAPIKey()
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}
	hash, err := auth.HashKeySecret(secret)
	if err != nil {
		log.Fatalf("hash key: %v", err)
	}

	pg := store.NewPostgres(pool)
	if err := pg.CreateAPIKey(ctx, store.APIKey{
		Prefix:     prefix,
		SecretHash: hash,
		UserID:     *userID,
		Role:       string(parsedRole),
	}); err != nil {
		log.Fatalf("store key: %v", err)
	}

	// The secret is not recoverable after this point.
	fmt.Printf("api key for %s (%s):\n%s\n", *userID, parsedRole, token)
}
