// Command seed-admin provisions a single ONVIF camera account directly
// against the configured account store (Postgres if DATABASE_URL is set,
// an in-memory store otherwise, useful only to sanity-check the flags). It
// can also print an Argon2id hash for a deployment to drop into
// ADMIN_PASSWORD_HASH, bootstrapping the admin plane's own operator login.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/technosupport/onvif-gateway/internal/auth"
	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/crypto"
	"github.com/technosupport/onvif-gateway/internal/users"
)

var levelByName = map[string]authz.Level{
	"User":          authz.User,
	"Operator":      authz.Operator,
	"Administrator": authz.Administrator,
}

func main() {
	mode := flag.String("mode", "camera-account", "what to seed: camera-account or admin-operator")
	username := flag.String("username", "admin", "account username")
	password := flag.String("password", "", "account password (required)")
	level := flag.String("level", "Administrator", "ONVIF authorization level for a camera-account (User, Operator, Administrator)")
	flag.Parse()

	if *password == "" {
		log.Fatal("-password is required")
	}

	switch *mode {
	case "camera-account":
		if err := seedCameraAccount(*username, *password, *level); err != nil {
			log.Fatal(err)
		}
	case "admin-operator":
		hash, err := auth.HashPassword(*password)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Printf("ADMIN_USERNAME=%s\nADMIN_PASSWORD_HASH=%s\n", *username, hash)
	default:
		log.Fatalf("unknown -mode %q (want camera-account or admin-operator)", *mode)
	}
}

func seedCameraAccount(username, password, levelName string) error {
	lvl, ok := levelByName[levelName]
	if !ok {
		return fmt.Errorf("level must be one of User, Operator, Administrator, got %q", levelName)
	}

	keyring := crypto.NewKeyring()
	if err := keyring.LoadFromEnv(); err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	store, closeStore, err := openAccountStore(keyring)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Create(context.Background(), username, password, lvl); err != nil {
		return fmt.Errorf("create account %s: %w", username, err)
	}
	fmt.Printf("seeded camera account %s at level %s\n", username, lvl)
	return nil
}

func openAccountStore(keyring *crypto.Keyring) (users.Store, func(), error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Printf("DATABASE_URL not set; seeding an in-memory store only, nothing is persisted")
		return users.NewMemoryStore(keyring), func() {}, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return users.NewPostgresStore(db, keyring), func() { db.Close() }, nil
}
