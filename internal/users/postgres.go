package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/technosupport/onvif-gateway/internal/authz"
	"github.com/technosupport/onvif-gateway/internal/crypto"
)

// PostgresStore is a Store backed by the onvif_accounts table (see
// db/migrations), using the same envelope-encryption scheme as MemoryStore
// so the two are interchangeable behind the Store interface.
type PostgresStore struct {
	db      *sql.DB
	keyring *crypto.Keyring
}

// NewPostgresStore wraps an already-open *sql.DB. Callers run the
// migrations in db/migrations (via cmd/migrator) before first use.
func NewPostgresStore(db *sql.DB, keyring *crypto.Keyring) *PostgresStore {
	return &PostgresStore{db: db, keyring: keyring}
}

func (s *PostgresStore) Lookup(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT username, level, disabled, master_kid, dek_nonce, dek_ciphertext, dek_tag,
		       pwd_nonce, pwd_ciphertext, pwd_tag
		FROM onvif_accounts WHERE username = $1`, username)

	acct := &Account{}
	var level int16
	err := row.Scan(&acct.Username, &level, &acct.Disabled, &acct.masterKID,
		&acct.dekNonce, &acct.dekCiphertext, &acct.dekTag,
		&acct.pwdNonce, &acct.pwdCiphertext, &acct.pwdTag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: lookup %s: %w", username, err)
	}
	acct.Level = authz.Level(level)
	return acct, nil
}

func (s *PostgresStore) Password(ctx context.Context, account *Account) (string, error) {
	dek, err := s.keyring.UnwrapDEK(account.masterKID, account.dekNonce, account.dekCiphertext, account.dekTag, []byte(account.Username))
	if err != nil {
		return "", fmt.Errorf("users: unwrap DEK for %s: %w", account.Username, err)
	}
	plaintext, err := crypto.DecryptGCM(dek, account.pwdNonce, account.pwdCiphertext, account.pwdTag, []byte(account.Username))
	if err != nil {
		return "", fmt.Errorf("users: decrypt password for %s: %w", account.Username, err)
	}
	return string(plaintext), nil
}

func (s *PostgresStore) Create(ctx context.Context, username, password string, level authz.Level) error {
	dek, err := crypto.GenerateDEK()
	if err != nil {
		return fmt.Errorf("users: generate DEK: %w", err)
	}
	aad := []byte(username)

	kid, dekNonce, dekCiphertext, dekTag, err := s.keyring.WrapDEK(dek, aad)
	if err != nil {
		return fmt.Errorf("users: wrap DEK: %w", err)
	}

	pwdNonce, pwdCiphertext, pwdTag, err := crypto.EncryptGCM(dek, []byte(password), aad)
	if err != nil {
		return fmt.Errorf("users: encrypt password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO onvif_accounts
			(username, level, disabled, master_kid, dek_nonce, dek_ciphertext, dek_tag, pwd_nonce, pwd_ciphertext, pwd_tag)
		VALUES ($1, $2, FALSE, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (username) DO UPDATE SET
			level = EXCLUDED.level,
			disabled = FALSE,
			master_kid = EXCLUDED.master_kid,
			dek_nonce = EXCLUDED.dek_nonce,
			dek_ciphertext = EXCLUDED.dek_ciphertext,
			dek_tag = EXCLUDED.dek_tag,
			pwd_nonce = EXCLUDED.pwd_nonce,
			pwd_ciphertext = EXCLUDED.pwd_ciphertext,
			pwd_tag = EXCLUDED.pwd_tag`,
		username, int16(level), kid, dekNonce, dekCiphertext, dekTag, pwdNonce, pwdCiphertext, pwdTag)
	if err != nil {
		return fmt.Errorf("users: insert %s: %w", username, err)
	}
	return nil
}

func (s *PostgresStore) Disable(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE onvif_accounts SET disabled = TRUE WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("users: disable %s: %w", username, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("users: disable %s: %w", username, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, level, disabled, master_kid, dek_nonce, dek_ciphertext, dek_tag,
		       pwd_nonce, pwd_ciphertext, pwd_tag
		FROM onvif_accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		acct := &Account{}
		var level int16
		if err := rows.Scan(&acct.Username, &level, &acct.Disabled, &acct.masterKID,
			&acct.dekNonce, &acct.dekCiphertext, &acct.dekTag,
			&acct.pwdNonce, &acct.pwdCiphertext, &acct.pwdTag); err != nil {
			return nil, fmt.Errorf("users: list scan: %w", err)
		}
		acct.Level = authz.Level(level)
		out = append(out, acct)
	}
	return out, rows.Err()
}
