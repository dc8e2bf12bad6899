package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datngoHD/white-label-app/internal/client/models"
	"github.com/datngoHD/white-label-app/internal/common"
	"github.com/datngoHD/white-label-app/internal/cryptox"
	"github.com/datngoHD/white-label-app/internal/dbx"
)

const credentialKey = "credential"

// SQLiteStore keeps the credential triple in the local database, AES-GCM
// encrypted under a key derived from the device secret.
type SQLiteStore struct {
	db  dbx.DBTX
	key []byte
}

// NewSQLiteStore builds a store over db. key must be a 32-byte encryption
// key (see cryptox.DeriveKey).
func NewSQLiteStore(db dbx.DBTX, key []byte) *SQLiteStore {
	return &SQLiteStore{db: db, key: key}
}

func (s *SQLiteStore) Get(ctx context.Context) (*models.Credential, error) {
	var value, nonce []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value, nonce FROM credentials WHERE key = ?`, credentialKey,
	).Scan(&value, &nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}

	var cred models.Credential
	if err := cryptox.Decrypt(value, nonce, s.key, &cred); err != nil {
		return nil, fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return &cred, nil
}

func (s *SQLiteStore) Set(ctx context.Context, cred *models.Credential) error {
	value, nonce, err := cryptox.Encrypt(cred, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, nonce) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, nonce = excluded.nonce
	`, credentialKey, value, nonce)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, credentialKey)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
