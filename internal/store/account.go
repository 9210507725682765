package store

import (
	"encoding/json"
	"fmt"
)

// Account holds the local user's credentials and private key material.
// The cross-signing private keys may be absent on devices that never held
// them; operations that need them fail with a typed error instead of
// degrading silently.
type Account struct {
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`

	// DeviceKeyPrivate is the ed25519 seed of the local device signing key.
	DeviceKeyPrivate []byte `json:"deviceKeyPrivate"`
	DeviceKeyPublic  string `json:"deviceKeyPublic"`

	MasterKeyPrivate      []byte `json:"masterKeyPrivate,omitempty"`
	SelfSigningKeyPrivate []byte `json:"selfSigningKeyPrivate,omitempty"`
	UserSigningKeyPrivate []byte `json:"userSigningKeyPrivate,omitempty"`
}

const accountKey = "account"

// SaveAccount persists the account credentials to the database.
func (s *Store) SaveAccount(acct *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(acct)
	if err != nil {
		return fmt.Errorf("store: marshal account: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO account (key, value) VALUES (?, ?)",
		accountKey, data,
	)
	if err != nil {
		return fmt.Errorf("store: save account: %w", err)
	}
	return nil
}

// LoadAccount loads the account credentials from the database.
// Returns nil, nil if no account has been saved.
func (s *Store) LoadAccount() (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRow(
		"SELECT value FROM account WHERE key = ?", accountKey,
	).Scan(&data)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load account: %w", err)
	}

	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("store: unmarshal account: %w", err)
	}
	return &acct, nil
}
