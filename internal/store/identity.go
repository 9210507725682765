package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// GetIdentity returns the stored identity for the given user, or nil if the
// user has never been observed.
func (s *Store) GetIdentity(userID identity.UserID) (*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getIdentity(s.db, userID)
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *Store) getIdentity(q queryer, userID identity.UserID) (*identity.Identity, error) {
	var (
		ident                        identity.Identity
		kind                         int
		masterSigs, sskSigs, uskSigs string
		uskKey                       string
		prevVerified, violation      int
	)
	err := q.QueryRow(
		`SELECT kind, master_key, master_signatures, self_signing_key, self_signing_signatures,
		        user_signing_key, user_signing_signatures, verified_master_key,
		        previously_verified, pinned_master_key, violation
		 FROM identity WHERE user_id = ?`, string(userID),
	).Scan(
		&kind, &ident.MasterKey.PublicKey, &masterSigs,
		&ident.SelfSigningKey.PublicKey, &sskSigs,
		&uskKey, &uskSigs, &ident.VerifiedMasterKey,
		&prevVerified, &ident.PinnedMasterKey, &violation,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get identity: %w", err)
	}

	ident.Kind = identity.Kind(kind)
	ident.UserID = userID
	ident.PreviouslyVerified = prevVerified != 0
	ident.Violation = violation != 0

	ident.MasterKey.UserID = userID
	ident.MasterKey.Usage = identity.UsageMaster
	ident.SelfSigningKey.UserID = userID
	ident.SelfSigningKey.Usage = identity.UsageSelfSigning

	if err := unmarshalSigs(masterSigs, &ident.MasterKey.Signatures); err != nil {
		return nil, err
	}
	if err := unmarshalSigs(sskSigs, &ident.SelfSigningKey.Signatures); err != nil {
		return nil, err
	}
	if uskKey != "" {
		usk := identity.CrossSigningKey{
			UserID:    userID,
			Usage:     identity.UsageUserSigning,
			PublicKey: uskKey,
		}
		if err := unmarshalSigs(uskSigs, &usk.Signatures); err != nil {
			return nil, err
		}
		ident.UserSigningKey = &usk
	}
	return &ident, nil
}

// SaveIdentity writes the full identity row, replacing any previous state.
func (s *Store) SaveIdentity(ident *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveIdentity(s.db, ident)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) saveIdentity(e execer, ident *identity.Identity) error {
	masterSigs, err := marshalSigs(ident.MasterKey.Signatures)
	if err != nil {
		return err
	}
	sskSigs, err := marshalSigs(ident.SelfSigningKey.Signatures)
	if err != nil {
		return err
	}
	uskKey, uskSigs := "", "{}"
	if ident.UserSigningKey != nil {
		uskKey = ident.UserSigningKey.PublicKey
		if uskSigs, err = marshalSigs(ident.UserSigningKey.Signatures); err != nil {
			return err
		}
	}

	_, err = e.Exec(
		`INSERT OR REPLACE INTO identity
		 (user_id, kind, master_key, master_signatures, self_signing_key, self_signing_signatures,
		  user_signing_key, user_signing_signatures, verified_master_key,
		  previously_verified, pinned_master_key, violation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ident.UserID), int(ident.Kind),
		ident.MasterKey.PublicKey, masterSigs,
		ident.SelfSigningKey.PublicKey, sskSigs,
		uskKey, uskSigs, ident.VerifiedMasterKey,
		boolInt(ident.PreviouslyVerified), ident.PinnedMasterKey, boolInt(ident.Violation),
	)
	if err != nil {
		return fmt.Errorf("store: save identity: %w", err)
	}
	return nil
}

// UpdateIdentity applies fn to the stored identity inside a single
// transaction while holding the writer lock. The identity passed to fn is
// the current row; the state fn leaves behind is committed atomically, so
// pin, violation and verification flags always change together.
// Returns nil, nil if the user has no stored identity.
func (s *Store) UpdateIdentity(userID identity.UserID, fn func(*identity.Identity) error) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	ident, err := s.getIdentity(tx, userID)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, nil
	}
	if err := fn(ident); err != nil {
		return nil, err
	}
	if err := s.saveIdentity(tx, ident); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return ident, nil
}

// AllIdentities returns every stored identity, ordered by user ID.
func (s *Store) AllIdentities() ([]*identity.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT user_id FROM identity ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("store: list identities: %w", err)
	}
	defer rows.Close()

	var userIDs []identity.UserID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan identity: %w", err)
		}
		userIDs = append(userIDs, identity.UserID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate identities: %w", err)
	}

	idents := make([]*identity.Identity, 0, len(userIDs))
	for _, id := range userIDs {
		ident, err := s.getIdentity(s.db, id)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			idents = append(idents, ident)
		}
	}
	return idents, nil
}

func marshalSigs(sigs map[identity.UserID]map[string]string) (string, error) {
	if sigs == nil {
		return "{}", nil
	}
	data, err := json.Marshal(sigs)
	if err != nil {
		return "", fmt.Errorf("store: marshal signatures: %w", err)
	}
	return string(data), nil
}

func unmarshalSigs(data string, out *map[identity.UserID]map[string]string) error {
	if data == "" || data == "{}" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("store: unmarshal signatures: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
