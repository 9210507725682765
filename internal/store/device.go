package store

import (
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

// GetDevice returns the stored device, or nil if unknown.
func (s *Store) GetDevice(userID identity.UserID, deviceID identity.DeviceID) (*identity.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		dev                      identity.Device
		sigs                     string
		locallyVerified, isLocal int
	)
	err := s.db.QueryRow(
		`SELECT signing_key, identity_key, signatures, display_name, locally_verified, is_local
		 FROM device WHERE user_id = ? AND device_id = ?`,
		string(userID), string(deviceID),
	).Scan(&dev.SigningKey, &dev.IdentityKey, &sigs, &dev.DisplayName, &locallyVerified, &isLocal)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get device: %w", err)
	}
	dev.UserID = userID
	dev.DeviceID = deviceID
	dev.LocallyVerified = locallyVerified != 0
	dev.IsLocal = isLocal != 0
	if err := unmarshalSigs(sigs, &dev.Signatures); err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetDevices returns all known devices of a user, ordered by device ID.
// Returns an empty slice if none are known.
func (s *Store) GetDevices(userID identity.UserID) ([]*identity.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDevices(userID)
}

func (s *Store) getDevices(userID identity.UserID) ([]*identity.Device, error) {
	rows, err := s.db.Query(
		`SELECT device_id, signing_key, identity_key, signatures, display_name, locally_verified, is_local
		 FROM device WHERE user_id = ? ORDER BY device_id`, string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("store: get devices: %w", err)
	}
	defer rows.Close()

	var devices []*identity.Device
	for rows.Next() {
		var (
			dev                      identity.Device
			sigs                     string
			locallyVerified, isLocal int
		)
		if err := rows.Scan(&dev.DeviceID, &dev.SigningKey, &dev.IdentityKey, &sigs,
			&dev.DisplayName, &locallyVerified, &isLocal); err != nil {
			return nil, fmt.Errorf("store: scan device: %w", err)
		}
		dev.UserID = userID
		dev.LocallyVerified = locallyVerified != 0
		dev.IsLocal = isLocal != 0
		if err := unmarshalSigs(sigs, &dev.Signatures); err != nil {
			return nil, err
		}
		devices = append(devices, &dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate devices: %w", err)
	}
	return devices, nil
}

// SaveDevice upserts a single device.
func (s *Store) SaveDevice(dev *identity.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sigs, err := marshalSigs(dev.Signatures)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO device
		 (user_id, device_id, signing_key, identity_key, signatures, display_name, locally_verified, is_local)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(dev.UserID), string(dev.DeviceID), dev.SigningKey, dev.IdentityKey,
		sigs, dev.DisplayName, boolInt(dev.LocallyVerified), boolInt(dev.IsLocal),
	)
	if err != nil {
		return fmt.Errorf("store: save device: %w", err)
	}
	return nil
}

// SaveDevices upserts multiple devices in a single transaction.
func (s *Store) SaveDevices(devices []*identity.Device) error {
	if len(devices) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO device
		 (user_id, device_id, signing_key, identity_key, signatures, display_name, locally_verified, is_local)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, dev := range devices {
		sigs, err := marshalSigs(dev.Signatures)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			string(dev.UserID), string(dev.DeviceID), dev.SigningKey, dev.IdentityKey,
			sigs, dev.DisplayName, boolInt(dev.LocallyVerified), boolInt(dev.IsLocal),
		); err != nil {
			return fmt.Errorf("store: save device %s/%s: %w", dev.UserID, dev.DeviceID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// SetDeviceVerified flips the local verification flag for a device.
func (s *Store) SetDeviceVerified(userID identity.UserID, deviceID identity.DeviceID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE device SET locally_verified = ? WHERE user_id = ? AND device_id = ?",
		boolInt(verified), string(userID), string(deviceID),
	)
	if err != nil {
		return fmt.Errorf("store: set device verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: device %s/%s not found", userID, deviceID)
	}
	return nil
}

// Snapshot reads the identities and devices of the given users under a single
// read lock, so key-sharing decisions see a consistent view of trust state.
type Snapshot struct {
	Identities map[identity.UserID]*identity.Identity
	Devices    map[identity.UserID][]*identity.Device
}

// SnapshotUsers captures the current identity and device state of the given
// users. Users with no stored identity appear with a nil identity entry.
func (s *Store) SnapshotUsers(users []identity.UserID) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Identities: make(map[identity.UserID]*identity.Identity, len(users)),
		Devices:    make(map[identity.UserID][]*identity.Device, len(users)),
	}
	for _, u := range users {
		ident, err := s.getIdentity(s.db, u)
		if err != nil {
			return nil, err
		}
		snap.Identities[u] = ident

		devices, err := s.getDevices(u)
		if err != nil {
			return nil, err
		}
		snap.Devices[u] = devices
	}
	return snap, nil
}
