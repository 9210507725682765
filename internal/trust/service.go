// Package trust implements the decision engine over the stored identity
// graph: observing identities from the server, tracking pins and verification
// violations, answering trust queries, and projecting shield states.
package trust

import (
	"crypto/ed25519"
	"fmt"
	"log"

	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/store"
)

// Service owns the trust state for one local account. All mutations go
// through the store's transactional update so concurrent key-sharing reads
// never see a half-applied change.
type Service struct {
	store       *store.Store
	verifier    identity.Verifier
	logger      *log.Logger
	localUser   identity.UserID
	localDevice identity.DeviceID
}

// Config holds configuration for creating a Service.
type Config struct {
	Store       *store.Store
	Verifier    identity.Verifier // defaults to Ed25519Verifier
	Logger      *log.Logger
	LocalUser   identity.UserID
	LocalDevice identity.DeviceID
}

// NewService creates a trust service for the given local account.
func NewService(cfg Config) *Service {
	v := cfg.Verifier
	if v == nil {
		v = identity.Ed25519Verifier{}
	}
	return &Service{
		store:       cfg.Store,
		verifier:    v,
		logger:      cfg.Logger,
		localUser:   cfg.LocalUser,
		localDevice: cfg.LocalDevice,
	}
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// LocalUser returns the local account's user ID.
func (s *Service) LocalUser() identity.UserID { return s.localUser }

// LocalDeviceID returns the local device's ID.
func (s *Service) LocalDeviceID() identity.DeviceID { return s.localDevice }

// Store exposes the underlying store for snapshot reads.
func (s *Service) Store() *store.Store { return s.store }

// localDeviceRecord loads the device row of the local device, or nil if the
// account has not stored one.
func (s *Service) localDeviceRecord() (*identity.Device, error) {
	if s.localUser == "" || s.localDevice == "" {
		return nil, nil
	}
	return s.store.GetDevice(s.localUser, s.localDevice)
}

// signingKey reconstructs an ed25519 private key from a stored seed.
func signingKey(seed []byte) (ed25519.PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("trust: private key seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
