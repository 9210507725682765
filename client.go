// Package mxtrust implements the identity trust and key-sharing decision
// engine of an end-to-end encrypted messaging client: cross-signing identity
// tracking, pin and violation handling, interactive verification sessions,
// room key recipient collection, and shield projection.
package mxtrust

import (
	"fmt"
	"log"
	"time"

	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/store"
	"github.com/mxkit/mxtrust-go/internal/trust"
	"github.com/mxkit/mxtrust-go/internal/verification"
)

// Client is the main entry point. It owns the SQLite trust store, the trust
// service, and the verification coordinator for one local account.
type Client struct {
	dbPath   string
	logger   *log.Logger
	verifier identity.Verifier
	now      func() time.Time

	store *store.Store
	svc   *trust.Service
	coord *verification.Coordinator

	localUser   UserID
	localDevice DeviceID
}

// Option configures a Client.
type Option func(*Client)

// WithDBPath overrides the database path for persistent storage.
// If not set, defaults to $XDG_DATA_HOME/mxtrust-go/default.db.
func WithDBPath(path string) Option {
	return func(c *Client) { c.dbPath = path }
}

// WithLogger sets the logger for verbose output.
// If not set, logging is disabled.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithVerifier overrides the signature verifier, for tests that inject
// failures. The default verifies with ed25519.
func WithVerifier(v identity.Verifier) Option {
	return func(c *Client) { c.verifier = v }
}

// WithClock overrides the time source used for verification deadlines and
// group session age, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new client. Call Init to bootstrap a fresh account or
// Load to open an existing one.
func NewClient(opts ...Option) *Client {
	c := &Client{verifier: identity.Ed25519Verifier{}, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Init bootstraps a fresh account: device key, cross-signing key set, own
// identity, and the cross-signed local device.
func (c *Client) Init(userID UserID, deviceID DeviceID) error {
	if err := c.openStore(); err != nil {
		return err
	}
	if _, err := trust.Bootstrap(c.store, userID, deviceID); err != nil {
		return fmt.Errorf("client: bootstrap: %w", err)
	}
	c.localUser = userID
	c.localDevice = deviceID
	c.initServices()
	return nil
}

// Load opens an existing database and loads the account.
func (c *Client) Load() error {
	if err := c.openStore(); err != nil {
		return err
	}
	acct, err := c.store.LoadAccount()
	if err != nil {
		return fmt.Errorf("client: load account: %w", err)
	}
	if acct == nil {
		return fmt.Errorf("client: no account found in database")
	}
	c.localUser = UserID(acct.UserID)
	c.localDevice = DeviceID(acct.DeviceID)
	c.initServices()
	return nil
}

// Close closes the client's database connection.
func (c *Client) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// UserID returns the local account's user ID.
func (c *Client) UserID() UserID { return c.localUser }

// DeviceID returns the local device's ID.
func (c *Client) DeviceID() DeviceID { return c.localDevice }

func (c *Client) openStore() error {
	s, err := store.Open(c.dbPath)
	if err != nil {
		return fmt.Errorf("client: open store: %w", err)
	}
	c.store = s
	return nil
}

func (c *Client) initServices() {
	c.svc = trust.NewService(trust.Config{
		Store:       c.store,
		Verifier:    c.verifier,
		Logger:      c.logger,
		LocalUser:   c.localUser,
		LocalDevice: c.localDevice,
	})
	c.coord = verification.NewCoordinator(c.localDevice, c.logger)
	c.coord.SetClock(c.now)
}

// errNotLoaded is returned by operations attempted before Init or Load.
func (c *Client) errNotLoaded() error {
	return fmt.Errorf("client: not initialized (call Init or Load first)")
}

// Identity returns the stored identity of a user, or nil if never observed.
func (c *Client) Identity(userID UserID) (*Identity, error) {
	if c.svc == nil {
		return nil, c.errNotLoaded()
	}
	return c.svc.GetIdentity(userID)
}

// Identities returns every stored identity.
func (c *Client) Identities() ([]*Identity, error) {
	if c.store == nil {
		return nil, c.errNotLoaded()
	}
	return c.store.AllIdentities()
}

// Devices returns the known devices of a user.
func (c *Client) Devices(userID UserID) ([]*Device, error) {
	if c.svc == nil {
		return nil, c.errNotLoaded()
	}
	return c.svc.GetDevices(userID)
}

// ObserveIdentity records a freshly observed cross-signing identity and
// reports what changed. A ChangedFromPinned result means the user's identity
// key changed and needs user approval.
func (c *Client) ObserveIdentity(obs Observation) (UpsertResult, error) {
	if c.svc == nil {
		return Unchanged, c.errNotLoaded()
	}
	return c.svc.ObserveIdentity(obs)
}

// ObserveDevices records the published devices of a user.
func (c *Client) ObserveDevices(userID UserID, devices []*Device) error {
	if c.svc == nil {
		return c.errNotLoaded()
	}
	return c.svc.ObserveDevices(userID, devices)
}

// IsIdentityVerified reports whether the user's identity is verified.
func (c *Client) IsIdentityVerified(userID UserID) (bool, error) {
	if c.svc == nil {
		return false, c.errNotLoaded()
	}
	return c.svc.IsIdentityVerified(userID)
}

// IsDeviceTrusted reports whether the device may receive key material.
func (c *Client) IsDeviceTrusted(userID UserID, deviceID DeviceID) (bool, error) {
	if c.svc == nil {
		return false, c.errNotLoaded()
	}
	return c.svc.IsDeviceTrusted(userID, deviceID)
}

// TrustsOurOwnDevice reports whether our own identity has cross-signed the
// local device.
func (c *Client) TrustsOurOwnDevice() (bool, error) {
	if c.svc == nil {
		return false, c.errNotLoaded()
	}
	return c.svc.TrustsOurOwnDevice()
}

// WasPreviouslyVerified reports the monotonic verification latch of a user.
func (c *Client) WasPreviouslyVerified(userID UserID) (bool, error) {
	if c.svc == nil {
		return false, c.errNotLoaded()
	}
	return c.svc.WasPreviouslyVerified(userID)
}

// HasVerificationViolation reports whether the user's identity changed since
// it was pinned or verified, unresolved.
func (c *Client) HasVerificationViolation(userID UserID) (bool, error) {
	if c.svc == nil {
		return false, c.errNotLoaded()
	}
	return c.svc.HasVerificationViolation(userID)
}

// VerifyIdentity marks a user's identity as explicitly verified and returns
// the signatures to publish.
func (c *Client) VerifyIdentity(userID UserID) (*SignatureUpload, error) {
	if c.svc == nil {
		return nil, c.errNotLoaded()
	}
	return c.svc.VerifyIdentity(userID)
}

// WithdrawVerification removes the verification requirement for a user.
func (c *Client) WithdrawVerification(userID UserID) error {
	if c.svc == nil {
		return c.errNotLoaded()
	}
	return c.svc.WithdrawVerification(userID)
}

// PinCurrentMasterKey accepts the currently observed master key as the new
// pin, clearing any violation.
func (c *Client) PinCurrentMasterKey(userID UserID) error {
	if c.svc == nil {
		return c.errNotLoaded()
	}
	return c.svc.PinCurrentMasterKey(userID)
}

// MarkDeviceVerified sets or clears the local verification flag of a device.
func (c *Client) MarkDeviceVerified(userID UserID, deviceID DeviceID, verified bool) error {
	if c.svc == nil {
		return c.errNotLoaded()
	}
	return c.svc.MarkDeviceVerified(userID, deviceID, verified)
}

// ShieldForIdentity returns the warning indicator for a user's identity.
func (c *Client) ShieldForIdentity(userID UserID) ShieldState {
	if c.svc == nil {
		return ShieldState{Color: ShieldRed, Message: c.errNotLoaded().Error()}
	}
	return c.svc.ShieldForIdentity(userID)
}

// ShieldForDevice returns the warning indicator for a single device.
func (c *Client) ShieldForDevice(userID UserID, deviceID DeviceID) ShieldState {
	if c.svc == nil {
		return ShieldState{Color: ShieldRed, Message: c.errNotLoaded().Error()}
	}
	return c.svc.ShieldForDevice(userID, deviceID)
}
