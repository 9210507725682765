// Package identity holds the cross-signing data model and the pure trust
// evaluator: user identities (own and other), devices, and the signature
// checks that decide whether either is trusted.
package identity

// UserID is a fully qualified Matrix user identifier, e.g. "@alice:example.org".
type UserID string

// DeviceID is an opaque device identifier, e.g. "JLAFKJWSCS".
type DeviceID string

// KeyUsage describes what a cross-signing key is used for.
type KeyUsage string

const (
	UsageMaster      KeyUsage = "master"
	UsageSelfSigning KeyUsage = "self_signing"
	UsageUserSigning KeyUsage = "user_signing"
)

// CrossSigningKey is one public key of a user's cross-signing identity,
// together with the signatures other keys have made over it.
type CrossSigningKey struct {
	UserID    UserID   `json:"user_id"`
	Usage     KeyUsage `json:"usage"`
	PublicKey string   `json:"public_key"` // unpadded base64 ed25519

	// Signatures maps signing user -> key ID ("ed25519:<key>") -> signature.
	Signatures map[UserID]map[string]string `json:"signatures,omitempty"`
}

// KeyID returns the Matrix key identifier for this key.
func (k *CrossSigningKey) KeyID() string {
	return "ed25519:" + k.PublicKey
}

// SigningPayload returns the canonical object that signatures over this key
// cover. Signatures themselves are never part of the signed payload.
func (k *CrossSigningKey) SigningPayload() map[string]any {
	return map[string]any{
		"user_id": string(k.UserID),
		"usage":   []any{string(k.Usage)},
		"keys":    map[string]any{k.KeyID(): k.PublicKey},
	}
}

// SignatureFrom returns the signature the given key made over this key, or ""
// if none is present.
func (k *CrossSigningKey) SignatureFrom(signer UserID, keyID string) string {
	return k.Signatures[signer][keyID]
}

// SetSignature records a signature over this key.
func (k *CrossSigningKey) SetSignature(signer UserID, keyID, signature string) {
	if k.Signatures == nil {
		k.Signatures = make(map[UserID]map[string]string)
	}
	if k.Signatures[signer] == nil {
		k.Signatures[signer] = make(map[string]string)
	}
	k.Signatures[signer][keyID] = signature
}

// Kind distinguishes the local user's identity from a remote user's.
type Kind int

const (
	// Other is the identity of a remote user. It carries only a master key
	// and a self-signing key.
	Other Kind = iota
	// Own is the local user's identity. It additionally carries a
	// user-signing key, used to vouch for other users.
	Own
)

func (k Kind) String() string {
	if k == Own {
		return "own"
	}
	return "other"
}

// Identity is a user's cross-signing identity as currently observed, plus the
// local trust state attached to it. The Kind field makes the Own/Other split
// explicit; UserSigningKey is only set for Own identities.
type Identity struct {
	Kind   Kind
	UserID UserID

	MasterKey      CrossSigningKey
	SelfSigningKey CrossSigningKey
	UserSigningKey *CrossSigningKey // Own only

	// VerifiedMasterKey is the exact master key fingerprint the local user
	// explicitly verified, or "" if no explicit verification record exists.
	VerifiedMasterKey string

	// PreviouslyVerified latches once an explicit verification happens and
	// is only reset by withdrawing verification.
	PreviouslyVerified bool

	// PinnedMasterKey is the master key fingerprint last accepted by the
	// local user, set on first observation and updated on re-pin or
	// re-verification.
	PinnedMasterKey string

	// Violation is set when the observed master key no longer matches the
	// pin and the new key was not explicitly verified.
	Violation bool
}

// ExplicitlyVerified reports whether an explicit verification record exists
// for the identity's current master key. A record for a superseded key does
// not count.
func (i *Identity) ExplicitlyVerified() bool {
	return i.VerifiedMasterKey != "" && i.VerifiedMasterKey == i.MasterKey.PublicKey
}

// Pinned reports whether the currently observed master key matches the pin.
func (i *Identity) Pinned() bool {
	return i.PinnedMasterKey != "" && i.PinnedMasterKey == i.MasterKey.PublicKey
}

// NeedsUserApproval reports whether the identity changed after a different
// key was pinned and the change has not been resolved. It is the violation
// flag under its user-facing name: resolve by verifying the new identity or
// by pinning the current master key.
func (i *Identity) NeedsUserApproval() bool {
	return i.Violation
}
