package identity

// Device is a single client of a user.
type Device struct {
	UserID      UserID
	DeviceID    DeviceID
	SigningKey  string // unpadded base64 ed25519
	IdentityKey string // unpadded base64 curve25519, may be empty
	DisplayName string

	// Signatures maps signing user -> key ID -> signature over the device
	// keys, as published alongside them.
	Signatures map[UserID]map[string]string

	// LocallyVerified is set when the device was verified interactively or
	// marked trusted by hand.
	LocallyVerified bool

	// IsLocal marks the device this engine runs on.
	IsLocal bool
}

// SigningPayload returns the canonical object that signatures over the device
// keys cover.
func (d *Device) SigningPayload() map[string]any {
	keys := map[string]any{
		"ed25519:" + string(d.DeviceID): d.SigningKey,
	}
	if d.IdentityKey != "" {
		keys["curve25519:"+string(d.DeviceID)] = d.IdentityKey
	}
	return map[string]any{
		"user_id":   string(d.UserID),
		"device_id": string(d.DeviceID),
		"keys":      keys,
	}
}

// SignatureFrom returns the signature the given key made over the device
// keys, or "" if none is present.
func (d *Device) SignatureFrom(signer UserID, keyID string) string {
	return d.Signatures[signer][keyID]
}

// SetSignature records a signature over the device keys.
func (d *Device) SetSignature(signer UserID, keyID, signature string) {
	if d.Signatures == nil {
		d.Signatures = make(map[UserID]map[string]string)
	}
	if d.Signatures[signer] == nil {
		d.Signatures[signer] = make(map[string]string)
	}
	d.Signatures[signer][keyID] = signature
}
