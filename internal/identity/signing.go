package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSignatureInvalid is returned when a cryptographic signature check fails.
// It is never folded into a plain "unverified" answer; callers decide how to
// surface it.
var ErrSignatureInvalid = errors.New("identity: signature invalid")

// Verifier checks detached signatures over canonical JSON payloads. It is the
// capability boundary to the cryptography layer: the trust evaluator never
// touches key material directly.
type Verifier interface {
	// VerifyJSON checks signature (unpadded base64) made by the ed25519
	// public key (unpadded base64) over the canonical encoding of payload.
	// Returns ErrSignatureInvalid on mismatch.
	VerifyJSON(publicKey string, payload map[string]any, signature string) error
}

// Ed25519Verifier implements Verifier with stdlib ed25519.
type Ed25519Verifier struct{}

// VerifyJSON implements Verifier.
func (Ed25519Verifier) VerifyJSON(publicKey string, payload map[string]any, signature string) error {
	pub, err := DecodeKey(publicKey)
	if err != nil {
		return fmt.Errorf("identity: decode public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("identity: public key is %d bytes, want %d", len(pub), ed25519.PublicKeySize)
	}
	sig, err := base64.RawStdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("identity: decode signature: %w", err)
	}
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), canonical, sig) {
		return ErrSignatureInvalid
	}
	return nil
}

// SignJSON signs the canonical encoding of payload and returns the signature
// as unpadded base64.
func SignJSON(priv ed25519.PrivateKey, payload map[string]any) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, canonical)
	return base64.RawStdEncoding.EncodeToString(sig), nil
}

// CanonicalJSON encodes v with lexicographically sorted keys, no insignificant
// whitespace, and no HTML escaping. Signatures are computed over this form so
// that both sides of a check agree on the exact bytes.
func CanonicalJSON(v any) ([]byte, error) {
	// Round-trip through any so that struct field order is replaced by the
	// sorted map key order encoding/json guarantees.
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("identity: remarshal: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("identity: encode canonical: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// EncodeKey returns the unpadded base64 form of raw key bytes.
func EncodeKey(raw []byte) string {
	return base64.RawStdEncoding.EncodeToString(raw)
}

// DecodeKey decodes an unpadded base64 key.
func DecodeKey(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(s)
}
