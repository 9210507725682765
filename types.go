package mxtrust

import (
	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/megolm"
	"github.com/mxkit/mxtrust-go/internal/trust"
	"github.com/mxkit/mxtrust-go/internal/verification"
)

// Core identifiers and records, re-exported from the internal packages.
type (
	UserID          = identity.UserID
	DeviceID        = identity.DeviceID
	CrossSigningKey = identity.CrossSigningKey
	Identity        = identity.Identity
	Device          = identity.Device
)

// Identity variants.
const (
	Own   = identity.Own
	Other = identity.Other
)

// Observation results.
type (
	Observation  = trust.Observation
	UpsertResult = trust.UpsertResult
)

const (
	Unchanged                      = trust.Unchanged
	FirstObservation               = trust.FirstObservation
	ChangedFromPinned              = trust.ChangedFromPinned
	ChangedButReverifiedOrRepinned = trust.ChangedButReverifiedOrRepinned
)

// SignatureUpload is the signature set to publish after a verification.
type SignatureUpload = trust.SignatureUpload

// Shield projection.
type (
	ShieldState = trust.ShieldState
	ShieldColor = trust.ShieldColor
)

const (
	ShieldNone = trust.ShieldNone
	ShieldGrey = trust.ShieldGrey
	ShieldRed  = trust.ShieldRed
)

// Verification sessions.
type (
	VerificationSession = verification.Session
	VerificationMethod  = verification.Method
	RequestContent      = verification.RequestContent

	// VerificationEffect is an outbound action produced by a session
	// transition; SendCancel asks the caller to notify the peer.
	VerificationEffect = verification.Effect
	SendCancel         = verification.EffectSendCancel
)

const (
	MethodSAS         = verification.MethodSAS
	MethodQRShow      = verification.MethodQRShow
	MethodQRScan      = verification.MethodQRScan
	MethodReciprocate = verification.MethodReciprocate
)

// QR verification payloads.
type (
	QRPayload = verification.QRPayload
	QRMode    = verification.QRMode
)

const (
	QRModeCrossSigning  = verification.QRModeCrossSigning
	QRModeSelfTrusted   = verification.QRModeSelfTrusted
	QRModeSelfUntrusted = verification.QRModeSelfUntrusted
)

// NewQRPayload builds a QR verification payload with a fresh shared secret.
func NewQRPayload(mode QRMode, flowID, firstKey, secondKey string) (*QRPayload, error) {
	return verification.NewQRPayload(mode, flowID, firstKey, secondKey)
}

// Group session policy.
type (
	EncryptionSettings = megolm.EncryptionSettings
	CollectStrategy    = megolm.CollectStrategy
	GroupSession       = megolm.GroupSession
)

const (
	DeviceBasedAllDevices  = megolm.DeviceBasedAllDevices
	DeviceBasedOnlyTrusted = megolm.DeviceBasedOnlyTrusted
	IdentityBased          = megolm.IdentityBased
)

// DefaultEncryptionSettings returns the default room encryption settings.
func DefaultEncryptionSettings() EncryptionSettings {
	return megolm.DefaultEncryptionSettings()
}

// Typed failures surfaced to callers. Evaluation errors never default to
// trusted: the safe answer on any failure is "untrusted".
var (
	ErrSignatureInvalid    = trust.ErrSignatureInvalid
	ErrIdentityNotFound    = trust.ErrIdentityNotFound
	ErrMissingPrivateKey   = trust.ErrMissingPrivateKey
	ErrNoCommonMethod      = verification.ErrNoCommonMethod
	ErrRoomContextRequired = verification.ErrRoomContextRequired
)
