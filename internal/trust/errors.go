package trust

import (
	"errors"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

var (
	// ErrSignatureInvalid is returned when a cryptographic signature check
	// fails. It surfaces to the caller; an invalid signature is never
	// downgraded to a silent "unverified".
	ErrSignatureInvalid = identity.ErrSignatureInvalid

	// ErrIdentityNotFound is returned when an operation targets a user
	// whose identity has never been observed.
	ErrIdentityNotFound = errors.New("trust: identity not found")

	// ErrMissingPrivateKey is returned when signing is requested but the
	// required private cross-signing key is not available on this device.
	ErrMissingPrivateKey = errors.New("trust: missing private cross-signing key")
)
