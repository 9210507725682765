package mxtrust

import (
	"fmt"

	"github.com/mxkit/mxtrust-go/internal/verification"
)

// VerificationRequest describes an outgoing interactive verification.
type VerificationRequest struct {
	OtherUser   UserID
	OtherDevice DeviceID // empty for identity verification

	// RoomID and EventID are required when verifying another user; flows
	// with our own devices run over to-device messages instead.
	RoomID  string
	EventID string

	// Methods we propose; defaults to all supported methods.
	Methods []VerificationMethod
}

// RequestVerification starts an interactive verification flow and returns
// the session plus the request payload to send out. A still-active session
// for the same peer is superseded; the returned effects carry the cancel
// notification to deliver to the peer for the superseded flow.
func (c *Client) RequestVerification(req VerificationRequest) (*VerificationSession, *RequestContent, []VerificationEffect, error) {
	if c.coord == nil {
		return nil, nil, nil, c.errNotLoaded()
	}

	var peerMasterKey string
	if ident, err := c.svc.GetIdentity(req.OtherUser); err != nil {
		return nil, nil, nil, err
	} else if ident != nil {
		peerMasterKey = ident.MasterKey.PublicKey
	}

	return c.coord.RequestVerification(verification.RequestOptions{
		OtherUser:        req.OtherUser,
		OtherDevice:      req.OtherDevice,
		RoomID:           req.RoomID,
		EventID:          req.EventID,
		Methods:          req.Methods,
		PeerMasterKey:    peerMasterKey,
		SelfVerification: req.OtherUser == c.localUser,
	})
}

// AcceptVerification feeds the peer's supported methods into the session.
// If no common method exists the session is cancelled and ErrNoCommonMethod
// returned; no trust state is touched.
func (c *Client) AcceptVerification(flowID string, theirMethods []VerificationMethod) error {
	if c.coord == nil {
		return c.errNotLoaded()
	}
	_, err := c.coord.Accept(flowID, theirMethods)
	return err
}

// StartVerification begins the chosen sub-protocol on a ready session.
func (c *Client) StartVerification(flowID string, method VerificationMethod) error {
	if c.coord == nil {
		return c.errNotLoaded()
	}
	_, err := c.coord.Start(flowID, method)
	return err
}

// CompleteVerification marks the sub-protocol as successfully finished and
// applies the resulting trust changes: the peer device is marked verified,
// the peer identity gains an explicit verification record, and for
// self-verification the new signatures are returned for upload.
func (c *Client) CompleteVerification(flowID string) (*SignatureUpload, error) {
	if c.coord == nil {
		return nil, c.errNotLoaded()
	}
	effects, err := c.coord.Complete(flowID)
	if err != nil {
		return nil, err
	}

	var upload *SignatureUpload
	for _, effect := range effects {
		switch effect := effect.(type) {
		case verification.EffectEmitRecord:
			rec := effect.Record
			if err := c.svc.ApplyVerificationRecord(rec.UserID, rec.DeviceID, rec.MasterKey); err != nil {
				return nil, fmt.Errorf("client: apply verification record: %w", err)
			}
		case verification.EffectUploadSignatures:
			up, err := c.svc.VerifyIdentity(effect.UserID)
			if err != nil {
				return nil, fmt.Errorf("client: sign verified identity: %w", err)
			}
			upload = up
		}
	}
	return upload, nil
}

// CancelVerification aborts a flow. Cancelling an unknown or already
// finished flow is a no-op.
func (c *Client) CancelVerification(flowID, reason string) error {
	if c.coord == nil {
		return c.errNotLoaded()
	}
	_, err := c.coord.Cancel(flowID, reason)
	return err
}

// VerificationSessionByID returns the session for a flow ID, or nil.
func (c *Client) VerificationSessionByID(flowID string) *VerificationSession {
	if c.coord == nil {
		return nil
	}
	return c.coord.Session(flowID)
}

// ExpireVerifications times out stale sessions and returns how many expired.
func (c *Client) ExpireVerifications() int {
	if c.coord == nil {
		return 0
	}
	return c.coord.ExpireSessions()
}
