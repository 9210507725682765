package mxtrust

import (
	"github.com/mxkit/mxtrust-go/internal/identity"
	"github.com/mxkit/mxtrust-go/internal/megolm"
	"github.com/mxkit/mxtrust-go/internal/store"
)

// snapshotView adapts a store snapshot to the megolm.RoomView interface.
type snapshotView struct {
	snap *store.Snapshot
}

func (v snapshotView) Identity(u identity.UserID) *identity.Identity {
	return v.snap.Identities[u]
}

func (v snapshotView) Devices(u identity.UserID) []*identity.Device {
	return v.snap.Devices[u]
}

// CollectRecipients computes the devices that should receive a room key for
// the given members under the strategy. The computation runs on a snapshot
// of trust state taken at invocation time, so concurrent pin or verification
// updates are either fully visible or not at all. Results are never cached
// across rotations.
func (c *Client) CollectRecipients(members []UserID, strategy CollectStrategy) ([]*Device, error) {
	if c.store == nil {
		return nil, c.errNotLoaded()
	}
	snap, err := c.store.SnapshotUsers(members)
	if err != nil {
		return nil, err
	}
	localDev, err := c.store.GetDevice(c.localUser, c.localDevice)
	if err != nil {
		return nil, err
	}
	return megolm.CollectRecipients(c.verifier, snapshotView{snap: snap}, members, strategy, localDev), nil
}

// NewGroupSession starts rotation bookkeeping for a fresh outbound group
// session with the given settings.
func (c *Client) NewGroupSession(roomID string, settings EncryptionSettings) *GroupSession {
	return megolm.NewGroupSession(roomID, settings, c.now())
}
