package verification

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mxkit/mxtrust-go/internal/identity"
)

// defaultTimeout is how long a session may sit in Requested or Ready before
// it expires, per the spec's ten minute request validity window.
const defaultTimeout = 10 * time.Minute

// Coordinator tracks in-flight verification sessions by flow ID. Sessions
// for different peers proceed independently; at most one session per peer
// pair is meaningful, so a new request for a peer supersedes the previous
// one. Callers must still avoid racing two requests for the same peer, per
// the single-flight invariant.
type Coordinator struct {
	localDevice identity.DeviceID
	logger      *log.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	byPeer   map[string]string // peer key -> flow ID of the active session
}

// NewCoordinator creates a session coordinator for the local device.
func NewCoordinator(localDevice identity.DeviceID, logger *log.Logger) *Coordinator {
	return &Coordinator{
		localDevice: localDevice,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		byPeer:      make(map[string]string),
	}
}

// SetClock overrides the time source, for tests.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

func peerKey(user identity.UserID, device identity.DeviceID) string {
	return string(user) + "/" + string(device)
}

// RequestOptions configures a new verification request.
type RequestOptions struct {
	OtherUser   identity.UserID
	OtherDevice identity.DeviceID // empty for identity verification

	// RoomID and EventID locate the request event for in-room flows.
	// Required when verifying another user; self-verification runs over
	// to-device messages and leaves them empty.
	RoomID  string
	EventID string

	// Methods we support; defaults to AllMethods.
	Methods []Method

	// PeerMasterKey snapshots the peer identity being verified.
	PeerMasterKey string

	SelfVerification bool
}

// RequestVerification creates a session in the Requested state and returns
// it together with the request payload to send out. An existing active
// session for the same peer is superseded (cancelled) first; the returned
// effects carry the cancel notification to deliver to the peer for the
// superseded flow.
func (c *Coordinator) RequestVerification(opts RequestOptions) (*Session, *RequestContent, []Effect, error) {
	if opts.OtherUser == "" {
		return nil, nil, nil, fmt.Errorf("verification: missing peer user")
	}
	if !opts.SelfVerification && (opts.RoomID == "" || opts.EventID == "") {
		return nil, nil, nil, ErrRoomContextRequired
	}
	methods := opts.Methods
	if len(methods) == 0 {
		methods = AllMethods()
	}

	flowID := opts.EventID
	if flowID == "" {
		flowID = uuid.NewString()
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var superseded []Effect
	key := peerKey(opts.OtherUser, opts.OtherDevice)
	if prevID, ok := c.byPeer[key]; ok {
		if prev := c.sessions[prevID]; prev != nil && !prev.State.terminal() {
			effects, _ := prev.Handle(EventCancel{Code: CancelCodeUser, Reason: "superseded by new request"})
			superseded = append(superseded, effects...)
			logf(c.logger, "verification: superseded session %s for %s", prevID, key)
		}
	}

	sess := &Session{
		FlowID:           flowID,
		OtherUser:        opts.OtherUser,
		OtherDevice:      opts.OtherDevice,
		RoomID:           opts.RoomID,
		EventID:          opts.EventID,
		PeerMasterKey:    opts.PeerMasterKey,
		SelfVerification: opts.SelfVerification,
		OurMethods:       methods,
		State:            StateRequested,
		CreatedAt:        now,
		Deadline:         now.Add(defaultTimeout),
	}
	c.sessions[flowID] = sess
	c.byPeer[key] = flowID

	content := &RequestContent{
		FromDevice: string(c.localDevice),
		Methods:    methodStrings(methods),
		Timestamp:  now.UnixMilli(),
	}
	if opts.RoomID == "" {
		content.TransactionID = flowID
	}
	return sess, content, superseded, nil
}

// Session returns the session for a flow ID, or nil.
func (c *Coordinator) Session(flowID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[flowID]
}

// Accept feeds the peer's supported methods into the session. On an empty
// intersection the session is cancelled and ErrNoCommonMethod returned,
// along with the cancel effect to deliver to the peer.
func (c *Coordinator) Accept(flowID string, theirMethods []Method) ([]Effect, error) {
	return c.dispatch(flowID, EventReady{Methods: theirMethods})
}

// Start begins the chosen sub-protocol on a Ready session.
func (c *Coordinator) Start(flowID string, method Method) ([]Effect, error) {
	return c.dispatch(flowID, EventStart{Method: method})
}

// Complete marks the sub-protocol as successfully finished. The returned
// effects carry the verification record for the trust layer.
func (c *Coordinator) Complete(flowID string) ([]Effect, error) {
	return c.dispatch(flowID, EventDone{})
}

// Cancel aborts a session. Cancelling an unknown, finished or already
// cancelled flow is a no-op, not an error.
func (c *Coordinator) Cancel(flowID, reason string) ([]Effect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.sessions[flowID]
	if sess == nil {
		return nil, nil
	}
	return sess.Handle(EventCancel{Code: CancelCodeUser, Reason: reason})
}

// ExpireSessions times out every session whose deadline has passed and
// returns how many expired.
func (c *Coordinator) ExpireSessions() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for id, sess := range c.sessions {
		if sess.State.terminal() || now.Before(sess.Deadline) {
			continue
		}
		sess.Handle(EventTimeout{})
		expired++
		logf(c.logger, "verification: session %s timed out", id)
	}
	return expired
}

func (c *Coordinator) dispatch(flowID string, ev Event) ([]Effect, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.sessions[flowID]
	if sess == nil {
		return nil, fmt.Errorf("verification: unknown flow %q", flowID)
	}
	return sess.Handle(ev)
}

func methodStrings(methods []Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
