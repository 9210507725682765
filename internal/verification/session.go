package verification

import (
	"errors"
	"fmt"
	"time"

	"github.com/mxkit/mxtrust-go/internal/identity"
)

var (
	// ErrNoCommonMethod is returned when method negotiation finds no
	// method both sides support.
	ErrNoCommonMethod = errors.New("verification: no common verification method")

	// ErrRoomContextRequired is returned when an in-room verification is
	// requested without a room and event context.
	ErrRoomContextRequired = errors.New("verification: room and event context required")
)

// State is the current position of a session in the handshake.
type State int

const (
	StateRequested State = iota
	StateReady
	StateInProgress
	StateDone
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateReady:
		return "ready"
	case StateInProgress:
		return "in-progress"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// terminal reports whether no further transitions are possible.
func (s State) terminal() bool {
	return s == StateDone || s == StateCancelled || s == StateTimedOut
}

// Cancel codes sent to the peer.
const (
	CancelCodeUser          = "m.user"
	CancelCodeTimeout       = "m.timeout"
	CancelCodeUnknownMethod = "m.unknown_method"
)

// Record is the verification outcome emitted on Done. It is the only way a
// session produces trust state: no record exists unless Done was reached.
type Record struct {
	UserID   identity.UserID
	DeviceID identity.DeviceID

	// MasterKey is the master key fingerprint that was confirmed during
	// the flow, empty for device-only verification.
	MasterKey string

	// SelfVerification marks a flow between two devices of the local user.
	SelfVerification bool
}

// Event is an input to the session state machine.
type Event interface{ isEvent() }

// EventReady carries the peer's supported methods; negotiation happens here.
type EventReady struct{ Methods []Method }

// EventStart begins the chosen sub-protocol.
type EventStart struct{ Method Method }

// EventDone signals that the sub-protocol completed successfully.
type EventDone struct{}

// EventCancel aborts the flow. Idempotent: cancelling a finished or already
// cancelled session produces no effects and no error.
type EventCancel struct{ Code, Reason string }

// EventTimeout expires a session that never progressed past negotiation.
type EventTimeout struct{}

func (EventReady) isEvent()   {}
func (EventStart) isEvent()   {}
func (EventDone) isEvent()    {}
func (EventCancel) isEvent()  {}
func (EventTimeout) isEvent() {}

// Effect is an output of a transition, to be executed by the caller after the
// state change is committed.
type Effect interface{ isEffect() }

// EffectEmitRecord hands the verification outcome to the trust layer.
type EffectEmitRecord struct{ Record Record }

// EffectUploadSignatures asks the caller to publish new signatures, emitted
// for self-verification flows.
type EffectUploadSignatures struct{ UserID identity.UserID }

// EffectSendCancel asks the caller to notify the peer of a cancellation.
type EffectSendCancel struct{ FlowID, Code, Reason string }

func (EffectEmitRecord) isEffect()       {}
func (EffectUploadSignatures) isEffect() {}
func (EffectSendCancel) isEffect()       {}

// Session is one interactive verification flow between the local device and
// a peer. All mutation goes through Handle under the coordinator's lock.
type Session struct {
	FlowID      string
	OtherUser   identity.UserID
	OtherDevice identity.DeviceID

	// RoomID and EventID are set for in-room flows with other users;
	// self-verification flows run over to-device messages and leave them
	// empty.
	RoomID  string
	EventID string

	// PeerMasterKey is the peer's master key fingerprint as observed when
	// the flow started; the record emitted on Done confirms exactly this
	// key, not whatever the server reports later.
	PeerMasterKey string

	SelfVerification bool

	OurMethods   []Method
	TheirMethods []Method
	Methods      []Method // negotiated, set on Ready
	ChosenMethod Method   // set on Start

	State     State
	CreatedAt time.Time
	Deadline  time.Time
}

// Handle applies an event to the session: (state, event) -> (state, effects).
// Transitions never leave partial trust state; a record is emitted only on
// the transition into Done.
func (s *Session) Handle(ev Event) ([]Effect, error) {
	switch ev := ev.(type) {
	case EventReady:
		if s.State != StateRequested {
			return nil, fmt.Errorf("verification: ready event in state %s", s.State)
		}
		shared := negotiate(s.OurMethods, ev.Methods)
		if len(shared) == 0 {
			s.State = StateCancelled
			return []Effect{EffectSendCancel{FlowID: s.FlowID, Code: CancelCodeUnknownMethod, Reason: "no common verification method"}},
				ErrNoCommonMethod
		}
		s.TheirMethods = ev.Methods
		s.Methods = shared
		s.State = StateReady
		return nil, nil

	case EventStart:
		if s.State != StateReady {
			return nil, fmt.Errorf("verification: start event in state %s", s.State)
		}
		if !s.supports(ev.Method) {
			return nil, fmt.Errorf("verification: method %s was not negotiated", ev.Method)
		}
		s.ChosenMethod = ev.Method
		s.State = StateInProgress
		return nil, nil

	case EventDone:
		if s.State != StateInProgress {
			return nil, fmt.Errorf("verification: done event in state %s", s.State)
		}
		s.State = StateDone
		effects := []Effect{EffectEmitRecord{Record: Record{
			UserID:           s.OtherUser,
			DeviceID:         s.OtherDevice,
			MasterKey:        s.PeerMasterKey,
			SelfVerification: s.SelfVerification,
		}}}
		if s.SelfVerification {
			effects = append(effects, EffectUploadSignatures{UserID: s.OtherUser})
		}
		return effects, nil

	case EventCancel:
		if s.State.terminal() {
			return nil, nil
		}
		s.State = StateCancelled
		return []Effect{EffectSendCancel{FlowID: s.FlowID, Code: ev.Code, Reason: ev.Reason}}, nil

	case EventTimeout:
		if s.State.terminal() {
			return nil, nil
		}
		s.State = StateTimedOut
		return []Effect{EffectSendCancel{FlowID: s.FlowID, Code: CancelCodeTimeout, Reason: "verification timed out"}}, nil

	default:
		return nil, fmt.Errorf("verification: unknown event %T", ev)
	}
}

func (s *Session) supports(m Method) bool {
	for _, method := range s.Methods {
		if method == m {
			return true
		}
	}
	return false
}

// RequestContent is the payload announcing a verification request to the
// peer, sent in-room or as a to-device message.
type RequestContent struct {
	FromDevice    string   `json:"from_device"`
	Methods       []string `json:"methods"`
	TransactionID string   `json:"transaction_id,omitempty"`
	Timestamp     int64    `json:"timestamp,omitempty"`
}
