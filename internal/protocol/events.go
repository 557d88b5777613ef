package protocol

import "time"

// Event is the sealed union of everything a Socket emits.
type Event interface {
	isEvent()
}

type ConnState int

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosed
)

// CloseReason is the numeric status code carried by a connection close.
type CloseReason int

const (
	// ReasonLoggedOut is the authoritative "credentials invalidated"
	// signal. Terminal: auth state must be purged and never retried.
	ReasonLoggedOut CloseReason = 401

	// ReasonRestartRequired means the protocol layer wants a fresh socket
	// while the existing credentials stay valid. Reconnect immediately
	// with the same session id, bypassing the backoff counter.
	ReasonRestartRequired CloseReason = 515

	ReasonConnectionLost     CloseReason = 408
	ReasonConnectionClosed   CloseReason = 428
	ReasonConnectionReplaced CloseReason = 440
	ReasonBadSession         CloseReason = 500
	ReasonUnknown            CloseReason = 0
)

type ConnectionUpdate struct {
	State ConnState

	// Reason is set when State is StateClosed.
	Reason CloseReason

	// QRChallenge is the raw QR payload to present for pairing, set while
	// connecting and unauthenticated.
	QRChallenge string

	Err error
}

type MessagesUpsert struct {
	Messages []IncomingMessage
}

// MessageDelta is a delivery-receipt status change for one message.
type MessageDelta struct {
	MessageID   string
	ChatID      string
	ReceiptCode int
}

type MessagesUpdate struct {
	Deltas []MessageDelta
}

type ContactInfo struct {
	ProtocolID string
	Name       string
	PushName   string
}

type ContactsUpsert struct {
	Contacts []ContactInfo
}

type GroupInfo struct {
	ProtocolID string
	Subject    string
}

type GroupsUpsert struct {
	Groups []GroupInfo
}

type PresenceUpdate struct {
	ProtocolID  string
	LastSeen    time.Time
	Unavailable bool
}

func (ConnectionUpdate) isEvent() {}
func (MessagesUpsert) isEvent()   {}
func (MessagesUpdate) isEvent()   {}
func (ContactsUpsert) isEvent()   {}
func (GroupsUpsert) isEvent()     {}
func (PresenceUpdate) isEvent()   {}
