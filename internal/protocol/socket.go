// Package protocol defines the capability the gateway consumes from the
// wire-level messaging implementation. The gateway never sees handshake,
// encryption, or framing details; it dials a Socket and drains its event
// channel.
package protocol

import (
	"context"

	"github.com/wagate/gateway-server-go/internal/authstate"
)

// Dialer opens sockets. The auth handle carries the persisted credentials
// for the session; an unpaired handle produces a socket that will emit a
// QR challenge (or accept a pairing-code request) before opening.
type Dialer interface {
	Dial(ctx context.Context, auth *authstate.Bound) (Socket, error)
}

// Socket is one live protocol connection. Implementations must be safe for
// concurrent use; Events is closed when the socket is torn down.
type Socket interface {
	// Connect starts the connection attempt. Lifecycle progress arrives
	// on Events.
	Connect(ctx context.Context) error

	// SendMessage delivers outbound content and returns the protocol
	// receipt. Fails if the socket is not open.
	SendMessage(ctx context.Context, to string, content OutgoingContent) (Receipt, error)

	// RequestPairingCode asks the protocol for a phone-pairing code as an
	// alternative to the QR challenge.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// Logout tells the far end to invalidate the credentials. Terminal.
	Logout(ctx context.Context) error

	// Disconnect tears the socket down without invalidating credentials.
	Disconnect()

	IsConnected() bool

	// Profile returns the authenticated identity once the socket has
	// opened, nil before that.
	Profile() *Profile

	// DownloadMedia fetches the payload referenced by a media-bearing
	// incoming message.
	DownloadMedia(ctx context.Context, msg *IncomingMessage) ([]byte, error)

	// Events yields lifecycle and protocol events in emission order.
	Events() <-chan Event
}

type Profile struct {
	ID       string
	Name     string
	Number   string
	Platform string
}

type Receipt struct {
	MessageID string
}
