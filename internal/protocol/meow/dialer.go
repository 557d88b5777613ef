// Package meow implements protocol.Dialer and protocol.Socket on top of
// whatsmeow. One sqlstore container backs all sessions; each session maps
// to one device in the container, resolved by the JID recorded in the
// session's credentials.
package meow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/protocol"
)

type Dialer struct {
	container *sqlstore.Container
	logger    zerolog.Logger
}

// NewDialer opens the protocol store and configures how paired devices
// present themselves in the linked-devices list.
func NewDialer(ctx context.Context, dsn string, logger zerolog.Logger) (*Dialer, error) {
	container, err := sqlstore.New(ctx, "postgres", dsn, newWALogger(logger.With().Str("component", "protocol-store").Logger()))
	if err != nil {
		return nil, fmt.Errorf("open protocol store: %w", err)
	}

	store.DeviceProps.Os = proto.String("WaGate")
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()

	return &Dialer{container: container, logger: logger}, nil
}

// Dial resolves the device for the session's credentials and wraps it in a
// Socket. A paired session reuses its stored device; anything else gets a
// fresh device that will need a QR or pairing-code flow.
func (d *Dialer) Dial(ctx context.Context, auth *authstate.Bound) (protocol.Socket, error) {
	device, err := d.resolveDevice(ctx, auth)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With().
		Str("tenant_id", auth.TenantID()).
		Str("session_id", auth.SessionID()).
		Logger()

	client := whatsmeow.NewClient(device, newWALogger(logger))

	// Reconnection policy lives in the supervisor, not down here.
	// DisableLoginAutoReconnect also covers the 515 restart-required
	// stream error, which whatsmeow would otherwise redial internally;
	// with it set, a ManualLoginReconnect event surfaces instead.
	client.EnableAutoReconnect = false
	client.DisableLoginAutoReconnect = true

	return newSocket(client, auth, logger), nil
}

func (d *Dialer) resolveDevice(ctx context.Context, auth *authstate.Bound) (*store.Device, error) {
	creds := auth.Creds()
	if creds.DeviceID != "" {
		jid, err := types.ParseJID(creds.DeviceID)
		if err == nil {
			device, err := d.container.GetDevice(ctx, jid)
			if err != nil {
				return nil, fmt.Errorf("load device %s: %w", creds.DeviceID, err)
			}
			if device != nil {
				return device, nil
			}
			d.logger.Warn().
				Str("session_id", auth.SessionID()).
				Str("device_id", creds.DeviceID).
				Msg("Stored device not found in protocol store, starting fresh")
		}
	}
	return d.container.NewDevice(), nil
}

// Close releases the protocol store.
func (d *Dialer) Close() error {
	return d.container.Close()
}

// waLogger bridges whatsmeow's logging interface onto zerolog.
type waLogger struct {
	logger zerolog.Logger
}

func newWALogger(logger zerolog.Logger) waLog.Logger {
	return &waLogger{logger: logger}
}

func (l *waLogger) Errorf(msg string, args ...any) { l.logger.Error().Msgf(msg, args...) }
func (l *waLogger) Warnf(msg string, args ...any)  { l.logger.Warn().Msgf(msg, args...) }
func (l *waLogger) Infof(msg string, args ...any)  { l.logger.Debug().Msgf(msg, args...) }
func (l *waLogger) Debugf(msg string, args ...any) { l.logger.Trace().Msgf(msg, args...) }

func (l *waLogger) Sub(module string) waLog.Logger {
	return &waLogger{logger: l.logger.With().Str("module", module).Logger()}
}
