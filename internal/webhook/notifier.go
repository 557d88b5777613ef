package webhook

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Event names carried in the envelope.
const (
	EventConnection    = "connection"
	EventQRCode        = "qr_code"
	EventPairingCode   = "pairing_code"
	EventMessage       = "message"
	EventMessageStatus = "message_status"
	EventContact       = "contact"
	EventGroup         = "group"
	EventPresence      = "presence"
	EventError         = "error"
	EventTest          = "test"
)

// Envelope is the wire shape of every webhook delivery.
type Envelope struct {
	TenantID  string    `json:"tenantId"`
	SessionID string    `json:"sessionId"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier wraps the Dispatcher with the envelope format. Deliveries run
// on the caller's goroutine; callers that must not block use Async.
type Notifier struct {
	dispatcher *Dispatcher
}

func NewNotifier(dispatcher *Dispatcher) *Notifier {
	return &Notifier{dispatcher: dispatcher}
}

// Notify delivers one event. A tenant without a webhook URL gets nothing;
// that is not an error.
func (n *Notifier) Notify(ctx context.Context, webhookURL, tenantID, sessionID, event string, data any) error {
	if webhookURL == "" {
		return nil
	}
	return n.dispatcher.Send(ctx, webhookURL, Envelope{
		TenantID:  tenantID,
		SessionID: sessionID,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Async fires the delivery on its own goroutine. Failures are already
// logged by the dispatcher; the error is dropped.
func (n *Notifier) Async(webhookURL, tenantID, sessionID, event string, data any) {
	if webhookURL == "" {
		return
	}
	go func() {
		if err := n.Notify(context.Background(), webhookURL, tenantID, sessionID, event, data); err != nil {
			log.Debug().
				Err(err).
				Str("tenant_id", tenantID).
				Str("session_id", sessionID).
				Str("event", event).
				Msg("async webhook delivery failed")
		}
	}()
}

// Test sends a probe event so a tenant can verify its endpoint before
// pointing real traffic at it.
func (n *Notifier) Test(ctx context.Context, webhookURL, tenantID string) error {
	if err := ValidateURL(webhookURL); err != nil {
		return err
	}
	return n.Notify(ctx, webhookURL, tenantID, "", EventTest, map[string]string{
		"message": "Webhook endpoint is reachable",
	})
}
