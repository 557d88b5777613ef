package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
	"github.com/wagate/gateway-server-go/internal/webhook"
)

// Pipeline turns protocol events into persisted rows and webhook
// deliveries. Invoked from each session's event loop, so everything here
// runs in emission order per session.
type Pipeline struct {
	contacts repository.ContactRepository
	messages repository.MessageRepository
	media    repository.MediaRepository
	notifier *webhook.Notifier
	mediaDir string
}

func NewPipeline(
	contacts repository.ContactRepository,
	messages repository.MessageRepository,
	media repository.MediaRepository,
	notifier *webhook.Notifier,
	mediaDir string,
) *Pipeline {
	return &Pipeline{
		contacts: contacts,
		messages: messages,
		media:    media,
		notifier: notifier,
		mediaDir: mediaDir,
	}
}

func (p *Pipeline) Handle(ctx context.Context, sess *Session, evt protocol.Event) {
	switch e := evt.(type) {
	case protocol.MessagesUpsert:
		for i := range e.Messages {
			p.handleMessage(ctx, sess, &e.Messages[i])
		}
	case protocol.MessagesUpdate:
		for _, delta := range e.Deltas {
			p.handleDelta(ctx, sess, delta)
		}
	case protocol.ContactsUpsert:
		for _, contact := range e.Contacts {
			p.handleContact(ctx, sess, contact)
		}
	case protocol.GroupsUpsert:
		for _, group := range e.Groups {
			p.handleGroup(ctx, sess, group)
		}
	case protocol.PresenceUpdate:
		p.handlePresence(ctx, sess, e)
	}
}

func (p *Pipeline) handleMessage(ctx context.Context, sess *Session, msg *protocol.IncomingMessage) {
	logger := log.With().
		Str("tenant_id", sess.TenantID).
		Str("session_id", sess.SessionID).
		Str("message_id", msg.MessageID).
		Logger()

	if msg.FromMe {
		return
	}
	if msg.IsGroup && !sess.ReceiveGroupMessages() {
		logger.Debug().Msg("dropping group message, tenant opted out")
		return
	}

	msgType, ok := messageType(msg.Content.Kind)
	if !ok {
		logger.Debug().Str("kind", string(msg.Content.Kind)).Msg("ignoring unsupported message kind")
		return
	}

	contact, err := p.contacts.Upsert(ctx, model.UpsertContactParams{
		TenantID:   sess.TenantID,
		ProtocolID: msg.ChatID,
		PushName:   msg.PushName,
		IsGroup:    msg.IsGroup,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to upsert contact")
		return
	}

	var quoted *string
	if msg.QuotedID != "" {
		quoted = &msg.QuotedID
	}

	record, err := p.messages.Create(ctx, model.CreateMessageParams{
		TenantID:        sess.TenantID,
		ContactID:       contact.ID,
		MessageID:       msg.MessageID,
		Type:            msgType,
		Direction:       model.DirectionInbound,
		Status:          model.MessageStatusDelivered,
		Content:         msg.Content.Summary(),
		QuotedMessageID: quoted,
		Timestamp:       msg.Timestamp,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist message")
		return
	}

	if msg.Content.HasMedia() {
		p.saveMedia(ctx, sess, msg, record, logger)
	}

	p.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventMessage, record)
}

// saveMedia downloads and stores the payload. Best effort: the message
// row already exists, a failed download only costs the attachment.
func (p *Pipeline) saveMedia(ctx context.Context, sess *Session, msg *protocol.IncomingMessage, record *model.Message, logger zerolog.Logger) {
	sock := sess.Socket()
	if sock == nil {
		return
	}

	data, err := sock.DownloadMedia(ctx, msg)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to download media")
		return
	}

	filename := mediaFilename(msg.Content.Media)
	dir := filepath.Join(p.mediaDir, sess.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Msg("failed to create media directory")
		return
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error().Err(err).Msg("failed to write media file")
		return
	}

	_, err = p.media.Create(ctx, model.CreateMediaParams{
		MessageID: record.ID,
		Filename:  filename,
		MimeType:  msg.Content.Media.MimeType,
		Size:      int64(len(data)),
		FilePath:  path,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to persist media record")
	}
}

func (p *Pipeline) handleDelta(ctx context.Context, sess *Session, delta protocol.MessageDelta) {
	var status model.MessageStatus
	switch delta.ReceiptCode {
	case 3:
		status = model.MessageStatusDelivered
	case 4:
		status = model.MessageStatusRead
	default:
		return
	}

	updated, err := p.messages.UpdateStatusByMessageID(ctx, sess.TenantID, delta.MessageID, status)
	if err != nil {
		log.Error().Err(err).
			Str("tenant_id", sess.TenantID).
			Str("message_id", delta.MessageID).
			Msg("failed to update message status")
		return
	}
	if !updated {
		// Receipt for a message we never stored.
		return
	}

	p.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventMessageStatus, map[string]any{
		"messageId": delta.MessageID,
		"status":    status,
	})
}

func (p *Pipeline) handleContact(ctx context.Context, sess *Session, info protocol.ContactInfo) {
	contact, err := p.contacts.Upsert(ctx, model.UpsertContactParams{
		TenantID:   sess.TenantID,
		ProtocolID: info.ProtocolID,
		PushName:   info.PushName,
	})
	if err != nil {
		log.Error().Err(err).
			Str("tenant_id", sess.TenantID).
			Str("protocol_id", info.ProtocolID).
			Msg("failed to upsert contact")
		return
	}
	p.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventContact, contact)
}

func (p *Pipeline) handleGroup(ctx context.Context, sess *Session, info protocol.GroupInfo) {
	metadata := json.RawMessage(fmt.Sprintf(`{"subject":%q}`, info.Subject))
	contact, err := p.contacts.Upsert(ctx, model.UpsertContactParams{
		TenantID:   sess.TenantID,
		ProtocolID: info.ProtocolID,
		PushName:   info.Subject,
		IsGroup:    true,
		Metadata:   &metadata,
	})
	if err != nil {
		log.Error().Err(err).
			Str("tenant_id", sess.TenantID).
			Str("protocol_id", info.ProtocolID).
			Msg("failed to upsert group")
		return
	}
	p.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventGroup, contact)
}

func (p *Pipeline) handlePresence(ctx context.Context, sess *Session, evt protocol.PresenceUpdate) {
	seenAt := evt.LastSeen
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}
	if err := p.contacts.TouchLastSeen(ctx, sess.TenantID, evt.ProtocolID, seenAt); err != nil {
		log.Error().Err(err).
			Str("tenant_id", sess.TenantID).
			Str("protocol_id", evt.ProtocolID).
			Msg("failed to touch last seen")
	}

	p.notifier.Async(sess.WebhookURL(), sess.TenantID, sess.SessionID, webhook.EventPresence, map[string]any{
		"protocolId":  evt.ProtocolID,
		"lastSeen":    seenAt,
		"unavailable": evt.Unavailable,
	})
}

func messageType(kind protocol.MessageKind) (model.MessageType, bool) {
	switch kind {
	case protocol.KindText:
		return model.MessageTypeText, true
	case protocol.KindImage:
		return model.MessageTypeImage, true
	case protocol.KindVideo:
		return model.MessageTypeVideo, true
	case protocol.KindAudio:
		return model.MessageTypeAudio, true
	case protocol.KindDocument:
		return model.MessageTypeDocument, true
	case protocol.KindSticker:
		return model.MessageTypeSticker, true
	case protocol.KindLocation:
		return model.MessageTypeLocation, true
	case protocol.KindContact:
		return model.MessageTypeContact, true
	case protocol.KindReaction:
		return model.MessageTypeReaction, true
	case protocol.KindPoll:
		return model.MessageTypePoll, true
	}
	return "", false
}

func mediaFilename(media *protocol.MediaRef) string {
	if media.Filename != "" {
		return uuid.NewString() + "_" + filepath.Base(media.Filename)
	}
	ext := ""
	if parts := strings.SplitN(media.MimeType, "/", 2); len(parts) == 2 {
		ext = "." + strings.SplitN(parts[1], ";", 2)[0]
	}
	return uuid.NewString() + ext
}
