package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wagate/gateway-server-go/internal/config"
	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/model"
	"github.com/wagate/gateway-server-go/internal/protocol"
	"github.com/wagate/gateway-server-go/internal/repository"
)

type SendMessageParams struct {
	SessionID string
	To        string
	Content   protocol.OutgoingContent
}

type BulkSendItem struct {
	To      string                   `json:"to"`
	Content protocol.OutgoingContent `json:"content"`
}

type BulkSendResult struct {
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SocketProvider resolves the live socket for a tenant's session. The
// gateway registry implements it.
type SocketProvider interface {
	SocketFor(tenantID, sessionID string) (protocol.Socket, error)
}

type MessageService struct {
	messageRepo repository.MessageRepository
	contactRepo repository.ContactRepository
	sockets     SocketProvider
	sleep       func(time.Duration)
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	contactRepo repository.ContactRepository,
	sockets SocketProvider,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		contactRepo: contactRepo,
		sockets:     sockets,
		sleep:       time.Sleep,
	}
}

// Send delivers one outbound message over the session's socket. The
// persisted record is best effort: an outbound message to a contact the
// gateway has never seen is sent but not stored.
func (s *MessageService) Send(ctx context.Context, tenantID string, params SendMessageParams) (*model.Message, error) {
	if params.To == "" {
		return nil, errors.MissingRequired("to")
	}

	sock, err := s.sockets.SocketFor(tenantID, params.SessionID)
	if err != nil {
		return nil, err
	}

	receipt, sendErr := sock.SendMessage(ctx, params.To, params.Content)

	contact, err := s.contactRepo.FindByProtocolID(ctx, tenantID, params.To)
	if err != nil {
		log.Error().Err(err).Str("to", params.To).Msg("contact lookup failed after send")
	}
	if contact == nil {
		if sendErr != nil {
			return nil, sendErr
		}
		log.Debug().
			Str("tenantId", tenantID).
			Str("to", params.To).
			Msg("outbound message to unknown contact, not persisted")
		return nil, nil
	}

	status := model.MessageStatusSent
	messageID := receipt.MessageID
	if sendErr != nil {
		status = model.MessageStatusFailed
		messageID = "failed-" + params.SessionID + "-" + time.Now().UTC().Format("20060102150405.000000000")
	}

	record, err := s.messageRepo.Create(ctx, model.CreateMessageParams{
		TenantID:  tenantID,
		ContactID: contact.ID,
		MessageID: messageID,
		Type:      outboundType(params.Content.Kind),
		Direction: model.DirectionOutbound,
		Status:    status,
		Content:   params.Content.Summary(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("to", params.To).Msg("failed to persist outbound message")
	}

	if sendErr != nil {
		return nil, sendErr
	}
	return record, nil
}

// SendBulk sends sequentially with a fixed gap between items so a batch
// cannot burst through the protocol connection. Failures do not stop the
// batch; each item carries its own result.
func (s *MessageService) SendBulk(ctx context.Context, tenantID, sessionID string, items []BulkSendItem) []BulkSendResult {
	results := make([]BulkSendResult, 0, len(items))
	for i, item := range items {
		if i > 0 {
			s.sleep(config.BulkSendDelay)
		}
		if ctx.Err() != nil {
			results = append(results, BulkSendResult{To: item.To, Error: ctx.Err().Error()})
			continue
		}

		record, err := s.Send(ctx, tenantID, SendMessageParams{
			SessionID: sessionID,
			To:        item.To,
			Content:   item.Content,
		})
		result := BulkSendResult{To: item.To}
		switch {
		case err != nil:
			result.Error = err.Error()
		case record != nil:
			result.MessageID = record.MessageID
		}
		results = append(results, result)
	}
	return results
}

func (s *MessageService) List(ctx context.Context, params model.ListMessagesParams) ([]model.Message, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 50
	}
	return s.messageRepo.List(ctx, params)
}

func (s *MessageService) Get(ctx context.Context, tenantID, id string) (*model.Message, error) {
	msg, err := s.messageRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil || msg.TenantID != tenantID {
		return nil, errors.NotFound("message")
	}
	return msg, nil
}

func (s *MessageService) Count(ctx context.Context, tenantID string) (int, error) {
	return s.messageRepo.CountByTenantID(ctx, tenantID)
}

func outboundType(kind protocol.MessageKind) model.MessageType {
	switch kind {
	case protocol.KindImage:
		return model.MessageTypeImage
	case protocol.KindVideo:
		return model.MessageTypeVideo
	case protocol.KindAudio:
		return model.MessageTypeAudio
	case protocol.KindDocument:
		return model.MessageTypeDocument
	case protocol.KindSticker:
		return model.MessageTypeSticker
	case protocol.KindLocation:
		return model.MessageTypeLocation
	case protocol.KindContact:
		return model.MessageTypeContact
	default:
		return model.MessageTypeText
	}
}
