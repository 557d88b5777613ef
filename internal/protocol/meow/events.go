package meow

import (
	"context"
	"strconv"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/protocol"
)

// Receipt codes surfaced on MessageDelta. Anything else is ignored by
// consumers.
const (
	receiptDelivered = 3
	receiptRead      = 4
)

func (s *socket) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		s.onConnected()
	case *events.PairSuccess:
		s.onPairSuccess(e)
	case *events.Disconnected:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.ReasonConnectionClosed})
	case *events.LoggedOut:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.ReasonLoggedOut})
	case *events.StreamReplaced:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.ReasonConnectionReplaced})
	case *events.StreamError:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: streamErrorReason(e.Code)})
	case *events.ManualLoginReconnect:
		// Fired in place of whatsmeow's internal login redial; the
		// restart-required close feeds the supervisor's redial path.
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.ReasonRestartRequired})
	case *events.ConnectFailure:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.CloseReason(int(e.Reason))})
	case *events.TemporaryBan:
		s.emit(protocol.ConnectionUpdate{State: protocol.StateClosed, Reason: protocol.ReasonBadSession})
	case *events.Message:
		s.emit(protocol.MessagesUpsert{Messages: []protocol.IncomingMessage{mapIncoming(e)}})
	case *events.Receipt:
		if upd, ok := mapReceipt(e); ok {
			s.emit(upd)
		}
	case *events.Presence:
		s.emit(protocol.PresenceUpdate{
			ProtocolID:  e.From.String(),
			LastSeen:    e.LastSeen,
			Unavailable: e.Unavailable,
		})
	case *events.PushName:
		s.emit(protocol.ContactsUpsert{Contacts: []protocol.ContactInfo{{
			ProtocolID: e.JID.String(),
			PushName:   e.NewPushName,
		}}})
	case *events.JoinedGroup:
		s.emit(protocol.GroupsUpsert{Groups: []protocol.GroupInfo{{
			ProtocolID: e.JID.String(),
			Subject:    e.GroupName.Name,
		}}})
	}
}

func (s *socket) onConnected() {
	profile := &protocol.Profile{}
	if id := s.client.Store.ID; id != nil {
		profile.ID = id.String()
		profile.Number = id.User
	}
	profile.Name = s.client.Store.PushName
	profile.Platform = s.client.Store.Platform

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()

	s.snapshotCredentials()
	s.emit(protocol.ConnectionUpdate{State: protocol.StateOpen})
}

func (s *socket) onPairSuccess(evt *events.PairSuccess) {
	err := s.auth.UpdateCreds(context.Background(), func(c *authstate.Credentials) {
		c.DeviceID = evt.ID.String()
		c.Platform = evt.Platform
		c.Registered = true
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist pairing result")
	}
}

// snapshotCredentials mirrors the resume-critical device material into the
// session's credential record so a fresh process can find the device again.
func (s *socket) snapshotCredentials() {
	device := s.client.Store
	err := s.auth.UpdateCreds(context.Background(), func(c *authstate.Credentials) {
		if device.ID != nil {
			c.DeviceID = device.ID.String()
		}
		c.RegistrationID = device.RegistrationID
		if device.NoiseKey != nil {
			c.NoiseKey = device.NoiseKey.Priv[:]
		}
		if device.IdentityKey != nil {
			c.IdentityKey = device.IdentityKey.Priv[:]
		}
		c.AdvSecret = device.AdvSecretKey
		c.Platform = device.Platform
		c.Registered = true
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to snapshot credentials")
	}
}

func streamErrorReason(code string) protocol.CloseReason {
	n, err := strconv.Atoi(code)
	if err != nil {
		return protocol.ReasonUnknown
	}
	return protocol.CloseReason(n)
}

func mapReceipt(evt *events.Receipt) (protocol.MessagesUpdate, bool) {
	var code int
	switch evt.Type {
	case types.ReceiptTypeDelivered:
		code = receiptDelivered
	case types.ReceiptTypeRead, types.ReceiptTypeReadSelf:
		code = receiptRead
	default:
		return protocol.MessagesUpdate{}, false
	}

	deltas := make([]protocol.MessageDelta, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		deltas = append(deltas, protocol.MessageDelta{
			MessageID:   id,
			ChatID:      evt.Chat.String(),
			ReceiptCode: code,
		})
	}
	return protocol.MessagesUpdate{Deltas: deltas}, true
}

func mapIncoming(evt *events.Message) protocol.IncomingMessage {
	return protocol.IncomingMessage{
		MessageID: evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		SenderID:  evt.Info.Sender.String(),
		PushName:  evt.Info.PushName,
		FromMe:    evt.Info.IsFromMe,
		IsGroup:   evt.Info.IsGroup,
		Timestamp: evt.Info.Timestamp,
		QuotedID:  quotedID(evt.Message),
		Content:   classifyContent(evt.Message),
		Raw:       evt,
	}
}

func quotedID(msg *waE2E.Message) string {
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo().GetStanzaID()
	}
	return ""
}

func classifyContent(msg *waE2E.Message) protocol.Content {
	if msg == nil {
		return protocol.Content{Kind: protocol.KindUnknown}
	}

	switch {
	case msg.GetConversation() != "":
		return protocol.Content{Kind: protocol.KindText, Text: msg.GetConversation()}

	case msg.GetExtendedTextMessage().GetText() != "":
		return protocol.Content{Kind: protocol.KindText, Text: msg.GetExtendedTextMessage().GetText()}

	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return protocol.Content{Kind: protocol.KindImage, Media: &protocol.MediaRef{
			MimeType: m.GetMimetype(),
			Size:     int64(m.GetFileLength()),
			Caption:  m.GetCaption(),
		}}

	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return protocol.Content{Kind: protocol.KindVideo, Media: &protocol.MediaRef{
			MimeType: m.GetMimetype(),
			Size:     int64(m.GetFileLength()),
			Caption:  m.GetCaption(),
		}}

	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return protocol.Content{Kind: protocol.KindAudio, Media: &protocol.MediaRef{
			MimeType: m.GetMimetype(),
			Size:     int64(m.GetFileLength()),
		}}

	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return protocol.Content{Kind: protocol.KindDocument, Media: &protocol.MediaRef{
			MimeType: m.GetMimetype(),
			Filename: m.GetFileName(),
			Size:     int64(m.GetFileLength()),
			Caption:  m.GetCaption(),
		}}

	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return protocol.Content{Kind: protocol.KindSticker, Media: &protocol.MediaRef{
			MimeType: m.GetMimetype(),
			Size:     int64(m.GetFileLength()),
		}}

	case msg.GetLocationMessage() != nil:
		m := msg.GetLocationMessage()
		return protocol.Content{Kind: protocol.KindLocation, Location: &protocol.Location{
			Latitude:  m.GetDegreesLatitude(),
			Longitude: m.GetDegreesLongitude(),
			Name:      m.GetName(),
			Address:   m.GetAddress(),
		}}

	case msg.GetContactMessage() != nil:
		m := msg.GetContactMessage()
		return protocol.Content{Kind: protocol.KindContact, Contact: &protocol.ContactCard{
			DisplayName: m.GetDisplayName(),
			VCard:       m.GetVcard(),
		}}

	case msg.GetReactionMessage() != nil:
		m := msg.GetReactionMessage()
		return protocol.Content{Kind: protocol.KindReaction, Reaction: &protocol.Reaction{
			TargetMessageID: m.GetKey().GetID(),
			Emoji:           m.GetText(),
		}}

	case msg.GetPollCreationMessage() != nil:
		m := msg.GetPollCreationMessage()
		options := make([]string, 0, len(m.GetOptions()))
		for _, opt := range m.GetOptions() {
			options = append(options, opt.GetOptionName())
		}
		return protocol.Content{Kind: protocol.KindPoll, Poll: &protocol.Poll{
			Question: m.GetName(),
			Options:  options,
		}}
	}

	return protocol.Content{Kind: protocol.KindUnknown}
}
