package meow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/wagate/gateway-server-go/internal/authstate"
	"github.com/wagate/gateway-server-go/internal/config"
	"github.com/wagate/gateway-server-go/internal/errors"
	"github.com/wagate/gateway-server-go/internal/protocol"
)

const eventBuffer = 128

type socket struct {
	client *whatsmeow.Client
	auth   *authstate.Bound
	logger zerolog.Logger

	events chan protocol.Event
	done   chan struct{}

	// emitMu orders emit against teardown: whatsmeow callbacks keep
	// firing during Disconnect, and a send may never race the close.
	emitMu sync.Mutex
	closed bool

	mu      sync.RWMutex
	profile *protocol.Profile
}

func newSocket(client *whatsmeow.Client, auth *authstate.Bound, logger zerolog.Logger) *socket {
	s := &socket{
		client: client,
		auth:   auth,
		logger: logger,
		events: make(chan protocol.Event, eventBuffer),
		done:   make(chan struct{}),
	}
	client.AddEventHandler(s.handleEvent)
	return s
}

func (s *socket) Connect(ctx context.Context) error {
	if s.client.Store.ID == nil {
		// Unpaired device: the QR channel must be claimed before the
		// websocket opens or whatsmeow falls back to raw QR events.
		// The channel outlives the caller's context: QR codes keep
		// rotating until the pairing window expires or the socket is
		// torn down.
		qrCtx, qrCancel := context.WithTimeout(context.Background(), config.SocketConnectTimeout)
		go func() {
			<-s.done
			qrCancel()
		}()
		qrChan, err := s.client.GetQRChannel(qrCtx)
		if err != nil {
			qrCancel()
			return fmt.Errorf("get qr channel: %w", err)
		}
		go s.forwardQR(qrChan)
	}

	if err := s.client.Connect(); err != nil {
		return errors.External("protocol connect", err)
	}
	return nil
}

func (s *socket) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			s.emit(protocol.ConnectionUpdate{
				State:       protocol.StateConnecting,
				QRChallenge: item.Code,
			})
		case whatsmeow.QRChannelEventError:
			s.emit(protocol.ConnectionUpdate{
				State:  protocol.StateClosed,
				Reason: protocol.ReasonUnknown,
				Err:    item.Error,
			})
		default:
			// success / timeout terminate the channel; the outcome
			// arrives as Connected or Disconnected.
		}
	}
}

func (s *socket) SendMessage(ctx context.Context, to string, content protocol.OutgoingContent) (protocol.Receipt, error) {
	if !s.client.IsConnected() {
		return protocol.Receipt{}, errors.NotConnected(s.auth.SessionID())
	}

	recipient, err := parseRecipient(to)
	if err != nil {
		return protocol.Receipt{}, err
	}

	msg, err := s.buildMessage(ctx, content)
	if err != nil {
		return protocol.Receipt{}, err
	}

	resp, err := s.client.SendMessage(ctx, recipient, msg)
	if err != nil {
		return protocol.Receipt{}, errors.SendFailed(err)
	}
	return protocol.Receipt{MessageID: resp.ID}, nil
}

func (s *socket) buildMessage(ctx context.Context, content protocol.OutgoingContent) (*waE2E.Message, error) {
	switch content.Kind {
	case protocol.KindText:
		return &waE2E.Message{Conversation: proto.String(content.Text)}, nil

	case protocol.KindImage, protocol.KindVideo, protocol.KindAudio, protocol.KindDocument, protocol.KindSticker:
		if content.Media == nil {
			return nil, errors.MissingRequired("media")
		}
		return s.buildMediaMessage(ctx, content.Kind, content.Media)

	case protocol.KindLocation:
		if content.Location == nil {
			return nil, errors.MissingRequired("location")
		}
		return &waE2E.Message{LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(content.Location.Latitude),
			DegreesLongitude: proto.Float64(content.Location.Longitude),
			Name:             proto.String(content.Location.Name),
			Address:          proto.String(content.Location.Address),
		}}, nil

	case protocol.KindContact:
		if content.Contact == nil {
			return nil, errors.MissingRequired("contact")
		}
		return &waE2E.Message{ContactMessage: &waE2E.ContactMessage{
			DisplayName: proto.String(content.Contact.DisplayName),
			Vcard:       proto.String(content.Contact.VCard),
		}}, nil

	default:
		return nil, errors.UnsupportedMessageType(string(content.Kind))
	}
}

func (s *socket) buildMediaMessage(ctx context.Context, kind protocol.MessageKind, media *protocol.OutgoingMedia) (*waE2E.Message, error) {
	mediaType := map[protocol.MessageKind]whatsmeow.MediaType{
		protocol.KindImage:    whatsmeow.MediaImage,
		protocol.KindVideo:    whatsmeow.MediaVideo,
		protocol.KindAudio:    whatsmeow.MediaAudio,
		protocol.KindDocument: whatsmeow.MediaDocument,
		protocol.KindSticker:  whatsmeow.MediaImage,
	}[kind]

	up, err := s.client.Upload(ctx, media.Data, mediaType)
	if err != nil {
		return nil, errors.SendFailed(err)
	}

	length := uint64(len(media.Data))

	switch kind {
	case protocol.KindImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(length),
			Caption:       proto.String(media.Caption),
		}}, nil
	case protocol.KindVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(length),
			Caption:       proto.String(media.Caption),
		}}, nil
	case protocol.KindAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(length),
		}}, nil
	case protocol.KindDocument:
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(length),
			FileName:      proto.String(media.Filename),
			Caption:       proto.String(media.Caption),
		}}, nil
	default:
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(media.MimeType),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(length),
		}}, nil
	}
}

func (s *socket) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	code, err := s.client.PairPhone(ctx, phoneNumber, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", errors.PairingCodeError(err)
	}
	return code, nil
}

func (s *socket) Logout(ctx context.Context) error {
	if err := s.client.Logout(ctx); err != nil {
		return errors.External("protocol logout", err)
	}
	return nil
}

func (s *socket) Disconnect() {
	s.client.Disconnect()
	s.teardown()
}

// teardown closes the event channel exactly once, under the emit mutex,
// so no late callback can send on a closed channel.
func (s *socket) teardown() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.events)
}

func (s *socket) IsConnected() bool {
	return s.client.IsConnected()
}

func (s *socket) Profile() *protocol.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *socket) DownloadMedia(ctx context.Context, msg *protocol.IncomingMessage) ([]byte, error) {
	raw, ok := msg.Raw.(*events.Message)
	if !ok || raw == nil {
		return nil, errors.ValidationError("message has no downloadable payload")
	}
	part := downloadablePart(raw.Message)
	if part == nil {
		return nil, errors.ValidationError("message has no downloadable payload")
	}
	data, err := s.client.Download(ctx, part)
	if err != nil {
		return nil, errors.External("media download", err)
	}
	return data, nil
}

func (s *socket) Events() <-chan protocol.Event {
	return s.events
}

// emit delivers an event unless the socket has been torn down. The channel
// is buffered; a stalled consumer drops the event rather than wedging the
// whatsmeow callback goroutine.
func (s *socket) emit(evt protocol.Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- evt:
	default:
		s.logger.Warn().Str("event", fmt.Sprintf("%T", evt)).Msg("Event buffer full, dropping event")
	}
}

func downloadablePart(msg *waE2E.Message) whatsmeow.DownloadableMessage {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage()
	case msg.GetDocumentMessage() != nil:
		return msg.GetDocumentMessage()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage()
	}
	return nil
}

// parseRecipient accepts either a full JID or a bare phone number.
func parseRecipient(to string) (types.JID, error) {
	if strings.Contains(to, "@") {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.EmptyJID, errors.InvalidInput("recipient", to)
		}
		return jid, nil
	}

	var digits strings.Builder
	for _, r := range to {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return types.EmptyJID, errors.InvalidInput("recipient", to)
	}
	return types.NewJID(digits.String(), types.DefaultUserServer), nil
}
