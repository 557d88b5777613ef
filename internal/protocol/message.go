package protocol

import (
	"fmt"
	"time"
)

// MessageKind tags the content union of an incoming message. Payload
// shapes the adapter does not recognize map to KindUnknown rather than
// falling through to text.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindVideo    MessageKind = "video"
	KindAudio    MessageKind = "audio"
	KindDocument MessageKind = "document"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindContact  MessageKind = "contact"
	KindReaction MessageKind = "reaction"
	KindPoll     MessageKind = "poll"
	KindUnknown  MessageKind = "unknown"
)

type IncomingMessage struct {
	MessageID string
	ChatID    string
	SenderID  string
	PushName  string
	FromMe    bool
	IsGroup   bool
	Timestamp time.Time
	QuotedID  string
	Content   Content

	// Raw is the adapter-private handle used by DownloadMedia.
	Raw any
}

// Content is the tagged union over the known message kinds. Exactly the
// fields matching Kind are populated.
type Content struct {
	Kind MessageKind

	Text     string
	Media    *MediaRef
	Location *Location
	Contact  *ContactCard
	Reaction *Reaction
	Poll     *Poll
}

type MediaRef struct {
	MimeType string
	Filename string
	Size     int64
	Caption  string
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

type ContactCard struct {
	DisplayName string `json:"displayName"`
	VCard       string `json:"vcard,omitempty"`
}

type Reaction struct {
	TargetMessageID string
	Emoji           string
}

type Poll struct {
	Question string
	Options  []string
}

// Summary extracts the human-readable content line persisted with the
// message record.
func (c Content) Summary() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindImage, KindVideo, KindDocument:
		if c.Media != nil && c.Media.Caption != "" {
			return c.Media.Caption
		}
		return ""
	case KindLocation:
		if c.Location == nil {
			return ""
		}
		return fmt.Sprintf("Location: %s (%f, %f)", c.Location.Name, c.Location.Latitude, c.Location.Longitude)
	case KindContact:
		if c.Contact == nil {
			return ""
		}
		return fmt.Sprintf("Contact: %s", c.Contact.DisplayName)
	case KindReaction:
		if c.Reaction == nil {
			return ""
		}
		return c.Reaction.Emoji
	case KindPoll:
		if c.Poll == nil {
			return ""
		}
		return c.Poll.Question
	default:
		return ""
	}
}

// HasMedia reports whether the message carries a downloadable payload.
func (c Content) HasMedia() bool {
	switch c.Kind {
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker:
		return c.Media != nil
	}
	return false
}

// OutgoingContent describes a message to send. Kind selects which field is
// read, mirroring the incoming union.
type OutgoingContent struct {
	Kind MessageKind `json:"kind"`

	Text     string         `json:"text,omitempty"`
	Media    *OutgoingMedia `json:"media,omitempty"`
	Location *Location      `json:"location,omitempty"`
	Contact  *ContactCard   `json:"contact,omitempty"`
}

type OutgoingMedia struct {
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Summary is the content line persisted with an outbound message record.
func (c OutgoingContent) Summary() string {
	switch c.Kind {
	case KindText:
		return c.Text
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker:
		if c.Media != nil {
			return c.Media.Caption
		}
		return ""
	case KindLocation:
		if c.Location != nil {
			return c.Location.Name
		}
		return ""
	case KindContact:
		if c.Contact != nil {
			return c.Contact.DisplayName
		}
		return ""
	default:
		return ""
	}
}
