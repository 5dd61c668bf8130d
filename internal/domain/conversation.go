package domain

import "time"

// MessageKind classifies the most recent inbound message of a conversation.
type MessageKind string

const (
	KindPlainText    MessageKind = "plain_text"
	KindImageOnly    MessageKind = "image_only"
	KindInquiry      MessageKind = "inquiry"
	KindRichText     MessageKind = "rich_text"
	KindFile         MessageKind = "file"
	KindBusinessCard MessageKind = "business_card"
	KindUnknown      MessageKind = "unknown"
)

// Message type codes carried in the conversation container's metadata
// attribute. The mapping to kinds lives in the classifier's dispatch table.
const (
	CodePlainText    = 1
	CodeImage        = 60
	CodeImageAlt     = 2000
	CodeInquiry      = 50
	CodeRichText     = 63
	CodeFile         = 61
	CodeBusinessCard = 57
)

// Conversation is an ephemeral reference to one inbox entry on the current
// page render. It is valid only until the next navigation or refresh.
type Conversation struct {
	Badge        Element // the unread indicator element (click target)
	Container    Element // enclosing conversation container
	Recipient    string  // may be "" when the name attribute is missing
	LastActivity time.Time
	TimeParsed   bool // false when the activity time could not be parsed
	HasLabel     bool
	IsInquiry    bool
}

// Payload is the extracted content of the most recent inbound message.
// Kind == KindBusinessCard implies Text == "" and ImageURL == "".
type Payload struct {
	Text     string
	ImageURL string
	Kind     MessageKind
}

// Empty reports whether the payload carries no usable content.
func (p Payload) Empty() bool {
	return p.Text == "" && p.ImageURL == ""
}

// DefaultPayload is substituted when extraction fails entirely, so reply
// generation never stalls on a broken render.
func DefaultPayload() Payload {
	return Payload{Text: "New message", Kind: KindUnknown}
}
