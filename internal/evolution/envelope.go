// Package evolution models the Evolution API surface the relay talks to:
// the inbound message webhook envelope and the instance liveness endpoint.
//
// The gateway delivers message content under a different field depending on
// the message type (plain text, extended text, media caption, button reply,
// list reply, template button). Extraction walks those variants in a fixed
// priority order and reports which one matched, with an explicit "none"
// variant instead of a silent fall-through.
package evolution

import "strings"

// jidSuffix is appended by the gateway to the remote phone identifier.
const jidSuffix = "@s.whatsapp.net"

// Webhook is the envelope POSTed by the gateway for message events.
type Webhook struct {
	Event    string       `json:"event,omitempty"`
	Instance string       `json:"instance,omitempty"`
	Data     *MessageData `json:"data"`
}

// MessageData holds the key (who/direction) and the message content.
type MessageData struct {
	Key     *MessageKey `json:"key"`
	Message *Message    `json:"message"`
}

// MessageKey identifies the counterpart and the message direction.
type MessageKey struct {
	RemoteJid string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id,omitempty"`
}

// Message is the union of content variants the gateway may deliver.
type Message struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *MediaMessage        `json:"imageMessage,omitempty"`
	VideoMessage        *MediaMessage        `json:"videoMessage,omitempty"`
	ButtonsResponse     *ButtonsResponse     `json:"buttonsResponseMessage,omitempty"`
	ListResponse        *ListResponse        `json:"listResponseMessage,omitempty"`
	TemplateButtonReply *TemplateButtonReply `json:"templateButtonReplyMessage,omitempty"`
}

// ExtendedTextMessage carries formatted or quoted text.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// MediaMessage carries an image or video with an optional caption.
type MediaMessage struct {
	Caption string `json:"caption"`
}

// ButtonsResponse is the customer's pick from a button message.
type ButtonsResponse struct {
	SelectedDisplayText string `json:"selectedDisplayText"`
}

// ListResponse is the customer's pick from a list message.
type ListResponse struct {
	SingleSelectReply *SingleSelectReply `json:"singleSelectReply"`
}

// SingleSelectReply holds the selected list row id.
type SingleSelectReply struct {
	SelectedRowID string `json:"selectedRowId"`
}

// TemplateButtonReply is the customer's pick from a template button.
type TemplateButtonReply struct {
	SelectedID string `json:"selectedId"`
}

// Variant names the message content source that produced the extracted text.
type Variant string

// Extraction priority order, highest first. VariantNone means no variant
// carried non-empty content.
const (
	VariantConversation   Variant = "conversation"
	VariantExtendedText   Variant = "extended_text"
	VariantImageCaption   Variant = "image_caption"
	VariantVideoCaption   Variant = "video_caption"
	VariantButtonReply    Variant = "button_reply"
	VariantListReply      Variant = "list_reply"
	VariantTemplateButton Variant = "template_button"
	VariantNone           Variant = "none"
)

// ExtractText returns the message content and the variant it came from,
// trying each variant in the fixed priority order. A nil message or one with
// no non-empty variant yields ("", VariantNone).
func ExtractText(m *Message) (string, Variant) {
	if m == nil {
		return "", VariantNone
	}
	if m.Conversation != "" {
		return m.Conversation, VariantConversation
	}
	if m.ExtendedTextMessage != nil && m.ExtendedTextMessage.Text != "" {
		return m.ExtendedTextMessage.Text, VariantExtendedText
	}
	if m.ImageMessage != nil && m.ImageMessage.Caption != "" {
		return m.ImageMessage.Caption, VariantImageCaption
	}
	if m.VideoMessage != nil && m.VideoMessage.Caption != "" {
		return m.VideoMessage.Caption, VariantVideoCaption
	}
	if m.ButtonsResponse != nil && m.ButtonsResponse.SelectedDisplayText != "" {
		return m.ButtonsResponse.SelectedDisplayText, VariantButtonReply
	}
	if m.ListResponse != nil && m.ListResponse.SingleSelectReply != nil &&
		m.ListResponse.SingleSelectReply.SelectedRowID != "" {
		return m.ListResponse.SingleSelectReply.SelectedRowID, VariantListReply
	}
	if m.TemplateButtonReply != nil && m.TemplateButtonReply.SelectedID != "" {
		return m.TemplateButtonReply.SelectedID, VariantTemplateButton
	}
	return "", VariantNone
}

// RemotePhone strips the gateway JID suffix from a remote identifier,
// returning the bare phone digits portion.
func RemotePhone(remoteJid string) string {
	if i := strings.IndexByte(remoteJid, '@'); i >= 0 {
		return remoteJid[:i]
	}
	return remoteJid
}

// Valid reports whether the webhook carries enough structure to process:
// a data block with a key and a non-empty remote identifier.
func (w *Webhook) Valid() bool {
	return w != nil && w.Data != nil && w.Data.Key != nil && w.Data.Key.RemoteJid != ""
}
