// Outbound event payloads sent to the automation endpoint.
//
// The event-kind set is closed: approved_sale, pending_pix, pix_timeout and
// first_reply. Payload shape is stable so downstream flows can route on
// event_type without sniffing optional fields.
package domain

import "time"

// Event kinds dispatched downstream.
const (
	EventApprovedSale = "approved_sale"
	EventPendingPix   = "pending_pix"
	EventPixTimeout   = "pix_timeout"
	EventFirstReply   = "first_reply"
)

// CustomerBlock identifies the customer inside an outbound event.
type CustomerBlock struct {
	FirstName string `json:"first_name"`
	Phone     string `json:"phone"`
	FullName  string `json:"full_name,omitempty"`
}

// OrderBlock carries order details inside an outbound event. QRCode is set
// for pending/timeout events; BilletURL mirrors it on first-reply events.
type OrderBlock struct {
	Code      string `json:"code"`
	Amount    string `json:"amount,omitempty"`
	QRCode    string `json:"qr_code,omitempty"`
	BilletURL string `json:"billet_url,omitempty"`
}

// ReplyBlock carries the first customer reply. Number is always 1: only the
// first reply of a conversation lifecycle is ever dispatched.
type ReplyBlock struct {
	Number    int       `json:"number"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundEvent is the JSON body POSTed to the automation endpoint.
type OutboundEvent struct {
	EventType   string        `json:"event_type"`
	Product     string        `json:"product"`
	Instance    string        `json:"instance"`
	OriginEvent string        `json:"origin_event"`
	Customer    CustomerBlock `json:"customer"`
	Order       OrderBlock    `json:"order"`
	Reply       *ReplyBlock   `json:"reply,omitempty"`
	Timeout     bool          `json:"timeout,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}
