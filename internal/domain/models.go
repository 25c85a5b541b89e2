// Package domain defines the core data model of the relay: per-customer
// conversation records, sticky instance assignments, pending-order snapshots,
// and the persisted event-history entries surfaced by the status API.
//
// Conversations, assignments and pending orders are process-local and
// volatile; only EventRecord is mapped with GORM for the observability
// surface.
package domain

import "time"

// Delivery status values recorded on EventRecord.
const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryError   = "error"
)

// Conversation is the per-customer correlation record, keyed by the
// normalized phone. Fields are overwritten, not merged, when a new payment
// event arrives for the same key.
type Conversation struct {
	OrderCode    string
	Product      string
	Instance     string
	OriginEvent  string // EventApprovedSale or EventPendingPix
	ReplyCount   int
	Awaiting     bool // true once the system sent a message and no reply landed yet
	CustomerName string
	Amount       string
	QRCode       string
	LastSystemAt time.Time
	CreatedAt    time.Time
}

// Assignment pins a customer key to a sending instance. Once created it is
// returned unchanged until it is swept or the instance fails a liveness probe.
type Assignment struct {
	Instance  string
	CreatedAt time.Time
}

// PendingSnapshot captures everything needed to build the abandonment event
// when a pending-PIX timer fires, frozen at arming time.
type PendingSnapshot struct {
	OrderCode    string
	CustomerKey  string
	Product      string
	Instance     string
	CustomerName string
	Amount       string
	QRCode       string
	CreatedAt    time.Time
}

// EventRecord is one dispatch attempt toward the automation endpoint,
// success or failure. It exists for observability only: the relay never
// reads it back to make a correctness decision.
type EventRecord struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	EventType string     `json:"event_type" gorm:"type:varchar(32);not null;index"`
	Phone     string     `json:"phone"      gorm:"type:varchar(20);not null;index"`
	Instance  string     `json:"instance"   gorm:"type:varchar(32);not null"`
	Status    string     `json:"status"     gorm:"type:varchar(16);not null;index;check:status IN ('pending','sent','error')"`
	Error     string     `json:"error,omitempty" gorm:"type:text"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for EventRecord.
func (EventRecord) TableName() string { return "event_history" }
