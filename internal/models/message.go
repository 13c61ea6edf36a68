package models

import (
	"time"
)

type SenderRole string

const (
	SenderRoleCustomer SenderRole = "customer"
	SenderRoleStaff    SenderRole = "staff"
)

type LogType string

const (
	LogTypeUserMessage LogType = "user_message"
	LogTypeOrderStatus LogType = "order_status"
)

// Message is a single communication-log row. Once created a message is
// immutable except for the Read flag.
type Message struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	CustomerID string     `json:"customer_id"`
	StaffID    *string    `json:"staff_id"`
	LogType    LogType    `json:"log_type"`
	Subject    *string    `json:"subject"`
	Body       string     `json:"message"`
	SenderRole SenderRole `json:"sender_type"`
	Read       bool       `json:"is_read"`
	CreatedAt  time.Time  `json:"created_at"`

	// Provisional marks a client-only optimistic record awaiting server
	// confirmation. Never persisted and never sent over the wire.
	Provisional bool `json:"-"`
}

// MatchesProvisional reports whether a confirmed row corresponds to the
// provisional message m: same sender role and body, created within the
// given window. Best-effort heuristic; rapid identical sends can misfire.
func (m Message) MatchesProvisional(confirmed Message, window time.Duration) bool {
	if !m.Provisional || confirmed.Provisional {
		return false
	}
	if m.SenderRole != confirmed.SenderRole || m.Body != confirmed.Body {
		return false
	}
	delta := confirmed.CreatedAt.Sub(m.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}

// SendMessageParams describes a staff-originated message insert.
type SendMessageParams struct {
	CustomerID string
	StaffID    *string
	Body       string
	LogType    LogType
	Subject    *string
}
