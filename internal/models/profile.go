package models

import (
	"strings"
	"time"
)

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleStaff    UserRole = "staff"
	RoleDriver   UserRole = "driver"
	RoleCustomer UserRole = "customer"
)

type Profile struct {
	ID        string    `json:"id"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins the non-empty name parts, falling back to "Customer".
func (p Profile) FullName() string {
	parts := make([]string, 0, 2)
	if p.FirstName != nil && *p.FirstName != "" {
		parts = append(parts, *p.FirstName)
	}
	if p.LastName != nil && *p.LastName != "" {
		parts = append(parts, *p.LastName)
	}
	if len(parts) == 0 {
		return "Customer"
	}
	return strings.Join(parts, " ")
}

// Conversation is a customer profile joined with chat state, as shown in
// the conversation list.
type Conversation struct {
	Profile
	LastMessage *Message `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}

// CustomerStats aggregates a customer's order history.
type CustomerStats struct {
	TotalOrders   int        `json:"total_orders"`
	TotalSpent    float64    `json:"total_spent"`
	ActiveOrders  int        `json:"active_orders"`
	LastOrderDate *time.Time `json:"last_order_date"`
}

// CustomerFilter narrows a customer list query.
type CustomerFilter struct {
	Search string
}
