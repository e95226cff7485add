// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

// Package models defines the helpdesk entities as consumed by the
// synchronization layer, the mutation input types with their client-side
// validation tags, and the filter types that address cached collections.
//
// The gateway owns these entities; Deskmirror only holds transient,
// invalidated-on-demand copies. Field names follow the gateway's JSON wire
// format.
package models

import "time"

// TicketStatus is the lifecycle state of a ticket.
// Transitions: new -> in_progress (via assign) -> closed (via close).
type TicketStatus string

const (
	TicketStatusNew        TicketStatus = "new"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusInProgress, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority is the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
)

// Role is a user's permission level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// CanBeAssignee reports whether a user with this role may be assigned
// tickets. Only agents and admins triage tickets.
func (r Role) CanBeAssignee() bool {
	return r == RoleAgent || r == RoleAdmin
}

// EquipmentStatus is the operational state of a piece of equipment.
type EquipmentStatus string

const (
	EquipmentActive         EquipmentStatus = "active"
	EquipmentInactive       EquipmentStatus = "inactive"
	EquipmentRepair         EquipmentStatus = "repair"
	EquipmentDecommissioned EquipmentStatus = "decommissioned"
)

// ActionType classifies an audit log entry.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
	ActionLogin  ActionType = "LOGIN"
	ActionLogout ActionType = "LOGOUT"
)

// Ticket is a support request tracked through new/in_progress/closed states.
type Ticket struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Status      TicketStatus   `json:"status"`
	Priority    TicketPriority `json:"priority"`
	CreatorID   int64          `json:"creator_id"`
	AssigneeID  *int64         `json:"assignee_id,omitempty"`
	CategoryID  *int64         `json:"category_id,omitempty"`
	EquipmentID *int64         `json:"equipment_id,omitempty"`
	Room        string         `json:"room"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TicketMessage is a comment attached to a ticket.
type TicketMessage struct {
	ID        int64     `json:"id"`
	TicketID  int64     `json:"ticket_id"`
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Category groups tickets and equipment. Categories referenced by existing
// tickets or equipment are deactivated rather than removed, so historical
// references stay resolvable.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// Equipment is a physical asset tickets can be filed against.
type Equipment struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	CategoryID      int64           `json:"category_id"`
	Model           string          `json:"model"`
	SerialNumber    string          `json:"serial_number"`
	InventoryNumber string          `json:"inventory_number"`
	Location        string          `json:"location"`
	Status          EquipmentStatus `json:"status"`
	ResponsibleID   *int64          `json:"responsible_id,omitempty"`
	Notes           string          `json:"notes"`
}

// MaintenanceRecord is a service event in an equipment's history.
type MaintenanceRecord struct {
	ID          int64     `json:"id"`
	EquipmentID int64     `json:"equipment_id"`
	Description string    `json:"description"`
	PerformedBy *int64    `json:"performed_by,omitempty"`
	PerformedAt time.Time `json:"performed_at"`
}

// User is an account on the helpdesk.
type User struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	FullName string  `json:"full_name"`
	Role     Role    `json:"role"`
	Active   bool    `json:"active"`
}

// AuditLogEntry records an action taken against the helpdesk. Entries are
// append-only and ordered newest-first in every collection Deskmirror holds.
// A nil UserID means the action was performed by the system itself.
type AuditLogEntry struct {
	ID          int64      `json:"id"`
	UserID      *int64     `json:"user_id,omitempty"`
	ActionType  ActionType `json:"action_type"`
	Description string     `json:"description"`
	EntityType  *string    `json:"entity_type,omitempty"`
	EntityID    *int64     `json:"entity_id,omitempty"`
	IPAddress   string     `json:"ip_address"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AuditLogPage is one page of the paginated audit log snapshot.
type AuditLogPage struct {
	Entries []AuditLogEntry `json:"entries"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
}

// DashboardStatistics summarizes overall helpdesk activity.
type DashboardStatistics struct {
	OpenTickets       int `json:"open_tickets"`
	InProgressTickets int `json:"in_progress_tickets"`
	ClosedTickets     int `json:"closed_tickets"`
	ActiveUsers       int `json:"active_users"`
	EquipmentInRepair int `json:"equipment_in_repair"`
}

// TicketStatistics breaks ticket volume down by dimension.
type TicketStatistics struct {
	ByStatus   map[string]int `json:"by_status"`
	ByPriority map[string]int `json:"by_priority"`
	ByCategory map[string]int `json:"by_category"`
}
