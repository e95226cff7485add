// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package models

import (
	"net/url"
	"strconv"
)

// Filter types. Each serializes to the gateway's query parameters via
// Values(), and to a cache fingerprint via its JSON encoding (see
// cache.Fingerprint). Zero-valued fields are omitted from both so that an
// empty filter and an absent filter address the same cached collection.

// TicketFilters narrows a ticket list query.
type TicketFilters struct {
	Status     TicketStatus   `json:"status,omitempty"`
	Priority   TicketPriority `json:"priority,omitempty"`
	CategoryID int64          `json:"category_id,omitempty"`
	AssigneeID int64          `json:"assignee_id,omitempty"`
	CreatorID  int64          `json:"creator_id,omitempty"`
	Room       string         `json:"room,omitempty"`
	Search     string         `json:"search,omitempty"`
}

// Values encodes the filters as gateway query parameters.
func (f TicketFilters) Values() url.Values {
	v := url.Values{}
	setStr(v, "status", string(f.Status))
	setStr(v, "priority", string(f.Priority))
	setInt(v, "category_id", f.CategoryID)
	setInt(v, "assignee_id", f.AssigneeID)
	setInt(v, "creator_id", f.CreatorID)
	setStr(v, "room", f.Room)
	setStr(v, "search", f.Search)
	return v
}

// EquipmentFilters narrows an equipment list query.
type EquipmentFilters struct {
	Status     EquipmentStatus `json:"status,omitempty"`
	CategoryID int64           `json:"category_id,omitempty"`
	Location   string          `json:"location,omitempty"`
	Search     string          `json:"search,omitempty"`
}

// Values encodes the filters as gateway query parameters.
func (f EquipmentFilters) Values() url.Values {
	v := url.Values{}
	setStr(v, "status", string(f.Status))
	setInt(v, "category_id", f.CategoryID)
	setStr(v, "location", f.Location)
	setStr(v, "search", f.Search)
	return v
}

// UserFilters narrows a user list query.
type UserFilters struct {
	Role   Role   `json:"role,omitempty"`
	Active *bool  `json:"active,omitempty"`
	Search string `json:"search,omitempty"`
}

// Values encodes the filters as gateway query parameters.
func (f UserFilters) Values() url.Values {
	v := url.Values{}
	setStr(v, "role", string(f.Role))
	if f.Active != nil {
		v.Set("active", strconv.FormatBool(*f.Active))
	}
	setStr(v, "search", f.Search)
	return v
}

// AuditFilters narrows the audit log, both the paginated snapshot query and
// the client-side matching of push events. Only Role is ever forwarded to
// the push channel; all other dimensions are enforced client-side.
type AuditFilters struct {
	ActionType ActionType `json:"action_type,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   int64      `json:"entity_id,omitempty"`
	UserID     int64      `json:"user_id,omitempty"`
	Role       Role       `json:"role,omitempty"`
}

// Values encodes the filters as gateway query parameters.
func (f AuditFilters) Values() url.Values {
	v := url.Values{}
	setStr(v, "action_type", string(f.ActionType))
	setStr(v, "entity_type", f.EntityType)
	setInt(v, "entity_id", f.EntityID)
	setInt(v, "user_id", f.UserID)
	setStr(v, "role", string(f.Role))
	return v
}

// Matches reports whether a push-delivered entry passes the client-side
// filter dimensions. This is best-effort: the entry arrives out-of-band from
// the paginated query, so only fields present on the entry itself can be
// checked (Role in particular cannot be, and is enforced server-side).
func (f AuditFilters) Matches(e AuditLogEntry) bool {
	if f.ActionType != "" && e.ActionType != f.ActionType {
		return false
	}
	if f.EntityType != "" && (e.EntityType == nil || *e.EntityType != f.EntityType) {
		return false
	}
	if f.EntityID != 0 && (e.EntityID == nil || *e.EntityID != f.EntityID) {
		return false
	}
	if f.UserID != 0 && (e.UserID == nil || *e.UserID != f.UserID) {
		return false
	}
	return true
}

func setStr(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setInt(v url.Values, key string, val int64) {
	if val != 0 {
		v.Set(key, strconv.FormatInt(val, 10))
	}
}
