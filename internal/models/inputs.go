// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package models

// Mutation inputs. Validation tags are enforced client-side before a request
// is dispatched, so obviously malformed mutations never reach the gateway.
// Pointer fields on update inputs distinguish "leave unchanged" (nil) from
// "set to zero value".

// TicketCreateInput creates a new ticket.
type TicketCreateInput struct {
	Title       string         `json:"title" validate:"required,min=3,max=200"`
	Description string         `json:"description" validate:"max=5000"`
	Priority    TicketPriority `json:"priority" validate:"required,oneof=low medium high"`
	CategoryID  *int64         `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	EquipmentID *int64         `json:"equipment_id,omitempty" validate:"omitempty,gt=0"`
	Room        string         `json:"room" validate:"max=50"`
}

// TicketUpdateInput edits an existing ticket. Creators may change title,
// description, priority and room; status and assignment go through the
// dedicated assign/close operations.
type TicketUpdateInput struct {
	Title       *string         `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=5000"`
	Priority    *TicketPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high"`
	CategoryID  *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	EquipmentID *int64          `json:"equipment_id,omitempty" validate:"omitempty,gt=0"`
	Room        *string         `json:"room,omitempty" validate:"omitempty,max=50"`
}

// MessageInput adds a message to a ticket, or closes it with a final note.
type MessageInput struct {
	Body string `json:"body" validate:"required,min=1,max=5000"`
}

// CategoryCreateInput creates a category.
type CategoryCreateInput struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// CategoryUpdateInput edits a category.
type CategoryUpdateInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Active      *bool   `json:"active,omitempty"`
}

// EquipmentCreateInput registers a piece of equipment.
type EquipmentCreateInput struct {
	Name            string          `json:"name" validate:"required,min=2,max=200"`
	CategoryID      int64           `json:"category_id" validate:"required,gt=0"`
	Model           string          `json:"model" validate:"max=200"`
	SerialNumber    string          `json:"serial_number" validate:"max=100"`
	InventoryNumber string          `json:"inventory_number" validate:"max=100"`
	Location        string          `json:"location" validate:"max=200"`
	Status          EquipmentStatus `json:"status" validate:"required,oneof=active inactive repair decommissioned"`
	ResponsibleID   *int64          `json:"responsible_id,omitempty" validate:"omitempty,gt=0"`
	Notes           string          `json:"notes" validate:"max=2000"`
}

// EquipmentUpdateInput edits a piece of equipment.
type EquipmentUpdateInput struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	CategoryID      *int64           `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Model           *string          `json:"model,omitempty" validate:"omitempty,max=200"`
	SerialNumber    *string          `json:"serial_number,omitempty" validate:"omitempty,max=100"`
	InventoryNumber *string          `json:"inventory_number,omitempty" validate:"omitempty,max=100"`
	Location        *string          `json:"location,omitempty" validate:"omitempty,max=200"`
	Status          *EquipmentStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive repair decommissioned"`
	ResponsibleID   *int64           `json:"responsible_id,omitempty" validate:"omitempty,gt=0"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// UserCreateInput registers a user account.
type UserCreateInput struct {
	Username string  `json:"username" validate:"required,min=3,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName string  `json:"full_name" validate:"required,min=2,max=200"`
	Role     Role    `json:"role" validate:"required,oneof=user agent admin"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
}

// UserUpdateInput edits a user account.
type UserUpdateInput struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=200"`
	Role     *Role   `json:"role,omitempty" validate:"omitempty,oneof=user agent admin"`
	Active   *bool   `json:"active,omitempty"`
}
