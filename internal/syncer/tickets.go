// Deskmirror - Helpdesk Client State Synchronization
// Copyright 2026 Deskmirror Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/deskmirror/deskmirror

package syncer

import (
	"context"
	"fmt"

	"github.com/deskmirror/deskmirror/internal/cache"
	"github.com/deskmirror/deskmirror/internal/models"
)

const ticketsEntity = "tickets"

// TicketService mirrors the ticket collection and its lifecycle mutations.
type TicketService struct {
	gw    Gateway
	store *cache.Store
}

// NewTicketService creates a TicketService.
func NewTicketService(gw Gateway, store *cache.Store) *TicketService {
	return &TicketService{gw: gw, store: store}
}

// List returns the tickets matching the filters, served from cache when
// fresh.
func (s *TicketService) List(ctx context.Context, filters models.TicketFilters) ([]models.Ticket, error) {
	key := cache.Fingerprint(ticketsEntity, filters)
	return listThrough[models.Ticket](ctx, s.store, s.gw, ticketsEntity, key, "tickets", filters.Values(), ticketTTL)
}

// Get returns a single ticket by id.
func (s *TicketService) Get(ctx context.Context, id int64) (*models.Ticket, error) {
	key := cache.ItemFingerprint(ticketsEntity, id)
	return itemThrough[models.Ticket](ctx, s.store, s.gw, ticketsEntity, key, fmt.Sprintf("tickets/%d", id), ticketTTL)
}

// Create files a new ticket and invalidates the cached ticket collections.
func (s *TicketService) Create(ctx context.Context, in models.TicketCreateInput) (*models.Ticket, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var created models.Ticket
	if err := s.gw.Post(ctx, "tickets", in, &created); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &created, nil
}

// Update edits a ticket's editable fields.
func (s *TicketService) Update(ctx context.Context, id int64, in models.TicketUpdateInput) (*models.Ticket, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var updated models.Ticket
	if err := s.gw.Put(ctx, fmt.Sprintf("tickets/%d", id), in, &updated); err != nil {
		return nil, fmt.Errorf("update ticket %d: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// Delete removes a ticket. A ticket that is already gone counts as success.
func (s *TicketService) Delete(ctx context.Context, id int64) error {
	if err := deleteIdempotent(ctx, s.gw, ticketsEntity, fmt.Sprintf("tickets/%d", id)); err != nil {
		return err
	}
	invalidateEntity(s.store, ticketsEntity)
	return nil
}

// Assign takes the ticket for the calling agent. The gateway resolves the
// assignee from the bearer credential and moves the ticket to in_progress.
func (s *TicketService) Assign(ctx context.Context, id int64) (*models.Ticket, error) {
	var updated models.Ticket
	if err := s.gw.Post(ctx, fmt.Sprintf("tickets/%d/assign", id), nil, &updated); err != nil {
		return nil, fmt.Errorf("assign ticket %d: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// AssignTo assigns the ticket to a specific agent.
func (s *TicketService) AssignTo(ctx context.Context, id, agentID int64) (*models.Ticket, error) {
	var updated models.Ticket
	if err := s.gw.Post(ctx, fmt.Sprintf("tickets/%d/assign/%d", id, agentID), nil, &updated); err != nil {
		return nil, fmt.Errorf("assign ticket %d to %d: %w", id, agentID, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// SetStatus moves the ticket to the given lifecycle state.
func (s *TicketService) SetStatus(ctx context.Context, id int64, status models.TicketStatus) (*models.Ticket, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid ticket status %q", status)
	}
	var updated models.Ticket
	if err := s.gw.Put(ctx, fmt.Sprintf("tickets/%d/status/%s", id, status), nil, &updated); err != nil {
		return nil, fmt.Errorf("set ticket %d status: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// Close closes the ticket without a final note.
func (s *TicketService) Close(ctx context.Context, id int64) (*models.Ticket, error) {
	var updated models.Ticket
	if err := s.gw.Post(ctx, fmt.Sprintf("tickets/%d/close", id), nil, &updated); err != nil {
		return nil, fmt.Errorf("close ticket %d: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// CloseWithMessage closes the ticket and attaches a final note in the same
// gateway operation.
func (s *TicketService) CloseWithMessage(ctx context.Context, id int64, body string) (*models.Ticket, error) {
	in := models.MessageInput{Body: body}
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var updated models.Ticket
	if err := s.gw.Post(ctx, fmt.Sprintf("tickets/%d/close-with-message", id), in, &updated); err != nil {
		return nil, fmt.Errorf("close ticket %d: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &updated, nil
}

// Messages returns the ticket's message thread, cached under the tickets
// entity so ticket invalidation covers it.
func (s *TicketService) Messages(ctx context.Context, id int64) ([]models.TicketMessage, error) {
	key := fmt.Sprintf("%s:messages:%d", ticketsEntity, id)
	return listThrough[models.TicketMessage](ctx, s.store, s.gw, ticketsEntity, key, fmt.Sprintf("tickets/%d/messages", id), nil, ticketTTL)
}

// AddMessage appends a message to the ticket's thread.
func (s *TicketService) AddMessage(ctx context.Context, id int64, in models.MessageInput) (*models.TicketMessage, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	var created models.TicketMessage
	if err := s.gw.Post(ctx, fmt.Sprintf("tickets/%d/messages", id), in, &created); err != nil {
		return nil, fmt.Errorf("add message to ticket %d: %w", id, err)
	}
	invalidateEntity(s.store, ticketsEntity)
	return &created, nil
}
