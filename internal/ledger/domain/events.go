package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventSaleCreated EventType = "sale.created"
	EventSaleUpdated EventType = "sale.updated"
	EventSaleDeleted EventType = "sale.deleted"
)

var (
	ErrInvalidEvent     = errors.New("invalid_ledger_event")
	ErrUnknownEventType = errors.New("unknown_ledger_event_type")
)

// SaleEvent is the change notification emitted after a ledger write. Updates
// carry the prior seller, date and budget so both affected pairs can be
// recomputed.
type SaleEvent struct {
	Type             EventType     `json:"type"`
	SaleID           snowflake.ID  `json:"sale_id"`
	SellerID         snowflake.ID  `json:"seller_id"`
	BudgetID         *snowflake.ID `json:"budget_id,omitempty"`
	SaleDate         time.Time     `json:"sale_date"`
	PreviousSellerID *snowflake.ID `json:"previous_seller_id,omitempty"`
	PreviousBudgetID *snowflake.ID `json:"previous_budget_id,omitempty"`
	PreviousSaleDate *time.Time    `json:"previous_sale_date,omitempty"`
}

func (e *SaleEvent) Normalize() {
	e.Type = EventType(strings.ToLower(strings.TrimSpace(string(e.Type))))
	if !e.SaleDate.IsZero() {
		e.SaleDate = e.SaleDate.UTC()
	}
	if e.PreviousSaleDate != nil {
		prev := e.PreviousSaleDate.UTC()
		e.PreviousSaleDate = &prev
	}
}

func (e SaleEvent) Validate() error {
	switch e.Type {
	case EventSaleCreated, EventSaleUpdated, EventSaleDeleted:
	default:
		return ErrUnknownEventType
	}
	if e.SellerID == 0 || e.SaleDate.IsZero() {
		return ErrInvalidEvent
	}
	if e.PreviousSellerID != nil && *e.PreviousSellerID == 0 {
		return ErrInvalidEvent
	}
	return nil
}

// Touch is one (seller, date, budget) combination affected by an event.
type Touch struct {
	SellerID snowflake.ID
	BudgetID *snowflake.ID
	SaleDate time.Time
}

// Touches returns the current side of the event followed by the previous
// side when an update moved the sale.
func (e SaleEvent) Touches() []Touch {
	current := Touch{SellerID: e.SellerID, BudgetID: e.BudgetID, SaleDate: e.SaleDate}
	out := []Touch{current}
	if e.Type != EventSaleUpdated {
		return out
	}

	prev := current
	moved := false
	if e.PreviousSellerID != nil && *e.PreviousSellerID != e.SellerID {
		prev.SellerID = *e.PreviousSellerID
		moved = true
	}
	if e.PreviousSaleDate != nil && !e.PreviousSaleDate.Equal(e.SaleDate) {
		prev.SaleDate = *e.PreviousSaleDate
		moved = true
	}
	if e.PreviousBudgetID != nil && (e.BudgetID == nil || *e.PreviousBudgetID != *e.BudgetID) {
		id := *e.PreviousBudgetID
		prev.BudgetID = &id
		moved = true
	}
	if moved {
		out = append(out, prev)
	}
	return out
}
