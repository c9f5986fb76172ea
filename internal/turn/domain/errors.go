package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidTurns      = errors.New("invalid_turns")
	ErrCapacityExceeded  = errors.New("turn_capacity_exceeded")
	ErrInvalidAssignment = errors.New("invalid_turn_assignment")
)

// CapacityError reports a rejected assignment together with what is still available.
type CapacityError struct {
	BudgetID  snowflake.ID
	UserID    snowflake.ID
	Requested int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("budget %s: requested %d turns for user %s, %d available",
		e.BudgetID, e.Requested, e.UserID, e.Available)
}

func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
