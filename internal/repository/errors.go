package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrSlotTaken is returned when an insert loses the race for an active
// (tutor, start time) slot.
var ErrSlotTaken = errors.New("booking slot already taken")

// ErrDuplicate is returned for any other uniqueness violation.
var ErrDuplicate = errors.New("duplicate record")

const pgUniqueViolation = "23505"

// uniqueViolation inspects a driver error for the given constraint.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
