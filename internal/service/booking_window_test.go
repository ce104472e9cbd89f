package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestEarliestBookableDateBeforeCutoff(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)

	now := time.Date(2026, 8, 27, 21, 0, 0, 0, loc)
	earliest := window.EarliestBookableDate(now)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, loc), earliest)
}

func TestEarliestBookableDateAtCutoff(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)

	now := time.Date(2026, 8, 27, 22, 0, 0, 0, loc)
	earliest := window.EarliestBookableDate(now)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, loc), earliest)
}

func TestEarliestBookableDateJustBeforeCutoff(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)

	now := time.Date(2026, 8, 27, 21, 59, 59, 0, loc)
	earliest := window.EarliestBookableDate(now)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, loc), earliest)
}

func TestStatusSameDayRejected(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, loc)

	allowed, reason := window.Status(time.Date(2026, 8, 27, 0, 0, 0, 0, loc), now)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Same-day bookings are not available.")
	assert.Contains(t, reason, "August 28, 2026")
}

func TestStatusNextDayClosedAfterCutoff(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)
	now := time.Date(2026, 8, 27, 22, 30, 0, 0, loc)

	allowed, reason := window.Status(time.Date(2026, 8, 28, 0, 0, 0, 0, loc), now)
	assert.False(t, allowed)
	assert.Contains(t, reason, "After 10:00 PM, next-day sessions close.")
	assert.Contains(t, reason, "August 29, 2026")
}

func TestStatusFutureDateAllowed(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)
	now := time.Date(2026, 8, 27, 23, 0, 0, 0, loc)

	allowed, reason := window.Status(time.Date(2026, 8, 29, 0, 0, 0, 0, loc), now)
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestStatusPastDateRejected(t *testing.T) {
	loc := windowLoc(t)
	window := NewBookingWindow(loc, 22)
	now := time.Date(2026, 8, 27, 12, 0, 0, 0, loc)

	allowed, reason := window.Status(time.Date(2026, 8, 20, 0, 0, 0, 0, loc), now)
	assert.False(t, allowed)
	assert.Contains(t, reason, "Same-day bookings are not available.")
}
