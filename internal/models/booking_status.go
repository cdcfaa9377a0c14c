package models

import (
	"fmt"
	"strings"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCompleted, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCompleted: {},
	BookingCancelled: {},
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s.Valid() && len(bookingTransitions[s]) == 0
}

// SourcesFor lists the statuses that may move to next.
func SourcesFor(next BookingStatus) []BookingStatus {
	var out []BookingStatus
	for _, from := range []BookingStatus{BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled} {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid booking status %q", s)
	}
	return status, nil
}
