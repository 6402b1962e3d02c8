package models

import "time"

type BookingEventType string

const (
	BookingCreated   BookingEventType = "booking.created"
	BookingCancelled BookingEventType = "booking.cancelled"
	BookingExpired   BookingEventType = "booking.expired"
)

// BookingEvent is the payload published whenever a booking changes the
// occupancy of terrace tables.
type BookingEvent struct {
	Type        BookingEventType `json:"type"`
	BookingID   string           `json:"bookingId"`
	TableIDs    []string         `json:"tableIds"`
	TableStatus TableStatus      `json:"tableStatus"`
	Booking     Booking          `json:"booking"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

// NewBookingEvent derives the resulting table status from the event type.
func NewBookingEvent(eventType BookingEventType, booking Booking, at time.Time) BookingEvent {
	status := TableFree
	if eventType == BookingCreated {
		status = TableBooked
	}
	return BookingEvent{
		Type:        eventType,
		BookingID:   booking.ID,
		TableIDs:    append([]string(nil), booking.Tables...),
		TableStatus: status,
		Booking:     booking.Clone(),
		OccurredAt:  at.UTC(),
	}
}
