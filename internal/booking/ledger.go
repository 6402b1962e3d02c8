package booking

import (
	"sort"

	"terrace-booking/internal/models"
)

// ledger is the set of active bookings in insertion order.
type ledger struct {
	bookings []models.Booking
}

func newLedger(bookings []models.Booking) *ledger {
	l := &ledger{bookings: make([]models.Booking, 0, len(bookings))}
	for _, b := range bookings {
		l.bookings = append(l.bookings, b.Clone())
	}
	return l
}

func (l *ledger) find(id string) (int, bool) {
	for i, b := range l.bookings {
		if b.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (l *ledger) get(id string) (models.Booking, bool) {
	i, ok := l.find(id)
	if !ok {
		return models.Booking{}, false
	}
	return l.bookings[i], true
}

func (l *ledger) add(b models.Booking) {
	l.bookings = append(l.bookings, b)
}

func (l *ledger) remove(i int) models.Booking {
	b := l.bookings[i]
	l.bookings = append(l.bookings[:i], l.bookings[i+1:]...)
	return b
}

// onDate returns the bookings of one date by start time; an empty date
// returns every booking. Equal start times keep insertion order.
func (l *ledger) onDate(date string) []models.Booking {
	out := make([]models.Booking, 0, len(l.bookings))
	for _, b := range l.bookings {
		if date == "" || b.Date == date {
			out = append(out, b.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return clockOrZero(out[i].StartTime) < clockOrZero(out[j].StartTime)
	})
	return out
}

// expired lists today's bookings whose end time is at or before nowMinutes.
func (l *ledger) expired(today string, nowMinutes int) []models.Booking {
	var out []models.Booking
	for _, b := range l.bookings {
		if b.Date != today {
			continue
		}
		end, ok := ParseClock(b.EndTime)
		if !ok {
			continue
		}
		if end <= nowMinutes {
			out = append(out, b.Clone())
		}
	}
	return out
}

func clockOrZero(s string) int {
	m, _ := ParseClock(s)
	return m
}
