package booking

import (
	"fmt"
	"slices"

	"terrace-booking/internal/models"
)

// state is one consistent view of registry and ledger. Writers build a fresh
// state from the store, mutate it, and only publish it after a successful save.
type state struct {
	registry *registry
	ledger   *ledger
}

func newState(snap models.Snapshot) (*state, error) {
	if err := CheckInvariant(snap); err != nil {
		return nil, err
	}
	return &state{
		registry: newRegistry(snap.Tables),
		ledger:   newLedger(snap.Bookings),
	}, nil
}

func (s *state) snapshot() models.Snapshot {
	return models.Snapshot{
		Tables:   s.registry.tables,
		Bookings: s.ledger.bookings,
	}.Clone()
}

// release frees every table of the booking at index i and drops it from the
// ledger.
func (s *state) release(i int) models.Booking {
	b := s.ledger.remove(i)
	for _, id := range b.Tables {
		s.registry.setStatus(id, models.TableFree, nil)
	}
	return b
}

// CheckInvariant verifies that table occupancy and booking table lists agree
// in both directions.
func CheckInvariant(snap models.Snapshot) error {
	tables := make(map[string]models.Table, len(snap.Tables))
	for _, t := range snap.Tables {
		if _, dup := tables[t.ID]; dup {
			return fmt.Errorf("%w: duplicate table %s", ErrCorruptState, t.ID)
		}
		tables[t.ID] = t
	}

	bookings := make(map[string]models.Booking, len(snap.Bookings))
	for _, b := range snap.Bookings {
		if _, dup := bookings[b.ID]; dup {
			return fmt.Errorf("%w: duplicate booking %s", ErrCorruptState, b.ID)
		}
		bookings[b.ID] = b
		if len(b.Tables) == 0 {
			return fmt.Errorf("%w: booking %s holds no tables", ErrCorruptState, b.ID)
		}
		seen := make(map[string]struct{}, len(b.Tables))
		for _, id := range b.Tables {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: booking %s lists table %s twice", ErrCorruptState, b.ID, id)
			}
			seen[id] = struct{}{}
			t, ok := tables[id]
			if !ok {
				return fmt.Errorf("%w: booking %s references unknown table %s", ErrCorruptState, b.ID, id)
			}
			if !t.IsBooked() || t.HeldBy() != b.ID {
				return fmt.Errorf("%w: table %s is not held by booking %s", ErrCorruptState, id, b.ID)
			}
		}
	}

	for _, t := range snap.Tables {
		switch t.Status {
		case models.TableFree:
			if t.BookingID != nil {
				return fmt.Errorf("%w: free table %s references booking %s", ErrCorruptState, t.ID, t.HeldBy())
			}
		case models.TableBooked:
			b, ok := bookings[t.HeldBy()]
			if !ok {
				return fmt.Errorf("%w: booked table %s references missing booking %q", ErrCorruptState, t.ID, t.HeldBy())
			}
			if !slices.Contains(b.Tables, t.ID) {
				return fmt.Errorf("%w: booking %s does not list table %s", ErrCorruptState, b.ID, t.ID)
			}
		default:
			return fmt.Errorf("%w: table %s has unknown status %q", ErrCorruptState, t.ID, t.Status)
		}
	}
	return nil
}
