package models

type BookingRequest struct {
	Tables    []string `json:"tables"`
	People    int      `json:"people"`
	Name      string   `json:"name"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Date      string   `json:"date,omitempty"`
}

type Booking struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Tables    []string `json:"tables"`
	People    int      `json:"people"`
	Name      string   `json:"name"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

func (b Booking) Clone() Booking {
	b.Tables = append([]string(nil), b.Tables...)
	return b
}

// Snapshot is the whole persisted terrace state: the catalog in catalog order
// and the ledger in insertion order.
type Snapshot struct {
	Tables   []Table   `json:"tables"`
	Bookings []Booking `json:"bookings"`
}

// Clone returns a deep copy with non-nil slices so it always encodes as
// arrays rather than null.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Tables:   make([]Table, 0, len(s.Tables)),
		Bookings: make([]Booking, 0, len(s.Bookings)),
	}
	for _, t := range s.Tables {
		if t.BookingID != nil {
			id := *t.BookingID
			t.BookingID = &id
		}
		out.Tables = append(out.Tables, t)
	}
	for _, b := range s.Bookings {
		out.Bookings = append(out.Bookings, b.Clone())
	}
	return out
}
