package models

type TableStatus string

const (
	TableFree   TableStatus = "free"
	TableBooked TableStatus = "booked"
)

type TableType string

const (
	TableBig   TableType = "big"
	TableSmall TableType = "small"
)

// Table is one seating unit of the terrace catalog. Only Status and BookingID
// ever change after the catalog is generated.
type Table struct {
	ID        string      `json:"id"`
	Capacity  int         `json:"capacity"`
	Location  string      `json:"location"`
	Row       string      `json:"row"`
	Type      TableType   `json:"type"`
	Status    TableStatus `json:"status"`
	BookingID *string     `json:"bookingId"`
}

// TableView is a table joined with the booking that currently holds it.
type TableView struct {
	Table
	Booking *Booking `json:"booking"`
}

func (t Table) IsBooked() bool {
	return t.Status == TableBooked
}

// HeldBy reports the id of the owning booking, or "" for a free table.
func (t Table) HeldBy() string {
	if t.BookingID == nil {
		return ""
	}
	return *t.BookingID
}
