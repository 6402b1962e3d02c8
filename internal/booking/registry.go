package booking

import "terrace-booking/internal/models"

// registry holds the catalog in catalog order. setStatus is the only mutator
// and is called from the ledger operations of this package.
type registry struct {
	tables []models.Table
	index  map[string]int
}

func newRegistry(tables []models.Table) *registry {
	r := &registry{
		tables: make([]models.Table, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for i, t := range tables {
		r.tables[i] = cloneTable(t)
		r.index[t.ID] = i
	}
	return r
}

func (r *registry) get(id string) (models.Table, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.Table{}, false
	}
	return cloneTable(r.tables[i]), true
}

func (r *registry) setStatus(id string, status models.TableStatus, bookingID *string) {
	i, ok := r.index[id]
	if !ok {
		return
	}
	r.tables[i].Status = status
	if bookingID == nil {
		r.tables[i].BookingID = nil
		return
	}
	owner := *bookingID
	r.tables[i].BookingID = &owner
}

// list joins every table with the booking it references.
func (r *registry) list(lookup func(id string) (models.Booking, bool)) []models.TableView {
	views := make([]models.TableView, 0, len(r.tables))
	for _, t := range r.tables {
		view := models.TableView{Table: cloneTable(t)}
		if id := t.HeldBy(); id != "" {
			if b, ok := lookup(id); ok {
				b = b.Clone()
				view.Booking = &b
			}
		}
		views = append(views, view)
	}
	return views
}

func cloneTable(t models.Table) models.Table {
	if t.BookingID != nil {
		id := *t.BookingID
		t.BookingID = &id
	}
	return t
}
