package booking

import (
	"fmt"

	"terrace-booking/internal/models"
)

// Layout describes how the fixed catalog is generated: every row repeats
// Pattern, and ids are numbered per table type across rows.
type Layout struct {
	Location      string
	Rows          []string
	Pattern       []models.TableType
	BigCapacity   int
	SmallCapacity int
	BigPrefix     string
	SmallPrefix   string
}

// DefaultLayout is the lower terrace: two rows of big, big, small repeated,
// closing on a big table. 26 tables in total.
var DefaultLayout = Layout{
	Location: "lower",
	Rows:     []string{"row1", "row2"},
	Pattern: []models.TableType{
		models.TableBig, models.TableBig, models.TableSmall,
		models.TableBig, models.TableBig, models.TableSmall,
		models.TableBig, models.TableBig, models.TableSmall,
		models.TableBig, models.TableBig, models.TableSmall,
		models.TableBig,
	},
	BigCapacity:   4,
	SmallCapacity: 2,
	BigPrefix:     "L",
	SmallPrefix:   "LS",
}

// Generate builds the catalog with every table free.
func (l Layout) Generate() []models.Table {
	tables := make([]models.Table, 0, len(l.Rows)*len(l.Pattern))
	bigCounter, smallCounter := 0, 0
	for _, row := range l.Rows {
		for _, kind := range l.Pattern {
			t := models.Table{
				Location: l.Location,
				Row:      row,
				Type:     kind,
				Status:   models.TableFree,
			}
			if kind == models.TableSmall {
				smallCounter++
				t.ID = fmt.Sprintf("%s%d", l.SmallPrefix, smallCounter)
				t.Capacity = l.SmallCapacity
			} else {
				bigCounter++
				t.ID = fmt.Sprintf("%s%d", l.BigPrefix, bigCounter)
				t.Capacity = l.BigCapacity
			}
			tables = append(tables, t)
		}
	}
	return tables
}

func DefaultCatalog() []models.Table {
	return DefaultLayout.Generate()
}

// Initialize keeps an existing catalog untouched and only generates one when
// none exists yet.
func Initialize(existing []models.Table, seed func() []models.Table) []models.Table {
	if len(existing) > 0 {
		return existing
	}
	if seed == nil {
		seed = DefaultCatalog
	}
	return seed()
}

// Bootstrap is the snapshot a store persists on its very first load.
func Bootstrap(seed func() []models.Table) models.Snapshot {
	return models.Snapshot{
		Tables:   Initialize(nil, seed),
		Bookings: []models.Booking{},
	}
}
