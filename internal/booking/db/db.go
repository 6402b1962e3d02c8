package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/models"
)

// TableRow is one terrace table. Position keeps catalog order stable.
type TableRow struct {
	bun.BaseModel `bun:"table:terrace_tables,alias:tt"`

	ID        string  `bun:"id,pk"`
	Position  int     `bun:"position,notnull"`
	Capacity  int     `bun:"capacity,notnull"`
	Location  string  `bun:"location,notnull"`
	Row       string  `bun:"row_name,notnull"`
	Type      string  `bun:"type,notnull"`
	Status    string  `bun:"status,notnull"`
	BookingID *string `bun:"booking_id"`
}

type BookingRow struct {
	bun.BaseModel `bun:"table:terrace_bookings,alias:tb"`

	ID        string   `bun:"id,pk"`
	Position  int      `bun:"position,notnull"`
	Date      string   `bun:"date,notnull"`
	TableIDs  []string `bun:"table_ids,notnull"`
	People    int      `bun:"people,notnull"`
	Name      string   `bun:"name,notnull"`
	StartTime string   `bun:"start_time,notnull"`
	EndTime   string   `bun:"end_time,notnull"`
}

// DB stores the terrace state in two SQL tables and replaces both in a
// single transaction on every save.
type DB struct {
	Bun  *bun.DB
	Seed func() []models.Table
}

// Open connects to SQLite through sqliteshim. One connection is kept so that
// ":memory:" databases survive between queries.
func Open(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, model := range []interface{}{(*TableRow)(nil), (*BookingRow)(nil)} {
		if _, err := d.Bun.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

func (d *DB) Load(ctx context.Context) (models.Snapshot, error) {
	var tableRows []TableRow
	if err := d.Bun.NewSelect().Model(&tableRows).Order("position ASC").Scan(ctx); err != nil {
		return models.Snapshot{}, fmt.Errorf("select tables: %w", err)
	}
	if len(tableRows) == 0 {
		snap := booking.Bootstrap(d.Seed)
		if err := d.Save(ctx, snap); err != nil {
			return models.Snapshot{}, err
		}
		return snap, nil
	}

	var bookingRows []BookingRow
	if err := d.Bun.NewSelect().Model(&bookingRows).Order("position ASC").Scan(ctx); err != nil {
		return models.Snapshot{}, fmt.Errorf("select bookings: %w", err)
	}

	snap := models.Snapshot{
		Tables:   make([]models.Table, 0, len(tableRows)),
		Bookings: make([]models.Booking, 0, len(bookingRows)),
	}
	for _, r := range tableRows {
		snap.Tables = append(snap.Tables, models.Table{
			ID:        r.ID,
			Capacity:  r.Capacity,
			Location:  r.Location,
			Row:       r.Row,
			Type:      models.TableType(r.Type),
			Status:    models.TableStatus(r.Status),
			BookingID: r.BookingID,
		})
	}
	for _, r := range bookingRows {
		snap.Bookings = append(snap.Bookings, models.Booking{
			ID:        r.ID,
			Date:      r.Date,
			Tables:    r.TableIDs,
			People:    r.People,
			Name:      r.Name,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
		})
	}
	return snap, nil
}

func (d *DB) Save(ctx context.Context, snap models.Snapshot) error {
	tableRows := make([]TableRow, 0, len(snap.Tables))
	for i, t := range snap.Tables {
		tableRows = append(tableRows, TableRow{
			ID:        t.ID,
			Position:  i,
			Capacity:  t.Capacity,
			Location:  t.Location,
			Row:       t.Row,
			Type:      string(t.Type),
			Status:    string(t.Status),
			BookingID: t.BookingID,
		})
	}
	bookingRows := make([]BookingRow, 0, len(snap.Bookings))
	for i, b := range snap.Bookings {
		bookingRows = append(bookingRows, BookingRow{
			ID:        b.ID,
			Position:  i,
			Date:      b.Date,
			TableIDs:  b.Tables,
			People:    b.People,
			Name:      b.Name,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
		})
	}

	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*BookingRow)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear bookings: %w", err)
		}
		if _, err := tx.NewDelete().Model((*TableRow)(nil)).Where("1 = 1").Exec(ctx); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
		if len(tableRows) > 0 {
			if _, err := tx.NewInsert().Model(&tableRows).Exec(ctx); err != nil {
				return fmt.Errorf("insert tables: %w", err)
			}
		}
		if len(bookingRows) > 0 {
			if _, err := tx.NewInsert().Model(&bookingRows).Exec(ctx); err != nil {
				return fmt.Errorf("insert bookings: %w", err)
			}
		}
		return nil
	})
}
