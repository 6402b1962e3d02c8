package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/models"
)

var errDiskFull = errors.New("disk full")

// memStore keeps the snapshot in memory and can be told to fail.
type memStore struct {
	mu       sync.Mutex
	snap     *models.Snapshot
	seed     func() []models.Table
	failLoad bool
	failSave bool
	saves    int
	// afterSave runs once a save has been stored.
	afterSave func()
}

func newMemStore(seed func() []models.Table) *memStore {
	return &memStore{seed: seed}
}

func (m *memStore) Load(ctx context.Context) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return models.Snapshot{}, errDiskFull
	}
	if m.snap == nil {
		boot := booking.Bootstrap(m.seed)
		m.snap = &boot
		m.saves++
	}
	return m.snap.Clone(), nil
}

func (m *memStore) Save(ctx context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errDiskFull
	}
	c := snap.Clone()
	m.snap = &c
	m.saves++
	if m.afterSave != nil {
		m.afterSave()
	}
	return nil
}

func (m *memStore) stored() models.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.Clone()
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []string
	ctxErrs []error
	fail    bool
}

func (p *recordingPublisher) record(ctx context.Context, kind string, b models.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+b.ID)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	if p.fail {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *recordingPublisher) PublishBookingCreated(ctx context.Context, b models.Booking) error {
	return p.record(ctx, "created", b)
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, b models.Booking) error {
	return p.record(ctx, "cancelled", b)
}

func (p *recordingPublisher) PublishBookingExpired(ctx context.Context, b models.Booking) error {
	return p.record(ctx, "expired", b)
}

func (p *recordingPublisher) ContextErrors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.ctxErrs...)
}

func (p *recordingPublisher) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// twoTables is the small catalog used by the scenario tests: L1 (4 seats)
// and LS1 (2 seats).
func twoTables() []models.Table {
	return booking.Layout{
		Location:      "lower",
		Rows:          []string{"row1"},
		Pattern:       []models.TableType{models.TableBig, models.TableSmall},
		BigCapacity:   4,
		SmallCapacity: 2,
		BigPrefix:     "L",
		SmallPrefix:   "LS",
	}.Generate()
}

var today = time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("bk-%d", n)
	}
}

type fixture struct {
	svc   *booking.Service
	store *memStore
	pub   *recordingPublisher
	clock *time.Time
}

func newFixture(t *testing.T, seed func() []models.Table) *fixture {
	t.Helper()
	clock := today
	f := &fixture{
		store: newMemStore(seed),
		pub:   &recordingPublisher{},
		clock: &clock,
	}
	svc, err := booking.NewService(context.Background(), f.store, booking.Options{
		Now:       func() time.Time { return *f.clock },
		Location:  time.UTC,
		NewID:     sequentialIDs(),
		Publisher: f.pub,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func aliceRequest() models.BookingRequest {
	return models.BookingRequest{
		Tables:    []string{"L1"},
		People:    3,
		Name:      "Alice",
		StartTime: "12:00",
		EndTime:   "13:30",
		Date:      "2026-10-16",
	}
}

func tableByID(t *testing.T, views []models.TableView, id string) models.TableView {
	t.Helper()
	for _, v := range views {
		if v.ID == id {
			return v
		}
	}
	t.Fatalf("table %s not listed", id)
	return models.TableView{}
}
