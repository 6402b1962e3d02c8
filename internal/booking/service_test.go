package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/models"
)

func TestNewServiceBootstrapsCatalog(t *testing.T) {
	f := newFixture(t, nil)

	stored := f.store.stored()
	assert.Len(t, stored.Tables, 26)
	assert.Empty(t, stored.Bookings)
	assert.Equal(t, 1, f.store.saves, "bootstrap persists the catalog once")

	views, err := f.svc.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 26)
	assert.Equal(t, "L1", views[0].ID)
	assert.Equal(t, "LS1", views[2].ID)
}

func TestNewServiceStorageFailure(t *testing.T) {
	store := newMemStore(twoTables)
	store.failLoad = true

	_, err := booking.NewService(context.Background(), store, booking.Options{})
	require.Error(t, err)
	assert.True(t, booking.IsStorageError(err))
	assert.ErrorIs(t, err, errDiskFull)
}

func TestCreateBookingThenConflict(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	created, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)
	assert.Equal(t, "bk-1", created.ID)
	assert.Equal(t, "2026-10-16", created.Date)
	assert.Equal(t, []string{"L1"}, created.Tables)
	assert.Equal(t, "Alice", created.Name)

	views, err := f.svc.ListTables(ctx)
	require.NoError(t, err)
	l1 := tableByID(t, views, "L1")
	assert.Equal(t, models.TableBooked, l1.Status)
	assert.Equal(t, "bk-1", l1.HeldBy())
	require.NotNil(t, l1.Booking)
	assert.Equal(t, "Alice", l1.Booking.Name)
	ls1 := tableByID(t, views, "LS1")
	assert.Equal(t, models.TableFree, ls1.Status)
	assert.Nil(t, ls1.Booking)

	before := f.store.stored()
	second := aliceRequest()
	second.Name = "Carol"
	_, err = f.svc.CreateBooking(ctx, second)
	require.Error(t, err)
	assert.True(t, booking.IsConflictError(err))
	assert.ErrorIs(t, err, booking.ErrTablesBooked)
	assert.Contains(t, err.Error(), "L1")
	assert.Equal(t, before, f.store.stored())

	assert.Equal(t, []string{"created:bk-1"}, f.pub.Events())
	require.NoError(t, booking.CheckInvariant(f.svc.Snapshot()))
}

func TestCreateBookingRejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *models.BookingRequest)
		want   error
	}{
		{"start before opening", func(r *models.BookingRequest) { r.Name = "Bob"; r.StartTime = "10:30"; r.EndTime = "11:30" }, booking.ErrOutsideServiceHours},
		{"unknown table", func(r *models.BookingRequest) { r.Tables = []string{"Z9"}; r.People = 2; r.StartTime = "12:00"; r.EndTime = "13:00" }, booking.ErrUnknownTable},
		{"unknown among known", func(r *models.BookingRequest) { r.Tables = []string{"L1", "Z9"} }, booking.ErrUnknownTable},
		{"no tables", func(r *models.BookingRequest) { r.Tables = nil }, booking.ErrNoTables},
		{"party too large", func(r *models.BookingRequest) { r.People = 25 }, booking.ErrPartySize},
		{"blank name", func(r *models.BookingRequest) { r.Name = "   " }, booking.ErrNameRequired},
		{"bad clock", func(r *models.BookingRequest) { r.EndTime = "13:60" }, booking.ErrInvalidTime},
		{"end before start", func(r *models.BookingRequest) { r.StartTime = "14:00"; r.EndTime = "13:00" }, booking.ErrEndBeforeStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, twoTables)
			before := f.store.stored()
			savesBefore := f.store.saves

			req := aliceRequest()
			tt.mutate(&req)
			_, err := f.svc.CreateBooking(context.Background(), req)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, booking.IsValidationError(err))
			assert.Equal(t, before, f.store.stored())
			assert.Equal(t, before, f.svc.Snapshot())
			assert.Equal(t, savesBefore, f.store.saves)
			assert.Empty(t, f.pub.Events())
		})
	}
}

func TestCreateBookingUnknownTableBeatsConflict(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()
	_, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)

	req := aliceRequest()
	req.Tables = []string{"L1", "Z9"}
	_, err = f.svc.CreateBooking(ctx, req)
	assert.ErrorIs(t, err, booking.ErrUnknownTable)
}

func TestCreateBookingMultipleTablesAllOrNothing(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	first := aliceRequest()
	first.Tables = []string{"LS1"}
	first.People = 2
	_, err := f.svc.CreateBooking(ctx, first)
	require.NoError(t, err)

	before := f.store.stored()
	group := aliceRequest()
	group.Tables = []string{"L1", "LS1"}
	group.People = 6
	_, err = f.svc.CreateBooking(ctx, group)
	require.ErrorIs(t, err, booking.ErrTablesBooked)

	after := f.store.stored()
	assert.Equal(t, before, after)
	l1, err := f.svc.GetTable(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, l1.Status, "L1 must not be partially committed")
}

func TestCreateBookingCollapsesDuplicateTables(t *testing.T) {
	f := newFixture(t, twoTables)
	req := aliceRequest()
	req.Tables = []string{"L1", "LS1", "L1"}

	created, err := f.svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "LS1"}, created.Tables)
	require.NoError(t, booking.CheckInvariant(f.store.stored()))
}

func TestCreateBookingTrimsNameAndDefaultsDate(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	for i, date := range []string{"", "16/10/2026", "2026-02-30"} {
		req := aliceRequest()
		req.Tables = []string{[]string{"L1", "LS1", "L1"}[i]}
		req.Name = "  Dana  "
		req.Date = date
		created, err := f.svc.CreateBooking(ctx, req)
		require.NoError(t, err, "date %q", date)
		assert.Equal(t, "2026-10-16", created.Date, "date %q", date)
		assert.Equal(t, "Dana", created.Name)
		require.NoError(t, f.svc.CancelBooking(ctx, created.ID))
	}

	req := aliceRequest()
	req.Date = "2026-12-24"
	created, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2026-12-24", created.Date)
}

func TestCreateBookingServiceWindowBoundsInclusive(t *testing.T) {
	f := newFixture(t, twoTables)
	req := aliceRequest()
	req.StartTime = "11:00"
	req.EndTime = "22:30"

	_, err := f.svc.CreateBooking(context.Background(), req)
	assert.NoError(t, err)
}

func TestCreateBookingStorageFailureDoesNotCommit(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()
	before := f.svc.Snapshot()
	f.store.failSave = true

	_, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.Error(t, err)
	assert.True(t, booking.IsStorageError(err))
	assert.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, before, f.svc.Snapshot())
	bookings, err := f.svc.ListBookings(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.Empty(t, f.pub.Events())

	f.store.failSave = false
	_, err = f.svc.CreateBooking(ctx, aliceRequest())
	assert.NoError(t, err, "L1 stays free after the failed save")
}

func TestCancelBookingRestoresRegistry(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()
	before := f.store.stored()

	req := aliceRequest()
	req.Tables = []string{"L1", "LS1"}
	created, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelBooking(ctx, created.ID))

	assert.Equal(t, before, f.store.stored())
	assert.Equal(t, before, f.svc.Snapshot())
	_, err = f.svc.GetBooking(ctx, created.ID)
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	assert.Equal(t, []string{"created:bk-1", "cancelled:bk-1"}, f.pub.Events())
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()
	_, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)
	before := f.store.stored()
	saves := f.store.saves

	err = f.svc.CancelBooking(ctx, "never-created")
	require.Error(t, err)
	assert.True(t, booking.IsNotFoundError(err))
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
	assert.Equal(t, before, f.store.stored())
	assert.Equal(t, saves, f.store.saves)
}

func TestCancelStorageFailureKeepsBooking(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()
	created, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)

	f.store.failSave = true
	err = f.svc.CancelBooking(ctx, created.ID)
	require.ErrorIs(t, err, booking.ErrStorage)

	_, err = f.svc.GetBooking(ctx, created.ID)
	assert.NoError(t, err)
	l1, err := f.svc.GetTable(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, l1.Status)
}

func TestListBookingsOrderedByStartTime(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	requests := []struct {
		table, name, start, end, date string
	}{
		{"L1", "Late", "19:00", "21:00", "2026-10-16"},
		{"L2", "Early", "11:15", "12:00", "2026-10-16"},
		{"L3", "Other day", "11:00", "12:00", "2026-10-17"},
		{"L4", "Tie A", "13:00", "14:00", "2026-10-16"},
		{"L5", "Tie B", "13:00", "15:00", "2026-10-16"},
		{"L6", "Single digit", "9:30", "12:00", "2026-10-16"},
	}
	for _, r := range requests {
		_, err := f.svc.CreateBooking(ctx, models.BookingRequest{
			Tables: []string{r.table}, People: 2, Name: r.name, StartTime: r.start, EndTime: r.end, Date: r.date,
		})
		if r.name == "Single digit" {
			require.ErrorIs(t, err, booking.ErrOutsideServiceHours)
			continue
		}
		require.NoError(t, err)
	}

	todays, err := f.svc.ListBookings(ctx, "2026-10-16")
	require.NoError(t, err)
	var names []string
	for _, b := range todays {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"Early", "Tie A", "Tie B", "Late"}, names)

	all, err := f.svc.ListBookings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGetTableNotFound(t *testing.T) {
	f := newFixture(t, twoTables)
	_, err := f.svc.GetTable(context.Background(), "Z9")
	assert.ErrorIs(t, err, booking.ErrTableNotFound)
	assert.True(t, booking.IsNotFoundError(err))
}

func TestSweepExpiredBoundary(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	req := aliceRequest()
	req.StartTime = "12:00"
	req.EndTime = "14:00"
	created, err := f.svc.CreateBooking(ctx, req)
	require.NoError(t, err)

	freed, err := f.svc.SweepExpired(ctx, time.Date(2026, 10, 16, 13, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, freed)
	_, err = f.svc.GetBooking(ctx, created.ID)
	require.NoError(t, err)

	freed, err = f.svc.SweepExpired(ctx, time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, freed, 1)
	assert.Equal(t, created.ID, freed[0].ID)

	l1, err := f.svc.GetTable(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, l1.Status)
	assert.Nil(t, l1.BookingID)
	assert.Equal(t, []string{"created:bk-1", "expired:bk-1"}, f.pub.Events())
	require.NoError(t, booking.CheckInvariant(f.store.stored()))
}

func TestSweepExpiredOnlyTouchesToday(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	tomorrow := aliceRequest()
	tomorrow.Date = "2026-10-17"
	tomorrow.EndTime = "12:30"
	_, err := f.svc.CreateBooking(ctx, tomorrow)
	require.NoError(t, err)

	evening := aliceRequest()
	evening.Tables = []string{"LS1"}
	evening.StartTime = "18:00"
	evening.EndTime = "20:00"
	_, err = f.svc.CreateBooking(ctx, evening)
	require.NoError(t, err)

	freed, err := f.svc.SweepExpired(ctx, time.Date(2026, 10, 16, 21, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, freed, 1)
	assert.Equal(t, "LS1", freed[0].Tables[0])

	remaining, err := f.svc.ListBookings(ctx, "")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "2026-10-17", remaining[0].Date)
}

func TestSweepUsesServiceLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	store := newMemStore(twoTables)
	svc, err := booking.NewService(context.Background(), store, booking.Options{
		Now:      func() time.Time { return today },
		Location: berlin,
	})
	require.NoError(t, err)

	req := aliceRequest()
	req.EndTime = "14:00"
	_, err = svc.CreateBooking(context.Background(), req)
	require.NoError(t, err)

	// 12:00 UTC is 14:00 in Berlin during summer time.
	freed, err := svc.SweepExpired(context.Background(), time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, freed, 1)
}

func TestListTablesSweepsOnRead(t *testing.T) {
	store := newMemStore(twoTables)
	clock := today
	svc, err := booking.NewService(context.Background(), store, booking.Options{
		Now:         func() time.Time { return clock },
		Location:    time.UTC,
		SweepOnRead: true,
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)

	views, err := svc.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, tableByID(t, views, "L1").Status)

	clock = time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC)
	views, err = svc.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, tableByID(t, views, "L1").Status)
}

func TestPublisherFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t, twoTables)
	f.pub.fail = true

	created, err := f.svc.CreateBooking(context.Background(), aliceRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.CancelBooking(context.Background(), created.ID))
	assert.Len(t, f.pub.Events(), 2)
}

func TestServiceRejectsCorruptState(t *testing.T) {
	store := newMemStore(twoTables)
	snap := booking.Bootstrap(twoTables)
	ghost := "ghost"
	snap.Tables[0].Status = models.TableBooked
	snap.Tables[0].BookingID = &ghost
	store.snap = &snap

	_, err := booking.NewService(context.Background(), store, booking.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrCorruptState)
	assert.True(t, booking.IsStorageError(err))
}

func TestEventsSurviveCallerCancellation(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The client goes away right after the change is stored.
	f.store.afterSave = cancel

	created, err := f.svc.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	f.store.afterSave = nil
	require.NoError(t, f.svc.CancelBooking(context.Background(), created.ID))

	expiring, err := f.svc.CreateBooking(context.Background(), aliceRequest())
	require.NoError(t, err)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	f.store.afterSave = sweepCancel
	freed, err := f.svc.SweepExpired(sweepCtx, time.Date(2026, 10, 16, 14, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, freed, 1)

	assert.Equal(t, []string{"created:bk-1", "cancelled:bk-1", "created:bk-2", "expired:" + expiring.ID}, f.pub.Events())
	for _, err := range f.pub.ContextErrors() {
		assert.NoError(t, err)
	}
}

func TestSharedServiceReadsThroughToStore(t *testing.T) {
	store := newMemStore(twoTables)
	ctx := context.Background()
	newService := func(shared bool) *booking.Service {
		svc, err := booking.NewService(ctx, store, booking.Options{
			Now:      func() time.Time { return today },
			Location: time.UTC,
			NewID:    sequentialIDs(),
			Shared:   shared,
		})
		require.NoError(t, err)
		return svc
	}
	writer, shared, private := newService(false), newService(true), newService(false)

	created, err := writer.CreateBooking(ctx, aliceRequest())
	require.NoError(t, err)

	l1, err := shared.GetTable(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, models.TableBooked, l1.Status)
	got, err := shared.GetBooking(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	// A private service only learns about foreign writes on its own writes.
	l1, err = private.GetTable(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, l1.Status)

	freed, err := private.SweepExpired(ctx, time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, freed, 1, "sweeps always reload the store")
	assert.Equal(t, created.ID, freed[0].ID)

	views, err := shared.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, tableByID(t, views, "L1").Status)

	store.failLoad = true
	_, err = shared.ListBookings(ctx, "")
	assert.ErrorIs(t, err, booking.ErrStorage)
	_, err = private.ListBookings(ctx, "")
	assert.NoError(t, err)
}

type lockerFunc func(ctx context.Context) (func(), error)

func (f lockerFunc) Acquire(ctx context.Context) (func(), error) { return f(ctx) }

func TestWritesHoldTheLocker(t *testing.T) {
	acquired, released := 0, 0
	store := newMemStore(twoTables)
	svc, err := booking.NewService(context.Background(), store, booking.Options{
		Now:      func() time.Time { return today },
		Location: time.UTC,
		Locker: lockerFunc(func(ctx context.Context) (func(), error) {
			acquired++
			return func() { released++ }, nil
		}),
	})
	require.NoError(t, err)

	created, err := svc.CreateBooking(context.Background(), aliceRequest())
	require.NoError(t, err)
	require.NoError(t, svc.CancelBooking(context.Background(), created.ID))
	assert.Equal(t, 2, acquired)
	assert.Equal(t, 2, released)

	busy := booking.Options{
		Locker: lockerFunc(func(ctx context.Context) (func(), error) {
			return nil, errors.New("lock held elsewhere")
		}),
	}
	svc, err = booking.NewService(context.Background(), store, busy)
	require.NoError(t, err)
	_, err = svc.CreateBooking(context.Background(), aliceRequest())
	assert.True(t, booking.IsStorageError(err))
}

func TestConcurrentCreatesNeverDoubleBook(t *testing.T) {
	f := newFixture(t, twoTables)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBooking(ctx, aliceRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, booking.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	require.NoError(t, booking.CheckInvariant(f.store.stored()))
}

func TestPublishersFanOut(t *testing.T) {
	first, second := &recordingPublisher{fail: true}, &recordingPublisher{}
	pubs := booking.Publishers{first, second}
	b := models.Booking{ID: "bk-9"}

	err := pubs.PublishBookingCreated(context.Background(), b)
	assert.Error(t, err)
	assert.Error(t, pubs.PublishBookingCancelled(context.Background(), b))
	require.NoError(t, booking.Publishers{second}.PublishBookingExpired(context.Background(), b))

	assert.Equal(t, []string{"created:bk-9", "cancelled:bk-9"}, first.Events())
	assert.Equal(t, []string{"created:bk-9", "cancelled:bk-9", "expired:bk-9"}, second.Events())
}
