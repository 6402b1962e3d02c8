package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

// Store persists the whole terrace state. Load bootstraps and saves the
// catalog when nothing has been stored yet.
type Store interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
}

// Locker serializes writers that share a store across processes.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, booking models.Booking) error
	PublishBookingCancelled(ctx context.Context, booking models.Booking) error
	PublishBookingExpired(ctx context.Context, booking models.Booking) error
}

type Options struct {
	Now       func() time.Time
	Location  *time.Location
	NewID     func() string
	Publisher EventPublisher
	Locker    Locker
	Logger    *logger.Logger
	// SweepOnRead releases expired bookings before every table listing.
	SweepOnRead bool
	// Shared reloads the store on every read because other processes may
	// write to it. Implied by a Locker.
	Shared bool
}

// Service is the single owner of the terrace state. All writes run through
// one mutex around load, validate, mutate and save; reads see the last
// committed state.
type Service struct {
	store       Store
	locker      Locker
	publisher   EventPublisher
	logger      *logger.Logger
	now         func() time.Time
	loc         *time.Location
	newID       func() string
	sweepOnRead bool
	shared      bool

	mu    sync.RWMutex
	state *state
}

// errNoChange ends a write without saving.
var errNoChange = errors.New("no change")

func NewService(ctx context.Context, store Store, opts Options) (*Service, error) {
	s := &Service{
		store:       store,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		logger:      opts.Logger,
		now:         opts.Now,
		loc:         opts.Location,
		newID:       opts.NewID,
		sweepOnRead: opts.SweepOnRead,
		shared:      opts.Shared || opts.Locker != nil,
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load state: %w", ErrStorage, err)
	}
	st, err := newState(snap)
	if err != nil {
		return nil, err
	}
	s.state = st
	s.logger.LogStore("LOAD", "state", fmt.Sprintf("%d tables, %d bookings", len(snap.Tables), len(snap.Bookings)))
	return s, nil
}

// ListTables returns the catalog joined with bookings, in catalog order.
func (s *Service) ListTables(ctx context.Context) ([]models.TableView, error) {
	if s.sweepOnRead {
		if _, err := s.SweepExpired(ctx, s.now()); err != nil {
			s.logger.Warn("SWEEP", fmt.Sprintf("sweep before table read failed: %v", err))
		}
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.registry.list(st.ledger.get), nil
}

func (s *Service) GetTable(ctx context.Context, id string) (models.TableView, error) {
	st, err := s.current(ctx)
	if err != nil {
		return models.TableView{}, err
	}
	t, ok := st.registry.get(id)
	if !ok {
		return models.TableView{}, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	view := models.TableView{Table: t}
	if b, ok := st.ledger.get(t.HeldBy()); ok {
		b = b.Clone()
		view.Booking = &b
	}
	return view, nil
}

// ListBookings returns the bookings of date ordered by start time, or every
// booking when date is empty.
func (s *Service) ListBookings(ctx context.Context, date string) ([]models.Booking, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.ledger.onDate(date), nil
}

func (s *Service) GetBooking(ctx context.Context, id string) (models.Booking, error) {
	st, err := s.current(ctx)
	if err != nil {
		return models.Booking{}, err
	}
	b, ok := st.ledger.get(id)
	if !ok {
		return models.Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	return b.Clone(), nil
}

// Snapshot returns a copy of the last committed state.
func (s *Service) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// CreateBooking validates req against every rule before touching any table,
// then books all requested tables under one new booking id.
func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error) {
	in, err := validateRequest(req)
	if err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("create rejected: %v", err))
		return models.Booking{}, err
	}

	var created models.Booking
	err = s.write(ctx, func(st *state) error {
		var unknown, taken []string
		for _, id := range in.tables {
			t, ok := st.registry.get(id)
			if !ok {
				unknown = append(unknown, id)
				continue
			}
			if t.IsBooked() {
				taken = append(taken, id)
			}
		}
		if len(unknown) > 0 {
			return fmt.Errorf("%w: %s", ErrUnknownTable, strings.Join(unknown, ", "))
		}
		if len(taken) > 0 {
			return fmt.Errorf("%w: %s", ErrTablesBooked, strings.Join(taken, ", "))
		}

		created = models.Booking{
			ID:        s.newID(),
			Date:      resolveDate(req.Date, s.now(), s.loc),
			Tables:    in.tables,
			People:    in.people,
			Name:      in.name,
			StartTime: in.startTime,
			EndTime:   in.endTime,
		}
		st.ledger.add(created)
		for _, id := range created.Tables {
			st.registry.setStatus(id, models.TableBooked, &created.ID)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("create failed: %v", err))
		return models.Booking{}, err
	}

	s.logger.LogBooking("CREATE", created.ID, fmt.Sprintf("%s (%d) %s %s-%s tables %s",
		created.Name, created.People, created.Date, created.StartTime, created.EndTime, strings.Join(created.Tables, ", ")))
	if err := s.publisher.PublishBookingCreated(context.WithoutCancel(ctx), created); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish booking created %s: %v", created.ID, err))
	}
	return created.Clone(), nil
}

// CancelBooking frees every table of the booking and removes it.
func (s *Service) CancelBooking(ctx context.Context, id string) error {
	var cancelled models.Booking
	err := s.write(ctx, func(st *state) error {
		i, ok := st.ledger.find(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
		}
		cancelled = st.release(i)
		return nil
	})
	if err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("cancel %s failed: %v", id, err))
		return err
	}

	s.logger.LogBooking("CANCEL", cancelled.ID, "tables "+strings.Join(cancelled.Tables, ", ")+" released")
	if err := s.publisher.PublishBookingCancelled(context.WithoutCancel(ctx), cancelled); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish booking cancelled %s: %v", cancelled.ID, err))
	}
	return nil
}

// SweepExpired cancels every booking dated today (in the service location)
// whose end time is at or before now, and returns the freed bookings.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) ([]models.Booking, error) {
	local := now.In(s.loc)
	today := local.Format(DateLayout)
	minutes := local.Hour()*60 + local.Minute()

	var freed []models.Booking
	err := s.write(ctx, func(st *state) error {
		for _, b := range st.ledger.expired(today, minutes) {
			if i, ok := st.ledger.find(b.ID); ok {
				freed = append(freed, st.release(i))
			}
		}
		if len(freed) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The change is committed; a caller going away must not drop its events.
	pubCtx := context.WithoutCancel(ctx)
	for _, b := range freed {
		s.logger.LogSweep(fmt.Sprintf("booking %s (%s, ended %s) expired, tables %s released",
			b.ID, b.Name, b.EndTime, strings.Join(b.Tables, ", ")))
		if err := s.publisher.PublishBookingExpired(pubCtx, b); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("publish booking expired %s: %v", b.ID, err))
		}
	}
	return freed, nil
}

// current returns the state reads are served from. Committed states are never
// mutated, so the pointer stays valid after the lock is released.
func (s *Service) current(ctx context.Context) (*state, error) {
	if !s.shared {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.state, nil
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load state: %w", ErrStorage, err)
	}
	st, err := newState(snap)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st, nil
}

// write runs fn against a freshly loaded state and commits it only when fn
// succeeds and the store accepts the result.
func (s *Service) write(ctx context.Context, fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("%w: acquire write lock: %w", ErrStorage, err)
		}
		defer release()
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load state: %w", ErrStorage, err)
	}
	st, err := newState(snap)
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		if errors.Is(err, errNoChange) {
			s.state = st
			return nil
		}
		return err
	}

	if err := s.store.Save(ctx, st.snapshot()); err != nil {
		return fmt.Errorf("%w: save state: %w", ErrStorage, err)
	}
	s.state = st
	return nil
}

type NopPublisher struct{}

func (NopPublisher) PublishBookingCreated(context.Context, models.Booking) error   { return nil }
func (NopPublisher) PublishBookingCancelled(context.Context, models.Booking) error { return nil }
func (NopPublisher) PublishBookingExpired(context.Context, models.Booking) error   { return nil }

// Publishers fans every event out to each publisher in turn. All of them are
// called even when one fails.
type Publishers []EventPublisher

func (ps Publishers) PublishBookingCreated(ctx context.Context, b models.Booking) error {
	var errs []error
	for _, p := range ps {
		errs = append(errs, p.PublishBookingCreated(ctx, b))
	}
	return errors.Join(errs...)
}

func (ps Publishers) PublishBookingCancelled(ctx context.Context, b models.Booking) error {
	var errs []error
	for _, p := range ps {
		errs = append(errs, p.PublishBookingCancelled(ctx, b))
	}
	return errors.Join(errs...)
}

func (ps Publishers) PublishBookingExpired(ctx context.Context, b models.Booking) error {
	var errs []error
	for _, p := range ps {
		errs = append(errs, p.PublishBookingExpired(ctx, b))
	}
	return errors.Join(errs...)
}
