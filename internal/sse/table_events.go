package sse

import (
	"context"
	"slices"
	"sync"
	"time"

	"terrace-booking/internal/models"
)

// TableEventEmitter fans booking events out to connected SSE clients. A
// client may follow a single table or, with an empty filter, the whole
// terrace.
type TableEventEmitter struct {
	mu      sync.RWMutex
	clients map[chan models.BookingEvent]string
	now     func() time.Time
}

func NewTableEventEmitter() *TableEventEmitter {
	return &TableEventEmitter{
		clients: make(map[chan models.BookingEvent]string),
		now:     time.Now,
	}
}

// Subscribe registers a client until ctx is done; the returned channel is
// closed afterwards.
func (e *TableEventEmitter) Subscribe(ctx context.Context, tableID string) <-chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, 10)

	e.mu.Lock()
	e.clients[clientChan] = tableID
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.clients, clientChan)
		close(clientChan)
		e.mu.Unlock()
	}()

	return clientChan
}

// Emit never blocks: a client whose buffer is full misses the event.
func (e *TableEventEmitter) Emit(event models.BookingEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for clientChan, tableID := range e.clients {
		if tableID != "" && !slices.Contains(event.TableIDs, tableID) {
			continue
		}
		select {
		case clientChan <- event:
		default:
		}
	}
}

func (e *TableEventEmitter) ClientCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients)
}

func (e *TableEventEmitter) PublishBookingCreated(_ context.Context, b models.Booking) error {
	e.Emit(models.NewBookingEvent(models.BookingCreated, b, e.now()))
	return nil
}

func (e *TableEventEmitter) PublishBookingCancelled(_ context.Context, b models.Booking) error {
	e.Emit(models.NewBookingEvent(models.BookingCancelled, b, e.now()))
	return nil
}

func (e *TableEventEmitter) PublishBookingExpired(_ context.Context, b models.Booking) error {
	e.Emit(models.NewBookingEvent(models.BookingExpired, b, e.now()))
	return nil
}
