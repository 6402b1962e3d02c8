package booking_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"terrace-booking/internal/booking/qr"
	"terrace-booking/internal/logger"
	"terrace-booking/internal/models"
)

type BookingService interface {
	ListTables(ctx context.Context) ([]models.TableView, error)
	GetTable(ctx context.Context, id string) (models.TableView, error)
	ListBookings(ctx context.Context, date string) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (models.Booking, error)
	CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error)
	CancelBooking(ctx context.Context, id string) error
	SweepExpired(ctx context.Context, now time.Time) ([]models.Booking, error)
}

type Handler struct {
	Service     BookingService
	QRGenerator *qr.Generator
	Logger      *logger.Logger
	Now         func() time.Time
	// Events enables GET /api/events when set.
	Events *SSEHandler
}

func NewHandler(service BookingService, qrGenerator *qr.Generator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		Service:     service,
		QRGenerator: qrGenerator,
		Logger:      log,
		Now:         time.Now,
	}
}

// RegisterRoutes registers the terrace routes under /api on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/tables", h.ListTables)
		r.Get("/tables/{tableId}", h.GetTable)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Post("/verify", h.VerifyBooking)
			r.Get("/{bookingId}", h.GetBooking)
			r.Get("/{bookingId}/qr", h.GetBookingQR)
			r.Delete("/{bookingId}", h.CancelBooking)
		})

		r.Post("/sweep", h.Sweep)

		if h.Events != nil {
			r.Get("/events", h.Events.StreamEvents)
		}
	})
}

func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Service.ListTables(r.Context())
	if err != nil {
		h.fail(w, "ListTables", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, tables)
}

func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableId")
	table, err := h.Service.GetTable(r.Context(), tableID)
	if err != nil {
		h.fail(w, "GetTable", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, table)
}

// ListBookings returns every booking, or only those of ?date=YYYY-MM-DD.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.Service.ListBookings(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, "ListBookings", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, bookings)
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	b, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.fail(w, "GetBooking", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, b)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateBooking: failed to decode body: %v", err))
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.Service.CreateBooking(r.Context(), req)
	if err != nil {
		h.fail(w, "CreateBooking", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, created)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	if err := h.Service.CancelBooking(r.Context(), bookingID); err != nil {
		h.fail(w, "CancelBooking", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) GetBookingQR(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	b, err := h.Service.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.fail(w, "GetBookingQR", err)
		return
	}

	png, err := h.QRGenerator.PNG(b)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBookingQR: failed to render QR for %s: %v", bookingID, err))
		sendError(w, http.StatusInternalServerError, "failed to render qr code")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=booking-%s.png", bookingID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// VerifyBooking checks a scanned QR token against the live ledger.
// Expected POST request body: {"token": "base64_encrypted_string"}
func (h *Handler) VerifyBooking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		sendError(w, http.StatusBadRequest, "token is required")
		return
	}

	payload, err := h.QRGenerator.Decode(body.Token)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("VerifyBooking: %v", err))
		sendError(w, http.StatusBadRequest, "invalid qr code")
		return
	}

	b, err := h.Service.GetBooking(r.Context(), payload.BookingID)
	if err != nil {
		h.fail(w, "VerifyBooking", err)
		return
	}
	sendJSONResponse(w, http.StatusOK, struct {
		Valid   bool           `json:"valid"`
		Booking models.Booking `json:"booking"`
	}{Valid: true, Booking: b})
}

// Sweep runs an expiry sweep immediately and reports the freed bookings.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	freed, err := h.Service.SweepExpired(r.Context(), h.Now())
	if err != nil {
		h.fail(w, "Sweep", err)
		return
	}
	if freed == nil {
		freed = []models.Booking{}
	}
	sendJSONResponse(w, http.StatusOK, SweepResponse{Freed: freed})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Info("API", fmt.Sprintf("%s: %v", op, err))
	}
	sendError(w, status, messageFor(err, status))
}
