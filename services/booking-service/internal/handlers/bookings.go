package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/booking"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
)

type BookingsHandler struct {
	svc    *booking.Service
	repo   *storage.Bookings
	logger *slog.Logger
}

func NewBookingsHandler(svc *booking.Service, repo *storage.Bookings, logger *slog.Logger) *BookingsHandler {
	return &BookingsHandler{svc: svc, repo: repo, logger: logger}
}

type createBookingRequest struct {
	ServiceID  string `json:"service_id"`
	DealID     string `json:"deal_id"`
	StaffID    string `json:"staff_id"`
	CustomerID string `json:"customer_id"`
	Customer   string `json:"customer_name"`
	Phone      string `json:"customer_phone"`
	StartTime  string `json:"start_time"`
	Note       string `json:"note"`
}

type bookingResponse struct {
	BookingID    string `json:"booking_id"`
	ShopID       string `json:"shop_id"`
	Kind         string `json:"kind"`
	ServiceID    string `json:"service_id,omitempty"`
	DealID       string `json:"deal_id,omitempty"`
	StaffID      string `json:"staff_id,omitempty"`
	CustomerID   string `json:"customer_id"`
	Customer     string `json:"customer_name"`
	Phone        string `json:"customer_phone,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	DurationMin  int    `json:"duration_minutes"`
	PriceCents   int64  `json:"price_cents"`
	Status       string `json:"status"`
	Note         string `json:"note,omitempty"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
	CancelledBy  string `json:"cancelled_by,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:    b.ID,
		ShopID:       b.ShopID,
		Kind:         string(b.Kind),
		ServiceID:    b.ServiceID,
		DealID:       b.DealID,
		StaffID:      b.StaffID,
		CustomerID:   b.CustomerID,
		Customer:     b.Customer,
		Phone:        b.Phone,
		StartTime:    b.StartTime.UTC().Format(time.RFC3339),
		EndTime:      b.EndTime().UTC().Format(time.RFC3339),
		DurationMin:  b.DurationMin,
		PriceCents:   b.PriceCents,
		Status:       string(b.Status),
		Note:         b.Note,
		CancelledBy:  string(b.CancelledBy),
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.DealID = strings.TrimSpace(req.DealID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.Customer = strings.TrimSpace(req.Customer)
	if req.CustomerID == "" {
		req.CustomerID = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	breq := booking.CreateRequest{
		ServiceID:  req.ServiceID,
		DealID:     req.DealID,
		StaffID:    req.StaffID,
		CustomerID: req.CustomerID,
		Customer:   req.Customer,
		Phone:      strings.TrimSpace(req.Phone),
		Start:      start,
		Note:       strings.TrimSpace(req.Note),
	}

	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		b, err := h.svc.Create(ctx, breq)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBookingResponse(b))
		return
	}

	if breq.CustomerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := tx.LockIdempotencyKey(ctx, breq.CustomerID, key)
	if err != nil {
		http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
		return
	}
	if rec.StatusCode > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rec.StatusCode)
		_, _ = w.Write(rec.Response)
		return
	}

	b, err := h.svc.CreateInTx(ctx, tx, breq)
	if err != nil {
		code, resp, ok := domainResponse(err)
		if !ok {
			h.logger.Error("create booking failed", "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		// Permanent rejections are stored under the key; conflicts are
		// not, so the client can retry the same key once the slot frees.
		if !retryable(err) {
			if body, merr := json.Marshal(resp); merr == nil {
				if serr := tx.SaveIdempotencyResult(ctx, breq.CustomerID, key, code, body); serr == nil {
					_ = tx.Commit(ctx)
				}
			}
		}
		writeJSON(w, code, resp)
		return
	}

	respBody, err := json.Marshal(toBookingResponse(b))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if err := tx.SaveIdempotencyResult(ctx, breq.CustomerID, key, http.StatusCreated, respBody); err != nil {
		http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

type rescheduleRequest struct {
	BookingID string `json:"booking_id"`
	StartTime string `json:"start_time"`
}

func (h *BookingsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	b, err := h.svc.Reschedule(r.Context(), req.BookingID, start)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type reassignRequest struct {
	BookingID string `json:"booking_id"`
	StaffID   string `json:"staff_id"`
}

func (h *BookingsHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.BookingID == "" || req.StaffID == "" {
		http.Error(w, "booking_id and staff_id required", http.StatusBadRequest)
		return
	}

	b, err := h.svc.ReassignStaff(r.Context(), req.BookingID, req.StaffID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type transitionRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *BookingsHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.svc.Confirm)
}

func (h *BookingsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.svc.Complete)
}

func (h *BookingsHandler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.svc.NoShow)
}

func (h *BookingsHandler) applyTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string) (model.Booking, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}

	b, err := apply(r.Context(), req.BookingID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

type cancelRequest struct {
	BookingID   string `json:"booking_id"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason"`
}

func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	actor := model.CancelActor(strings.TrimSpace(req.CancelledBy))
	if actor == "" {
		actor = model.CancelledByCustomer
	}

	b, err := h.svc.Cancel(r.Context(), req.BookingID, actor, strings.TrimSpace(req.Reason))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	b, err := h.repo.Booking(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	customerID := strings.TrimSpace(q.Get("customer_id"))
	if customerID == "" {
		customerID = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}
	shopID := strings.TrimSpace(q.Get("shop_id"))

	var (
		items []model.Booking
		err   error
	)
	switch {
	case shopID != "":
		f := storage.ListFilter{
			Status:     strings.TrimSpace(q.Get("status")),
			StaffID:    strings.TrimSpace(q.Get("staff_id")),
			CustomerID: strings.TrimSpace(q.Get("customer_id")),
			Limit:      limit,
		}
		if f.Status != "" && !model.BookingStatus(f.Status).Valid() {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		if f.From, err = parseTimeParam(q.Get("from")); err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		if f.To, err = parseTimeParam(q.Get("to")); err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		items, err = h.repo.ListByShop(r.Context(), shopID, f)
	case customerID != "":
		items, err = h.repo.CustomerBookings(r.Context(), customerID, limit)
	default:
		http.Error(w, "shop_id or customer_id required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	resp := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		resp = append(resp, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	ShopID       string `json:"shop_id"`
	Total        int64  `json:"total"`
	Pending      int64  `json:"pending"`
	Confirmed    int64  `json:"confirmed"`
	Completed    int64  `json:"completed"`
	Cancelled    int64  `json:"cancelled"`
	NoShow       int64  `json:"no_show"`
	RevenueCents int64  `json:"revenue_cents"`
}

func (h *BookingsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	shopID := strings.TrimSpace(q.Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	from, err := parseTimeParam(q.Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := parseTimeParam(q.Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	st, err := h.repo.Stats(r.Context(), shopID, from, to)
	if err != nil {
		http.Error(w, "failed to load stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		ShopID:       shopID,
		Total:        st.Total,
		Pending:      st.Pending,
		Confirmed:    st.Confirmed,
		Completed:    st.Completed,
		Cancelled:    st.Cancelled,
		NoShow:       st.NoShow,
		RevenueCents: st.RevenueCents,
	})
}

// parseTimeParam parses an optional RFC3339 query parameter; empty means the
// zero time.
func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
