package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/model"
	"github.com/md-tanzil-ahmed/salonslot/services/booking-service/internal/storage"
)

// CatalogHandler serves the shop-owner admin surface: shops, weekly hours,
// holidays, services, deals, staff, the service-to-staff mapping and manual
// blocks.
type CatalogHandler struct {
	repo   *storage.Catalog
	logger *slog.Logger
}

func NewCatalogHandler(repo *storage.Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{repo: repo, logger: logger}
}

type shopRequest struct {
	Name               string `json:"name"`
	Timezone           string `json:"timezone"`
	MaxConcurrentDeals int    `json:"max_concurrent_deals"`
}

type shopResponse struct {
	ShopID             string `json:"shop_id"`
	Name               string `json:"name"`
	Timezone           string `json:"timezone"`
	MaxConcurrentDeals int    `json:"max_concurrent_deals"`
	IsActive           bool   `json:"is_active"`
	CreatedAt          string `json:"created_at"`
}

func toShopResponse(s model.Shop) shopResponse {
	return shopResponse{
		ShopID:             s.ID,
		Name:               s.Name,
		Timezone:           s.Timezone,
		MaxConcurrentDeals: s.MaxConcurrentDeals,
		IsActive:           s.IsActive,
		CreatedAt:          s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *CatalogHandler) Shops(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createShop(w, r)
	case http.MethodGet:
		h.listShops(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) createShop(w http.ResponseWriter, r *http.Request) {
	var req shopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	// Reject unparseable zones at write time; reads still fall back to UTC
	// for rows that predate this check.
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			http.Error(w, "invalid timezone", http.StatusBadRequest)
			return
		}
	}
	if req.MaxConcurrentDeals < 0 {
		http.Error(w, "max_concurrent_deals must not be negative", http.StatusBadRequest)
		return
	}

	shop := model.Shop{
		Name:               req.Name,
		Timezone:           req.Timezone,
		MaxConcurrentDeals: req.MaxConcurrentDeals,
		IsActive:           true,
	}
	if err := h.repo.CreateShop(r.Context(), &shop); err != nil {
		h.logger.Error("create shop failed", "err", err)
		http.Error(w, "failed to create shop", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toShopResponse(shop))
}

func (h *CatalogHandler) listShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.repo.ListShops(r.Context())
	if err != nil {
		http.Error(w, "failed to list shops", http.StatusInternalServerError)
		return
	}
	resp := make([]shopResponse, 0, len(shops))
	for _, s := range shops {
		resp = append(resp, toShopResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CatalogHandler) GetShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	shop, err := h.repo.Shop(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "shop not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load shop", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toShopResponse(shop))
}

type hoursItem struct {
	Weekday  int  `json:"weekday"`
	OpensAt  int  `json:"opens_at"`
	ClosesAt int  `json:"closes_at"`
	IsActive bool `json:"is_active"`
}

type hoursRequest struct {
	ShopID string      `json:"shop_id"`
	Days   []hoursItem `json:"days"`
}

func (h *CatalogHandler) Hours(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upsertHours(w, r)
	case http.MethodGet:
		h.listHours(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) upsertHours(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	if req.ShopID == "" || len(req.Days) == 0 {
		http.Error(w, "shop_id and days required", http.StatusBadRequest)
		return
	}

	days := make([]model.DaySchedule, 0, len(req.Days))
	for _, d := range req.Days {
		if d.Weekday < 0 || d.Weekday > 6 {
			http.Error(w, "weekday must be 0 (Monday) through 6 (Sunday)", http.StatusBadRequest)
			return
		}
		if d.OpensAt < 0 || d.ClosesAt > 24*60 || d.ClosesAt <= d.OpensAt {
			http.Error(w, "opening window must satisfy 0 <= opens_at < closes_at <= 1440", http.StatusBadRequest)
			return
		}
		days = append(days, model.DaySchedule{
			Weekday:  d.Weekday,
			OpensAt:  d.OpensAt,
			ClosesAt: d.ClosesAt,
			IsActive: d.IsActive,
		})
	}

	if err := h.repo.UpsertHours(r.Context(), req.ShopID, days); err != nil {
		h.logger.Error("upsert hours failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to save hours", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop_id": req.ShopID, "days": len(days)})
}

func (h *CatalogHandler) listHours(w http.ResponseWriter, r *http.Request) {
	shopID := strings.TrimSpace(r.URL.Query().Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	days, err := h.repo.ListHours(r.Context(), shopID)
	if err != nil {
		http.Error(w, "failed to list hours", http.StatusInternalServerError)
		return
	}
	resp := make([]hoursItem, 0, len(days))
	for _, d := range days {
		resp = append(resp, hoursItem{Weekday: d.Weekday, OpensAt: d.OpensAt, ClosesAt: d.ClosesAt, IsActive: d.IsActive})
	}
	writeJSON(w, http.StatusOK, resp)
}

type holidayRequest struct {
	ShopID string `json:"shop_id"`
	Date   string `json:"date"`
	// EndDate turns the request into a range: every day from date through
	// end_date inclusive becomes a holiday.
	EndDate string `json:"end_date"`
	Name    string `json:"name"`
}

type holidayResponse struct {
	ID     string `json:"id"`
	ShopID string `json:"shop_id"`
	Date   string `json:"date"`
	Name   string `json:"name,omitempty"`
}

func (h *CatalogHandler) Holidays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addHoliday(w, r)
	case http.MethodGet:
		h.listHolidays(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) addHoliday(w http.ResponseWriter, r *http.Request) {
	var req holidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	if req.ShopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(req.Name)

	if raw := strings.TrimSpace(req.EndDate); raw != "" {
		end, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid end_date, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		if end.Before(date) || end.After(date.AddDate(1, 0, 0)) {
			http.Error(w, "end_date must fall within a year after date", http.StatusBadRequest)
			return
		}
		added, err := h.repo.AddHolidayRange(r.Context(), req.ShopID, name, date, end)
		if err != nil {
			h.logger.Error("add holiday range failed", "err", err, "shop_id", req.ShopID)
			http.Error(w, "failed to add holidays", http.StatusInternalServerError)
			return
		}
		resp := make([]holidayResponse, 0, len(added))
		for _, hol := range added {
			resp = append(resp, holidayResponse{
				ID: hol.ID, ShopID: hol.ShopID, Date: hol.Date.Format("2006-01-02"), Name: hol.Name,
			})
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	hol := model.Holiday{ShopID: req.ShopID, Date: date, Name: name}
	if err := h.repo.AddHoliday(r.Context(), &hol); err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "holiday already exists", http.StatusConflict)
			return
		}
		h.logger.Error("add holiday failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to add holiday", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, holidayResponse{
		ID: hol.ID, ShopID: hol.ShopID, Date: hol.Date.Format("2006-01-02"), Name: hol.Name,
	})
}

func (h *CatalogHandler) listHolidays(w http.ResponseWriter, r *http.Request) {
	shopID := strings.TrimSpace(r.URL.Query().Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	from := time.Now().UTC()
	holidays, err := h.repo.UpcomingHolidays(r.Context(), shopID, from, from.AddDate(0, 0, 90))
	if err != nil {
		http.Error(w, "failed to list holidays", http.StatusInternalServerError)
		return
	}
	resp := make([]holidayResponse, 0, len(holidays))
	for _, hol := range holidays {
		resp = append(resp, holidayResponse{
			ID: hol.ID, ShopID: hol.ShopID, Date: hol.Date.Format("2006-01-02"), Name: hol.Name,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type serviceRequest struct {
	ShopID      string `json:"shop_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_minutes"`
	BufferMin   int    `json:"buffer_minutes"`
	PriceCents  int64  `json:"price_cents"`
}

type serviceResponse struct {
	ServiceID   string `json:"service_id"`
	ShopID      string `json:"shop_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_minutes"`
	BufferMin   int    `json:"buffer_minutes"`
	PriceCents  int64  `json:"price_cents"`
	IsActive    bool   `json:"is_active"`
}

func (h *CatalogHandler) Services(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createService(w, r)
	case http.MethodGet:
		h.listServices(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) createService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ShopID == "" || req.Name == "" {
		http.Error(w, "shop_id and name required", http.StatusBadRequest)
		return
	}
	if req.DurationMin <= 0 || req.DurationMin > 24*60 {
		http.Error(w, "duration_minutes must be between 1 and 1440", http.StatusBadRequest)
		return
	}
	if req.BufferMin < 0 || req.PriceCents < 0 {
		http.Error(w, "buffer_minutes and price_cents must not be negative", http.StatusBadRequest)
		return
	}

	svc := model.Service{
		ShopID:      req.ShopID,
		Name:        req.Name,
		DurationMin: req.DurationMin,
		BufferMin:   req.BufferMin,
		PriceCents:  req.PriceCents,
		IsActive:    true,
	}
	if err := h.repo.CreateService(r.Context(), &svc); err != nil {
		h.logger.Error("create service failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to create service", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, serviceResponse{
		ServiceID: svc.ID, ShopID: svc.ShopID, Name: svc.Name,
		DurationMin: svc.DurationMin, BufferMin: svc.BufferMin,
		PriceCents: svc.PriceCents, IsActive: svc.IsActive,
	})
}

func (h *CatalogHandler) listServices(w http.ResponseWriter, r *http.Request) {
	shopID := strings.TrimSpace(r.URL.Query().Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	services, err := h.repo.ListServices(r.Context(), shopID)
	if err != nil {
		http.Error(w, "failed to list services", http.StatusInternalServerError)
		return
	}
	resp := make([]serviceResponse, 0, len(services))
	for _, svc := range services {
		resp = append(resp, serviceResponse{
			ServiceID: svc.ID, ShopID: svc.ShopID, Name: svc.Name,
			DurationMin: svc.DurationMin, BufferMin: svc.BufferMin,
			PriceCents: svc.PriceCents, IsActive: svc.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type linkItem struct {
	StaffID   string `json:"staff_id"`
	IsPrimary bool   `json:"is_primary"`
}

type serviceStaffRequest struct {
	ServiceID string     `json:"service_id"`
	Links     []linkItem `json:"links"`
}

// ServiceStaff manages the explicit eligibility mapping. POST replaces the
// whole mapping for one service; GET returns it in auto-assign order.
func (h *CatalogHandler) ServiceStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.setServiceStaff(w, r)
	case http.MethodGet:
		h.listServiceStaff(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) setServiceStaff(w http.ResponseWriter, r *http.Request) {
	var req serviceStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	if req.ServiceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}

	links := make([]model.StaffLink, 0, len(req.Links))
	for _, l := range req.Links {
		l.StaffID = strings.TrimSpace(l.StaffID)
		if l.StaffID == "" {
			http.Error(w, "staff_id required on every link", http.StatusBadRequest)
			return
		}
		links = append(links, model.StaffLink{StaffID: l.StaffID, IsPrimary: l.IsPrimary})
	}

	if err := h.repo.SetServiceStaff(r.Context(), req.ServiceID, links); err != nil {
		h.logger.Error("set service staff failed", "err", err, "service_id", req.ServiceID)
		http.Error(w, "failed to save mapping", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"service_id": req.ServiceID, "links": len(links)})
}

func (h *CatalogHandler) listServiceStaff(w http.ResponseWriter, r *http.Request) {
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	if serviceID == "" {
		http.Error(w, "service_id required", http.StatusBadRequest)
		return
	}
	links, err := h.repo.EligibleStaff(r.Context(), serviceID)
	if err != nil {
		http.Error(w, "failed to list mapping", http.StatusInternalServerError)
		return
	}
	resp := make([]linkItem, 0, len(links))
	for _, l := range links {
		resp = append(resp, linkItem{StaffID: l.StaffID, IsPrimary: l.IsPrimary})
	}
	writeJSON(w, http.StatusOK, resp)
}

type dealRequest struct {
	ShopID      string `json:"shop_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_minutes"`
	PriceCents  int64  `json:"price_cents"`
}

type dealResponse struct {
	DealID      string `json:"deal_id"`
	ShopID      string `json:"shop_id"`
	Name        string `json:"name"`
	DurationMin int    `json:"duration_minutes"`
	PriceCents  int64  `json:"price_cents"`
	IsActive    bool   `json:"is_active"`
}

func (h *CatalogHandler) Deals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createDeal(w, r)
	case http.MethodGet:
		h.listDeals(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) createDeal(w http.ResponseWriter, r *http.Request) {
	var req dealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ShopID == "" || req.Name == "" {
		http.Error(w, "shop_id and name required", http.StatusBadRequest)
		return
	}
	if req.DurationMin <= 0 || req.DurationMin > 24*60 {
		http.Error(w, "duration_minutes must be between 1 and 1440", http.StatusBadRequest)
		return
	}
	if req.PriceCents < 0 {
		http.Error(w, "price_cents must not be negative", http.StatusBadRequest)
		return
	}

	deal := model.Deal{
		ShopID:      req.ShopID,
		Name:        req.Name,
		DurationMin: req.DurationMin,
		PriceCents:  req.PriceCents,
		IsActive:    true,
	}
	if err := h.repo.CreateDeal(r.Context(), &deal); err != nil {
		h.logger.Error("create deal failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to create deal", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, dealResponse{
		DealID: deal.ID, ShopID: deal.ShopID, Name: deal.Name,
		DurationMin: deal.DurationMin, PriceCents: deal.PriceCents, IsActive: deal.IsActive,
	})
}

func (h *CatalogHandler) listDeals(w http.ResponseWriter, r *http.Request) {
	shopID := strings.TrimSpace(r.URL.Query().Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	deals, err := h.repo.ListDeals(r.Context(), shopID)
	if err != nil {
		http.Error(w, "failed to list deals", http.StatusInternalServerError)
		return
	}
	resp := make([]dealResponse, 0, len(deals))
	for _, deal := range deals {
		resp = append(resp, dealResponse{
			DealID: deal.ID, ShopID: deal.ShopID, Name: deal.Name,
			DurationMin: deal.DurationMin, PriceCents: deal.PriceCents, IsActive: deal.IsActive,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type staffRequest struct {
	ShopID string `json:"shop_id"`
	Name   string `json:"name"`
}

type staffResponse struct {
	StaffID  string `json:"staff_id"`
	ShopID   string `json:"shop_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

func (h *CatalogHandler) Staff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createStaff(w, r)
	case http.MethodGet:
		h.listStaff(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) createStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ShopID == "" || req.Name == "" {
		http.Error(w, "shop_id and name required", http.StatusBadRequest)
		return
	}

	m := model.StaffMember{ShopID: req.ShopID, Name: req.Name, IsActive: true}
	if err := h.repo.CreateStaff(r.Context(), &m); err != nil {
		h.logger.Error("create staff failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to create staff member", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, staffResponse{StaffID: m.ID, ShopID: m.ShopID, Name: m.Name, IsActive: m.IsActive})
}

func (h *CatalogHandler) listStaff(w http.ResponseWriter, r *http.Request) {
	shopID := strings.TrimSpace(r.URL.Query().Get("shop_id"))
	if shopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	staff, err := h.repo.ListStaff(r.Context(), shopID)
	if err != nil {
		http.Error(w, "failed to list staff", http.StatusInternalServerError)
		return
	}
	resp := make([]staffResponse, 0, len(staff))
	for _, m := range staff {
		resp = append(resp, staffResponse{StaffID: m.ID, ShopID: m.ShopID, Name: m.Name, IsActive: m.IsActive})
	}
	writeJSON(w, http.StatusOK, resp)
}

type blockRequest struct {
	ShopID    string `json:"shop_id"`
	StaffID   string `json:"staff_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type blockResponse struct {
	BlockID   string `json:"block_id"`
	ShopID    string `json:"shop_id"`
	StaffID   string `json:"staff_id,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

func (h *CatalogHandler) Blocks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createBlock(w, r)
	case http.MethodGet:
		h.listBlocks(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *CatalogHandler) createBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ShopID = strings.TrimSpace(req.ShopID)
	if req.ShopID == "" {
		http.Error(w, "shop_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		http.Error(w, "invalid end_time", http.StatusBadRequest)
		return
	}
	if !end.After(start) {
		http.Error(w, "end_time must be after start_time", http.StatusBadRequest)
		return
	}

	block := model.ManualBlock{
		ShopID:    req.ShopID,
		StaffID:   strings.TrimSpace(req.StaffID),
		StartTime: start,
		EndTime:   end,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if err := h.repo.CreateBlock(r.Context(), &block); err != nil {
		h.logger.Error("create block failed", "err", err, "shop_id", req.ShopID)
		http.Error(w, "failed to create block", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toBlockResponse(block))
}

func (h *CatalogHandler) listBlocks(w http.ResponseWriter, r *http.Request) {
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
	if from.IsZero() {
		from = time.Now().UTC()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, 30)
	}

	blocks, err := h.repo.BlocksInRange(r.Context(), shopID, from, to)
	if err != nil {
		http.Error(w, "failed to list blocks", http.StatusInternalServerError)
		return
	}
	resp := make([]blockResponse, 0, len(blocks))
	for _, b := range blocks {
		resp = append(resp, toBlockResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

type deleteBlockRequest struct {
	BlockID string `json:"block_id"`
}

func (h *CatalogHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req deleteBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BlockID = strings.TrimSpace(req.BlockID)
	if req.BlockID == "" {
		http.Error(w, "block_id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteBlock(r.Context(), req.BlockID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "block not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete block", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"block_id": req.BlockID, "status": "deleted"})
}

func toBlockResponse(b model.ManualBlock) blockResponse {
	return blockResponse{
		BlockID:   b.ID,
		ShopID:    b.ShopID,
		StaffID:   b.StaffID,
		StartTime: b.StartTime.UTC().Format(time.RFC3339),
		EndTime:   b.EndTime.UTC().Format(time.RFC3339),
		Reason:    b.Reason,
	}
}
