package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/jobs"
	"github.com/cassidypignatello/bali-renovation-os/internal/match"
	"github.com/cassidypignatello/bali-renovation-os/internal/store"
	"github.com/cassidypignatello/bali-renovation-os/internal/trust"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
	"github.com/cassidypignatello/bali-renovation-os/pkg/midtrans"
)

// estimatedScrapeSeconds is what clients are told to wait before
// re-polling after a cache miss kicks off a scrape.
const estimatedScrapeSeconds = 30

// server carries the handler dependencies.
type server struct {
	store           store.Store
	tables          *match.Tables
	refresh         *jobs.RefreshService
	midtrans        midtrans.Client
	unlockPriceIDR  int64
	cacheTTL        time.Duration
	defaultLocation string
	scrapeTimeout   time.Duration
	now             func() time.Time
}

func newServer(env *appEnv) *server {
	return &server{
		store:           env.Store,
		tables:          env.Tables,
		refresh:         env.Refresh,
		midtrans:        env.Midtrans,
		unlockPriceIDR:  cfg.Midtrans.UnlockPriceIDR,
		cacheTTL:        time.Duration(cfg.Refresh.CacheTTLHours) * time.Hour,
		defaultLocation: cfg.Refresh.Location,
		scrapeTimeout:   time.Duration(cfg.Apify.RunTimeoutSecs+60) * time.Second,
		now:             time.Now,
	}
}

type searchRequest struct {
	ProjectType   string `json:"project_type"`
	Location      string `json:"location"`
	BudgetRange   string `json:"budget_range,omitempty"`
	MinTrustLevel string `json:"min_trust_level,omitempty"`
}

// workerPreview is the locked-contact view of a worker.
type workerPreview struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"display_name"`
	Location        string   `json:"location,omitempty"`
	Specializations []string `json:"specializations,omitempty"`
	TrustScore      int      `json:"trust_score"`
	TrustLevel      string   `json:"trust_level,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     int      `json:"review_count"`
	DailyRateIDR    *int64   `json:"daily_rate_idr,omitempty"`
	RankingScore    *float64 `json:"ranking_score,omitempty"`
	ContactLocked   bool     `json:"contact_locked"`
	UnlockPriceIDR  int64    `json:"unlock_price_idr"`
}

// workerDetails is the full view returned after an unlock.
type workerDetails struct {
	workerPreview
	BusinessName string `json:"business_name"`
	Phone        string `json:"phone,omitempty"`
	WhatsApp     string `json:"whatsapp,omitempty"`
	Email        string `json:"email,omitempty"`
	Website      string `json:"website,omitempty"`
	Address      string `json:"address,omitempty"`
	GmapsURL     string `json:"gmaps_url,omitempty"`
}

func (s *server) toPreview(rec *worker.Record) workerPreview {
	p := workerPreview{
		ID:              rec.ID,
		DisplayName:     trust.MaskName(rec.BusinessName),
		Location:        rec.Location,
		Specializations: rec.Specializations,
		TrustScore:      rec.TrustScoreValue(),
		TrustLevel:      string(rec.TrustLevel),
		Rating:          rec.GmapsRating,
		ReviewCount:     rec.GmapsReviewCount + rec.OLXReviewCount,
		DailyRateIDR:    rec.Price(),
		RankingScore:    rec.RankingScore,
		ContactLocked:   true,
		UnlockPriceIDR:  s.unlockPriceIDR,
	}
	if p.Rating == nil {
		p.Rating = rec.OLXRating
	}
	return p
}

func (s *server) toDetails(rec *worker.Record) workerDetails {
	d := workerDetails{
		workerPreview: s.toPreview(rec),
		BusinessName:  rec.BusinessName,
		Phone:         rec.Phone,
		WhatsApp:      rec.WhatsApp,
		Email:         rec.Email,
		Website:       rec.Website,
		Address:       rec.Address,
		GmapsURL:      rec.GmapsURL,
	}
	d.ContactLocked = false
	d.DisplayName = rec.BusinessName
	return d
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch serves ranked workers from the cache when it is fresh,
// and otherwise kicks off a background scrape and tells the client to
// come back.
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectType == "" {
		writeError(w, http.StatusBadRequest, "project_type is required")
		return
	}
	location := req.Location
	if location == "" {
		location = s.defaultLocation
	}

	specialization := s.tables.MapProjectType(req.ProjectType)
	cached, err := s.store.CachedWorkers(r.Context(), specialization, s.cacheTTL)
	if err != nil {
		zap.L().Error("search: cached workers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if len(cached) == 0 {
		s.startBackgroundScrape(specialization, location)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":                        "scraping",
			"specialization":                specialization,
			"estimated_scrape_time_seconds": estimatedScrapeSeconds,
		})
		return
	}

	if req.MinTrustLevel != "" {
		cached = match.FilterByTrustLevel(cached, worker.TrustLevel(req.MinTrustLevel))
	}

	opts := match.NewRankOptions(req.ProjectType, location)
	opts.BudgetRange = req.BudgetRange
	ranked := s.tables.Rank(cached, opts)

	previews := make([]workerPreview, 0, len(ranked))
	for _, rec := range ranked {
		previews = append(previews, s.toPreview(rec))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "cache_hit",
		"cache_age_hours": s.cacheAgeHours(ranked),
		"total":           len(previews),
		"workers":         previews,
	})
}

// cacheAgeHours reports the age of the freshest record in the result.
func (s *server) cacheAgeHours(records []*worker.Record) float64 {
	var newest time.Time
	for _, rec := range records {
		if rec.LastScrapedAt != nil && rec.LastScrapedAt.After(newest) {
			newest = *rec.LastScrapedAt
		}
	}
	if newest.IsZero() {
		return 0
	}
	age := s.now().UTC().Sub(newest).Hours()
	if age < 0 {
		return 0
	}
	return age
}

// startBackgroundScrape refreshes a specialization detached from the
// request lifecycle.
func (s *server) startBackgroundScrape(specialization, location string) {
	if s.refresh == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.scrapeTimeout)
		defer cancel()
		if _, err := s.refresh.Refresh(ctx, specialization, location); err != nil {
			zap.L().Error("background scrape failed",
				zap.String("specialization", specialization),
				zap.Error(err))
		}
	}()
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupWorker(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.toPreview(rec))
}

// handleDetails returns full contact details, gated on a settled unlock
// for the requesting email.
func (s *server) handleDetails(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupWorker(w, r)
	if !ok {
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	unlocked, err := s.store.IsUnlocked(r.Context(), rec.ID, email)
	if err != nil {
		zap.L().Error("details: unlock lookup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if !unlocked {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"detail": map[string]any{
				"message":          "contact details are locked",
				"unlock_price_idr": s.unlockPriceIDR,
				"payment_url":      "/workers/" + rec.ID + "/unlock",
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, s.toDetails(rec))
}

type unlockRequest struct {
	Email string `json:"email"`
}

// handleUnlock creates a pending unlock and a Snap payment for it.
func (s *server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupWorker(w, r)
	if !ok {
		return
	}

	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	unlocked, err := s.store.IsUnlocked(r.Context(), rec.ID, req.Email)
	if err != nil {
		zap.L().Error("unlock: lookup", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unlock failed")
		return
	}
	if unlocked {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_unlocked"})
		return
	}

	if s.midtrans == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	orderID := midtrans.NewUnlockOrderID(rec.ID)
	snap, err := s.midtrans.CreateSnapTransaction(r.Context(), midtrans.SnapRequest{
		OrderID:       orderID,
		GrossAmount:   s.unlockPriceIDR,
		ItemName:      "Contact unlock: " + trust.MaskName(rec.BusinessName),
		CustomerEmail: req.Email,
	})
	if err != nil {
		zap.L().Error("unlock: create snap transaction", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment creation failed")
		return
	}

	if err := s.store.CreateUnlock(r.Context(), rec.ID, req.Email, orderID, s.unlockPriceIDR); err != nil {
		zap.L().Error("unlock: persist", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "unlock failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":     orderID,
		"token":        snap.Token,
		"redirect_url": snap.RedirectURL,
		"amount_idr":   s.unlockPriceIDR,
	})
}

// handleUnlockRefresh re-checks a payment with Midtrans and settles the
// unlock when the payment completed.
func (s *server) handleUnlockRefresh(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	if s.midtrans == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	status, err := s.midtrans.GetTransactionStatus(r.Context(), orderID)
	if err != nil {
		zap.L().Error("unlock refresh: transaction status", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment status check failed")
		return
	}

	if status.Settled() {
		if err := s.store.SettleUnlock(r.Context(), orderID, midtrans.StatusSettlement); err != nil {
			zap.L().Error("unlock refresh: settle", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "unlock settlement failed")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":           orderID,
		"transaction_status": status.TransactionStatus,
		"payment_type":       status.PaymentType,
		"unlocked":           status.Settled(),
	})
}

// lookupWorker resolves the workerID path param, writing 404 when the
// worker is missing or inactive.
func (s *server) lookupWorker(w http.ResponseWriter, r *http.Request) (*worker.Record, bool) {
	id := chi.URLParam(r, "workerID")
	rec, err := s.store.GetWorker(r.Context(), id)
	if err != nil {
		zap.L().Error("worker lookup", zap.String("worker_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return nil, false
	}
	if rec == nil || !rec.IsActive {
		writeError(w, http.StatusNotFound, "worker not found")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
