package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassidypignatello/bali-renovation-os/internal/match"
	"github.com/cassidypignatello/bali-renovation-os/internal/store"
	"github.com/cassidypignatello/bali-renovation-os/internal/trust"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
	"github.com/cassidypignatello/bali-renovation-os/pkg/midtrans"
)

type fakeMidtrans struct {
	snapErr  error
	statuses map[string]*midtrans.TransactionStatus
}

func (f *fakeMidtrans) CreateSnapTransaction(_ context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	return &midtrans.SnapResponse{
		Token:       "snap-" + req.OrderID,
		RedirectURL: "https://app.sandbox.midtrans.com/snap/v3/redirection/snap-" + req.OrderID,
	}, nil
}

func (f *fakeMidtrans) GetTransactionStatus(_ context.Context, orderID string) (*midtrans.TransactionStatus, error) {
	if st, ok := f.statuses[orderID]; ok {
		return st, nil
	}
	return &midtrans.TransactionStatus{OrderID: orderID, TransactionStatus: midtrans.StatusPending}, nil
}

func newTestServer(t *testing.T) (*server, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	srv := &server{
		store:           st,
		tables:          match.DefaultTables(),
		midtrans:        &fakeMidtrans{statuses: map[string]*midtrans.TransactionStatus{}},
		unlockPriceIDR:  50000,
		cacheTTL:        168 * time.Hour,
		defaultLocation: "Bali",
		scrapeTimeout:   time.Second,
		now:             time.Now,
	}
	return srv, st
}

func seedWorker(t *testing.T, st store.Store, name, phone string, reviewCount int) *worker.Record {
	t.Helper()

	rating := 4.6
	rec := &worker.Record{
		BusinessName:     name,
		Phone:            phone,
		WhatsApp:         phone,
		Location:         "Canggu",
		GmapsRating:      &rating,
		GmapsReviewCount: reviewCount,
		Specializations:  []string{"pool"},
		SourceTier:       worker.TierGoogleMaps,
		IsActive:         true,
	}
	trust.NewScorer().Apply(rec)

	ctx := context.Background()
	_, err := st.UpsertWorkers(ctx, []*worker.Record{rec})
	require.NoError(t, err)
	require.NoError(t, st.MarkScraped(ctx, []string{rec.ID}, time.Now().UTC()))
	return rec
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doJSON(t, srv.routes(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])
}

func TestSearchCacheHit(t *testing.T) {
	srv, st := newTestServer(t)
	seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)
	seedWorker(t, st, "Bali Pool Pro", "+62 813 3333 4444", 5)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/search", searchRequest{
		ProjectType: "pool_construction",
		Location:    "Canggu",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "cache_hit", body["status"])
	assert.EqualValues(t, 2, body["total"])
	assert.Less(t, body["cache_age_hours"].(float64), 1.0)

	workers := body["workers"].([]any)
	require.Len(t, workers, 2)
	first := workers[0].(map[string]any)

	// Contact stays masked: "Wayan Pool Service" → "Wayan P****".
	assert.Equal(t, "Wayan P****", first["display_name"])
	assert.Equal(t, true, first["contact_locked"])
	assert.EqualValues(t, 50000, first["unlock_price_idr"])
	assert.NotContains(t, first, "phone")

	// More reviews, higher trust, higher rank.
	second := workers[1].(map[string]any)
	assert.Equal(t, "Bali P****", second["display_name"])
	assert.Greater(t, first["ranking_score"].(float64), second["ranking_score"].(float64))
}

func TestSearchCacheMissStartsScrape(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/search", searchRequest{
		ProjectType: "pool_construction",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "scraping", body["status"])
	assert.Equal(t, "pool", body["specialization"])
	assert.EqualValues(t, estimatedScrapeSeconds, body["estimated_scrape_time_seconds"])
}

func TestSearchValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/search", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/workers/search", bytes.NewReader([]byte("{not json")))
	rr = httptest.NewRecorder()
	srv.routes().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchMinTrustLevel(t *testing.T) {
	srv, st := newTestServer(t)
	seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)

	// A bare record with no rating or reviews scores LOW.
	low := &worker.Record{
		BusinessName:    "Sketchy Pools",
		Specializations: []string{"pool"},
		SourceTier:      worker.TierOLX,
		IsActive:        true,
	}
	trust.NewScorer().Apply(low)
	ctx := context.Background()
	_, err := st.UpsertWorkers(ctx, []*worker.Record{low})
	require.NoError(t, err)
	require.NoError(t, st.MarkScraped(ctx, []string{low.ID}, time.Now().UTC()))

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/search", searchRequest{
		ProjectType:   "pool_construction",
		MinTrustLevel: string(worker.TrustHigh),
	})
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	workers := body["workers"].([]any)
	require.Len(t, workers, 1)
	assert.Equal(t, "Wayan P****", workers[0].(map[string]any)["display_name"])
}

func TestPreview(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)

	rr := doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "Wayan P****", body["display_name"])
	assert.Equal(t, true, body["contact_locked"])
	assert.NotContains(t, body, "phone")
}

func TestPreviewNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doJSON(t, srv.routes(), http.MethodGet, "/workers/missing/preview", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDetailsPaymentGate(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)
	ctx := context.Background()

	// No unlock yet: 402 with payment pointer.
	rr := doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details?email=buyer@example.com", nil)
	require.Equal(t, http.StatusPaymentRequired, rr.Code)

	detail := decodeBody(t, rr)["detail"].(map[string]any)
	assert.EqualValues(t, 50000, detail["unlock_price_idr"])
	assert.Equal(t, "/workers/"+rec.ID+"/unlock", detail["payment_url"])

	// Pending unlock is not enough.
	require.NoError(t, st.CreateUnlock(ctx, rec.ID, "buyer@example.com", "UNLOCK-1", 50000))
	rr = doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details?email=buyer@example.com", nil)
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)

	// Settled unlock reveals contact details.
	require.NoError(t, st.SettleUnlock(ctx, "UNLOCK-1", midtrans.StatusSettlement))
	rr = doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details?email=buyer@example.com", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, "Wayan Pool Service", body["business_name"])
	assert.Equal(t, "+62 812 1111 2222", body["phone"])
	assert.Equal(t, false, body["contact_locked"])

	// A different buyer stays locked.
	rr = doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details?email=other@example.com", nil)
	assert.Equal(t, http.StatusPaymentRequired, rr.Code)
}

func TestDetailsRequiresEmail(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)

	rr := doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnlockFlow(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)
	fake := srv.midtrans.(*fakeMidtrans)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/"+rec.ID+"/unlock", unlockRequest{Email: "buyer@example.com"})
	require.Equal(t, http.StatusCreated, rr.Code)

	body := decodeBody(t, rr)
	orderID := body["order_id"].(string)
	assert.Contains(t, orderID, "UNLOCK-"+rec.ID+"-")
	assert.Equal(t, "snap-"+orderID, body["token"])
	assert.EqualValues(t, 50000, body["amount_idr"])

	// Payment settles out of band; the refresh endpoint picks it up.
	fake.statuses[orderID] = &midtrans.TransactionStatus{
		OrderID:           orderID,
		TransactionStatus: midtrans.StatusSettlement,
		PaymentType:       "gopay",
	}

	rr = doJSON(t, srv.routes(), http.MethodPost, "/unlocks/"+orderID+"/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["unlocked"])

	// Repeat unlock short-circuits.
	rr = doJSON(t, srv.routes(), http.MethodPost, "/workers/"+rec.ID+"/unlock", unlockRequest{Email: "buyer@example.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "already_unlocked", decodeBody(t, rr)["status"])

	// And details are now open.
	rr = doJSON(t, srv.routes(), http.MethodGet, "/workers/"+rec.ID+"/details?email=buyer@example.com", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUnlockRefreshPending(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)
	require.NoError(t, st.CreateUnlock(context.Background(), rec.ID, "buyer@example.com", "UNLOCK-pending", 50000))

	rr := doJSON(t, srv.routes(), http.MethodPost, "/unlocks/UNLOCK-pending/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, false, body["unlocked"])
	assert.Equal(t, midtrans.StatusPending, body["transaction_status"])
}

func TestUnlockRequiresEmail(t *testing.T) {
	srv, st := newTestServer(t)
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/"+rec.ID+"/unlock", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUnlockWithoutPayments(t *testing.T) {
	srv, st := newTestServer(t)
	srv.midtrans = nil
	rec := seedWorker(t, st, "Wayan Pool Service", "+62 812 1111 2222", 150)

	rr := doJSON(t, srv.routes(), http.MethodPost, "/workers/"+rec.ID+"/unlock", unlockRequest{Email: "buyer@example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
