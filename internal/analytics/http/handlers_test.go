package analytichttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/analytics"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

type stubService struct {
	mu        sync.Mutex
	snapshot  *analytics.Snapshot
	getErr    error
	storedErr error
	updateErr error
	clearErr  error
	cleared   int64

	getCalls    []analytics.Period
	storedCalls int
	updateCalls []analytics.Period
	clearCalls  []string
}

func newStubService() *stubService {
	snap := analytics.NewSnapshot("user-1", analytics.Period30Days)
	snap.TotalSales = 1000
	snap.TotalPurchases = 200
	snap.TotalExpenses = 100
	snap.CalculateNetProfit()
	snap.PaymentMethods = []analytics.PaymentMethodStat{{Method: "Cash", Total: 600, Count: 2, Percentage: 100}}
	snap.SalesByDate = []analytics.SalesPoint{{Date: "2026-10-01", Sales: 1000, Orders: 3}}
	snap.TopProducts = []analytics.ProductStat{{ProductName: "Widget", TotalQuantity: 4, TotalAmount: 400, OrderCount: 2, Rank: 1}}
	snap.TopCustomers = []analytics.CustomerStat{{CustomerName: "Acme", TotalAmount: 1000, InvoiceCount: 3, AvgOrderValue: 333.33, Rank: 1}}
	snap.PaymentFlow = analytics.PaymentFlow{
		MoneyIn:  analytics.FlowTotals{Total: 600, Count: 2},
		MoneyOut: analytics.FlowTotals{Total: 150, Count: 1},
	}
	snap.DailyPayments = []analytics.DailyPayment{{Date: "2026-10-01", Received: 600, Paid: 150}}
	snap.LastUpdated = time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	return &stubService{snapshot: snap, cleared: 5}
}

func (s *stubService) GetAnalytics(_ context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls = append(s.getCalls, period)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.copyFor(userID, period), nil
}

func (s *stubService) StoredAnalytics(_ context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storedCalls++
	if s.storedErr != nil {
		return nil, s.storedErr
	}
	return s.copyFor(userID, period), nil
}

func (s *stubService) UpdateAnalytics(_ context.Context, userID string, period analytics.Period) (*analytics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls = append(s.updateCalls, period)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return s.copyFor(userID, period), nil
}

func (s *stubService) ClearAnalytics(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearCalls = append(s.clearCalls, userID)
	if s.clearErr != nil {
		return 0, s.clearErr
	}
	return s.cleared, nil
}

func (s *stubService) copyFor(userID string, period analytics.Period) *analytics.Snapshot {
	cp := *s.snapshot
	cp.UserID = userID
	cp.DateRange.Period = period
	return &cp
}

func (s *stubService) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedCalls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func withTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get("X-User-ID"); user != "" {
			r = r.WithContext(shared.ContextWithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(withTestUser)
	h.MountRoutes(r)
	h.MountStream(r)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("X-User-ID", "user-1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestOverviewDefaultsToThirtyDays(t *testing.T) {
	svc := newStubService()
	h := NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0)

	rec := doRequest(t, newTestRouter(h), http.MethodGet, "/analytics/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []analytics.Period{analytics.Period30Days}, svc.getCalls)

	var body overviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1000.0, body.TotalSales)
	require.Equal(t, 700.0, body.NetProfit)
	require.Len(t, body.PaymentMethods, 1)
	require.Equal(t, "Cash", body.PaymentMethods[0].ID)
	require.Equal(t, "2026-10-01", body.SalesByDate[0].ID)
	require.Equal(t, int64(3), body.SalesByDate[0].Count)
}

func TestOverviewRejectsUnknownPeriod(t *testing.T) {
	svc := newStubService()
	h := NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0)

	rec := doRequest(t, newTestRouter(h), http.MethodGet, "/analytics/overview?period=2weeks", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid period")
	require.Empty(t, svc.getCalls)
}

func TestTopEndpointsShapeRows(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodGet, "/analytics/top-products?period=7days", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var products []topProductResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Equal(t, []topProductResponse{{ID: "Widget", TotalQuantity: 4, TotalAmount: 400, Count: 2}}, products)

	rec = doRequest(t, router, http.MethodGet, "/analytics/top-customers?period=1year", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var customers []topCustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &customers))
	require.Len(t, customers, 1)
	require.Equal(t, "Acme", customers[0].ID)
	require.Equal(t, int64(3), customers[0].InvoiceCount)

	require.Equal(t, []analytics.Period{analytics.Period7Days, analytics.Period1Year}, svc.getCalls)
}

func TestPaymentsEndpointSplitsFlow(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodGet, "/analytics/payments", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body paymentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []groupTotal{
		{ID: "Received", Total: 600, Count: 2},
		{ID: "Paid", Total: 150, Count: 1},
	}, body.PaymentFlow)
	require.Equal(t, []dailyPaymentResponse{{ID: "2026-10-01", Received: 600, Paid: 150}}, body.DailyPayments)
}

func TestDashboardCombinesSections(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodGet, "/analytics/dashboard?period=90days", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 700.0, body.Overview.NetProfit)
	require.Len(t, body.TopProducts, 1)
	require.Len(t, body.TopCustomers, 1)
	require.Len(t, body.SalesTrends, 1)
	require.Equal(t, 150.0, body.PaymentFlow.MoneyOut.Total)
	require.Equal(t, []analytics.Period{analytics.Period90Days}, svc.getCalls)
}

func TestReadInternalErrorIsGeneric(t *testing.T) {
	svc := newStubService()
	svc.getErr = errors.New("pool exhausted")
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodGet, "/analytics/overview", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Error while trying to fetch analytics overview")
	require.NotContains(t, rec.Body.String(), "pool exhausted")
}

func TestMissingUserIsUnauthorized(t *testing.T) {
	svc := newStubService()
	svc.getErr = analytics.ErrUserRequired
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	req := httptest.NewRequest(http.MethodGet, "/analytics/overview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateUsesBodyPeriod(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/analytics/update", `{"period":"7days"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []analytics.Period{analytics.Period7Days}, svc.updateCalls)

	var body updateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Analytics updated successfully", body.Message)
	require.True(t, body.LastUpdated.Equal(svc.snapshot.LastUpdated))
}

func TestUpdateWithoutBodyUsesDefault(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/analytics/update", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []analytics.Period{analytics.Period30Days}, svc.updateCalls)
}

func TestUpdateRejectsMalformedBody(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/analytics/update", `{"period":"forever"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/analytics/update", `{"unknown":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, svc.updateCalls)
}

func TestUpdateFailureIsInternalError(t *testing.T) {
	svc := newStubService()
	svc.updateErr = errors.New("analytics: save snapshot: boom")
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodPost, "/analytics/update", `{"period":"30days"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Error while trying to update analytics")
}

func TestClearReportsDeletedCount(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	rec := doRequest(t, router, http.MethodDelete, "/analytics/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"user-1"}, svc.clearCalls)

	var body clearResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, int64(5), body.DeletedCount)
	require.Contains(t, body.Message, "recalculated on next request")
}

func TestRecomputeEndpointsAreRateLimited(t *testing.T) {
	svc := newStubService()
	router := newTestRouter(NewHandler(testLogger(), svc, analytics.NewLocalBus(nil), nil, 0))

	for i := 0; i < 10; i++ {
		rec := doRequest(t, router, http.MethodPost, "/analytics/update", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := doRequest(t, router, http.MethodPost, "/analytics/update", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/analytics/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitKeyPrefersUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analytics/update", nil)
	req = req.WithContext(shared.ContextWithUser(req.Context(), "user-9"))
	key, err := rateLimitKey(req)
	require.NoError(t, err)
	require.Equal(t, "user:user-9", key)

	anon := httptest.NewRequest(http.MethodPost, "/analytics/update", nil)
	key, err = rateLimitKey(anon)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "ip:"))
}
