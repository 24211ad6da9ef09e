package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/cardconfig"
	"github.com/johnanishgitc/salesdashboard/internal/clock"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/dashboard"
	"github.com/johnanishgitc/salesdashboard/internal/ingest"
	"github.com/johnanishgitc/salesdashboard/internal/syncer"
	"github.com/johnanishgitc/salesdashboard/internal/syncer/events"
	"github.com/johnanishgitc/salesdashboard/internal/tally"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
	pkgdb "github.com/johnanishgitc/salesdashboard/pkg/db"
)

type stubFetcher struct {
	respond func(req tally.ChunkRequest) ([]domain.RawVoucher, error)
}

func (f *stubFetcher) FetchLedgerChunk(ctx context.Context, req tally.ChunkRequest) ([]domain.RawVoucher, error) {
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(req)
}

type testHarness struct {
	router *gin.Engine
	conn   *gorm.DB
	hub    *events.Hub
}

func newTestServer(t *testing.T, fetcher syncer.ChunkFetcher, cardAPIBaseURL string) testHarness {
	t.Helper()
	conn, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Voucher{},
		&domain.LedgerEntry{},
		&domain.InventoryEntry{},
		&domain.SyncMeta{},
		&domain.DailyAggregate{},
		&domain.DimensionalAggregate{},
	))

	nop := zap.NewNop()
	cfg := config.Config{
		DefaultSyncFrom: "20250401",
		CardAPIBaseURL:  cardAPIBaseURL,
	}
	holder := config.StaticEngineConfigHolder(config.DefaultEngineConfig())
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	hub := events.NewHub()

	agg := aggregate.NewService(aggregate.Params{DB: conn, Log: nop, Engine: holder})
	sync := syncer.NewService(syncer.Params{
		DB:         conn,
		Log:        nop,
		Config:     cfg,
		Engine:     holder,
		Clock:      clock.NewFakeClock(time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)),
		Fetcher:    fetcher,
		Ingest:     ingest.NewService(ingest.Params{DB: conn, Log: nop}),
		Aggregates: agg,
		Hub:        hub,
		GenID:      node,
	})
	dashboards := dashboard.NewService(dashboard.Params{DB: conn, Log: nop, Engine: holder, Aggregates: agg})
	cards := card.NewService(card.Params{DB: conn, Log: nop, Engine: holder})
	cardClient := cardconfig.NewClient(cardconfig.Params{Config: cfg, Log: nop})

	router := NewEngine(nop)
	NewServer(ServerParams{
		Gin:        router,
		Cfg:        cfg,
		Log:        nop,
		Syncer:     sync,
		Dashboards: dashboards,
		Cards:      cards,
		CardConfig: cardClient,
		Hub:        hub,
	})
	return testHarness{router: router, conn: conn, hub: hub}
}

func (h testHarness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func seedVoucher(t *testing.T, conn *gorm.DB, guid, masterID, date, amount string) {
	t.Helper()
	require.NoError(t, conn.Create(&domain.Voucher{
		MasterID: masterID, Guid: guid, Date: date,
		VoucherTypeReservedName: "Sales", Amount: amount,
		PartyLedgerName: "Acme", State: "Kerala", Country: "India",
		IsCancelled: "No",
	}).Error)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDashboardRequiresGuid(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")

	rec := h.do(t, http.MethodGet, "/api/v1/dashboard", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "guid_required")
}

func TestDashboardEndpoint(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")
	seedVoucher(t, h.conn, "g1", "1", "20250401", "5000")
	seedVoucher(t, h.conn, "g1", "2", "20250402", "1000")

	rec := h.do(t, http.MethodGet, "/api/v1/dashboard?guid=g1&fromDate=20250401&toDate=20250430", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string         `json:"status"`
		Data   dashboard.Data `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, float64(6000), resp.Data.KPI.TotalSales)
	assert.Equal(t, int64(2), resp.Data.KPI.TotalTxns)
}

func TestDownloadRunsToCompletion(t *testing.T) {
	fetcher := &stubFetcher{
		respond: func(req tally.ChunkRequest) ([]domain.RawVoucher, error) {
			return []domain.RawVoucher{{
				MasterID:                domain.Text(req.FromDate),
				AlterID:                 domain.IntText(1),
				VoucherTypeReservedName: domain.Text("Sales"),
				Date:                    domain.Text(req.FromDate),
				PartyLedgerName:         domain.Text("Acme"),
				Amount:                  domain.Text("1000"),
				IsCancelled:             domain.Text("No"),
			}}, nil
		},
	}
	h := newTestServer(t, fetcher, "")
	sub, _, err := h.hub.Subscribe("g1")
	require.NoError(t, err)
	defer sub.Close()

	rec := h.do(t, http.MethodPost, "/api/v1/sync/download", syncer.Request{
		Guid: "g1", FromDate: "20250401", ToDate: "20250403",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-sub.Events():
			if ev.Type == events.TypeDownloadComplete {
				done = true
			}
		case <-deadline:
			t.Fatal("download did not complete")
		}
	}

	stats := h.do(t, http.MethodGet, "/api/v1/cache/stats?guid=g1", nil)
	require.Equal(t, http.StatusOK, stats.Code)
	var resp struct {
		Data syncer.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(stats.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Data.TotalVouchers)
}

func TestDownloadValidation(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")

	rec := h.do(t, http.MethodPost, "/api/v1/sync/download", syncer.Request{FromDate: "20250401"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearEndpoint(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")
	seedVoucher(t, h.conn, "g1", "1", "20250401", "5000")

	rec := h.do(t, http.MethodPost, "/api/v1/cache/clear?guid=g1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, h.conn.Table("vouchers").Where("guid = ?", "g1").Count(&count).Error)
	assert.Zero(t, count)
}

func TestComputeCardsInline(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")
	seedVoucher(t, h.conn, "g1", "1", "20250401", "5000")
	seedVoucher(t, h.conn, "g1", "2", "20250415", "2000")

	rec := h.do(t, http.MethodPost, "/api/v1/cards/compute", computeCardsRequest{
		Guid:     "g1",
		FromDate: "20250401",
		ToDate:   "20250430",
		Cards: []card.Spec{{
			ID: "c1", Title: "Monthly Sales", ChartType: "bar",
			GroupBy: "month", ValueField: "amount", Aggregation: "sum",
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Data   map[string][]struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data["c1"], 1)
	assert.Equal(t, "202504", resp.Data["c1"][0].Name)
	assert.Equal(t, float64(7000), resp.Data["c1"][0].Value)
}

func TestComputeCardsFetchesDefinitions(t *testing.T) {
	cardAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sales", r.URL.Query().Get("dashboardType"))
		assert.Equal(t, "g1", r.URL.Query().Get("coGuid"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"status": "success",
			"data": [
				{"id":"c1","title":"By Customer","chartType":"bar","groupBy":"partyledgername","valueField":"amount","aggregation":"sum","isActive":true},
				{"title":"__DASHBOARD_SETTINGS__","isActive":true,"cardConfig":{"theme":"dark"}}
			]
		}`)
	}))
	defer cardAPI.Close()

	h := newTestServer(t, &stubFetcher{}, cardAPI.URL)
	seedVoucher(t, h.conn, "g1", "1", "20250401", "5000")

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(computeCardsRequest{
		Guid: "g1", DashboardType: "sales", FromDate: "20250401", ToDate: "20250430",
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cards/compute", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok-1")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data     map[string]json.RawMessage `json:"data"`
		Settings json.RawMessage            `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data, "c1")
	assert.JSONEq(t, `{"theme":"dark"}`, string(resp.Settings))
}

func TestRawDataEndpoint(t *testing.T) {
	h := newTestServer(t, &stubFetcher{}, "")
	seedVoucher(t, h.conn, "g1", "1", "20250401", "5000")
	seedVoucher(t, h.conn, "g1", "2", "20250402", "2000")

	rec := h.do(t, http.MethodGet, "/api/v1/cache/raw?guid=g1&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data syncer.RawPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.TotalVouchers)
	require.Len(t, resp.Data.Vouchers, 1)
	// Newest first.
	assert.Equal(t, "20250402", resp.Data.Vouchers[0].Date)
}
