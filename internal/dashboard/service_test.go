package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/config"
	"github.com/johnanishgitc/salesdashboard/internal/voucher/domain"
	pkgdb "github.com/johnanishgitc/salesdashboard/pkg/db"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := pkgdb.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Voucher{},
		&domain.LedgerEntry{},
		&domain.InventoryEntry{},
		&domain.DailyAggregate{},
		&domain.DimensionalAggregate{},
	))
	holder := config.StaticEngineConfigHolder(config.DefaultEngineConfig())
	agg := aggregate.NewService(aggregate.Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Engine: holder,
	})
	svc := NewService(Params{
		DB:         conn,
		Log:        zap.NewNop(),
		Engine:     holder,
		Aggregates: agg,
	})
	return svc, conn
}

func seedSale(t *testing.T, conn *gorm.DB, masterID, date, amount string, lines ...domain.InventoryEntry) {
	t.Helper()
	require.NoError(t, conn.Create(&domain.Voucher{
		MasterID: masterID, Guid: "g1", Date: date,
		VoucherTypeReservedName: "Sales", Amount: amount,
		PartyLedgerName: "Acme", State: "Kerala", Country: "India",
		Salesperson: "North Region", IsCancelled: "No",
	}).Error)
	for i := range lines {
		lines[i].VoucherMasterID = masterID
		lines[i].Guid = "g1"
		require.NoError(t, conn.Create(&lines[i]).Error)
	}
}

func seedCreditNote(t *testing.T, conn *gorm.DB, masterID, date, amount string) {
	t.Helper()
	require.NoError(t, conn.Create(&domain.Voucher{
		MasterID: masterID, Guid: "g1", Date: date,
		VoucherTypeReservedName: "Credit Note", Amount: amount,
		PartyLedgerName: "Acme", State: "Kerala", Country: "India",
		IsCancelled: "No",
	}).Error)
}

func TestSingleSaleKPIs(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000")

	data, err := svc.GetDashboardData(context.Background(), "g1", "20250401", "20250430", Filters{})
	require.NoError(t, err)

	assert.Equal(t, float64(5000), data.KPI.TotalSales)
	assert.Equal(t, int64(1), data.KPI.TotalTxns)
	assert.Equal(t, float64(5000), data.KPI.AvgOrderValue)
	assert.Equal(t, float64(5000), data.KPI.MaxSale)
}

func TestCreditNoteFlipsSignButCounts(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000")
	seedCreditNote(t, conn, "2", "20250402", "2000")

	data, err := svc.GetDashboardData(context.Background(), "g1", "20250401", "20250430", Filters{})
	require.NoError(t, err)

	assert.Equal(t, float64(3000), data.KPI.TotalSales)
	assert.Equal(t, int64(2), data.KPI.TotalTxns)
	assert.Equal(t, float64(1500), data.KPI.AvgOrderValue)
	// maxSale ignores credit notes.
	assert.Equal(t, float64(5000), data.KPI.MaxSale)
}

func TestFastAndSlowPathsAgreeOnPureDateRange(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000")
	seedSale(t, conn, "2", "20250403", "1200")
	seedCreditNote(t, conn, "3", "20250405", "700")
	ctx := context.Background()

	fast, err := svc.GetDashboardData(ctx, "g1", "20250401", "20250430", Filters{})
	require.NoError(t, err)
	slow, err := svc.slowPath(ctx, "g1", "20250401", "20250430", Filters{})
	require.NoError(t, err)

	assert.Equal(t, fast.KPI, slow.KPI)
	assert.Equal(t, fast.Charts.SalesTrend, slow.Charts.SalesTrend)
}

func TestItemFilterSumsOnlyMatchingLines(t *testing.T) {
	svc, conn := newTestService(t)
	// Multi-line voucher: a filter on one item must contribute only that
	// line's revenue, not the whole voucher.
	seedSale(t, conn, "1", "20250401", "5000",
		domain.InventoryEntry{StockItemName: "Widget", StockItemGroup: "Widgets", Amount: "3000"},
		domain.InventoryEntry{StockItemName: "Gadget", StockItemGroup: "Gadgets", Amount: "2000"},
	)

	data, err := svc.GetDashboardData(context.Background(), "g1", "20250401", "20250430",
		Filters{StockItem: "Widget"})
	require.NoError(t, err)

	assert.Equal(t, float64(3000), data.KPI.TotalSales)
	assert.Equal(t, int64(1), data.KPI.TotalTxns)
	require.Len(t, data.Charts.TopItems, 1)
	assert.Equal(t, "Widget", data.Charts.TopItems[0].Name)
}

func TestStockGroupFilter(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000",
		domain.InventoryEntry{StockItemName: "Widget", StockItemGroup: "Widgets", Amount: "3000"},
		domain.InventoryEntry{StockItemName: "Gadget", StockItemGroup: "Gadgets", Amount: "2000"},
	)
	seedSale(t, conn, "2", "20250402", "900",
		domain.InventoryEntry{StockItemName: "Widget Mini", StockItemGroup: "Widgets", Amount: "900"},
	)

	data, err := svc.GetDashboardData(context.Background(), "g1", "20250401", "20250430",
		Filters{StockGroup: "Widgets"})
	require.NoError(t, err)

	assert.Equal(t, float64(3900), data.KPI.TotalSales)
	assert.Equal(t, int64(2), data.KPI.TotalTxns)
}

func TestVoucherLevelFilters(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000")
	require.NoError(t, conn.Create(&domain.Voucher{
		MasterID: "2", Guid: "g1", Date: "20250402",
		VoucherTypeReservedName: "Sales", Amount: "1000",
		PartyLedgerName: "Globex", State: "Goa", Country: "India", IsCancelled: "No",
	}).Error)

	data, err := svc.GetDashboardData(context.Background(), "g1", "", "",
		Filters{Customer: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, float64(1000), data.KPI.TotalSales)

	data, err = svc.GetDashboardData(context.Background(), "g1", "", "",
		Filters{State: "Kerala"})
	require.NoError(t, err)
	assert.Equal(t, float64(5000), data.KPI.TotalSales)
}

func TestSalesTrendIsDateOrdered(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250403", "1000")
	seedSale(t, conn, "2", "20250401", "2000")

	data, err := svc.GetDashboardData(context.Background(), "g1", "20250401", "20250430", Filters{})
	require.NoError(t, err)
	require.Len(t, data.Charts.SalesTrend, 2)
	assert.Equal(t, "20250401", data.Charts.SalesTrend[0].Date)
	assert.Equal(t, "20250403", data.Charts.SalesTrend[1].Date)
}

func TestExtendedDashboardData(t *testing.T) {
	svc, conn := newTestService(t)
	seedSale(t, conn, "1", "20250401", "5000",
		domain.InventoryEntry{
			StockItemName: "Widget", StockItemGroup: "Widgets",
			Amount: "5000", Profit: "1200", BilledQty: "2 Nos",
		},
	)
	require.NoError(t, conn.Create(&domain.LedgerEntry{
		VoucherMasterID: "1", Guid: "g1",
		LedgerName: "Acme", IsPartyLedger: "Yes", GroupName: "Sundry Debtors",
		Amount: "5000",
	}).Error)
	seedSale(t, conn, "2", "20250501", "800",
		domain.InventoryEntry{
			StockItemName: "Dud", StockItemGroup: "Gadgets",
			Amount: "800", Profit: "-150", BilledQty: "1 Nos",
		},
	)

	data, err := svc.GetExtendedDashboardData(context.Background(), "g1", "20250401", "20250531")
	require.NoError(t, err)

	require.Len(t, data.SalesByStockGroup, 2)
	assert.Equal(t, "Widgets", data.SalesByStockGroup[0].Name)

	require.Len(t, data.SalesByLedgerGroup, 1)
	assert.Equal(t, "Sundry Debtors", data.SalesByLedgerGroup[0].Name)

	require.Len(t, data.SalesByCountry, 1)
	assert.Equal(t, "India", data.SalesByCountry[0].Name)

	require.Len(t, data.SalesByPeriod, 2)
	assert.Equal(t, "202504", data.SalesByPeriod[0].Period)
	assert.Equal(t, float64(5000), data.SalesByPeriod[0].Value)

	assert.Equal(t, float64(5800), data.ProfitAnalysis.Revenue)
	assert.Equal(t, float64(1050), data.ProfitAnalysis.Profit)

	require.Len(t, data.TopProfitableItems, 1)
	assert.Equal(t, "Widget", data.TopProfitableItems[0].Name)
	require.Len(t, data.TopLossItems, 1)
	assert.Equal(t, "Dud", data.TopLossItems[0].Name)
}

func TestEmptyTenantIsEmptyNotError(t *testing.T) {
	svc, _ := newTestService(t)

	data, err := svc.GetDashboardData(context.Background(), "ghost", "", "", Filters{})
	require.NoError(t, err)
	assert.Equal(t, KPI{}, data.KPI)
	assert.Empty(t, data.Charts.SalesTrend)
}
